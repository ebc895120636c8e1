package main

import (
	"log"

	"github.com/magnecruit/backend/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
