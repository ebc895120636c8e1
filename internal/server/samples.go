package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Sample generators kept for frontend development: they return plausible
// structured content for a given job title without touching the model or the
// database.

type generateRequest struct {
	JobRole string `json:"jobrole"`
}

func sampleSections(jobRole string) []gin.H {
	return []gin.H{
		{
			"id":             1,
			"section_number": 1,
			"heading":        "About the Company",
			"body":           "Our company is a leading provider of innovative solutions in the industry. We are committed to excellence and creating a positive work environment.",
		},
		{
			"id":             2,
			"section_number": 2,
			"heading":        "Responsibilities in this role",
			"body":           fmt.Sprintf("As a %s, you will be responsible for developing and implementing solutions, collaborating with team members, and contributing to company growth.", jobRole),
		},
		{
			"id":             3,
			"section_number": 3,
			"heading":        "Qualifications for this role",
			"body":           "Bachelor's degree in a relevant field\n3+ years of experience in a similar role\nStrong communication skills\nProblem-solving abilities",
		},
		{
			"id":             4,
			"section_number": 4,
			"heading":        "Benefits in this role",
			"body":           "Competitive salary\nHealth insurance\nFlexible work schedule\nProfessional development opportunities",
		},
		{
			"id":             5,
			"section_number": 5,
			"heading":        "Additional information",
			"body":           "This position is available immediately. We are an equal opportunity employer and value diversity in our company.",
		},
	}
}

func (s *Server) generateSampleJob(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No data provided"})
		return
	}
	if req.JobRole == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Job title is required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobrole":     req.JobRole,
		"description": fmt.Sprintf("This is a generated description for the %s position.", req.JobRole),
		"sections":    sampleSections(req.JobRole),
	})
}

func (s *Server) generateSampleSequence(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No data provided"})
		return
	}
	if req.JobRole == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Job title is required"})
		return
	}

	steps := sampleSections(req.JobRole)
	for _, step := range steps {
		step["step_number"] = step["section_number"]
		delete(step, "section_number")
	}

	c.JSON(http.StatusOK, gin.H{
		"jobrole":     req.JobRole,
		"description": fmt.Sprintf("This is a generated description for the %s position.", req.JobRole),
		"steps":       steps,
	})
}
