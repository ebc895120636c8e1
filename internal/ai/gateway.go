package ai

import "context"

// Role identifies the author of a history turn in the model's vocabulary.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one prior exchange passed to the model as history.
type Turn struct {
	Role Role
	Text string
}

// ParamType restricts tool parameters to the shapes the domain consumes.
type ParamType string

const (
	ParamString     ParamType = "string"
	ParamStringList ParamType = "string_list"
)

// Param describes one parameter of a tool declaration.
type Param struct {
	Name        string
	Description string
	Type        ParamType
	Required    bool
}

// ToolDecl describes a function the model may invoke instead of replying
// with text.
type ToolDecl struct {
	Name        string
	Description string
	Params      []Param
}

// ToolCall is a structured invocation extracted from a model reply.
type ToolCall struct {
	Name string
	Args map[string]any
}

// Reply carries either free text or a single tool call, never both empty.
type Reply struct {
	Text string
	Call *ToolCall
}

// Request is one model invocation: the primary user-turn prompt, optional
// prior history, optional tool declarations and an optional system
// instruction.
type Request struct {
	Prompt  string
	System  string
	History []Turn
	Tools   []ToolDecl
}

// Gateway abstracts the generative model provider. Implementations convert
// every failure into one of the typed errors in this package; no provider
// fault crosses this boundary unwrapped.
type Gateway interface {
	Complete(ctx context.Context, req Request) (*Reply, error)
}
