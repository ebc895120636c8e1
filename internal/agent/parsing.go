package agent

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/mitchellh/mapstructure"

	"github.com/magnecruit/backend/internal/ai"
)

// JobSectionArgs are the decoded arguments of a generate_job_sections call.
// Pointer fields distinguish "not mentioned" (nil, keep current content) from
// "explicitly empty" (non-nil zero value, clear it).
type JobSectionArgs struct {
	TargetRole              *string   `mapstructure:"target_role"`
	TargetRoleDescription   *string   `mapstructure:"target_role_description"`
	CompanyContext          *string   `mapstructure:"company_context"`
	Responsibilities        *[]string `mapstructure:"responsibilities"`
	RequiredQualifications  *[]string `mapstructure:"required_qualifications"`
	PreferredQualifications *[]string `mapstructure:"preferred_qualifications"`
	Benefits                *[]string `mapstructure:"benefits"`
	AdditionalInformation   *string   `mapstructure:"additional_information"`
}

// HasSectionArgs reports whether any section-bearing argument was present.
// The synchronizer only rebuilds the section list when one of these appeared
// in the call.
func (a *JobSectionArgs) HasSectionArgs() bool {
	return a.CompanyContext != nil ||
		a.Responsibilities != nil ||
		a.RequiredQualifications != nil ||
		a.PreferredQualifications != nil ||
		a.Benefits != nil ||
		a.AdditionalInformation != nil
}

// DecodeJobSectionArgs validates and decodes a tool call from the model.
// Unknown argument keys are ignored; mismatched tool names are an error.
func DecodeJobSectionArgs(call *ai.ToolCall) (*JobSectionArgs, error) {
	if call == nil {
		return nil, fmt.Errorf("no tool call to decode")
	}
	if call.Name != ToolGenerateJobSections {
		return nil, fmt.Errorf("unexpected tool %q", call.Name)
	}

	var args JobSectionArgs
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &args,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("build args decoder: %w", err)
	}
	if err := decoder.Decode(call.Args); err != nil {
		return nil, fmt.Errorf("decode %s args: %w", call.Name, err)
	}
	return &args, nil
}

// SequencePayload is the structured state the model emits in sequence mode.
// Name and JobRole are alternative title keys; ResolveTitle picks one.
type SequencePayload struct {
	Name        string                `json:"name"`
	JobRole     string                `json:"jobrole"`
	Description string                `json:"description"`
	Steps       []SequenceStepPayload `json:"steps"`
}

// SequenceStepPayload is one step of the emitted sequence state. Channel,
// DelayDays and Subject only apply to outreach-style steps and may be absent.
type SequenceStepPayload struct {
	StepNumber int     `json:"step_number"`
	Heading    string  `json:"heading"`
	Channel    string  `json:"channel"`
	DelayDays  *int    `json:"delay_days"`
	Subject    *string `json:"subject"`
	Body       string  `json:"body"`
}

// ResolveTitle returns the sequence title regardless of which key the model
// used.
func (p *SequencePayload) ResolveTitle() string {
	if p.Name != "" {
		return p.Name
	}
	return p.JobRole
}

var fencedJSONPattern = regexp.MustCompile("(?is)```json\\s*(\\{.*?\\})\\s*```")

// HasStructuredPayload reports whether a message body carries a fenced JSON
// block. Such messages hold workspace state rather than prose; clients render
// a placeholder instead.
func HasStructuredPayload(text string) bool {
	return fencedJSONPattern.MatchString(text)
}

// ParseSequenceJSON extracts a fenced JSON sequence block from a model reply.
// The second return value reports whether a valid block was found; a reply
// without one is a normal conversational turn, not an error.
func ParseSequenceJSON(text string) (*SequencePayload, bool) {
	match := fencedJSONPattern.FindStringSubmatch(text)
	if match == nil {
		return nil, false
	}

	// The steps key must be present and must be a list. A JSON block with a
	// different shape is treated as prose, same as no block at all.
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(match[1]), &probe); err != nil {
		return nil, false
	}
	rawSteps, ok := probe["steps"]
	if !ok {
		return nil, false
	}
	var stepsProbe []json.RawMessage
	if err := json.Unmarshal(rawSteps, &stepsProbe); err != nil {
		return nil, false
	}

	var payload SequencePayload
	if err := json.Unmarshal([]byte(match[1]), &payload); err != nil {
		return nil, false
	}
	return &payload, true
}
