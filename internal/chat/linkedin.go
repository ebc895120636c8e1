package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/magnecruit/backend/internal/agent"
	"github.com/magnecruit/backend/internal/ai"
	"github.com/magnecruit/backend/internal/store"
)

// ErrNoJob is returned when a LinkedIn post is requested for a conversation
// without a saved job description.
var ErrNoJob = errors.New("no job details found for this conversation")

// ErrJobTitleMissing is returned when the saved job has no title to announce.
var ErrJobTitleMissing = errors.New("job title is missing")

// LinkedInRequest are the user-tunable inputs for a LinkedIn post. Empty
// fields fall back to sensible defaults.
type LinkedInRequest struct {
	ConversationID uint   `json:"conversation_id"`
	CompanyName    string `json:"company_name"`
	Summary        string `json:"job_description_summary"`
	Tone           string `json:"tone"`
	Length         string `json:"length"`
}

// GenerateLinkedInPost drafts a LinkedIn announcement from the conversation's
// saved job description.
func (o *Orchestrator) GenerateLinkedInPost(ctx context.Context, userID uint, req LinkedInRequest) (string, error) {
	job, err := o.jobs.Get(ctx, req.ConversationID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrNoJob
		}
		return "", err
	}
	if job.JobRole == "" {
		return "", ErrJobTitleMissing
	}

	companyName := strings.TrimSpace(req.CompanyName)
	if companyName == "" {
		companyName = "Our Company"
	}

	summary := strings.TrimSpace(req.Summary)
	if summary == "" {
		summary = job.Description
	}
	if summary == "" {
		summary = "An exciting role."
	}

	aboutCompany := "Not specified"
	responsibilities := "Key responsibilities for this role."
	qualifications := "Relevant skills and experience."
	for _, section := range job.Sections {
		heading := strings.ToLower(section.Heading)
		switch {
		case strings.Contains(heading, "about the company") || strings.Contains(heading, "company context"):
			if section.Body != "" {
				aboutCompany = section.Body
			}
		case strings.Contains(heading, "responsibilities"):
			if section.Body != "" {
				responsibilities = section.Body
			}
		case strings.Contains(heading, "qualifications") || strings.Contains(heading, "requirements"):
			if section.Body != "" {
				qualifications = section.Body
			}
		}
	}

	tone := strings.TrimSpace(req.Tone)
	if tone == "" {
		tone = "professional"
	}
	length := strings.TrimSpace(req.Length)
	if length == "" {
		length = "medium"
	}

	plan := agent.LinkedInPostPlan(job.JobRole, companyName, summary, aboutCompany, responsibilities, qualifications, tone, length)
	reply, err := o.gateway.Complete(ctx, ai.Request{Prompt: plan.Prompt, System: plan.System})
	if err != nil {
		return "", err
	}
	if reply.Text == "" {
		return "", &ai.TransportError{Err: fmt.Errorf("empty linkedin post reply")}
	}
	return strings.TrimSpace(reply.Text), nil
}
