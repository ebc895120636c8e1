package agent

import (
	"fmt"
	"strings"

	"github.com/magnecruit/backend/internal/ai"
)

// Workspace views the assistant routes on. Any other view falls back to the
// general chat prompt.
const (
	ViewJobSections = "job-sections"
	ViewJobSequence = "job-sequence"
)

// Mode tells the caller how to interpret the model reply for this turn.
type Mode string

const (
	// ModeChat expects a plain conversational text reply.
	ModeChat Mode = "chat"
	// ModeJobTool expects either text or a generate_job_sections tool call.
	ModeJobTool Mode = "job_tool"
	// ModeSequenceJSON expects the full sequence state in a fenced JSON block.
	ModeSequenceJSON Mode = "sequence_json"
)

// Plan is a fully assembled model request for one chat turn.
type Plan struct {
	Mode   Mode
	System string
	Prompt string
	Tools  []ai.ToolDecl
}

const generalChatPrompt = `You are Magnec AI, a helpful and versatile recruitment assistant for Magnecruit.
Engage in a helpful conversation based on the user's message and the chat history.
You can answer questions about recruitment processes, suggest ideas, help draft text (like emails or sections of job descriptions if asked generally), and discuss the capabilities of the Magnecruit platform (like job description generation, LinkedIn post creation, interview scheduling, candidate management, sending follow-up reminders etc.).
Be proactive and helpful, but do NOT assume the user wants to trigger a specific complex workflow (like generating a full job description) unless they explicitly ask while focused on that task.
Keep your responses concise and professional.`

const jobSectionsSystemPrompt = "You are Magnec AI, focused on creating job descriptions via the `generate_job_sections` function.\n" +
	"Your main goal is to collect necessary details (role, company context, responsibilities, qualifications, benefits) through conversation and then execute the function call.\n" +
	"Engage naturally, asking for details if missing.\n" +
	"CRITICAL: When the user indicates they want to proceed (e.g., 'generate', 'yes include everything', 'save this', 'update workspace' and similar things), you MUST synthesize the required information from the ENTIRE conversation history provided. Do not re-ask for information you already received in previous turns.\n" +
	"Parse the history to gather arguments for `generate_job_sections` and call it.\n" +
	"If essential information (like target_role) is still missing even after reviewing history, ask ONLY for the missing pieces.\n" +
	"Only call the function or ask clarifying questions.\n" +
	"Function: `generate_job_sections`."

const jobSectionsTurnTemplate = "Current state of the job description, including the job role title, a short description and its sections (about the company, responsibilities, required qualifications, preferred qualifications, benefits, additional information), is either empty or as shown below:\n" +
	"%s\n\n" +
	"User Message:\n%s\n\n" +
	"Your Task:\n" +
	"1. Analyze the user's message and the full conversation history.\n" +
	"2. If the user asks to generate/create/save the job description OR confirms to proceed:\n" +
	"   a. Review the entire conversation history provided in the context.\n" +
	"   b. Gather all necessary parameters for the `generate_job_sections` function (target_role, company_context, responsibilities, required_qualifications, preferred_qualifications, benefits, additional_information) by extracting them from the history.\n" +
	"   c. Synthesize these details. For example, combine different messages about responsibilities into one list.\n" +
	"   d. If, after reviewing history, a critical parameter like `target_role` is still missing, ask the user specifically for it.\n" +
	"   e. Otherwise, immediately call the `generate_job_sections` function with all the synthesized arguments collected from the history.\n" +
	"3. If the user provides new information but doesn't ask to generate, acknowledge it and wait for further instruction or ask clarifying questions if needed.\n" +
	"4. Do NOT re-ask for information clearly present in the conversation history.\n\n" +
	"Function to Call When Ready: `generate_job_sections`"

const sequenceSystemPrompt = "You are Magnecruit AI creating outreach sequences. Your sole purpose is to maintain and output the complete state of the sequence as a JSON object.\n" +
	"You will receive the current state (if any) and the user's latest message.\n" +
	"Analyze the message, update the state internally, and then output ONLY the complete, updated JSON object enclosed in ```json ... ``` markers.\n" +
	"Adhere strictly to the structure: {\"name\": \"...\", \"description\": \"...\", \"steps\": [{\"step_number\": N, \"heading\": \"...\", \"channel\": \"...\", \"delay_days\": N, \"subject\": \"...\", \"body\": \"...\"}, ...]}.\n" +
	"Ensure steps are ordered correctly. If the user is still describing what they want and the sequence is not ready, ask clarifying questions as plain text instead of emitting JSON.\n" +
	"When you do emit the sequence, do not include any other text, greetings, or explanations."

const sequenceTurnTemplate = "Current State:\n%s\n\nUser Message:\n%s\n\n" +
	"ACTION: Output the complete, updated JSON state now based on the user message and the current state provided above. Remember to ONLY output the JSON block."

// confirmationPrompt asks the model for a short follow-up message after a
// workspace update succeeded. The structured payload stays in the message
// history; this text is what the user actually reads.
const confirmationPrompt = "The workspace content was just successfully updated based on the structured output you produced.\n" +
	"Please provide a very brief, natural language confirmation message for the user (for example, 'Okay, I've updated the job sections as requested.', 'Got it, the workspace is updated.', etc.).\n" +
	"Keep it short and conversational. ONLY output the confirmation message."

const linkedInSystemPrompt = "You are Magnec AI, an expert recruitment copywriter. You write engaging LinkedIn posts announcing open positions.\n" +
	"Write in the requested tone and length. Structure the post for LinkedIn: a strong hook, short paragraphs, a clear call to action and a few relevant hashtags at the end.\n" +
	"ONLY output the post text, with no preamble or explanations."

const linkedInPromptTemplate = "Write a LinkedIn post announcing the following open role.\n\n" +
	"Job Title: %s\n" +
	"Company: %s\n" +
	"Role Summary: %s\n" +
	"About the Company: %s\n" +
	"Key Responsibilities: %s\n" +
	"Key Qualifications: %s\n\n" +
	"Tone: %s\n" +
	"Length: %s\n\n" +
	"Include hashtags such as #%s and #%s where they fit naturally."

// PlanTurn assembles the model request for one incoming chat message. The
// active workspace view selects the prompt strategy; stateJSON carries the
// current workspace content serialized for the model (empty means none).
func PlanTurn(view, userMessage, stateJSON string) Plan {
	state := strings.TrimSpace(stateJSON)
	if state == "" {
		state = "null"
	}

	switch view {
	case ViewJobSections:
		return Plan{
			Mode:   ModeJobTool,
			System: jobSectionsSystemPrompt,
			Prompt: fmt.Sprintf(jobSectionsTurnTemplate, state, userMessage),
			Tools:  []ai.ToolDecl{GenerateJobSectionsTool()},
		}
	case ViewJobSequence:
		return Plan{
			Mode:   ModeSequenceJSON,
			System: sequenceSystemPrompt,
			Prompt: fmt.Sprintf(sequenceTurnTemplate, state, userMessage),
		}
	default:
		return Plan{
			Mode:   ModeChat,
			Prompt: fmt.Sprintf("%s\n\nLatest User Message: %s", generalChatPrompt, userMessage),
		}
	}
}

// ConfirmationPlan builds the follow-up request that turns a successful
// workspace update into a short user-facing acknowledgement.
func ConfirmationPlan() Plan {
	return Plan{Mode: ModeChat, Prompt: confirmationPrompt}
}

// LinkedInPostPlan builds the request for a LinkedIn post from saved job
// details. All inputs are plain text; empty optional fields should be
// substituted by the caller before planning.
func LinkedInPostPlan(jobTitle, companyName, summary, aboutCompany, responsibilities, qualifications, tone, length string) Plan {
	companyHashtag := strings.NewReplacer(" ", "", ".", "", ",", "").Replace(companyName)
	titleHashtag := strings.ReplaceAll(jobTitle, " ", "")

	return Plan{
		Mode:   ModeChat,
		System: linkedInSystemPrompt,
		Prompt: fmt.Sprintf(linkedInPromptTemplate,
			jobTitle, companyName, summary, aboutCompany, responsibilities, qualifications,
			tone, length, companyHashtag, titleHashtag),
	}
}
