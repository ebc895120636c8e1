package agent

import "github.com/magnecruit/backend/internal/ai"

// ToolGenerateJobSections is the function the model calls to materialize a
// structured job description in the workspace.
const ToolGenerateJobSections = "generate_job_sections"

// GenerateJobSectionsTool declares the job description generator. Parameter
// presence matters to the synchronizer: a key the model omits leaves the
// corresponding content untouched, while an empty value clears it.
func GenerateJobSectionsTool() ai.ToolDecl {
	return ai.ToolDecl{
		Name: ToolGenerateJobSections,
		Description: "Generate or update a structured job description with distinct sections like About the Company, " +
			"Responsibilities, Qualifications, Benefits, etc., based on user-provided details " +
			"(partially or completely missing sections).",
		Params: []ai.Param{
			{
				Name:        "target_role",
				Type:        ai.ParamString,
				Description: "The specific job title or role (e.g., 'Senior Software Engineer', 'Sales Manager', 'Customer Support Specialist' etc). This will be the main title of the job.",
			},
			{
				Name:        "target_role_description",
				Type:        ai.ParamString,
				Description: "A very short two liner and to the point description of the target job role. Used to indicate things like location, salary range, experience level, job type remote or hybrid etc.",
			},
			{
				Name:        "company_context",
				Type:        ai.ParamString,
				Description: "Information about the company, team, or mission. Used for the 'About the Company' section. This will be the first section of the job description.",
			},
			{
				Name:        "responsibilities",
				Type:        ai.ParamStringList,
				Description: "List of key job responsibilities for the 'Responsibilities' section. This will be the second section of the job description.",
			},
			{
				Name:        "required_qualifications",
				Type:        ai.ParamStringList,
				Description: "List of essential skills, experience, or education required for the role. Used for the 'Required Qualifications' section.",
			},
			{
				Name:        "preferred_qualifications",
				Type:        ai.ParamStringList,
				Description: "Optional. List of nice-to-have skills or qualifications for the 'Preferred Qualifications' section.",
			},
			{
				Name:        "benefits",
				Type:        ai.ParamStringList,
				Description: "Optional. List of benefits, perks, or compensation details for the 'Benefits and Offers' section.",
			},
			{
				Name:        "additional_information",
				Type:        ai.ParamString,
				Description: "Optional. Any other relevant information, like location, work policy, EEO statement, etc., for the 'Additional Information' section.",
			},
		},
	}
}
