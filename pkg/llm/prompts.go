package llm

import (
	"fmt"

	"github.com/xhad/sitedocs/internal/models"
)

const taskExtractionPrompt = `You are an expert data extraction agent specializing in construction project schedules.

Extract all project tasks from the following document text. Each task should have:
- task_id: A unique integer ID (extract from ID column if available, or assign sequentially)
- task_name: The name/description of the task
- duration_days: Duration in days (convert from weeks/months if needed)
- start_date: Start date in YYYY-MM-DD format
- finish_date: Finish date in YYYY-MM-DD format

Document Text:
%s

Return the extracted tasks as a JSON array. Each task should be a JSON object with the exact fields specified above.
If a date is not in YYYY-MM-DD format, convert it. If duration is not in days, convert it appropriately.

Example output format:
[
    {
        "task_id": 1,
        "task_name": "Install CMU Block Walls",
        "duration_days": 30,
        "start_date": "2024-01-01",
        "finish_date": "2024-01-31"
    }
]

Extract all tasks found in the document. Return only valid JSON, no additional text.`

const costExtractionPrompt = `You are an expert data extraction agent specializing in construction cost analysis.

Extract all cost items from the following document text. Each cost item should have:
- item_name: Description of the cost item
- quantity: Numeric quantity (extract the number, handle units like 't', 'm3', etc.)
- unit_price: Unit price
- total_cost: Total cost (calculate as quantity * unit_price if not directly provided)
- cost_type: Either "foreign" or "local"

Document Text:
%s

Return the extracted cost items as a JSON array. Each item should be a JSON object with the exact fields specified above.
Extract numeric values accurately.

Example output format:
[
    {
        "item_name": "Bearing Pile",
        "quantity": 736.2,
        "unit_price": 79000,
        "total_cost": 58159800,
        "cost_type": "foreign"
    }
]

Extract all cost items found in the document. Return only valid JSON, no additional text.`

const ruleExtractionPrompt = `You are an expert data extraction agent specializing in regulatory documents.

Extract all regulatory rules and clarifications from the following circular document text. Each rule should have:
- rule_id: A unique identifier (e.g., Q1, Q2, Q17, or extract from question numbers)
- rule_summary: A concise summary of the rule or clarification
- measurement_basis: Key measurement principle and associated rule (e.g., "middle of the external wall")

Document Text:
%s

Return the extracted rules as a JSON array. Each rule should be a JSON object with the exact fields specified above.

Example output format:
[
    {
        "rule_id": "Q1",
        "rule_summary": "Definition of GFA calculation method",
        "measurement_basis": "middle of the external wall"
    }
]

Extract all rules and clarifications found in the document. Return only valid JSON, no additional text.`

const extractionSystemPrompt = "You are a data extraction expert. Extract %s from the document and return valid JSON only."

// promptFor builds the system and user prompts for a document type. The
// second return is false for document types with no extraction prompt.
func promptFor(docType, documentText string) (system, user string, ok bool) {
	switch models.NormalizeDocType(docType) {
	case models.DocTypeSchedule:
		return fmt.Sprintf(extractionSystemPrompt, "project tasks"),
			fmt.Sprintf(taskExtractionPrompt, documentText), true
	case models.DocTypeCost:
		return fmt.Sprintf(extractionSystemPrompt, "cost items"),
			fmt.Sprintf(costExtractionPrompt, documentText), true
	case models.DocTypeRegulation:
		return fmt.Sprintf(extractionSystemPrompt, "regulatory rules"),
			fmt.Sprintf(ruleExtractionPrompt, documentText), true
	}
	return "", "", false
}
