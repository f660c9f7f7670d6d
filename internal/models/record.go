package models

import (
	"fmt"
	"strings"
	"time"
)

// Document types understood by the extraction step.
const (
	DocTypeSchedule   = "schedule"
	DocTypeCost       = "cost"
	DocTypeRegulation = "regulation"
	DocTypeGeneral    = "general"
)

// NormalizeDocType maps loose document-type hints ("regulatory", "costing",
// "project schedule") onto the canonical document types.
func NormalizeDocType(hint string) string {
	h := strings.ToLower(hint)
	switch {
	case strings.Contains(h, "schedule") || strings.Contains(h, "project"):
		return DocTypeSchedule
	case strings.Contains(h, "cost"):
		return DocTypeCost
	case strings.Contains(h, "regulat") || strings.Contains(h, "ura") || strings.Contains(h, "gfa"):
		return DocTypeRegulation
	default:
		return DocTypeGeneral
	}
}

// CostType is the normalized cost classification. Source documents use
// variants like "Foreign cost" and "local cost"; the canonical values are
// the lowercase single words.
type CostType string

const (
	CostTypeForeign CostType = "foreign"
	CostTypeLocal   CostType = "local"
)

// ParseCostType normalizes a raw cost_type value. The trailing "cost" word
// and letter case are insignificant.
func ParseCostType(raw string) (CostType, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimSuffix(s, " cost")
	switch s {
	case "foreign":
		return CostTypeForeign, nil
	case "local":
		return CostTypeLocal, nil
	}
	return "", fmt.Errorf("cost_type must be foreign or local, got %q", raw)
}

// ProjectTask is one row of a project schedule document. Tasks are keyed by
// TaskID and upserted on re-extraction.
type ProjectTask struct {
	TaskID       int       `json:"task_id"`
	TaskName     string    `json:"task_name"`
	DurationDays int       `json:"duration_days"`
	StartDate    time.Time `json:"start_date"`
	FinishDate   time.Time `json:"finish_date"`
}

// CostItem is one row of a construction planning and costing document.
// Cost items have no natural key and are inserted append-only.
type CostItem struct {
	ItemName  string   `json:"item_name"`
	Quantity  float64  `json:"quantity"`
	UnitPrice float64  `json:"unit_price"`
	TotalCost float64  `json:"total_cost"`
	CostType  CostType `json:"cost_type"`
}

// RegulatoryRule is one clarification from a regulatory circular, keyed by
// RuleID (e.g. Q1, Q17) and upserted on re-extraction.
type RegulatoryRule struct {
	RuleID           string `json:"rule_id"`
	RuleSummary      string `json:"rule_summary"`
	MeasurementBasis string `json:"measurement_basis"`
}

// RecordSet carries the validated records of one extraction pass. At most one
// of the slices is populated, matching the document type.
type RecordSet struct {
	Tasks []ProjectTask
	Items []CostItem
	Rules []RegulatoryRule
}

// Len returns the number of records across all types.
func (rs RecordSet) Len() int {
	return len(rs.Tasks) + len(rs.Items) + len(rs.Rules)
}
