package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/xhad/sitedocs/internal/models"
)

const dateLayout = "2006-01-02"

// FieldError is one field-level validation failure.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// JSON-Schema (draft 2020-12) constraints per record type. Structural checks
// live here; cross-field invariants (finish >= start) and enum normalization
// are applied during coercion.
const taskSchema = `{
	"type": "object",
	"required": ["task_id", "task_name", "duration_days", "start_date", "finish_date"],
	"properties": {
		"task_id": {"type": "integer"},
		"task_name": {"type": "string", "minLength": 1},
		"duration_days": {"type": "integer", "minimum": 0},
		"start_date": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
		"finish_date": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"}
	}
}`

const costItemSchema = `{
	"type": "object",
	"required": ["item_name", "quantity", "unit_price", "total_cost", "cost_type"],
	"properties": {
		"item_name": {"type": "string", "minLength": 1},
		"quantity": {"type": "number", "minimum": 0},
		"unit_price": {"type": "number", "minimum": 0},
		"total_cost": {"type": "number", "minimum": 0},
		"cost_type": {"type": "string", "minLength": 1}
	}
}`

const ruleSchema = `{
	"type": "object",
	"required": ["rule_id", "rule_summary", "measurement_basis"],
	"properties": {
		"rule_id": {"type": "string", "minLength": 1},
		"rule_summary": {"type": "string", "minLength": 1},
		"measurement_basis": {"type": "string"}
	}
}`

// Validator validates raw field mappings against the record schemas and
// coerces them into typed records. Validation is pure; a Validator is safe
// for concurrent use.
type Validator struct {
	task *jsonschema.Schema
	cost *jsonschema.Schema
	rule *jsonschema.Schema
}

func New() (*Validator, error) {
	v := &Validator{}
	var err error
	if v.task, err = jsonschema.CompileString("task.json", taskSchema); err != nil {
		return nil, fmt.Errorf("compiling task schema: %w", err)
	}
	if v.cost, err = jsonschema.CompileString("cost_item.json", costItemSchema); err != nil {
		return nil, fmt.Errorf("compiling cost item schema: %w", err)
	}
	if v.rule, err = jsonschema.CompileString("rule.json", ruleSchema); err != nil {
		return nil, fmt.Errorf("compiling rule schema: %w", err)
	}
	return v, nil
}

// Task validates and coerces one raw mapping into a ProjectTask.
func (v *Validator) Task(raw map[string]interface{}) (models.ProjectTask, []FieldError) {
	m := normalize(raw, nil, []string{"task_id", "duration_days"})
	if errs := check(v.task, m); len(errs) > 0 {
		return models.ProjectTask{}, errs
	}

	var errs []FieldError
	start, err := time.Parse(dateLayout, asString(m["start_date"]))
	if err != nil {
		errs = append(errs, FieldError{"start_date", "not a valid date"})
	}
	finish, err := time.Parse(dateLayout, asString(m["finish_date"]))
	if err != nil {
		errs = append(errs, FieldError{"finish_date", "not a valid date"})
	}
	if len(errs) == 0 && finish.Before(start) {
		errs = append(errs, FieldError{"finish_date", "finish_date must not be before start_date"})
	}
	if len(errs) > 0 {
		return models.ProjectTask{}, errs
	}

	return models.ProjectTask{
		TaskID:       int(asNumber(m["task_id"])),
		TaskName:     asString(m["task_name"]),
		DurationDays: int(asNumber(m["duration_days"])),
		StartDate:    start,
		FinishDate:   finish,
	}, nil
}

// CostItem validates and coerces one raw mapping into a CostItem. The
// cost_type value is normalized ("Foreign cost" -> foreign).
func (v *Validator) CostItem(raw map[string]interface{}) (models.CostItem, []FieldError) {
	m := normalize(raw, []string{"quantity", "unit_price", "total_cost"}, nil)
	if errs := check(v.cost, m); len(errs) > 0 {
		return models.CostItem{}, errs
	}

	costType, err := models.ParseCostType(asString(m["cost_type"]))
	if err != nil {
		return models.CostItem{}, []FieldError{{"cost_type", err.Error()}}
	}

	return models.CostItem{
		ItemName:  asString(m["item_name"]),
		Quantity:  asNumber(m["quantity"]),
		UnitPrice: asNumber(m["unit_price"]),
		TotalCost: asNumber(m["total_cost"]),
		CostType:  costType,
	}, nil
}

// Rule validates and coerces one raw mapping into a RegulatoryRule.
func (v *Validator) Rule(raw map[string]interface{}) (models.RegulatoryRule, []FieldError) {
	m := normalize(raw, nil, nil)
	if errs := check(v.rule, m); len(errs) > 0 {
		return models.RegulatoryRule{}, errs
	}

	return models.RegulatoryRule{
		RuleID:           asString(m["rule_id"]),
		RuleSummary:      asString(m["rule_summary"]),
		MeasurementBasis: asString(m["measurement_basis"]),
	}, nil
}

// Validate dispatches on the document type and appends the coerced record to
// the record set. Unknown document types are a single field error.
func (v *Validator) Validate(docType string, raw map[string]interface{}, rs *models.RecordSet) []FieldError {
	switch models.NormalizeDocType(docType) {
	case models.DocTypeSchedule:
		task, errs := v.Task(raw)
		if len(errs) > 0 {
			return errs
		}
		rs.Tasks = append(rs.Tasks, task)
	case models.DocTypeCost:
		item, errs := v.CostItem(raw)
		if len(errs) > 0 {
			return errs
		}
		rs.Items = append(rs.Items, item)
	case models.DocTypeRegulation:
		rule, errs := v.Rule(raw)
		if len(errs) > 0 {
			return errs
		}
		rs.Rules = append(rs.Rules, rule)
	default:
		return []FieldError{{"document_type", fmt.Sprintf("unknown document type %q", docType)}}
	}
	return nil
}

// normalize copies the mapping and coerces string-typed numerics so that a
// model answering "79000" instead of 79000 still validates. intFields are
// additionally floored to whole numbers when they arrive as float64 (JSON
// decoding yields float64 for every number).
func normalize(raw map[string]interface{}, numFields, intFields []string) map[string]interface{} {
	m := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		m[k] = v
	}
	for _, k := range numFields {
		if s, ok := m[k].(string); ok {
			if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
				m[k] = f
			}
		}
	}
	for _, k := range intFields {
		switch t := m[k].(type) {
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
				m[k] = n
			}
		case float64:
			if t == float64(int(t)) {
				m[k] = int(t)
			}
		}
	}
	return m
}

func check(sch *jsonschema.Schema, m map[string]interface{}) []FieldError {
	err := sch.Validate(m)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []FieldError{{"(root)", err.Error()}}
	}
	return flatten(ve)
}

// flatten collects the leaf causes of a validation error, one FieldError per
// offending instance location.
func flatten(ve *jsonschema.ValidationError) []FieldError {
	if len(ve.Causes) == 0 {
		field := strings.TrimPrefix(ve.InstanceLocation, "/")
		if field == "" {
			field = "(root)"
		}
		return []FieldError{{field, ve.Message}}
	}
	var errs []FieldError
	for _, cause := range ve.Causes {
		errs = append(errs, flatten(cause)...)
	}
	return errs
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asNumber(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	}
	return 0
}
