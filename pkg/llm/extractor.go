package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/xhad/sitedocs/internal/models"
	"github.com/xhad/sitedocs/internal/types"
	"github.com/xhad/sitedocs/pkg/schema"
)

var (
	jsonArrayRe  = regexp.MustCompile(`\[[\s\S]*\]`)
	jsonObjectRe = regexp.MustCompile(`\{[\s\S]*\}`)
)

// Extractor turns parsed document text into validated records via the
// text-generation service. Items that fail record validation are dropped and
// recorded as errors; a malformed row never blocks the rest.
type Extractor struct {
	generator types.Generator
	validator *schema.Validator
	logger    *slog.Logger
}

func NewExtractor(generator types.Generator) (*Extractor, error) {
	validator, err := schema.New()
	if err != nil {
		return nil, err
	}
	return &Extractor{
		generator: generator,
		validator: validator,
		logger:    slog.Default().With("component", "extractor"),
	}, nil
}

// Extract prompts the generator for the given document type, decodes the
// response and validates every item. The returned error strings cover both
// service-level failures (the whole call failed) and per-item rejections.
func (e *Extractor) Extract(ctx context.Context, text, docType string) (models.RecordSet, []string) {
	var rs models.RecordSet

	system, user, ok := promptFor(docType, text)
	if !ok {
		e.logger.Warn("no extraction prompt for document type", "docType", docType)
		return rs, nil
	}

	response, err := e.generator.Generate(ctx, system, user)
	if err != nil {
		return rs, []string{fmt.Sprintf("extraction failed: %v", err)}
	}

	items, err := decodeItems(response)
	if err != nil {
		// Keep a slice of the offending text for diagnostics.
		preview := response
		if len(preview) > 200 {
			preview = preview[:200]
		}
		return rs, []string{fmt.Sprintf("unparsable model response: %v (response preview: %q)", err, preview)}
	}

	var errs []string
	for i, item := range items {
		for _, ferr := range e.validator.Validate(docType, item, &rs) {
			errs = append(errs, fmt.Sprintf("item %d: %v", i, ferr))
		}
	}

	e.logger.Info("extraction complete",
		"docType", docType, "validated", rs.Len(), "rejected", len(errs))
	return rs, errs
}

// decodeItems recovers a JSON array of objects from a model response. Models
// wrap output in prose or code fences often enough that decoding tries, in
// order: the whole response, the first bracketed array, and a single object
// wrapped into a one-element array.
func decodeItems(response string) ([]map[string]interface{}, error) {
	text := strings.TrimSpace(response)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var items []map[string]interface{}
	if err := json.Unmarshal([]byte(text), &items); err == nil {
		return items, nil
	}

	if match := jsonArrayRe.FindString(text); match != "" {
		if err := json.Unmarshal([]byte(match), &items); err == nil {
			return items, nil
		}
	}

	if match := jsonObjectRe.FindString(text); match != "" {
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(match), &obj); err == nil {
			return []map[string]interface{}{obj}, nil
		}
	}

	return nil, fmt.Errorf("no JSON array found")
}
