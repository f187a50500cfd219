// Package parser turns raw document text into a canonical candidate.Record
// via a single call to the generative model. The model response is recovered
// defensively: every field has a deterministic default, so malformed or
// partial output can never propagate nulls into the record.
package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/resumix/cv-ranker/internal/ai"
	"github.com/resumix/cv-ranker/internal/candidate"
	"github.com/resumix/cv-ranker/internal/logger"
	"github.com/resumix/cv-ranker/internal/utils"
)

//go:embed prompt.md
var promptTemplate string

// MinTextLength is the minimum trimmed document length worth sending to the
// model. The gate itself is applied by the batch orchestrator, not here.
const MinTextLength = 50

const defaultMaxLogLength = 200

// ErrParseFailed marks model output that could not be coerced into the
// record schema after all recovery attempts. The raw response is attached
// for diagnostics.
var ErrParseFailed = errors.New("model response is not parseable")

// Parser extracts structured candidate profiles from plain text.
type Parser struct {
	generator ai.Generator
	log       *zap.Logger
	maxLogLen int
}

// New creates a Parser on top of the given content generator.
func New(generator ai.Generator, log *zap.Logger) *Parser {
	return &Parser{
		generator: generator,
		log:       log,
		maxLogLen: defaultMaxLogLength,
	}
}

// ExtractProfile asks the model to structure the document text and coerces
// the response into a canonical record. The model is invoked exactly once;
// retries are the caller's concern.
func (p *Parser) ExtractProfile(ctx context.Context, text, fileName string) (*candidate.Record, error) {
	prompt := buildPrompt(text)

	p.log.Debug("model extraction request",
		zap.String(logger.FieldFile, fileName),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
	)

	raw, err := p.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	p.log.Debug("model extraction response",
		zap.String(logger.FieldFile, fileName),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, p.maxLogLen)),
	)

	fields, err := recoverJSON(raw)
	if err != nil {
		return nil, err
	}

	record := coerceRecord(fields)
	record.ID = uuid.NewString()
	record.SourceFileName = fileName
	record.RawText = text

	return record, nil
}

func buildPrompt(text string) string {
	return strings.ReplaceAll(promptTemplate, "{{CV_TEXT}}", text)
}

// recoverJSON coerces a raw model response into a JSON object, in order:
// strip markdown fences, structural parse, and finally brace-matching the
// first top-level object out of surrounding prose.
func recoverJSON(raw string) (map[string]any, error) {
	cleaned := stripFences(raw)

	var fields map[string]any
	if err := json.Unmarshal([]byte(cleaned), &fields); err == nil {
		return fields, nil
	}

	span, ok := firstObjectSpan(cleaned)
	if ok {
		if err := json.Unmarshal([]byte(span), &fields); err == nil {
			return fields, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrParseFailed, utils.TruncateForLog(raw, 500))
}

func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

// firstObjectSpan returns the first balanced top-level {...} span. Braces
// inside JSON strings are ignored while matching.
func firstObjectSpan(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}

// coerceRecord maps loosely typed model output onto the canonical shape.
// Missing or mistyped fields get their documented defaults.
func coerceRecord(fields map[string]any) *candidate.Record {
	record := &candidate.Record{
		Name:      coerceString(fields["name"]),
		Email:     coerceString(fields["email"]),
		Phone:     coerceString(fields["phone"]),
		Summary:   coerceString(fields["summary"]),
		Skills:    coerceStringSlice(fields["skills"]),
		Companies: coerceCompanies(fields["companies"]),
	}

	if record.Name == "" {
		record.Name = candidate.UnknownName
	}
	if record.Summary == "" {
		record.Summary = candidate.NoSummary
	}

	years := coerceFloat(fields["yearsOfExperience"])
	if years < 0 {
		years = 0
	}
	record.YearsOfExperience = years

	return record
}

func coerceCompanies(v any) []candidate.Employment {
	items, ok := v.([]any)
	if !ok {
		return []candidate.Employment{}
	}

	companies := make([]candidate.Employment, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}

		employment := candidate.Employment{
			CompanyName:  coerceString(entry["name"]),
			Position:     coerceString(entry["position"]),
			DurationText: coerceString(entry["duration"]),
		}

		if employment.CompanyName == "" {
			employment.CompanyName = candidate.UnknownCompany
		}
		if employment.Position == "" {
			employment.Position = candidate.UnknownPosition
		}
		if employment.DurationText == "" {
			employment.DurationText = candidate.NoDuration
		}

		if achievements := coerceStringSlice(entry["achievements"]); len(achievements) > 0 {
			employment.Achievements = achievements
		}

		companies = append(companies, employment)
	}

	return companies
}

func coerceStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := coerceString(item); s != "" {
			out = append(out, s)
		}
	}

	return out
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		return ""
	}
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
