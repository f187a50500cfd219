// Package candidate defines the canonical structured profile produced by the
// extraction pipeline and the filter criteria it is ranked against.
package candidate

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Sentinel values used when the model omits a field. Consumers can rely on
// every non-optional field being populated with one of these instead of
// checking for empty strings.
const (
	UnknownName     = "Unknown"
	UnknownCompany  = "Unknown Company"
	UnknownPosition = "Unknown Position"
	NoDuration      = "N/A"
	NoSummary       = "No summary available"
)

// Employment is a single position held by the candidate. DurationText is kept
// as free-form text exactly as the model returned it; a numeric years value is
// derived on demand by the duration package, never stored here.
type Employment struct {
	CompanyName  string   `json:"name"`
	Position     string   `json:"position"`
	DurationText string   `json:"duration"`
	Achievements []string `json:"achievements,omitempty"`
}

// Record is a fully extracted candidate profile. It is created once per
// successfully processed file and is immutable afterwards, except for the
// transient MatchScore annotation attached during ranking.
type Record struct {
	ID                string       `json:"id"`
	SourceFileName    string       `json:"fileName"`
	Name              string       `json:"name"`
	Email             string       `json:"email,omitempty"`
	Phone             string       `json:"phone,omitempty"`
	YearsOfExperience float64      `json:"yearsOfExperience"`
	Skills            []string     `json:"skills"`
	Companies         []Employment `json:"companies"`
	Summary           string       `json:"summary"`
	RawText           string       `json:"rawText,omitempty"`
	MatchScore        *int         `json:"matchScore,omitempty"`
}

// FilterCriteria describes what a caller is looking for. Nil experience
// bounds mean "unconstrained"; an empty skills list contributes nothing to
// the score.
type FilterCriteria struct {
	MinExperience *float64 `json:"minExperience" mapstructure:"minExperience"`
	MaxExperience *float64 `json:"maxExperience" mapstructure:"maxExperience"`
	Skills        []string `json:"skills" mapstructure:"skills"`
	SearchQuery   string   `json:"searchQuery" mapstructure:"searchQuery"`
}

// ParseCriteria decodes loosely typed criteria (query params, form values,
// JSON maps) into FilterCriteria. Numeric bounds may arrive as strings; they
// are coerced rather than rejected.
func ParseCriteria(raw map[string]any) (*FilterCriteria, error) {
	criteria := &FilterCriteria{}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           criteria,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("build criteria decoder: %w", err)
	}

	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode filter criteria: %w", err)
	}

	return criteria, nil
}
