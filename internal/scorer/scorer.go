// Package scorer computes the 0-100 match score used to rank candidates
// against filter criteria. Scoring is deterministic and side-effect-free; it
// ranks, it never filters.
package scorer

import (
	"math"
	"sort"
	"strings"

	"github.com/resumix/cv-ranker/internal/candidate"
)

// Weighting: experience up to 50 points, skills up to 40, a free-text
// keyword hit adds the last 10.
const (
	experienceWeight  = 50.0
	skillsWeight      = 40.0
	keywordWeight     = 10.0
	belowMinPenalty   = 5.0
	aboveMaxPenalty   = 3.0
	unboundedMaxYears = 100.0
	unboundedMinYears = 0.0
)

// Score rates how well a record matches the criteria, as an integer in
// [0,100]. A record exactly at the experience bounds receives the full
// experience term.
func Score(record *candidate.Record, criteria candidate.FilterCriteria) int {
	score := experienceTerm(record, criteria) +
		skillsTerm(record, criteria) +
		keywordTerm(record, criteria)

	rounded := int(math.Round(score))
	if rounded < 0 {
		return 0
	}
	if rounded > 100 {
		return 100
	}
	return rounded
}

func experienceTerm(record *candidate.Record, criteria candidate.FilterCriteria) float64 {
	if criteria.MinExperience == nil && criteria.MaxExperience == nil {
		return 0
	}

	min := unboundedMinYears
	if criteria.MinExperience != nil {
		min = *criteria.MinExperience
	}
	max := unboundedMaxYears
	if criteria.MaxExperience != nil {
		max = *criteria.MaxExperience
	}

	years := record.YearsOfExperience
	switch {
	case years >= min && years <= max:
		return experienceWeight
	case years < min:
		return math.Max(0, experienceWeight-belowMinPenalty*(min-years))
	default:
		return math.Max(0, experienceWeight-aboveMaxPenalty*(years-max))
	}
}

func skillsTerm(record *candidate.Record, criteria candidate.FilterCriteria) float64 {
	if len(criteria.Skills) == 0 {
		return 0
	}

	candidateSkills := make([]string, len(record.Skills))
	for i, skill := range record.Skills {
		candidateSkills[i] = strings.ToLower(skill)
	}

	matched := 0
	for _, wanted := range criteria.Skills {
		wanted = strings.ToLower(wanted)
		for _, have := range candidateSkills {
			if strings.Contains(have, wanted) {
				matched++
				break
			}
		}
	}

	return skillsWeight * float64(matched) / float64(len(criteria.Skills))
}

func keywordTerm(record *candidate.Record, criteria candidate.FilterCriteria) float64 {
	query := strings.ToLower(strings.TrimSpace(criteria.SearchQuery))
	if query == "" {
		return 0
	}

	if strings.Contains(strings.ToLower(record.Summary), query) {
		return keywordWeight
	}
	for _, skill := range record.Skills {
		if strings.Contains(strings.ToLower(skill), query) {
			return keywordWeight
		}
	}

	return 0
}

// Rank scores every record against the criteria and returns copies sorted by
// descending score, with the transient MatchScore annotation attached. The
// input records are never mutated.
func Rank(records []*candidate.Record, criteria candidate.FilterCriteria) []*candidate.Record {
	ranked := make([]*candidate.Record, len(records))
	for i, record := range records {
		copied := *record
		score := Score(record, criteria)
		copied.MatchScore = &score
		ranked[i] = &copied
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return *ranked[i].MatchScore > *ranked[j].MatchScore
	})

	return ranked
}
