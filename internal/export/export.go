// Package export renders finished candidate records into an XLSX report. It
// consumes records read-only; all fields are guaranteed present with their
// documented defaults, so no null-checks are needed beyond the optional ones.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/resumix/cv-ranker/internal/candidate"
	"github.com/resumix/cv-ranker/internal/duration"
)

const (
	candidatesSheet = "Candidates"
	employmentSheet = "Employment"
)

// Workbook builds an XLSX workbook with one row per candidate and a second
// sheet breaking out individual employments, including the derived
// years-of-experience view of each duration text.
func Workbook(records []*candidate.Record) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", candidatesSheet); err != nil {
		return nil, fmt.Errorf("rename candidates sheet: %w", err)
	}
	if _, err := f.NewSheet(employmentSheet); err != nil {
		return nil, fmt.Errorf("create employment sheet: %w", err)
	}

	header := []any{"Name", "Email", "Phone", "Experience", "Skills", "Companies", "Match Score", "Summary", "Source File"}
	if err := f.SetSheetRow(candidatesSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write candidates header: %w", err)
	}

	employmentHeader := []any{"Candidate", "Company", "Position", "Duration", "Years (derived)", "Years (label)"}
	if err := f.SetSheetRow(employmentSheet, "A1", &employmentHeader); err != nil {
		return nil, fmt.Errorf("write employment header: %w", err)
	}

	employmentRow := 2
	for i, record := range records {
		score := any("")
		if record.MatchScore != nil {
			score = *record.MatchScore
		}

		row := []any{
			record.Name,
			record.Email,
			record.Phone,
			duration.FormatYears(record.YearsOfExperience),
			strings.Join(record.Skills, ", "),
			len(record.Companies),
			score,
			record.Summary,
			record.SourceFileName,
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("candidates row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(candidatesSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write candidates row %d: %w", i+2, err)
		}

		for _, employment := range record.Companies {
			years := duration.YearsFromDuration(employment.DurationText)
			row := []any{
				record.Name,
				employment.CompanyName,
				employment.Position,
				employment.DurationText,
				years,
				duration.FormatYears(years),
			}

			cell, err := excelize.CoordinatesToCellName(1, employmentRow)
			if err != nil {
				return nil, fmt.Errorf("employment row %d: %w", employmentRow, err)
			}
			if err := f.SetSheetRow(employmentSheet, cell, &row); err != nil {
				return nil, fmt.Errorf("write employment row %d: %w", employmentRow, err)
			}
			employmentRow++
		}
	}

	return f, nil
}

// Write streams the XLSX report for the given records to w.
func Write(w io.Writer, records []*candidate.Record) error {
	f, err := Workbook(records)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}

	return nil
}

// WriteFile saves the XLSX report for the given records to path.
func WriteFile(path string, records []*candidate.Record) error {
	f, err := Workbook(records)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}

	return nil
}
