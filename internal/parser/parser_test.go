package parser

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/resumix/cv-ranker/internal/candidate"
)

type stubGenerator struct {
	response   string
	err        error
	lastPrompt string
	calls      int
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.calls++
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

const fullResponse = `{
  "name": "Jane Doe",
  "email": "jane@example.com",
  "phone": "+1 555 0100",
  "yearsOfExperience": 5.5,
  "skills": ["Go", "Kubernetes"],
  "companies": [
    {
      "name": "Acme",
      "position": "Senior Engineer",
      "duration": "Jan 2020 - Present",
      "achievements": ["Led migration to Go"]
    }
  ],
  "summary": "Seasoned backend engineer."
}`

func TestExtractProfile(t *testing.T) {
	t.Parallel()

	stub := &stubGenerator{response: fullResponse}
	p := New(stub, zap.NewNop())

	record, err := p.ExtractProfile(context.Background(), "full cv text", "jane.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stub.calls != 1 {
		t.Fatalf("expected exactly one model call, got %d", stub.calls)
	}

	if !strings.Contains(stub.lastPrompt, "full cv text") {
		t.Fatalf("expected document text embedded in prompt")
	}

	if record.ID == "" {
		t.Fatal("expected generated id")
	}
	if record.SourceFileName != "jane.pdf" {
		t.Fatalf("unexpected file name: %q", record.SourceFileName)
	}
	if record.RawText != "full cv text" {
		t.Fatalf("expected raw text retained, got %q", record.RawText)
	}
	if record.Name != "Jane Doe" {
		t.Fatalf("unexpected name: %q", record.Name)
	}
	if record.YearsOfExperience != 5.5 {
		t.Fatalf("unexpected years: %v", record.YearsOfExperience)
	}
	if len(record.Companies) != 1 {
		t.Fatalf("expected 1 company, got %d", len(record.Companies))
	}
	if record.Companies[0].DurationText != "Jan 2020 - Present" {
		t.Fatalf("duration text must be preserved verbatim, got %q", record.Companies[0].DurationText)
	}
	if len(record.Companies[0].Achievements) != 1 {
		t.Fatalf("expected achievements kept, got %v", record.Companies[0].Achievements)
	}
}

func TestExtractProfileFencedResponseMatchesUnfenced(t *testing.T) {
	t.Parallel()

	plain := &stubGenerator{response: fullResponse}
	fenced := &stubGenerator{response: "```json\n" + fullResponse + "\n```"}

	plainRecord, err := New(plain, zap.NewNop()).ExtractProfile(context.Background(), "text", "a.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fencedRecord, err := New(fenced, zap.NewNop()).ExtractProfile(context.Background(), "text", "a.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// IDs differ per extraction; everything else must be identical.
	fencedRecord.ID = plainRecord.ID
	if plainRecord.Name != fencedRecord.Name ||
		plainRecord.Summary != fencedRecord.Summary ||
		len(plainRecord.Skills) != len(fencedRecord.Skills) ||
		len(plainRecord.Companies) != len(fencedRecord.Companies) {
		t.Fatalf("fenced and unfenced records differ: %+v vs %+v", plainRecord, fencedRecord)
	}
}

func TestExtractProfileRecoversObjectFromProse(t *testing.T) {
	t.Parallel()

	stub := &stubGenerator{response: "Sure! Here is the extracted profile:\n" + fullResponse + "\nLet me know if you need anything else."}
	p := New(stub, zap.NewNop())

	record, err := p.ExtractProfile(context.Background(), "text", "a.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if record.Name != "Jane Doe" {
		t.Fatalf("unexpected name: %q", record.Name)
	}
}

func TestExtractProfileGarbageIsParseFailed(t *testing.T) {
	t.Parallel()

	stub := &stubGenerator{response: "I could not process the document, sorry."}
	p := New(stub, zap.NewNop())

	record, err := p.ExtractProfile(context.Background(), "text", "a.txt")
	if !errors.Is(err, ErrParseFailed) {
		t.Fatalf("expected ErrParseFailed, got %v", err)
	}
	if record != nil {
		t.Fatalf("expected no partial record, got %+v", record)
	}
	if !strings.Contains(err.Error(), "could not process") {
		t.Fatalf("expected raw response attached to error, got %q", err.Error())
	}
}

func TestExtractProfileGeneratorErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("model unavailable")
	stub := &stubGenerator{err: boom}
	p := New(stub, zap.NewNop())

	if _, err := p.ExtractProfile(context.Background(), "text", "a.txt"); !errors.Is(err, boom) {
		t.Fatalf("expected generator error, got %v", err)
	}
}

func TestExtractProfileDefaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response string
		check    func(t *testing.T, r *candidate.Record)
	}{
		{
			name:     "empty object gets all defaults",
			response: `{}`,
			check: func(t *testing.T, r *candidate.Record) {
				if r.Name != candidate.UnknownName {
					t.Fatalf("expected sentinel name, got %q", r.Name)
				}
				if r.Summary != candidate.NoSummary {
					t.Fatalf("expected sentinel summary, got %q", r.Summary)
				}
				if r.Skills == nil || len(r.Skills) != 0 {
					t.Fatalf("expected empty skills slice, got %v", r.Skills)
				}
				if r.Companies == nil || len(r.Companies) != 0 {
					t.Fatalf("expected empty companies slice, got %v", r.Companies)
				}
				if r.Email != "" || r.Phone != "" {
					t.Fatalf("optional fields must stay absent, got %q/%q", r.Email, r.Phone)
				}
			},
		},
		{
			name:     "null name falls back to sentinel",
			response: `{"name": null, "summary": "ok summary"}`,
			check: func(t *testing.T, r *candidate.Record) {
				if r.Name != candidate.UnknownName {
					t.Fatalf("expected sentinel name, got %q", r.Name)
				}
			},
		},
		{
			name:     "non-array skills treated as empty",
			response: `{"skills": "Go, Kubernetes"}`,
			check: func(t *testing.T, r *candidate.Record) {
				if len(r.Skills) != 0 {
					t.Fatalf("expected empty skills, got %v", r.Skills)
				}
			},
		},
		{
			name:     "company entry defaults",
			response: `{"companies": [{}]}`,
			check: func(t *testing.T, r *candidate.Record) {
				if len(r.Companies) != 1 {
					t.Fatalf("expected 1 company, got %d", len(r.Companies))
				}
				company := r.Companies[0]
				if company.CompanyName != candidate.UnknownCompany {
					t.Fatalf("expected company sentinel, got %q", company.CompanyName)
				}
				if company.Position != candidate.UnknownPosition {
					t.Fatalf("expected position sentinel, got %q", company.Position)
				}
				if company.DurationText != candidate.NoDuration {
					t.Fatalf("expected duration sentinel, got %q", company.DurationText)
				}
				if company.Achievements != nil {
					t.Fatalf("expected absent achievements, got %v", company.Achievements)
				}
			},
		},
		{
			name:     "years as string is coerced",
			response: `{"yearsOfExperience": "7"}`,
			check: func(t *testing.T, r *candidate.Record) {
				if r.YearsOfExperience != 7 {
					t.Fatalf("expected 7 years, got %v", r.YearsOfExperience)
				}
			},
		},
		{
			name:     "unparsable years default to zero",
			response: `{"yearsOfExperience": "about five"}`,
			check: func(t *testing.T, r *candidate.Record) {
				if r.YearsOfExperience != 0 {
					t.Fatalf("expected 0 years, got %v", r.YearsOfExperience)
				}
			},
		},
		{
			name:     "negative years clamp to zero",
			response: `{"yearsOfExperience": -3}`,
			check: func(t *testing.T, r *candidate.Record) {
				if r.YearsOfExperience != 0 {
					t.Fatalf("expected clamped years, got %v", r.YearsOfExperience)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stub := &stubGenerator{response: tt.response}
			record, err := New(stub, zap.NewNop()).ExtractProfile(context.Background(), "text", "cv.txt")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			tt.check(t, record)
		})
	}
}

func TestFirstObjectSpan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		expect string
		found  bool
	}{
		{
			name:   "plain object",
			input:  `{"a": 1}`,
			expect: `{"a": 1}`,
			found:  true,
		},
		{
			name:   "object inside prose",
			input:  `result: {"a": {"b": 2}} trailing`,
			expect: `{"a": {"b": 2}}`,
			found:  true,
		},
		{
			name:   "braces inside strings ignored",
			input:  `{"text": "has } and { inside"} extra`,
			expect: `{"text": "has } and { inside"}`,
			found:  true,
		},
		{
			name:  "unbalanced object",
			input: `{"a": 1`,
			found: false,
		},
		{
			name:  "no object at all",
			input: `plain prose`,
			found: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := firstObjectSpan(tt.input)
			if ok != tt.found {
				t.Fatalf("found = %v, expected %v", ok, tt.found)
			}
			if ok && got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}
