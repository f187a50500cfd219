package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/resumix/cv-ranker/internal/batch"
	"github.com/resumix/cv-ranker/internal/candidate"
	"github.com/resumix/cv-ranker/internal/parser"
)

type stubGenerator struct {
	response string
}

func (s *stubGenerator) GenerateContent(_ context.Context, _ string) (string, error) {
	return s.response, nil
}

const modelResponse = `{
  "name": "Jane Doe",
  "yearsOfExperience": 5,
  "skills": ["Go", "Kubernetes"],
  "companies": [{"name": "Acme", "position": "Engineer", "duration": "Jan 2020 - Present"}],
  "summary": "Backend engineer focused on platform work."
}`

func newTestServer(t *testing.T) *Server {
	t.Helper()

	profiles := parser.New(&stubGenerator{response: modelResponse}, zap.NewNop())
	orchestrator := batch.New(profiles, zap.NewNop(), 2, 0)

	return New(orchestrator, zap.NewNop())
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for name, content := range files {
		part, err := writer.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	return body, writer.FormDataContentType()
}

func TestUploadBatchContract(t *testing.T) {
	server := newTestServer(t)
	router := server.Router()

	resumeText := "Jane Doe, backend engineer. " + strings.Repeat("Go services at scale. ", 3)
	body, contentType := multipartBody(t, map[string]string{
		"jane.txt":  resumeText,
		"photo.png": "not a resume",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes", body)
	req.Header.Set("Content-Type", contentType)
	recorder := httptest.NewRecorder()

	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var resp struct {
		Success        bool                `json:"success"`
		Data           []*candidate.Record `json:"data"`
		Errors         []batch.FileError   `json:"errors"`
		ProcessedCount int                 `json:"processedCount"`
		TotalCount     int                 `json:"totalCount"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if !resp.Success {
		t.Fatal("expected success=true")
	}
	if resp.TotalCount != 2 || resp.ProcessedCount != 1 {
		t.Fatalf("unexpected counts: processed=%d total=%d", resp.ProcessedCount, resp.TotalCount)
	}
	if len(resp.Errors) != 1 || resp.Errors[0].FileName != "photo.png" {
		t.Fatalf("expected one error for photo.png, got %+v", resp.Errors)
	}
	if len(resp.Data) != 1 || resp.Data[0].Name != "Jane Doe" {
		t.Fatalf("unexpected records: %+v", resp.Data)
	}
	if resp.Data[0].Companies[0].DurationText != "Jan 2020 - Present" {
		t.Fatalf("duration text not preserved: %q", resp.Data[0].Companies[0].DurationText)
	}
}

func TestUploadNoFilesIsRequestLevelFailure(t *testing.T) {
	server := newTestServer(t)
	router := server.Router()

	body, contentType := multipartBody(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes", body)
	req.Header.Set("Content-Type", contentType)
	recorder := httptest.NewRecorder()

	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}

	var resp failureResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Success {
		t.Fatal("expected success=false")
	}
	if resp.Error == "" {
		t.Fatal("expected top-level error message")
	}
}

func TestCandidatesRanking(t *testing.T) {
	server := newTestServer(t)
	router := server.Router()

	// Seed an uploaded batch.
	resumeText := "Jane Doe, backend engineer. " + strings.Repeat("Go services at scale. ", 3)
	body, contentType := multipartBody(t, map[string]string{"jane.txt": resumeText})
	uploadReq := httptest.NewRequest(http.MethodPost, "/api/v1/resumes", body)
	uploadReq.Header.Set("Content-Type", contentType)
	router.ServeHTTP(httptest.NewRecorder(), uploadReq)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/candidates?minExperience=3&maxExperience=8&skills=go&q=platform", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var resp struct {
		Success bool                `json:"success"`
		Data    []*candidate.Record `json:"data"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if len(resp.Data) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(resp.Data))
	}
	if resp.Data[0].MatchScore == nil {
		t.Fatal("expected match score annotation")
	}
	if *resp.Data[0].MatchScore != 100 {
		t.Fatalf("expected score 100, got %d", *resp.Data[0].MatchScore)
	}
}

func TestCandidatesRejectsMalformedCriteria(t *testing.T) {
	server := newTestServer(t)
	router := server.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/candidates?minExperience=banana", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}
