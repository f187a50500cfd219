// Package server is the HTTP upload transport in front of the extraction
// pipeline. It collects raw file bytes from multipart requests, hands them to
// the batch orchestrator, and serves ranked views of the most recent batch.
// Records live in memory only and are replaced wholesale by each new upload.
package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/resumix/cv-ranker/internal/batch"
	"github.com/resumix/cv-ranker/internal/candidate"
	"github.com/resumix/cv-ranker/internal/export"
	"github.com/resumix/cv-ranker/internal/scorer"
)

// Server wires the batch orchestrator to HTTP handlers.
type Server struct {
	orchestrator *batch.Orchestrator
	log          *zap.Logger

	mu      sync.RWMutex
	records []*candidate.Record
}

// New creates a Server and its gin engine.
func New(orchestrator *batch.Orchestrator, log *zap.Logger) *Server {
	return &Server{
		orchestrator: orchestrator,
		log:          log,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	api.POST("/resumes", s.handleUpload)
	api.GET("/candidates", s.handleCandidates)
	api.GET("/candidates/export", s.handleExport)

	return router
}

type parseResponse struct {
	Success        bool                `json:"success"`
	Data           []*candidate.Record `json:"data"`
	Errors         []batch.FileError   `json:"errors,omitempty"`
	ProcessedCount int                 `json:"processedCount"`
	TotalCount     int                 `json:"totalCount"`
}

type failureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *Server) handleUpload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, failureResponse{Error: fmt.Sprintf("read multipart form: %v", err)})
		return
	}

	var files []batch.File
	for _, header := range form.File["files"] {
		file, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, failureResponse{Error: fmt.Sprintf("open %q: %v", header.Filename, err)})
			return
		}

		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, failureResponse{Error: fmt.Sprintf("read %q: %v", header.Filename, err)})
			return
		}

		files = append(files, batch.File{Name: header.Filename, Data: data})
	}

	result, err := s.orchestrator.Process(c.Request.Context(), files)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, batch.ErrNoFiles) {
			status = http.StatusBadRequest
		}

		s.log.Error("batch failed", zap.Error(err))
		c.JSON(status, failureResponse{Error: err.Error()})
		return
	}

	// A new upload replaces the previous batch entirely.
	s.mu.Lock()
	s.records = result.Records
	s.mu.Unlock()

	c.JSON(http.StatusOK, parseResponse{
		Success:        true,
		Data:           result.Records,
		Errors:         result.Errors,
		ProcessedCount: result.ProcessedCount,
		TotalCount:     result.TotalCount,
	})
}

func (s *Server) handleCandidates(c *gin.Context) {
	criteria, err := criteriaFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, failureResponse{Error: err.Error()})
		return
	}

	s.mu.RLock()
	records := s.records
	s.mu.RUnlock()

	ranked := scorer.Rank(records, *criteria)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    ranked,
		"count":   len(ranked),
	})
}

func (s *Server) handleExport(c *gin.Context) {
	criteria, err := criteriaFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, failureResponse{Error: err.Error()})
		return
	}

	s.mu.RLock()
	records := s.records
	s.mu.RUnlock()

	ranked := scorer.Rank(records, *criteria)

	c.Header("Content-Disposition", `attachment; filename="candidates.xlsx"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	if err := export.Write(c.Writer, ranked); err != nil {
		s.log.Error("export failed", zap.Error(err))
		c.Status(http.StatusInternalServerError)
	}
}

// criteriaFromQuery decodes ranking criteria from query parameters. Values
// arrive as strings and are coerced leniently.
func criteriaFromQuery(c *gin.Context) (*candidate.FilterCriteria, error) {
	raw := map[string]any{}

	if v, ok := c.GetQuery("minExperience"); ok {
		raw["minExperience"] = v
	}
	if v, ok := c.GetQuery("maxExperience"); ok {
		raw["maxExperience"] = v
	}
	if skills := c.QueryArray("skills"); len(skills) > 0 {
		raw["skills"] = skills
	}
	if v, ok := c.GetQuery("q"); ok {
		raw["searchQuery"] = v
	}

	return candidate.ParseCriteria(raw)
}
