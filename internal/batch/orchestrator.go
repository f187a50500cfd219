// Package batch fans an uploaded file set out over the extraction pipeline
// with bounded concurrency. One file's failure never aborts the batch: every
// per-file error is recovered into a structured diagnostic, while
// request-level faults (empty submission, missing provider credentials)
// propagate to the caller as a single failed response.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/resumix/cv-ranker/internal/ai"
	"github.com/resumix/cv-ranker/internal/candidate"
	"github.com/resumix/cv-ranker/internal/extract"
	"github.com/resumix/cv-ranker/internal/logger"
	"github.com/resumix/cv-ranker/internal/parser"
)

const (
	defaultConcurrency = 4

	stageValidate = "validate"
	stageExtract  = "extract"
	stageGate     = "length-gate"
	stageParse    = "parse"
)

var (
	// ErrNoFiles is returned before any processing when the submitted file
	// set is empty.
	ErrNoFiles = errors.New("no files provided")
	// ErrTooShort marks documents whose extracted text is below the minimum
	// useful length.
	ErrTooShort = errors.New("extracted text is too short")
)

// File is one uploaded document.
type File struct {
	Name string
	Data []byte
}

// FileError is a per-file diagnostic surfaced to the caller.
type FileError struct {
	FileName string `json:"fileName"`
	Error    string `json:"error"`
}

// Result aggregates a processed batch. ProcessedCount + len(Errors) always
// equals TotalCount.
type Result struct {
	Records        []*candidate.Record `json:"data"`
	Errors         []FileError         `json:"errors,omitempty"`
	ProcessedCount int                 `json:"processedCount"`
	TotalCount     int                 `json:"totalCount"`
}

// profileExtractor is the seam to the structured extractor.
type profileExtractor interface {
	ExtractProfile(ctx context.Context, text, fileName string) (*candidate.Record, error)
}

// Orchestrator runs the per-file pipeline: validate extension, extract text,
// length-gate, structured-extract.
type Orchestrator struct {
	profiles    profileExtractor
	log         *zap.Logger
	concurrency int
	fileTimeout time.Duration
}

// New creates an Orchestrator. Concurrency bounds the number of in-flight
// model calls; fileTimeout of zero disables per-file deadlines.
func New(profiles profileExtractor, log *zap.Logger, concurrency int, fileTimeout time.Duration) *Orchestrator {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	return &Orchestrator{
		profiles:    profiles,
		log:         log,
		concurrency: concurrency,
		fileTimeout: fileTimeout,
	}
}

// Process runs the pipeline over all files. Results keep submission order.
// The returned error is nil unless the whole request failed; per-file
// failures are reported in Result.Errors.
func (o *Orchestrator) Process(ctx context.Context, files []File) (*Result, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	// One slot per file; each worker writes only its own index, the merge
	// happens after the join.
	records := make([]*candidate.Record, len(files))
	failures := make([]*FileError, len(files))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(o.concurrency)

	for i, file := range files {
		group.Go(func() error {
			record, err := o.processFile(ctx, file)
			if err != nil {
				// Missing provider credentials fail the whole batch, not
				// a single file.
				if errors.Is(err, ai.ErrProviderConfig) {
					return err
				}

				failures[i] = &FileError{FileName: file.Name, Error: err.Error()}
				return nil
			}

			records[i] = record
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	result := &Result{TotalCount: len(files)}
	for i := range files {
		if records[i] != nil {
			result.Records = append(result.Records, records[i])
		}
		if failures[i] != nil {
			result.Errors = append(result.Errors, *failures[i])
		}
	}
	result.ProcessedCount = len(result.Records)

	if result.Records == nil {
		result.Records = []*candidate.Record{}
	}

	o.log.Info("batch processed",
		zap.Int("total", result.TotalCount),
		zap.Int("processed", result.ProcessedCount),
		zap.Int("failed", len(result.Errors)),
	)

	return result, nil
}

func (o *Orchestrator) processFile(ctx context.Context, file File) (*candidate.Record, error) {
	if o.fileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.fileTimeout)
		defer cancel()
	}

	if !extract.Supported(file.Name) {
		return nil, o.fail(file.Name, stageValidate,
			fmt.Errorf("%w: %q (supported: pdf, docx, doc, txt)", extract.ErrUnsupportedFormat, file.Name))
	}

	text, err := extract.Text(file.Data, file.Name)
	if err != nil {
		return nil, o.fail(file.Name, stageExtract, err)
	}

	if len(strings.TrimSpace(text)) < parser.MinTextLength {
		return nil, o.fail(file.Name, stageGate,
			fmt.Errorf("%w: need at least %d characters", ErrTooShort, parser.MinTextLength))
	}

	record, err := o.profiles.ExtractProfile(ctx, text, file.Name)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("processing timed out after %s: %w", o.fileTimeout, err)
		}
		return nil, o.fail(file.Name, stageParse, err)
	}

	return record, nil
}

// fail logs the per-file failure with enough context to reproduce it and
// returns the error unchanged for aggregation.
func (o *Orchestrator) fail(fileName, stage string, err error) error {
	o.log.Warn("file skipped",
		zap.String(logger.FieldFile, fileName),
		zap.String(logger.FieldStage, stage),
		zap.Error(err),
	)
	return err
}
