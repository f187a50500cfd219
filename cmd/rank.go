package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/resumix/cv-ranker/internal/batch"
	"github.com/resumix/cv-ranker/internal/candidate"
	"github.com/resumix/cv-ranker/internal/duration"
	"github.com/resumix/cv-ranker/internal/export"
	"github.com/resumix/cv-ranker/internal/extract"
	"github.com/resumix/cv-ranker/internal/logger"
	"github.com/resumix/cv-ranker/internal/scorer"
)

const (
	PromptShowTable  = "Show ranked candidates"
	PromptExportXLSX = "Export report to XLSX"
	PromptDumpJSON   = "Dump records to JSON file"
	PromptExit       = "Exit"
)

var errExit = errors.New("exit requested")

var rankPrompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptShowTable, PromptExportXLSX, PromptDumpJSON, PromptExit},
}

var rankCmd = &cobra.Command{
	Use:   "rank [files or directories]",
	Short: "Extract candidate profiles from resume files and print them ranked against the given criteria",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rank(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().Float64("min-experience", 0, "minimum years of experience")
	rankCmd.Flags().Float64("max-experience", 0, "maximum years of experience")
	rankCmd.Flags().StringSlice("skills", nil, "required skills (comma-separated)")
	rankCmd.Flags().StringP("query", "q", "", "free-text keyword to look for in summaries and skills")
	rankCmd.Flags().BoolP("no-input", "y", false, "print the ranked table once and exit without prompting")
}

func rank(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	_ = godotenv.Load()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	files, err := collectFiles(args)
	if err != nil {
		logger.Fatal("collecting input files", zap.Error(err))
	}

	logger.Info("collected input files", zap.Int("count", len(files)))

	orchestrator, err := newOrchestrator(config, logger)
	if err != nil {
		logger.Fatal("building the extraction pipeline", zap.Error(err))
	}

	result, err := orchestrator.Process(ctx, files)
	if err != nil {
		logger.Fatal("processing batch", zap.Error(err))
	}

	for _, fileError := range result.Errors {
		logger.Warn("file was not processed",
			zap.String("file", fileError.FileName),
			zap.String("reason", fileError.Error),
		)
	}

	logger.Info("batch finished",
		zap.Int("processed", result.ProcessedCount),
		zap.Int("total", result.TotalCount),
	)

	if result.ProcessedCount == 0 {
		logger.Info("exiting", zap.String("reason", "no records extracted"))
		return
	}

	ranked := scorer.Rank(result.Records, criteriaFromFlags(cmd))
	printRanked(ranked)

	if noInput, _ := cmd.Flags().GetBool("no-input"); noInput {
		return
	}

	for {
		_, action, err := rankPrompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleRankAction(action, ranked, logger); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleRankAction(action string, ranked []*candidate.Record, log *zap.Logger) error {
	switch action {
	case PromptShowTable:
		printRanked(ranked)
		return nil
	case PromptExportXLSX:
		filename := "candidates.xlsx"
		if err := export.WriteFile(filename, ranked); err != nil {
			return fmt.Errorf("export report: %w", err)
		}
		log.Info("report exported", zap.String("filename", filename))
		return nil
	case PromptDumpJSON:
		filename, err := dumpToTmpFile(ranked)
		if err != nil {
			return fmt.Errorf("dump records to file: %w", err)
		}
		log.Info("records dumped", zap.String("filename", filename))
		return nil
	case PromptExit:
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

// collectFiles expands the given paths to a flat file list; directories are
// walked recursively, keeping only supported resume extensions.
func collectFiles(paths []string) ([]batch.File, error) {
	var files []batch.File

	addFile := func(path string) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %q: %w", path, err)
		}
		files = append(files, batch.File{Name: filepath.Base(path), Data: data})
		return nil
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}

		if !info.IsDir() {
			if err := addFile(path); err != nil {
				return nil, err
			}
			continue
		}

		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !extract.Supported(p) {
				return nil
			}
			return addFile(p)
		})
		if err != nil {
			return nil, err
		}
	}

	return files, nil
}

func criteriaFromFlags(cmd *cobra.Command) candidate.FilterCriteria {
	criteria := candidate.FilterCriteria{}

	if cmd.Flags().Changed("min-experience") {
		v, _ := cmd.Flags().GetFloat64("min-experience")
		criteria.MinExperience = &v
	}
	if cmd.Flags().Changed("max-experience") {
		v, _ := cmd.Flags().GetFloat64("max-experience")
		criteria.MaxExperience = &v
	}

	criteria.Skills, _ = cmd.Flags().GetStringSlice("skills")
	criteria.SearchQuery, _ = cmd.Flags().GetString("query")

	return criteria
}

func printRanked(ranked []*candidate.Record) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tNAME\tEXPERIENCE\tSKILLS\tFILE")

	for _, record := range ranked {
		score := 0
		if record.MatchScore != nil {
			score = *record.MatchScore
		}

		skills := ""
		for i, skill := range record.Skills {
			if i > 0 {
				skills += ", "
			}
			if i == 3 {
				skills += "..."
				break
			}
			skills += skill
		}

		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			score,
			record.Name,
			duration.FormatYears(record.YearsOfExperience),
			skills,
			record.SourceFileName,
		)
	}

	w.Flush()
}

func dumpToTmpFile(records []*candidate.Record) (string, error) {
	f, err := os.CreateTemp("", "cv-ranker-*.json")
	if err != nil {
		return "", err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(records); err != nil {
		return "", err
	}

	return f.Name(), nil
}
