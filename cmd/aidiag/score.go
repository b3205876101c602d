package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavelanni/aidiag/internal/diagnosis"
	appI18n "github.com/pavelanni/aidiag/internal/i18n"
	"github.com/pavelanni/aidiag/internal/model"
	"github.com/pavelanni/aidiag/internal/report"
	"github.com/pavelanni/aidiag/internal/scoring"
)

func scoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score [file]",
		Short: "Score a submission or responses JSON offline",
		Long: "Reads a submission payload or a bare {questionId: value} object from\n" +
			"the file (or stdin) and prints the scores. Nothing is stored or sent.",
		Args: cobra.MaximumNArgs(1),
		RunE: runScore,
	}
	f := cmd.Flags()
	f.String("scheme", scoring.Weighted.Name, "Scoring scheme (weighted, sectioned)")
	f.String("catalog", "", "Question catalog name or .json path (default: the scheme's catalog)")
	f.Bool("html", false, "Print the data-only HTML report instead of JSON")
	f.StringP("lang", "l", "ko", "Report language for --html")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)
	return cmd
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the question catalog and scoring scheme",
		RunE:  runCatalog,
	}
	f := cmd.Flags()
	f.String("scheme", scoring.Weighted.Name, "Scoring scheme (weighted, sectioned)")
	f.String("catalog", "", "Question catalog name or .json path (default: the scheme's catalog)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)
	return cmd
}

// readSubmission accepts either a full submission or a bare responses map.
func readSubmission(data []byte) (diagnosis.Submission, error) {
	var sub diagnosis.Submission
	if err := json.Unmarshal(data, &sub); err == nil && len(sub.Responses) > 0 {
		return sub, nil
	}
	var responses model.Responses
	if err := json.Unmarshal(data, &responses); err != nil {
		return diagnosis.Submission{}, fmt.Errorf("parse input: %w", err)
	}
	return diagnosis.Submission{Responses: responses}, nil
}

func runScore(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	scheme, err := scoring.SchemeByName(v.GetString("scheme"))
	if err != nil {
		return err
	}
	catalog, err := loadCatalog(v.GetString("catalog"), scheme)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	var in io.Reader = os.Stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	sub, err := readSubmission(data)
	if err != nil {
		return err
	}
	if catalog.Known(sub.Responses) == 0 {
		return fmt.Errorf("no response matches a question in catalog %q", catalog.Name())
	}

	scores := scoring.Compute(sub.Responses, catalog, scheme)
	if !v.GetBool("html") {
		lo, hi := scheme.Policy.Range()
		return writeJSONOutput(v.GetString("output"), map[string]any{
			"scheme":    scheme.Name,
			"catalog":   catalog.Name(),
			"min_score": lo,
			"max_score": hi,
			"scores":    scores,
		})
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	now := time.Now().UTC()
	result := model.DiagnosisResult{
		DiagnosisID:    diagnosis.NewID(now),
		Company:        sub.Company(),
		Scheme:         scheme.Name,
		CategoryScores: scores.CategoryScores,
		OverallScore:   scores.OverallScore,
		Grade:          scores.Grade,
		MaturityLevel:  scores.MaturityLevel,
		Responses:      sub.Responses,
		CreatedAt:      now,
	}
	html, err := report.Assemble(appI18n.WithLang(context.Background(), lang), result, nil)
	if err != nil {
		return fmt.Errorf("assemble report: %w", err)
	}
	return writeOutput(v.GetString("output"), []byte(html))
}

func writeOutput(outPath string, data []byte) error {
	if outPath == "" || outPath == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(outPath, data, 0o644)
}

func runCatalog(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	scheme, err := scoring.SchemeByName(v.GetString("scheme"))
	if err != nil {
		return err
	}
	catalog, err := loadCatalog(v.GetString("catalog"), scheme)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	lo, hi := scheme.Policy.Range()
	return writeJSONOutput(v.GetString("output"), map[string]any{
		"scheme": map[string]any{
			"name":      scheme.Name,
			"policy":    scheme.Policy.Name(),
			"min_score": lo,
			"max_score": hi,
			"grades":    scheme.Grades.Labels(),
			"maturity":  scheme.Maturity.Name(),
		},
		"catalog": catalog,
	})
}
