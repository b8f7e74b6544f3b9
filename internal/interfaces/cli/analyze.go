package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/referta/referta/internal/application/analysis"
	"github.com/referta/referta/internal/config"
	"github.com/referta/referta/internal/infrastructure/database/postgres"
	"github.com/referta/referta/internal/infrastructure/database/postgres/repositories"
	"github.com/referta/referta/internal/infrastructure/monitoring/logging"
	"github.com/referta/referta/internal/intelligence/classification"
	"github.com/referta/referta/internal/intelligence/comparison"
	"github.com/referta/referta/internal/intelligence/dedup"
	"github.com/referta/referta/internal/intelligence/extraction"
	"github.com/referta/referta/internal/intelligence/inference"
)

// newAnalyzeCmd creates the "analyze" subcommand: run the full analysis
// pipeline over local text files, persisting results to the configured
// database.
func newAnalyzeCmd() *cobra.Command {
	var noAI bool

	cmd := &cobra.Command{
		Use:   "analyze <file>...",
		Short: "Analyze clinical report files and store the results",
		Long:  "Reads one or more UTF-8 text files, runs extraction, classification,\nduplicate detection, and temporal comparison over them in chronological\norder, and saves each non-duplicate report to the configured database.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, noAI)
		},
	}

	cmd.Flags().BoolVar(&noAI, "no-ai", false, "skip the AI inference backend, use deterministic fallbacks only")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string, noAI bool) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	pool, err := postgres.NewPool(ctx, cliCtx.Config.Database, cliCtx.Logger)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()

	svc, err := buildService(cliCtx.Config, cliCtx.Logger, pool, noAI)
	if err != nil {
		return err
	}

	input := &analysis.AnalyzeBatchInput{}
	source := analysis.PlainTextSource{}
	for _, path := range args {
		input.Documents = append(input.Documents, readDocument(ctx, source, path))
	}

	result, err := svc.AnalyzeBatch(ctx, input)
	if err != nil {
		return err
	}

	if cliCtx.Output == "json" {
		return printJSON(cmd, result)
	}
	for _, r := range result.Results {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s", r.Filename, r.Message)
		if r.Verdict != "" {
			fmt.Fprintf(cmd.OutOrStdout(), " [%s]", r.Verdict)
		}
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}

// buildService wires the analysis pipeline against the configured database.
// The CLI runs without event publishing, archiving, or caching; those
// collaborators only matter for the long-running server.
func buildService(cfg *config.Config, logger logging.Logger, pool *pgxpool.Pool, noAI bool) (analysis.Service, error) {
	reportRepo := repositories.NewReportRepository(pool, logger)
	feedbackRepo := repositories.NewFeedbackRepository(pool, logger)

	classifier := classification.NewClassifier(logger)
	extractor, err := extraction.NewExtractor(cfg.Engine.Extraction, classifier, logger)
	if err != nil {
		return nil, err
	}

	var aiClient inference.Client
	if !noAI {
		aiClient, err = inference.NewClient(cfg.Inference, logger)
		if err != nil {
			logger.Warn("inference backend unavailable, falling back to deterministic comparison", logging.Err(err))
			aiClient = nil
		}
	}

	comparator, err := comparison.NewComparator(cfg.Engine.Comparison, reportRepo, aiClient, logger)
	if err != nil {
		return nil, err
	}
	detector, err := dedup.NewDetector(cfg.Engine.Dedup, reportRepo, logger)
	if err != nil {
		return nil, err
	}

	return analysis.NewService(cfg.Engine, analysis.Dependencies{
		Extractor:  extractor,
		Comparator: comparator,
		Detector:   detector,
		AI:         aiClient,
		Reports:    reportRepo,
		Feedback:   feedbackRepo,
		Logger:     logger,
	})
}

// readDocument loads and renders one local file into a batch entry.  Read
// and rendering failures are carried on the entry itself so the batch still
// reports them per file.
func readDocument(ctx context.Context, source analysis.DocumentSource, path string) analysis.DocumentInput {
	filename := filepath.Base(path)

	raw, err := os.ReadFile(path)
	if err != nil {
		return analysis.DocumentInput{Filename: filename, ReadError: err}
	}

	doc, err := source.Render(ctx, filename, raw)
	if err != nil {
		return analysis.DocumentInput{Filename: filename, Raw: raw, ReadError: err}
	}

	return analysis.DocumentInput{
		Filename:   filename,
		Text:       doc.Text,
		Properties: doc.Properties,
		Raw:        raw,
	}
}
