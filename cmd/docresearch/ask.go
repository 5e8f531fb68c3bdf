package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docresearch/internal/app"
	"github.com/dgallion1/docresearch/internal/research"
)

func newAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask --doc FILE [--doc FILE...] QUERY...",
		Short: "Index documents and answer one or more queries",
		Long: `Index the given documents, then run each query through the research loop
and print its report. Queries share one conversation.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}

	cmd.Flags().StringSliceP("doc", "d", nil, "Document to index (repeatable)")
	cmd.Flags().Int("max-iterations", 0, "Search/refine iterations per query (default from config)")
	cmd.Flags().Float64("threshold", 0, "Sufficiency threshold in (0, 1] (default from config)")
	cmd.Flags().String("model-url", "", "OpenAI-compatible endpoint; enables the model-backed variants")
	cmd.Flags().Bool("global-dedup", false, "Deduplicate the evidence pool across iterations")
	cmd.Flags().Bool("steps", false, "Print the per-iteration trace after each report")
	_ = cmd.MarkFlagRequired("doc")

	return cmd
}

func runAsk(cmd *cobra.Command, queries []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if n, _ := flags.GetInt("max-iterations"); flags.Changed("max-iterations") {
		cfg.MaxIterations = n
	}
	if t, _ := flags.GetFloat64("threshold"); flags.Changed("threshold") {
		cfg.SufficiencyThreshold = t
	}
	if u, _ := flags.GetString("model-url"); u != "" {
		cfg.LLMBaseURL = u
	}
	if d, _ := flags.GetBool("global-dedup"); d {
		cfg.GlobalDedup = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := newLogger(cmd, cfg)
	model := app.NewModel(cfg, log)
	if model != nil {
		defer model.Close()
	}
	parser, err := app.NewParser(cfg, model, log)
	if err != nil {
		return err
	}
	r, err := research.New(parser, app.ResearcherOptions(cfg, model, nil, log)...)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	docs, _ := flags.GetStringSlice("doc")
	if err := r.AddDocuments(ctx, docs); err != nil {
		var ingestErr *research.IngestError
		if !errors.As(err, &ingestErr) {
			return err
		}
		for _, f := range ingestErr.Failures {
			fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %v\n", f.Path, f.Err)
		}
	}
	if r.DocumentCount() == 0 {
		return research.ErrNoDocuments
	}

	out := cmd.OutOrStdout()
	showSteps, _ := flags.GetBool("steps")
	for i, q := range queries {
		if i > 0 {
			fmt.Fprintln(out, strings.Repeat("=", 60))
		}
		o, err := r.Investigate(ctx, q)
		if err != nil {
			return fmt.Errorf("query %q: %w", q, err)
		}
		fmt.Fprintln(out, o.Report)
		if showSteps {
			printSteps(cmd, o)
		}
	}
	return nil
}

func printSteps(cmd *cobra.Command, o *research.Outcome) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "plan: granularity=%s intent=%s docs=%s\n",
		o.Plan.Granularity, o.Plan.Intent, strings.Join(o.Plan.DocIDs(), ","))
	for _, s := range o.Steps {
		fmt.Fprintf(out, "iteration %d: subqueries=%q hits=%d kept=%d sufficiency=%.3f\n",
			s.Iteration, s.Subqueries, s.Hits, s.Kept, s.Sufficiency)
	}
	fmt.Fprintf(out, "converged=%t evidence=%d\n", o.Converged, len(o.Evidence))
}
