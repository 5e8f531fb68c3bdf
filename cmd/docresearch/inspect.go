package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docresearch/internal/app"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Show the layout elements and chunks extracted from a document",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}
	cmd.Flags().Int("max-chunk-length", 0, "Chunk budget in characters (default from config)")
	cmd.Flags().Int("preview", 80, "Characters of content shown per line")
	return cmd
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if n, _ := cmd.Flags().GetInt("max-chunk-length"); cmd.Flags().Changed("max-chunk-length") {
		cfg.MaxChunkLength = n
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	preview, _ := cmd.Flags().GetInt("preview")

	log := newLogger(cmd, cfg)
	parser, err := app.NewParser(cfg, nil, log)
	if err != nil {
		return err
	}
	doc, err := parser.Parse(cmd.Context(), args[0], "doc_1")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d pages, %d elements, %d chunks\n",
		filepath.Base(args[0]), len(doc.Pages), len(doc.Elements), len(doc.Chunks))
	fmt.Fprintf(out, "summary: %s\n\n", doc.Summary)

	fmt.Fprintln(out, "elements:")
	for _, el := range doc.Elements {
		fmt.Fprintf(out, "  p%d #%d %-8s %s\n", el.PageID, el.SequenceID, el.Type, oneLine(el.Content, preview))
	}
	fmt.Fprintln(out, "\nchunks:")
	for _, c := range doc.Chunks {
		fmt.Fprintf(out, "  chunk %d (page %d, %d elements, %d chars) %s\n",
			c.ChunkID, c.PageID, len(c.Elements), len([]rune(c.Content)), oneLine(c.Content, preview))
	}
	return nil
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); n > 0 && len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}
