package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/loom/internal/app"
	"github.com/zjrosen/loom/internal/log"
	"github.com/zjrosen/loom/internal/tracing"
	"github.com/zjrosen/loom/internal/watcher"
)

var (
	outputDir string
	jobsGlob  []string
	watch     bool
)

var testCmd = &cobra.Command{
	Use:   "test [path...]",
	Short: "Expand definitions and render their XML",
	Long: `Load the given definition files or directories, expand every job and
view, and write one XML document per record. Without --output the
documents are written to stdout.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTest,
}

func init() {
	testCmd.Flags().StringVarP(&outputDir, "output", "o", "",
		"directory to write XML documents into (default: stdout)")
	testCmd.Flags().StringSliceVar(&jobsGlob, "jobs-glob", nil,
		"only emit records whose name matches a glob (repeatable)")
	testCmd.Flags().BoolVar(&watch, "watch", false,
		"rerun whenever a definition path changes")

	rootCmd.AddCommand(testCmd)
}

func runTest(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	cleanup, err := log.Init(cfg.Log.File)
	if err != nil {
		return err
	}
	defer cleanup()
	log.SetMinLevel(log.ParseLevel(cfg.Log.Level))

	provider, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() { _ = provider.Shutdown(context.Background()) }()

	a := app.New(cfg, provider.Tracer())

	if err := runOnce(cmd, a, args); err != nil {
		return err
	}
	if !watch {
		return nil
	}
	return watchLoop(cmd, a, args)
}

func runOnce(cmd *cobra.Command, a *app.App, paths []string) error {
	res, err := a.Run(cmd.Context(), paths, jobsGlob)
	if err != nil {
		return err
	}
	return writeResult(cmd, res)
}

// watchLoop reruns the pipeline on every (debounced) definition change
// until interrupted. A failing rerun is reported and watching continues.
func watchLoop(cmd *cobra.Command, a *app.App, paths []string) error {
	w, err := watcher.New(watcher.DefaultConfig(paths))
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	onChange, err := w.Start()
	if err != nil {
		return err
	}
	log.Info(log.CatWatch, "watching for changes", "paths", fmt.Sprint(paths))

	for {
		select {
		case <-onChange:
			if err := runOnce(cmd, a, paths); err != nil {
				log.ErrorErr(log.CatWatch, "rerun failed", err)
				fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
			}
		case <-cmd.Context().Done():
			return nil
		}
	}
}

func writeResult(cmd *cobra.Command, res *app.Result) error {
	docs := append(append([]app.Document(nil), res.Jobs...), res.Views...)

	if outputDir == "" {
		for _, doc := range docs {
			fmt.Fprintf(cmd.OutOrStdout(), "%s:\n%s\n", doc.Name, doc.XML)
		}
		return nil
	}

	start := time.Now()
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	for _, doc := range docs {
		path := filepath.Join(outputDir, doc.Name+".xml")
		if err := os.WriteFile(path, []byte(doc.XML), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	log.Info(log.CatConfig, "wrote output",
		"dir", outputDir, "documents", len(docs), "took", time.Since(start).String())
	return nil
}
