package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/brieflab/internal/agent/core"
	"github.com/mohammad-safakhou/brieflab/internal/worker"
	"github.com/mohammad-safakhou/brieflab/models"
)

type runFlags struct {
	outDir   string
	noImages bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.outDir, "out", "o", "", "output directory (default report.output_dir)")
	cmd.Flags().BoolVar(&f.noImages, "no-images", false, "skip image generation")
}

func reportCMD(cfgPath *string, name string) *cobra.Command {
	kind, short := models.ReportAnalysis, "Critically analyze an article, document or text"
	switch name {
	case "summarize":
		kind, short = models.ReportSummary, "Write an executive summary of an article, document or text"
	case "linkedin":
		kind, short = models.ReportLinkedIn, "Draft an illustrated LinkedIn article from an article, document or text"
	}
	var (
		flags runFlags
		title string
	)
	cmd := &cobra.Command{
		Use:   name + " <url|file|->",
		Short: short,
		Long:  short + ".\n\nThe source is an http(s) URL, a path to a pdf, docx, epub, html, txt or md file,\nor - to read text from stdin. Anything else is treated as the text itself.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := jobFromSource(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			job.Kind = kind
			job.Title = title
			return runOnce(cmd, *cfgPath, flags, job)
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "report title (default derived from the source)")
	flags.register(cmd)
	return cmd
}

func learnCMD(cfgPath *string) *cobra.Command {
	var (
		flags runFlags
		level string
	)
	cmd := &cobra.Command{
		Use:   "learn <topic>",
		Short: "Write an illustrated learning path on a topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := core.ParseEducationLevel(level)
			if err != nil {
				return err
			}
			job := worker.Job{Kind: models.ReportLearning, Topic: strings.Join(args, " "), Level: lvl}
			return runOnce(cmd, *cfgPath, flags, job)
		},
	}
	cmd.Flags().StringVarP(&level, "level", "l", string(core.DefaultEducationLevel),
		"education level: elementary, middle_school, high_school, undergraduate or expert")
	flags.register(cmd)
	return cmd
}

func jobFromSource(src string, stdin io.Reader) (worker.Job, error) {
	switch {
	case src == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return worker.Job{}, fmt.Errorf("read stdin: %w", err)
		}
		return worker.Job{Text: string(data)}, nil
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return worker.Job{URL: src}, nil
	}
	info, err := os.Stat(src)
	if err != nil || info.IsDir() {
		return worker.Job{Text: src}, nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return worker.Job{}, err
	}
	return worker.Job{FileName: filepath.Base(src), FileData: data}, nil
}

// runOnce runs a single job in the foreground, printing progress to stderr
// and the written file paths to stdout.
func runOnce(cmd *cobra.Command, cfgPath string, flags runFlags, job worker.Job) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stderr := cmd.ErrOrStderr()
	a, err := newApp(ctx, cfgPath, appOptions{
		writeFiles: true,
		outputDir:  flags.outDir,
		progress:   func(_, msg string) { fmt.Fprintln(stderr, msg) },
	})
	if err != nil {
		return err
	}
	defer a.close(ctx)

	job.GenerateImages = a.generateImages() && !flags.noImages
	start := time.Now()
	res, err := a.processor.Process(ctx, job)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, res.Files.HTML)
	if res.Files.PDF != "" {
		fmt.Fprintln(out, res.Files.PDF)
	}
	printMetrics(stderr, a, time.Since(start))
	return nil
}

func printMetrics(w io.Writer, a *app, elapsed time.Duration) {
	m := a.metrics.GetMetrics()
	var calls int64
	for _, n := range m.ModelCalls {
		calls += n
	}
	fmt.Fprintf(w, "Done in %s: %d model calls, %d images", elapsed.Round(time.Second), calls, m.ImagesGenerated)
	if m.ImagesFailed > 0 {
		fmt.Fprintf(w, " (%d failed)", m.ImagesFailed)
	}
	fmt.Fprintln(w)
	if len(m.Fallbacks) == 0 {
		return
	}
	stages := make([]string, 0, len(m.Fallbacks))
	for s := range m.Fallbacks {
		stages = append(stages, s)
	}
	sort.Strings(stages)
	for _, s := range stages {
		fmt.Fprintf(w, "  fallback used at %s: %d\n", s, m.Fallbacks[s])
	}
}
