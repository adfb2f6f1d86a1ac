package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"chess_review/internal/domain/review"
	"chess_review/internal/usecase/gamereview"
	"chess_review/internal/usecase/viewer"
)

type reviewFlags struct {
	depth  int
	format string
	out    string
	chart  bool
}

type reviewOutput struct {
	Review review.GameReview       `json:"review" yaml:"review"`
	Chart  []gamereview.ChartPoint `json:"chart,omitempty" yaml:"chart,omitempty"`
}

func newReviewCmd(g *globalFlags) *cobra.Command {
	f := &reviewFlags{}

	cmd := &cobra.Command{
		Use:   "review <game.pgn>",
		Short: "Classify every move of a PGN game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReview(cmd.Context(), args[0], g, f, cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&f.depth, "depth", 0, "Search depth per position (default: REVIEW_DEPTH)")
	flags.StringVar(&f.format, "format", "yaml", "Output format: yaml or json")
	flags.StringVar(&f.out, "out", "", "Output file path (default: stdout)")
	flags.BoolVar(&f.chart, "chart", false, "Include win chance chart points")

	return cmd
}

func runReview(ctx context.Context, pgnPath string, g *globalFlags, f *reviewFlags, stderr io.Writer) error {
	if f.format != "yaml" && f.format != "json" {
		return exitError(2, "unknown format %q", f.format)
	}
	pgn, err := os.ReadFile(pgnPath)
	if err != nil {
		return exitError(2, "failed to read %s: %v", pgnPath, err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := newLogger(g.verbose)
	cfg, coord, err := startCoordinator(ctx, g, log)
	if err != nil {
		return err
	}

	pipeline := gamereview.NewPipeline(coord, cfg.ReviewDepth, cfg.ReviewRetryBudget, log)
	v := viewer.New(ctx, coord, pipeline, cfg.BestMoveDepth, log)
	defer v.ShutdownEngine()

	run, err := v.RequestGameReview(viewer.ReviewInput{PGN: string(pgn), Depth: f.depth})
	if err != nil {
		return exitError(2, "%v", err)
	}

	var last review.ReviewProgress
	for p := range run.Progress() {
		last = p
		fmt.Fprintf(stderr, "\rreviewed %d/%d", p.Completed, p.Total)
	}
	fmt.Fprintln(stderr)

	switch {
	case last.Error != "":
		return exitError(4, "review failed after %d moves: %s", last.Completed, last.Error)
	case !last.Done:
		return exitError(5, "review canceled")
	}

	res, err := v.Review()
	if err != nil {
		return exitError(4, "%v", err)
	}
	out := reviewOutput{Review: res}
	if f.chart {
		out.Chart = gamereview.ChartPoints(res)
	}
	return writeOutput(f.out, f.format, out)
}

func writeOutput(path, format string, v any) error {
	var (
		data []byte
		err  error
	)
	if format == "json" {
		data, err = json.MarshalIndent(v, "", "  ")
		data = append(data, '\n')
	} else {
		data, err = yaml.Marshal(v)
	}
	if err != nil {
		return exitError(1, "failed to encode output: %v", err)
	}

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return exitError(1, "failed to write %s: %v", path, err)
	}
	return nil
}
