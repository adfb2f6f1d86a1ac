package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"chess_review/internal/domain/analysis"
	"chess_review/internal/usecase/gamereview"
	"chess_review/internal/usecase/viewer"
)

type bestMoveFlags struct {
	depth  int
	format string
}

func newBestMoveCmd(g *globalFlags) *cobra.Command {
	f := &bestMoveFlags{}

	cmd := &cobra.Command{
		Use:   "bestmove [fen]",
		Short: "Print the engine's best move for a position (default: start position)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			position := ""
			if len(args) == 1 {
				position = args[0]
			}
			return runBestMove(cmd.Context(), position, g, f)
		},
	}

	cmd.Flags().IntVar(&f.depth, "depth", 0, "Search depth (default: BESTMOVE_DEPTH)")
	cmd.Flags().StringVar(&f.format, "format", "yaml", "Output format: yaml or json")
	return cmd
}

func runBestMove(ctx context.Context, position string, g *globalFlags, f *bestMoveFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := newLogger(g.verbose)
	cfg, coord, err := startCoordinator(ctx, g, log)
	if err != nil {
		return err
	}

	v := viewer.New(ctx, coord, gamereview.NewPipeline(coord, cfg.ReviewDepth, 0, log), cfg.BestMoveDepth, log)
	defer v.ShutdownEngine()

	searchCtx, cancel := context.WithTimeout(ctx, cfg.EngineRequestTimeout+5*time.Second)
	defer cancel()

	res, err := v.RequestBestMove(searchCtx, position, f.depth)
	if err != nil {
		return exitError(4, "search failed: %v", err)
	}
	return writeOutput("", f.format, struct {
		Result any    `json:"result" yaml:"result"`
		Score  string `json:"score,omitempty" yaml:"score,omitempty"`
	}{Result: res, Score: scoreText(res)})
}

func scoreText(res analysis.BestMoveResult) string {
	line, ok := res.BestLine()
	if !ok {
		return ""
	}
	return gamereview.ScoreText(line.Score)
}
