package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "0.1.0"

type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

func exitError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

type globalFlags struct {
	engine  string
	config  string
	verbose bool
}

func main() {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "reviewer",
		Short:         "Review chess games and query best moves with a local UCI engine",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&g.engine, "engine", "", "Engine binary (default: ENGINE_PATH or stockfish)")
	root.PersistentFlags().StringVar(&g.config, "config", ".env", "Env-format config file")
	root.PersistentFlags().BoolVar(&g.verbose, "verbose", false, "Log engine traffic to stderr")

	root.AddCommand(newReviewCmd(g), newBestMoveCmd(g))

	if err := root.Execute(); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, ee.msg)
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) *zap.SugaredLogger {
	if !verbose {
		return zap.NewNop().Sugar()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return logger.Sugar()
}
