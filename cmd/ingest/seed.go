package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	service "github.com/okian/athletegraph/internal/app"
	"github.com/okian/athletegraph/pkg/logger"
)

func newSeedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Run a ';'-separated Cypher script against the graph store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "scripts/demo.cypher", "Cypher script to run")
	return cmd
}

func runSeed(ctx context.Context, stdout, stderr io.Writer, file string) error {
	cfg, log, err := setup(ctx, stderr)
	if err != nil {
		return fatal(err)
	}

	store, err := service.OpenNeo4j(ctx, cfg)
	if err != nil {
		return fatal(err)
	}
	defer func() {
		if err := store.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn(ctx, "close store", logger.Error(err))
		}
	}()

	script, err := os.ReadFile(file)
	if err != nil {
		return fatal(fmt.Errorf("read script: %w", err))
	}
	n, err := store.RunStatements(ctx, string(script))
	if err != nil {
		return fatal(fmt.Errorf("%s: %w", file, err))
	}
	fmt.Fprintf(stdout, "[ok] ran %d statements from %s\n", n, file)
	return nil
}
