package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okian/athletegraph/internal/adapters/csvsource"
	"github.com/okian/athletegraph/internal/adapters/graph"
	service "github.com/okian/athletegraph/internal/app"
	"github.com/okian/athletegraph/internal/config"
	"github.com/okian/athletegraph/internal/domain/mapping"
	"github.com/okian/athletegraph/internal/domain/ontology"
	"github.com/okian/athletegraph/internal/domain/validate"
	"github.com/okian/athletegraph/pkg/logger"
	"github.com/okian/athletegraph/pkg/metrics"
)

type ingestOptions struct {
	coach         string
	csvPath       string
	mappingDir    string
	yes           bool
	dryRun        bool
	strictMapping bool
	policy        string
}

func newRootCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a coach's CSV export into the athlete graph",
		Long: `Reads a CSV export, maps its columns to metric fields and writes the
valid rows to the graph store.

The first run for a coach infers a mapping, writes it to
<mapping-dir>/coach_<id>/mappings.yaml and stops so the file can be reviewed.
Pass --yes to continue into ingestion in the same run.

Exit codes: 0 success, 1 fatal error or missing NEO4J_* credentials,
2 unmapped required fields or a stale mapping under --strict-mapping.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.coach, "coach", "", "Coach id owning the data (required)")
	cmd.Flags().StringVar(&opts.csvPath, "csv", "", "CSV file to ingest (required)")
	cmd.Flags().StringVar(&opts.mappingDir, "mapping-dir", "", "Root of per-coach mapping files (default from config)")
	cmd.Flags().BoolVar(&opts.yes, "yes", false, "Ingest right after writing a new mapping")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Validate only; nothing is written and no credentials are needed")
	cmd.Flags().BoolVar(&opts.strictMapping, "strict-mapping", false, "Fail when the stored mapping was inferred from different columns")
	cmd.Flags().StringVar(&opts.policy, "metric-policy", "", "Metric node policy: append or merge (default from config)")
	_ = cmd.MarkFlagRequired("coach")
	_ = cmd.MarkFlagRequired("csv")

	cmd.AddCommand(newSeedCmd())
	return cmd
}

// setup loads configuration and the global logger. Logs go to stderr so the
// report on stdout stays clean.
func setup(ctx context.Context, stderr io.Writer) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := logger.InitWithWriter(stderr, cfg.LogFormat); err != nil {
		return nil, nil, err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("warn")
	}
	return cfg, logger.Named("ingest"), nil
}

func runIngest(ctx context.Context, stdout, stderr io.Writer, opts ingestOptions) error {
	opts.coach = strings.TrimSpace(opts.coach)
	if opts.coach == "" {
		return fatal(errors.New("--coach must not be empty"))
	}

	cfg, log, err := setup(ctx, stderr)
	if err != nil {
		return fatal(err)
	}
	if opts.mappingDir == "" {
		opts.mappingDir = cfg.MappingDir
	}
	if opts.policy == "" {
		opts.policy = cfg.MetricPolicy
	}
	policy, err := graph.ParsePolicy(opts.policy)
	if err != nil {
		return fatal(err)
	}

	table, err := csvsource.ReadFile(opts.csvPath)
	if err != nil {
		return fatal(err)
	}
	for _, r := range table.Ragged {
		fmt.Fprintf(stdout, "[warn] line %d has %d fields, header has %d\n", r.Line, r.Fields, len(table.Columns))
	}

	path := mapping.PathFor(opts.mappingDir, opts.coach)
	m, created, err := mapping.GetOrCreate(table.Columns, path, opts.coach)
	if err != nil {
		return fatal(err)
	}
	if created {
		metrics.RecordMappingInferred()
		fmt.Fprintf(stdout, "[info] wrote mappings: %s\n", path)
		if unresolved := m.Unresolved(); len(unresolved) > 0 {
			fmt.Fprintf(stdout, "[warn] unresolved fields: %s\n", strings.Join(unresolved, ", "))
		}
		if !opts.yes {
			fmt.Fprintln(stdout, "[hint] review the mapping and run again, or pass --yes to ingest now")
			return nil
		}
	}

	if unresolved := m.Unresolved(); len(unresolved) > 0 {
		return unmapped(fmt.Errorf("unmapped required columns: %s; edit %s", strings.Join(unresolved, ", "), path))
	}
	if !created && mapping.Stale(m, table.Columns) {
		msg := fmt.Sprintf("mapping %s was inferred from different columns", path)
		if missing := mapping.MissingColumns(m, table.Columns); len(missing) > 0 {
			msg += "; absent columns: " + strings.Join(missing, ", ")
		}
		if opts.strictMapping {
			return unmapped(errors.New(msg))
		}
		fmt.Fprintf(stdout, "[warn] %s\n", msg)
	}

	units, err := ontology.Load(ctx, cfg.OntologyPath)
	if err != nil {
		return fatal(err)
	}

	if opts.dryRun {
		svc := service.New(service.WithLogger(log), service.WithUnits(units))
		batch, err := svc.ValidateTable(table.Rows, m)
		if err != nil {
			return classifyTableError(err, path)
		}
		printDryRun(stdout, table, batch)
		return nil
	}

	store, err := service.OpenStore(ctx, cfg, policy, log)
	if err != nil {
		return fatal(err)
	}
	svc := service.New(
		service.WithLogger(log),
		service.WithUnits(units),
		service.WithStore(store),
		service.WithWriteWorkers(cfg.WriteWorkers),
	)
	if err := svc.Start(ctx); err != nil {
		return fatal(err)
	}
	defer svc.Stop(context.WithoutCancel(ctx))

	report, err := svc.IngestTable(ctx, table.Rows, m)
	if err != nil {
		return classifyTableError(err, path)
	}
	printReport(stdout, table, report)
	if n := len(report.Write.Failed); n > 0 {
		return fatal(fmt.Errorf("%d of %d writes failed", n, n+report.Write.Written))
	}
	return nil
}

func classifyTableError(err error, path string) error {
	if errors.Is(err, validate.ErrUnmappedField) {
		return unmapped(fmt.Errorf("%w; edit %s", err, path))
	}
	return fatal(err)
}
