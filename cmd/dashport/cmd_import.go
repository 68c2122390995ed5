package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/persistorai/dashport/internal/bundle"
	"github.com/persistorai/dashport/internal/config"
	"github.com/persistorai/dashport/internal/models"
)

// importFlags are the flags shared by import and plan.
type importFlags struct {
	overwrite    bool
	merge        bool
	defaultDB    int64
	clickhouseDB int64
	actor        int64
}

func (f *importFlags) bindMerge(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.merge, "merge", false, "Route every dataset onto the two merge target databases")
	cmd.Flags().Int64Var(&f.defaultDB, "default-db", 0, "Merge target for non-ClickHouse databases (env: MERGE_DEFAULT_DATABASE_ID)")
	cmd.Flags().Int64Var(&f.clickhouseDB, "clickhouse-db", 0, "Merge target for ClickHouse databases (env: MERGE_CLICKHOUSE_DATABASE_ID)")
}

// options validates the flags and returns the import options.
func (f *importFlags) options() (models.ImportOptions, error) {
	opts := models.ImportOptions{Overwrite: f.overwrite}

	switch {
	case f.actor < 0:
		return opts, fmt.Errorf("--actor must be a positive user id")
	case f.actor > 0:
		actor := f.actor
		opts.ActorID = &actor
	}

	return opts, nil
}

// targets applies the target flags over base.
func (f *importFlags) targets(base models.MergeTargets) (models.MergeTargets, error) {
	if !f.merge && (f.defaultDB != 0 || f.clickhouseDB != 0) {
		return base, fmt.Errorf("--default-db and --clickhouse-db require --merge")
	}

	if f.defaultDB < 0 || f.clickhouseDB < 0 {
		return base, fmt.Errorf("merge target ids must be positive")
	}

	if f.defaultDB > 0 {
		base.DefaultID = f.defaultDB
	}

	if f.clickhouseDB > 0 {
		base.ClickHouseID = f.clickhouseDB
	}

	return base, nil
}

func newImportCmd() *cobra.Command {
	var flags importFlags

	cmd := &cobra.Command{
		Use:   "import <bundle>",
		Short: "Import a dashboard bundle (zip file or directory)",
		Long: `Import the dashboards of an export bundle together with the charts,
datasets and databases they need. Existing databases, datasets and charts are
kept; --overwrite replaces existing dashboards. With --merge every dataset is
attached to one of two existing databases and datasets and charts are
overwritten.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			targets, err := flags.targets(cfg.MergeTargets)
			if err != nil {
				return err
			}

			log := newLogger(cfg.LogLevel, false)

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ImportTimeout)
			defer cancel()

			b, err := bundle.Loader{MaxFileSize: cfg.MaxFileBytes()}.Load(ctx, args[0])
			if err != nil {
				return fmt.Errorf("loading bundle: %w", err)
			}

			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := newImportService(pool, log)

			var result *models.ImportResult
			if flags.merge {
				result, err = svc.ImportMerge(ctx, b.Archive, targets, opts)
			} else {
				result, err = svc.ImportSelective(ctx, b.Archive, opts)
			}

			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}

			return output(cmd.OutOrStdout(), summarize(result))
		},
	}

	cmd.Flags().BoolVar(&flags.overwrite, "overwrite", false, "Replace dashboards that already exist")
	cmd.Flags().Int64Var(&flags.actor, "actor", 0, "User id recorded as chart owner and dashboard creator")
	flags.bindMerge(cmd)

	return cmd
}

type dashboardSummary struct {
	ID     int64  `json:"id"`
	UUID   string `json:"uuid"`
	Title  string `json:"title"`
	Action string `json:"action"`
}

type importSummary struct {
	Policy              string             `json:"policy"`
	Databases           models.KindStats   `json:"databases"`
	Datasets            models.KindStats   `json:"datasets"`
	Charts              models.KindStats   `json:"charts"`
	Dashboards          []dashboardSummary `json:"dashboards"`
	AssociationsCreated int                `json:"associations_created"`
	DashboardsMigrated  int                `json:"dashboards_migrated"`
	ChartsDeleted       int                `json:"charts_deleted"`
	DroppedReferences   int                `json:"dropped_references"`
}

// summarize drops the dashboard documents from a result for printing.
func summarize(r *models.ImportResult) importSummary {
	s := importSummary{
		Policy:              r.Policy,
		Databases:           r.Databases,
		Datasets:            r.Datasets,
		Charts:              r.Charts,
		Dashboards:          make([]dashboardSummary, 0, len(r.Dashboards)),
		AssociationsCreated: r.AssociationsCreated,
		DashboardsMigrated:  r.DashboardsMigrated,
		ChartsDeleted:       r.ChartsDeleted,
		DroppedReferences:   r.DroppedReferences,
	}

	for _, d := range r.Dashboards {
		s.Dashboards = append(s.Dashboards, dashboardSummary{ID: d.ID, UUID: d.UUID, Title: d.Title, Action: d.Action})
	}

	return s
}
