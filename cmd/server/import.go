package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bbernstein/panelboard-go/internal/config"
	"github.com/bbernstein/panelboard-go/internal/logging"
	importservice "github.com/bbernstein/panelboard-go/internal/services/import"
	"github.com/bbernstein/panelboard-go/internal/storage"
)

// newImportCmd loads a GET /export file into the configured storage. The
// server must not be running against the same storage.
func newImportCmd(flags *flagOverrides) *cobra.Command {
	var (
		merge           bool
		replaceConflict bool
	)

	cmd := &cobra.Command{
		Use:   "import [export file]",
		Short: "Import an exported document into storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			flags.apply(cfg)

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read export: %w", err)
			}

			logger, err := logging.New(cfg.Env, cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			persister, err := storage.Open(storage.FromAppConfig(cfg), logger)
			if err != nil {
				return fmt.Errorf("failed to open storage: %w", err)
			}
			defer func() {
				if err := persister.Close(); err != nil {
					logger.Warn("failed to close storage", zap.Error(err))
				}
			}()

			options := importservice.ImportOptions{
				Mode:                  importservice.ImportModeReplace,
				PanelConflictStrategy: importservice.PanelConflictSkip,
			}
			if merge {
				options.Mode = importservice.ImportModeMerge
			}
			if replaceConflict {
				options.PanelConflictStrategy = importservice.PanelConflictReplace
			}

			stats, warnings, err := importservice.NewService(persister, logger).ImportDocument(cmd.Context(), data, options)
			if err != nil {
				return err
			}

			for _, w := range warnings {
				cmd.PrintErrln("warning: " + w)
			}
			cmd.Printf("Imported %d parameters and %d panels (%d skipped) into %s storage\n",
				stats.ParametersImported, stats.PanelsImported, stats.PanelsSkipped,
				strings.ToLower(cfg.StorageBackend))
			return nil
		},
	}

	cmd.Flags().BoolVar(&merge, "merge", false, "merge into the stored document instead of replacing it")
	cmd.Flags().BoolVar(&replaceConflict, "replace-conflicts", false, "with --merge, overwrite panels whose id is already stored")

	return cmd
}
