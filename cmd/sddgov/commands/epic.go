package commands

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bartekus/sddgov/cmd/sddgov/internal/clierr"
	"github.com/bartekus/sddgov/internal/epicconfig"
	"github.com/bartekus/sddgov/internal/logger"
	"github.com/bartekus/sddgov/internal/projection"
)

// Feature: EPIC_PROJECT_CONFIG
// Spec: spec/core/epic-config.md

// NewEpicCommand returns `sddgov epic`.
func NewEpicCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "epic",
		Short: "Epic metadata extraction and project config generation",
	}
	cmd.AddCommand(newEpicConfigCommand())
	cmd.AddCommand(newEpicGenerateCommand())
	return cmd
}

func newEpicConfigCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "config <epic.md>",
		Short: "Extract tech stack, quality requirements and API design from an Epic as JSON",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := epicconfig.ExtractFile(args[0])
			if err != nil {
				return clierr.Wrap(clierr.CodeFindings, "", err)
			}
			if out != "" {
				if err := projection.WriteJSON(out, cfg); err != nil {
					return clierr.Wrap(clierr.CodeFatal, "", err)
				}
				logger.Info("epic config written to %s", out)
				return nil
			}
			data, err := projection.MarshalJSON(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the JSON to a file instead of stdout")
	return cmd
}

func newEpicGenerateCommand() *cobra.Command {
	var (
		outDir string
		dryRun bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "generate <config.json|epic.md>",
		Short: "Generate project rules and skills from an Epic config",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := epicconfig.LoadConfig(args[0])
			if err != nil {
				return clierr.Wrap(clierr.CodeFindings, "", err)
			}
			if outDir == "" {
				ws, err := openWorkspace(cmd)
				if err != nil {
					return err
				}
				outDir = filepath.Join(ws.Root, filepath.FromSlash(epicconfig.DefaultOutputDir))
			}
			res, err := epicconfig.Generate(cfg, epicconfig.Options{OutputDir: outDir, DryRun: dryRun})
			if err != nil {
				return clierr.Wrap(clierr.CodeFatal, "", err)
			}
			if asJSON {
				data, err := projection.MarshalJSON(res)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			epicconfig.WriteSummary(cmd.OutOrStdout(), res, dryRun)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "output-dir", "o", "", "output directory (default: <repo>/"+epicconfig.DefaultOutputDir+")")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list files without writing them")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}
