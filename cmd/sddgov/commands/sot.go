package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bartekus/sddgov/cmd/sddgov/internal/clierr"
	"github.com/bartekus/sddgov/internal/refs"
	"github.com/bartekus/sddgov/internal/sotbundle"
)

// Feature: SOT_BUNDLE
// Spec: spec/core/sot-bundle.md

// NewSoTCommand returns `sddgov sot`.
func NewSoTCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sot",
		Short: "Source-of-truth context tooling",
	}
	cmd.AddCommand(newSoTAssembleCommand())
	return cmd
}

func newSoTAssembleCommand() *cobra.Command {
	var (
		src        issueFlags
		manual     string
		manualFile string
		files      []string
		maxChars   int
		out        string
	)

	cmd := &cobra.Command{
		Use:   "assemble",
		Short: "Assemble the SoT bundle for an issue",
		Long: `Print the issue, wide excerpts of the PRD and Epic it references, any extra
SoT files and manual text. With --max-chars the bundle is truncated, keeping
its head and its last 2048 characters around a [TRUNCATED] marker.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if manual != "" && manualFile != "" {
				return clierr.New(clierr.CodeUsage, "--sot and --sot-text-file are mutually exclusive")
			}
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			in := sotbundle.Input{ManualSoT: manual, ExtraFiles: files, MaxChars: maxChars}
			if manualFile != "" {
				data, err := os.ReadFile(manualFile)
				if err != nil {
					return clierr.Wrap(clierr.CodeUsage, "", err)
				}
				in.ManualSoT = string(data)
			}
			s, err := src.source(cmd.Context(), ws)
			if err != nil {
				return err
			}
			if s != nil {
				if in.Issue, err = s.Fetch(cmd.Context()); err != nil {
					return clierr.Wrap(clierr.CodeUsage, "", err)
				}
			}

			bundle, err := sotbundle.Build(refs.NewResolver(ws.Root), in)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "", err)
			}
			if out != "" {
				if err := os.WriteFile(out, []byte(bundle), 0o644); err != nil {
					return clierr.Wrap(clierr.CodeFatal, "", err)
				}
				return nil
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), bundle)
			return err
		},
	}

	src.register(cmd)
	cmd.Flags().StringVar(&manual, "sot", "", "manual SoT text appended to the bundle")
	cmd.Flags().StringVar(&manualFile, "sot-text-file", "", "file holding manual SoT text")
	cmd.Flags().StringArrayVar(&files, "sot-file", nil, "extra SoT file reference (repeatable)")
	cmd.Flags().IntVar(&maxChars, "max-chars", 0, "truncate the bundle to this many characters (0: no limit)")
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the bundle to a file instead of stdout")
	return cmd
}
