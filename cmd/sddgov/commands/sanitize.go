package commands

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/bartekus/sddgov/cmd/sddgov/internal/clierr"
	"github.com/bartekus/sddgov/internal/mdsan"
)

// NewSanitizeCommand returns `sddgov sanitize`, a debug view of the
// sanitizer pipeline.
func NewSanitizeCommand() *cobra.Command {
	var stage string

	stages := make([]string, 0, len(mdsan.Stages()))
	for _, s := range mdsan.Stages() {
		stages = append(stages, string(s))
	}

	cmd := &cobra.Command{
		Use:   "sanitize <file>",
		Short: "Print a Markdown file after one sanitizer stage",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return clierr.Wrap(clierr.CodeFatal, "", err)
			}
			if !utf8.Valid(data) {
				return clierr.Newf(clierr.CodeFatal, "%s: invalid UTF-8", args[0])
			}
			out, err := mdsan.Apply(mdsan.Stage(stage), string(data))
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "", err)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVar(&stage, "stage", string(mdsan.StageAll), "one of "+strings.Join(stages, ", "))
	return cmd
}
