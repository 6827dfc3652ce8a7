package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bartekus/sddgov/cmd/sddgov/internal/clierr"
	"github.com/bartekus/sddgov/internal/refs"
)

// NewRefsCommand returns `sddgov refs`.
func NewRefsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refs",
		Short: "Reference resolution helpers",
	}
	cmd.AddCommand(newRefsResolveCommand())
	return cmd
}

func newRefsResolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <ref>...",
		Short: "Resolve document references to canonical repo-relative paths",
		Long: `Each reference may be repo-relative, absolute inside the repository, or a
GitHub blob/tree URL. One line is printed per reference; unresolvable
references are reported on stderr and make the command exit 1.`,
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			r := refs.NewResolver(ws.Root)
			failed := 0
			var out strings.Builder
			for _, ref := range args {
				p, err := r.Resolve(ref)
				if err != nil {
					failed++
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", ref, err)
					continue
				}
				fmt.Fprintf(&out, "%s\n", p)
			}
			if _, err := fmt.Fprint(cmd.OutOrStdout(), out.String()); err != nil {
				return err
			}
			if failed > 0 {
				return clierr.Reported(clierr.CodeFindings)
			}
			return nil
		},
	}
}
