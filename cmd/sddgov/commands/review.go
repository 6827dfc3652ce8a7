package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bartekus/sddgov/cmd/sddgov/internal/clierr"
	"github.com/bartekus/sddgov/internal/review"
)

// Feature: REVIEW_RECORD
// Spec: spec/core/review.md

// NewReviewCommand returns `sddgov review`.
func NewReviewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review record tooling",
	}
	cmd.AddCommand(newReviewValidateCommand())
	return cmd
}

func newReviewValidateCommand() *cobra.Command {
	var (
		scopeID string
		format  bool
	)

	cmd := &cobra.Command{
		Use:   "validate <review.json>",
		Short: "Validate a review record (schema version 3)",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := review.ValidateFile(args[0], scopeID, format)
			var verr *review.ValidationError
			switch {
			case errors.As(err, &verr):
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), verr.Error())
				return clierr.Reported(clierr.CodeFindings)
			case err != nil:
				return clierr.Wrap(clierr.CodeFatal, "", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "OK: %s\n", args[0])
			return err
		},
	}

	cmd.Flags().StringVar(&scopeID, "scope-id", "", "expected scope_id")
	cmd.Flags().BoolVar(&format, "format", false, "rewrite a valid file with two-space indentation")
	return cmd
}
