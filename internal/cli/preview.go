package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"voice-beyond/companion/internal/preview"
)

func init() {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Play the landing-page chat preview until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runPreview,
	}
	cmd.Flags().Duration("for", 0, "Stop after this long (default: run until interrupted)")
	RootCmd.AddCommand(cmd)
}

func runPreview(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetDuration("for")

	return withApp(cmd, nil, func(ctx context.Context, a *app) error {
		if limit > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, limit)
			defer cancel()
		}

		err := preview.New(preview.DefaultTiming, a.printer, nil, a.log).Run(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	})
}
