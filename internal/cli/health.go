package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe the companion backend and the local store",
		Args:  cobra.NoArgs,
		RunE:  runHealth,
	}
	RootCmd.AddCommand(cmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	return withApp(cmd, nil, func(ctx context.Context, a *app) error {
		state := a.container.ProbeBackend(ctx)
		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "backend: %s (%s)\n", state, a.cfg.Backend.BaseURL)
		if a.cfg.Backend.Offline {
			fmt.Fprintln(out, "offline mode: replies are generated locally")
		}

		status := a.container.Health.GetStatus()
		names := make([]string, 0, len(status))
		for name := range status {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			comp := status[name]
			line := fmt.Sprintf("  %-10s %s", name, comp.Status)
			if comp.Error != "" {
				line += "  " + comp.Error
			} else if comp.Description != "" {
				line += "  " + comp.Description
			}
			fmt.Fprintln(out, line)
		}
		return nil
	})
}
