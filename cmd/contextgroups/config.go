package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gofhir/contextgroups/internal/config"
)

func newConfigCmd(stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the contextgroups configuration file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init <path>",
		Short: "Write the default configuration to path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteDefault(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Wrote default configuration to %s\n", args[0])
			return nil
		},
	})
	return cmd
}
