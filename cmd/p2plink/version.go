package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"p2plink/protocol"
)

// version is set at build time via -ldflags "-X main.version=x.y.z"
var version = "0.1.0"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the p2plink version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "p2plink version %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "frame: sync %#02x %#02x, max payload %d bytes\n",
				protocol.Sync1, protocol.Sync2, protocol.MaxMessageSize)
			return nil
		},
	}
}
