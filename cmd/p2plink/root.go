package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"p2plink/config"
	"p2plink/message"
	"p2plink/observability"
)

// app is the state shared by every command of one invocation.
type app struct {
	cfgFile      string
	outputFormat string
	logLevel     string

	cfg      *config.Config
	logger   *zap.Logger
	registry *message.Registry
}

func newRootCmd() *cobra.Command {
	a := &app{registry: message.Catalog()}
	root := &cobra.Command{
		Use:   "p2plink",
		Short: "Point-to-point framed messaging over TCP",
		Long: `p2plink runs one end of a point-to-point link that exchanges typed,
fixed-size messages in sync/id/length/checksum frames, and converts single
frames to and from their wire bytes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if a.logLevel != "" {
				cfg.Log.Level = a.logLevel
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			a.cfg = cfg
			a.logger, err = observability.SetupLogger(cfg.Log)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./p2plink.yaml or ~/.p2plink/p2plink.yaml)")
	root.PersistentFlags().StringVarP(&a.outputFormat, "output", "o", "yaml", "output format: yaml, json")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log.level")

	root.AddCommand(
		newListenCmd(a),
		newDialCmd(a),
		newEncodeCmd(a),
		newDecodeCmd(a),
		newCatalogCmd(a),
		newVersionCmd(),
	)
	return root
}

// resolveID accepts a message name or a numeric id.
func (a *app) resolveID(arg string) (uint8, error) {
	if n, err := strconv.ParseUint(arg, 10, 8); err == nil {
		id := uint8(n)
		if !a.registry.Valid(id) {
			return 0, fmt.Errorf("%w: %d", message.ErrInvalidMessageID, id)
		}
		return id, nil
	}
	for _, e := range a.registry.Entries() {
		if e.Name == arg {
			return e.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown message %q", message.ErrInvalidMessageID, arg)
}
