package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"p2plink/connector"
	"p2plink/registry"
	"p2plink/server"
)

func newListenCmd(a *app) *cobra.Command {
	var addr, advertise string
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Accept one peer and print the frames it sends",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Link.Listen = addr
			}
			if advertise != "" {
				a.cfg.Link.Advertise = advertise
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a.serveMetrics(ctx)

			svr := server.NewServer(a.registry,
				server.WithLogger(a.logger),
				server.WithLinkName(a.cfg.Link.Name),
				server.WithTTL(a.cfg.Etcd.TTL),
				server.WithReadTimeout(a.cfg.Link.ReadTimeout),
				server.WithConnectorOptions(a.linkOptions()...),
				server.OnLink(func(link *connector.Connector) {
					a.printFrames(link, cmd.OutOrStdout())
				}),
			)

			etcd, err := a.etcdRegistry()
			if err != nil {
				return err
			}
			var reg registry.Registry
			if etcd != nil {
				defer etcd.Close()
				reg = etcd
			}

			errc := make(chan error, 1)
			go func() { errc <- svr.Serve("tcp", a.cfg.Link.Listen, a.cfg.Link.Advertise, reg) }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			a.logger.Info("shutting down")
			if err := svr.Shutdown(5 * time.Second); err != nil {
				a.logger.Warn("shutdown", zap.Error(err))
			}
			return <-errc
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides link.listen)")
	cmd.Flags().StringVar(&advertise, "advertise", "", "address to register in etcd (overrides link.advertise)")
	return cmd
}
