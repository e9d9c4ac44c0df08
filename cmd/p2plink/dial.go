package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"p2plink/client"
	"p2plink/codec"
	"p2plink/connector"
	"p2plink/loadbalance"
)

func newDialCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "dial",
		Short: "Connect to a listener, send messages read from stdin, print received frames",
		Long: `Connects to link.dial, or discovers link.name through etcd when no address
is given. Each stdin line is "<message> <json>", for example:

  value {"x":7}
  telemetry {"voltage":12.1,"channel":2}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Link.Dial = addr
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a.serveMetrics(ctx)

			link, err := a.dial(ctx)
			if err != nil {
				return err
			}
			defer link.Close()
			a.printFrames(link, cmd.OutOrStdout())

			lines := make(chan error, 1)
			go func() { lines <- a.sendLines(link, cmd.InOrStdin()) }()
			select {
			case err := <-lines:
				return err
			case <-ctx.Done():
				return nil
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "peer address (overrides link.dial)")
	return cmd
}

func (a *app) dial(ctx context.Context) (*connector.Connector, error) {
	opts := []client.Option{
		client.WithLogger(a.logger),
		client.WithReadTimeout(a.cfg.Link.ReadTimeout),
		client.WithBalancer(loadbalance.New(a.cfg.Link.Balancer)),
		client.WithConnectorOptions(a.linkOptions()...),
	}
	if a.cfg.Link.Dial != "" {
		return client.Dial(ctx, a.cfg.Link.Dial, a.registry, opts...)
	}
	etcd, err := a.etcdRegistry()
	if err != nil {
		return nil, err
	}
	if etcd == nil {
		return nil, errors.New("no peer: set link.dial or etcd.endpoints")
	}
	defer etcd.Close()
	return client.DialService(ctx, etcd, a.cfg.Link.Name, a.registry, opts...)
}

// sendLines sends one message per input line until EOF.
func (a *app) sendLines(link *connector.Connector, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, body, _ := strings.Cut(line, " ")
		id, err := a.resolveID(name)
		if err != nil {
			a.logger.Warn("skipping line", zap.String("line", line), zap.Error(err))
			continue
		}
		p, err := a.registry.New(id)
		if err != nil {
			return err
		}
		if body = strings.TrimSpace(body); body != "" {
			if err := codec.GetCodec(codec.CodecTypeJSON).Decode([]byte(body), p); err != nil {
				a.logger.Warn("skipping line", zap.String("line", line), zap.Error(err))
				continue
			}
		}
		if err := link.Send(id, p); err != nil {
			return fmt.Errorf("send %s: %w", name, err)
		}
	}
	return scanner.Err()
}
