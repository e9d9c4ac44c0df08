package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"p2plink/codec"
	"p2plink/message"
	"p2plink/protocol"
)

func newEncodeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "encode <message> [json]",
		Short: "Print the wire bytes of one frame",
		Example: `  p2plink encode value '{"x":7}'
  p2plink encode 2 '{"seq":1,"healthy":true}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.resolveID(args[0])
			if err != nil {
				return err
			}
			p, err := a.registry.New(id)
			if err != nil {
				return err
			}
			if len(args) == 2 {
				if err := codec.GetCodec(codec.CodecTypeJSON).Decode([]byte(args[1]), p); err != nil {
					return fmt.Errorf("parse payload: %w", err)
				}
			}
			frame, err := protocol.AppendFrame(nil, id, p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "% x\n", frame)
			return nil
		},
	}
}

func newDecodeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "decode <hex>...",
		Short: "Parse frames from hex bytes",
		Long: `Feeds the given bytes through the frame parser and prints every verified
frame. Bytes that do not form a valid frame are skipped and counted.`,
		Example: `  p2plink decode 55 aa 01 04 07 00 00 00 02`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := hex.DecodeString(strings.NewReplacer(" ", "", ":", "").Replace(strings.Join(args, "")))
			if err != nil {
				return fmt.Errorf("parse hex: %w", err)
			}

			var frames []frameRecord
			var stats protocol.Stats
			parser := protocol.NewParser(a.registry,
				protocol.DispatcherFunc(func(id uint8, p message.Payload) {
					frames = append(frames, frameRecord{ID: id, Name: a.registry.Name(id), Payload: p})
				}),
				protocol.WithObserver(&stats),
			)
			parser.Write(raw)

			out := struct {
				Frames  []frameRecord          `json:"frames" yaml:"frames"`
				Dropped uint64                 `json:"dropped" yaml:"dropped"`
				Stats   protocol.StatsSnapshot `json:"stats" yaml:"stats"`
				Partial bool                   `json:"partial" yaml:"partial"`
			}{
				Frames:  frames,
				Dropped: stats.Snapshot().Dropped(),
				Stats:   stats.Snapshot(),
				Partial: parser.State() != protocol.WaitSync1,
			}
			return render(cmd.OutOrStdout(), a.outputFormat, out)
		},
	}
}
