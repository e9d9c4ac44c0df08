package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"p2plink/connector"
	"p2plink/message"
	"p2plink/transport"
)

func executeCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root := newRootCmd()
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand("version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out, "p2plink version") {
		t.Errorf("expected output to contain 'p2plink version', got: %s", out)
	}
}

func TestEncodeCommand(t *testing.T) {
	out, err := executeCommand("encode", "value", `{"x":7}`)
	if err != nil {
		t.Fatalf("encode command failed: %v", err)
	}
	if strings.TrimSpace(out) != "55 aa 01 04 07 00 00 00 02" {
		t.Fatalf("encode output = %q", out)
	}

	if _, err := executeCommand("encode", "nope"); err == nil {
		t.Fatal("expected error for unknown message")
	}
	if _, err := executeCommand("encode", "0"); err == nil {
		t.Fatal("expected error for id 0")
	}
}

func TestDecodeCommand(t *testing.T) {
	// a corrupt frame followed by a good one
	out, err := executeCommand("-o", "json", "decode", "55 aa 01 04 07 00 00 00 ff", "55aa010407000000", "02")
	if err != nil {
		t.Fatalf("decode command failed: %v", err)
	}
	var got struct {
		Frames []struct {
			ID      uint8          `json:"id"`
			Name    string         `json:"name"`
			Payload map[string]any `json:"payload"`
		} `json:"frames"`
		Dropped uint64 `json:"dropped"`
		Partial bool   `json:"partial"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output is not JSON: %v\n%s", err, out)
	}
	if len(got.Frames) != 1 || got.Frames[0].Name != "value" || got.Frames[0].Payload["x"] != float64(7) {
		t.Fatalf("frames = %+v", got.Frames)
	}
	if got.Dropped != 1 || got.Partial {
		t.Fatalf("dropped = %d partial = %v", got.Dropped, got.Partial)
	}
}

func TestCatalogCommand(t *testing.T) {
	out, err := executeCommand("catalog")
	if err != nil {
		t.Fatalf("catalog command failed: %v", err)
	}
	for _, name := range []string{"value", "heartbeat", "telemetry", "pose"} {
		if !strings.Contains(out, "name: "+name) {
			t.Errorf("expected %q in catalog output:\n%s", name, out)
		}
	}
}

func TestSendLines(t *testing.T) {
	a := &app{registry: message.Catalog(), logger: zap.NewNop(), outputFormat: "json"}
	local, remote := transport.Pipe()
	sender := connector.New(local, a.registry, connector.WithLogger(zap.NewNop()))
	receiver := connector.New(remote, a.registry, connector.WithLogger(zap.NewNop()), connector.WithPollInterval(time.Millisecond))

	var out bytes.Buffer
	done := make(chan struct{}, 2)
	receiver.RegisterHandler(message.IDValue, func(ctx context.Context, id uint8, p message.Payload) {
		a.frameHandler(&out)(ctx, id, p)
		done <- struct{}{}
	})
	if err := receiver.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer receiver.Close()

	input := "# comment\nvalue {\"x\":5}\nbogus {}\n\n1 {\"x\":6}\n"
	if err := a.sendLines(sender, strings.NewReader(input)); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("received %d of 2 frames", i)
		}
	}
	if !strings.Contains(out.String(), `"x":5`) || !strings.Contains(out.String(), `"x":6`) {
		t.Fatalf("printed frames: %s", out.String())
	}
}
