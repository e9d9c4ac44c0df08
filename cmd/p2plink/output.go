package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"p2plink/message"
)

// frameRecord is how a received or decoded frame is printed.
type frameRecord struct {
	ID      uint8           `json:"id" yaml:"id"`
	Name    string          `json:"name" yaml:"name"`
	Payload message.Payload `json:"payload" yaml:"payload"`
}

func render(w io.Writer, format string, v any) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// renderLine prints v as a single line, for streams of frames.
func renderLine(w io.Writer, format string, v any) error {
	if strings.ToLower(format) == "json" {
		return json.NewEncoder(w).Encode(v)
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "---\n%s", data)
	return err
}
