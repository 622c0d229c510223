package inspector

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Snapshot export formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Write serializes s to w in the given format.
func Write(w io.Writer, s *Snapshot, format string) error {
	if s == nil {
		return fmt.Errorf("no snapshot recorded: enable snapshots to export the graph")
	}
	switch strings.ToLower(format) {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encoding snapshot as json: %w", err)
		}
	case FormatYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encoding snapshot as yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("flushing yaml snapshot: %w", err)
		}
	default:
		return fmt.Errorf("unknown snapshot format %q: must be 'json' or 'yaml'", format)
	}
	return nil
}

// Read parses a snapshot previously produced by Write.
func Read(r io.Reader, format string) (*Snapshot, error) {
	var s Snapshot
	switch strings.ToLower(format) {
	case FormatJSON, "":
		if err := json.NewDecoder(r).Decode(&s); err != nil {
			return nil, fmt.Errorf("decoding json snapshot: %w", err)
		}
	case FormatYAML, "yml":
		if err := yaml.NewDecoder(r).Decode(&s); err != nil {
			return nil, fmt.Errorf("decoding yaml snapshot: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown snapshot format %q: must be 'json' or 'yaml'", format)
	}
	return &s, nil
}
