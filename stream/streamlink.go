package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Messages streamlink reports in its JSON "error" field.
const (
	noPluginMessage  = "No plugin can handle URL"
	noStreamsMessage = "No playable streams found"
)

// StreamlinkProvider implements Provider by calling the streamlink binary
// with --json.
type StreamlinkProvider struct {
	// BinaryPath is the path to the streamlink executable. Defaults to "streamlink".
	BinaryPath string
}

// NewStreamlinkProvider returns a provider backed by the binary at binaryPath.
func NewStreamlinkProvider(binaryPath string) *StreamlinkProvider {
	return &StreamlinkProvider{BinaryPath: binaryPath}
}

type streamlinkOutput struct {
	Plugin  string                      `json:"plugin"`
	Error   string                      `json:"error"`
	Streams map[string]streamlinkStream `json:"streams"`
}

type streamlinkStream struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

func (p *StreamlinkProvider) Streams(ctx context.Context, reference string) ([]Variant, error) {
	bin := p.BinaryPath
	if bin == "" {
		bin = "streamlink"
	}

	cmd := exec.CommandContext(ctx, bin, "--json", reference)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(runErr, exec.ErrNotFound) || errors.Is(runErr, fs.ErrNotExist) {
			return nil, fmt.Errorf("streamlink not found, install it and ensure it is in your PATH: %w", runErr)
		}
	}

	// streamlink exits non-zero on lookup failures but still prints a JSON
	// document with an "error" field, so try to decode before giving up.
	var out streamlinkOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		if runErr != nil {
			return nil, fmt.Errorf("streamlink failed: %w: %s", runErr, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("failed to parse streamlink output: %w", err)
	}

	if out.Error != "" {
		return nil, classifyStreamlinkError(out.Error)
	}
	if runErr != nil {
		return nil, fmt.Errorf("streamlink failed: %w: %s", runErr, strings.TrimSpace(stderr.String()))
	}

	names := make([]string, 0, len(out.Streams))
	for name := range out.Streams {
		names = append(names, name)
	}
	sort.Strings(names)

	variants := make([]Variant, 0, len(names))
	for _, name := range names {
		s := out.Streams[name]
		if s.URL == "" {
			log.WithFields(log.Fields{"module": "streamlink", "variant": name}).
				Debug("skipping variant without a direct URL")
			continue
		}
		variants = append(variants, Variant{Name: name, Type: s.Type, URL: s.URL})
	}

	if len(variants) == 0 {
		return nil, ErrStreamUnavailable
	}
	return variants, nil
}

func classifyStreamlinkError(message string) error {
	switch {
	case strings.Contains(message, noPluginMessage):
		return fmt.Errorf("%w: %s", ErrInvalidReference, message)
	case strings.Contains(message, noStreamsMessage):
		return fmt.Errorf("%w: %s", ErrStreamUnavailable, message)
	default:
		return fmt.Errorf("streamlink: %s", message)
	}
}
