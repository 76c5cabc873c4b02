package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/pefman/w40k-tabletop/internal/state"
)

// Snapshots travel gzip-compressed: a full document with rosters runs to
// tens of kilobytes of JSON and resync happens on flaky links.

func EncodeSnapshot(g *state.GameState) ([]byte, error) {
	raw, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("snapshot encode: %w", err)
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("snapshot compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("snapshot compress: %w", err)
	}
	return buf.Bytes(), nil
}

func DecodeSnapshot(data []byte) (*state.GameState, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("snapshot decompress: %w", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("snapshot decompress: %w", err)
	}
	var g state.GameState
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("snapshot decode: %w", err)
	}
	return &g, nil
}
