package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pefman/w40k-tabletop/internal/state"
)

const layoutYAML = `
board:
  width: 1200
  height: 800
zones:
  - owner: 1
    min_x: 0
    min_y: 0
    max_x: 1200
    max_y: 200
  - owner: 2
    min_x: 0
    min_y: 600
    max_x: 1200
    max_y: 800
objectives:
  - id: obj-mid
    x: 600
    y: 400
    radius: 120
terrain:
  - id: crater
    kind: forest
    min_x: 500
    min_y: 300
    max_x: 700
    max_y: 500
walls:
  - x1: 100
    y1: 100
    x2: 100
    y2: 700
`

func TestLoadLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")
	require.NoError(t, os.WriteFile(path, []byte(layoutYAML), 0o644))

	l, err := LoadLayout(path)
	require.NoError(t, err)

	g := state.NewGameState(1)
	l.Apply(g)

	assert.Equal(t, 1200.0, g.Board.Width)
	assert.Equal(t, 800.0, g.Board.Height)
	require.Len(t, g.Board.Zones, 2)
	assert.Equal(t, 2, g.Board.Zones[1].Owner)
	require.Len(t, g.Board.Objectives, 1)
	assert.Equal(t, "obj-mid", g.Board.Objectives[0].ID)
	assert.Equal(t, 120.0, g.Board.Objectives[0].Radius)
	require.Len(t, g.Board.Terrain, 1)
	assert.Equal(t, "forest", g.Board.Terrain[0].Kind)
	require.Len(t, g.Board.Walls, 1)
}

func TestLoadLayoutRejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadLayout(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("board: [not, a, map]"), 0o644))
	_, err = LoadLayout(bad)
	assert.Error(t, err)

	zero := filepath.Join(dir, "zero.yaml")
	require.NoError(t, os.WriteFile(zero, []byte("board:\n  width: 0\n  height: 0\n"), 0o644))
	_, err = LoadLayout(zero)
	assert.Error(t, err)
}

func TestDefaultLayout(t *testing.T) {
	l := DefaultLayout()
	g := state.NewGameState(1)
	l.Apply(g)

	require.Len(t, g.Board.Zones, 2)
	assert.Len(t, g.Board.Objectives, 3)
	assert.NotEmpty(t, g.Board.Terrain)
	// Zones must not overlap: deployment edges face each other.
	assert.Less(t, g.Board.Zones[0].MaxY, g.Board.Zones[1].MinY)
}
