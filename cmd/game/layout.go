package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pefman/w40k-tabletop/internal/state"
)

// Layout is a board description loaded from YAML: table size, deployment
// zones, objective markers, and terrain. Distances are board units.
type Layout struct {
	Board struct {
		Width  float64 `yaml:"width"`
		Height float64 `yaml:"height"`
	} `yaml:"board"`
	Zones []struct {
		Owner int     `yaml:"owner"`
		MinX  float64 `yaml:"min_x"`
		MinY  float64 `yaml:"min_y"`
		MaxX  float64 `yaml:"max_x"`
		MaxY  float64 `yaml:"max_y"`
	} `yaml:"zones"`
	Objectives []struct {
		ID     string  `yaml:"id"`
		X      float64 `yaml:"x"`
		Y      float64 `yaml:"y"`
		Radius float64 `yaml:"radius"`
	} `yaml:"objectives"`
	Terrain []struct {
		ID     string  `yaml:"id"`
		Kind   string  `yaml:"kind"`
		MinX   float64 `yaml:"min_x"`
		MinY   float64 `yaml:"min_y"`
		MaxX   float64 `yaml:"max_x"`
		MaxY   float64 `yaml:"max_y"`
		Height float64 `yaml:"height"`
	} `yaml:"terrain"`
	Walls []struct {
		X1 float64 `yaml:"x1"`
		Y1 float64 `yaml:"y1"`
		X2 float64 `yaml:"x2"`
		Y2 float64 `yaml:"y2"`
	} `yaml:"walls"`
}

func LoadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("layout %s: %w", path, err)
	}
	if l.Board.Width <= 0 || l.Board.Height <= 0 {
		return nil, fmt.Errorf("layout %s: board size must be positive", path)
	}
	return &l, nil
}

// DefaultLayout is a 44"x30" table with opposite deployment edges, three
// objectives, and two ruins.
func DefaultLayout() *Layout {
	var l Layout
	l.Board.Width = 1760
	l.Board.Height = 1200
	l.Zones = []struct {
		Owner int     `yaml:"owner"`
		MinX  float64 `yaml:"min_x"`
		MinY  float64 `yaml:"min_y"`
		MaxX  float64 `yaml:"max_x"`
		MaxY  float64 `yaml:"max_y"`
	}{
		{Owner: 1, MinX: 0, MinY: 0, MaxX: 1760, MaxY: 320},
		{Owner: 2, MinX: 0, MinY: 880, MaxX: 1760, MaxY: 1200},
	}
	l.Objectives = []struct {
		ID     string  `yaml:"id"`
		X      float64 `yaml:"x"`
		Y      float64 `yaml:"y"`
		Radius float64 `yaml:"radius"`
	}{
		{ID: "obj-center", X: 880, Y: 600, Radius: 120},
		{ID: "obj-west", X: 360, Y: 600, Radius: 120},
		{ID: "obj-east", X: 1400, Y: 600, Radius: 120},
	}
	l.Terrain = []struct {
		ID     string  `yaml:"id"`
		Kind   string  `yaml:"kind"`
		MinX   float64 `yaml:"min_x"`
		MinY   float64 `yaml:"min_y"`
		MaxX   float64 `yaml:"max_x"`
		MaxY   float64 `yaml:"max_y"`
		Height float64 `yaml:"height"`
	}{
		{ID: "ruins-west", Kind: "ruins", MinX: 240, MinY: 440, MaxX: 560, MaxY: 760, Height: 200},
		{ID: "ruins-east", Kind: "ruins", MinX: 1200, MinY: 440, MaxX: 1520, MaxY: 760, Height: 200},
	}
	return &l
}

// Apply writes the layout into a fresh game document before any diffs flow.
func (l *Layout) Apply(g *state.GameState) {
	b := &state.Board{Width: l.Board.Width, Height: l.Board.Height}
	for _, z := range l.Zones {
		b.Zones = append(b.Zones, state.DeployZone{
			Owner: z.Owner, MinX: z.MinX, MinY: z.MinY, MaxX: z.MaxX, MaxY: z.MaxY,
		})
	}
	for _, o := range l.Objectives {
		b.Objectives = append(b.Objectives, &state.Objective{
			ID:       o.ID,
			Position: state.Position{X: o.X, Y: o.Y},
			Radius:   o.Radius,
		})
	}
	for _, t := range l.Terrain {
		b.Terrain = append(b.Terrain, state.TerrainPiece{
			ID: t.ID, Kind: t.Kind,
			MinX: t.MinX, MinY: t.MinY, MaxX: t.MaxX, MaxY: t.MaxY,
			Height: t.Height,
		})
	}
	for _, w := range l.Walls {
		b.Walls = append(b.Walls, state.Wall{X1: w.X1, Y1: w.Y1, X2: w.X2, Y2: w.Y2})
	}
	g.Board = b
}
