package stats

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// AttackHighlight is the most damaging single attack seen on a given day.
type AttackHighlight struct {
	Player string    `json:"player"`
	Unit   string    `json:"unit"`
	Weapon string    `json:"weapon"`
	Wounds int       `json:"wounds"`
	Damage int       `json:"damage"`
	At     time.Time `json:"at"`
}

// MatchRecord is one finished match.
type MatchRecord struct {
	MatchID    string    `json:"match_id"`
	PlayerA    string    `json:"player_a"`
	PlayerB    string    `json:"player_b"`
	Winner     string    `json:"winner"`
	ScoreA     int       `json:"score_a"`
	ScoreB     int       `json:"score_b"`
	Rounds     int       `json:"rounds"`
	FinishedAt time.Time `json:"finished_at"`
}

// Store keeps the daily attack highlight in memory for quick reads and
// persists matches and highlights to sqlite.
type Store struct {
	mu       sync.Mutex
	db       *sql.DB
	dailyMax map[string]AttackHighlight // date YYYY-MM-DD (UTC) -> best attack
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty stats db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	s := &Store{db: db, dailyMax: make(map[string]AttackHighlight)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.loadToday(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenMemory opens an in-memory store, used by tests and dev runs.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, dailyMax: make(map[string]AttackHighlight)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS matches (
  match_id    TEXT PRIMARY KEY,
  player_a    TEXT NOT NULL,
  player_b    TEXT NOT NULL,
  winner      TEXT NOT NULL,
  score_a     INTEGER NOT NULL,
  score_b     INTEGER NOT NULL,
  rounds      INTEGER NOT NULL,
  finished_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS daily_attacks (
  day    TEXT PRIMARY KEY,
  player TEXT NOT NULL,
  unit   TEXT NOT NULL,
  weapon TEXT NOT NULL,
  wounds INTEGER NOT NULL,
  damage INTEGER NOT NULL,
  at     TEXT NOT NULL
);`)
	return err
}

func (s *Store) loadToday() error {
	day := time.Now().UTC().Format("2006-01-02")
	row := s.db.QueryRow(
		`SELECT player, unit, weapon, wounds, damage, at FROM daily_attacks WHERE day = ?`, day)
	var h AttackHighlight
	var at string
	err := row.Scan(&h.Player, &h.Unit, &h.Weapon, &h.Wounds, &h.Damage, &at)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	h.At, _ = time.Parse(time.RFC3339, at)
	s.dailyMax[day] = h
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// RecordAttack keeps the attack only if it beats the current daily best.
// Ties on damage are broken by wounds inflicted.
func (s *Store) RecordAttack(h AttackHighlight) error {
	if h.At.IsZero() {
		h.At = time.Now().UTC()
	}
	day := h.At.UTC().Format("2006-01-02")
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.dailyMax[day]
	if ok && (cur.Damage > h.Damage || (cur.Damage == h.Damage && cur.Wounds >= h.Wounds)) {
		return nil
	}
	s.dailyMax[day] = h
	_, err := s.db.Exec(`
INSERT INTO daily_attacks (day, player, unit, weapon, wounds, damage, at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(day) DO UPDATE SET
  player = excluded.player, unit = excluded.unit, weapon = excluded.weapon,
  wounds = excluded.wounds, damage = excluded.damage, at = excluded.at`,
		day, h.Player, h.Unit, h.Weapon, h.Wounds, h.Damage, h.At.UTC().Format(time.RFC3339))
	return err
}

// DailyHighlight returns today's best attack, if any.
func (s *Store) DailyHighlight() (AttackHighlight, bool) {
	day := time.Now().UTC().Format("2006-01-02")
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.dailyMax[day]
	return h, ok
}

// PruneDaily drops in-memory highlights older than today. Run from the
// scheduler at UTC midnight.
func (s *Store) PruneDaily() {
	day := time.Now().UTC().Format("2006-01-02")
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.dailyMax {
		if k != day {
			delete(s.dailyMax, k)
		}
	}
}

// RecordMatch stores a finished match.
func (s *Store) RecordMatch(r MatchRecord) error {
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
INSERT OR REPLACE INTO matches
  (match_id, player_a, player_b, winner, score_a, score_b, rounds, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.MatchID, r.PlayerA, r.PlayerB, r.Winner, r.ScoreA, r.ScoreB, r.Rounds,
		r.FinishedAt.UTC().Format(time.RFC3339))
	return err
}

// RecentMatches lists the latest finished matches, most recent first.
func (s *Store) RecentMatches(limit int) ([]MatchRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
SELECT match_id, player_a, player_b, winner, score_a, score_b, rounds, finished_at
FROM matches ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MatchRecord
	for rows.Next() {
		var r MatchRecord
		var at string
		if err := rows.Scan(&r.MatchID, &r.PlayerA, &r.PlayerB, &r.Winner,
			&r.ScoreA, &r.ScoreB, &r.Rounds, &at); err != nil {
			return nil, err
		}
		r.FinishedAt, _ = time.Parse(time.RFC3339, at)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Leaderboard aggregates wins per player across stored matches.
func (s *Store) Leaderboard(limit int) (map[string]int, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`
SELECT winner, COUNT(*) AS wins FROM matches
WHERE winner != '' GROUP BY winner ORDER BY wins DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var name string
		var wins int
		if err := rows.Scan(&name, &wins); err != nil {
			return nil, err
		}
		out[name] = wins
	}
	return out, rows.Err()
}
