package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/pefman/w40k-tabletop/internal/engine"
	"github.com/pefman/w40k-tabletop/internal/geometry"
	"github.com/pefman/w40k-tabletop/internal/phase"
	"github.com/pefman/w40k-tabletop/internal/protocol"
	"github.com/pefman/w40k-tabletop/internal/roster"
	"github.com/pefman/w40k-tabletop/internal/router"
	"github.com/pefman/w40k-tabletop/internal/state"
	"github.com/pefman/w40k-tabletop/internal/stats"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

type wsMsg struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Loadout is the army selection a player locks in before matching.
type Loadout struct {
	Faction string   `json:"faction"`
	Units   []string `json:"units"`
}

type Player struct {
	ID      string
	Name    string
	Seat    int // 1 or 2 once seated in a room
	Loadout Loadout
	Ready   bool

	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (p *Player) send(m wsMsg) {
	if p.conn == nil {
		return
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := p.conn.WriteJSON(m); err != nil {
		log.WithField("player", p.ID).WithError(err).Debug("ws write failed")
	}
}

// Room hosts one match. The server process is the authoritative host:
// clients submit actions over the websocket and only ever apply the
// diff batches the room broadcasts back.
type Room struct {
	ID      string
	P1, P2  *Player
	Started time.Time

	mu       sync.Mutex
	rtr      *router.Router
	store    *state.Store
	finished bool
}

// roomTransport fans host traffic out to both seats. Clients mirror the
// document from batches; a failed write surfaces as a broadcast error so
// the router falls back to snapshot resync.
type roomTransport struct {
	room *Room
}

func (t *roomTransport) SendBatch(b state.DiffBatch, digest string) error {
	msg := wsMsg{Type: "batch", Data: map[string]any{
		"seq":    b.Seq,
		"diffs":  b.Diffs,
		"digest": digest,
	}}
	t.room.P1.send(msg)
	t.room.P2.send(msg)
	return nil
}

func (t *roomTransport) SendAction(player int, a protocol.Action) error {
	return fmt.Errorf("room transport is host side only")
}

func (t *roomTransport) SendSnapshot(snap []byte, seq uint64) error {
	msg := wsMsg{Type: "snapshot", Data: map[string]any{"seq": seq, "data": snap}}
	t.room.P1.send(msg)
	t.room.P2.send(msg)
	return nil
}

func (t *roomTransport) RequestSnapshot() error {
	return fmt.Errorf("room transport is host side only")
}

var (
	matchQueue = make(chan *Player, 32)
	roomsMu    sync.Mutex
	rooms      = map[string]*Room{}
	playerRoom sync.Map // player ID -> room ID

	lobbyMu sync.Mutex
	lobby   = map[string]LobbyEntry{}
)

type LobbyEntry struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Faction string `json:"faction"`
	Queued  bool   `json:"queued"`
	Since   int64  `json:"since"`
}

func lobbySet(p *Player, queued bool) {
	lobbyMu.Lock()
	defer lobbyMu.Unlock()
	lobby[p.ID] = LobbyEntry{
		ID: p.ID, Name: p.Name, Faction: p.Loadout.Faction,
		Queued: queued, Since: time.Now().Unix(),
	}
}

func lobbyDelete(id string) {
	lobbyMu.Lock()
	defer lobbyMu.Unlock()
	delete(lobby, id)
}

func lobbySnapshot() []LobbyEntry {
	lobbyMu.Lock()
	defer lobbyMu.Unlock()
	out := make([]LobbyEntry, 0, len(lobby))
	for _, e := range lobby {
		out = append(out, e)
	}
	return out
}

// enqueue puts a player into the matchmaking queue once. A repeated join
// while queued or mid-match is rejected, so the matchmaker can never pair a
// player against themself.
func enqueue(p *Player) error {
	if _, inRoom := playerRoom.Load(p.ID); inRoom {
		return fmt.Errorf("already in a match")
	}
	if p.Ready {
		return fmt.Errorf("already queued")
	}
	p.Ready = true
	lobbySet(p, true)
	matchQueue <- p
	return nil
}

func matchmaker() {
	for {
		p1 := <-matchQueue
		log.WithFields(logrus.Fields{"player": p1.ID, "name": p1.Name}).Info("matchmaker: waiting for opponent")
		p2 := <-matchQueue
		createRoom(p1, p2)
	}
}

func createRoom(p1, p2 *Player) {
	id := "room-" + uuid.NewString()
	p1.Seat, p2.Seat = 1, 2
	room := &Room{ID: id, P1: p1, P2: p2, Started: time.Now()}

	g := state.NewGameState(time.Now().UnixNano())
	boardLayout.Apply(g)
	store := state.NewStore(g)
	dice := engine.NewRoller(g.Meta.RNG.Seed)
	machine := phase.NewMachine(store, dice, geometry.NewMeasurer())
	room.store = store
	room.rtr = router.New(machine, &roomTransport{room: room}, true)
	room.rtr.SetObserver(room.observe)

	for _, p := range []*Player{p1, p2} {
		for i, u := range resolveLoadout(p.Loadout) {
			store.AddUnit(u.BuildUnit(fmt.Sprintf("U%d-%d", p.Seat, i+1), p.Seat))
		}
	}

	roomsMu.Lock()
	rooms[id] = room
	roomsMu.Unlock()
	playerRoom.Store(p1.ID, id)
	playerRoom.Store(p2.ID, id)
	lobbyDelete(p1.ID)
	lobbyDelete(p2.ID)

	log.WithFields(logrus.Fields{
		"room": id, "p1": p1.Name, "p2": p2.Name, "seed": g.Meta.RNG.Seed,
	}).Info("room created")

	for _, p := range []*Player{p1, p2} {
		p.send(wsMsg{Type: "matched", Data: map[string]any{
			"room": id, "seat": p.Seat,
			"opponent": opponentOf(room, p).Name,
		}})
	}
	if err := room.rtr.Resync(); err != nil {
		log.WithField("room", id).WithError(err).Warn("initial snapshot failed")
	}
	room.broadcastActions()
}

func opponentOf(r *Room, p *Player) *Player {
	if r.P1 == p {
		return r.P2
	}
	return r.P1
}

// resolveLoadout maps a selection to datasheets, falling back to the
// built-in list when the data API has no answer.
func resolveLoadout(l Loadout) []roster.Datasheet {
	var out []roster.Datasheet
	if l.Faction != "" && len(l.Units) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if sheets, err := dataClient.Datasheets(ctx, l.Faction); err == nil {
			byName := make(map[string]roster.Datasheet, len(sheets))
			for _, d := range sheets {
				byName[d.Name] = d
			}
			for _, name := range l.Units {
				if d, ok := byName[name]; ok {
					out = append(out, d)
				}
			}
		} else {
			log.WithField("faction", l.Faction).WithError(err).Warn("data api unavailable, using fallback sheets")
		}
	}
	if len(out) == 0 {
		all := roster.FallbackDatasheets()
		out = all[:2]
	}
	return out
}

func (r *Room) broadcastActions() {
	acts := r.rtr.AvailableActions()
	msg := wsMsg{Type: "actions", Data: acts}
	r.P1.send(msg)
	r.P2.send(msg)
}

// observe feeds the stats store from executed combat actions.
func (r *Room) observe(player int, a protocol.Action, res *phase.ExecResult) {
	if res.Summary == nil || statsStore == nil {
		return
	}
	name := r.P1.Name
	if player == 2 {
		name = r.P2.Name
	}
	weapon := ""
	if res.Attack != nil {
		weapon = res.Attack.Weapon
	}
	if err := statsStore.RecordAttack(stats.AttackHighlight{
		Player: name,
		Unit:   a.ActorUnitID,
		Weapon: weapon,
		Wounds: res.Summary.WoundsFailed,
		Damage: res.Summary.TotalDamage,
	}); err != nil {
		log.WithError(err).Warn("record attack")
	}
}

// gameOver reads the end-of-battle flag under the store lock; the other
// seat's reader goroutine may be mutating the document inside Route.
func (r *Room) gameOver() bool {
	var over bool
	r.store.View(func(g *state.GameState) {
		over, _ = g.Meta.Flags["game_over"].(bool)
	})
	return over
}

func (r *Room) finish() {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	r.finished = true
	r.mu.Unlock()

	g := r.store.Snapshot()
	winnerSeat, _ := g.Meta.Flags["winner"].(float64)
	winner := ""
	switch int(winnerSeat) {
	case 1:
		winner = r.P1.Name
	case 2:
		winner = r.P2.Name
	}
	if statsStore != nil {
		err := statsStore.RecordMatch(stats.MatchRecord{
			MatchID: r.ID,
			PlayerA: r.P1.Name,
			PlayerB: r.P2.Name,
			Winner:  winner,
			ScoreA:  g.PlayerByID(1).Score,
			ScoreB:  g.PlayerByID(2).Score,
			Rounds:  g.Meta.BattleRound,
		})
		if err != nil {
			log.WithField("room", r.ID).WithError(err).Warn("record match")
		}
	}
	log.WithFields(logrus.Fields{
		"room": r.ID, "winner": winner,
		"score_a": g.PlayerByID(1).Score, "score_b": g.PlayerByID(2).Score,
	}).Info("match finished")
}

func getRoom(id string) *Room {
	roomsMu.Lock()
	defer roomsMu.Unlock()
	return rooms[id]
}

func roomOf(p *Player) *Room {
	if v, ok := playerRoom.Load(p.ID); ok {
		return getRoom(v.(string))
	}
	return nil
}

// ---- websocket ingress ----

type clientIn struct {
	Type    string          `json:"type"`
	Name    string          `json:"name,omitempty"`
	Loadout *Loadout        `json:"loadout,omitempty"`
	Action  json.RawMessage `json:"action,omitempty"`
}

func handleWS(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.WithError(err).Warn("ws upgrade")
		return
	}
	p := &Player{ID: "p-" + uuid.NewString(), Name: "Commander", conn: conn}
	p.send(wsMsg{Type: "hello", Data: map[string]any{"id": p.ID}})
	go wsReader(p)
}

func wsReader(p *Player) {
	defer func() {
		_ = p.conn.Close()
		lobbyDelete(p.ID)
		if r := roomOf(p); r != nil {
			opponentOf(r, p).send(wsMsg{Type: "opponent_left"})
		}
	}()
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			log.WithField("player", p.ID).WithError(err).Debug("ws closed")
			return
		}
		var in clientIn
		if err := json.Unmarshal(data, &in); err != nil {
			p.send(wsMsg{Type: "error", Data: "malformed message"})
			continue
		}
		switch in.Type {
		case "join":
			if in.Name != "" {
				p.Name = in.Name
			}
			if in.Loadout != nil {
				p.Loadout = *in.Loadout
			}
			if err := enqueue(p); err != nil {
				p.send(wsMsg{Type: "error", Data: err.Error()})
				continue
			}
			p.send(wsMsg{Type: "queued"})
		case "action":
			r := roomOf(p)
			if r == nil {
				p.send(wsMsg{Type: "error", Data: "not in a match"})
				continue
			}
			a, err := protocol.DecodeAction(in.Action)
			if err != nil {
				p.send(wsMsg{Type: "result", Data: protocol.RouteResult{Error: err.Error(), Code: protocol.CodeUnknownAction}})
				continue
			}
			res := r.rtr.Route(p.Seat, a)
			p.send(wsMsg{Type: "result", Data: res})
			if res.Success {
				r.broadcastActions()
				if r.gameOver() {
					r.finish()
				}
			}
		case "resync":
			r := roomOf(p)
			if r == nil {
				continue
			}
			if err := r.rtr.Resync(); err != nil {
				log.WithField("room", r.ID).WithError(err).Warn("resync")
			}
		default:
			p.send(wsMsg{Type: "error", Data: "unknown message type"})
		}
	}
}
