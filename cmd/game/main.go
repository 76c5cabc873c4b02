package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-co-op/gocron/v2"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/pefman/w40k-tabletop/internal/roster"
	"github.com/pefman/w40k-tabletop/internal/state"
	"github.com/pefman/w40k-tabletop/internal/stats"
)

var (
	buildVersion = "dev"
	buildTime    = "unknown"
)

type config struct {
	ListenAddr  string `env:"GAME_LISTEN_ADDR" envDefault:":8080"`
	DataAPIBase string `env:"DATA_API_BASE" envDefault:"http://localhost:8081"`
	StatsDBPath string `env:"STATS_DB_PATH" envDefault:"data/stats.db"`
	BoardLayout string `env:"BOARD_LAYOUT" envDefault:""`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

var (
	log         = logrus.WithField("service", "game")
	cfg         config
	dataClient  *roster.Client
	statsStore  *stats.Store
	boardLayout *Layout
)

func main() {
	_ = godotenv.Load()
	if err := env.Parse(&cfg); err != nil {
		logrus.WithError(err).Fatal("parse environment")
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(lvl)
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	dataClient = roster.NewClient(cfg.DataAPIBase)

	var err error
	statsStore, err = stats.Open(cfg.StatsDBPath)
	if err != nil {
		log.WithError(err).Fatal("open stats store")
	}
	defer statsStore.Close()

	boardLayout = DefaultLayout()
	if cfg.BoardLayout != "" {
		boardLayout, err = LoadLayout(cfg.BoardLayout)
		if err != nil {
			log.WithError(err).Fatal("load board layout")
		}
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		log.WithError(err).Fatal("scheduler")
	}
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() { statsStore.PruneDaily() }),
	)
	sched.Start()
	defer func() { _ = sched.Shutdown() }()

	r := mux.NewRouter()
	r.HandleFunc("/ws", handleWS)
	r.HandleFunc("/lobby", handleLobby).Methods(http.MethodGet)
	r.HandleFunc("/api/factions", handleFactions).Methods(http.MethodGet)
	r.HandleFunc("/api/{faction}/units", handleUnits).Methods(http.MethodGet)
	r.HandleFunc("/leaderboard", handleLeaderboard).Methods(http.MethodGet)
	r.HandleFunc("/leaderboard/daily", handleLeaderboardDaily).Methods(http.MethodGet)
	r.HandleFunc("/debug/matches", handleDebugMatches).Methods(http.MethodGet)
	r.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"version": buildVersion, "time": buildTime})
	}).Methods(http.MethodGet)

	go matchmaker()

	log.WithFields(logrus.Fields{
		"addr": cfg.ListenAddr, "data_api": cfg.DataAPIBase,
	}).Info("tabletop match server listening")
	if err := http.ListenAndServe(cfg.ListenAddr, r); err != nil {
		log.WithError(err).Fatal("serve")
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func handleLobby(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, lobbySnapshot())
}

func handleFactions(w http.ResponseWriter, req *http.Request) {
	facs, err := dataClient.Factions(req.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, facs)
}

func handleUnits(w http.ResponseWriter, req *http.Request) {
	faction := mux.Vars(req)["faction"]
	sheets, err := dataClient.Datasheets(req.Context(), faction)
	if err != nil {
		// Offline play still needs an army list.
		sheets = roster.FallbackDatasheets()
	}
	writeJSON(w, sheets)
}

func handleLeaderboard(w http.ResponseWriter, _ *http.Request) {
	board, err := statsStore.Leaderboard(10)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, board)
}

func handleLeaderboardDaily(w http.ResponseWriter, _ *http.Request) {
	h, ok := statsStore.DailyHighlight()
	if !ok {
		writeJSON(w, map[string]any{})
		return
	}
	writeJSON(w, h)
}

func handleDebugMatches(w http.ResponseWriter, _ *http.Request) {
	recent, err := statsStore.RecentMatches(20)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	type roomInfo struct {
		ID      string `json:"id"`
		P1      string `json:"p1"`
		P2      string `json:"p2"`
		Phase   string `json:"phase"`
		Round   int    `json:"round"`
		Started int64  `json:"started"`
	}
	roomsMu.Lock()
	live := make([]roomInfo, 0, len(rooms))
	for _, rm := range rooms {
		info := roomInfo{
			ID: rm.ID, P1: rm.P1.Name, P2: rm.P2.Name,
			Started: rm.Started.Unix(),
		}
		// The room's players may be executing actions concurrently.
		rm.store.View(func(g *state.GameState) {
			info.Phase = g.Meta.Phase
			info.Round = g.Meta.BattleRound
		})
		live = append(live, info)
	}
	roomsMu.Unlock()
	writeJSON(w, map[string]any{"live": live, "recent": recent})
}
