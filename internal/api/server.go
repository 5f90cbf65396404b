package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tycoon/internal/config"
	"tycoon/internal/events"
	"tycoon/internal/game"
	"tycoon/internal/metrics"
	"tycoon/internal/save"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type contextKey string

const playerContextKey contextKey = "player"

type Server struct {
	cfg   config.APIConfig
	log   *slog.Logger
	game  *game.Service
	saves *save.Saver
	hub   *events.Hub
	mux   *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, gameSvc *game.Service, saves *save.Saver, hub *events.Hub) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:   cfg,
		log:   logger,
		game:  gameSvc,
		saves: saves,
		hub:   hub,
		mux:   chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.Get("/catalog", s.handleCatalog)
			r.Post("/players", s.handleCreatePlayer)
		})

		r.Route("/players/{playerID}", func(r chi.Router) {
			r.Use(s.playerMiddleware)

			// The event stream is long-lived and stays outside the request timeout.
			r.Get("/events", s.handleEvents)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(60 * time.Second))
				r.Get("/", s.handleDashboard)
				r.Post("/click", s.handleClick)

				r.Get("/upgrades", s.handleUpgrades)
				r.Post("/upgrades/{upgradeID}/buy", s.handleBuyUpgrade)

				r.Get("/bosses", s.handleBosses)
				r.Post("/bosses/{bossID}/engage", s.handleEngageBoss)
				r.Post("/boss/flee", s.handleFleeBoss)

				r.Get("/prestige", s.handlePrestigePreview)
				r.Post("/prestige", s.handlePrestige)

				r.Get("/skins", s.handleSkins)
				r.Post("/skins/{skinID}/buy", s.handleBuySkin)
				r.Post("/skins/{skinID}/equip", s.handleEquipSkin)

				r.Post("/daily", s.handleDaily)
				r.Get("/achievements", s.handleAchievements)

				r.Get("/save", s.handleSaveInfo)
				r.Post("/save", s.handleSaveNow)

				r.Post("/sync/replay", s.handleSyncReplay)
			})
		})
	})
}

func (s *Server) playerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := game.ValidatePlayerID(chi.URLParam(r, "playerID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), playerContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func playerFromContext(ctx context.Context) string {
	id, _ := ctx.Value(playerContextKey).(string)
	return id
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	cat := s.game.Engine().Catalog()
	writeJSON(w, http.StatusOK, map[string]any{
		"rules":         cat.Rules(),
		"upgrades":      cat.Upgrades(),
		"bosses":        cat.Bosses(),
		"skins":         cat.Skins(),
		"achievements":  cat.Achievements(),
		"daily_rewards": cat.DailyRewards(),
	})
}

func (s *Server) handleCreatePlayer(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.CreatePlayer(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.Dashboard(r.Context(), playerFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := playerFromContext(r.Context())
	// Load the player first so a bad save surfaces as an error, not a silent stream.
	if _, err := s.game.LoadReport(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	s.hub.HandleWS(w, r, id)
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Count int `json:"count"`
	}
	if err := decodeOptionalJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.Click(r.Context(), playerFromContext(r.Context()), in.Count, idempotencyKey(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpgrades(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.Shop(r.Context(), playerFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"upgrades": out})
}

func (s *Server) handleBuyUpgrade(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.BuyUpgrade(r.Context(), playerFromContext(r.Context()), chi.URLParam(r, "upgradeID"), idempotencyKey(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBosses(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.BossBoard(r.Context(), playerFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bosses": out})
}

func (s *Server) handleEngageBoss(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.EngageBoss(r.Context(), playerFromContext(r.Context()), chi.URLParam(r, "bossID"), idempotencyKey(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleFleeBoss(w http.ResponseWriter, r *http.Request) {
	bossID, err := s.game.FleeBoss(r.Context(), playerFromContext(r.Context()), idempotencyKey(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fled": bossID})
}

func (s *Server) handlePrestigePreview(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.PreviewPrestige(r.Context(), playerFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePrestige(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.Prestige(r.Context(), playerFromContext(r.Context()), idempotencyKey(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSkins(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.SkinBoard(r.Context(), playerFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"skins": out})
}

func (s *Server) handleBuySkin(w http.ResponseWriter, r *http.Request) {
	skinID := chi.URLParam(r, "skinID")
	if err := s.game.BuySkin(r.Context(), playerFromContext(r.Context()), skinID, idempotencyKey(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "skin": skinID})
}

func (s *Server) handleEquipSkin(w http.ResponseWriter, r *http.Request) {
	skinID := chi.URLParam(r, "skinID")
	if err := s.game.EquipSkin(r.Context(), playerFromContext(r.Context()), skinID, idempotencyKey(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "equipped": skinID})
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.ClaimDaily(r.Context(), playerFromContext(r.Context()), idempotencyKey(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.AchievementBoard(r.Context(), playerFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"achievements": out})
}

func (s *Server) handleSaveInfo(w http.ResponseWriter, r *http.Request) {
	id := playerFromContext(r.Context())
	report, err := s.game.LoadReport(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	info, err := s.saves.Info(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"loaded_from": report, "slots": info})
}

func (s *Server) handleSaveNow(w http.ResponseWriter, r *http.Request) {
	id := playerFromContext(r.Context())
	if err := s.game.SaveNow(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	info, err := s.saves.Info(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "slots": info})
}

func (s *Server) handleSyncReplay(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Actions []game.Action `json:"actions"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.Replay(r.Context(), playerFromContext(r.Context()), in.Actions)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrDuplicateIdempotency):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, game.ErrInsufficientFunds), errors.Is(err, game.ErrBelowThreshold),
		errors.Is(err, game.ErrInvalidPlayerID), errors.Is(err, game.ErrUnknownAction),
		errors.Is(err, game.ErrTooManyActions):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrUpgradeLocked), errors.Is(err, game.ErrBossLocked),
		errors.Is(err, game.ErrSkinNotOwned):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, game.ErrUnknownUpgrade), errors.Is(err, game.ErrUnknownBoss),
		errors.Is(err, game.ErrUnknownSkin):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrMaxLevelReached), errors.Is(err, game.ErrBossActive),
		errors.Is(err, game.ErrBossDefeated), errors.Is(err, game.ErrNoActiveBoss),
		errors.Is(err, game.ErrSkinOwned), errors.Is(err, game.ErrDailyClaimed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, game.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for endpoints where the body may be omitted.
func decodeOptionalJSON(r *http.Request, out any) error {
	if err := decodeJSON(r, out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func idempotencyKey(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" {
		return key
	}
	return uuid.NewString()
}
