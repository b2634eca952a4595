package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"akiverse/internal/arcade"
	"akiverse/internal/config"
	"akiverse/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	HeaderUserID        = "X-Akiverse-User-Id"
	HeaderWalletAddress = "X-Akiverse-Wallet-Address"
)

type contextKey string

const actorContextKey contextKey = "actor"

// Dispatcher receives events from committed lifecycle calls.
type Dispatcher interface {
	Dispatch(events ...arcade.Event)
}

type Server struct {
	cfg      config.APIConfig
	log      *slog.Logger
	arcade   *arcade.Service
	events   Dispatcher
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	mux      *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, svc *arcade.Service, events Dispatcher, m *metrics.Metrics, gatherer prometheus.Gatherer) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		cfg:      cfg,
		log:      logger,
		arcade:   svc,
		events:   events,
		metrics:  m,
		gatherer: gatherer,
		mux:      chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	timeout := s.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1/arcade-machines", func(r chi.Router) {
		r.Use(s.actorMiddleware)
		r.Get("/playable", s.handlePlayable)
		r.Post("/withdraw", s.handleWithdraw)
		r.Post("/deposit", s.handleDeposit)
		r.Post("/{id}/install", s.handleInstall)
		r.Post("/{id}/uninstall", s.handleUninstall)
		r.Post("/{id}/dismantle", s.handleDismantle)
		r.Patch("/{id}", s.handleUpdate)
	})
}

// actorMiddleware trusts the identity headers set by the upstream gateway.
func (s *Server) actorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing "+HeaderUserID+" header")
			return
		}
		ctx := context.WithValue(r.Context(), actorContextKey, arcade.Actor{
			UserID:        userID,
			WalletAddress: strings.TrimSpace(r.Header.Get(HeaderWalletAddress)),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFromContext(ctx context.Context) (arcade.Actor, error) {
	actor, ok := ctx.Value(actorContextKey).(arcade.Actor)
	if !ok || actor.UserID == "" {
		return arcade.Actor{}, errors.New("missing actor context")
	}
	return actor, nil
}

// finish records the outcome, hands any events to the dispatcher and writes
// the error if there is one. It reports whether the handler may write its
// success response.
func (s *Server) finish(w http.ResponseWriter, op string, err error, events []arcade.Event) bool {
	s.metrics.ObserveOperation(op, err)
	if len(events) > 0 && s.events != nil {
		s.events.Dispatch(events...)
	}
	if err != nil {
		s.writeDomainError(w, op, err)
		return false
	}
	return true
}

func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		GameCenterID   string `json:"game_center_id"`
		AutoRenewLease bool   `json:"auto_renew_lease"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(in.GameCenterID) == "" {
		writeError(w, http.StatusBadRequest, "game_center_id is required")
		return
	}
	out, err := s.arcade.Install(r.Context(), actor, chi.URLParam(r, "id"), in.GameCenterID, in.AutoRenewLease)
	if !s.finish(w, "install", err, out.Events) {
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUninstall(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out, err := s.arcade.Uninstall(r.Context(), actor, chi.URLParam(r, "id"))
	if !s.finish(w, "uninstall", err, out.Events) {
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		AutoRenewLease *bool `json:"auto_renew_lease"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.AutoRenewLease == nil {
		writeError(w, http.StatusBadRequest, "auto_renew_lease is required")
		return
	}
	out, err := s.arcade.Update(r.Context(), actor, chi.URLParam(r, "id"), *in.AutoRenewLease)
	if !s.finish(w, "update", err, out.Events) {
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDismantle(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		CurrencyType string `json:"currency_type"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	currency := arcade.Currency(strings.ToUpper(strings.TrimSpace(in.CurrencyType)))
	out, err := s.arcade.Dismantle(r.Context(), actor, chi.URLParam(r, "id"), currency)
	if !s.finish(w, "dismantle", err, out.Events) {
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		IDs []string `json:"ids"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.arcade.Withdraw(r.Context(), actor, in.IDs...)
	if !s.finish(w, "withdraw", err, nil) {
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Hash string   `json:"hash"`
		IDs  []string `json:"ids"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.arcade.Deposit(r.Context(), actor, strings.TrimSpace(in.Hash), in.IDs...)
	if !s.finish(w, "deposit", err, nil) {
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePlayable(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	q := r.URL.Query()
	game := strings.TrimSpace(q.Get("game"))
	if game == "" {
		writeError(w, http.StatusBadRequest, "game is required")
		return
	}
	requestCount, err := queryInt(q.Get("request_count"), 10)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("request_count: %v", err))
		return
	}
	maxPlayingCount, err := queryInt(q.Get("max_playing_count"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("max_playing_count: %v", err))
		return
	}
	machines, err := s.arcade.ListPlayableAndRandomize(r.Context(), actor, game, requestCount, maxPlayingCount)
	if !s.finish(w, "list_playable", err, nil) {
		return
	}
	s.metrics.ObserveSelection(len(machines))
	writeJSON(w, http.StatusOK, map[string]any{"arcade_machines": machines})
}

func queryInt(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func statusFor(kind arcade.Kind) int {
	switch kind {
	case arcade.KindNotFound:
		return http.StatusNotFound
	case arcade.KindPermissionDenied:
		return http.StatusForbidden
	case arcade.KindIllegalState:
		return http.StatusUnprocessableEntity
	case arcade.KindInvalidArgument:
		return http.StatusBadRequest
	case arcade.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeDomainError(w http.ResponseWriter, op string, err error) {
	kind := arcade.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		s.log.Error("arcade operation failed", "op", op, "err", err)
		writeJSON(w, status, map[string]any{"error": "internal error", "kind": kind})
		return
	}
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(err.Error()), "kind": kind})
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
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
