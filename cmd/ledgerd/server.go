package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"marginledger/config"
	"marginledger/core/ledger"
	"marginledger/crypto"
	"marginledger/native/margin"
	"marginledger/native/pool"
	"marginledger/native/strategy"
	"marginledger/native/vault"
)

// server exposes health, metrics and read-only views of committed state.
type server struct {
	exec    *ledger.Executor
	logger  *slog.Logger
	limiter *queryLimiter
}

func newServer(exec *ledger.Executor, logger *slog.Logger, limits config.QueryLimits) *server {
	return &server{
		exec:    exec,
		logger:  logger,
		limiter: newQueryLimiter(limits.RequestsPerMinute, limits.Burst),
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(s.limiter.middleware)
		v1.Get("/vaults/{asset}", s.getVault)
		v1.Get("/pools/{id}", s.getPool)
		v1.Get("/positions/{id}", s.getPosition)
		v1.Get("/strategies/{id}", s.getStrategy)
		v1.Get("/balances/{account}/{asset}", s.getBalance)
	})
	return otelhttp.NewHandler(r, serviceName)
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) getVault(w http.ResponseWriter, r *http.Request) {
	v, err := s.exec.Vault(chi.URLParam(r, "asset"))
	s.respond(w, v, err)
}

func (s *server) getPool(w http.ResponseWriter, r *http.Request) {
	id, ok := s.address(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	p, err := s.exec.Pool(id)
	s.respond(w, p, err)
}

func (s *server) getPosition(w http.ResponseWriter, r *http.Request) {
	id, ok := s.address(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	p, err := s.exec.Position(id)
	s.respond(w, p, err)
}

func (s *server) getStrategy(w http.ResponseWriter, r *http.Request) {
	id, ok := s.address(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	st, err := s.exec.Strategy(id)
	s.respond(w, st, err)
}

func (s *server) getBalance(w http.ResponseWriter, r *http.Request) {
	account, ok := s.address(w, chi.URLParam(r, "account"))
	if !ok {
		return
	}
	asset := chi.URLParam(r, "asset")
	amount, err := s.exec.Balance(account, asset)
	s.respond(w, map[string]any{"account": account.String(), "asset": asset, "amount": amount}, err)
}

func (s *server) address(w http.ResponseWriter, raw string) (crypto.Address, bool) {
	addr, err := crypto.DecodeAddress(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return crypto.Address{}, false
	}
	return addr, true
}

func (s *server) respond(w http.ResponseWriter, body any, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, body)
	case isNotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		s.logger.Error("query failed", slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, vault.ErrVaultNotFound) ||
		errors.Is(err, pool.ErrPoolNotFound) ||
		errors.Is(err, margin.ErrPositionNotFound) ||
		errors.Is(err, strategy.ErrStrategyNotFound)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
