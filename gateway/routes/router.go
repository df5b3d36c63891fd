// Package routes assembles the fulfillment gateway: a read-only HTTP surface
// over the node for fulfillment teams and storefronts.
package routes

import (
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"stakevault/gateway/middleware"
	nativecommon "stakevault/native/common"
	"stakevault/native/staking"
	"stakevault/native/vault"
)

// Backend is the slice of node behavior the gateway reads.
type Backend interface {
	Status() nativecommon.Status
	VaultEntry(catalog uint64) (*vault.Entry, error)
	ClaimHistory(catalog uint64) ([]vault.Redemption, error)
	Balance(owner [20]byte, collections []uint64, verify bool) (*big.Int, error)
	Position(owner [20]byte, collection uint64) (*staking.StakeRecord, error)
}

type Config struct {
	Backend       Backend
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
}

type handlers struct {
	backend Backend
}

// New builds the gateway router.
func New(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Middleware())
	}
	obs := cfg.Observability
	if obs != nil {
		r.Use(obs.Middleware("gateway"))
	}

	h := &handlers{backend: cfg.Backend}

	r.Get("/healthz", h.health)
	if obs != nil {
		r.Handle("/metrics", obs.MetricsHandler())
	}

	r.Route("/v1", func(v1 chi.Router) {
		if cfg.Authenticator != nil {
			v1.Use(cfg.Authenticator.Middleware())
		}
		v1.Get("/redemptions/{catalogID}", h.redemptions)
		v1.Get("/catalog/{catalogID}", h.catalogEntry)
		v1.Get("/balance/{owner}", h.balance)
	})

	return r
}

type healthResponse struct {
	Status string `json:"status"`
	System string `json:"system"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		System: h.backend.Status().String(),
	})
}

type redemptionResponse struct {
	Claimant string `json:"claimant"`
	Quantity uint64 `json:"quantity"`
}

func (h *handlers) redemptions(w http.ResponseWriter, r *http.Request) {
	catalog, err := catalogParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	log, err := h.backend.ClaimHistory(catalog)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]redemptionResponse, len(log))
	for i, redemption := range log {
		out[i] = redemptionResponse{
			Claimant: "0x" + hex.EncodeToString(redemption.Claimant[:]),
			Quantity: redemption.Quantity,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type catalogResponse struct {
	Catalog  uint64 `json:"catalog"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Cost     string `json:"cost"`
	Hurdle   string `json:"hurdle"`
	Stock    uint64 `json:"stock,omitempty"`
	PoolSize int    `json:"poolSize,omitempty"`
	ClaimCap uint64 `json:"claimCap,omitempty"`
}

func (h *handlers) catalogEntry(w http.ResponseWriter, r *http.Request) {
	catalog, err := catalogParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	entry, err := h.backend.VaultEntry(catalog)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, catalogResponse{
		Catalog:  entry.ID,
		Name:     entry.Name,
		Kind:     entry.Kind.String(),
		Cost:     entry.Cost.String(),
		Hurdle:   entry.Hurdle.String(),
		Stock:    entry.Stock,
		PoolSize: len(entry.Pool),
		ClaimCap: entry.ClaimCap,
	})
}

type balanceResponse struct {
	Owner   string `json:"owner"`
	Balance string `json:"balance"`
}

// balance serves the display balance: no external ownership re-verification.
func (h *handlers) balance(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(chi.URLParam(r, "owner"), "0x")
	decoded, err := hex.DecodeString(raw)
	if err != nil || len(decoded) != 20 {
		http.Error(w, "invalid owner address", http.StatusBadRequest)
		return
	}
	var owner [20]byte
	copy(owner[:], decoded)

	var collections []uint64
	if param := r.URL.Query().Get("collections"); param != "" {
		for _, piece := range strings.Split(param, ",") {
			id, err := strconv.ParseUint(strings.TrimSpace(piece), 10, 64)
			if err != nil {
				http.Error(w, "invalid collection list", http.StatusBadRequest)
				return
			}
			collections = append(collections, id)
		}
	}

	balance, err := h.backend.Balance(owner, collections, false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		Owner:   "0x" + hex.EncodeToString(owner[:]),
		Balance: balance.String(),
	})
}

func catalogParam(r *http.Request) (uint64, error) {
	return strconv.ParseUint(chi.URLParam(r, "catalogID"), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
