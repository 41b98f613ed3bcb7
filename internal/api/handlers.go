package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Swind/go-pool-registry/core"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// createPoolRequest accepts durations as Go duration strings.
type createPoolRequest struct {
	Name string `json:"name"`
	core.PoolConfig
	KeepAlive    string `json:"keep_alive"`
	ReadyTimeout string `json:"ready_timeout"`
}

func (req createPoolRequest) config() (core.PoolConfig, error) {
	cfg := req.PoolConfig
	cfg.KeepAlive = core.DefaultKeepAlive
	if req.KeepAlive != "" {
		d, err := time.ParseDuration(req.KeepAlive)
		if err != nil {
			return cfg, err
		}
		cfg.KeepAlive = d
	}
	if req.ReadyTimeout != "" {
		d, err := time.ParseDuration(req.ReadyTimeout)
		if err != nil {
			return cfg, err
		}
		cfg.ReadyTimeout = d
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = max(cfg.CoreSize, 1)
	}
	return cfg, nil
}

type shutdownResponse struct {
	Name    string `json:"name"`
	Dropped int    `json:"dropped"`
	Now     bool   `json:"now"`
}

// Health check
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if s.registry.IsClosed() {
		status = "closed"
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, map[string]interface{}{
		"status": status,
		"pools":  len(s.registry.Names()),
		"time":   time.Now().UTC(),
	})
}

// Pool handlers

func (s *Server) listPools(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.registry.Snapshot())
}

func (s *Server) createPool(w http.ResponseWriter, r *http.Request) {
	var req createPoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cfg, err := req.config()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		req.Name = "pool-" + uuid.NewString()
	}

	if err := s.registry.CreatePool(req.Name, cfg); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	stats, err := s.registry.Stats(req.Name)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, stats)
}

func (s *Server) getPool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	stats, err := s.registry.Stats(name)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) shutdownPool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	now, _ := strconv.ParseBool(r.URL.Query().Get("now"))

	resp := shutdownResponse{Name: name, Now: now}
	if now {
		dropped, err := s.registry.ShutdownNow(name)
		if err != nil {
			respondError(w, statusFor(err), err.Error())
			return
		}
		resp.Dropped = len(dropped)
	} else if err := s.registry.Shutdown(name); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) recentTasks(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	p, ok := s.registry.Lookup(name)
	if !ok {
		respondError(w, http.StatusNotFound, "Pool not found")
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}

	tasks := p.RecentTasks(limit)
	if tasks == nil {
		tasks = []core.TaskExecutionRecord{}
	}
	respondJSON(w, http.StatusOK, tasks)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrPoolNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrPoolExists):
		return http.StatusConflict
	case errors.Is(err, core.ErrNameReserved):
		return http.StatusForbidden
	case errors.Is(err, core.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrRegistryClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}
