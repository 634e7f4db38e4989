package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/titan-brain/internal/allocation"
	"github.com/aristath/titan-brain/internal/brain"
	"github.com/aristath/titan-brain/internal/configregistry"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	http.Error(w, msg, status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSignal implements POST /signal — the sole write path for trade
// intents.
func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	var intent brain.Intent
	if err := json.NewDecoder(r.Body).Decode(&intent); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid intent payload")
		return
	}
	decision, err := s.arb.Process(r.Context(), intent)
	if err != nil {
		s.log.Error().Err(err).Str("signal_id", intent.SignalID).Msg("failed to process intent")
		s.writeError(w, http.StatusInternalServerError, "failed to process intent")
		return
	}
	s.writeJSON(w, http.StatusOK, decision)
}

// handleStatus implements GET /status — component liveness plus host
// CPU/RAM, grounded on internal/server/status_monitor.go and
// system_handlers.go's gopsutil use.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"uptime_seconds": time.Since(s.startedAt).Seconds(),
		"metrics":        s.metrics.Snapshot(),
	}

	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		status["cpu_percent"] = cpuPercent[0]
	}
	if memStat, err := mem.VirtualMemory(); err == nil {
		status["memory_used_percent"] = memStat.UsedPercent
	}

	s.writeJSON(w, http.StatusOK, status)
}

// handleAllocation implements GET /allocation.
func (s *Server) handleAllocation(w http.ResponseWriter, r *http.Request) {
	startP2, err1 := s.registry.GetFloat("allocation.startP2")
	fullP2, err2 := s.registry.GetFloat("allocation.fullP2")
	startP3, err3 := s.registry.GetFloat("allocation.startP3")
	if err := firstErr(err1, err2, err3); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to resolve allocation params")
		return
	}

	manualOverride, err := allocation.ResolveManualOverride(s.registry)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	params := allocation.Params{StartP2: startP2, FullP2: fullP2, StartP3: startP3}
	effective, computed, err := s.allocation.Resolve(s.equity.CurrentEquity(), params, manualOverride)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"effective": effective,
		"computed":  computed,
	})
}

// handleTreasury implements GET /treasury.
func (s *Server) handleTreasury(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.treasury.Snapshot())
}

// handleBreaker implements GET /breaker.
func (s *Server) handleBreaker(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.breaker.Snapshot(time.Now()))
}

type breakerResetRequest struct {
	OperatorID string `json:"operator_id"`
}

// handleBreakerReset implements POST /breaker/reset — the only way out of
// HARD_HALTED. It requires a non-empty operator_id, which is recorded on
// the transition; the caller is not authenticated.
func (s *Server) handleBreakerReset(w http.ResponseWriter, r *http.Request) {
	var req breakerResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OperatorID == "" {
		s.writeError(w, http.StatusBadRequest, "operator_id is required")
		return
	}
	s.breaker.Reset(req.OperatorID, s.equity.CurrentEquity(), time.Now())
	s.writeJSON(w, http.StatusOK, s.breaker.Snapshot(time.Now()))
}

// handleConfigCatalog implements GET /config/catalog.
func (s *Server) handleConfigCatalog(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.registry.GetCatalog())
}

// handleConfigEffective implements GET /config/effective[?key=...], masking
// secret-classed keys on read.
func (s *Server) handleConfigEffective(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		out := make(map[string]*configregistry.EffectiveValue)
		for _, item := range s.registry.GetCatalog() {
			eff, err := s.registry.GetEffective(item.Key)
			if err != nil {
				continue
			}
			maskSecret(item, eff)
			out[item.Key] = eff
		}
		s.writeJSON(w, http.StatusOK, out)
		return
	}

	eff, err := s.registry.GetEffective(key)
	if err != nil {
		s.writeConfigError(w, err)
		return
	}
	if item, ok := findCatalogItem(s.registry, key); ok {
		maskSecret(item, eff)
	}
	s.writeJSON(w, http.StatusOK, eff)
}

func findCatalogItem(r *configregistry.Registry, key string) (brain.ConfigItem, bool) {
	for _, item := range r.GetCatalog() {
		if item.Key == key {
			return item, true
		}
	}
	return brain.ConfigItem{}, false
}

// maskSecret replaces a secret-classed key's value with "*****" before it
// leaves the process.
func maskSecret(item brain.ConfigItem, eff *configregistry.EffectiveValue) {
	if !isSecretKey(item) {
		return
	}
	eff.Value = "*****"
	for i := range eff.Provenance {
		eff.Provenance[i].Value = "*****"
	}
}

func isSecretKey(item brain.ConfigItem) bool {
	return strings.Contains(strings.ToLower(item.Key), "secret") || item.Schema.Type == "secret"
}

type createOverrideRequest struct {
	Key        string      `json:"key"`
	Value      interface{} `json:"value"`
	OperatorID string      `json:"operator_id"`
	Reason     string      `json:"reason"`
	ExpiresInS *int64      `json:"expires_in_seconds,omitempty"`
}

// handleConfigCreateOverride implements POST /config/override. A masked
// "*****" value is treated as a no-op write.
func (s *Server) handleConfigCreateOverride(w http.ResponseWriter, r *http.Request) {
	var req createOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid override payload")
		return
	}
	if req.Value == "*****" {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ignored (masked value)"})
		return
	}

	receipt, err := s.registry.CreateOverride(req.Key, req.Value, req.OperatorID, req.Reason, expiresIn(req.ExpiresInS))
	if err != nil {
		s.writeConfigError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, receipt)
}

type rollbackOverrideRequest struct {
	Key        string `json:"key"`
	OperatorID string `json:"operator_id"`
}

// handleConfigRollbackOverride implements DELETE /config/override.
func (s *Server) handleConfigRollbackOverride(w http.ResponseWriter, r *http.Request) {
	var req rollbackOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid rollback payload")
		return
	}
	receipt, err := s.registry.RollbackOverride(req.Key, req.OperatorID)
	if err != nil {
		s.writeConfigError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, receipt)
}

// handleConfigReceipts implements GET /config/receipts[?key=...].
func (s *Server) handleConfigReceipts(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	receipts, err := s.registry.ListReceipts(key)
	if err != nil {
		s.writeConfigError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, receipts)
}

type bulkOverrideEntry struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

type bulkOverrideRequest struct {
	OperatorID string              `json:"operator_id"`
	Reason     string              `json:"reason"`
	Overrides  []bulkOverrideEntry `json:"overrides"`
}

// handleConfigBulk implements POST /config/bulk — batched CreateOverride
// calls sharing one operator/reason.
func (s *Server) handleConfigBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid bulk payload")
		return
	}

	receipts := make([]*brain.Receipt, 0, len(req.Overrides))
	for _, entry := range req.Overrides {
		if entry.Value == "*****" {
			continue
		}
		receipt, err := s.registry.CreateOverride(entry.Key, entry.Value, req.OperatorID, req.Reason, nil)
		if err != nil {
			s.writeConfigError(w, err)
			return
		}
		receipts = append(receipts, receipt)
	}
	s.writeJSON(w, http.StatusOK, receipts)
}

type presetRequest struct {
	OperatorID string             `json:"operator_id"`
	Reason     string             `json:"reason"`
	Values     map[string]float64 `json:"values"`
}

// handleConfigPreset implements POST /config/preset/:name — a named bundle
// of overrides applied as one batch. The preset's key/value bundle is
// supplied by the caller; this endpoint only knows how to apply one, not
// a built-in catalog of named presets.
func (s *Server) handleConfigPreset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req presetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid preset payload")
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = "preset:" + name
	}

	receipts := make([]*brain.Receipt, 0, len(req.Values))
	for key, value := range req.Values {
		receipt, err := s.registry.CreateOverride(key, value, req.OperatorID, reason, nil)
		if err != nil {
			s.writeConfigError(w, err)
			return
		}
		receipts = append(receipts, receipt)
	}
	s.writeJSON(w, http.StatusOK, receipts)
}

func (s *Server) writeConfigError(w http.ResponseWriter, err error) {
	if errors.Is(err, configregistry.ErrUnknownKey) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeError(w, http.StatusBadRequest, err.Error())
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func expiresIn(seconds *int64) *time.Duration {
	if seconds == nil {
		return nil
	}
	d := time.Duration(*seconds) * time.Second
	return &d
}
