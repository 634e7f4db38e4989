// Package configregistry holds the catalog of tunable parameters, resolves
// the effective value of each key from its provenance chain
// (default -> env -> file -> active override), enforces the safety
// semantics (immutable/tighten_only/raise_only/append_only/tunable) on every
// override, and emits a signed receipt for every change.
//
// Grounded on internal/modules/settings' repository/models shape, adapted
// from a flat key-value store to a provenance + safety + receipt model.
package configregistry

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/titan-brain/internal/brain"
)

// ProvenanceEntry is one link in a key's provenance chain.
type ProvenanceEntry struct {
	Source string      `json:"source"` // default | env | file | override
	Value  interface{} `json:"value"`
}

// EffectiveValue is the result of resolving a key's provenance chain.
type EffectiveValue struct {
	Key        string            `json:"key"`
	Value      interface{}       `json:"value"`
	Provenance []ProvenanceEntry `json:"provenance"`
}

// Registry is the Config Registry component.
type Registry struct {
	catalog map[string]brain.ConfigItem
	env     map[string]string // "key" -> string value, provenance source "env"
	file    map[string]interface{}

	repo   *Repository
	secret []byte
	log    zerolog.Logger

	keyMu   sync.Mutex // guards keyLock
	keyLock map[string]*sync.Mutex
}

// New loads the catalog, validates it, and wires the registry to its
// repository. env and file are optional provenance layers (nil is fine);
// env keys are looked up by the catalog key as-is.
func New(catalog []brain.ConfigItem, env map[string]string, file map[string]interface{}, repo *Repository, secret []byte, log zerolog.Logger) (*Registry, error) {
	items := make(map[string]brain.ConfigItem, len(catalog))
	for _, item := range catalog {
		if (item.Safety == brain.SafetyTightenOnly || item.Safety == brain.SafetyRaiseOnly) && item.RiskDirection == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingRiskDirection, item.Key)
		}
		items[item.Key] = item
	}
	return &Registry{
		catalog: items,
		env:     env,
		file:    file,
		repo:    repo,
		secret:  secret,
		log:     log.With().Str("component", "configregistry").Logger(),
		keyLock: make(map[string]*sync.Mutex),
	}, nil
}

func (r *Registry) lockFor(key string) *sync.Mutex {
	r.keyMu.Lock()
	defer r.keyMu.Unlock()
	m, ok := r.keyLock[key]
	if !ok {
		m = &sync.Mutex{}
		r.keyLock[key] = m
	}
	return m
}

// GetCatalog returns every catalog item.
func (r *Registry) GetCatalog() []brain.ConfigItem {
	out := make([]brain.ConfigItem, 0, len(r.catalog))
	for _, item := range r.catalog {
		out = append(out, item)
	}
	return out
}

// GetEffective resolves a key's effective value and full provenance chain.
// Any active override whose expires_at has passed is deactivated in-place
// and omitted from the chain (sweep-on-read).
func (r *Registry) GetEffective(key string) (*EffectiveValue, error) {
	item, ok := r.catalog[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	chain := []ProvenanceEntry{{Source: "default", Value: item.Default}}
	value := item.Default

	if envVal, ok := r.env[key]; ok {
		chain = append(chain, ProvenanceEntry{Source: "env", Value: envVal})
		value = envVal
	}
	if fileVal, ok := r.file[key]; ok {
		chain = append(chain, ProvenanceEntry{Source: "file", Value: fileVal})
		value = fileVal
	}

	ov, err := r.repo.GetActiveOverride(key)
	if err != nil {
		return nil, fmt.Errorf("failed to load active override for %s: %w", key, err)
	}
	if ov != nil {
		if ov.ExpiresAt != nil && *ov.ExpiresAt < time.Now().Unix() {
			if err := r.repo.DeactivateOverride(key, "system:expiry-sweep"); err != nil {
				r.log.Warn().Err(err).Str("key", key).Msg("failed to sweep expired override")
			}
		} else {
			chain = append(chain, ProvenanceEntry{Source: "override", Value: ov.Value})
			value = ov.Value
		}
	}

	return &EffectiveValue{Key: key, Value: value, Provenance: chain}, nil
}

// CreateOverride validates and applies an override, returning the receipt.
func (r *Registry) CreateOverride(key string, value interface{}, operatorID, reason string, expiresIn *time.Duration) (*brain.Receipt, error) {
	item, ok := r.catalog[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	mu := r.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	current, err := r.GetEffective(key)
	if err != nil {
		return nil, err
	}

	if err := checkSafety(item, current.Value, value); err != nil {
		return nil, err
	}
	if err := validateSchema(item.Schema, value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}

	now := time.Now()
	var expiresAt *int64
	if expiresIn != nil {
		t := now.Add(*expiresIn).Unix()
		expiresAt = &t
	}

	ov := brain.Override{
		ID:            uuid.NewString(),
		Key:           key,
		Value:         value,
		PreviousValue: current.Value,
		OperatorID:    operatorID,
		Reason:        reason,
		ExpiresAt:     expiresAt,
		CreatedAt:     now.Unix(),
		Active:        true,
	}
	if err := r.repo.CreateOverride(ov); err != nil {
		return nil, err
	}

	rc := brain.Receipt{
		ID:            uuid.NewString(),
		Key:           key,
		PreviousValue: current.Value,
		NewValue:      value,
		OperatorID:    operatorID,
		Reason:        reason,
		Action:        brain.ActionOverride,
		ExpiresAt:     expiresAt,
		Timestamp:     now.Unix(),
	}
	sig, err := sign(r.secret, rc)
	if err != nil {
		return nil, err
	}
	rc.Signature = sig

	if err := r.repo.InsertReceipt(rc); err != nil {
		return nil, err
	}
	return &rc, nil
}

// RollbackOverride deactivates the active override for key and emits a
// receipt recording the restored (prior provenance) value.
func (r *Registry) RollbackOverride(key, operatorID string) (*brain.Receipt, error) {
	if _, ok := r.catalog[key]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	mu := r.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	ov, err := r.repo.GetActiveOverride(key)
	if err != nil {
		return nil, err
	}
	if ov == nil {
		return nil, fmt.Errorf("no active override for %s", key)
	}

	if err := r.repo.DeactivateOverride(key, operatorID); err != nil {
		return nil, err
	}

	now := time.Now()
	rc := brain.Receipt{
		ID:            uuid.NewString(),
		Key:           key,
		PreviousValue: ov.Value,
		NewValue:      ov.PreviousValue,
		OperatorID:    operatorID,
		Action:        brain.ActionRollback,
		Timestamp:     now.Unix(),
	}
	sig, err := sign(r.secret, rc)
	if err != nil {
		return nil, err
	}
	rc.Signature = sig

	if err := r.repo.InsertReceipt(rc); err != nil {
		return nil, err
	}
	return &rc, nil
}

// ListReceipts returns receipts for a key, or every receipt if key == "".
func (r *Registry) ListReceipts(key string) ([]brain.Receipt, error) {
	return r.repo.ListReceipts(key)
}
