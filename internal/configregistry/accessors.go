package configregistry

import "fmt"

// GetFloat resolves a key's effective value as a float64 — the convenience
// accessor every numeric-threshold consumer (allocation, performance, risk,
// treasury, breaker, arbitrator) uses instead of re-deriving provenance
// resolution itself.
func (r *Registry) GetFloat(key string) (float64, error) {
	ev, err := r.GetEffective(key)
	if err != nil {
		return 0, err
	}
	f, ok := asFloat(ev.Value)
	if !ok {
		return 0, fmt.Errorf("config key %s is not numeric (got %T)", key, ev.Value)
	}
	return f, nil
}

// GetString resolves a key's effective value as a string.
func (r *Registry) GetString(key string) (string, error) {
	ev, err := r.GetEffective(key)
	if err != nil {
		return "", err
	}
	s, ok := ev.Value.(string)
	if !ok {
		return "", fmt.Errorf("config key %s is not a string (got %T)", key, ev.Value)
	}
	return s, nil
}

// GetBool resolves a key's effective value as a bool.
func (r *Registry) GetBool(key string) (bool, error) {
	ev, err := r.GetEffective(key)
	if err != nil {
		return false, err
	}
	b, ok := ev.Value.(bool)
	if !ok {
		return false, fmt.Errorf("config key %s is not a bool (got %T)", key, ev.Value)
	}
	return b, nil
}
