package configregistry

import "errors"

// ErrMissingRiskDirection is returned by LoadCatalog when a tighten_only or
// raise_only catalog entry omits RiskDirection: such a key is refused at
// catalog-load time rather than silently treated as tunable.
var ErrMissingRiskDirection = errors.New("tighten_only/raise_only catalog entry missing risk_direction")

// ErrUnknownKey is returned when an operation references a key not present
// in the catalog.
var ErrUnknownKey = errors.New("unknown config key")

// ErrSafetyViolation is returned when an override would breach the key's
// safety semantics (immutable/tighten_only/raise_only/append_only).
var ErrSafetyViolation = errors.New("SAFETY_VIOLATION")

// ErrSchemaViolation is returned when a value fails type/bounds/enum
// validation against the catalog entry's schema.
var ErrSchemaViolation = errors.New("value fails schema validation")
