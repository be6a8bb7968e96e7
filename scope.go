// Copyright (c) The Threadline Authors. All rights reserved.

package threadline

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DefaultScopeField is the scope key field used when none are configured.
const DefaultScopeField = "session_id"

// scopeSeparator joins scope field values into a store key. Field values may
// not contain it, so distinct tuples can never alias.
const scopeSeparator = "\x1e"

// Config is the out-of-band per-call configuration channel. Scope key field
// values are read from it, never from the input payload.
type Config map[string]string

// KeyField describes one named component of a [ScopeKey].
type KeyField struct {
	Name       string
	Default    string
	HasDefault bool
}

// Field declares a required scope key field. Calls that omit it from their
// [Config] fail with [ErrConfig].
func Field(name string) KeyField {
	return KeyField{Name: name}
}

// FieldDefault declares a scope key field with a fallback value used when the
// call's [Config] omits it.
func FieldDefault(name, def string) KeyField {
	return KeyField{Name: name, Default: def, HasDefault: true}
}

// ScopeKey is an ordered tuple of field values selecting which history a call
// affects. Equal keys always resolve to the same history; distinct keys to
// disjoint ones.
type ScopeKey struct {
	fields []string
	values []string
}

// ScopeOf builds a ScopeKey directly from ordered values, without field
// names. Useful when driving a [HistoryStore] by hand.
func ScopeOf(values ...string) ScopeKey {
	return ScopeKey{values: values}
}

// String returns the store key for this scope.
func (k ScopeKey) String() string {
	return strings.Join(k.values, scopeSeparator)
}

// Values returns the ordered field values.
func (k ScopeKey) Values() []string {
	cp := make([]string, len(k.values))
	copy(cp, k.values)
	return cp
}

// Field returns the value of the named field, if the key carries field names.
func (k ScopeKey) Field(name string) (string, bool) {
	for i, f := range k.fields {
		if f == name {
			return k.values[i], true
		}
	}
	return "", false
}

// IsZero reports whether the key has no values.
func (k ScopeKey) IsZero() bool { return len(k.values) == 0 }

// scopeFromConfig resolves the ordered key fields against a call's Config,
// applying per-field defaults. A missing required field or a value containing
// the separator fails with ErrConfig before any side effect occurs.
func scopeFromConfig(fields []KeyField, cfg Config) (ScopeKey, error) {
	key := ScopeKey{
		fields: make([]string, 0, len(fields)),
		values: make([]string, 0, len(fields)),
	}
	for _, f := range fields {
		val, ok := cfg[f.Name]
		if !ok {
			if !f.HasDefault {
				return ScopeKey{}, fmt.Errorf("%w: missing scope key field %q", ErrConfig, f.Name)
			}
			val = f.Default
		}
		if strings.Contains(val, scopeSeparator) {
			return ScopeKey{}, fmt.Errorf("%w: scope key field %q contains reserved separator", ErrConfig, f.Name)
		}
		key.fields = append(key.fields, f.Name)
		key.values = append(key.values, val)
	}
	return key, nil
}

func validateKeyFields(fields []KeyField) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: at least one scope key field is required", ErrConfig)
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return fmt.Errorf("%w: scope key field with empty name", ErrConfig)
		}
		if seen[f.Name] {
			return fmt.Errorf("%w: duplicate scope key field %q", ErrConfig, f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

// NewSessionID returns a fresh identifier suitable as a session_id value.
func NewSessionID() string {
	return uuid.NewString()
}
