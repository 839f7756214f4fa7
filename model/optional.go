package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
)

// Optional holds a request field that may be absent. An absent field leaves the
// stored value untouched during a partial update.
type Optional[T any] struct {
	value T
	set   bool
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// None returns an absent Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

// IsSet reports whether the field was provided.
func (o Optional[T]) IsSet() bool {
	return o.set
}

// OrElse returns the value when present, def otherwise.
func (o Optional[T]) OrElse(def T) T {
	if o.set {
		return o.value
	}
	return def
}

// ApplyTo copies the value into dst when present and reports whether it did.
func (o Optional[T]) ApplyTo(dst *T) bool {
	if !o.set || dst == nil {
		return false
	}
	*dst = o.value
	return true
}

// Value lets ozzo-validation rules see through the wrapper: an absent field
// validates as nil and is skipped by every rule except Required/NotNil.
func (o Optional[T]) Value() (driver.Value, error) {
	if !o.set {
		return nil, nil
	}
	return any(o.value), nil
}

// MarshalJSON encodes an absent field as null.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.set {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON treats an explicit null the same as an omitted key.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Optional[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}
