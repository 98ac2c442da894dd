/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package rooms

import (
	"bytes"
	"encoding/json"
)

// Optional is either present(value) or absent. The zero value is absent.
type Optional[T any] struct {
	value   T
	present bool
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, present: true}
}

func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.present
}

func (o Optional[T]) Present() bool {
	return o.present
}

// OrElse returns the value if present, def otherwise.
func (o Optional[T]) OrElse(def T) T {
	if o.present {
		return o.value
	}
	return def
}

// MarshalJSON encodes an absent value as null.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.present {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON decodes null as absent. A missing key never reaches this
// method and leaves the zero value, which is also absent.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = None[T]()
		return nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)

	return nil
}

// NonEmpty maps "" to absent. Identifiers on the wire are never empty, so an
// empty string carries the same meaning as a missing one.
func NonEmpty(o Optional[string]) Optional[string] {
	if v, ok := o.Get(); ok && v == "" {
		return None[string]()
	}
	return o
}
