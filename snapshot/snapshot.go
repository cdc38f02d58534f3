// Package snapshot provides the serialized-data carrier used to persist
// archive entry metadata.
//
// A Record is an ordered set of keyed fields. Writers append fields in a
// fixed order (base entity fields first, then whatever a derived entity
// adds) and that order is part of the wire layout: records encode as a
// CBOR array of key/value pairs, not a map. Readers fetch fields by key
// with typed accessors; a missing or mistyped field is an error rather
// than a zero value.
package snapshot

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Sentinel errors returned by the typed accessors.
var (
	// ErrMissingField is returned when a record has no field with the
	// requested key.
	ErrMissingField = errors.New("snapshot: missing field")

	// ErrFieldType is returned when a field's stored value cannot be
	// read as the requested type.
	ErrFieldType = errors.New("snapshot: field has wrong type")
)

// Field is one keyed value in a record. Value holds the raw CBOR
// encoding so that readers decide the type at access time.
type Field struct {
	Key   string          `cbor:"k"`
	Value cbor.RawMessage `cbor:"v"`
}

// Record is an ordered collection of keyed fields.
//
// The zero value is an empty record ready for use. Encoding errors from
// Put calls are held and reported by Encode, so a write sequence does
// not need per-call error handling.
type Record struct {
	fields []Field
	err    error
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{}
}

// Decode parses an encoded record.
func Decode(data []byte) (*Record, error) {
	var fields []Field
	if err := cbor.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("snapshot: decode record: %w", err)
	}
	return &Record{fields: fields}, nil
}

// Encode returns the wire form of the record, preserving field order.
func (r *Record) Encode() ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	data, err := cbor.Marshal(r.fields)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode record: %w", err)
	}
	return data, nil
}

// Len returns the number of fields in the record.
func (r *Record) Len() int {
	return len(r.fields)
}

// Keys returns the field keys in their stored order.
func (r *Record) Keys() []string {
	keys := make([]string, len(r.fields))
	for i, f := range r.fields {
		keys[i] = f.Key
	}
	return keys
}

// PutString appends a string field.
func (r *Record) PutString(key, v string) {
	r.put(key, v)
}

// PutInt appends a signed integer field.
func (r *Record) PutInt(key string, v int64) {
	r.put(key, v)
}

// PutUint appends an unsigned integer field.
func (r *Record) PutUint(key string, v uint64) {
	r.put(key, v)
}

func (r *Record) put(key string, v any) {
	if r.err != nil {
		return
	}
	data, err := cbor.Marshal(v)
	if err != nil {
		r.err = fmt.Errorf("snapshot: encode field %q: %w", key, err)
		return
	}
	r.fields = append(r.fields, Field{Key: key, Value: data})
}

// String reads a string field.
func (r *Record) String(key string) (string, error) {
	var v string
	if err := r.get(key, &v); err != nil {
		return "", err
	}
	return v, nil
}

// Int reads a signed integer field.
func (r *Record) Int(key string) (int64, error) {
	var v int64
	if err := r.get(key, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// Uint reads an unsigned integer field.
func (r *Record) Uint(key string) (uint64, error) {
	var v uint64
	if err := r.get(key, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// get decodes the first field stored under key into out.
func (r *Record) get(key string, out any) error {
	for _, f := range r.fields {
		if f.Key != key {
			continue
		}
		if err := cbor.Unmarshal(f.Value, out); err != nil {
			return fmt.Errorf("%w: %q: %v", ErrFieldType, key, err)
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrMissingField, key)
}
