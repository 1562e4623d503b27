package cache

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"time"
)

// Store is the key-value contract every storage backend implements.
// Values are opaque encoded bytes; the Service owns encoding.
//
// TTL semantics for Set: a positive duration expires the entry after that
// duration, zero or negative means the entry never expires.
//
// Expiry is lazy: an expired entry is removed when Get, Has or Size
// notices it.
type Store interface {
	// Get retrieves a value by key.
	// Returns ErrNotFound if the key does not exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Has reports whether a key exists and has not expired.
	Has(ctx context.Context, key string) (bool, error)

	// Clear removes all entries.
	Clear(ctx context.Context) error

	// Size returns the number of live entries, purging expired ones first.
	Size(ctx context.Context) (int, error)

	// Close releases resources held by the backend.
	Close() error
}

// Codec serializes values handed to the Service into the bytes kept by a Store.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec encodes values with encoding/json. It is the default codec.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Join(ErrMarshal, err)
	}
	return data, nil
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Join(ErrUnmarshal, err)
	}
	return nil
}

// GobCodec encodes values with encoding/gob.
// Concrete types stored behind interfaces must be registered with gob.Register.
type GobCodec struct{}

func (GobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, errors.Join(ErrMarshal, err)
	}
	return buf.Bytes(), nil
}

func (GobCodec) Unmarshal(data []byte, v any) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return errors.Join(ErrUnmarshal, err)
	}
	return nil
}

// expiresAt converts a TTL into an absolute expiry. Zero means never.
func expiresAt(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

// expiresAtMillis is expiresAt in Unix milliseconds, 0 meaning never.
func expiresAtMillis(ttl time.Duration) int64 {
	t := expiresAt(ttl)
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// expiredMillis reports whether an absolute Unix millisecond expiry has passed.
func expiredMillis(expiresAt int64, now time.Time) bool {
	return expiresAt > 0 && now.UnixMilli() > expiresAt
}
