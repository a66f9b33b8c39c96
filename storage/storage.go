// Package storage defines the key/value store consumed by the composer core
// and a SQLite-backed implementation of it. Keys are canonical resource paths
// (e.g. /components/article, /pages/abc); values are raw JSON documents.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
)

// ErrNotFound is returned when a requested key does not exist.
var ErrNotFound = errors.New("not found")

// OpPut is the only operation type a batch may carry.
const OpPut = "put"

// Op is one staged write within an atomic multi-key batch.
type Op struct {
	Type  string          `json:"type"`
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Entry is one key/value pair produced by a buffered listing.
type Entry struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value,omitempty"`
}

// ListOptions selects the keys a List call returns.
type ListOptions struct {
	Prefix string // keys must start with this prefix
	Values bool   // include values, not just keys
	Stream bool   // produce a live byte stream instead of a buffered slice
}

// ListResult is the tagged result of a List call: exactly one of the
// buffered or streamed variants is set. A zero ListResult carries neither
// and indicates a store implementation bug.
type ListResult struct {
	entries []Entry
	stream  io.ReadCloser
	kind    listKind
}

type listKind int

const (
	listNone listKind = iota
	listBuffered
	listStreamed
)

// BufferedList wraps an already-materialized collection of entries.
func BufferedList(entries []Entry) ListResult {
	return ListResult{entries: entries, kind: listBuffered}
}

// StreamedList wraps a live byte stream. The stream's content is a JSON
// array, produced incrementally; the caller owns closing it.
func StreamedList(rc io.ReadCloser) ListResult {
	return ListResult{stream: rc, kind: listStreamed}
}

// Buffered returns the materialized entries, if this result is buffered.
func (r ListResult) Buffered() ([]Entry, bool) {
	return r.entries, r.kind == listBuffered
}

// Streamed returns the byte stream, if this result is streamed.
func (r ListResult) Streamed() (io.ReadCloser, bool) {
	return r.stream, r.kind == listStreamed
}

// Store is the key/value engine the composer core runs against.
// Batch is atomic: either every op is visible afterwards or none is.
type Store interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Put(ctx context.Context, key string, value json.RawMessage) error
	List(ctx context.Context, opts ListOptions) (ListResult, error)
	Batch(ctx context.Context, ops []Op) error
	Close() error
}
