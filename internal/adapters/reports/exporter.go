// Package reports renders routing artifacts (sequence CSV, statistics JSON and
// registry snapshots) and archives them in a blob store.
package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"routingcore/internal/blob"
	"routingcore/internal/routing"
	"routingcore/pkg/domain"
)

const timestampLayout = "20060102T150405.000000000Z"

// Source is the read side of the routing service consumed by the exporter.
type Source interface {
	SequenceFrom(ctx context.Context, start string) routing.Sequence
	Stats(ctx context.Context, predicate domain.Predicate) routing.Stats
	List() []domain.Operation
}

// ErrEmptySequence is returned when a sequence export resolves no operations,
// which happens for unknown or deactivated start codes.
var ErrEmptySequence = errors.New("reports: sequence is empty")

// Exporter writes report artifacts to a blob store.
type Exporter struct {
	source Source
	store  blob.Store
	now    func() time.Time
}

// Option customizes an Exporter.
type Option func(*Exporter)

// WithClock overrides the timestamp source used in artifact keys.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExporter constructs an exporter over source writing into store.
func NewExporter(source Source, store blob.Store, opts ...Option) *Exporter {
	e := &Exporter{source: source, store: store, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Exporter) stamp() string { return e.now().UTC().Format(timestampLayout) }

// SequenceKey returns the archive key for a sequence export.
func SequenceKey(code, stamp string) string {
	return "routings/" + code + "/sequence-" + stamp + ".csv"
}

// StatsKey returns the archive key for a statistics export.
func StatsKey(stamp string) string { return "stats/" + stamp + ".json" }

// SnapshotKey returns the archive key for a registry snapshot.
func SnapshotKey(stamp string) string { return "snapshots/" + stamp + ".json" }

var sequenceHeader = []string{
	"step", "operationCode", "operationName", "operationType", "category",
	"setupTime", "cycleTime", "teardownTime", "hourlyRate", "currency", "canRunParallel",
}

// ExportSequence renders the routing from start as CSV, one row per step.
// Structural warnings travel in the blob metadata.
func (e *Exporter) ExportSequence(ctx context.Context, start string) (blob.Info, error) {
	start = strings.TrimSpace(start)
	seq := e.source.SequenceFrom(ctx, start)
	if len(seq.Operations) == 0 {
		return blob.Info{}, fmt.Errorf("%w: %s", ErrEmptySequence, start)
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(sequenceHeader); err != nil {
		return blob.Info{}, err
	}
	for i, op := range seq.Operations {
		row := []string{
			strconv.Itoa(i + 1),
			op.OperationCode,
			op.OperationName,
			string(op.OperationType),
			string(op.Category),
			formatFloat(op.SetupTime),
			formatFloat(op.CycleTime),
			formatFloat(op.TeardownTime),
			formatFloat(routing.Round(op.HourlyRate(), 2)),
			op.Currency,
			strconv.FormatBool(op.CanRunParallel),
		}
		if err := w.Write(row); err != nil {
			return blob.Info{}, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return blob.Info{}, err
	}
	meta := map[string]string{
		"start":    start,
		"steps":    strconv.Itoa(len(seq.Operations)),
		"warnings": strconv.Itoa(len(seq.Warnings)),
	}
	return e.put(ctx, SequenceKey(start, e.stamp()), buf.Bytes(), "text/csv", meta)
}

// ExportStats writes statistics over the operations matching predicate. A
// nil predicate selects every operation; label is recorded as metadata.
func (e *Exporter) ExportStats(ctx context.Context, predicate domain.Predicate, label string) (blob.Info, error) {
	stats := e.source.Stats(ctx, predicate)
	payload, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return blob.Info{}, err
	}
	meta := map[string]string{"total": strconv.Itoa(stats.Total)}
	if label != "" {
		meta["filter"] = label
	}
	return e.put(ctx, StatsKey(e.stamp()), payload, "application/json", meta)
}

type snapshotDocument struct {
	GeneratedAt time.Time          `json:"generatedAt"`
	Operations  []domain.Operation `json:"operations"`
}

// ExportSnapshot writes every registered operation, in insertion order.
func (e *Exporter) ExportSnapshot(ctx context.Context) (blob.Info, error) {
	now := e.now().UTC()
	doc := snapshotDocument{GeneratedAt: now, Operations: e.source.List()}
	if doc.Operations == nil {
		doc.Operations = []domain.Operation{}
	}
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return blob.Info{}, err
	}
	meta := map[string]string{"operations": strconv.Itoa(len(doc.Operations))}
	return e.put(ctx, SnapshotKey(now.Format(timestampLayout)), payload, "application/json", meta)
}

// LoadSnapshot reads a snapshot written by ExportSnapshot.
func (e *Exporter) LoadSnapshot(ctx context.Context, key string) ([]domain.Operation, error) {
	_, rc, err := e.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	var doc snapshotDocument
	if err := json.NewDecoder(rc).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return doc.Operations, nil
}

// Latest returns the most recent artifact under prefix. Keys embed a sortable
// UTC timestamp, so the last key in order is the newest.
func (e *Exporter) Latest(ctx context.Context, prefix string) (blob.Info, bool, error) {
	infos, err := e.store.List(ctx, prefix)
	if err != nil || len(infos) == 0 {
		return blob.Info{}, false, err
	}
	return infos[len(infos)-1], true, nil
}

func (e *Exporter) put(ctx context.Context, key string, payload []byte, contentType string, meta map[string]string) (blob.Info, error) {
	info, err := e.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{ContentType: contentType, Metadata: meta})
	if err != nil {
		return blob.Info{}, fmt.Errorf("store %s: %w", key, err)
	}
	if info.URL == "" {
		if url, err := e.store.PresignURL(ctx, key, blob.SignedURLOptions{}); err == nil {
			info.URL = url
		}
	}
	return info, nil
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
