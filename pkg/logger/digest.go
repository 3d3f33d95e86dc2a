package logger

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Publisher sends a digest somewhere, typically a Kafka topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

// DigestEntry is one distinct warning or error seen during a run.
type DigestEntry struct {
	Level     string                   `json:"level"`
	Message   string                   `json:"message"`
	Caller    string                   `json:"caller"`
	Count     int                      `json:"count"`
	Samples   []map[string]interface{} `json:"samples"`
	FirstSeen time.Time                `json:"first_seen"`
	LastSeen  time.Time                `json:"last_seen"`

	seq int
}

// RunDigest is the payload published when a digest is flushed.
type RunDigest struct {
	RunID   string        `json:"run_id"`
	Entries []DigestEntry `json:"entries"`
}

// Digest groups repeated warnings and errors of a run by level, message and
// caller, keeping the fields of the first few occurrences.
type Digest struct {
	runID      string
	maxSamples int
	seq        int
	mu         sync.Mutex
	entries    map[string]*DigestEntry
}

func NewDigest(runID string, maxSamples int) *Digest {
	if maxSamples <= 0 {
		maxSamples = 5
	}
	return &Digest{runID: runID, maxSamples: maxSamples, entries: make(map[string]*DigestEntry)}
}

func (d *Digest) Add(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := digestKey(level, message, caller)

	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.entries[key]
	if !ok {
		d.seq++
		entry = &DigestEntry{Level: level, Message: message, Caller: caller, FirstSeen: now, seq: d.seq}
		d.entries[key] = entry
	}
	entry.Count++
	entry.LastSeen = now
	if len(entry.Samples) < d.maxSamples && len(fields) > 0 {
		entry.Samples = append(entry.Samples, fields)
	}
}

// Snapshot returns the entries ordered by first occurrence.
func (d *Digest) Snapshot() RunDigest {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := RunDigest{RunID: d.runID, Entries: make([]DigestEntry, 0, len(d.entries))}
	for _, e := range d.entries {
		out.Entries = append(out.Entries, *e)
	}
	sort.Slice(out.Entries, func(i, j int) bool {
		return out.Entries[i].seq < out.Entries[j].seq
	})
	return out
}

// Flush publishes the digest to topic and resets it. An empty digest is
// not published.
func (d *Digest) Flush(ctx context.Context, p Publisher, topic string) error {
	snap := d.Snapshot()
	if len(snap.Entries) == 0 || p == nil {
		return nil
	}
	if err := p.PublishMessage(ctx, topic, snap); err != nil {
		return fmt.Errorf("publish run digest: %w", err)
	}

	d.mu.Lock()
	d.entries = make(map[string]*DigestEntry)
	d.mu.Unlock()
	return nil
}

func digestKey(level, message, caller string) string {
	sum := sha256.Sum256([]byte(level + "\x00" + message + "\x00" + caller))
	return fmt.Sprintf("%x", sum)
}
