package audit

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/FranksOps/appraise/internal/storage"
)

type memBackend struct {
	mu      sync.Mutex
	records []*storage.FetchRecord
	err     error
}

func (m *memBackend) Save(ctx context.Context, r *storage.FetchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, r)
	return nil
}

func (m *memBackend) Query(ctx context.Context, f storage.Filter) ([]*storage.FetchRecord, error) {
	return m.records, nil
}

func (m *memBackend) Close() error { return nil }

func TestRecorder_StampsAndSaves(t *testing.T) {
	mem := &memBackend{}
	r := NewRecorder(mem, nil)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	rec := &storage.FetchRecord{Source: "Kovels", URL: "https://www.kovels.com/search?q=clock", StatusCode: 200}
	r.Record(context.Background(), rec)

	if len(mem.records) != 1 {
		t.Fatalf("expected 1 saved record, got %d", len(mem.records))
	}
	if rec.ID == "" {
		t.Error("expected ID to be assigned")
	}
	if !rec.CreatedAt.Equal(fixed) {
		t.Errorf("expected CreatedAt %v, got %v", fixed, rec.CreatedAt)
	}
}

func TestRecorder_CanceledContextStillSaves(t *testing.T) {
	mem := &memBackend{}
	r := NewRecorder(mem, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Record(ctx, &storage.FetchRecord{Source: "Heritage Auctions"})

	if len(mem.records) != 1 {
		t.Fatalf("expected record saved despite canceled context, got %d", len(mem.records))
	}
}

func TestRecorder_SaveErrorSwallowed(t *testing.T) {
	r := NewRecorder(&memBackend{err: errors.New("disk full")}, nil)
	r.Record(context.Background(), &storage.FetchRecord{Source: "WorthPoint"})
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder
	r.Record(context.Background(), &storage.FetchRecord{})
	if err := r.Close(); err != nil {
		t.Errorf("expected nil error closing nil recorder, got %v", err)
	}

	NewRecorder(nil, nil).Record(context.Background(), &storage.FetchRecord{Source: "x"})
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	b, err := Open(ctx, "", "")
	if err != nil || b != nil {
		t.Fatalf("expected nil backend for empty driver, got %v, %v", b, err)
	}

	b, err = Open(ctx, "json", filepath.Join(t.TempDir(), "audit.jsonl"))
	if err != nil {
		t.Fatalf("failed to open json backend: %v", err)
	}
	b.Close()

	b, err = Open(ctx, "sqlite", filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite backend: %v", err)
	}
	b.Close()

	if _, err := Open(ctx, "mongo", ""); err == nil {
		t.Error("expected error for unknown driver")
	}
}
