package sqlite

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/loykin/tracecap/internal/history"
	"github.com/loykin/tracecap/internal/sink"
)

func TestSQLiteSink_SendEvents(t *testing.T) {
	dbPath := t.TempDir() + "/history.db"

	s, err := New("sqlite://" + dbPath)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			t.Errorf("close sink: %v", err)
		}
	}()

	ctx := context.Background()

	rec := sink.NewRecord("db-query", json.RawMessage(`{"rows":3}`))
	ev := history.Event{
		Type:       history.EventAppend,
		OccurredAt: time.Now().UTC(),
		Record:     rec,
	}
	if err := s.Send(ctx, ev); err != nil {
		t.Fatalf("send append event: %v", err)
	}

	clear := history.Event{
		Type:       history.EventClear,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.Send(ctx, clear); err != nil {
		t.Fatalf("send clear event: %v", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM capture_history`).Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rows, got %d", count)
	}
}

func TestSQLiteSink_EmptyDSN(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestSQLiteSink_InMemory(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("create in-memory sink: %v", err)
	}
	defer func() { _ = s.Close() }()

	ev := history.Event{
		Type:       history.EventAppend,
		OccurredAt: time.Now().UTC(),
		Record:     sink.NewRecord("mem", nil),
	}
	if err := s.Send(context.Background(), ev); err != nil {
		t.Fatalf("send: %v", err)
	}
}
