package factory

import (
	"testing"
)

func TestNewSinkFromDSN_SQLite(t *testing.T) {
	s, err := NewSinkFromDSN("sqlite://" + t.TempDir() + "/h.db")
	if err != nil {
		t.Fatalf("sqlite dsn: %v", err)
	}
	if s == nil {
		t.Fatal("nil sink")
	}
}

func TestNewSinkFromDSN_BarePathIsSQLite(t *testing.T) {
	s, err := NewSinkFromDSN(t.TempDir() + "/h.db")
	if err != nil {
		t.Fatalf("bare path dsn: %v", err)
	}
	if s == nil {
		t.Fatal("nil sink")
	}
}

func TestNewSinkFromDSN_OpenSearch(t *testing.T) {
	s, err := NewSinkFromDSN("opensearch://localhost:9200/captures")
	if err != nil {
		t.Fatalf("opensearch dsn: %v", err)
	}
	if s == nil {
		t.Fatal("nil sink")
	}
}

func TestNewSinkFromDSN_Empty(t *testing.T) {
	if _, err := NewSinkFromDSN("   "); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestNewSinkFromDSN_Unsupported(t *testing.T) {
	if _, err := NewSinkFromDSN("redis://localhost:6379"); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
}
