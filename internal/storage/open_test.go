package storage

import (
	"context"
	"path/filepath"
	"testing"

	"medconnect/client/internal/config"
)

func TestOpen_Memory(t *testing.T) {
	s, err := Open(context.Background(), &config.Config{StoreDriver: config.StoreDriverMemory}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("Open(memory) = %T, want *MemoryStore", s)
	}
}

func TestOpen_SQLiteSealed(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "client.db")
	cfg := &config.Config{StoreDriver: config.StoreDriverSQLite, StorePath: path, StorePassphrase: "correct horse"}

	s, err := Open(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := s.(*Sealed); !ok {
		t.Fatalf("Open with passphrase = %T, want *Sealed", s)
	}
	if err := SetString(ctx, s, KeyToken, "tok"); err != nil {
		t.Fatalf("SetString: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, ok, err := GetString(ctx, reopened, KeyToken)
	if err != nil || !ok || got != "tok" {
		t.Errorf("after reopen GetString = %q, %v, %v; want tok", got, ok, err)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), &config.Config{StoreDriver: "redis"}, nil); err == nil {
		t.Error("Open with unknown driver should fail")
	}
}
