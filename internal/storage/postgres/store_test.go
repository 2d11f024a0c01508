package postgres

import (
	"context"
	"os"
	"testing"
)

func TestStore_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()
	s, err := Open(ctx, dsn)
	if err != nil {
		t.Skipf("Database connection failed (expected in test environment): %v", err)
	}
	defer s.Close()

	key := "medconnect_test_token"
	t.Cleanup(func() { _ = s.Delete(context.Background(), key) })

	if err := s.Set(ctx, key, []byte("a")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, key, []byte("b")); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	got, ok, err := s.Get(ctx, key)
	if err != nil || !ok || string(got) != "b" {
		t.Fatalf("Get = %q, %v, %v; want b", got, ok, err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, key); ok {
		t.Error("key should be deleted")
	}
}

func TestStore_EmptyKey(t *testing.T) {
	s := New(nil)
	if err := s.Set(context.Background(), "", nil); err == nil {
		t.Error("Set with empty key should fail")
	}
	if _, _, err := s.Get(context.Background(), ""); err == nil {
		t.Error("Get with empty key should fail")
	}
}

func TestOpen_MissingDSN(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Error("Open with empty DSN should fail")
	}
}
