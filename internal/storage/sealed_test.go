package storage

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func testKey() []byte {
	return bytes.Repeat([]byte{7}, 32)
}

func TestSealed_RoundTrip(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	s, err := NewSealed(inner, testKey())
	if err != nil {
		t.Fatalf("NewSealed: %v", err)
	}
	if err := s.Set(ctx, KeyToken, []byte("secret-token")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	raw, _, _ := inner.Get(ctx, KeyToken)
	if bytes.Contains(raw, []byte("secret-token")) {
		t.Error("inner store holds plaintext")
	}

	got, ok, err := s.Get(ctx, KeyToken)
	if err != nil || !ok {
		t.Fatalf("Get: ok %v, err %v", ok, err)
	}
	if string(got) != "secret-token" {
		t.Errorf("Get = %q, want secret-token", got)
	}
}

func TestSealed_RejectsTampered(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	s, _ := NewSealed(inner, testKey())
	_ = s.Set(ctx, KeyToken, []byte("secret-token"))

	raw, _, _ := inner.Get(ctx, KeyToken)
	raw[len(raw)-1] ^= 0xff
	_ = inner.Set(ctx, KeyToken, raw)

	if _, _, err := s.Get(ctx, KeyToken); !errors.Is(err, ErrSealedValue) {
		t.Errorf("Get tampered err = %v, want ErrSealedValue", err)
	}
}

func TestSealed_RejectsMovedValue(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	s, _ := NewSealed(inner, testKey())
	_ = s.Set(ctx, KeyRole, []byte("patient"))

	raw, _, _ := inner.Get(ctx, KeyRole)
	_ = inner.Set(ctx, KeyName, raw)
	if _, _, err := s.Get(ctx, KeyName); !errors.Is(err, ErrSealedValue) {
		t.Errorf("value moved to another key should not open, err = %v", err)
	}
}

func TestSealed_RejectsTruncatedAndWrongKey(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	s, _ := NewSealed(inner, testKey())
	_ = inner.Set(ctx, KeyUser, []byte("short"))
	if _, _, err := s.Get(ctx, KeyUser); !errors.Is(err, ErrSealedValue) {
		t.Errorf("truncated err = %v, want ErrSealedValue", err)
	}

	_ = s.Set(ctx, KeyToken, []byte("x"))
	other, _ := NewSealed(inner, bytes.Repeat([]byte{9}, 32))
	if _, _, err := other.Get(ctx, KeyToken); !errors.Is(err, ErrSealedValue) {
		t.Errorf("wrong key err = %v, want ErrSealedValue", err)
	}
}

func TestNewSealed_BadKey(t *testing.T) {
	if _, err := NewSealed(NewMemoryStore(), []byte("short")); err == nil {
		t.Error("NewSealed with short key should fail")
	}
	if _, err := NewSealed(nil, testKey()); err == nil {
		t.Error("NewSealed with nil inner should fail")
	}
}

func TestSealed_MissingKey(t *testing.T) {
	s, _ := NewSealed(NewMemoryStore(), testKey())
	_, ok, err := s.Get(context.Background(), KeyToken)
	if ok || err != nil {
		t.Errorf("missing key = ok %v, err %v; want absent", ok, err)
	}
}
