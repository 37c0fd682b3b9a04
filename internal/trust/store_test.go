package trust

import (
	"context"
	"testing"
	"time"
)

func TestTokenHashing(t *testing.T) {
	tok, err := NewToken()
	if err != nil {
		t.Fatal(err)
	}
	if len(tok) != 64 {
		t.Fatalf("token length %d, want 64 hex chars", len(tok))
	}
	if HashToken(tok) != HashToken(tok) {
		t.Fatal("hash not deterministic")
	}
	other, err := NewToken()
	if err != nil {
		t.Fatal(err)
	}
	if tok == other {
		t.Fatal("tokens must be unique")
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.Now = func() time.Time { return now }
	ctx := context.Background()

	hash := HashToken("tok")
	if err := s.Put(ctx, hash); err != nil {
		t.Fatal(err)
	}
	ok, err := s.Exists(ctx, hash)
	if err != nil || !ok {
		t.Fatalf("fresh entry: ok=%v err=%v", ok, err)
	}
	if ok, _ := s.Exists(ctx, HashToken("other")); ok {
		t.Fatal("unknown hash reported trusted")
	}

	now = now.Add(TTL + time.Minute)
	if ok, _ := s.Exists(ctx, hash); ok {
		t.Fatal("entry survived past TTL")
	}
}
