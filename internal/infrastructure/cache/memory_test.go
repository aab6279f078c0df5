package cache

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newStore(t *testing.T) (*MemoryStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := NewMemoryStore(0, WithClock(clock.Now))
	t.Cleanup(func() { _ = s.Close() })
	return s, clock
}

func TestMemoryStoreGetSet(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	if _, ok := s.Get(ctx, "k"); ok {
		t.Fatal("empty store should miss")
	}
	s.Set(ctx, "k", []byte("v1"), time.Minute)
	got, ok := s.Get(ctx, "k")
	if !ok || string(got) != "v1" {
		t.Fatalf("Get = %q, %v", got, ok)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s, clock := newStore(t)

	s.Set(ctx, "k", []byte("v"), time.Minute)
	clock.Advance(59 * time.Second)
	if _, ok := s.Get(ctx, "k"); !ok {
		t.Fatal("entry should still be live before ttl")
	}
	clock.Advance(time.Second)
	if _, ok := s.Get(ctx, "k"); ok {
		t.Fatal("entry should miss once ttl elapsed")
	}
	if s.Len() != 0 {
		t.Errorf("expired entry should be dropped on access, len = %d", s.Len())
	}
}

func TestMemoryStoreOverwriteResetsExpiry(t *testing.T) {
	ctx := context.Background()
	s, clock := newStore(t)

	s.Set(ctx, "k", []byte("old"), time.Minute)
	clock.Advance(50 * time.Second)
	s.Set(ctx, "k", []byte("new"), time.Minute)
	clock.Advance(50 * time.Second)

	got, ok := s.Get(ctx, "k")
	if !ok || string(got) != "new" {
		t.Fatalf("Get = %q, %v; want new value with reset expiry", got, ok)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	in := []byte("payload")
	s.Set(ctx, "k", in, time.Minute)
	in[0] = 'X'

	out, _ := s.Get(ctx, "k")
	out[1] = 'Y'

	again, _ := s.Get(ctx, "k")
	if string(again) != "payload" {
		t.Fatalf("stored value mutated through caller slices: %q", again)
	}
}

func TestMemoryStoreDeleteExpired(t *testing.T) {
	ctx := context.Background()
	s, clock := newStore(t)

	s.Set(ctx, "short", []byte("a"), time.Second)
	s.Set(ctx, "long", []byte("b"), time.Hour)
	clock.Advance(time.Minute)

	if n := s.DeleteExpired(); n != 1 {
		t.Errorf("DeleteExpired = %d, want 1", n)
	}
	if s.Len() != 1 {
		t.Errorf("len = %d, want 1", s.Len())
	}
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Millisecond)
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%4)
			for j := 0; j < 100; j++ {
				s.Set(ctx, key, []byte(key), time.Second)
				if v, ok := s.Get(ctx, key); ok && !bytes.Equal(v, []byte(key)) {
					t.Errorf("key %s returned %q", key, v)
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestCompressedStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	inner, _ := newStore(t)
	s, err := NewCompressedStore(inner, 3)
	if err != nil {
		t.Fatalf("NewCompressedStore: %v", err)
	}
	defer s.Close()

	payload := bytes.Repeat([]byte(`{"scadCode":"cube([10,10,10]);"}`), 200)
	s.Set(ctx, "k", payload, time.Minute)

	raw, ok := inner.Get(ctx, "k")
	if !ok || len(raw) >= len(payload) {
		t.Fatalf("inner value should be compressed: ok=%v size=%d original=%d", ok, len(raw), len(payload))
	}

	got, ok := s.Get(ctx, "k")
	if !ok || !bytes.Equal(got, payload) {
		t.Fatal("decompressed value differs from original")
	}
}

func TestCompressedStoreCorruptValueIsMiss(t *testing.T) {
	ctx := context.Background()
	inner, _ := newStore(t)
	s, err := NewCompressedStore(inner, 1)
	if err != nil {
		t.Fatalf("NewCompressedStore: %v", err)
	}
	defer s.Close()

	inner.Set(ctx, "k", []byte("not zstd"), time.Minute)
	if _, ok := s.Get(ctx, "k"); ok {
		t.Fatal("corrupt value should be treated as a miss")
	}
}
