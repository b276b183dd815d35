package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCacheTypedRoundTrip(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	if err := mc.Set(ctx, "equity", 10_000.5, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got float64
	if err := mc.Get(ctx, "equity", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != 10_000.5 {
		t.Fatalf("got %v", got)
	}
}

func TestMemoryCacheStructAndPointer(t *testing.T) {
	type spec struct {
		Symbol  string
		LotStep float64
	}
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	// Stored by value
	if err := mc.Set(ctx, "a", spec{Symbol: "EURUSD", LotStep: 0.01}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var byVal spec
	if err := mc.Get(ctx, "a", &byVal); err != nil {
		t.Fatalf("get by value: %v", err)
	}
	if byVal.Symbol != "EURUSD" {
		t.Fatalf("got %+v", byVal)
	}

	// Stored as a pointer, read into a value. This is the L1 backfill shape.
	if err := mc.Set(ctx, "b", &spec{Symbol: "GBPUSD", LotStep: 0.1}, time.Minute); err != nil {
		t.Fatalf("set ptr: %v", err)
	}
	var fromPtr spec
	if err := mc.Get(ctx, "b", &fromPtr); err != nil {
		t.Fatalf("get from ptr: %v", err)
	}
	if fromPtr.Symbol != "GBPUSD" {
		t.Fatalf("got %+v", fromPtr)
	}
}

func TestMemoryCacheMiss(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()

	var out string
	err := mc.Get(context.Background(), "absent", &out)
	if !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	if err := mc.Set(ctx, "k", "v", time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	var out string
	if err := mc.Get(ctx, "k", &out); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expiry miss, got %v", err)
	}
}

func TestMemoryCacheLRUEviction(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	if err := mc.Set(ctx, "a", 1, time.Minute); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)
	if err := mc.Set(ctx, "b", 2, time.Minute); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)

	// Touch "a" so "b" becomes the LRU victim.
	var v int
	if err := mc.Get(ctx, "a", &v); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)

	if err := mc.Set(ctx, "c", 3, time.Minute); err != nil {
		t.Fatal(err)
	}

	if err := mc.Get(ctx, "b", &v); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected b evicted, got %v", err)
	}
	if err := mc.Get(ctx, "a", &v); err != nil {
		t.Fatalf("a should survive: %v", err)
	}
}

func TestMemoryCacheTryLock(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	ok, err := mc.TryLock(ctx, "lock", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first lock: ok=%v err=%v", ok, err)
	}
	ok, err = mc.TryLock(ctx, "lock", time.Minute)
	if err != nil || ok {
		t.Fatalf("second lock should fail: ok=%v err=%v", ok, err)
	}
	if err := mc.Unlock(ctx, "lock"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	ok, err = mc.TryLock(ctx, "lock", time.Minute)
	if err != nil || !ok {
		t.Fatalf("relock after unlock: ok=%v err=%v", ok, err)
	}
}

func TestGenerateKey(t *testing.T) {
	if got := GenerateKey("account:spec", "EURUSD"); got != "account:spec:EURUSD" {
		t.Fatalf("got %q", got)
	}
}
