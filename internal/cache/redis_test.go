package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestKeyCanonicalOrder(t *testing.T) {
	if Key("b", "a") != "a:b" {
		t.Fatalf("expected lexicographic canonical key, got %s", Key("b", "a"))
	}
	if Key("a", "b") != Key("b", "a") {
		t.Fatalf("key must not depend on argument order")
	}
}

func TestRedisDistanceStoreRoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)

	store, err := NewRedisDistanceStore("redis://" + srv.Addr())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	key := Key("t1", "t2")

	if _, found, err := store.Get(ctx, key); err != nil || found {
		t.Fatalf("expected clean miss, found=%v err=%v", found, err)
	}

	want := Entry{Km: 12.5, Minutes: 25}
	if err := store.Put(ctx, key, want); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, found, err := store.Get(ctx, key)
	if err != nil || !found {
		t.Fatalf("expected hit, found=%v err=%v", found, err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestRedisDistanceStoreUnavailable(t *testing.T) {
	srv := miniredis.RunT(t)
	store, err := NewRedisDistanceStore("redis://" + srv.Addr())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer store.Close()
	srv.Close()

	if _, _, err := store.Get(context.Background(), Key("a", "b")); err == nil {
		t.Fatalf("expected error from closed redis")
	}
}
