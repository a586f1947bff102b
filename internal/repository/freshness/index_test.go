package freshness

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/dicomgw/internal/db"
	"github.com/kailas-cloud/dicomgw/internal/db/memory"
)

func TestIndex_SetIfAbsentKeepsFirstExpiry(t *testing.T) {
	ctx := context.Background()
	idx := New(memory.NewStore(), "dicomgw:")

	first := time.UnixMilli(1_700_000_000_000)
	second := first.Add(time.Hour)

	ok, err := idx.SetIfAbsent(ctx, "1.2.3", first)
	if err != nil || !ok {
		t.Fatalf("first SetIfAbsent = %v, %v", ok, err)
	}
	ok, err = idx.SetIfAbsent(ctx, "1.2.3", second)
	if err != nil || ok {
		t.Fatalf("second SetIfAbsent = %v, %v", ok, err)
	}

	got, found, err := idx.Get(ctx, "1.2.3")
	if err != nil || !found {
		t.Fatalf("Get = %v, %v, %v", got, found, err)
	}
	if !got.Equal(first) {
		t.Errorf("expiry = %v, want %v", got, first)
	}
}

func TestIndex_GetMissing(t *testing.T) {
	idx := New(memory.NewStore(), "dicomgw:")
	_, found, err := idx.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Error("expected not found")
	}
}

func TestIndex_KeyLayout(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	idx := New(s, "dicomgw:")

	if err := idx.Set(ctx, "1.2.3", time.UnixMilli(42)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, err := s.Get(ctx, "dicomgw:fresh:1.2.3")
	if err != nil {
		t.Fatalf("raw get: %v", err)
	}
	if string(data) != "42" {
		t.Errorf("raw value = %q, want 42", data)
	}
}

func TestIndex_ForEachAndRemove(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	idx := New(s, "dicomgw:")

	_ = idx.Set(ctx, "a", time.UnixMilli(1))
	_ = idx.Set(ctx, "b", time.UnixMilli(2))
	_ = s.Set(ctx, "dicomgw:fresh:broken", []byte("not-a-number"))
	_ = s.Set(ctx, "dicomgw:other", []byte("x"))

	seen := map[string]int64{}
	err := idx.ForEach(ctx, func(study string, expiry time.Time) error {
		seen[study] = expiry.UnixMilli()
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	if len(seen) != 2 || seen["a"] != 1 || seen["b"] != 2 {
		t.Errorf("seen = %v", seen)
	}

	if err := idx.Remove(ctx, "a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, found, _ := idx.Get(ctx, "a"); found {
		t.Error("a should be removed")
	}
}

func TestIndex_ForEachStopsOnError(t *testing.T) {
	ctx := context.Background()
	idx := New(memory.NewStore(), "p:")
	_ = idx.Set(ctx, "a", time.UnixMilli(1))
	_ = idx.Set(ctx, "b", time.UnixMilli(2))

	stop := errors.New("stop")
	calls := 0
	err := idx.ForEach(ctx, func(string, time.Time) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected stop error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

type failingStore struct{ memory.Store }

func (f *failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, &db.Error{Op: db.OpGet, Err: errors.New("connection refused")}
}

func TestIndex_GetStoreError(t *testing.T) {
	idx := New(&failingStore{}, "p:")
	_, _, err := idx.Get(context.Background(), "a")
	var dbErr *db.Error
	if !errors.As(err, &dbErr) {
		t.Fatalf("expected db.Error, got %v", err)
	}
}
