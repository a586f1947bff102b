package cache

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dicomgw/internal/db/memory"
	"github.com/kailas-cloud/dicomgw/internal/repository/freshness"
)

type fixture struct {
	store *Store
	index *freshness.Index
	root  string
	now   time.Time
}

func newFixture(t *testing.T, retention int, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		index: freshness.New(memory.NewStore(), "test:"),
		root:  t.TempDir(),
		now:   time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	opts = append([]Option{WithClock(func() time.Time { return f.now })}, opts...)
	f.store = New(f.root, retention, f.index, zap.NewNop(), opts...)
	return f
}

func (f *fixture) writeObject(t *testing.T, study, sop string) string {
	t.Helper()
	path := f.store.ObjectPath(study, sop)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("DICM"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestStore_Paths(t *testing.T) {
	s := New("/var/cache", 60, nil, zap.NewNop())
	if got := s.StudyDir("1.2"); got != filepath.Join("/var/cache", "1.2") {
		t.Errorf("StudyDir = %q", got)
	}
	if got := s.ObjectPath("1.2", "1.2.3"); got != filepath.Join("/var/cache", "1.2", "1.2.3.dcm") {
		t.Errorf("ObjectPath = %q", got)
	}
}

func TestStore_Exists(t *testing.T) {
	f := newFixture(t, 60)
	path := f.writeObject(t, "1.2", "1.2.3")

	if !f.store.Exists(path) {
		t.Error("expected object to exist")
	}
	if f.store.Exists(f.store.StudyDir("1.2")) {
		t.Error("directories are not objects")
	}
	if f.store.Exists(f.store.ObjectPath("1.2", "9.9")) {
		t.Error("missing object reported as present")
	}
}

func TestStore_MarkRetrievedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 60)

	if err := f.store.MarkRetrieved(ctx, "1.2"); err != nil {
		t.Fatal(err)
	}
	f.now = f.now.Add(30 * time.Minute)
	if err := f.store.MarkRetrieved(ctx, "1.2"); err != nil {
		t.Fatal(err)
	}

	expiry, found, _ := f.index.Get(ctx, "1.2")
	want := time.Date(2026, 1, 1, 13, 0, 0, 0, time.UTC)
	if !found || !expiry.Equal(want) {
		t.Errorf("expiry = %v (found=%v), want %v", expiry, found, want)
	}
}

func TestStore_RetentionDisabled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, -1)

	_ = f.store.MarkRetrieved(ctx, "1.2")
	_ = f.store.Touch(ctx, "1.2")
	if _, found, _ := f.index.Get(ctx, "1.2"); found {
		t.Error("no entry expected when retention is disabled")
	}
}

func TestStore_TouchExtendsExpiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 60)

	_ = f.store.MarkRetrieved(ctx, "1.2")
	f.now = f.now.Add(45 * time.Minute)
	if err := f.store.Touch(ctx, "1.2"); err != nil {
		t.Fatal(err)
	}
	expiry, _, _ := f.index.Get(ctx, "1.2")
	if !expiry.Equal(f.now.Add(time.Hour)) {
		t.Errorf("expiry = %v, want %v", expiry, f.now.Add(time.Hour))
	}
}

func TestStore_SweepBoundary(t *testing.T) {
	ctx := context.Background()
	evictions := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_evictions"})
	f := newFixture(t, 60, WithEvictionCounter(evictions))

	_ = f.index.Set(ctx, "past", f.now.Add(-time.Millisecond))
	_ = f.index.Set(ctx, "exact", f.now)
	_ = f.index.Set(ctx, "future", f.now.Add(time.Minute))
	_ = f.index.Set(ctx, "active", f.now.Add(-time.Hour))
	for _, study := range []string{"past", "exact", "future", "active"} {
		f.writeObject(t, study, "1")
	}

	n, err := f.store.Sweep(ctx, "active")
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("evicted = %d, want 1", n)
	}
	if _, err := os.Stat(f.store.StudyDir("past")); !os.IsNotExist(err) {
		t.Error("past study directory should be removed")
	}
	if _, found, _ := f.index.Get(ctx, "past"); found {
		t.Error("past entry should be removed")
	}
	for _, study := range []string{"exact", "future", "active"} {
		if _, err := os.Stat(f.store.StudyDir(study)); err != nil {
			t.Errorf("%s directory should survive: %v", study, err)
		}
		if _, found, _ := f.index.Get(ctx, study); !found {
			t.Errorf("%s entry should survive", study)
		}
	}
	if got := testutil.ToFloat64(evictions); got != 1 {
		t.Errorf("eviction counter = %f, want 1", got)
	}
}

func TestStore_SweepMissingDirectory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 60)
	_ = f.index.Set(ctx, "gone", f.now.Add(-time.Hour))

	n, err := f.store.Sweep(ctx, "")
	if err != nil || n != 1 {
		t.Fatalf("Sweep = %d, %v", n, err)
	}
}

func TestStore_SweepSingleFlight(t *testing.T) {
	f := newFixture(t, 60)
	f.store.sweepMu.Lock()
	n, err := f.store.Sweep(context.Background(), "")
	f.store.sweepMu.Unlock()
	if n != 0 || err != nil {
		t.Errorf("concurrent sweep = %d, %v; want 0, nil", n, err)
	}
}

func TestStore_SweepConcurrentCallsEvictOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 60)
	_ = f.index.Set(ctx, "old", f.now.Add(-time.Hour))
	f.writeObject(t, "old", "1")

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, _ := f.store.Sweep(ctx, "")
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()
	if total != 1 {
		t.Errorf("total evicted = %d, want 1", total)
	}
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 60)
	f.writeObject(t, "a", "1")
	f.writeObject(t, "b", "1")
	incoming := filepath.Join(f.root, ".incoming")
	_ = os.MkdirAll(incoming, 0o755)
	_ = f.index.Set(ctx, "a", f.now.Add(time.Hour))

	if err := f.store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	for _, study := range []string{"a", "b"} {
		if _, err := os.Stat(f.store.StudyDir(study)); !os.IsNotExist(err) {
			t.Errorf("%s should be removed", study)
		}
	}
	if _, err := os.Stat(incoming); err != nil {
		t.Errorf("incoming dir should survive: %v", err)
	}
	if _, found, _ := f.index.Get(ctx, "a"); found {
		t.Error("index entry should be removed")
	}
}

func TestStore_ClearMissingRoot(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing"), 60,
		freshness.New(memory.NewStore(), "t:"), zap.NewNop())
	if err := s.Clear(context.Background()); err != nil {
		t.Errorf("Clear on missing root: %v", err)
	}
}
