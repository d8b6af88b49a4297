package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

// TestMain ensures no goroutines leak out of lock waits.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// =========================================================================
// HELPERS
// =========================================================================

var numbers = Collection[[]int]{
	Name:    "numbers",
	Default: func() []int { return []int{} },
}

var counters = Collection[map[string]int]{
	Name:    "counters",
	Default: func() map[string]int { return map[string]int{} },
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingBackend wraps a MemoryBackend and counts saves per collection.
type countingBackend struct {
	*MemoryBackend
	mu      sync.Mutex
	saves   map[string]int
	loadErr error
	saveErr error
}

func newCountingBackend() *countingBackend {
	return &countingBackend{MemoryBackend: NewMemoryBackend(), saves: map[string]int{}}
}

func (b *countingBackend) Load(ctx context.Context, name string) ([]byte, error) {
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	return b.MemoryBackend.Load(ctx, name)
}

func (b *countingBackend) Save(ctx context.Context, name string, data []byte) error {
	if b.saveErr != nil {
		return b.saveErr
	}
	b.mu.Lock()
	b.saves[name]++
	b.mu.Unlock()
	return b.MemoryBackend.Save(ctx, name, data)
}

func (b *countingBackend) saveCount(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves[name]
}

func appendN(n int) func([]int) ([]int, int, error) {
	return func(cur []int) ([]int, int, error) {
		cur = append(cur, n)
		return cur, len(cur), nil
	}
}

// =========================================================================
// Get / Mutate TESTS
// =========================================================================

func TestGet_InitializesUnknownCollection(t *testing.T) {
	backend := newCountingBackend()
	s := New(backend, quietLogger())

	got, err := Get(context.Background(), s, numbers)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got) != 0 || got == nil {
		t.Errorf("Get() = %#v, want empty non-nil slice", got)
	}

	// The default must be persisted immediately.
	raw, err := backend.MemoryBackend.Load(context.Background(), "numbers")
	if err != nil {
		t.Fatalf("backend has no numbers blob: %v", err)
	}
	if strings.TrimSpace(string(raw)) != "[]" {
		t.Errorf("persisted default = %q, want []", raw)
	}
}

func TestMutate_PersistsAndReturnsResult(t *testing.T) {
	s := New(NewMemoryBackend(), quietLogger())
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		n, err := Mutate(ctx, s, numbers, appendN(i*10))
		if err != nil {
			t.Fatalf("Mutate() error = %v", err)
		}
		if n != i {
			t.Errorf("Mutate() result = %d, want %d", n, i)
		}
	}

	got, err := Get(ctx, s, numbers)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if diff := cmp.Diff([]int{10, 20, 30}, got); diff != "" {
		t.Errorf("Get() mismatch (-want +got):\n%s", diff)
	}
}

func TestMutate_ErrorAbortsWithoutWriting(t *testing.T) {
	backend := newCountingBackend()
	s := New(backend, quietLogger())
	ctx := context.Background()

	if _, err := Mutate(ctx, s, numbers, appendN(1)); err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}
	before := backend.saveCount("numbers")

	rejected := errors.New("rejected")
	_, err := Mutate(ctx, s, numbers, func(cur []int) ([]int, int, error) {
		return append(cur, 2), 0, rejected
	})
	if !errors.Is(err, rejected) {
		t.Fatalf("Mutate() error = %v, want %v", err, rejected)
	}

	if got := backend.saveCount("numbers"); got != before {
		t.Errorf("saves after aborted mutation = %d, want %d", got, before)
	}
	got, _ := Get(ctx, s, numbers)
	if diff := cmp.Diff([]int{1}, got); diff != "" {
		t.Errorf("aborted mutation leaked state (-want +got):\n%s", diff)
	}
}

func TestMutate_SkipsWriteWhenUnchanged(t *testing.T) {
	backend := newCountingBackend()
	s := New(backend, quietLogger())
	ctx := context.Background()

	if _, err := Mutate(ctx, s, counters, func(m map[string]int) (map[string]int, struct{}, error) {
		m["a"] = 1
		return m, struct{}{}, nil
	}); err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}
	before := backend.saveCount("counters")

	if _, err := Mutate(ctx, s, counters, func(m map[string]int) (map[string]int, struct{}, error) {
		m["a"] = 1 // same value
		return m, struct{}{}, nil
	}); err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}

	if got := backend.saveCount("counters"); got != before {
		t.Errorf("no-op mutation wrote %d times, want 0", got-before)
	}
}

func TestMutate_SaveFailurePropagates(t *testing.T) {
	backend := newCountingBackend()
	s := New(backend, quietLogger())
	ctx := context.Background()

	if _, err := Get(ctx, s, numbers); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	backend.saveErr = errors.New("disk full")

	if _, err := Mutate(ctx, s, numbers, appendN(1)); err == nil {
		t.Fatal("Mutate() should fail when the backend cannot save")
	}
}

// TestMutate_ConcurrentAppendsAreNotLost is the lost-update check: every
// goroutine reads-modifies-writes the same collection.
func TestMutate_ConcurrentAppendsAreNotLost(t *testing.T) {
	s := New(NewMemoryBackend(), quietLogger())
	ctx := context.Background()

	const n = 200
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := Mutate(ctx, s, numbers, appendN(i)); err != nil {
				t.Errorf("Mutate() error = %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := Get(ctx, s, numbers)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got) != n {
		t.Errorf("len = %d after %d concurrent appends, want %d", len(got), n, n)
	}
}

func TestMutate_DifferentCollectionsDoNotBlock(t *testing.T) {
	s := New(NewMemoryBackend(), quietLogger())
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		_, err := Mutate(ctx, s, numbers, func(cur []int) ([]int, int, error) {
			close(entered)
			<-release
			return cur, 0, nil
		})
		done <- err
	}()
	<-entered

	// numbers is locked; counters must still be usable.
	getDone := make(chan error, 1)
	go func() {
		_, err := Get(ctx, s, counters)
		getDone <- err
	}()

	select {
	case err := <-getDone:
		if err != nil {
			t.Errorf("Get(counters) error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Get(counters) blocked behind a mutation of numbers")
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("Mutate(numbers) error = %v", err)
	}
}

func TestGet_WaitsForMutationOnSameCollection(t *testing.T) {
	s := New(NewMemoryBackend(), quietLogger())

	entered := make(chan struct{})
	release := make(chan struct{})
	mutateDone := make(chan struct{})

	go func() {
		defer close(mutateDone)
		_, _ = Mutate(context.Background(), s, numbers, func(cur []int) ([]int, int, error) {
			close(entered)
			<-release
			return append(cur, 7), 0, nil
		})
	}()
	<-entered

	// While the mutation holds the lock a bounded Get must time out.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := Get(ctx, s, numbers); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Get() during mutation error = %v, want deadline exceeded", err)
	}

	close(release)
	<-mutateDone

	got, err := Get(context.Background(), s, numbers)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if diff := cmp.Diff([]int{7}, got); diff != "" {
		t.Errorf("Get() after mutation (-want +got):\n%s", diff)
	}
}

// =========================================================================
// FAILURE POLICY TESTS
// =========================================================================

func TestGet_MalformedContentIsReinitializedAndArchived(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBackend(dir)
	if err != nil {
		t.Fatalf("NewFileBackend() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "numbers.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New(backend, quietLogger())
	got, err := Get(context.Background(), s, numbers)
	if err != nil {
		t.Fatalf("Get() should self-heal, got error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Get() = %v, want default", got)
	}

	archived, _ := filepath.Glob(filepath.Join(dir, "numbers.json.corrupt-*"))
	if len(archived) != 1 {
		t.Fatalf("archived copies = %d, want 1", len(archived))
	}
	content, _ := os.ReadFile(archived[0])
	if string(content) != "{not json" {
		t.Errorf("archived content = %q", content)
	}

	healed, _ := os.ReadFile(filepath.Join(dir, "numbers.json"))
	if strings.TrimSpace(string(healed)) != "[]" {
		t.Errorf("collection file after heal = %q, want []", healed)
	}
}

func TestGet_WrongShapeIsReinitialized(t *testing.T) {
	backend := NewMemoryBackend()
	_ = backend.Save(context.Background(), "numbers", []byte(`{"a":1}`))

	s := New(backend, quietLogger())
	got, err := Get(context.Background(), s, numbers)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Get() = %v, want default", got)
	}
}

func TestGet_UnreadableBackendIsReinitialized(t *testing.T) {
	backend := newCountingBackend()
	backend.loadErr = errors.New("i/o error")
	s := New(backend, quietLogger())

	got, err := Get(context.Background(), s, numbers)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Get() = %v, want default", got)
	}
	if backend.saveCount("numbers") != 1 {
		t.Errorf("default was not persisted after unreadable load")
	}
}

func TestInvalidCollectionName(t *testing.T) {
	s := New(NewMemoryBackend(), quietLogger())
	bad := Collection[[]int]{Name: "../etc/passwd", Default: func() []int { return nil }}

	if _, err := Get(context.Background(), s, bad); err == nil {
		t.Error("Get() accepted a path-like collection name")
	}
	if _, err := Mutate(context.Background(), s, bad, appendN(1)); err == nil {
		t.Error("Mutate() accepted a path-like collection name")
	}
}

func TestNewID_Unique(t *testing.T) {
	s := New(NewMemoryBackend(), quietLogger())
	seen := make(map[string]bool)
	for range 1000 {
		id := s.NewID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
