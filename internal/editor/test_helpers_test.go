package editor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/slidedeck/internal/apiclient"
)

var errInjected = errors.New("injected failure")

type updateCall struct {
	ID    int64
	Patch apiclient.SlidePatch
}

// recordingBackend wraps the memory backend, recording calls and injecting failures.
type recordingBackend struct {
	*apiclient.MemoryBackend

	mu           sync.Mutex
	updates      []updateCall
	creates      []apiclient.SlideDraft
	deletes      []int64
	lists        int
	failUpdateOf map[int64]bool
	failList     bool
	failCreate   bool
	failDelete   bool
}

func newRecordingBackend(contents ...string) *recordingBackend {
	initial := make([]apiclient.Slide, 0, len(contents))
	for index, content := range contents {
		initial = append(initial, apiclient.Slide{ID: int64(index + 1), Order: index, Content: content})
	}
	return &recordingBackend{
		MemoryBackend: apiclient.NewMemoryBackend(initial, nil),
		failUpdateOf:  make(map[int64]bool),
	}
}

func (b *recordingBackend) List(ctx context.Context) ([]apiclient.Slide, error) {
	b.mu.Lock()
	b.lists++
	fail := b.failList
	b.mu.Unlock()
	if fail {
		return nil, errInjected
	}
	return b.MemoryBackend.List(ctx)
}

func (b *recordingBackend) Create(ctx context.Context, draft apiclient.SlideDraft) (apiclient.Slide, error) {
	b.mu.Lock()
	b.creates = append(b.creates, draft)
	fail := b.failCreate
	b.mu.Unlock()
	if fail {
		return apiclient.Slide{}, errInjected
	}
	return b.MemoryBackend.Create(ctx, draft)
}

func (b *recordingBackend) Update(ctx context.Context, id int64, patch apiclient.SlidePatch) (apiclient.Slide, error) {
	b.mu.Lock()
	b.updates = append(b.updates, updateCall{ID: id, Patch: patch})
	fail := b.failUpdateOf[id]
	b.mu.Unlock()
	if fail {
		return apiclient.Slide{}, errInjected
	}
	return b.MemoryBackend.Update(ctx, id, patch)
}

func (b *recordingBackend) Delete(ctx context.Context, id int64) error {
	b.mu.Lock()
	b.deletes = append(b.deletes, id)
	fail := b.failDelete
	b.mu.Unlock()
	if fail {
		return errInjected
	}
	return b.MemoryBackend.Delete(ctx, id)
}

func (b *recordingBackend) updateCalls() []updateCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]updateCall(nil), b.updates...)
}

func (b *recordingBackend) deleteCalls() []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int64(nil), b.deletes...)
}

func (b *recordingBackend) listCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lists
}

// manualScheduler only fires timers when the test says so.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	mu       sync.Mutex
	delay    time.Duration
	callback func()
	stopped  bool
	fired    bool
}

func (t *manualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	timer := &manualTimer{delay: d, callback: f}
	s.mu.Lock()
	s.timers = append(s.timers, timer)
	s.mu.Unlock()
	return timer
}

// fireActive runs every timer that is neither stopped nor fired, returning how many ran.
func (s *manualScheduler) fireActive() int {
	s.mu.Lock()
	timers := append([]*manualTimer(nil), s.timers...)
	s.mu.Unlock()

	fired := 0
	for _, timer := range timers {
		timer.mu.Lock()
		active := !timer.stopped && !timer.fired
		timer.fired = true
		timer.mu.Unlock()
		if active {
			timer.callback()
			fired++
		}
	}
	return fired
}

// fireAll runs every timer ever scheduled, including stopped ones, to mimic late fires.
func (s *manualScheduler) fireAll() {
	s.mu.Lock()
	timers := append([]*manualTimer(nil), s.timers...)
	s.mu.Unlock()
	for _, timer := range timers {
		timer.callback()
	}
}

func (s *manualScheduler) scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func newTestState(t *testing.T, backend apiclient.Backend) (*State, *manualScheduler) {
	t.Helper()
	scheduler := &manualScheduler{}
	state, err := New(Config{Backend: backend, Scheduler: scheduler})
	if err != nil {
		t.Fatalf("failed to construct editor state: %v", err)
	}
	if err := state.Load(context.Background()); err != nil {
		t.Fatalf("initial load failed: %v", err)
	}
	return state, scheduler
}

// stallingBackend holds the first Update until release is closed.
type stallingBackend struct {
	*recordingBackend

	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newStallingBackend(contents ...string) *stallingBackend {
	return &stallingBackend{
		recordingBackend: newRecordingBackend(contents...),
		started:          make(chan struct{}),
		release:          make(chan struct{}),
	}
}

func (b *stallingBackend) Update(ctx context.Context, id int64, patch apiclient.SlidePatch) (apiclient.Slide, error) {
	first := false
	b.once.Do(func() {
		first = true
		close(b.started)
	})
	if first {
		<-b.release
	}
	return b.recordingBackend.Update(ctx, id, patch)
}

func waitFor(t *testing.T, done <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func stringPtr(value string) *string {
	return &value
}
