package editor

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/slidedeck/internal/apiclient"
	"github.com/MarcoPoloResearchLab/slidedeck/internal/slides"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var errMissingBackend = errors.New("editor: backend is required")

type Config struct {
	Backend          apiclient.Backend
	Scheduler        Scheduler
	DebounceInterval time.Duration
	Logger           *zap.Logger
	// OnChange receives a snapshot after every state change. It is called without locks held,
	// possibly from timer goroutines.
	OnChange func(Snapshot)
}

type pendingSave struct {
	slideID    int64
	generation uint64
	timer      Timer
}

// inflightSave is the one Update running for a slide. done closes when its owner stops sending.
type inflightSave struct {
	done chan struct{}
	err  error
}

// State is the client-side mirror of the slide collection.
type State struct {
	backend   apiclient.Backend
	scheduler Scheduler
	debounce  time.Duration
	logger    *zap.Logger
	onChange  func(Snapshot)

	baseCtx context.Context
	cancel  context.CancelFunc
	saves   sync.WaitGroup

	mu           sync.Mutex
	slides       []apiclient.Slide
	currentID    int64
	saveStates   map[int64]SaveState
	editVersions map[int64]uint64
	inflight     map[int64]*inflightSave
	pending      *pendingSave
	generation   uint64
	errorMessage string
	loading      bool
	fullscreen   bool
	closed       bool
}

func New(cfg Config) (*State, error) {
	if cfg.Backend == nil {
		return nil, errMissingBackend
	}
	scheduler := cfg.Scheduler
	if scheduler == nil {
		scheduler = realScheduler{}
	}
	debounce := cfg.DebounceInterval
	if debounce <= 0 {
		debounce = DefaultDebounceInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	baseCtx, cancel := context.WithCancel(context.Background())

	return &State{
		backend:      cfg.Backend,
		scheduler:    scheduler,
		debounce:     debounce,
		logger:       logger,
		onChange:     cfg.OnChange,
		baseCtx:      baseCtx,
		cancel:       cancel,
		saveStates:   make(map[int64]SaveState),
		editVersions: make(map[int64]uint64),
		inflight:     make(map[int64]*inflightSave),
	}, nil
}

// Load fetches the collection and replaces the mirror.
func (s *State) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.loading = true
	s.mu.Unlock()
	s.notify()

	listed, err := s.backend.List(ctx)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.errorMessage = MessageLoadFailed
		s.mu.Unlock()
		s.logger.Error("load slides failed", zap.Error(err))
		s.notify()
		return err
	}
	s.replaceAllLocked(listed)
	s.mu.Unlock()
	s.notify()
	return nil
}

// UpdateContent applies an edit to the current slide and restarts the save debounce.
func (s *State) UpdateContent(content string) {
	s.applyEdit(func(slide *apiclient.Slide) {
		slide.Content = content
	})
}

// UpdateLayout switches the current slide's layout, merging the typed fields into its metadata.
func (s *State) UpdateLayout(layout slides.LayoutMetadata) {
	s.applyEdit(func(slide *apiclient.Slide) {
		slide.Layout, slide.Metadata = slides.EncodeLayout(slide.Metadata, layout)
	})
}

func (s *State) applyEdit(mutate func(*apiclient.Slide)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	index := s.currentIndexLocked()
	if index < 0 {
		s.mu.Unlock()
		return
	}
	slideID := s.slides[index].ID

	var displaced *pendingSave
	if s.pending != nil {
		s.pending.timer.Stop()
		if s.pending.slideID != slideID {
			displaced = s.pending
		}
		s.pending = nil
	}

	mutate(&s.slides[index])
	s.editVersions[slideID]++
	s.saveStates[slideID] = SavePending
	s.scheduleLocked(slideID)
	s.mu.Unlock()
	s.notify()

	if displaced != nil {
		s.saveInBackground(displaced.slideID)
	}
}

func (s *State) scheduleLocked(slideID int64) {
	s.generation++
	generation := s.generation
	timer := s.scheduler.AfterFunc(s.debounce, func() {
		s.fire(generation)
	})
	s.pending = &pendingSave{slideID: slideID, generation: generation, timer: timer}
}

// fire runs when a debounce timer elapses. Fires from replaced timers are ignored.
func (s *State) fire(generation uint64) {
	s.mu.Lock()
	if s.closed || s.pending == nil || s.pending.generation != generation {
		s.mu.Unlock()
		return
	}
	slideID := s.pending.slideID
	s.pending = nil
	s.saves.Add(1)
	s.mu.Unlock()

	defer s.saves.Done()
	_ = s.persist(s.baseCtx, slideID, false)
}

func (s *State) saveInBackground(slideID int64) {
	s.saves.Add(1)
	go func() {
		defer s.saves.Done()
		_ = s.persist(s.baseCtx, slideID, false)
	}()
}

// save persists the slide and returns once nothing newer than the caller's view is unsent.
func (s *State) save(ctx context.Context, slideID int64) error {
	return s.persist(ctx, slideID, true)
}

// persist sends the slide's content, layout and metadata. At most one Update per slide is in
// flight. A caller that finds one running either waits for it or, with wait unset, leaves the
// newer edit to the running owner, which sends one follow-up when its response is older than
// the mirror and no debounce timer will cover it. Failures are not retried.
func (s *State) persist(ctx context.Context, slideID int64, wait bool) error {
	s.mu.Lock()
	if running, ok := s.inflight[slideID]; ok {
		s.mu.Unlock()
		if !wait {
			return nil
		}
		select {
		case <-running.done:
			return running.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	owned := &inflightSave{done: make(chan struct{})}
	s.inflight[slideID] = owned

	var err error
	for {
		index := s.indexOfLocked(slideID)
		if index < 0 {
			break
		}
		local := s.slides[index].Clone()
		version := s.editVersions[slideID]
		s.saveStates[slideID] = SaveSaving
		s.mu.Unlock()
		s.notify()

		layout := local.Layout
		metadata := local.Metadata.Clone()
		var updated apiclient.Slide
		updated, err = s.backend.Update(ctx, slideID, apiclient.SlidePatch{
			Content:  &local.Content,
			Layout:   &layout,
			Metadata: &metadata,
		})

		s.mu.Lock()
		index = s.indexOfLocked(slideID)
		if index < 0 {
			break
		}
		pendingForSlide := s.pending != nil && s.pending.slideID == slideID
		if err != nil {
			s.errorMessage = MessageSaveFailed
			if pendingForSlide {
				s.saveStates[slideID] = SavePending
			} else {
				s.saveStates[slideID] = SaveError
			}
			break
		}
		if s.editVersions[slideID] == version {
			s.slides[index] = updated
			s.saveStates[slideID] = SaveIdle
			break
		}
		if pendingForSlide {
			s.saveStates[slideID] = SavePending
			break
		}
		// A newer edit exists and its timer already fired into this save.
	}
	owned.err = err
	delete(s.inflight, slideID)
	s.mu.Unlock()
	close(owned.done)

	if err != nil {
		s.logger.Error("save slide failed", zap.Int64("slide_id", slideID), zap.Error(err))
	}
	s.notify()
	return err
}

// SaveNow cancels the debounce and saves the current slide immediately.
func (s *State) SaveNow(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	currentID := s.currentID
	var displacedID int64
	if s.pending != nil {
		s.pending.timer.Stop()
		if s.pending.slideID != currentID {
			displacedID = s.pending.slideID
		}
		s.pending = nil
	}
	s.mu.Unlock()

	var saveErr error
	if displacedID != 0 {
		saveErr = s.save(ctx, displacedID)
	}
	if currentID != 0 {
		if err := s.save(ctx, currentID); err != nil {
			saveErr = err
		}
	}
	return saveErr
}

// Flush runs any pending save now.
func (s *State) Flush(ctx context.Context) error {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	if pending != nil {
		pending.timer.Stop()
	}
	s.mu.Unlock()

	if pending == nil {
		return nil
	}
	return s.save(ctx, pending.slideID)
}

// Close stops accepting edits, saves the pending edit and waits for background saves.
func (s *State) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	pending := s.pending
	s.pending = nil
	if pending != nil {
		pending.timer.Stop()
	}
	s.mu.Unlock()

	var err error
	if pending != nil {
		err = s.save(ctx, pending.slideID)
	}
	s.saves.Wait()
	s.cancel()
	return err
}

// Reorder applies the given id sequence locally and persists order = index for every slide.
// Any failure reloads the authoritative collection.
func (s *State) Reorder(ctx context.Context, orderedIDs []int64) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	reordered, err := s.permuteLocked(orderedIDs)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	for index := range reordered {
		reordered[index].Order = index
	}
	s.slides = reordered
	s.mu.Unlock()
	s.notify()

	results := make([]apiclient.Slide, len(reordered))
	var group errgroup.Group
	for index, slide := range reordered {
		index, slideID := index, slide.ID
		group.Go(func() error {
			order := index
			updated, err := s.backend.Update(ctx, slideID, apiclient.SlidePatch{Order: &order})
			if err != nil {
				return err
			}
			results[index] = updated
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		s.logger.Error("reorder slides failed", zap.Error(err))
		s.mu.Lock()
		s.errorMessage = MessageReorderFailed
		s.mu.Unlock()
		s.notify()
		_ = s.Reload(ctx)
		return err
	}

	s.mu.Lock()
	for _, updated := range results {
		if index := s.indexOfLocked(updated.ID); index >= 0 {
			s.slides[index].Order = updated.Order
			s.slides[index].UpdatedAt = updated.UpdatedAt
		}
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// Move relocates the slide at index from to index to.
func (s *State) Move(ctx context.Context, from, to int) error {
	s.mu.Lock()
	if from < 0 || from >= len(s.slides) || to < 0 || to >= len(s.slides) {
		s.mu.Unlock()
		return ErrInvalidOrder
	}
	if from == to {
		s.mu.Unlock()
		return nil
	}
	ids := make([]int64, 0, len(s.slides))
	for _, slide := range s.slides {
		ids = append(ids, slide.ID)
	}
	s.mu.Unlock()

	moved := ids[from]
	ids = append(ids[:from], ids[from+1:]...)
	ids = append(ids[:to], append([]int64{moved}, ids[to:]...)...)
	return s.Reorder(ctx, ids)
}

// Reload lists the collection again. Slides with unsaved or in-flight edits keep their local
// fields.
func (s *State) Reload(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.mu.Unlock()

	listed, err := s.backend.List(ctx)
	if err != nil {
		s.logger.Error("reload slides failed", zap.Error(err))
		return err
	}
	s.mu.Lock()
	s.replaceAllLocked(listed)
	s.mu.Unlock()
	s.notify()
	return nil
}

// Follow reloads after each slide-change event until changes closes or ctx ends. Events that
// arrive together cause a single reload.
func (s *State) Follow(ctx context.Context, changes <-chan apiclient.ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-changes:
			if !ok {
				return
			}
			relevant := event.Type == apiclient.EventTypeSlideChange
			for drained := false; !drained; {
				select {
				case next, ok := <-changes:
					if ok {
						relevant = relevant || next.Type == apiclient.EventTypeSlideChange
					} else {
						drained = true
					}
				default:
					drained = true
				}
			}
			if !relevant {
				continue
			}
			if err := s.Reload(ctx); errors.Is(err, ErrClosed) {
				return
			}
		}
	}
}

// AddSlide creates a placeholder slide at the end of the deck and selects it.
func (s *State) AddSlide(ctx context.Context) (apiclient.Slide, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return apiclient.Slide{}, ErrClosed
	}
	order := len(s.slides)
	s.mu.Unlock()

	created, err := s.backend.Create(ctx, apiclient.SlideDraft{
		Order:    &order,
		Content:  NewSlidePlaceholder,
		Layout:   slides.LayoutDefault,
		Metadata: slides.Metadata{},
	})
	if err != nil {
		s.logger.Error("add slide failed", zap.Error(err))
		s.setError(MessageAddFailed)
		return apiclient.Slide{}, err
	}

	s.mu.Lock()
	s.slides = append(s.slides, created)
	s.saveStates[created.ID] = SaveIdle
	s.currentID = created.ID
	s.mu.Unlock()
	s.notify()
	return created.Clone(), nil
}

// DeleteSlide removes a slide. The last remaining slide is never deleted.
func (s *State) DeleteSlide(ctx context.Context, slideID int64) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if len(s.slides) <= 1 {
		s.errorMessage = MessageLastSlide
		s.mu.Unlock()
		s.notify()
		return ErrLastSlide
	}
	if s.indexOfLocked(slideID) < 0 {
		s.mu.Unlock()
		return ErrUnknownSlide
	}
	hadPending := s.pending != nil && s.pending.slideID == slideID
	if hadPending {
		s.pending.timer.Stop()
		s.pending = nil
	}
	s.mu.Unlock()

	if err := s.backend.Delete(ctx, slideID); err != nil {
		s.logger.Error("delete slide failed", zap.Int64("slide_id", slideID), zap.Error(err))
		s.mu.Lock()
		s.errorMessage = MessageDeleteFailed
		if hadPending && s.pending == nil && s.indexOfLocked(slideID) >= 0 {
			s.scheduleLocked(slideID)
		}
		s.mu.Unlock()
		s.notify()
		return err
	}

	s.mu.Lock()
	if index := s.indexOfLocked(slideID); index >= 0 {
		s.slides = append(s.slides[:index], s.slides[index+1:]...)
		delete(s.saveStates, slideID)
		delete(s.editVersions, slideID)
		if s.currentID == slideID {
			s.currentID = 0
			if len(s.slides) > 0 {
				s.currentID = s.slides[clamp(index-1, 0, len(s.slides)-1)].ID
			}
		}
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// Next selects the following slide, staying put at the end.
func (s *State) Next() bool {
	return s.step(1)
}

// Prev selects the preceding slide, staying put at the start.
func (s *State) Prev() bool {
	return s.step(-1)
}

func (s *State) step(delta int) bool {
	s.mu.Lock()
	index := s.currentIndexLocked()
	if index < 0 {
		s.mu.Unlock()
		return false
	}
	target := clamp(index+delta, 0, len(s.slides)-1)
	if target == index {
		s.mu.Unlock()
		return false
	}
	s.currentID = s.slides[target].ID
	s.mu.Unlock()
	s.notify()
	return true
}

// Select makes the given slide current.
func (s *State) Select(slideID int64) error {
	s.mu.Lock()
	if s.indexOfLocked(slideID) < 0 {
		s.mu.Unlock()
		return ErrUnknownSlide
	}
	changed := s.currentID != slideID
	s.currentID = slideID
	s.mu.Unlock()
	if changed {
		s.notify()
	}
	return nil
}

// ToggleFullscreen flips presentation mode for the button; the hotkey only ever exits it.
func (s *State) ToggleFullscreen(source FullscreenSource) bool {
	s.mu.Lock()
	before := s.fullscreen
	switch source {
	case SourceButton:
		s.fullscreen = !s.fullscreen
	case SourceHotkey:
		s.fullscreen = false
	}
	after := s.fullscreen
	s.mu.Unlock()
	if before != after {
		s.notify()
	}
	return after
}

// Swipe navigates in fullscreen when the gesture is a dominant horizontal swipe
// that did not start on a horizontally scrollable element.
func (s *State) Swipe(gesture Gesture) bool {
	s.mu.Lock()
	fullscreen := s.fullscreen
	s.mu.Unlock()

	if !fullscreen {
		return false
	}
	if gesture.Target == TargetCodeBlock || gesture.Target == TargetTable {
		return false
	}
	horizontal := math.Abs(gesture.DeltaX)
	if horizontal < SwipeThreshold || horizontal <= math.Abs(gesture.DeltaY) {
		return false
	}
	if gesture.DeltaX < 0 {
		return s.Next()
	}
	return s.Prev()
}

// Error returns the current banner text, empty when none.
func (s *State) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorMessage
}

func (s *State) DismissError() {
	s.mu.Lock()
	changed := s.errorMessage != ""
	s.errorMessage = ""
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

func (s *State) setError(message string) {
	s.mu.Lock()
	s.errorMessage = message
	s.mu.Unlock()
	s.notify()
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() Snapshot {
	copied := make([]apiclient.Slide, len(s.slides))
	for index, slide := range s.slides {
		copied[index] = slide.Clone()
	}
	states := make(map[int64]SaveState, len(s.saveStates))
	for id, state := range s.saveStates {
		states[id] = state
	}
	return Snapshot{
		Slides:       copied,
		CurrentID:    s.currentID,
		CurrentIndex: s.currentIndexLocked(),
		SaveStates:   states,
		Error:        s.errorMessage,
		Loading:      s.loading,
		Fullscreen:   s.fullscreen,
	}
}

func (s *State) notify() {
	if s.onChange == nil {
		return
	}
	s.onChange(s.Snapshot())
}

// replaceAllLocked installs a server listing. A slide with an unsaved or in-flight edit keeps its
// local fields.
func (s *State) replaceAllLocked(listed []apiclient.Slide) {
	replaced := make([]apiclient.Slide, 0, len(listed))
	states := make(map[int64]SaveState, len(listed))
	for _, slide := range listed {
		if state := s.saveStates[slide.ID]; state == SavePending || state == SaveSaving {
			if index := s.indexOfLocked(slide.ID); index >= 0 {
				local := s.slides[index]
				slide.Content = local.Content
				slide.Layout = local.Layout
				slide.Metadata = local.Metadata.Clone()
			}
			states[slide.ID] = state
		} else {
			states[slide.ID] = SaveIdle
		}
		replaced = append(replaced, slide)
	}
	s.slides = replaced
	s.saveStates = states

	if s.pending != nil && s.indexOfLocked(s.pending.slideID) < 0 {
		s.pending.timer.Stop()
		s.pending = nil
	}
	if s.indexOfLocked(s.currentID) < 0 {
		s.currentID = 0
		if len(s.slides) > 0 {
			s.currentID = s.slides[0].ID
		}
	}
}

func (s *State) permuteLocked(orderedIDs []int64) ([]apiclient.Slide, error) {
	if len(orderedIDs) != len(s.slides) {
		return nil, ErrInvalidOrder
	}
	seen := make(map[int64]bool, len(orderedIDs))
	reordered := make([]apiclient.Slide, 0, len(orderedIDs))
	for _, slideID := range orderedIDs {
		index := s.indexOfLocked(slideID)
		if index < 0 || seen[slideID] {
			return nil, ErrInvalidOrder
		}
		seen[slideID] = true
		reordered = append(reordered, s.slides[index])
	}
	return reordered, nil
}

func (s *State) currentIndexLocked() int {
	return s.indexOfLocked(s.currentID)
}

func (s *State) indexOfLocked(slideID int64) int {
	if slideID == 0 {
		return -1
	}
	for index, slide := range s.slides {
		if slide.ID == slideID {
			return index
		}
	}
	return -1
}

func clamp(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
