package editor

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/slidedeck/internal/apiclient"
)

const (
	DefaultDebounceInterval = 500 * time.Millisecond

	// SwipeThreshold is the minimum horizontal travel that counts as a swipe.
	SwipeThreshold = 50.0

	NewSlidePlaceholder = "# New Slide\n\nStart writing your content here..."
)

// Banner texts shown to the user.
const (
	MessageLoadFailed    = "Failed to load slides"
	MessageSaveFailed    = "Failed to save slide"
	MessageReorderFailed = "Failed to reorder slides"
	MessageLastSlide     = "Cannot delete the last slide"
	MessageDeleteFailed  = "Failed to delete slide"
	MessageAddFailed     = "Failed to add new slide"
)

var (
	// ErrLastSlide is returned when deleting would leave the deck empty. No request is made.
	ErrLastSlide = errors.New("editor: cannot delete the last slide")
	// ErrUnknownSlide is returned for ids absent from the local mirror.
	ErrUnknownSlide = errors.New("editor: unknown slide")
	// ErrInvalidOrder is returned when a reorder is not a permutation of the current slides.
	ErrInvalidOrder = errors.New("editor: invalid slide order")
	// ErrClosed is returned by operations after Close.
	ErrClosed = errors.New("editor: closed")
)

// SaveState tracks one slide's save lifecycle.
type SaveState int

const (
	SaveIdle SaveState = iota
	SavePending
	SaveSaving
	SaveError
)

func (s SaveState) String() string {
	switch s {
	case SaveIdle:
		return "idle"
	case SavePending:
		return "pending"
	case SaveSaving:
		return "saving"
	case SaveError:
		return "error"
	default:
		return "unknown"
	}
}

// FullscreenSource distinguishes the toggle button from the exit hotkey.
type FullscreenSource int

const (
	SourceButton FullscreenSource = iota
	SourceHotkey
)

// GestureTarget is the element a touch gesture started on.
type GestureTarget int

const (
	TargetSlide GestureTarget = iota
	TargetCodeBlock
	TargetTable
)

// Gesture is a completed touch movement. Negative DeltaX means the finger moved left.
type Gesture struct {
	DeltaX float64
	DeltaY float64
	Target GestureTarget
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Snapshot is an immutable copy of the editor state.
type Snapshot struct {
	Slides       []apiclient.Slide
	CurrentID    int64
	CurrentIndex int
	SaveStates   map[int64]SaveState
	Error        string
	Loading      bool
	Fullscreen   bool
}

// Current returns the selected slide.
func (s Snapshot) Current() (apiclient.Slide, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Slides) {
		return apiclient.Slide{}, false
	}
	return s.Slides[s.CurrentIndex], true
}

// SaveState reports the save state of a slide, Idle when unknown.
func (s Snapshot) SaveState(id int64) SaveState {
	return s.SaveStates[id]
}
