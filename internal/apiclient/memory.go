package apiclient

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/slidedeck/internal/slides"
)

// MemoryBackend is an in-process slide collection used when the API is unreachable.
// Nothing it stores outlives the process.
type MemoryBackend struct {
	mu     sync.Mutex
	slides []Slide
	nextID int64
	clock  func() time.Time
}

// NewMemoryBackend returns a backend holding copies of the given slides.
func NewMemoryBackend(initial []Slide, clock func() time.Time) *MemoryBackend {
	if clock == nil {
		clock = time.Now
	}
	backend := &MemoryBackend{clock: clock}
	for _, slide := range initial {
		stored := slide.Clone()
		if stored.Metadata == nil {
			stored.Metadata = slides.Metadata{}
		}
		if stored.Layout == "" {
			stored.Layout = slides.LayoutDefault
		}
		if stored.ID > backend.nextID {
			backend.nextID = stored.ID
		}
		backend.slides = append(backend.slides, stored)
	}
	return backend
}

// NewSampleMemoryBackend returns a backend seeded with the two offline sample slides.
func NewSampleMemoryBackend() *MemoryBackend {
	now := time.Now().UTC()
	return NewMemoryBackend([]Slide{
		{
			ID:        1,
			Order:     0,
			Content:   "# Welcome\n\nThis is your first slide. Start editing to create amazing presentations!",
			Layout:    slides.LayoutDefault,
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:        2,
			Order:     1,
			Content:   "# Getting Started\n\n## Features\n\n- **Markdown Support**: Write in Markdown\n- **Real-time Preview**: See changes instantly\n- **Responsive Design**: Works on all devices\n- **Keyboard Shortcuts**: Navigate efficiently",
			Layout:    slides.LayoutDefault,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}, nil)
}

func (b *MemoryBackend) List(ctx context.Context) ([]Slide, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	listed := make([]Slide, 0, len(b.slides))
	for _, slide := range b.slides {
		listed = append(listed, slide.Clone())
	}
	sort.SliceStable(listed, func(i, j int) bool {
		if listed[i].Order != listed[j].Order {
			return listed[i].Order < listed[j].Order
		}
		return listed[i].ID < listed[j].ID
	})
	return listed, nil
}

func (b *MemoryBackend) Get(ctx context.Context, id int64) (Slide, error) {
	if err := ctx.Err(); err != nil {
		return Slide{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	index := b.indexOf(id)
	if index < 0 {
		return Slide{}, ErrNotFound
	}
	return b.slides[index].Clone(), nil
}

func (b *MemoryBackend) Create(ctx context.Context, draft SlideDraft) (Slide, error) {
	if err := ctx.Err(); err != nil {
		return Slide{}, err
	}
	layout, err := slides.ParseLayout(draft.Layout.String())
	if err != nil {
		return Slide{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	now := b.clock().UTC()
	created := Slide{
		ID:        b.nextID,
		Content:   draft.Content,
		Layout:    layout,
		Metadata:  draft.Metadata.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if draft.Order != nil {
		created.Order = *draft.Order
	}
	b.slides = append(b.slides, created)
	return created.Clone(), nil
}

func (b *MemoryBackend) Update(ctx context.Context, id int64, patch SlidePatch) (Slide, error) {
	if err := ctx.Err(); err != nil {
		return Slide{}, err
	}
	var layout *slides.Layout
	if patch.Layout != nil {
		parsed, err := slides.ParseLayout(patch.Layout.String())
		if err != nil {
			return Slide{}, err
		}
		layout = &parsed
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	index := b.indexOf(id)
	if index < 0 {
		return Slide{}, ErrNotFound
	}
	stored := b.slides[index]
	if patch.Order != nil {
		stored.Order = *patch.Order
	}
	if patch.Content != nil {
		stored.Content = *patch.Content
	}
	if layout != nil {
		stored.Layout = *layout
	}
	if patch.Metadata != nil {
		stored.Metadata = patch.Metadata.Clone()
	}
	stored.UpdatedAt = b.clock().UTC()
	b.slides[index] = stored
	return stored.Clone(), nil
}

func (b *MemoryBackend) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	index := b.indexOf(id)
	if index < 0 {
		return ErrNotFound
	}
	b.slides = append(b.slides[:index], b.slides[index+1:]...)
	return nil
}

func (b *MemoryBackend) indexOf(id int64) int {
	for index, slide := range b.slides {
		if slide.ID == id {
			return index
		}
	}
	return -1
}
