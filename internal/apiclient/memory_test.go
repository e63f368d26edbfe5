package apiclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/slidedeck/internal/slides"
)

func TestSampleMemoryBackendHasTwoSlides(t *testing.T) {
	listed, err := NewSampleMemoryBackend().List(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != 1 || listed[1].ID != 2 {
		t.Fatalf("unexpected sample slides %#v", listed)
	}
}

func TestMemoryBackendLifecycle(t *testing.T) {
	fixed := time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC)
	backend := NewMemoryBackend(nil, func() time.Time { return fixed })
	ctx := context.Background()

	later, second := 5, 1
	first, err := backend.Create(ctx, SlideDraft{Order: &later, Content: "first"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	created, err := backend.Create(ctx, SlideDraft{Order: &second, Content: "second", Layout: slides.LayoutCode, Metadata: slides.Metadata{"language": "go"}})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if first.ID == created.ID || !created.CreatedAt.Equal(fixed) {
		t.Fatalf("unexpected created slides %#v %#v", first, created)
	}
	if first.Layout != slides.LayoutDefault || first.Metadata == nil {
		t.Fatalf("expected defaults on first slide, got %#v", first)
	}

	listed, _ := backend.List(ctx)
	if listed[0].ID != created.ID {
		t.Fatalf("expected list sorted by order, got %#v", listed)
	}

	content := "changed"
	updated, err := backend.Update(ctx, created.ID, SlidePatch{Content: &content})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Content != "changed" || updated.Order != 1 || updated.Metadata["language"] != "go" {
		t.Fatalf("unexpected update %#v", updated)
	}

	if err := backend.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := backend.Get(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := backend.Delete(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestMemoryBackendReturnsCopies(t *testing.T) {
	backend := NewMemoryBackend([]Slide{{ID: 1, Content: "x", Metadata: slides.Metadata{"a": "b"}}}, nil)

	fetched, _ := backend.Get(context.Background(), 1)
	fetched.Metadata["a"] = "mutated"

	again, _ := backend.Get(context.Background(), 1)
	if again.Metadata["a"] != "b" {
		t.Fatalf("stored metadata was mutated through a returned copy: %#v", again.Metadata)
	}
}

func TestMemoryBackendRejectsUnknownLayout(t *testing.T) {
	backend := NewMemoryBackend(nil, nil)

	_, err := backend.Create(context.Background(), SlideDraft{Content: "x", Layout: "carousel"})
	if !errors.Is(err, slides.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
