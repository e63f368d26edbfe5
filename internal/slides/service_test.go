package slides

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestServiceCreateAssignsIDAndDefaults(t *testing.T) {
	service, _ := newTestService(t)

	created, err := service.Create(context.Background(), CreateInput{Content: stringPointer("# Hello")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID <= 0 {
		t.Fatalf("expected server assigned id, got %d", created.ID)
	}
	if created.Layout != LayoutDefault {
		t.Fatalf("expected default layout, got %q", created.Layout)
	}
	if created.Order != 0 {
		t.Fatalf("expected order to default to 0, got %d", created.Order)
	}

	stored, err := service.Get(context.Background(), mustSlideID(t, created.ID))
	if err != nil {
		t.Fatalf("failed to reload slide: %v", err)
	}
	if stored.Content != "# Hello" {
		t.Fatalf("unexpected content %q", stored.Content)
	}
	if stored.Metadata == nil || len(stored.Metadata) != 0 {
		t.Fatalf("expected empty metadata object, got %#v", stored.Metadata)
	}
}

func TestServiceCreateAllowsEmptyContent(t *testing.T) {
	service, _ := newTestService(t)

	created, err := service.Create(context.Background(), CreateInput{Content: stringPointer("")})
	if err != nil {
		t.Fatalf("empty content should be accepted: %v", err)
	}
	if created.Content != "" {
		t.Fatalf("unexpected content %q", created.Content)
	}
}

func TestServiceCreateRejectsMissingContent(t *testing.T) {
	service, db := newTestService(t)

	_, err := service.Create(context.Background(), CreateInput{Order: intPointer(1)})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) || serviceErr.Code() != "slides.create.missing_content" {
		t.Fatalf("unexpected service error %#v", err)
	}
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) || validationErr.Error() != "content is required" {
		t.Fatalf("unexpected validation message %v", err)
	}

	var total int64
	if err := db.Model(&Slide{}).Count(&total).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected no slides to be stored, got %d", total)
	}
}

func TestServiceCreateRejectsUnknownLayout(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.Create(context.Background(), CreateInput{
		Content: stringPointer("body"),
		Layout:  stringPointer("carousel"),
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestServiceMetadataRoundTrip(t *testing.T) {
	service, _ := newTestService(t)
	metadata := Metadata{"a": 1}

	created, err := service.Create(context.Background(), CreateInput{
		Content:  stringPointer("body"),
		Metadata: &metadata,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, err := service.Get(context.Background(), mustSlideID(t, created.ID))
	if err != nil {
		t.Fatalf("failed to reload slide: %v", err)
	}
	expected := Metadata{"a": float64(1)}
	if !reflect.DeepEqual(stored.Metadata, expected) {
		t.Fatalf("metadata mismatch: got %#v want %#v", stored.Metadata, expected)
	}
}

func TestServiceUpdateMergesOnlySuppliedFields(t *testing.T) {
	service, _ := newTestService(t)
	metadata := Metadata{"language": "go"}

	created, err := service.Create(context.Background(), CreateInput{
		Order:    intPointer(3),
		Content:  stringPointer("before"),
		Layout:   stringPointer("code"),
		Metadata: &metadata,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, err := service.Update(context.Background(), mustSlideID(t, created.ID), UpdateInput{
		Content: stringPointer("after"),
	})
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if updated.Content != "after" {
		t.Fatalf("expected content to change, got %q", updated.Content)
	}

	stored, err := service.Get(context.Background(), mustSlideID(t, created.ID))
	if err != nil {
		t.Fatalf("failed to reload slide: %v", err)
	}
	if stored.Content != "after" {
		t.Fatalf("expected stored content to change, got %q", stored.Content)
	}
	if stored.Order != 3 || stored.Layout != LayoutCode {
		t.Fatalf("unexpected untouched fields: order=%d layout=%s", stored.Order, stored.Layout)
	}
	if stored.Metadata["language"] != "go" {
		t.Fatalf("expected metadata to be retained, got %#v", stored.Metadata)
	}
}

func TestServiceUpdateMissingSlide(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.Update(context.Background(), mustSlideID(t, 999), UpdateInput{Content: stringPointer("x")})
	if !errors.Is(err, ErrSlideNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestServiceListSortsByOrder(t *testing.T) {
	service, _ := newTestService(t)

	for _, order := range []int{5, 1, 3, 1} {
		if _, err := service.Create(context.Background(), CreateInput{
			Order:   intPointer(order),
			Content: stringPointer("slide"),
		}); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	listed, err := service.List(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(listed) != 4 {
		t.Fatalf("expected 4 slides, got %d", len(listed))
	}
	for index := 1; index < len(listed); index++ {
		previous, current := listed[index-1], listed[index]
		if previous.Order > current.Order {
			t.Fatalf("slides out of order at %d: %d > %d", index, previous.Order, current.Order)
		}
		if previous.Order == current.Order && previous.ID > current.ID {
			t.Fatalf("equal orders should tie-break by id, got %d before %d", previous.ID, current.ID)
		}
	}
}

func TestServiceDeleteRemovesSlidePermanently(t *testing.T) {
	service, _ := newTestService(t)

	created, err := service.Create(context.Background(), CreateInput{Content: stringPointer("only")})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	id := mustSlideID(t, created.ID)

	if err := service.Delete(context.Background(), id); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := service.Get(context.Background(), id); !errors.Is(err, ErrSlideNotFound) {
		t.Fatalf("expected deleted slide to be gone, got %v", err)
	}
	if err := service.Delete(context.Background(), id); !errors.Is(err, ErrSlideNotFound) {
		t.Fatalf("expected second delete to report not found, got %v", err)
	}

	total, err := service.Count(context.Background())
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if total != 0 {
		t.Fatalf("server delete has no floor, expected empty collection, got %d", total)
	}

	next, err := service.Create(context.Background(), CreateInput{Content: stringPointer("next")})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if next.ID == created.ID {
		t.Fatalf("expected ids to never be reused, got %d twice", next.ID)
	}
}

func TestServiceWithoutDatabaseReportsCode(t *testing.T) {
	service := &Service{}

	_, err := service.List(context.Background())
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected service error, got %v", err)
	}
	if serviceErr.Code() != "slides.list.missing_database" {
		t.Fatalf("unexpected code %s", serviceErr.Code())
	}
}
