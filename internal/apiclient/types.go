package apiclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/slidedeck/internal/slides"
)

// ErrNotFound is matched by errors.Is for any 404 response or missing memory slide.
var ErrNotFound = errors.New("apiclient: slide not found")

// Slide is the wire form of a stored slide.
type Slide struct {
	ID        int64           `json:"id"`
	Order     int             `json:"order"`
	Content   string          `json:"content"`
	Layout    slides.Layout   `json:"layout"`
	Metadata  slides.Metadata `json:"metadata"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Clone returns a copy that shares no metadata with the receiver.
func (s Slide) Clone() Slide {
	cloned := s
	cloned.Metadata = s.Metadata.Clone()
	return cloned
}

// SlideDraft is the create request body.
type SlideDraft struct {
	Order    *int            `json:"order,omitempty"`
	Content  string          `json:"content"`
	Layout   slides.Layout   `json:"layout,omitempty"`
	Metadata slides.Metadata `json:"metadata,omitempty"`
}

// SlidePatch is a partial update. Nil fields are omitted from the request.
type SlidePatch struct {
	Order    *int             `json:"order,omitempty"`
	Content  *string          `json:"content,omitempty"`
	Layout   *slides.Layout   `json:"layout,omitempty"`
	Metadata *slides.Metadata `json:"metadata,omitempty"`
}

// HealthStatus mirrors the /health response.
type HealthStatus struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Environment string    `json:"environment"`
	Slides      *int64    `json:"slides,omitempty"`
	Goroutines  int       `json:"goroutines"`
}

// Backend is the slide collection as seen by the editor.
type Backend interface {
	List(ctx context.Context) ([]Slide, error)
	Get(ctx context.Context, id int64) (Slide, error)
	Create(ctx context.Context, draft SlideDraft) (Slide, error)
	Update(ctx context.Context, id int64, patch SlidePatch) (Slide, error)
	Delete(ctx context.Context, id int64) error
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("apiclient: status %d %s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("apiclient: status %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == 404
}
