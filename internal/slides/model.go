package slides

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrValidation indicates that caller-supplied slide fields are missing or malformed.
	ErrValidation = errors.New("slides: validation failed")
	// ErrSlideNotFound indicates that no slide exists for the requested identifier.
	ErrSlideNotFound = errors.New("slides: slide not found")
	// ErrInvalidSlideID indicates that a slide identifier is not a positive integer.
	ErrInvalidSlideID = errors.New("slides: invalid slide id")
)

// ValidationError describes a single rejected field. It matches ErrValidation under errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func newValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// SlideID represents a validated server-assigned slide identifier.
type SlideID int64

// NewSlideID parses raw path input and returns a SlideID.
func NewSlideID(rawInput string) (SlideID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidSlideID)
	}
	value, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSlideID, trimmed)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSlideID, value)
	}
	return SlideID(value), nil
}

// Int64 exposes the raw identifier value.
func (id SlideID) Int64() int64 {
	return int64(id)
}

// String returns the decimal form of the identifier.
func (id SlideID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Layout selects how a slide's content and metadata are composed for display.
type Layout string

const (
	LayoutDefault Layout = "default"
	LayoutTitle   Layout = "title"
	LayoutCode    Layout = "code"
	LayoutSplit   Layout = "split"
	LayoutImage   Layout = "image"
)

// ParseLayout validates a layout tag. Empty input resolves to LayoutDefault.
func ParseLayout(value string) (Layout, error) {
	switch Layout(strings.ToLower(strings.TrimSpace(value))) {
	case "", LayoutDefault:
		return LayoutDefault, nil
	case LayoutTitle:
		return LayoutTitle, nil
	case LayoutCode:
		return LayoutCode, nil
	case LayoutSplit:
		return LayoutSplit, nil
	case LayoutImage:
		return LayoutImage, nil
	default:
		return "", newValidationError("layout", fmt.Sprintf("must be one of default, title, code, split, image; got %q", value))
	}
}

// String returns the layout tag.
func (l Layout) String() string {
	return string(l)
}

// Metadata is the free-form JSON object attached to a slide.
type Metadata map[string]any

// Clone returns a deep copy so callers never share nested maps or slices.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return Metadata{}
	}
	cloned := make(Metadata, len(m))
	for key, value := range m {
		cloned[key] = cloneValue(value)
	}
	return cloned
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return map[string]any(Metadata(typed).Clone())
	case Metadata:
		return typed.Clone()
	case []any:
		copied := make([]any, len(typed))
		for index, item := range typed {
			copied[index] = cloneValue(item)
		}
		return copied
	default:
		return value
	}
}

// Value stores metadata as a JSON text column.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	encoded, err := json.Marshal(map[string]any(m))
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

// Scan decodes a JSON text column into metadata.
func (m *Metadata) Scan(source any) error {
	var raw []byte
	switch typed := source.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		raw = typed
	case string:
		raw = []byte(typed)
	default:
		return fmt.Errorf("slides: unsupported metadata column type %T", source)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		*m = Metadata{}
		return nil
	}
	decoded := map[string]any{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("slides: decode metadata: %w", err)
	}
	*m = Metadata(decoded)
	return nil
}

// Slide models a persisted slide.
type Slide struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Order     int       `gorm:"column:slide_order;not null;default:0"`
	Content   string    `gorm:"column:content;type:text;not null"`
	Layout    Layout    `gorm:"column:layout;size:16;not null;default:'default'"`
	Metadata  Metadata  `gorm:"column:metadata;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Slide) TableName() string {
	return "slides"
}

// CreateInput carries the fields a client may supply when creating a slide.
// Nil pointers mean the field was omitted.
type CreateInput struct {
	Order    *int
	Content  *string
	Layout   *string
	Metadata *Metadata
}

// UpdateInput carries a partial update. Nil pointers leave the stored value untouched.
type UpdateInput struct {
	Order    *int
	Content  *string
	Layout   *string
	Metadata *Metadata
}

// IsEmpty reports whether the update carries no fields.
func (in UpdateInput) IsEmpty() bool {
	return in.Order == nil && in.Content == nil && in.Layout == nil && in.Metadata == nil
}
