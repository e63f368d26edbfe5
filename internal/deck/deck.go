// Package deck reads and writes slide decks as YAML documents.
package deck

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/MarcoPoloResearchLab/slidedeck/internal/apiclient"
	"github.com/MarcoPoloResearchLab/slidedeck/internal/slides"
	"gopkg.in/yaml.v3"
)

// ErrEmptyDeck is returned when a document holds no slides.
var ErrEmptyDeck = errors.New("deck: no slides")

// Document is the on-disk deck format.
type Document struct {
	Title  string  `yaml:"title,omitempty"`
	Slides []Slide `yaml:"slides"`
}

// Slide is one deck entry. Order is implied by position.
type Slide struct {
	Layout   string         `yaml:"layout,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
	Content  string         `yaml:"content"`
}

// Decode parses a deck and normalizes each layout tag.
func Decode(r io.Reader) (Document, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var doc Document
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Document{}, ErrEmptyDeck
		}
		return Document{}, fmt.Errorf("deck: parse: %w", err)
	}
	if len(doc.Slides) == 0 {
		return Document{}, ErrEmptyDeck
	}

	for index := range doc.Slides {
		layout, err := slides.ParseLayout(doc.Slides[index].Layout)
		if err != nil {
			return Document{}, fmt.Errorf("deck: slide %d: %w", index+1, err)
		}
		doc.Slides[index].Layout = layout.String()
	}
	return doc, nil
}

// Encode writes the slides, in the order given, as a deck document.
func Encode(w io.Writer, title string, listed []apiclient.Slide) error {
	doc := Document{Title: strings.TrimSpace(title), Slides: make([]Slide, 0, len(listed))}
	for _, slide := range listed {
		entry := Slide{Content: slide.Content}
		if slide.Layout != "" && slide.Layout != slides.LayoutDefault {
			entry.Layout = slide.Layout.String()
		}
		if len(slide.Metadata) > 0 {
			entry.Metadata = map[string]any(slide.Metadata.Clone())
		}
		doc.Slides = append(doc.Slides, entry)
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("deck: encode: %w", err)
	}
	return encoder.Close()
}

// Drafts converts a decoded document into create requests ordered from startOrder.
func (d Document) Drafts(startOrder int) []apiclient.SlideDraft {
	drafts := make([]apiclient.SlideDraft, 0, len(d.Slides))
	for index, entry := range d.Slides {
		order := startOrder + index
		drafts = append(drafts, apiclient.SlideDraft{
			Order:    &order,
			Content:  entry.Content,
			Layout:   slides.Layout(entry.Layout),
			Metadata: slides.Metadata(entry.Metadata).Clone(),
		})
	}
	return drafts
}
