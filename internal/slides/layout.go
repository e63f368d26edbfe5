package slides

import "fmt"

const (
	metadataKeyLanguage    = "language"
	metadataKeyExplanation = "explanation"
	metadataKeyLeftTitle   = "leftTitle"
	metadataKeyRightTitle  = "rightTitle"
	metadataKeyImageURL    = "imageUrl"
	metadataKeyCaption     = "caption"
)

// LayoutMetadata is the typed view of a slide's layout and the metadata fields that layout reads.
// The set of implementations is closed; consumers switch over the concrete types.
type LayoutMetadata interface {
	Layout() Layout
	apply(Metadata)
}

// DefaultLayout renders content as-is.
type DefaultLayout struct{}

// TitleLayout renders content as a centered title slide.
type TitleLayout struct{}

// CodeLayout renders content with an optional explanation panel.
type CodeLayout struct {
	Language    string
	Explanation string
}

// SplitLayout renders content in two columns separated by a "---" delimiter.
type SplitLayout struct {
	LeftTitle  string
	RightTitle string
}

// ImageLayout renders an image with a caption above the content.
type ImageLayout struct {
	ImageURL string
	Caption  string
}

func (DefaultLayout) Layout() Layout { return LayoutDefault }
func (TitleLayout) Layout() Layout   { return LayoutTitle }
func (CodeLayout) Layout() Layout    { return LayoutCode }
func (SplitLayout) Layout() Layout   { return LayoutSplit }
func (ImageLayout) Layout() Layout   { return LayoutImage }

func (DefaultLayout) apply(Metadata) {}
func (TitleLayout) apply(Metadata)   {}

func (l CodeLayout) apply(target Metadata) {
	setOrDelete(target, metadataKeyLanguage, l.Language)
	setOrDelete(target, metadataKeyExplanation, l.Explanation)
}

func (l SplitLayout) apply(target Metadata) {
	setOrDelete(target, metadataKeyLeftTitle, l.LeftTitle)
	setOrDelete(target, metadataKeyRightTitle, l.RightTitle)
}

func (l ImageLayout) apply(target Metadata) {
	setOrDelete(target, metadataKeyImageURL, l.ImageURL)
	setOrDelete(target, metadataKeyCaption, l.Caption)
}

// DecodeLayout builds the typed layout view from a stored layout tag and metadata map.
// Non-string values for known keys are ignored rather than rejected.
func DecodeLayout(layout Layout, metadata Metadata) (LayoutMetadata, error) {
	switch layout {
	case LayoutDefault, "":
		return DefaultLayout{}, nil
	case LayoutTitle:
		return TitleLayout{}, nil
	case LayoutCode:
		return CodeLayout{
			Language:    stringField(metadata, metadataKeyLanguage),
			Explanation: stringField(metadata, metadataKeyExplanation),
		}, nil
	case LayoutSplit:
		return SplitLayout{
			LeftTitle:  stringField(metadata, metadataKeyLeftTitle),
			RightTitle: stringField(metadata, metadataKeyRightTitle),
		}, nil
	case LayoutImage:
		return ImageLayout{
			ImageURL: stringField(metadata, metadataKeyImageURL),
			Caption:  stringField(metadata, metadataKeyCaption),
		}, nil
	default:
		return nil, newValidationError("layout", fmt.Sprintf("must be one of default, title, code, split, image; got %q", layout))
	}
}

// EncodeLayout merges the typed layout fields into a copy of base, keeping unrelated keys.
func EncodeLayout(base Metadata, layout LayoutMetadata) (Layout, Metadata) {
	merged := base.Clone()
	if layout == nil {
		return LayoutDefault, merged
	}
	layout.apply(merged)
	return layout.Layout(), merged
}

func stringField(metadata Metadata, key string) string {
	if metadata == nil {
		return ""
	}
	value, ok := metadata[key].(string)
	if !ok {
		return ""
	}
	return value
}

func setOrDelete(target Metadata, key, value string) {
	if value == "" {
		delete(target, key)
		return
	}
	target[key] = value
}
