package database

import "github.com/MarcoPoloResearchLab/slidedeck/internal/slides"

// DefaultSlides returns the starter deck written into a fresh database.
func DefaultSlides() []slides.Slide {
	return []slides.Slide{
		{
			Order:    1,
			Layout:   slides.LayoutTitle,
			Content:  "# Markdown Slide Editor\n\nWrite slides in Markdown, present them anywhere.",
			Metadata: slides.Metadata{},
		},
		{
			Order:    2,
			Layout:   slides.LayoutDefault,
			Content:  "## Core Features\n\n- Live Markdown editing with preview\n- Title, code, split and image layouts\n- Reordering that stays in sync with the server\n- Keyboard navigation and a fullscreen presenter\n- Auto-save shortly after you stop typing",
			Metadata: slides.Metadata{},
		},
		{
			Order:   3,
			Layout:  slides.LayoutCode,
			Content: "## Talking To The API\n\n```go\nresp, err := http.Get(baseURL + \"/slides\")\n```",
			Metadata: slides.Metadata{
				"language":    "go",
				"explanation": "Every slide lives behind a small REST API; the editor only mirrors it.",
			},
		},
		{
			Order:   4,
			Layout:  slides.LayoutSplit,
			Content: "- Type freely\n- Changes appear instantly\n---\n- Saved after a short pause\n- Errors surface as a banner",
			Metadata: slides.Metadata{
				"leftTitle":  "Editing",
				"rightTitle": "Persistence",
			},
		},
		{
			Order:   5,
			Layout:  slides.LayoutDefault,
			Content: "## Slide Layouts\n\n| Layout | Description |\n|--------|-------------|\n| Title | Large centered text |\n| Default | Standard content |\n| Code | Highlighted source with notes |\n| Split | Two columns |\n| Image | Picture with caption |",
			Metadata: slides.Metadata{},
		},
	}
}
