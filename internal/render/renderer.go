// Package render turns slide Markdown into sanitized HTML composed per layout.
package render

import (
	"bytes"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/MarcoPoloResearchLab/slidedeck/internal/slides"
	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

const (
	defaultStyleName = "github"
	splitDelimiter   = "---"
)

var classNamePattern = regexp.MustCompile(`^[a-zA-Z0-9 _-]+$`)

// Rendered is the HTML produced for one slide.
type Rendered struct {
	Layout slides.Layout
	HTML   string
}

// Config tunes the renderer. The zero value is usable.
type Config struct {
	// StyleName selects the chroma style used for highlighted code and the stylesheet.
	StyleName string
}

// Renderer converts Markdown to sanitized HTML and composes slide layouts.
type Renderer struct {
	markdown  goldmark.Markdown
	policy    *bluemonday.Policy
	style     *chroma.Style
	formatter *chromahtml.Formatter
}

// New constructs a Renderer with GitHub-flavoured Markdown and class-based highlighting.
func New(cfg Config) *Renderer {
	styleName := strings.TrimSpace(cfg.StyleName)
	if styleName == "" {
		styleName = defaultStyleName
	}
	style := styles.Get(styleName)
	formatter := chromahtml.New(chromahtml.WithClasses(true))

	markdown := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Typographer,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			renderer.WithNodeRenderers(
				util.Prioritized(&codeBlockRenderer{formatter: formatter, style: style}, 200),
			),
		),
	)

	return &Renderer{
		markdown:  markdown,
		policy:    newSanitizer(),
		style:     style,
		formatter: formatter,
	}
}

func newSanitizer() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(classNamePattern).OnElements("pre", "code", "span", "div")
	policy.AllowAttrs("id").Matching(classNamePattern).OnElements("h1", "h2", "h3", "h4", "h5", "h6")
	policy.AllowAttrs("align").Matching(regexp.MustCompile(`^(left|right|center)$`)).OnElements("th", "td")
	policy.AllowAttrs("type", "checked", "disabled").OnElements("input")
	policy.AllowElements("input")
	return policy
}

// Markdown renders source to a sanitized HTML fragment.
func (r *Renderer) Markdown(source string) (string, error) {
	var buffer bytes.Buffer
	if err := r.markdown.Convert([]byte(source), &buffer); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return r.policy.Sanitize(buffer.String()), nil
}

// Render composes a slide for display according to its layout.
func (r *Renderer) Render(content string, layout slides.LayoutMetadata) (Rendered, error) {
	if layout == nil {
		layout = slides.DefaultLayout{}
	}

	var body string
	var err error
	switch typed := layout.(type) {
	case slides.TitleLayout:
		body, err = r.renderTitle(content)
	case slides.CodeLayout:
		body, err = r.renderCode(content, typed)
	case slides.SplitLayout:
		body, err = r.renderSplit(content, typed)
	case slides.ImageLayout:
		body, err = r.renderImage(content, typed)
	case slides.DefaultLayout:
		body, err = r.renderDefault(content)
	default:
		return Rendered{}, fmt.Errorf("render: unsupported layout %T", layout)
	}
	if err != nil {
		return Rendered{}, err
	}

	return Rendered{
		Layout: layout.Layout(),
		HTML:   fmt.Sprintf(`<div class="slide-layout-%s">%s</div>`, layout.Layout(), body),
	}, nil
}

// Stylesheet returns the CSS rules for highlighted code blocks.
func (r *Renderer) Stylesheet() (string, error) {
	var buffer bytes.Buffer
	if err := r.formatter.WriteCSS(&buffer, r.style); err != nil {
		return "", fmt.Errorf("render stylesheet: %w", err)
	}
	return buffer.String(), nil
}

func (r *Renderer) renderDefault(content string) (string, error) {
	fragment, err := r.Markdown(content)
	if err != nil {
		return "", err
	}
	return `<div class="content-wrapper">` + fragment + `</div>`, nil
}

func (r *Renderer) renderTitle(content string) (string, error) {
	fragment, err := r.Markdown(content)
	if err != nil {
		return "", err
	}
	return `<div class="slide-content">` + fragment + `</div>`, nil
}

func (r *Renderer) renderCode(content string, layout slides.CodeLayout) (string, error) {
	fragment, err := r.Markdown(content)
	if err != nil {
		return "", err
	}
	var builder strings.Builder
	builder.WriteString(`<div class="code-content">`)
	builder.WriteString(fragment)
	builder.WriteString(`</div>`)

	if strings.TrimSpace(layout.Explanation) != "" {
		explanation, err := r.Markdown(layout.Explanation)
		if err != nil {
			return "", err
		}
		heading := "Code Explanation"
		if layout.Language != "" {
			heading = layout.Language + " Code Explanation"
		}
		builder.WriteString(`<div class="explanation"><h3>`)
		builder.WriteString(html.EscapeString(heading))
		builder.WriteString(`</h3><div class="explanation-content">`)
		builder.WriteString(explanation)
		builder.WriteString(`</div></div>`)
	}
	return builder.String(), nil
}

func (r *Renderer) renderSplit(content string, layout slides.SplitLayout) (string, error) {
	left, right := SplitColumns(content)

	leftHTML, err := r.Markdown(left)
	if err != nil {
		return "", err
	}
	rightHTML, err := r.Markdown(right)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	writeColumn(&builder, "left-content", layout.LeftTitle, leftHTML)
	writeColumn(&builder, "right-content", layout.RightTitle, rightHTML)
	return builder.String(), nil
}

func writeColumn(builder *strings.Builder, class, title, body string) {
	builder.WriteString(`<div class="` + class + `">`)
	if title != "" {
		builder.WriteString(`<h3>` + html.EscapeString(title) + `</h3>`)
	}
	builder.WriteString(`<div class="content-wrapper">` + body + `</div></div>`)
}

func (r *Renderer) renderImage(content string, layout slides.ImageLayout) (string, error) {
	var builder strings.Builder
	builder.WriteString(`<div class="image-content">`)
	if source, ok := safeImageURL(layout.ImageURL); ok {
		builder.WriteString(`<img src="` + html.EscapeString(source) + `" alt="` + html.EscapeString(layout.Caption) + `">`)
	}
	builder.WriteString(`</div>`)

	if strings.TrimSpace(layout.Caption) != "" {
		caption, err := r.Markdown(layout.Caption)
		if err != nil {
			return "", err
		}
		builder.WriteString(`<div class="caption">` + caption + `</div>`)
	}

	fragment, err := r.Markdown(content)
	if err != nil {
		return "", err
	}
	builder.WriteString(`<div class="content-wrapper">` + fragment + `</div>`)
	return builder.String(), nil
}

// SplitColumns divides split-layout content at the first "---" delimiter.
// Text after a second delimiter is not shown.
func SplitColumns(content string) (string, string) {
	parts := strings.Split(content, splitDelimiter)
	left := strings.TrimSpace(parts[0])
	right := ""
	if len(parts) > 1 {
		right = strings.TrimSpace(parts[1])
	}
	return left, right
}

func safeImageURL(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", false
	}
	switch strings.ToLower(parsed.Scheme) {
	case "", "http", "https":
		return parsed.String(), true
	default:
		return "", false
	}
}
