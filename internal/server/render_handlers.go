package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/slidedeck/internal/slides"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type renderedPayload struct {
	ID     int64  `json:"id,omitempty"`
	Layout string `json:"layout"`
	HTML   string `json:"html"`
}

func (h *httpHandler) handleRenderSlide(c *gin.Context) {
	slideID, err := slides.NewSlideID(c.Param("id"))
	if err != nil {
		h.respondError(c, "render.slide", err)
		return
	}
	record, err := h.slidesService.Get(c.Request.Context(), slideID)
	if err != nil {
		h.respondError(c, "render.slide", err)
		return
	}

	layout, err := slides.DecodeLayout(record.Layout, record.Metadata)
	if err != nil {
		h.logger.Warn("stored slide has unknown layout", zap.Int64("slide_id", record.ID), zap.Error(err))
		layout = slides.DefaultLayout{}
	}
	rendered, err := h.renderer.Render(record.Content, layout)
	if err != nil {
		h.respondError(c, "render.slide", err)
		return
	}
	c.JSON(http.StatusOK, renderedPayload{
		ID:     record.ID,
		Layout: rendered.Layout.String(),
		HTML:   rendered.HTML,
	})
}

// handleRenderPreview renders unsaved content without touching storage.
func (h *httpHandler) handleRenderPreview(c *gin.Context) {
	fields, ok := h.bindSlideFields(c)
	if !ok {
		return
	}
	if fields.Content == nil {
		h.respondError(c, "render.preview", &slides.ValidationError{Field: "content", Reason: "is required"})
		return
	}

	layoutTag := slides.LayoutDefault
	if fields.Layout != nil {
		parsed, err := slides.ParseLayout(*fields.Layout)
		if err != nil {
			h.respondError(c, "render.preview", err)
			return
		}
		layoutTag = parsed
	}
	var metadata slides.Metadata
	if fields.Metadata != nil {
		metadata = *fields.Metadata
	}
	layout, err := slides.DecodeLayout(layoutTag, metadata)
	if err != nil {
		h.respondError(c, "render.preview", err)
		return
	}

	rendered, err := h.renderer.Render(*fields.Content, layout)
	if err != nil {
		h.respondError(c, "render.preview", err)
		return
	}
	c.JSON(http.StatusOK, renderedPayload{
		Layout: rendered.Layout.String(),
		HTML:   rendered.HTML,
	})
}

func (h *httpHandler) handleStylesheet(c *gin.Context) {
	stylesheet, err := h.renderer.Stylesheet()
	if err != nil {
		h.respondError(c, "render.stylesheet", err)
		return
	}
	c.Data(http.StatusOK, "text/css; charset=utf-8", []byte(stylesheet))
}
