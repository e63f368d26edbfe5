package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/MarcoPoloResearchLab/slidedeck/internal/slides"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const genericErrorMessage = "Something went wrong"

type slidePayload struct {
	ID        int64           `json:"id"`
	Order     int             `json:"order"`
	Content   string          `json:"content"`
	Layout    string          `json:"layout"`
	Metadata  slides.Metadata `json:"metadata"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func newSlidePayload(slide slides.Slide) slidePayload {
	metadata := slide.Metadata
	if metadata == nil {
		metadata = slides.Metadata{}
	}
	layout := slide.Layout
	if layout == "" {
		layout = slides.LayoutDefault
	}
	return slidePayload{
		ID:        slide.ID,
		Order:     slide.Order,
		Content:   slide.Content,
		Layout:    layout.String(),
		Metadata:  metadata,
		CreatedAt: slide.CreatedAt.UTC(),
		UpdatedAt: slide.UpdatedAt.UTC(),
	}
}

// slideFields holds the optional fields of a create or update body. Nil means omitted.
type slideFields struct {
	Order    *int
	Content  *string
	Layout   *string
	Metadata *slides.Metadata
}

type healthPayload struct {
	Status      string        `json:"status"`
	Timestamp   time.Time     `json:"timestamp"`
	Environment string        `json:"environment"`
	Slides      *int64        `json:"slides,omitempty"`
	Goroutines  int           `json:"goroutines"`
	Memory      memoryPayload `json:"memory"`
}

type memoryPayload struct {
	AllocBytes     uint64 `json:"allocBytes"`
	HeapInUseBytes uint64 `json:"heapInUseBytes"`
	SysBytes       uint64 `json:"sysBytes"`
	NumGC          uint32 `json:"numGC"`
}

func (h *httpHandler) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"message":     "Slides API is running",
		"service":     serviceName,
		"version":     serviceVersion,
		"environment": h.environment,
		"endpoints": gin.H{
			"slides": "/slides",
			"health": "/health",
			"render": "/render",
			"events": "/events",
		},
	})
}

// handleHealth reports process state. A storage failure only omits the slide count.
func (h *httpHandler) handleHealth(c *gin.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	response := healthPayload{
		Status:      "healthy",
		Timestamp:   h.clock().UTC(),
		Environment: h.environment,
		Goroutines:  runtime.NumGoroutine(),
		Memory: memoryPayload{
			AllocBytes:     memStats.Alloc,
			HeapInUseBytes: memStats.HeapInuse,
			SysBytes:       memStats.Sys,
			NumGC:          memStats.NumGC,
		},
	}
	if total, err := h.slidesService.Count(c.Request.Context()); err == nil {
		response.Slides = &total
	} else {
		h.logger.Warn("health slide count failed", zap.Error(err))
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleListSlides(c *gin.Context) {
	records, err := h.slidesService.List(c.Request.Context())
	if err != nil {
		h.respondError(c, "slides.list", err)
		return
	}
	response := make([]slidePayload, 0, len(records))
	for _, record := range records {
		response = append(response, newSlidePayload(record))
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleGetSlide(c *gin.Context) {
	slideID, err := slides.NewSlideID(c.Param("id"))
	if err != nil {
		h.respondError(c, "slides.get", err)
		return
	}
	record, err := h.slidesService.Get(c.Request.Context(), slideID)
	if err != nil {
		h.respondError(c, "slides.get", err)
		return
	}
	c.JSON(http.StatusOK, newSlidePayload(record))
}

func (h *httpHandler) handleCreateSlide(c *gin.Context) {
	fields, ok := h.bindSlideFields(c)
	if !ok {
		return
	}

	created, err := h.slidesService.Create(c.Request.Context(), slides.CreateInput{
		Order:    fields.Order,
		Content:  fields.Content,
		Layout:   fields.Layout,
		Metadata: fields.Metadata,
	})
	if err != nil {
		h.respondError(c, "slides.create", err)
		return
	}

	h.publish(ActionCreated, created.ID)
	c.JSON(http.StatusCreated, newSlidePayload(created))
}

func (h *httpHandler) handleUpdateSlide(c *gin.Context) {
	slideID, err := slides.NewSlideID(c.Param("id"))
	if err != nil {
		h.respondError(c, "slides.update", err)
		return
	}
	fields, ok := h.bindSlideFields(c)
	if !ok {
		return
	}

	input := slides.UpdateInput{
		Order:    fields.Order,
		Content:  fields.Content,
		Layout:   fields.Layout,
		Metadata: fields.Metadata,
	}
	if input.IsEmpty() {
		record, err := h.slidesService.Get(c.Request.Context(), slideID)
		if err != nil {
			h.respondError(c, "slides.update", err)
			return
		}
		c.JSON(http.StatusOK, newSlidePayload(record))
		return
	}

	updated, err := h.slidesService.Update(c.Request.Context(), slideID, input)
	if err != nil {
		h.respondError(c, "slides.update", err)
		return
	}

	h.publish(ActionUpdated, updated.ID)
	c.JSON(http.StatusOK, newSlidePayload(updated))
}

func (h *httpHandler) handleDeleteSlide(c *gin.Context) {
	slideID, err := slides.NewSlideID(c.Param("id"))
	if err != nil {
		h.respondError(c, "slides.delete", err)
		return
	}
	if err := h.slidesService.Delete(c.Request.Context(), slideID); err != nil {
		h.respondError(c, "slides.delete", err)
		return
	}

	h.publish(ActionDeleted, slideID.Int64())
	c.Status(http.StatusNoContent)
}

// bindSlideFields decodes a JSON object body field by field so omitted and null values stay distinguishable.
func (h *httpHandler) bindSlideFields(c *gin.Context) (slideFields, bool) {
	var raw map[string]json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil || raw == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Request body must be a JSON object"})
		return slideFields{}, false
	}

	fields, err := decodeSlideFields(raw)
	if err != nil {
		h.respondError(c, "slides.decode", err)
		return slideFields{}, false
	}
	return fields, true
}

func decodeSlideFields(raw map[string]json.RawMessage) (slideFields, error) {
	var fields slideFields

	if value, ok := raw["order"]; ok && !isJSONNull(value) {
		var order int
		if err := json.Unmarshal(value, &order); err != nil {
			return slideFields{}, &slides.ValidationError{Field: "order", Reason: "must be an integer"}
		}
		fields.Order = &order
	}

	if value, ok := raw["content"]; ok {
		var content string
		if isJSONNull(value) || json.Unmarshal(value, &content) != nil {
			return slideFields{}, &slides.ValidationError{Field: "content", Reason: "must be a string"}
		}
		fields.Content = &content
	}

	if value, ok := raw["layout"]; ok && !isJSONNull(value) {
		var layout string
		if err := json.Unmarshal(value, &layout); err != nil {
			return slideFields{}, &slides.ValidationError{Field: "layout", Reason: "must be a string"}
		}
		fields.Layout = &layout
	}

	if value, ok := raw["metadata"]; ok && !isJSONNull(value) {
		trimmed := bytes.TrimSpace(value)
		metadata := slides.Metadata{}
		if len(trimmed) == 0 || trimmed[0] != '{' || json.Unmarshal(trimmed, &metadata) != nil {
			return slideFields{}, &slides.ValidationError{Field: "metadata", Reason: "must be a JSON object"}
		}
		fields.Metadata = &metadata
	}

	return fields, nil
}

func isJSONNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}

// respondError maps service errors onto the API error body.
func (h *httpHandler) respondError(c *gin.Context, operation string, err error) {
	switch {
	case errors.Is(err, slides.ErrSlideNotFound), errors.Is(err, slides.ErrInvalidSlideID):
		c.JSON(http.StatusNotFound, gin.H{"error": "slide_not_found", "message": "Slide not found"})
	case errors.Is(err, slides.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": validationMessage(err)})
	default:
		code := operation + ".failed"
		var serviceErr *slides.ServiceError
		if errors.As(err, &serviceErr) {
			code = serviceErr.Code()
		}
		h.logger.Error("request failed",
			zap.String("operation", operation),
			zap.String("code", code),
			zap.String("request_id", c.GetString(requestIDContextKey)),
			zap.Error(err),
		)
		message := genericErrorMessage
		if h.exposeErrorDetails {
			message = err.Error()
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "code": code, "message": message})
	}
}

func validationMessage(err error) string {
	var validationErr *slides.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Error()
	}
	return err.Error()
}

func (h *httpHandler) publish(action string, slideIDs ...int64) {
	h.events.Publish(SlideEvent{
		Type:      EventTypeSlideChange,
		Action:    action,
		SlideIDs:  slideIDs,
		Timestamp: h.clock().UTC(),
	})
}
