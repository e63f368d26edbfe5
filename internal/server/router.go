package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/slidedeck/internal/render"
	"github.com/MarcoPoloResearchLab/slidedeck/internal/slides"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	serviceName    = "slidedeck-api"
	serviceVersion = "1.0.0"
)

var (
	errMissingSlidesService = errors.New("slides service dependency required")
)

// SlideRenderer produces preview HTML for a slide.
type SlideRenderer interface {
	Render(content string, layout slides.LayoutMetadata) (render.Rendered, error)
	Stylesheet() (string, error)
}

type Dependencies struct {
	SlidesService      *slides.Service
	Renderer           SlideRenderer
	Events             *EventDispatcher
	Logger             *zap.Logger
	Environment        string
	ExposeErrorDetails bool
	AllowedOrigins     []string
	Clock              func() time.Time
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.SlidesService == nil {
		return nil, errMissingSlidesService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	renderer := deps.Renderer
	if renderer == nil {
		renderer = render.New(render.Config{})
	}
	events := deps.Events
	if events == nil {
		events = NewEventDispatcher()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(accessLogMiddleware(logger))
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		slidesService:      deps.SlidesService,
		renderer:           renderer,
		events:             events,
		logger:             logger,
		environment:        deps.Environment,
		exposeErrorDetails: deps.ExposeErrorDetails,
		allowedOrigins:     deps.AllowedOrigins,
		clock:              clock,
	}

	router.GET("/", handler.handleRoot)
	router.GET("/health", handler.handleHealth)

	slideRoutes := router.Group("/slides")
	slideRoutes.GET("", handler.handleListSlides)
	slideRoutes.POST("", handler.handleCreateSlide)
	slideRoutes.GET("/:id", handler.handleGetSlide)
	slideRoutes.PUT("/:id", handler.handleUpdateSlide)
	slideRoutes.DELETE("/:id", handler.handleDeleteSlide)
	slideRoutes.GET("/:id/render", handler.handleRenderSlide)

	router.POST("/render", handler.handleRenderPreview)
	router.GET("/render/styles.css", handler.handleStylesheet)

	router.GET("/events", handler.handleEvents)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Route not found"})
	})

	return router, nil
}

type httpHandler struct {
	slidesService      *slides.Service
	renderer           SlideRenderer
	events             *EventDispatcher
	logger             *zap.Logger
	environment        string
	exposeErrorDetails bool
	allowedOrigins     []string
	clock              func() time.Time
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if allowsAnyOrigin(allowedOrigins) {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowedOrigins
	}
	return cors.New(config)
}

func allowsAnyOrigin(allowedOrigins []string) bool {
	if len(allowedOrigins) == 0 {
		return true
	}
	for _, origin := range allowedOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}
