package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/podexport/backend/internal/domain"
	"github.com/rs/zerolog"
)

// ExportUsecase is the export flow the handler dispatches to
type ExportUsecase interface {
	Search(ctx context.Context, request domain.SearchRequest) (*domain.SearchResult, error)
	QuickSearch(ctx context.Context, request domain.SearchRequest) (*domain.QuickResult, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	exports ExportUsecase
	logger  zerolog.Logger
}

// searchURI binds the path parameters of a search request
type searchURI struct {
	Field string `uri:"field" binding:"required,oneof=category ename name"`
	Name  string `uri:"name" binding:"required"`
}

// searchQuery binds the query string of a search request
type searchQuery struct {
	Quick bool `form:"quick"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Message string `json:"message"`
}

// NewHandler creates a new HTTP handler
func NewHandler(exports ExportUsecase, logger zerolog.Logger) *Handler {
	return &Handler{
		exports: exports,
		logger:  logger.With().Str("component", "http").Logger(),
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "podexport",
		"version": "1.0.0",
	})
}

// Search handles GET /search/:field/:name?quick=<bool>
func (h *Handler) Search(c *gin.Context) {
	var uri searchURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "unknown search field, expected category, ename or name"})
		return
	}

	var query searchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "quick must be a boolean"})
		return
	}

	field, err := domain.ParseSearchField(uri.Field)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		return
	}

	request := domain.SearchRequest{Field: field, Keyword: uri.Name, Quick: query.Quick}

	// A client hanging up must not abort an export that will be cached.
	ctx := context.WithoutCancel(c.Request.Context())

	var result interface{}
	if request.Quick {
		result, err = h.exports.QuickSearch(ctx, request)
	} else {
		result, err = h.exports.Search(ctx, request)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// respondError maps usecase errors to responses. Invalid input is a client
// error; every other failure is a generic 500.
func (h *Handler) respondError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrInvalidRequest) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		return
	}

	h.logger.Error().
		Err(err).
		Str("request_id", c.GetString(requestIDKey)).
		Str("path", c.Request.URL.Path).
		Msg("search failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "export failed"})
}
