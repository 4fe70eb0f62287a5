package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edudist/btd-api/internal/models"
	appErrors "github.com/edudist/btd-api/pkg/errors"
	"github.com/edudist/btd-api/pkg/response"
)

type lookupService interface {
	ListDistricts(ctx context.Context) ([]models.District, error)
	ListBlocks(ctx context.Context, districtCode string) ([]models.Block, error)
	ListSchools(ctx context.Context, blockCode, districtCode string, actor *models.JWTClaims) ([]models.School, error)
	GetSchool(ctx context.Context, udise string) (*models.School, error)
	ListBooks(ctx context.Context, filter models.BookFilter) ([]models.Book, *models.Pagination, error)
	GetBook(ctx context.Context, id string) (*models.Book, error)
}

// LookupHandler serves directory and catalogue reads.
type LookupHandler struct {
	service lookupService
}

// NewLookupHandler constructs the handler.
func NewLookupHandler(service lookupService) *LookupHandler {
	return &LookupHandler{service: service}
}

// ListDistricts godoc
// @Summary List districts
// @Tags Lookups
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /districts [get]
func (h *LookupHandler) ListDistricts(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "lookup service not configured"))
		return
	}
	districts, err := h.service.ListDistricts(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, districts, nil)
}

// ListBlocks godoc
// @Summary List blocks
// @Tags Lookups
// @Produce json
// @Param district query string false "District code"
// @Success 200 {object} response.Envelope
// @Router /blocks [get]
func (h *LookupHandler) ListBlocks(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "lookup service not configured"))
		return
	}
	blocks, err := h.service.ListBlocks(c.Request.Context(), strings.TrimSpace(c.Query("district")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, blocks, nil)
}

// ListSchools godoc
// @Summary List schools in scope
// @Tags Lookups
// @Produce json
// @Param block query string false "Block code"
// @Param district query string false "District code"
// @Success 200 {object} response.Envelope
// @Router /schools [get]
func (h *LookupHandler) ListSchools(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "lookup service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	schools, err := h.service.ListSchools(c.Request.Context(), strings.TrimSpace(c.Query("block")), strings.TrimSpace(c.Query("district")), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schools, nil)
}

// GetSchool godoc
// @Summary Get one school by UDISE code
// @Tags Lookups
// @Produce json
// @Param udise path string true "UDISE code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schools/{udise} [get]
func (h *LookupHandler) GetSchool(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "lookup service not configured"))
		return
	}
	school, err := h.service.GetSchool(c.Request.Context(), c.Param("udise"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, school, nil)
}

// ListBooks godoc
// @Summary List the book catalogue with central stock
// @Tags Lookups
// @Produce json
// @Param class query string false "Class"
// @Param subject query string false "Subject"
// @Param search query string false "Title search"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /books [get]
func (h *LookupHandler) ListBooks(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "lookup service not configured"))
		return
	}
	filter := models.BookFilter{
		Class:    strings.TrimSpace(c.Query("class")),
		Subject:  strings.TrimSpace(c.Query("subject")),
		Search:   strings.TrimSpace(c.Query("search")),
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "page_size", 50),
	}
	books, pagination, err := h.service.ListBooks(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, books, pagination)
}

// GetBook godoc
// @Summary Get one catalogue entry
// @Tags Lookups
// @Produce json
// @Param id path string true "Book ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /books/{id} [get]
func (h *LookupHandler) GetBook(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "lookup service not configured"))
		return
	}
	book, err := h.service.GetBook(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, book, nil)
}
