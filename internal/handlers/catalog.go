package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ngvinh/circulib/internal/models"
	"github.com/ngvinh/circulib/internal/services"
)

// CatalogHandler handles title, copy and category requests.
type CatalogHandler struct {
	catalogService *services.CatalogService
}

func NewCatalogHandler(catalogService *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
	}
}

func (h *CatalogHandler) AddTitle(c *gin.Context) {
	var req models.AddTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request data", err.Error())
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	result, err := h.catalogService.AddTitle(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	message := "Title created successfully"
	if result.Existed {
		status = http.StatusOK
		message = "Copies added to existing title"
	}
	respondSuccess(c, status, result, message)
}

func (h *CatalogHandler) GetTitle(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	title, err := h.catalogService.GetTitle(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, title, "")
}

// GetTitleByISBN answers an existence check; a miss is a 200 with
// exists=false so clients can look up an ISBN before adding.
func (h *CatalogHandler) GetTitleByISBN(c *gin.Context) {
	title, err := h.catalogService.GetTitleByISBN(c.Request.Context(), c.Param("isbn"))
	if errors.Is(err, models.ErrTitleNotFound) {
		respondSuccess(c, http.StatusOK, models.TitleLookupResponse{Exists: false}, "")
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, models.TitleLookupResponse{Exists: true, Title: title}, "")
}

func (h *CatalogHandler) ListTitles(c *gin.Context) {
	var req models.ListTitlesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBadRequest(c, "Invalid query parameters", err.Error())
		return
	}

	// Only operators may browse deleted titles.
	if c.GetString("user_role") != models.RoleAdmin {
		req.Deleted = "active"
	}

	result, err := h.catalogService.ListTitles(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, result, "")
}

func (h *CatalogHandler) ListCopies(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	availableOnly := c.Query("available") == "true"
	copies, err := h.catalogService.ListCopies(c.Request.Context(), id, availableOnly)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, copies, "")
}

func (h *CatalogHandler) SetCopyStatus(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req models.SetCopyStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request data", err.Error())
		return
	}

	copyResp, err := h.catalogService.SetCopyStatus(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, copyResp, "Copy status updated")
}

func (h *CatalogHandler) DeleteTitle(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	title, err := h.catalogService.SoftDelete(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, title, "Title removed from catalog")
}

func (h *CatalogHandler) RestoreTitle(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	title, err := h.catalogService.Restore(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, title, "Title restored")
}

func (h *CatalogHandler) CreateCategory(c *gin.Context) {
	var req models.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request data", err.Error())
		return
	}

	category, err := h.catalogService.CreateCategory(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, category, "Category created")
}

func (h *CatalogHandler) ListCategories(c *gin.Context) {
	categories, err := h.catalogService.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, categories, "")
}

// pathUUID parses a uuid path parameter, answering 400 itself on failure.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondBadRequest(c, "Invalid "+name+" parameter", nil)
		return uuid.UUID{}, false
	}
	return id, true
}
