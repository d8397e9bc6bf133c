package urls

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/purell"
	"github.com/gin-gonic/gin"
	"github.com/mikepea/utubs/pkg/utubs/api"
	"github.com/mikepea/utubs/pkg/utubs/auth"
	"github.com/mikepea/utubs/pkg/utubs/models"
	"gorm.io/gorm"
)

var ErrInvalidURL = errors.New("invalid url")

// Handler handles URL requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new URLs handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// Normalize adds a missing scheme and canonicalizes the URL so the same
// page saved twice compares equal.
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	normalized, err := purell.NormalizeURLString(raw, purell.FlagsUsuallySafeGreedy)
	if err != nil {
		return "", ErrInvalidURL
	}
	u, err := url.Parse(normalized)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", ErrInvalidURL
	}
	if len(normalized) > api.MaxURLLength {
		return "", ErrInvalidURL
	}
	return normalized, nil
}

func (h *Handler) member(c *gin.Context) (models.UTubMember, bool) {
	userID, _ := auth.GetUserID(c)
	utubID, err := strconv.ParseUint(c.Param("utubId"), 10, 32)
	if err != nil {
		api.Fail(c, http.StatusBadRequest, "Invalid UTub ID")
		return models.UTubMember{}, false
	}
	m, err := models.FindMembership(h.db, uint(utubID), userID)
	if err != nil {
		api.Fail(c, http.StatusNotFound, "UTub not found")
		return models.UTubMember{}, false
	}
	return m, true
}

// load resolves :urlId within the caller's UTub.
func (h *Handler) load(c *gin.Context) (models.UTubMember, models.UTubURL, bool) {
	m, ok := h.member(c)
	if !ok {
		return m, models.UTubURL{}, false
	}
	urlID, err := strconv.ParseUint(c.Param("urlId"), 10, 32)
	if err != nil {
		api.Fail(c, http.StatusBadRequest, "Invalid URL ID")
		return m, models.UTubURL{}, false
	}
	u, err := models.FindURL(h.db, m.UTubID, uint(urlID))
	if err != nil {
		api.Fail(c, http.StatusNotFound, "URL not found")
		return m, u, false
	}
	return m, u, true
}

// duplicate reports whether another URL of the UTub already has urlString.
func (h *Handler) duplicate(utubID uint, urlString string, excludeID uint) bool {
	var existing models.UTubURL
	q := h.db.Where("utub_id = ? AND url_string = ?", utubID, urlString)
	if excludeID > 0 {
		q = q.Where("id != ?", excludeID)
	}
	return q.First(&existing).Error == nil
}

func conflict(c *gin.Context, urlString string) {
	c.AbortWithStatusJSON(http.StatusConflict, api.NewError("URL already in UTub", nil).
		WithDetails(map[string]any{"urlString": urlString}))
}

// Create adds a URL to a UTub
// @Summary Add a URL
// @Tags urls
// @Accept json
// @Produce json
// @Param utubId path int true "UTub ID"
// @Param request body api.CreateURLRequest true "URL details"
// @Success 201 {object} api.URL
// @Failure 400 {object} api.ErrorResponse "Validation error"
// @Failure 409 {object} api.ErrorResponse "URL already in UTub"
// @Security BearerAuth
// @Router /utubs/{utubId}/urls [post]
func (h *Handler) Create(c *gin.Context) {
	m, ok := h.member(c)
	if !ok {
		return
	}

	var req api.CreateURLRequest
	if !api.BindJSON(c, &req, "Unable to add this URL") {
		return
	}
	urlString, err := Normalize(req.URLString)
	if err != nil {
		api.FailFields(c, "Unable to add this URL", map[string][]string{"urlString": {"Invalid URL"}})
		return
	}
	if h.duplicate(m.UTubID, urlString, 0) {
		conflict(c, urlString)
		return
	}

	title := strings.TrimSpace(req.URLTitle)
	if title == "" {
		title = urlString
	}
	u := models.UTubURL{UTubID: m.UTubID, AddedByID: m.UserID, URLString: urlString, Title: title}
	if err := h.db.Create(&u).Error; err != nil {
		api.Fail(c, http.StatusInternalServerError, "Failed to add URL")
		return
	}

	c.JSON(http.StatusCreated, u.ToAPI(m))
}

// Get returns a single URL
// @Summary Get a URL
// @Tags urls
// @Produce json
// @Param utubId path int true "UTub ID"
// @Param urlId path int true "URL ID"
// @Success 200 {object} api.URL
// @Failure 404 {object} api.ErrorResponse "URL not found"
// @Security BearerAuth
// @Router /utubs/{utubId}/urls/{urlId} [get]
func (h *Handler) Get(c *gin.Context) {
	m, u, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, u.ToAPI(m))
}

// UpdateTitle changes the title of a URL
// @Summary Update a URL title
// @Tags urls
// @Accept json
// @Produce json
// @Param utubId path int true "UTub ID"
// @Param urlId path int true "URL ID"
// @Param request body api.UpdateURLTitleRequest true "New title"
// @Success 200 {object} api.URL
// @Failure 400 {object} api.ErrorResponse "Validation error"
// @Failure 403 {object} api.ErrorResponse "Not allowed"
// @Failure 404 {object} api.ErrorResponse "URL not found"
// @Security BearerAuth
// @Router /utubs/{utubId}/urls/{urlId}/title [patch]
func (h *Handler) UpdateTitle(c *gin.Context) {
	m, u, ok := h.load(c)
	if !ok {
		return
	}
	if !u.CanMutate(m) {
		api.Fail(c, http.StatusForbidden, "Only the UTub owner or the member who added this URL can edit it")
		return
	}

	var req api.UpdateURLTitleRequest
	if !api.BindJSON(c, &req, "Unable to update URL title") {
		return
	}

	u.Title = strings.TrimSpace(req.URLTitle)
	if err := h.db.Model(&u).Update("title", u.Title).Error; err != nil {
		api.Fail(c, http.StatusInternalServerError, "Failed to update URL")
		return
	}

	c.JSON(http.StatusOK, u.ToAPI(m))
}

// UpdateString changes the URL itself
// @Summary Update a URL string
// @Tags urls
// @Accept json
// @Produce json
// @Param utubId path int true "UTub ID"
// @Param urlId path int true "URL ID"
// @Param request body api.UpdateURLStringRequest true "New URL"
// @Success 200 {object} api.URL
// @Failure 400 {object} api.ErrorResponse "Validation error"
// @Failure 403 {object} api.ErrorResponse "Not allowed"
// @Failure 409 {object} api.ErrorResponse "URL already in UTub"
// @Security BearerAuth
// @Router /utubs/{utubId}/urls/{urlId} [patch]
func (h *Handler) UpdateString(c *gin.Context) {
	m, u, ok := h.load(c)
	if !ok {
		return
	}
	if !u.CanMutate(m) {
		api.Fail(c, http.StatusForbidden, "Only the UTub owner or the member who added this URL can edit it")
		return
	}

	var req api.UpdateURLStringRequest
	if !api.BindJSON(c, &req, "Unable to update URL") {
		return
	}
	urlString, err := Normalize(req.URLString)
	if err != nil {
		api.FailFields(c, "Unable to update URL", map[string][]string{"urlString": {"Invalid URL"}})
		return
	}
	if urlString == u.URLString {
		c.JSON(http.StatusOK, u.ToAPI(m))
		return
	}
	if h.duplicate(m.UTubID, urlString, u.ID) {
		conflict(c, urlString)
		return
	}

	u.URLString = urlString
	if err := h.db.Model(&u).Update("url_string", urlString).Error; err != nil {
		api.Fail(c, http.StatusInternalServerError, "Failed to update URL")
		return
	}

	c.JSON(http.StatusOK, u.ToAPI(m))
}

// Delete removes a URL and its tag associations
// @Summary Delete a URL
// @Tags urls
// @Produce json
// @Param utubId path int true "UTub ID"
// @Param urlId path int true "URL ID"
// @Success 200 {object} map[string]interface{} "URL removed"
// @Failure 403 {object} api.ErrorResponse "Not allowed"
// @Failure 404 {object} api.ErrorResponse "URL not found"
// @Security BearerAuth
// @Router /utubs/{utubId}/urls/{urlId} [delete]
func (h *Handler) Delete(c *gin.Context) {
	m, u, ok := h.load(c)
	if !ok {
		return
	}
	if !u.CanMutate(m) {
		api.Fail(c, http.StatusForbidden, "Only the UTub owner or the member who added this URL can delete it")
		return
	}

	tags := append([]models.UTubTag(nil), u.Tags...)
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&u).Association("Tags").Clear(); err != nil {
			return err
		}
		if err := tx.Delete(&u).Error; err != nil {
			return err
		}
		_, err := models.PruneTags(tx, tags)
		return err
	})
	if err != nil {
		api.Fail(c, http.StatusInternalServerError, "Failed to delete URL")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "Success", "message": "URL removed", "url": u.ToAPI(m)})
}

// RegisterRoutes registers URL routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/utubs/:utubId/urls", h.Create)
	rg.GET("/utubs/:utubId/urls/:urlId", h.Get)
	rg.PATCH("/utubs/:utubId/urls/:urlId", h.UpdateString)
	rg.PATCH("/utubs/:utubId/urls/:urlId/title", h.UpdateTitle)
	rg.DELETE("/utubs/:utubId/urls/:urlId", h.Delete)
}
