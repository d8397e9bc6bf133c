package importexport

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/utubs/pkg/utubs/api"
	"github.com/mikepea/utubs/pkg/utubs/auth"
	"github.com/mikepea/utubs/pkg/utubs/models"
	"github.com/mikepea/utubs/pkg/utubs/urls"
	"gorm.io/gorm"
)

// Handler handles import/export requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new import/export handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
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

var errDuplicate = errors.New("already in UTub")

// bookmarkTags splits a Pinboard tag string into at most MaxTagsPerURL
// distinct labels, each cut to MaxTagLength.
func bookmarkTags(s string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, label := range strings.Fields(s) {
		if r := []rune(label); len(r) > api.MaxTagLength {
			label = string(r[:api.MaxTagLength])
		}
		if seen[label] {
			continue
		}
		seen[label] = true
		out = append(out, label)
		if len(out) == api.MaxTagsPerURL {
			break
		}
	}
	return out
}

func bookmarkTitle(b api.Bookmark, href string) string {
	title := strings.TrimSpace(b.Description)
	if title == "" {
		title = href
	}
	if r := []rune(title); len(r) > api.MaxURLTitleLength {
		title = string(r[:api.MaxURLTitleLength])
	}
	return title
}

func (h *Handler) importOne(tx *gorm.DB, m models.UTubMember, b api.Bookmark) error {
	href, err := urls.Normalize(b.Href)
	if err != nil {
		return err
	}

	var count int64
	tx.Model(&models.UTubURL{}).Where("utub_id = ? AND url_string = ?", m.UTubID, href).Count(&count)
	if count > 0 {
		return errDuplicate
	}

	u := models.UTubURL{UTubID: m.UTubID, AddedByID: m.UserID, URLString: href, Title: bookmarkTitle(b, href)}
	if b.Time != "" {
		created, err := time.Parse(time.RFC3339, b.Time)
		if err != nil {
			return fmt.Errorf("invalid time format")
		}
		u.CreatedAt = created
	}

	for _, label := range bookmarkTags(b.Tags) {
		var tag models.UTubTag
		err := tx.Where("utub_id = ? AND label = ?", m.UTubID, label).First(&tag).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			tag = models.UTubTag{UTubID: m.UTubID, Label: label}
			err = tx.Create(&tag).Error
		}
		if err != nil {
			return err
		}
		u.Tags = append(u.Tags, tag)
	}

	return tx.Create(&u).Error
}

// Import adds bookmarks in Pinboard JSON format to a UTub
// @Summary Import bookmarks
// @Tags importexport
// @Accept json
// @Produce json
// @Param utubId path int true "UTub ID"
// @Param request body api.ImportRequest true "Bookmarks"
// @Success 200 {object} api.ImportResult
// @Failure 400 {object} api.ErrorResponse "Validation error"
// @Failure 404 {object} api.ErrorResponse "UTub not found"
// @Security BearerAuth
// @Router /utubs/{utubId}/import [post]
func (h *Handler) Import(c *gin.Context) {
	m, ok := h.member(c)
	if !ok {
		return
	}

	var req api.ImportRequest
	if !api.BindJSON(c, &req, "Unable to import bookmarks") {
		return
	}

	result := api.ImportResult{Errors: []string{}}
	for i, b := range req.Bookmarks {
		// each bookmark commits on its own so one bad entry does not sink the rest
		err := h.db.Transaction(func(tx *gorm.DB) error {
			return h.importOne(tx, m, b)
		})
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, "bookmark "+strconv.Itoa(i)+": "+err.Error())
			continue
		}
		result.Imported++
	}

	c.JSON(http.StatusOK, result)
}

// Export returns the URLs of a UTub in Pinboard JSON format
// @Summary Export bookmarks
// @Tags importexport
// @Produce json
// @Param utubId path int true "UTub ID"
// @Param download query bool false "Send as an attachment"
// @Success 200 {array} api.Bookmark
// @Failure 404 {object} api.ErrorResponse "UTub not found"
// @Security BearerAuth
// @Router /utubs/{utubId}/export [get]
func (h *Handler) Export(c *gin.Context) {
	m, ok := h.member(c)
	if !ok {
		return
	}

	var list []models.UTubURL
	if err := h.db.Preload("Tags").Where("utub_id = ?", m.UTubID).Order("id").Find(&list).Error; err != nil {
		api.Fail(c, http.StatusInternalServerError, "Failed to fetch URLs")
		return
	}

	bookmarks := make([]api.Bookmark, len(list))
	for i, u := range list {
		labels := make([]string, len(u.Tags))
		for j, t := range u.Tags {
			labels[j] = t.Label
		}
		slices.Sort(labels)
		bookmarks[i] = api.Bookmark{
			Href:        u.URLString,
			Description: u.Title,
			Tags:        strings.Join(labels, " "),
			Time:        u.CreatedAt.UTC().Format(time.RFC3339),
		}
	}

	if c.Query("download") == "true" {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=utub-%d.json", m.UTubID))
	}

	c.JSON(http.StatusOK, bookmarks)
}

// RegisterRoutes registers import/export routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/utubs/:utubId/import", h.Import)
	rg.GET("/utubs/:utubId/export", h.Export)
}
