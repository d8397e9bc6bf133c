package tags

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/utubs/pkg/utubs/api"
	"github.com/mikepea/utubs/pkg/utubs/auth"
	"github.com/mikepea/utubs/pkg/utubs/models"
	"gorm.io/gorm"
)

// Handler handles UTub tag and URL tag requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new tags handler
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

func paramID(c *gin.Context, name, message string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		api.Fail(c, http.StatusBadRequest, message)
		return 0, false
	}
	return uint(id), true
}

// bindLabel binds a TagRequest and returns the trimmed label.
func bindLabel(c *gin.Context, message string) (string, bool) {
	var req api.TagRequest
	if !api.BindJSON(c, &req, message) {
		return "", false
	}
	label := strings.TrimSpace(req.TagString)
	if label == "" {
		api.FailFields(c, message, map[string][]string{"tagString": {"Field required"}})
		return "", false
	}
	return label, true
}

func (h *Handler) findByLabel(db *gorm.DB, utubID uint, label string) (models.UTubTag, error) {
	var t models.UTubTag
	err := db.Where("utub_id = ? AND label = ?", utubID, label).First(&t).Error
	return t, err
}

// CreateUTubTag adds a tag to a UTub
// @Summary Create a UTub tag
// @Tags tags
// @Accept json
// @Produce json
// @Param utubId path int true "UTub ID"
// @Param request body api.TagRequest true "Tag"
// @Success 201 {object} api.Tag
// @Failure 400 {object} api.ErrorResponse "Validation error"
// @Failure 409 {object} api.ErrorResponse "Tag already in UTub"
// @Security BearerAuth
// @Router /utubs/{utubId}/tags [post]
func (h *Handler) CreateUTubTag(c *gin.Context) {
	m, ok := h.member(c)
	if !ok {
		return
	}
	label, ok := bindLabel(c, "Unable to add tag")
	if !ok {
		return
	}

	if existing, err := h.findByLabel(h.db, m.UTubID, label); err == nil {
		c.AbortWithStatusJSON(http.StatusConflict, api.NewError("Tag already in UTub", nil).
			WithDetails(map[string]any{"tagString": existing.Label, "tagId": existing.ID}))
		return
	}

	tag := models.UTubTag{UTubID: m.UTubID, Label: label}
	if err := h.db.Create(&tag).Error; err != nil {
		api.Fail(c, http.StatusInternalServerError, "Failed to create tag")
		return
	}

	c.JSON(http.StatusCreated, tag.ToAPI())
}

// DeleteUTubTag removes a tag from a UTub and from every URL carrying it
// @Summary Delete a UTub tag
// @Tags tags
// @Produce json
// @Param utubId path int true "UTub ID"
// @Param tagId path int true "Tag ID"
// @Success 200 {object} map[string]interface{} "Tag removed"
// @Failure 404 {object} api.ErrorResponse "Tag not found"
// @Security BearerAuth
// @Router /utubs/{utubId}/tags/{tagId} [delete]
func (h *Handler) DeleteUTubTag(c *gin.Context) {
	m, ok := h.member(c)
	if !ok {
		return
	}
	tagID, ok := paramID(c, "tagId", "Invalid tag ID")
	if !ok {
		return
	}

	tag, err := models.FindTag(h.db, m.UTubID, tagID)
	if err != nil {
		api.Fail(c, http.StatusNotFound, "Tag not found")
		return
	}

	var urls []models.UTubURL
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&tag).Association("URLs").Find(&urls); err != nil {
			return err
		}
		if err := tx.Model(&tag).Association("URLs").Clear(); err != nil {
			return err
		}
		return tx.Delete(&tag).Error
	})
	if err != nil {
		api.Fail(c, http.StatusInternalServerError, "Failed to delete tag")
		return
	}

	urlIDs := make([]uint, 0, len(urls))
	for _, u := range urls {
		urlIDs = append(urlIDs, u.ID)
	}
	c.JSON(http.StatusOK, gin.H{"status": "Success", "message": "Tag removed", "tag": tag.ToAPI(), "urlIds": urlIDs})
}

// loadURL resolves :urlId within the caller's UTub.
func (h *Handler) loadURL(c *gin.Context) (models.UTubMember, models.UTubURL, bool) {
	m, ok := h.member(c)
	if !ok {
		return m, models.UTubURL{}, false
	}
	urlID, ok := paramID(c, "urlId", "Invalid URL ID")
	if !ok {
		return m, models.UTubURL{}, false
	}
	u, err := models.FindURL(h.db, m.UTubID, urlID)
	if err != nil {
		api.Fail(c, http.StatusNotFound, "URL not found")
		return m, u, false
	}
	return m, u, true
}

var (
	errTagOnURL    = errors.New("tag already on URL")
	errTooManyTags = errors.New("too many tags")
)

// AddURLTag applies a tag to a URL, creating the UTub tag if needed
// @Summary Tag a URL
// @Tags tags
// @Accept json
// @Produce json
// @Param utubId path int true "UTub ID"
// @Param urlId path int true "URL ID"
// @Param request body api.TagRequest true "Tag"
// @Success 201 {object} api.URLTag
// @Failure 400 {object} api.ErrorResponse "Validation error or tag limit reached"
// @Failure 404 {object} api.ErrorResponse "URL not found"
// @Failure 409 {object} api.ErrorResponse "Tag already on URL"
// @Security BearerAuth
// @Router /utubs/{utubId}/urls/{urlId}/tags [post]
func (h *Handler) AddURLTag(c *gin.Context) {
	m, u, ok := h.loadURL(c)
	if !ok {
		return
	}
	label, ok := bindLabel(c, "Unable to add tag to URL")
	if !ok {
		return
	}

	var tag models.UTubTag
	err := h.db.Transaction(func(tx *gorm.DB) error {
		var err error
		tag, err = h.findByLabel(tx, m.UTubID, label)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			tag = models.UTubTag{UTubID: m.UTubID, Label: label}
			err = tx.Create(&tag).Error
		}
		if err != nil {
			return err
		}
		for _, t := range u.Tags {
			if t.ID == tag.ID {
				return errTagOnURL
			}
		}
		if len(u.Tags) >= api.MaxTagsPerURL {
			return errTooManyTags
		}
		return tx.Model(&u).Association("Tags").Append(&tag)
	})
	switch {
	case errors.Is(err, errTagOnURL):
		c.AbortWithStatusJSON(http.StatusConflict, api.NewError("URL already has this tag", nil).
			WithDetails(map[string]any{"tagString": tag.Label, "tagId": tag.ID}))
		return
	case errors.Is(err, errTooManyTags):
		api.FailFields(c, "URLs can only have up to 5 tags", map[string][]string{"tagString": {"Too many tags on this URL"}})
		return
	case err != nil:
		api.Fail(c, http.StatusInternalServerError, "Failed to add tag")
		return
	}

	c.JSON(http.StatusCreated, api.URLTag{URL: u.ToAPI(m), Tag: tag.ToAPI()})
}

// RemoveURLTag removes a tag from a URL; the UTub tag itself is kept
// @Summary Untag a URL
// @Tags tags
// @Produce json
// @Param utubId path int true "UTub ID"
// @Param urlId path int true "URL ID"
// @Param tagId path int true "Tag ID"
// @Success 200 {object} api.URLTag
// @Failure 404 {object} api.ErrorResponse "URL or tag not found"
// @Security BearerAuth
// @Router /utubs/{utubId}/urls/{urlId}/tags/{tagId} [delete]
func (h *Handler) RemoveURLTag(c *gin.Context) {
	m, u, ok := h.loadURL(c)
	if !ok {
		return
	}
	tagID, ok := paramID(c, "tagId", "Invalid tag ID")
	if !ok {
		return
	}

	var tag models.UTubTag
	found := false
	for _, t := range u.Tags {
		if t.ID == tagID {
			tag, found = t, true
			break
		}
	}
	if !found {
		api.Fail(c, http.StatusNotFound, "Tag not on URL")
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&u).Association("Tags").Delete(&tag); err != nil {
			return err
		}
		_, err := models.PruneTags(tx, []models.UTubTag{tag})
		return err
	})
	if err != nil {
		api.Fail(c, http.StatusInternalServerError, "Failed to remove tag")
		return
	}

	c.JSON(http.StatusOK, api.URLTag{URL: u.ToAPI(m), Tag: tag.ToAPI()})
}

// RegisterRoutes registers tag routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/utubs/:utubId/tags", h.CreateUTubTag)
	rg.DELETE("/utubs/:utubId/tags/:tagId", h.DeleteUTubTag)
	rg.POST("/utubs/:utubId/urls/:urlId/tags", h.AddURLTag)
	rg.DELETE("/utubs/:utubId/urls/:urlId/tags/:tagId", h.RemoveURLTag)
}
