package utubs

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/utubs/pkg/utubs/api"
	"github.com/mikepea/utubs/pkg/utubs/auth"
	"github.com/mikepea/utubs/pkg/utubs/models"
	"gorm.io/gorm"
)

// Handler handles UTub and member requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new UTubs handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// member resolves the :utubId param and the caller's membership. Non-members
// get a 404 so UTub ids are not disclosed.
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

func (h *Handler) memberCount(utubID uint) int {
	var n int64
	h.db.Model(&models.UTubMember{}).Where("utub_id = ?", utubID).Count(&n)
	return int(n)
}

// List returns all UTubs the current user is a member of
// @Summary List UTubs
// @Tags utubs
// @Produce json
// @Success 200 {array} api.UTubSummary
// @Security BearerAuth
// @Router /utubs [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var memberships []models.UTubMember
	if err := h.db.Where("user_id = ?", userID).Order("utub_id").Find(&memberships).Error; err != nil {
		api.Fail(c, http.StatusInternalServerError, "Failed to fetch UTubs")
		return
	}

	out := make([]api.UTubSummary, 0, len(memberships))
	for _, m := range memberships {
		var utub models.UTub
		if err := h.db.First(&utub, m.UTubID).Error; err != nil {
			continue
		}
		out = append(out, api.UTubSummary{
			ID:          utub.ID,
			Name:        utub.Name,
			Description: utub.Description,
			Role:        string(m.Role),
			MemberCount: h.memberCount(utub.ID),
		})
	}

	c.JSON(http.StatusOK, out)
}

// Create creates a new UTub owned by the caller
// @Summary Create a UTub
// @Tags utubs
// @Accept json
// @Produce json
// @Param request body api.CreateUTubRequest true "UTub details"
// @Success 201 {object} api.UTub
// @Failure 400 {object} api.ErrorResponse "Validation error"
// @Security BearerAuth
// @Router /utubs [post]
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req api.CreateUTubRequest
	if !api.BindJSON(c, &req, "Unable to create UTub") {
		return
	}

	var utub models.UTub
	var owner models.UTubMember
	err := h.db.Transaction(func(tx *gorm.DB) error {
		utub = models.UTub{Name: req.Name, Description: req.Description, OwnerID: userID}
		if err := tx.Create(&utub).Error; err != nil {
			return err
		}
		owner = models.UTubMember{UTubID: utub.ID, UserID: userID, Role: models.MemberRoleOwner}
		return tx.Create(&owner).Error
	})
	if err != nil {
		api.Fail(c, http.StatusInternalServerError, "Failed to create UTub")
		return
	}

	snap, err := h.snapshot(utub, owner)
	if err != nil {
		api.Fail(c, http.StatusInternalServerError, "Failed to load UTub")
		return
	}
	c.JSON(http.StatusCreated, snap)
}

// Get returns the full snapshot of a UTub: URLs, tags and members
// @Summary Get a UTub
// @Tags utubs
// @Produce json
// @Param utubId path int true "UTub ID"
// @Success 200 {object} api.UTub
// @Failure 404 {object} api.ErrorResponse "UTub not found"
// @Security BearerAuth
// @Router /utubs/{utubId} [get]
func (h *Handler) Get(c *gin.Context) {
	m, ok := h.member(c)
	if !ok {
		return
	}

	var utub models.UTub
	if err := h.db.First(&utub, m.UTubID).Error; err != nil {
		api.Fail(c, http.StatusNotFound, "UTub not found")
		return
	}

	snap, err := h.snapshot(utub, m)
	if err != nil {
		api.Fail(c, http.StatusInternalServerError, "Failed to load UTub")
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Update renames or re-describes a UTub
// @Summary Update a UTub
// @Tags utubs
// @Accept json
// @Produce json
// @Param utubId path int true "UTub ID"
// @Param request body api.UpdateUTubRequest true "Fields to change"
// @Success 200 {object} api.UTubSummary
// @Failure 403 {object} api.ErrorResponse "Owner access required"
// @Security BearerAuth
// @Router /utubs/{utubId} [patch]
func (h *Handler) Update(c *gin.Context) {
	m, ok := h.member(c)
	if !ok {
		return
	}
	if !m.CanManage() {
		api.Fail(c, http.StatusForbidden, "Only the UTub owner can change the UTub")
		return
	}

	var req api.UpdateUTubRequest
	if !api.BindJSON(c, &req, "Unable to update UTub") {
		return
	}

	var utub models.UTub
	if err := h.db.First(&utub, m.UTubID).Error; err != nil {
		api.Fail(c, http.StatusNotFound, "UTub not found")
		return
	}
	if req.Name != nil {
		utub.Name = *req.Name
	}
	if req.Description != nil {
		utub.Description = *req.Description
	}
	if err := h.db.Save(&utub).Error; err != nil {
		api.Fail(c, http.StatusInternalServerError, "Failed to update UTub")
		return
	}

	c.JSON(http.StatusOK, api.UTubSummary{
		ID:          utub.ID,
		Name:        utub.Name,
		Description: utub.Description,
		Role:        string(m.Role),
		MemberCount: h.memberCount(utub.ID),
	})
}

// Delete deletes a UTub (owner only)
// @Summary Delete a UTub
// @Tags utubs
// @Produce json
// @Param utubId path int true "UTub ID"
// @Success 200 {object} map[string]string "UTub deleted"
// @Failure 403 {object} api.ErrorResponse "Owner access required"
// @Security BearerAuth
// @Router /utubs/{utubId} [delete]
func (h *Handler) Delete(c *gin.Context) {
	m, ok := h.member(c)
	if !ok {
		return
	}
	if m.Role != models.MemberRoleOwner {
		api.Fail(c, http.StatusForbidden, "Only the UTub owner can delete the UTub")
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("utub_id = ?", m.UTubID).Delete(&models.UTubMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.UTub{}, m.UTubID).Error
	})
	if err != nil {
		api.Fail(c, http.StatusInternalServerError, "Failed to delete UTub")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "Success", "message": "UTub deleted"})
}

// snapshot assembles the UTub as seen by viewer.
func (h *Handler) snapshot(utub models.UTub, viewer models.UTubMember) (api.UTub, error) {
	var urls []models.UTubURL
	if err := h.db.Preload("Tags").Where("utub_id = ?", utub.ID).Order("id").Find(&urls).Error; err != nil {
		return api.UTub{}, err
	}
	var tags []models.UTubTag
	if err := h.db.Where("utub_id = ?", utub.ID).Order("id").Find(&tags).Error; err != nil {
		return api.UTub{}, err
	}
	var members []models.UTubMember
	if err := h.db.Preload("User").Where("utub_id = ?", utub.ID).Order("id").Find(&members).Error; err != nil {
		return api.UTub{}, err
	}

	out := api.UTub{
		ID:              utub.ID,
		Name:            utub.Name,
		Description:     utub.Description,
		OwnerID:         utub.OwnerID,
		CurrentUserRole: string(viewer.Role),
		URLs:            make([]api.URL, 0, len(urls)),
		Tags:            make([]api.Tag, 0, len(tags)),
		Members:         make([]api.Member, 0, len(members)),
	}
	for _, u := range urls {
		out.URLs = append(out.URLs, u.ToAPI(viewer))
	}
	for _, t := range tags {
		out.Tags = append(out.Tags, t.ToAPI())
	}
	for _, m := range members {
		out.Members = append(out.Members, api.Member{
			ID:       m.UserID,
			Username: m.User.Username,
			IsOwner:  m.UserID == utub.OwnerID,
		})
	}
	return out, nil
}

// RegisterRoutes registers UTub routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/utubs", h.List)
	rg.POST("/utubs", h.Create)
	rg.GET("/utubs/:utubId", h.Get)
	rg.PATCH("/utubs/:utubId", h.Update)
	rg.DELETE("/utubs/:utubId", h.Delete)
	rg.POST("/utubs/:utubId/members", h.AddMember)
	rg.DELETE("/utubs/:utubId/members/:userId", h.RemoveMember)
}
