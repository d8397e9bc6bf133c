package utubs

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/utubs/pkg/utubs/api"
	"github.com/mikepea/utubs/pkg/utubs/models"
)

// AddMember adds a user to a UTub by username (owner only)
func (h *Handler) AddMember(c *gin.Context) {
	m, ok := h.member(c)
	if !ok {
		return
	}
	if m.Role != models.MemberRoleOwner {
		api.Fail(c, http.StatusForbidden, "Only the UTub owner can add members")
		return
	}

	var req api.AddMemberRequest
	if !api.BindJSON(c, &req, "Unable to add member") {
		return
	}

	var target models.User
	if err := h.db.Where("username = ?", req.Username).First(&target).Error; err != nil {
		api.FailFields(c, "Unable to add member", map[string][]string{"username": {"User not found"}})
		return
	}

	if _, err := models.FindMembership(h.db, m.UTubID, target.ID); err == nil {
		c.JSON(http.StatusConflict, api.NewError("User is already a member", nil))
		return
	}

	membership := models.UTubMember{UTubID: m.UTubID, UserID: target.ID, Role: models.MemberRoleMember}
	if err := h.db.Create(&membership).Error; err != nil {
		api.Fail(c, http.StatusInternalServerError, "Failed to add member")
		return
	}

	c.JSON(http.StatusCreated, api.Member{ID: target.ID, Username: target.Username})
}

// RemoveMember removes a member. The owner removes others; members may only
// remove themselves. The owner cannot leave.
func (h *Handler) RemoveMember(c *gin.Context) {
	m, ok := h.member(c)
	if !ok {
		return
	}
	memberID, err := strconv.ParseUint(c.Param("userId"), 10, 32)
	if err != nil {
		api.Fail(c, http.StatusBadRequest, "Invalid user ID")
		return
	}

	switch {
	case uint(memberID) == m.UserID && m.Role == models.MemberRoleOwner:
		api.Fail(c, http.StatusBadRequest, "The UTub owner cannot leave the UTub")
		return
	case uint(memberID) != m.UserID && m.Role != models.MemberRoleOwner:
		api.Fail(c, http.StatusForbidden, "Only the UTub owner can remove members")
		return
	}

	result := h.db.Where("utub_id = ? AND user_id = ?", m.UTubID, memberID).Delete(&models.UTubMember{})
	if result.Error != nil {
		api.Fail(c, http.StatusInternalServerError, "Failed to remove member")
		return
	}
	if result.RowsAffected == 0 {
		api.Fail(c, http.StatusNotFound, "Member not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "Success", "message": "Member removed"})
}
