// Package apikeys issues long-lived keys for the command line client and
// authenticates requests carrying them.
package apikeys

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/utubs/pkg/utubs/api"
	"github.com/mikepea/utubs/pkg/utubs/auth"
	"github.com/mikepea/utubs/pkg/utubs/models"
	"gorm.io/gorm"
)

const (
	// KeyLength is the length of the generated key in bytes (64 hex chars)
	KeyLength = 32
	// KeyPrefixLength is how much of the key is kept for identification
	KeyPrefixLength = 8
)

// Handler handles API key requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new API keys handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

func generateKey() (string, error) {
	b := make([]byte, KeyLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func toAPI(k models.APIKey) api.APIKey {
	return api.APIKey{
		ID:          k.ID,
		KeyPrefix:   k.KeyPrefix,
		Description: k.Description,
		LastUsedAt:  k.LastUsedAt,
		CreatedAt:   k.CreatedAt,
	}
}

// Create issues a new API key for the caller
// @Summary Create an API key
// @Tags apikeys
// @Accept json
// @Produce json
// @Param request body api.CreateAPIKeyRequest false "Key description"
// @Success 201 {object} api.NewAPIKey
// @Security BearerAuth
// @Router /api-keys [post]
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req api.CreateAPIKeyRequest
	if c.Request.ContentLength > 0 && !api.BindJSON(c, &req, "Unable to create API key") {
		return
	}

	key, err := generateKey()
	if err != nil {
		api.Fail(c, http.StatusInternalServerError, "Failed to generate API key")
		return
	}

	record := models.APIKey{
		UserID:      userID,
		KeyHash:     hashKey(key),
		KeyPrefix:   key[:KeyPrefixLength],
		Description: req.Description,
	}
	if err := h.db.Create(&record).Error; err != nil {
		api.Fail(c, http.StatusInternalServerError, "Failed to create API key")
		return
	}

	c.JSON(http.StatusCreated, api.NewAPIKey{APIKey: toAPI(record), Key: key})
}

// List returns the caller's API keys
// @Summary List API keys
// @Tags apikeys
// @Produce json
// @Success 200 {array} api.APIKey
// @Security BearerAuth
// @Router /api-keys [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var keys []models.APIKey
	if err := h.db.Where("user_id = ?", userID).Order("id").Find(&keys).Error; err != nil {
		api.Fail(c, http.StatusInternalServerError, "Failed to fetch API keys")
		return
	}

	out := make([]api.APIKey, len(keys))
	for i, k := range keys {
		out[i] = toAPI(k)
	}
	c.JSON(http.StatusOK, out)
}

// Delete revokes one of the caller's API keys
// @Summary Delete an API key
// @Tags apikeys
// @Produce json
// @Param id path int true "API key ID"
// @Success 200 {object} map[string]string "API key deleted"
// @Failure 404 {object} api.ErrorResponse "API key not found"
// @Security BearerAuth
// @Router /api-keys/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	keyID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		api.Fail(c, http.StatusBadRequest, "Invalid API key ID")
		return
	}

	var key models.APIKey
	if err := h.db.Where("id = ? AND user_id = ?", keyID, userID).First(&key).Error; err != nil {
		api.Fail(c, http.StatusNotFound, "API key not found")
		return
	}
	if err := h.db.Delete(&key).Error; err != nil {
		api.Fail(c, http.StatusInternalServerError, "Failed to delete API key")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "Success", "message": "API key deleted"})
}

// Lookup returns the live key matching key.
func Lookup(db *gorm.DB, key string) (models.APIKey, error) {
	var k models.APIKey
	err := db.Preload("User").Where("key_hash = ?", hashKey(key)).First(&k).Error
	return k, err
}

// CombinedAuthMiddleware accepts either a JWT or an API key as the bearer
// token. JWTs contain dots, API keys are bare hex.
func CombinedAuthMiddleware(db *gorm.DB) gin.HandlerFunc {
	jwtAuth := auth.AuthMiddleware()
	return func(c *gin.Context) {
		parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || strings.Contains(parts[1], ".") {
			jwtAuth(c)
			return
		}

		key, err := Lookup(db, parts[1])
		if err != nil {
			api.Fail(c, http.StatusUnauthorized, "Invalid API key")
			return
		}
		db.Model(&key).Update("last_used_at", time.Now())

		c.Set(auth.ContextKeyUserID, key.UserID)
		c.Set(auth.ContextKeyUsername, key.User.Username)
		c.Next()
	}
}

// RegisterRoutes registers API key routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/api-keys", h.Create)
	rg.GET("/api-keys", h.List)
	rg.DELETE("/api-keys/:id", h.Delete)
}
