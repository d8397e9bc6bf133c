package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/utubs/pkg/utubs/api"
	"github.com/mikepea/utubs/pkg/utubs/models"
	"gorm.io/gorm"
)

// Handler handles authentication requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new auth handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

func userResponse(u models.User) api.User {
	return api.User{ID: u.ID, Username: u.Username, Email: u.Email}
}

// Register handles user registration
// @Summary Register a new user
// @Description Create a new user account and receive a JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body api.RegisterRequest true "Registration details"
// @Success 201 {object} api.AuthResponse
// @Failure 400 {object} api.ErrorResponse "Validation error"
// @Failure 409 {object} api.ErrorResponse "Username or email already registered"
// @Router /auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req api.RegisterRequest
	if !api.BindJSON(c, &req, "Unable to register user") {
		return
	}

	var existing models.User
	if err := h.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, api.NewError("Email already registered", map[string][]string{"email": {"Email already registered"}}))
		return
	}
	if err := h.db.Where("username = ?", req.Username).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, api.NewError("Username already taken", map[string][]string{"username": {"Username already taken"}}))
		return
	}

	hashedPassword, err := HashPassword(req.Password)
	if err != nil {
		api.Fail(c, http.StatusInternalServerError, "Failed to process password")
		return
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hashedPassword,
	}
	if err := h.db.Create(&user).Error; err != nil {
		api.Fail(c, http.StatusInternalServerError, "Failed to create user")
		return
	}

	token, err := GenerateToken(user.ID, user.Username)
	if err != nil {
		api.Fail(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	c.JSON(http.StatusCreated, api.AuthResponse{Token: token, User: userResponse(user)})
}

// Login handles user login
// @Summary Login
// @Description Authenticate with email and password to receive a JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body api.LoginRequest true "Login credentials"
// @Success 200 {object} api.AuthResponse
// @Failure 400 {object} api.ErrorResponse "Validation error"
// @Failure 401 {object} api.ErrorResponse "Invalid credentials"
// @Router /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req api.LoginRequest
	if !api.BindJSON(c, &req, "Unable to log in") {
		return
	}

	var user models.User
	if err := h.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		api.Fail(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if !CheckPassword(req.Password, user.PasswordHash) {
		api.Fail(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := GenerateToken(user.ID, user.Username)
	if err != nil {
		api.Fail(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	c.JSON(http.StatusOK, api.AuthResponse{Token: token, User: userResponse(user)})
}

// Me returns the current authenticated user
// @Summary Get current user
// @Tags auth
// @Produce json
// @Success 200 {object} api.User
// @Failure 401 {object} api.ErrorResponse "Authentication required"
// @Security BearerAuth
// @Router /auth/me [get]
func (h *Handler) Me(c *gin.Context) {
	userID, exists := GetUserID(c)
	if !exists {
		api.Fail(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		api.Fail(c, http.StatusNotFound, "User not found")
		return
	}

	c.JSON(http.StatusOK, userResponse(user))
}

// RegisterRoutes registers auth routes on the given router group. protect
// guards /me and defaults to AuthMiddleware.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, protect ...gin.HandlerFunc) {
	if len(protect) == 0 {
		protect = []gin.HandlerFunc{AuthMiddleware()}
	}
	rg.POST("/register", h.Register)
	rg.POST("/login", h.Login)
	rg.GET("/me", append(protect, h.Me)...)
}
