package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aethra/farmops/internal/auth"
	"github.com/aethra/farmops/internal/errors"
	"github.com/aethra/farmops/internal/models"
)

type loginRequest struct {
	Email    string    `json:"email" binding:"required,email"`
	Password string    `json:"password" binding:"required"`
	FarmID   uuid.UUID `json:"farm_id" binding:"required"`
}

// Login authenticates a user against one of their farms
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, errors.NewBadRequestError(err.Error()))
		return
	}

	var user models.User
	if err := h.db.Preload("Roles").First(&user, "email = ? AND is_active = ?", req.Email, true).Error; err != nil {
		respondErr(c, errors.NewUnauthorizedError("invalid credentials"))
		return
	}
	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		respondErr(c, errors.NewUnauthorizedError("invalid credentials"))
		return
	}

	member, err := h.perms.MemberOf(user.ID, req.FarmID)
	if err != nil {
		respondErr(c, errors.NewInternalError(err))
		return
	}
	if !member {
		respondErr(c, errors.NewPermissionDeniedError("login", "farm"))
		return
	}

	roles := make([]string, 0, len(user.Roles))
	for _, r := range user.Roles {
		roles = append(roles, r.Code)
	}

	pair, err := h.jwt.GenerateTokenPair(user.ID, req.FarmID, user.Email, roles)
	if err != nil {
		respondErr(c, errors.NewInternalError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"tokens": pair, "user": user})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh exchanges a refresh token for a new token pair
func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, errors.NewBadRequestError(err.Error()))
		return
	}

	claims, err := h.jwt.ValidateToken(req.RefreshToken)
	if err != nil {
		respondErr(c, errors.NewUnauthorizedError("invalid refresh token"))
		return
	}

	var user models.User
	if err := h.db.Preload("Roles").First(&user, "id = ?", claims.UserID).Error; err != nil {
		respondErr(c, errors.NewUnauthorizedError("unknown user"))
		return
	}
	roles := make([]string, 0, len(user.Roles))
	for _, r := range user.Roles {
		roles = append(roles, r.Code)
	}

	pair, err := h.jwt.RefreshAccessToken(req.RefreshToken, user.Email, roles)
	if err != nil {
		respondErr(c, errors.NewUnauthorizedError("invalid refresh token"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": pair})
}

// Me returns the authenticated user's identity and permissions
func (h *Handler) Me(c *gin.Context) {
	actor := actorFrom(c)
	var user models.User
	if err := h.db.Preload("Roles").First(&user, "id = ?", actor.UserID).Error; err != nil {
		respondErr(c, errors.NewNotFoundError("user"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":        user,
		"farm_id":     actor.FarmID,
		"permissions": actor.Permissions,
	})
}
