package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"battle/internal/middleware"
	"battle/internal/models"
	"battle/internal/service"
)

// UserHandler gère le profil, les stats de base et le loadout
type UserHandler struct {
	users service.UserServiceInterface
}

// NewUserHandler crée un nouveau handler utilisateur
func NewUserHandler(users service.UserServiceInterface) *UserHandler {
	return &UserHandler{users: users}
}

// GetMe retourne le profil de l'appelant
func (h *UserHandler) GetMe(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	user, err := h.users.GetUser(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// ListUsers liste les adversaires potentiels
func (h *UserHandler) ListUsers(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	opponents, err := h.users.ListOpponents(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": opponents})
}

// GetStats retourne les stats de base de l'appelant
func (h *UserHandler) GetStats(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	user, err := h.users.GetUser(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"hp":      user.HP,
		"attack":  user.Attack,
		"defense": user.Defense,
		"speed":   user.Speed,
	})
}

// UpdateStats réalloue les points de stats de base
func (h *UserHandler) UpdateStats(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	var req models.UpdateStatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request format")
		return
	}

	user, err := h.users.UpdateBaseStats(userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// UpdateProfile met à jour allow_bot_challenges et le prompt de profil
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request format")
		return
	}

	user, err := h.users.UpdateProfile(userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// GetMyAttacks liste les attaques apprises de l'appelant
func (h *UserHandler) GetMyAttacks(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	attacks, err := h.users.GetLearnedAttacks(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"attacks": attacks})
}

// GetSelectedAttacks retourne le loadout courant
func (h *UserHandler) GetSelectedAttacks(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	attacks, err := h.users.GetSelectedAttacks(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"attacks": attacks})
}

// SelectAttacks remplace le loadout par défaut
func (h *UserHandler) SelectAttacks(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	var req models.SelectAttacksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request format")
		return
	}

	if err := h.users.SelectAttacks(userID, req.AttackIDs); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Loadout updated"})
}

// Leaderboard retourne le classement des joueurs
func (h *UserHandler) Leaderboard(c *gin.Context) {
	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	entries, err := h.users.Leaderboard(limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}
