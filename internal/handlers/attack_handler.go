package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"battle/internal/middleware"
	"battle/internal/models"
	"battle/internal/service"
)

// AttackHandler gère la consultation et la génération d'attaques
type AttackHandler struct {
	attacks    service.AttackServiceInterface
	generation service.GenerationServiceInterface
}

// NewAttackHandler crée un nouveau handler d'attaques
func NewAttackHandler(
	attacks service.AttackServiceInterface,
	generation service.GenerationServiceInterface,
) *AttackHandler {
	return &AttackHandler{attacks: attacks, generation: generation}
}

// ListAttacks liste toutes les attaques existantes
func (h *AttackHandler) ListAttacks(c *gin.Context) {
	attacks, err := h.attacks.List()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"attacks": attacks})
}

// GetAttack retourne une attaque et ses stats d'usage
func (h *AttackHandler) GetAttack(c *gin.Context) {
	attackID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "Invalid attack ID")
		return
	}

	view, err := h.attacks.GetWithStats(attackID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// UnlinkAttack retire une attaque de la collection de l'appelant; l'entité
// attaque n'est pas supprimée
func (h *AttackHandler) UnlinkAttack(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	attackID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "Invalid attack ID")
		return
	}

	if err := h.attacks.Unlink(userID, attackID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Leaderboard retourne le classement des attaques
func (h *AttackHandler) Leaderboard(c *gin.Context) {
	sort := c.DefaultQuery("sort", "used")

	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	entries, err := h.attacks.Leaderboard(sort, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

// GenerateAttacks lance la génération LLM d'un booster d'attaques
func (h *AttackHandler) GenerateAttacks(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	var req models.GenerateAttacksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request format")
		return
	}

	resp, err := h.generation.Generate(c.Request.Context(), userID, &req)
	if err != nil {
		middleware.RecordAttackGeneration("failure")
		logrus.WithError(err).WithField("user_id", userID).Error("Attack generation failed")
		respondError(c, err)
		return
	}

	middleware.RecordAttackGeneration("success")
	c.JSON(http.StatusCreated, resp)
}
