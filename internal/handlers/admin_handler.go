package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"battle/internal/repository"
	"battle/internal/service"
)

// AdminHandler regroupe les opérations réservées aux administrateurs
type AdminHandler struct {
	stats      service.StatsServiceInterface
	gameConfig repository.GameConfigRepositoryInterface
}

// NewAdminHandler crée un nouveau handler d'administration
func NewAdminHandler(
	stats service.StatsServiceInterface,
	gameConfig repository.GameConfigRepositoryInterface,
) *AdminHandler {
	return &AdminHandler{stats: stats, gameConfig: gameConfig}
}

// RecalculateStats remet à zéro et rejoue toutes les stats d'attaques
func (h *AdminHandler) RecalculateStats(c *gin.Context) {
	resp, err := h.stats.RecalculateAll()
	if err != nil {
		logrus.WithError(err).Error("Stats recalculation failed")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetGameConfiguration retourne la configuration de jeu persistée
func (h *AdminHandler) GetGameConfiguration(c *gin.Context) {
	cfg, err := h.gameConfig.Get()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, cfg)
}

// UpdateGenerationCost ajuste le coût en crédits d'une génération
func (h *AdminHandler) UpdateGenerationCost(c *gin.Context) {
	var req struct {
		AttackGenerationCost int `json:"attack_generation_cost" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request format")
		return
	}

	if err := h.gameConfig.UpdateGenerationCost(req.AttackGenerationCost); err != nil {
		respondError(c, err)
		return
	}

	cfg, err := h.gameConfig.Get()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, cfg)
}
