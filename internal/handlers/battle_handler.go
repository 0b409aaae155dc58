package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"battle/internal/middleware"
	"battle/internal/models"
	"battle/internal/service"
)

// BattleHandler gère le cycle de vie des batailles
type BattleHandler struct {
	battles service.BattleServiceInterface
}

// NewBattleHandler crée un nouveau handler de batailles
func NewBattleHandler(battles service.BattleServiceInterface) *BattleHandler {
	return &BattleHandler{battles: battles}
}

// Initiate lance un défi contre un adversaire
func (h *BattleHandler) Initiate(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	var req models.InitiateBattleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request format")
		return
	}

	battle, err := h.battles.Initiate(userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.RecordBattleEvent("initiated")

	view, err := h.battles.BuildView(battle, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

// Accept accepte un défi en attente
func (h *BattleHandler) Accept(c *gin.Context) {
	h.lifecycle(c, "accepted", h.battles.Accept)
}

// Decline refuse un défi en attente
func (h *BattleHandler) Decline(c *gin.Context) {
	h.lifecycle(c, "declined", h.battles.Decline)
}

// Concede abandonne une bataille active
func (h *BattleHandler) Concede(c *gin.Context) {
	h.lifecycle(c, "conceded", h.battles.Concede)
}

// lifecycle factorise accept/decline/concede: même signature, même réponse
func (h *BattleHandler) lifecycle(c *gin.Context, event string, op func(userID, battleID uuid.UUID) (*models.Battle, error)) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	battleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "Invalid battle ID")
		return
	}

	battle, err := op(userID, battleID)
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.RecordBattleEvent(event)

	view, err := h.battles.BuildView(battle, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// Cancel annule un défi en attente lancé par l'appelant
func (h *BattleHandler) Cancel(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	battleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "Invalid battle ID")
		return
	}

	if err := h.battles.Cancel(userID, battleID); err != nil {
		respondError(c, err)
		return
	}

	middleware.RecordBattleEvent("cancelled")
	c.JSON(http.StatusOK, gin.H{"message": "Challenge cancelled"})
}

// UseAttack joue une attaque pendant le tour de l'appelant
func (h *BattleHandler) UseAttack(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	battleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "Invalid battle ID")
		return
	}

	var req models.UseAttackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request format")
		return
	}

	battle, err := h.battles.UseAttack(userID, battleID, req.AttackID)
	if err != nil {
		middleware.RecordBattleAction("failure")
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id":   userID,
			"battle_id": battleID,
			"attack_id": req.AttackID,
		}).Warn("Battle action rejected")
		respondError(c, err)
		return
	}

	middleware.RecordBattleAction("success")

	view, err := h.battles.BuildView(battle, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// GetBattle retourne la vue d'une bataille pour l'appelant
func (h *BattleHandler) GetBattle(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	battleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "Invalid battle ID")
		return
	}

	battle, err := h.battles.GetBattle(userID, battleID)
	if err != nil {
		respondError(c, err)
		return
	}

	view, err := h.battles.BuildView(battle, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// GetActiveBattle retourne la bataille active de l'appelant, 404 sinon
func (h *BattleHandler) GetActiveBattle(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	battle, err := h.battles.GetActiveBattle(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	view, err := h.battles.BuildView(battle, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"battle": view})
}

// ListRequests liste les défis en attente reçus par l'appelant
func (h *BattleHandler) ListRequests(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	battles, err := h.battles.ListPendingRequests(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	summaries := make([]*models.BattleSummary, 0, len(battles))
	for _, battle := range battles {
		summary, err := h.battles.BuildSummary(battle)
		if err != nil {
			respondError(c, err)
			return
		}
		summaries = append(summaries, summary)
	}

	c.JSON(http.StatusOK, gin.H{"battles": summaries})
}

// ListBattles liste les batailles de l'appelant
func (h *BattleHandler) ListBattles(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	battles, err := h.battles.ListBattles(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	summaries := make([]*models.BattleSummary, 0, len(battles))
	for _, battle := range battles {
		summary, err := h.battles.BuildSummary(battle)
		if err != nil {
			respondError(c, err)
			return
		}
		summaries = append(summaries, summary)
	}

	c.JSON(http.StatusOK, gin.H{"battles": summaries})
}
