package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"battle/internal/repository"
	"battle/internal/service"
)

// respondError traduit les erreurs sentinelles des services en statuts HTTP
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrNotParticipant),
		errors.Is(err, service.ErrNotChallengeTarget),
		errors.Is(err, service.ErrNotChallengeInitiator),
		errors.Is(err, service.ErrBotChallengesDenied):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrUsernameTaken),
		errors.Is(err, service.ErrStatSumViolation),
		errors.Is(err, service.ErrTooManySelected),
		errors.Is(err, service.ErrAttackNotLearned),
		errors.Is(err, service.ErrSelfChallenge),
		errors.Is(err, service.ErrDuplicateChallenge),
		errors.Is(err, service.ErrChallengerBusy),
		errors.Is(err, service.ErrTargetBusy),
		errors.Is(err, service.ErrBattleNotPending),
		errors.Is(err, service.ErrBattleNotActive),
		errors.Is(err, service.ErrNotYourTurn),
		errors.Is(err, service.ErrAttackNotInLoadout),
		errors.Is(err, service.ErrInsufficientCredits),
		errors.Is(err, service.ErrConceptTooLong),
		errors.Is(err, service.ErrTooManyFavorites),
		errors.Is(err, service.ErrFavoriteNotOwned),
		errors.Is(err, service.ErrNoValidAttacks),
		errors.Is(err, service.ErrInvalidLeaderboardSort):
		status = http.StatusBadRequest
	}

	c.JSON(status, gin.H{
		"error":      err.Error(),
		"request_id": c.GetHeader("X-Request-ID"),
	})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":      message,
		"request_id": c.GetHeader("X-Request-ID"),
	})
}

func respondUnauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"error":      "User not authenticated",
		"request_id": c.GetHeader("X-Request-ID"),
	})
}
