package service

import (
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"battle/internal/models"
	"battle/internal/repository"
)

// ErrInvalidLeaderboardSort signale un critère de tri hors liste blanche
var ErrInvalidLeaderboardSort = errors.New("invalid leaderboard sort key")

// attackLeaderboardSorts est la liste blanche des critères de tri acceptés
var attackLeaderboardSorts = map[string]bool{
	"used":    true,
	"wins":    true,
	"damage":  true,
	"healing": true,
}

// AttackServiceInterface définit la consultation des attaques et de leurs stats
type AttackServiceInterface interface {
	List() ([]*models.Attack, error)
	Get(id uuid.UUID) (*models.Attack, error)
	GetWithStats(id uuid.UUID) (*models.AttackStatsView, error)
	Unlink(userID, attackID uuid.UUID) error
	Leaderboard(sort string, limit int) ([]*models.AttackLeaderboardEntry, error)
}

// AttackService implémente l'interface AttackServiceInterface
type AttackService struct {
	attacks repository.AttackRepositoryInterface
	stats   repository.StatsRepositoryInterface
	users   repository.UserRepositoryInterface
}

// NewAttackService crée un nouveau service de consultation des attaques
func NewAttackService(
	attacks repository.AttackRepositoryInterface,
	stats repository.StatsRepositoryInterface,
	users repository.UserRepositoryInterface,
) AttackServiceInterface {
	return &AttackService{attacks: attacks, stats: stats, users: users}
}

func (s *AttackService) List() ([]*models.Attack, error) {
	return s.attacks.List()
}

func (s *AttackService) Get(id uuid.UUID) (*models.Attack, error) {
	return s.attacks.GetByID(id)
}

// GetWithStats retourne une attaque et ses stats d'usage agrégées
func (s *AttackService) GetWithStats(id uuid.UUID) (*models.AttackStatsView, error) {
	attack, err := s.attacks.GetByID(id)
	if err != nil {
		return nil, err
	}
	stats, err := s.stats.GetByAttackID(id)
	if err != nil {
		return nil, err
	}
	return &models.AttackStatsView{Attack: attack, Stats: stats}, nil
}

// Unlink retire une attaque de la collection de l'appelant, loadout compris;
// l'entité attaque et ses stats d'usage survivent
func (s *AttackService) Unlink(userID, attackID uuid.UUID) error {
	if _, err := s.attacks.GetByID(attackID); err != nil {
		return err
	}
	if err := s.users.UnlearnAttack(userID, attackID); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":   userID,
		"attack_id": attackID,
	}).Debug("Attack unlinked from collection")
	return nil
}

// Leaderboard retourne le classement des attaques selon le critère demandé;
// un critère vide vaut "used"
func (s *AttackService) Leaderboard(sort string, limit int) ([]*models.AttackLeaderboardEntry, error) {
	if sort == "" {
		sort = "used"
	}
	if !attackLeaderboardSorts[sort] {
		return nil, ErrInvalidLeaderboardSort
	}
	return s.stats.Leaderboard(sort, limit)
}
