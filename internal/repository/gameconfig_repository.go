package repository

import (
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"

	"battle/internal/models"
)

// GameConfigRepositoryInterface gère la ligne de configuration singleton
type GameConfigRepositoryInterface interface {
	Get() (*models.GameConfiguration, error)
	UpdateGenerationCost(cost int) error
}

// GameConfigRepository implémente l'interface avec un cache processus;
// la contrainte CHECK (id = 1) interdit toute seconde ligne
type GameConfigRepository struct {
	db *sqlx.DB

	mu     sync.RWMutex
	cached *models.GameConfiguration
}

// NewGameConfigRepository crée une nouvelle instance du repository de config
func NewGameConfigRepository(db *sqlx.DB) GameConfigRepositoryInterface {
	return &GameConfigRepository{db: db}
}

// Get retourne la configuration singleton (copie du cache si présent)
func (r *GameConfigRepository) Get() (*models.GameConfiguration, error) {
	r.mu.RLock()
	if r.cached != nil {
		cfg := *r.cached
		r.mu.RUnlock()
		return &cfg, nil
	}
	r.mu.RUnlock()

	var cfg models.GameConfiguration
	query := `SELECT id, attack_generation_cost, updated_at FROM game_configuration WHERE id = 1`
	if err := r.db.Get(&cfg, query); err != nil {
		return nil, fmt.Errorf("failed to get game configuration: %w", err)
	}

	r.mu.Lock()
	cached := cfg
	r.cached = &cached
	r.mu.Unlock()

	return &cfg, nil
}

// UpdateGenerationCost change le coût de génération et invalide le cache
func (r *GameConfigRepository) UpdateGenerationCost(cost int) error {
	if cost < 1 {
		return fmt.Errorf("attack generation cost must be >= 1, got %d", cost)
	}

	query := `UPDATE game_configuration SET attack_generation_cost = $1, updated_at = CURRENT_TIMESTAMP WHERE id = 1`
	if _, err := r.db.Exec(query, cost); err != nil {
		return fmt.Errorf("failed to update game configuration: %w", err)
	}

	r.mu.Lock()
	r.cached = nil
	r.mu.Unlock()
	return nil
}
