package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"battle/internal/models"
)

// StatsRepositoryInterface définit les méthodes du repository de stats d'usage
type StatsRepositoryInterface interface {
	GetByAttackID(attackID uuid.UUID) (*models.AttackUsageStats, error)
	GetByAttackIDTx(tx *sqlx.Tx, attackID uuid.UUID) (*models.AttackUsageStats, error)
	UpsertTx(tx *sqlx.Tx, stats *models.AttackUsageStats) error
	ResetAllTx(tx *sqlx.Tx) error
	Leaderboard(sort string, limit int) ([]*models.AttackLeaderboardEntry, error)
	Beginx() (*sqlx.Tx, error)
}

// StatsRepository implémente l'interface StatsRepositoryInterface
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository crée une nouvelle instance du repository de stats
func NewStatsRepository(db *sqlx.DB) StatsRepositoryInterface {
	return &StatsRepository{db: db}
}

// Beginx démarre la transaction d'agrégation
func (r *StatsRepository) Beginx() (*sqlx.Tx, error) {
	return r.db.Beginx()
}

const statsSelect = `
	SELECT attack_id, times_used, wins_vs_human, losses_vs_human,
	       wins_vs_bot, losses_vs_bot, total_damage_dealt,
	       total_healing_done, co_used_with_counts
	FROM attack_usage_stats`

func scanStats(row rowScanner) (*models.AttackUsageStats, error) {
	var s models.AttackUsageStats
	var coUsedJSON []byte
	err := row.Scan(
		&s.AttackID, &s.TimesUsed, &s.WinsVsHuman, &s.LossesVsHuman,
		&s.WinsVsBot, &s.LossesVsBot, &s.TotalDamageDealt,
		&s.TotalHealingDone, &coUsedJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan usage stats: %w", err)
	}
	s.CoUsedWithCounts = make(map[string]int)
	if len(coUsedJSON) > 0 {
		if err := json.Unmarshal(coUsedJSON, &s.CoUsedWithCounts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal co_used_with_counts: %w", err)
		}
	}
	return &s, nil
}

// GetByAttackID récupère les stats d'usage d'une attaque
func (r *StatsRepository) GetByAttackID(attackID uuid.UUID) (*models.AttackUsageStats, error) {
	return scanStats(r.db.QueryRow(statsSelect+` WHERE attack_id = $1`, attackID))
}

// GetByAttackIDTx récupère les stats dans la transaction d'agrégation
func (r *StatsRepository) GetByAttackIDTx(tx *sqlx.Tx, attackID uuid.UUID) (*models.AttackUsageStats, error) {
	return scanStats(tx.QueryRow(statsSelect+` WHERE attack_id = $1`, attackID))
}

// UpsertTx écrit l'état complet des stats d'une attaque
func (r *StatsRepository) UpsertTx(tx *sqlx.Tx, stats *models.AttackUsageStats) error {
	coUsedJSON, err := json.Marshal(stats.CoUsedWithCounts)
	if err != nil {
		return fmt.Errorf("failed to marshal co_used_with_counts: %w", err)
	}

	query := `
		INSERT INTO attack_usage_stats (
			attack_id, times_used, wins_vs_human, losses_vs_human,
			wins_vs_bot, losses_vs_bot, total_damage_dealt,
			total_healing_done, co_used_with_counts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (attack_id) DO UPDATE SET
			times_used = EXCLUDED.times_used,
			wins_vs_human = EXCLUDED.wins_vs_human,
			losses_vs_human = EXCLUDED.losses_vs_human,
			wins_vs_bot = EXCLUDED.wins_vs_bot,
			losses_vs_bot = EXCLUDED.losses_vs_bot,
			total_damage_dealt = EXCLUDED.total_damage_dealt,
			total_healing_done = EXCLUDED.total_healing_done,
			co_used_with_counts = EXCLUDED.co_used_with_counts`

	_, err = tx.Exec(query,
		stats.AttackID, stats.TimesUsed, stats.WinsVsHuman, stats.LossesVsHuman,
		stats.WinsVsBot, stats.LossesVsBot, stats.TotalDamageDealt,
		stats.TotalHealingDone, coUsedJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert usage stats: %w", err)
	}
	return nil
}

// attackLeaderboardOrders borne l'ORDER BY du classement aux expressions
// autorisées; la clé est validée en amont par le service
var attackLeaderboardOrders = map[string]string{
	"used":    "s.times_used",
	"wins":    "s.wins_vs_human + s.wins_vs_bot",
	"damage":  "s.total_damage_dealt",
	"healing": "s.total_healing_done",
}

// Leaderboard classe les attaques selon le critère demandé
func (r *StatsRepository) Leaderboard(sort string, limit int) ([]*models.AttackLeaderboardEntry, error) {
	order, ok := attackLeaderboardOrders[sort]
	if !ok {
		order = attackLeaderboardOrders["used"]
	}

	query := `
		SELECT a.id, a.name, a.emoji, s.times_used,
		       s.wins_vs_human + s.wins_vs_bot AS total_wins,
		       s.losses_vs_human + s.losses_vs_bot AS total_losses,
		       s.total_damage_dealt, s.total_healing_done
		FROM attack_usage_stats s
		JOIN attacks a ON a.id = s.attack_id
		ORDER BY ` + order + ` DESC, a.name
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query attack leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []*models.AttackLeaderboardEntry
	rank := 0
	for rows.Next() {
		var e models.AttackLeaderboardEntry
		if err := rows.Scan(
			&e.AttackID, &e.Name, &e.Emoji, &e.TimesUsed,
			&e.TotalWins, &e.TotalLosses,
			&e.TotalDamageDealt, &e.TotalHealingDone,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attack leaderboard row: %w", err)
		}
		rank++
		e.Rank = rank
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// ResetAllTx remet toutes les stats d'usage à zéro (recalcul administrateur)
func (r *StatsRepository) ResetAllTx(tx *sqlx.Tx) error {
	query := `
		UPDATE attack_usage_stats SET
			times_used = 0, wins_vs_human = 0, losses_vs_human = 0,
			wins_vs_bot = 0, losses_vs_bot = 0, total_damage_dealt = 0,
			total_healing_done = 0, co_used_with_counts = '{}'`
	if _, err := tx.Exec(query); err != nil {
		return fmt.Errorf("failed to reset usage stats: %w", err)
	}
	return nil
}
