package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"battle/internal/models"
)

// ErrNotFound est retourné quand l'entité demandée n'existe pas
var ErrNotFound = errors.New("not found")

// UserRepositoryInterface définit les méthodes du repository utilisateur
type UserRepositoryInterface interface {
	Create(user *models.User) error
	GetByID(id uuid.UUID) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
	Update(user *models.User) error
	UpdateBaseStats(id uuid.UUID, hp, attack, defense, speed int) error
	UpdateProfile(id uuid.UUID, allowBotChallenges *bool, profilePrompt *string) error
	TouchLastSeen(id uuid.UUID) error
	AdjustCredits(id uuid.UUID, delta int) error
	AdjustCreditsTx(tx *sqlx.Tx, id uuid.UUID, delta int) error
	UpdateUserStatsTx(tx *sqlx.Tx, id uuid.UUID, stats models.UserStats) error
	List(excludeID uuid.UUID) ([]*models.User, error)

	LearnAttack(userID, attackID uuid.UUID) error
	LearnAttackTx(tx *sqlx.Tx, userID, attackID uuid.UUID) error
	UnlearnAttack(userID, attackID uuid.UUID) error
	GetLearnedAttackIDs(userID uuid.UUID) ([]uuid.UUID, error)
	SetSelectedAttacks(userID uuid.UUID, attackIDs []uuid.UUID) error
	GetSelectedAttackIDs(userID uuid.UUID) ([]uuid.UUID, error)

	Leaderboard(limit int) ([]*models.LeaderboardEntry, error)
}

// UserRepository implémente l'interface UserRepositoryInterface
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository crée une nouvelle instance du repository utilisateur
func NewUserRepository(db *sqlx.DB) UserRepositoryInterface {
	return &UserRepository{db: db}
}

const userColumns = `
	id, username, email, password_hash, role, hp, attack, defense, speed,
	credits, allow_bot_challenges, profile_prompt, stats,
	last_seen, created_at, updated_at`

// Create crée un nouvel utilisateur
func (r *UserRepository) Create(user *models.User) error {
	statsJSON, err := json.Marshal(user.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal user stats: %w", err)
	}

	query := `
		INSERT INTO users (
			id, username, email, password_hash, role, hp, attack, defense, speed,
			credits, allow_bot_challenges, profile_prompt, stats,
			last_seen, created_at, updated_at
		) VALUES (
			:id, :username, :email, :password_hash, :role, :hp, :attack, :defense, :speed,
			:credits, :allow_bot_challenges, :profile_prompt, :stats,
			:last_seen, :created_at, :updated_at
		)`

	data := map[string]interface{}{
		"id":                   user.ID,
		"username":             user.Username,
		"email":                user.Email,
		"password_hash":        user.PasswordHash,
		"role":                 user.Role,
		"hp":                   user.HP,
		"attack":               user.Attack,
		"defense":              user.Defense,
		"speed":                user.Speed,
		"credits":              user.Credits,
		"allow_bot_challenges": user.AllowBotChallenges,
		"profile_prompt":       user.ProfilePrompt,
		"stats":                statsJSON,
		"last_seen":            user.LastSeen,
		"created_at":           user.CreatedAt,
		"updated_at":           user.UpdatedAt,
	}

	if _, err := r.db.NamedExec(query, data); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepository) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var statsJSON []byte
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role,
		&u.HP, &u.Attack, &u.Defense, &u.Speed,
		&u.Credits, &u.AllowBotChallenges, &u.ProfilePrompt, &statsJSON,
		&u.LastSeen, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	if len(statsJSON) > 0 {
		if err := json.Unmarshal(statsJSON, &u.Stats); err != nil {
			return nil, fmt.Errorf("failed to unmarshal user stats: %w", err)
		}
	}
	return &u, nil
}

// GetByID récupère un utilisateur par son ID
func (r *UserRepository) GetByID(id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.db.QueryRow(query, id))
}

// GetByUsername récupère un utilisateur par son pseudonyme
func (r *UserRepository) GetByUsername(username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.scanUser(r.db.QueryRow(query, username))
}

// Update met à jour l'ensemble des champs mutables d'un utilisateur
func (r *UserRepository) Update(user *models.User) error {
	statsJSON, err := json.Marshal(user.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal user stats: %w", err)
	}

	query := `
		UPDATE users SET
			email = :email, password_hash = :password_hash, role = :role,
			hp = :hp, attack = :attack, defense = :defense, speed = :speed,
			credits = :credits, allow_bot_challenges = :allow_bot_challenges,
			profile_prompt = :profile_prompt, stats = :stats,
			last_seen = :last_seen, updated_at = :updated_at
		WHERE id = :id`

	data := map[string]interface{}{
		"id":                   user.ID,
		"email":                user.Email,
		"password_hash":        user.PasswordHash,
		"role":                 user.Role,
		"hp":                   user.HP,
		"attack":               user.Attack,
		"defense":              user.Defense,
		"speed":                user.Speed,
		"credits":              user.Credits,
		"allow_bot_challenges": user.AllowBotChallenges,
		"profile_prompt":       user.ProfilePrompt,
		"stats":                statsJSON,
		"last_seen":            user.LastSeen,
		"updated_at":           time.Now().UTC(),
	}

	if _, err := r.db.NamedExec(query, data); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// UpdateBaseStats réalloue les stats de base d'un utilisateur
func (r *UserRepository) UpdateBaseStats(id uuid.UUID, hp, attack, defense, speed int) error {
	query := `
		UPDATE users SET hp = $2, attack = $3, defense = $4, speed = $5,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1`
	if _, err := r.db.Exec(query, id, hp, attack, defense, speed); err != nil {
		return fmt.Errorf("failed to update base stats: %w", err)
	}
	return nil
}

// UpdateProfile met à jour les champs de profil fournis
func (r *UserRepository) UpdateProfile(id uuid.UUID, allowBotChallenges *bool, profilePrompt *string) error {
	query := `
		UPDATE users SET
			allow_bot_challenges = COALESCE($2, allow_bot_challenges),
			profile_prompt = COALESCE($3, profile_prompt),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1`
	if _, err := r.db.Exec(query, id, allowBotChallenges, profilePrompt); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

// TouchLastSeen met à jour l'horodatage de dernière activité
func (r *UserRepository) TouchLastSeen(id uuid.UUID) error {
	query := `UPDATE users SET last_seen = CURRENT_TIMESTAMP WHERE id = $1`
	if _, err := r.db.Exec(query, id); err != nil {
		return fmt.Errorf("failed to touch last_seen: %w", err)
	}
	return nil
}

// AdjustCredits ajoute (ou retire) des crédits; échoue si le solde passerait
// sous zéro grâce à la contrainte CHECK
func (r *UserRepository) AdjustCredits(id uuid.UUID, delta int) error {
	query := `UPDATE users SET credits = credits + $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	if _, err := r.db.Exec(query, id, delta); err != nil {
		return fmt.Errorf("failed to adjust credits: %w", err)
	}
	return nil
}

// AdjustCreditsTx ajuste les crédits dans une transaction en cours
func (r *UserRepository) AdjustCreditsTx(tx *sqlx.Tx, id uuid.UUID, delta int) error {
	query := `UPDATE users SET credits = credits + $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	if _, err := tx.Exec(query, id, delta); err != nil {
		return fmt.Errorf("failed to adjust credits: %w", err)
	}
	return nil
}

// UpdateUserStatsTx remplace le blob de stats agrégées d'un utilisateur
func (r *UserRepository) UpdateUserStatsTx(tx *sqlx.Tx, id uuid.UUID, stats models.UserStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal user stats: %w", err)
	}
	query := `UPDATE users SET stats = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	if _, err := tx.Exec(query, id, statsJSON); err != nil {
		return fmt.Errorf("failed to update user stats: %w", err)
	}
	return nil
}

// List retourne tous les utilisateurs sauf l'appelant, les plus récemment
// actifs en premier
func (r *UserRepository) List(excludeID uuid.UUID) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id != $1 ORDER BY last_seen DESC`

	rows, err := r.db.Query(query, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var u models.User
		var statsJSON []byte
		if err := rows.Scan(
			&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role,
			&u.HP, &u.Attack, &u.Defense, &u.Speed,
			&u.Credits, &u.AllowBotChallenges, &u.ProfilePrompt, &statsJSON,
			&u.LastSeen, &u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if len(statsJSON) > 0 {
			if err := json.Unmarshal(statsJSON, &u.Stats); err != nil {
				return nil, fmt.Errorf("failed to unmarshal user stats: %w", err)
			}
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// LearnAttack associe une attaque apprise à un utilisateur (idempotent)
func (r *UserRepository) LearnAttack(userID, attackID uuid.UUID) error {
	query := `
		INSERT INTO user_attacks (user_id, attack_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, attack_id) DO NOTHING`
	if _, err := r.db.Exec(query, userID, attackID); err != nil {
		return fmt.Errorf("failed to learn attack: %w", err)
	}
	return nil
}

// LearnAttackTx associe une attaque apprise dans une transaction en cours
func (r *UserRepository) LearnAttackTx(tx *sqlx.Tx, userID, attackID uuid.UUID) error {
	query := `
		INSERT INTO user_attacks (user_id, attack_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, attack_id) DO NOTHING`
	if _, err := tx.Exec(query, userID, attackID); err != nil {
		return fmt.Errorf("failed to learn attack: %w", err)
	}
	return nil
}

// UnlearnAttack retire une attaque de la collection d'un utilisateur,
// loadout compris; l'attaque elle-même n'est pas supprimée (idempotent)
func (r *UserRepository) UnlearnAttack(userID, attackID uuid.UUID) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM user_selected_attacks WHERE user_id = $1 AND attack_id = $2`,
		userID, attackID,
	); err != nil {
		return fmt.Errorf("failed to deselect attack: %w", err)
	}
	if _, err := tx.Exec(
		`DELETE FROM user_attacks WHERE user_id = $1 AND attack_id = $2`,
		userID, attackID,
	); err != nil {
		return fmt.Errorf("failed to unlearn attack: %w", err)
	}

	return tx.Commit()
}

// GetLearnedAttackIDs retourne les ids des attaques apprises
func (r *UserRepository) GetLearnedAttackIDs(userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := `SELECT attack_id FROM user_attacks WHERE user_id = $1 ORDER BY learned_at`
	if err := r.db.Select(&ids, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get learned attacks: %w", err)
	}
	return ids, nil
}

// SetSelectedAttacks remplace le loadout sélectionné (ordre préservé)
func (r *UserRepository) SetSelectedAttacks(userID uuid.UUID, attackIDs []uuid.UUID) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM user_selected_attacks WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to clear selected attacks: %w", err)
	}
	for i, attackID := range attackIDs {
		_, err := tx.Exec(
			`INSERT INTO user_selected_attacks (user_id, attack_id, position) VALUES ($1, $2, $3)`,
			userID, attackID, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert selected attack: %w", err)
		}
	}

	return tx.Commit()
}

// GetSelectedAttackIDs retourne le loadout sélectionné dans l'ordre
func (r *UserRepository) GetSelectedAttackIDs(userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := `SELECT attack_id FROM user_selected_attacks WHERE user_id = $1 ORDER BY position`
	if err := r.db.Select(&ids, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get selected attacks: %w", err)
	}
	return ids, nil
}

// Leaderboard classe les joueurs par victoires puis dégâts totaux
func (r *UserRepository) Leaderboard(limit int) ([]*models.LeaderboardEntry, error) {
	query := `
		SELECT id, username, stats
		FROM users
		ORDER BY
			COALESCE((stats->>'wins_vs_human')::int, 0) + COALESCE((stats->>'wins_vs_bot')::int, 0) DESC,
			COALESCE((stats->>'total_damage_dealt')::bigint, 0) DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []*models.LeaderboardEntry
	rank := 0
	for rows.Next() {
		var id uuid.UUID
		var username string
		var statsJSON []byte
		if err := rows.Scan(&id, &username, &statsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		var stats models.UserStats
		if len(statsJSON) > 0 {
			if err := json.Unmarshal(statsJSON, &stats); err != nil {
				return nil, fmt.Errorf("failed to unmarshal user stats: %w", err)
			}
		}
		rank++
		entries = append(entries, &models.LeaderboardEntry{
			Rank:             rank,
			UserID:           id,
			Username:         username,
			TotalWins:        stats.WinsVsHuman + stats.WinsVsBot,
			TotalLosses:      stats.LossesVsHuman + stats.LossesVsBot,
			TotalDamageDealt: stats.TotalDamageDealt,
		})
	}
	return entries, rows.Err()
}
