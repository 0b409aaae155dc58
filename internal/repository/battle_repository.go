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

// BattleRepositoryInterface définit les méthodes du repository bataille
type BattleRepositoryInterface interface {
	Create(battle *models.Battle) error
	GetByID(id uuid.UUID) (*models.Battle, error)
	GetForUpdate(tx *sqlx.Tx, id uuid.UUID) (*models.Battle, error)
	Update(battle *models.Battle) error
	UpdateTx(tx *sqlx.Tx, battle *models.Battle) error
	Delete(id uuid.UUID) error
	ListForUser(userID uuid.UUID) ([]*models.Battle, error)
	ListPendingReceived(userID uuid.UUID) ([]*models.Battle, error)
	GetActiveForUser(userID uuid.UUID) (*models.Battle, error)
	HasActiveHumanBattle(userID uuid.UUID) (bool, error)
	HasOpenBattleBetween(a, b uuid.UUID) (bool, error)
	DeleteExpiredPending(before time.Time) (int, error)
	ListFinishedIDs() ([]uuid.UUID, error)
	Beginx() (*sqlx.Tx, error)
}

// BattleRepository implémente l'interface BattleRepositoryInterface
type BattleRepository struct {
	db *sqlx.DB
}

// NewBattleRepository crée une nouvelle instance du repository bataille
func NewBattleRepository(db *sqlx.DB) BattleRepositoryInterface {
	return &BattleRepository{db: db}
}

// Beginx démarre une transaction; la ligne de bataille verrouillée par
// GetForUpdate sérialise les écritures concurrentes sur une même bataille
func (r *BattleRepository) Beginx() (*sqlx.Tx, error) {
	return r.db.Beginx()
}

type battleBlobs struct {
	hp                []byte
	momentum          []byte
	statStages        []byte
	customStatuses    []byte
	battleAttacks     []byte
	attacksUsed       []byte
	registeredScripts []byte
	eventLog          []byte
}

func marshalBattleBlobs(b *models.Battle) (*battleBlobs, error) {
	var blobs battleBlobs
	var err error
	if blobs.hp, err = json.Marshal(b.HP); err != nil {
		return nil, fmt.Errorf("failed to marshal hp: %w", err)
	}
	if blobs.momentum, err = json.Marshal(b.Momentum); err != nil {
		return nil, fmt.Errorf("failed to marshal momentum: %w", err)
	}
	if blobs.statStages, err = json.Marshal(b.StatStages); err != nil {
		return nil, fmt.Errorf("failed to marshal stat stages: %w", err)
	}
	if blobs.customStatuses, err = json.Marshal(b.CustomStatuses); err != nil {
		return nil, fmt.Errorf("failed to marshal custom statuses: %w", err)
	}
	if blobs.battleAttacks, err = json.Marshal(b.BattleAttacks); err != nil {
		return nil, fmt.Errorf("failed to marshal battle attacks: %w", err)
	}
	if blobs.attacksUsed, err = json.Marshal(b.AttacksUsed); err != nil {
		return nil, fmt.Errorf("failed to marshal attacks used: %w", err)
	}
	if blobs.registeredScripts, err = json.Marshal(b.RegisteredScripts); err != nil {
		return nil, fmt.Errorf("failed to marshal registered scripts: %w", err)
	}
	if blobs.eventLog, err = json.Marshal(b.EventLog); err != nil {
		return nil, fmt.Errorf("failed to marshal event log: %w", err)
	}
	return &blobs, nil
}

const battleSelect = `
	SELECT id, player1_id, player2_id, status, winner_id, player2_is_ai_controlled,
	       turn_number, whose_turn, hp, momentum, stat_stages, custom_statuses,
	       battle_attacks, attacks_used, registered_scripts, event_log,
	       created_at, updated_at
	FROM battles`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBattle(row rowScanner) (*models.Battle, error) {
	var b models.Battle
	var blobs battleBlobs
	err := row.Scan(
		&b.ID, &b.Player1ID, &b.Player2ID, &b.Status, &b.WinnerID,
		&b.Player2IsAIControlled, &b.TurnNumber, &b.WhoseTurn,
		&blobs.hp, &blobs.momentum, &blobs.statStages, &blobs.customStatuses,
		&blobs.battleAttacks, &blobs.attacksUsed, &blobs.registeredScripts,
		&blobs.eventLog, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan battle: %w", err)
	}

	for _, blob := range []struct {
		data []byte
		dst  interface{}
		name string
	}{
		{blobs.hp, &b.HP, "hp"},
		{blobs.momentum, &b.Momentum, "momentum"},
		{blobs.statStages, &b.StatStages, "stat_stages"},
		{blobs.customStatuses, &b.CustomStatuses, "custom_statuses"},
		{blobs.battleAttacks, &b.BattleAttacks, "battle_attacks"},
		{blobs.attacksUsed, &b.AttacksUsed, "attacks_used"},
		{blobs.registeredScripts, &b.RegisteredScripts, "registered_scripts"},
		{blobs.eventLog, &b.EventLog, "event_log"},
	} {
		if len(blob.data) == 0 {
			continue
		}
		if err := json.Unmarshal(blob.data, blob.dst); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", blob.name, err)
		}
	}
	return &b, nil
}

// Create insère une nouvelle bataille
func (r *BattleRepository) Create(battle *models.Battle) error {
	blobs, err := marshalBattleBlobs(battle)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO battles (
			id, player1_id, player2_id, status, winner_id, player2_is_ai_controlled,
			turn_number, whose_turn, hp, momentum, stat_stages, custom_statuses,
			battle_attacks, attacks_used, registered_scripts, event_log,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = r.db.Exec(query,
		battle.ID, battle.Player1ID, battle.Player2ID, battle.Status,
		battle.WinnerID, battle.Player2IsAIControlled, battle.TurnNumber,
		battle.WhoseTurn, blobs.hp, blobs.momentum, blobs.statStages,
		blobs.customStatuses, blobs.battleAttacks, blobs.attacksUsed,
		blobs.registeredScripts, blobs.eventLog,
		battle.CreatedAt, battle.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create battle: %w", err)
	}
	return nil
}

// GetByID récupère une bataille par son ID
func (r *BattleRepository) GetByID(id uuid.UUID) (*models.Battle, error) {
	return scanBattle(r.db.QueryRow(battleSelect+` WHERE id = $1`, id))
}

// GetForUpdate récupère une bataille avec un verrou de ligne (FOR UPDATE)
func (r *BattleRepository) GetForUpdate(tx *sqlx.Tx, id uuid.UUID) (*models.Battle, error) {
	return scanBattle(tx.QueryRow(battleSelect+` WHERE id = $1 FOR UPDATE`, id))
}

const battleUpdate = `
	UPDATE battles SET
		status = $2, winner_id = $3, turn_number = $4, whose_turn = $5,
		hp = $6, momentum = $7, stat_stages = $8, custom_statuses = $9,
		battle_attacks = $10, attacks_used = $11, registered_scripts = $12,
		event_log = $13, updated_at = $14
	WHERE id = $1`

// Update commit l'état complet de la bataille en un seul UPDATE
func (r *BattleRepository) Update(battle *models.Battle) error {
	blobs, err := marshalBattleBlobs(battle)
	if err != nil {
		return err
	}
	battle.UpdatedAt = time.Now().UTC()
	_, err = r.db.Exec(battleUpdate,
		battle.ID, battle.Status, battle.WinnerID, battle.TurnNumber,
		battle.WhoseTurn, blobs.hp, blobs.momentum, blobs.statStages,
		blobs.customStatuses, blobs.battleAttacks, blobs.attacksUsed,
		blobs.registeredScripts, blobs.eventLog, battle.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update battle: %w", err)
	}
	return nil
}

// UpdateTx commit l'état complet dans la transaction fournie
func (r *BattleRepository) UpdateTx(tx *sqlx.Tx, battle *models.Battle) error {
	blobs, err := marshalBattleBlobs(battle)
	if err != nil {
		return err
	}
	battle.UpdatedAt = time.Now().UTC()
	_, err = tx.Exec(battleUpdate,
		battle.ID, battle.Status, battle.WinnerID, battle.TurnNumber,
		battle.WhoseTurn, blobs.hp, blobs.momentum, blobs.statStages,
		blobs.customStatuses, blobs.battleAttacks, blobs.attacksUsed,
		blobs.registeredScripts, blobs.eventLog, battle.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update battle: %w", err)
	}
	return nil
}

// Delete supprime une bataille (annulation d'un défi en attente)
func (r *BattleRepository) Delete(id uuid.UUID) error {
	if _, err := r.db.Exec(`DELETE FROM battles WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete battle: %w", err)
	}
	return nil
}

// ListForUser retourne les batailles du joueur, les plus récentes en premier
func (r *BattleRepository) ListForUser(userID uuid.UUID) ([]*models.Battle, error) {
	query := battleSelect + ` WHERE player1_id = $1 OR player2_id = $1 ORDER BY updated_at DESC`
	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list battles: %w", err)
	}
	defer rows.Close()

	var battles []*models.Battle
	for rows.Next() {
		b, err := scanBattle(rows)
		if err != nil {
			return nil, err
		}
		battles = append(battles, b)
	}
	return battles, rows.Err()
}

// ListPendingReceived retourne les défis en attente reçus par le joueur,
// les plus récents en premier
func (r *BattleRepository) ListPendingReceived(userID uuid.UUID) ([]*models.Battle, error) {
	query := battleSelect + ` WHERE status = 'pending' AND player2_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending battles: %w", err)
	}
	defer rows.Close()

	var battles []*models.Battle
	for rows.Next() {
		b, err := scanBattle(rows)
		if err != nil {
			return nil, err
		}
		battles = append(battles, b)
	}
	return battles, rows.Err()
}

// GetActiveForUser retourne la bataille active du joueur, la plus récente
// si plusieurs (ne devrait pas arriver pour des batailles humaines)
func (r *BattleRepository) GetActiveForUser(userID uuid.UUID) (*models.Battle, error) {
	query := battleSelect + `
		WHERE status = 'active' AND (player1_id = $1 OR player2_id = $1)
		ORDER BY updated_at DESC LIMIT 1`
	return scanBattle(r.db.QueryRow(query, userID))
}

// HasOpenBattleBetween vérifie s'il existe déjà un défi en attente ou une
// bataille active entre les deux joueurs, dans un sens ou dans l'autre
func (r *BattleRepository) HasOpenBattleBetween(a, b uuid.UUID) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS(
			SELECT 1 FROM battles
			WHERE status IN ('pending', 'active')
			  AND ((player1_id = $1 AND player2_id = $2) OR (player1_id = $2 AND player2_id = $1))
		)`
	if err := r.db.Get(&exists, query, a, b); err != nil {
		return false, fmt.Errorf("failed to check open battles: %w", err)
	}
	return exists, nil
}

// HasActiveHumanBattle vérifie si le joueur a une bataille active contre un
// humain (les batailles contre un bot ne comptent pas)
func (r *BattleRepository) HasActiveHumanBattle(userID uuid.UUID) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS(
			SELECT 1 FROM battles
			WHERE status = 'active'
			  AND player2_is_ai_controlled = false
			  AND (player1_id = $1 OR player2_id = $1)
		)`
	if err := r.db.Get(&exists, query, userID); err != nil {
		return false, fmt.Errorf("failed to check active battles: %w", err)
	}
	return exists, nil
}

// DeleteExpiredPending supprime les défis en attente créés avant l'instant
// donné; idempotent, appelé opportunément lors des listages
func (r *BattleRepository) DeleteExpiredPending(before time.Time) (int, error) {
	res, err := r.db.Exec(`DELETE FROM battles WHERE status = 'pending' AND created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired pending battles: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ListFinishedIDs retourne les ids de toutes les batailles terminées,
// dans l'ordre de fin (recalcul administrateur)
func (r *BattleRepository) ListFinishedIDs() ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := `SELECT id FROM battles WHERE status = 'finished' ORDER BY updated_at`
	if err := r.db.Select(&ids, query); err != nil {
		return nil, fmt.Errorf("failed to list finished battles: %w", err)
	}
	return ids, nil
}
