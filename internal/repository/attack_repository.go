package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"battle/internal/models"
)

// AttackRepositoryInterface définit les méthodes du repository attaque
type AttackRepositoryInterface interface {
	CreateTx(tx *sqlx.Tx, attack *models.Attack) error
	GetByID(id uuid.UUID) (*models.Attack, error)
	GetByIDs(ids []uuid.UUID) ([]*models.Attack, error)
	List() ([]*models.Attack, error)
	NameExists(name string) (bool, error)
	Beginx() (*sqlx.Tx, error)
}

// AttackRepository implémente l'interface AttackRepositoryInterface
type AttackRepository struct {
	db *sqlx.DB
}

// NewAttackRepository crée une nouvelle instance du repository attaque
func NewAttackRepository(db *sqlx.DB) AttackRepositoryInterface {
	return &AttackRepository{db: db}
}

// Beginx démarre une transaction (création attaque + scripts + stats liées)
func (r *AttackRepository) Beginx() (*sqlx.Tx, error) {
	return r.db.Beginx()
}

// CreateTx insère une attaque et ses scripts dans la transaction fournie
func (r *AttackRepository) CreateTx(tx *sqlx.Tx, attack *models.Attack) error {
	now := time.Now().UTC()
	if attack.ID == uuid.Nil {
		attack.ID = uuid.New()
	}
	attack.CreatedAt = now
	attack.UpdatedAt = now

	query := `
		INSERT INTO attacks (id, name, description, emoji, momentum_cost, creator_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := tx.Exec(query,
		attack.ID, attack.Name, attack.Description, attack.Emoji,
		attack.MomentumCost, attack.CreatorID, attack.CreatedAt, attack.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create attack: %w", err)
	}

	attack.StampScriptPositions()
	for _, script := range attack.Scripts {
		if script.ID == uuid.Nil {
			script.ID = uuid.New()
		}
		script.AttackID = attack.ID
		script.CreatedAt = now
		script.Normalize()

		_, err := tx.Exec(`
			INSERT INTO scripts (id, attack_id, name, lua_code, tooltip_description,
				trigger_who, trigger_when, trigger_duration, position, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			script.ID, script.AttackID, script.Name, script.LuaCode,
			script.TooltipDescription, script.TriggerWho, script.TriggerWhen,
			script.TriggerDuration, script.Position, script.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create script: %w", err)
		}
	}

	// Ligne de stats d'usage créée avec l'attaque
	_, err = tx.Exec(`INSERT INTO attack_usage_stats (attack_id) VALUES ($1) ON CONFLICT DO NOTHING`, attack.ID)
	if err != nil {
		return fmt.Errorf("failed to create usage stats row: %w", err)
	}

	return nil
}

const attackColumns = `id, name, description, emoji, momentum_cost, creator_id, created_at, updated_at`

// GetByID récupère une attaque et ses scripts
func (r *AttackRepository) GetByID(id uuid.UUID) (*models.Attack, error) {
	var a models.Attack
	query := `SELECT ` + attackColumns + ` FROM attacks WHERE id = $1`
	if err := r.db.Get(&a, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get attack: %w", err)
	}

	scripts, err := r.loadScripts([]uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	a.Scripts = scripts[id]
	return &a, nil
}

// GetByIDs récupère plusieurs attaques avec leurs scripts, dans l'ordre des
// ids fournis (les ids inconnus sont ignorés)
func (r *AttackRepository) GetByIDs(ids []uuid.UUID) ([]*models.Attack, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var attacks []*models.Attack
	query := `SELECT ` + attackColumns + ` FROM attacks WHERE id = ANY($1)`
	if err := r.db.Select(&attacks, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to get attacks: %w", err)
	}

	scripts, err := r.loadScripts(ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*models.Attack, len(attacks))
	for _, a := range attacks {
		a.Scripts = scripts[a.ID]
		byID[a.ID] = a
	}

	ordered := make([]*models.Attack, 0, len(ids))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			ordered = append(ordered, a)
		}
	}
	return ordered, nil
}

// List retourne toutes les attaques (sans scripts), les plus récentes en premier
func (r *AttackRepository) List() ([]*models.Attack, error) {
	var attacks []*models.Attack
	query := `SELECT ` + attackColumns + ` FROM attacks ORDER BY created_at DESC`
	if err := r.db.Select(&attacks, query); err != nil {
		return nil, fmt.Errorf("failed to list attacks: %w", err)
	}
	return attacks, nil
}

// NameExists vérifie l'unicité d'un nom d'attaque
func (r *AttackRepository) NameExists(name string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM attacks WHERE name = $1)`
	if err := r.db.Get(&exists, query, name); err != nil {
		return false, fmt.Errorf("failed to check attack name: %w", err)
	}
	return exists, nil
}

func (r *AttackRepository) loadScripts(attackIDs []uuid.UUID) (map[uuid.UUID][]*models.Script, error) {
	var scripts []*models.Script
	query := `
		SELECT id, attack_id, name, lua_code, tooltip_description,
		       trigger_who, trigger_when, trigger_duration, position, created_at
		FROM scripts WHERE attack_id = ANY($1) ORDER BY attack_id, position`
	if err := r.db.Select(&scripts, query, pq.Array(attackIDs)); err != nil {
		return nil, fmt.Errorf("failed to load scripts: %w", err)
	}

	byAttack := make(map[uuid.UUID][]*models.Script)
	for _, s := range scripts {
		byAttack[s.AttackID] = append(byAttack[s.AttackID], s)
	}
	return byAttack, nil
}
