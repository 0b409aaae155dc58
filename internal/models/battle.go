// internal/models/battle.go
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role identifie un camp dans une bataille
type Role string

const (
	RolePlayer1 Role = "player1"
	RolePlayer2 Role = "player2"
)

// Other retourne le camp opposé
func (r Role) Other() Role {
	if r == RolePlayer1 {
		return RolePlayer2
	}
	return RolePlayer1
}

// Valid vérifie que le rôle est player1 ou player2
func (r Role) Valid() bool {
	return r == RolePlayer1 || r == RolePlayer2
}

// Statuts d'une bataille
const (
	BattleStatusPending  = "pending"
	BattleStatusActive   = "active"
	BattleStatusFinished = "finished"
	BattleStatusDeclined = "declined"
)

// StatusValue est une valeur de statut custom typée (number, bool ou string)
type StatusValue struct {
	Kind   string  `json:"kind"`
	Number float64 `json:"-"`
	Bool   bool    `json:"-"`
	Str    string  `json:"-"`
}

const (
	StatusKindNumber = "number"
	StatusKindBool   = "bool"
	StatusKindString = "string"
)

// NumberStatus construit une valeur numérique
func NumberStatus(n float64) StatusValue {
	return StatusValue{Kind: StatusKindNumber, Number: n}
}

// BoolStatus construit une valeur booléenne
func BoolStatus(b bool) StatusValue {
	return StatusValue{Kind: StatusKindBool, Bool: b}
}

// StringStatus construit une valeur chaîne
func StringStatus(s string) StatusValue {
	return StatusValue{Kind: StatusKindString, Str: s}
}

// Interface retourne la valeur sous-jacente non typée
func (v StatusValue) Interface() interface{} {
	switch v.Kind {
	case StatusKindNumber:
		return v.Number
	case StatusKindBool:
		return v.Bool
	default:
		return v.Str
	}
}

// MarshalJSON sérialise la variante taguée
func (v StatusValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case StatusKindNumber:
		return json.Marshal(map[string]interface{}{"kind": v.Kind, "value": v.Number})
	case StatusKindBool:
		return json.Marshal(map[string]interface{}{"kind": v.Kind, "value": v.Bool})
	case StatusKindString:
		return json.Marshal(map[string]interface{}{"kind": v.Kind, "value": v.Str})
	}
	return nil, fmt.Errorf("unknown status value kind: %q", v.Kind)
}

// UnmarshalJSON désérialise la variante taguée
func (v *StatusValue) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind  string          `json:"kind"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v.Kind = raw.Kind
	switch raw.Kind {
	case StatusKindNumber:
		return json.Unmarshal(raw.Value, &v.Number)
	case StatusKindBool:
		return json.Unmarshal(raw.Value, &v.Bool)
	case StatusKindString:
		return json.Unmarshal(raw.Value, &v.Str)
	}
	return fmt.Errorf("unknown status value kind: %q", raw.Kind)
}

// BattleScript est la copie figée d'un script au début de la bataille
type BattleScript struct {
	ID                 uuid.UUID       `json:"id"`
	Name               string          `json:"name"`
	LuaCode            string          `json:"lua_code"`
	TooltipDescription string          `json:"tooltip_description"`
	TriggerWho         TriggerWho      `json:"trigger_who"`
	TriggerWhen        TriggerWhen     `json:"trigger_when"`
	TriggerDuration    TriggerDuration `json:"trigger_duration"`
}

// BattleAttack est la copie figée d'une attaque du loadout au début de la
// bataille; les modifications ultérieures de l'attaque n'affectent pas les
// batailles en cours
type BattleAttack struct {
	ID           uuid.UUID      `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Emoji        string         `json:"emoji"`
	MomentumCost int            `json:"momentum_cost"`
	Scripts      []BattleScript `json:"scripts"`
}

// SnapshotAttack fige une attaque et ses scripts pour le stockage en bataille
func SnapshotAttack(a *Attack) BattleAttack {
	ba := BattleAttack{
		ID:           a.ID,
		Name:         a.Name,
		Description:  a.Description,
		Emoji:        a.Emoji,
		MomentumCost: a.MomentumCost,
		Scripts:      make([]BattleScript, 0, len(a.Scripts)),
	}
	for _, s := range a.Scripts {
		ba.Scripts = append(ba.Scripts, BattleScript{
			ID:                 s.ID,
			Name:               s.Name,
			LuaCode:            s.LuaCode,
			TooltipDescription: s.TooltipDescription,
			TriggerWho:         s.TriggerWho,
			TriggerWhen:        s.TriggerWhen,
			TriggerDuration:    s.TriggerDuration,
		})
	}
	return ba
}

// RegisteredScript est une inscription active dans le registre de triggers
type RegisteredScript struct {
	RegistrationID       uuid.UUID       `json:"registration_id"`
	ScriptID             uuid.UUID       `json:"script_id"`
	SourceAttackID       uuid.UUID       `json:"source_attack_id"`
	TriggerWho           TriggerWho      `json:"trigger_who"`
	TriggerWhen          TriggerWhen     `json:"trigger_when"`
	TriggerDuration      TriggerDuration `json:"trigger_duration"`
	OriginalAttackerRole Role            `json:"original_attacker_role"`
	OriginalTargetRole   Role            `json:"original_target_role"`
	StartTurn            int             `json:"start_turn"`
}

// Sources d'une entrée de journal
const (
	LogSourceSystem  = "system"
	LogSourceScript  = "script"
	LogSourceDebug   = "debug"
	LogSourcePlayer1 = "player1"
	LogSourcePlayer2 = "player2"
)

// Types d'effet d'une entrée de journal
const (
	EffectAction       = "action"
	EffectDamage       = "damage"
	EffectHeal         = "heal"
	EffectStatChange   = "stat_change"
	EffectStatusApply  = "status_apply"
	EffectStatusRemove = "status_remove"
	EffectStatusEffect = "status_effect"
	EffectInfo         = "info"
	EffectDebug        = "debug"
	EffectError        = "error"
	EffectFaint        = "faint"
	EffectMomentum     = "momentum"
	EffectTurnChange   = "turnchange"
)

// LogEntry est une entrée append-only du journal d'événements d'une bataille
type LogEntry struct {
	Source        string                 `json:"source"`
	Text          string                 `json:"text"`
	EffectType    string                 `json:"effect_type"`
	EffectDetails map[string]interface{} `json:"effect_details,omitempty"`
	Turn          int                    `json:"turn"`
	Timestamp     time.Time              `json:"timestamp"`
}

// Battle est l'agrégat racine d'une bataille; tout l'état mutable vit dans
// une seule ligne (blobs JSONB) et se commit en un seul UPDATE
type Battle struct {
	ID                    uuid.UUID  `json:"id" db:"id"`
	Player1ID             uuid.UUID  `json:"player1_id" db:"player1_id"`
	Player2ID             uuid.UUID  `json:"player2_id" db:"player2_id"`
	Status                string     `json:"status" db:"status"`
	WinnerID              *uuid.UUID `json:"winner_id,omitempty" db:"winner_id"`
	Player2IsAIControlled bool       `json:"player2_is_ai_controlled" db:"player2_is_ai_controlled"`
	TurnNumber            int        `json:"turn_number" db:"turn_number"`
	WhoseTurn             Role       `json:"whose_turn" db:"whose_turn"`

	HP               map[Role]int                    `json:"hp" db:"-"`
	Momentum         map[Role]int                    `json:"momentum" db:"-"`
	StatStages       map[Role]map[string]int         `json:"stat_stages" db:"-"`
	CustomStatuses   map[Role]map[string]StatusValue `json:"custom_statuses" db:"-"`
	BattleAttacks    map[Role][]BattleAttack         `json:"battle_attacks" db:"-"`
	AttacksUsed      map[Role][]uuid.UUID            `json:"attacks_used" db:"-"`
	RegisteredScripts []RegisteredScript             `json:"registered_scripts" db:"-"`
	EventLog         []LogEntry                      `json:"event_log" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RoleOf retourne le rôle du joueur dans la bataille
func (b *Battle) RoleOf(userID uuid.UUID) (Role, bool) {
	switch userID {
	case b.Player1ID:
		return RolePlayer1, true
	case b.Player2ID:
		return RolePlayer2, true
	}
	return "", false
}

// PlayerID retourne l'id du joueur occupant le rôle
func (b *Battle) PlayerID(r Role) uuid.UUID {
	if r == RolePlayer1 {
		return b.Player1ID
	}
	return b.Player2ID
}

// IsParticipant vérifie que l'utilisateur fait partie de la bataille
func (b *Battle) IsParticipant(userID uuid.UUID) bool {
	_, ok := b.RoleOf(userID)
	return ok
}

// FindBattleAttack retrouve une attaque figée du loadout d'un rôle
func (b *Battle) FindBattleAttack(r Role, attackID uuid.UUID) (*BattleAttack, bool) {
	for i := range b.BattleAttacks[r] {
		if b.BattleAttacks[r][i].ID == attackID {
			return &b.BattleAttacks[r][i], true
		}
	}
	return nil, false
}

// MarkAttackUsed ajoute l'attaque à l'ensemble des attaques utilisées du rôle
func (b *Battle) MarkAttackUsed(r Role, attackID uuid.UUID) {
	for _, id := range b.AttacksUsed[r] {
		if id == attackID {
			return
		}
	}
	if b.AttacksUsed == nil {
		b.AttacksUsed = make(map[Role][]uuid.UUID)
	}
	b.AttacksUsed[r] = append(b.AttacksUsed[r], attackID)
}

// AppendLog ajoute une entrée au journal d'événements
func (b *Battle) AppendLog(e LogEntry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Turn == 0 {
		e.Turn = b.TurnNumber
	}
	b.EventLog = append(b.EventLog, e)
}
