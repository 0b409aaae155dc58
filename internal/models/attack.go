// internal/models/attack.go
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TriggerWho identifie le joueur déclencheur, relativement à l'usage de l'attaque
type TriggerWho string

// TriggerWhen identifie le moment du déclenchement
type TriggerWhen string

// TriggerDuration identifie la durée de vie d'un script enregistré
type TriggerDuration string

const (
	TriggerWhoMe    TriggerWho = "ME"
	TriggerWhoEnemy TriggerWho = "ENEMY"
	TriggerWhoAny   TriggerWho = "ANY"

	TriggerWhenOnUse        TriggerWhen = "ON_USE"
	TriggerWhenBeforeTurn   TriggerWhen = "BEFORE_TURN"
	TriggerWhenAfterTurn    TriggerWhen = "AFTER_TURN"
	TriggerWhenBeforeAttack TriggerWhen = "BEFORE_ATTACK"
	TriggerWhenAfterAttack  TriggerWhen = "AFTER_ATTACK"

	TriggerDurationOnce       TriggerDuration = "ONCE"
	TriggerDurationPersistent TriggerDuration = "PERSISTENT"
)

// ValidTriggerWho vérifie la valeur du champ who
func ValidTriggerWho(w TriggerWho) bool {
	switch w {
	case TriggerWhoMe, TriggerWhoEnemy, TriggerWhoAny:
		return true
	}
	return false
}

// ValidTriggerWhen vérifie la valeur du champ when
func ValidTriggerWhen(w TriggerWhen) bool {
	switch w {
	case TriggerWhenOnUse, TriggerWhenBeforeTurn, TriggerWhenAfterTurn,
		TriggerWhenBeforeAttack, TriggerWhenAfterAttack:
		return true
	}
	return false
}

// ValidTriggerDuration vérifie la valeur du champ duration
func ValidTriggerDuration(d TriggerDuration) bool {
	switch d {
	case TriggerDurationOnce, TriggerDurationPersistent:
		return true
	}
	return false
}

// Attack représente une attaque apprise et jouable
type Attack struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Name         string     `json:"name" db:"name"`
	Description  string     `json:"description" db:"description"`
	Emoji        string     `json:"emoji" db:"emoji"`
	MomentumCost int        `json:"momentum_cost" db:"momentum_cost"`
	CreatorID    *uuid.UUID `json:"creator_id,omitempty" db:"creator_id"`
	Scripts      []*Script  `json:"scripts,omitempty" db:"-"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// Script représente un script Lua attaché à une attaque; Position fige
// l'ordre d'insertion au sein de l'attaque, l'exécution ON_USE le suit
type Script struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	AttackID           uuid.UUID       `json:"attack_id" db:"attack_id"`
	Name               string          `json:"name" db:"name"`
	LuaCode            string          `json:"lua_code" db:"lua_code"`
	TooltipDescription string          `json:"tooltip_description" db:"tooltip_description"`
	TriggerWho         TriggerWho      `json:"trigger_who" db:"trigger_who"`
	TriggerWhen        TriggerWhen     `json:"trigger_when" db:"trigger_when"`
	TriggerDuration    TriggerDuration `json:"trigger_duration" db:"trigger_duration"`
	Position           int             `json:"position" db:"position"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
}

// StampScriptPositions numérote les scripts dans l'ordre de la liste; les
// horodatages partagés d'une même insertion ne suffisent pas à ordonner
func (a *Attack) StampScriptPositions() {
	for i, s := range a.Scripts {
		s.Position = i
	}
}

// Normalize force l'invariant ON_USE => (ME, ONCE)
func (s *Script) Normalize() {
	if s.TriggerWhen == TriggerWhenOnUse {
		s.TriggerWho = TriggerWhoMe
		s.TriggerDuration = TriggerDurationOnce
	}
}

// Validate vérifie le triplet de déclenchement
func (s *Script) Validate() error {
	if !ValidTriggerWho(s.TriggerWho) {
		return fmt.Errorf("invalid trigger_who: %q", s.TriggerWho)
	}
	if !ValidTriggerWhen(s.TriggerWhen) {
		return fmt.Errorf("invalid trigger_when: %q", s.TriggerWhen)
	}
	if !ValidTriggerDuration(s.TriggerDuration) {
		return fmt.Errorf("invalid trigger_duration: %q", s.TriggerDuration)
	}
	if s.TriggerWhen == TriggerWhenOnUse &&
		(s.TriggerWho != TriggerWhoMe || s.TriggerDuration != TriggerDurationOnce) {
		return fmt.Errorf("ON_USE scripts must be (ME, ONCE)")
	}
	return nil
}

// AttackUsageStats agrège l'utilisation d'une attaque sur toutes les batailles
type AttackUsageStats struct {
	AttackID         uuid.UUID      `json:"attack_id" db:"attack_id"`
	TimesUsed        int            `json:"times_used" db:"times_used"`
	WinsVsHuman      int            `json:"wins_vs_human" db:"wins_vs_human"`
	LossesVsHuman    int            `json:"losses_vs_human" db:"losses_vs_human"`
	WinsVsBot        int            `json:"wins_vs_bot" db:"wins_vs_bot"`
	LossesVsBot      int            `json:"losses_vs_bot" db:"losses_vs_bot"`
	TotalDamageDealt int64          `json:"total_damage_dealt" db:"total_damage_dealt"`
	TotalHealingDone int64          `json:"total_healing_done" db:"total_healing_done"`
	CoUsedWithCounts map[string]int `json:"co_used_with_counts" db:"-"`
}

// GameConfiguration est la configuration singleton stockée en base
type GameConfiguration struct {
	ID                   int       `json:"-" db:"id"`
	AttackGenerationCost int       `json:"attack_generation_cost" db:"attack_generation_cost"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}
