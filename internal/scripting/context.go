// internal/scripting/context.go
package scripting

import (
	"github.com/google/uuid"

	"battle/internal/models"
)

// PlayerInfo est l'instantané d'un participant utilisé par les scripts
// (stats de base figées au moment de l'exécution)
type PlayerInfo struct {
	ID      uuid.UUID
	Name    string
	MaxHP   int
	Attack  int
	Defense int
	Speed   int
}

// Context est la copie de travail de l'état de bataille exposée à un script.
// Un script qui échoue est jeté avec sa copie; seul un script qui termine
// avec StateChanged provoque une fusion dans l'état de bataille.
type Context struct {
	Players map[models.Role]PlayerInfo

	HP             map[models.Role]int
	Momentum       map[models.Role]int
	StatStages     map[models.Role]map[string]int
	CustomStatuses map[models.Role]map[string]models.StatusValue

	// Métadonnées du déclenchement en cours
	ActorRole            models.Role
	TargetRole           models.Role
	ContextRole          models.Role
	OriginalAttackerRole models.Role
	OriginalTargetRole   models.Role
	RegistrationID       uuid.UUID
	TurnNumber           int
	StartTurn            int
	TriggerWho           models.TriggerWho
	TriggerWhen          models.TriggerWhen
	TriggerDuration      models.TriggerDuration
	SourceAttack         *models.BattleAttack

	// Vue du registre pour les prédicats is_script_registered
	Registered []models.RegisteredScript

	// Produits de l'exécution
	Log          []models.LogEntry
	Unregistered []uuid.UUID
	StateChanged bool
}

// Clone retourne une copie profonde du contexte
func (c *Context) Clone() *Context {
	clone := *c

	clone.Players = make(map[models.Role]PlayerInfo, len(c.Players))
	for r, p := range c.Players {
		clone.Players[r] = p
	}

	clone.HP = cloneIntMap(c.HP)
	clone.Momentum = cloneIntMap(c.Momentum)

	clone.StatStages = make(map[models.Role]map[string]int, len(c.StatStages))
	for r, stages := range c.StatStages {
		inner := make(map[string]int, len(stages))
		for k, v := range stages {
			inner[k] = v
		}
		clone.StatStages[r] = inner
	}

	clone.CustomStatuses = make(map[models.Role]map[string]models.StatusValue, len(c.CustomStatuses))
	for r, statuses := range c.CustomStatuses {
		inner := make(map[string]models.StatusValue, len(statuses))
		for k, v := range statuses {
			inner[k] = v
		}
		clone.CustomStatuses[r] = inner
	}

	clone.Registered = append([]models.RegisteredScript(nil), c.Registered...)
	clone.Log = append([]models.LogEntry(nil), c.Log...)
	clone.Unregistered = append([]uuid.UUID(nil), c.Unregistered...)

	if c.SourceAttack != nil {
		attack := *c.SourceAttack
		attack.Scripts = append([]models.BattleScript(nil), c.SourceAttack.Scripts...)
		clone.SourceAttack = &attack
	}

	return &clone
}

func cloneIntMap(m map[models.Role]int) map[models.Role]int {
	out := make(map[models.Role]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// appendLog ajoute une entrée produite par le script en cours
func (c *Context) appendLog(source, text, effectType string, details map[string]interface{}) {
	entry := models.LogEntry{
		Source:     source,
		Text:       text,
		EffectType: effectType,
		Turn:       c.TurnNumber,
	}
	if len(details) > 0 {
		entry.EffectDetails = details
	}
	c.Log = append(c.Log, entry)
}

// unregister retire une inscription de la vue du registre; la suppression
// réelle est appliquée par le pipeline au commit du script
func (c *Context) unregister(registrationID uuid.UUID) bool {
	for i, rs := range c.Registered {
		if rs.RegistrationID == registrationID {
			c.Registered = append(c.Registered[:i], c.Registered[i+1:]...)
			c.Unregistered = append(c.Unregistered, registrationID)
			c.StateChanged = true
			return true
		}
	}
	return false
}
