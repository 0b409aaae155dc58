// internal/scripting/registry.go
package scripting

import (
	"github.com/google/uuid"

	"battle/internal/models"
)

// Registry est la vue mutable des scripts enregistrés d'une bataille pendant
// l'exécution d'une action. Les sélections se font en ordre d'insertion; une
// désinscription est immédiatement visible pour les scripts suivants de la
// même phase; les scripts ONCE exécutés avec succès sont balayés en fin de
// phase.
type Registry struct {
	scripts  []models.RegisteredScript
	consumed map[uuid.UUID]bool
}

// NewRegistry construit un registre à partir de la liste persistée
func NewRegistry(scripts []models.RegisteredScript) *Registry {
	return &Registry{
		scripts:  append([]models.RegisteredScript(nil), scripts...),
		consumed: make(map[uuid.UUID]bool),
	}
}

// Snapshot retourne la liste courante (pour persistance ou vue script)
func (r *Registry) Snapshot() []models.RegisteredScript {
	return append([]models.RegisteredScript(nil), r.scripts...)
}

// Add inscrit un nouveau script en fin de liste
func (r *Registry) Add(rs models.RegisteredScript) {
	r.scripts = append(r.scripts, rs)
}

// Contains vérifie qu'une inscription est toujours vivante
func (r *Registry) Contains(id uuid.UUID) bool {
	for _, rs := range r.scripts {
		if rs.RegistrationID == id {
			return true
		}
	}
	return false
}

// Remove retire une inscription par son id
func (r *Registry) Remove(id uuid.UUID) bool {
	for i, rs := range r.scripts {
		if rs.RegistrationID == id {
			r.scripts = append(r.scripts[:i], r.scripts[i+1:]...)
			delete(r.consumed, id)
			return true
		}
	}
	return false
}

// Match sélectionne en ordre d'insertion les inscriptions déclenchées pour
// la phase et le rôle acteur donnés
func (r *Registry) Match(phase models.TriggerWhen, actor models.Role) []models.RegisteredScript {
	var selected []models.RegisteredScript
	for _, rs := range r.scripts {
		if rs.TriggerWhen != phase {
			continue
		}
		switch rs.TriggerWho {
		case models.TriggerWhoMe:
			if actor != rs.OriginalAttackerRole {
				continue
			}
		case models.TriggerWhoEnemy:
			if actor != rs.OriginalTargetRole {
				continue
			}
		case models.TriggerWhoAny:
			// tout rôle acteur
		default:
			continue
		}
		selected = append(selected, rs)
	}
	return selected
}

// MarkConsumed note qu'une inscription ONCE a été exécutée avec succès;
// elle reste visible jusqu'à la fin de la phase
func (r *Registry) MarkConsumed(id uuid.UUID) {
	r.consumed[id] = true
}

// SweepConsumed retire les inscriptions ONCE consommées (fin de phase)
func (r *Registry) SweepConsumed() {
	if len(r.consumed) == 0 {
		return
	}
	kept := r.scripts[:0]
	for _, rs := range r.scripts {
		if !r.consumed[rs.RegistrationID] {
			kept = append(kept, rs)
		}
	}
	r.scripts = kept
	r.consumed = make(map[uuid.UUID]bool)
}
