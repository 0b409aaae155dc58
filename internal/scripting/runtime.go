// internal/scripting/runtime.go
package scripting

import (
	"errors"
	"fmt"
	"time"

	"github.com/Shopify/go-lua"
	"github.com/google/uuid"

	"battle/internal/constants"
	"battle/internal/models"
)

const (
	maxStatStage = constants.MaxStatStage
	minStatStage = constants.MinStatStage

	// Délai accordé au script au-delà du budget avant d'abandonner l'état
	watchdogGrace = 50 * time.Millisecond
)

// ErrScriptTimeout signale qu'un script a dépassé son budget temps; son
// état de travail est abandonné et aucun effet n'est fusionné
var ErrScriptTimeout = errors.New("script_timeout")

// Calculator est la surface du calculateur de combat utilisée par l'API Lua
type Calculator interface {
	ModifiedStat(base, stage int) int
	CalculateDamage(power, attackerAttack, defenderDefense int) int
}

// Runtime exécute les scripts Lua dans un bac à sable avec budgets.
// Un état Lua neuf est créé par exécution; rien n'est partagé entre scripts.
type Runtime struct {
	calc            Calculator
	wallClockBudget time.Duration
	stepBudget      int
}

// NewRuntime crée un nouveau runtime de scripts
func NewRuntime(calc Calculator, wallClockBudget time.Duration, stepBudget int) *Runtime {
	return &Runtime{
		calc:            calc,
		wallClockBudget: wallClockBudget,
		stepBudget:      stepBudget,
	}
}

// Globals qui donneraient accès au système ou au chargement dynamique
var forbiddenGlobals = []string{
	"dofile", "loadfile", "load", "loadstring", "require",
	"os", "io", "package", "coroutine", "debug", "print",
}

func (r *Runtime) openSandbox(l *lua.State) {
	lua.OpenLibraries(l)
	for _, name := range forbiddenGlobals {
		l.PushNil()
		l.SetGlobal(name)
	}
}

func (r *Runtime) injectGlobals(l *lua.State, ctx *Context) {
	setString := func(name, value string) {
		l.PushString(value)
		l.SetGlobal(name)
	}
	setInt := func(name string, value int) {
		l.PushInteger(value)
		l.SetGlobal(name)
	}

	setString("ME_ROLE", string(ctx.OriginalAttackerRole))
	setString("ENEMY_ROLE", string(ctx.OriginalTargetRole))
	setString("CURRENT_ACTOR_ROLE", string(ctx.ActorRole))
	setString("CURRENT_TARGET_ROLE", string(ctx.TargetRole))
	setString("CONTEXT_ROLE", string(ctx.ContextRole))
	setString("ORIGINAL_ATTACKER_ROLE", string(ctx.OriginalAttackerRole))
	setString("ORIGINAL_TARGET_ROLE", string(ctx.OriginalTargetRole))
	setString("CURRENT_TRIGGER_WHO", string(ctx.TriggerWho))
	setString("CURRENT_TRIGGER_WHEN", string(ctx.TriggerWhen))
	setString("CURRENT_TRIGGER_DURATION", string(ctx.TriggerDuration))
	setInt("CURRENT_TURN", ctx.TurnNumber)
	setInt("SCRIPT_START_TURN", ctx.StartTurn)
	setInt("P1_HP", ctx.HP[models.RolePlayer1])
	setInt("P2_HP", ctx.HP[models.RolePlayer2])

	if ctx.RegistrationID != uuid.Nil {
		setString("CURRENT_REGISTRATION_ID", ctx.RegistrationID.String())
	} else {
		l.PushNil()
		l.SetGlobal("CURRENT_REGISTRATION_ID")
	}
}

// Execute exécute un script sur une copie du contexte fourni. En cas de
// succès la copie (logs, changements, désinscriptions) est retournée; en
// cas d'erreur ou de dépassement de budget elle est jetée.
func (r *Runtime) Execute(code string, ctx *Context) (*Context, error) {
	working := ctx.Clone()

	deadline := time.Now().Add(r.wallClockBudget)
	steps := 0
	checkpoint := func(l *lua.State) {
		steps++
		if steps > r.stepBudget {
			lua.Errorf(l, "script step budget exceeded")
		}
		if time.Now().After(deadline) {
			lua.Errorf(l, "script_timeout")
		}
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fmt.Errorf("script panic: %v", p)
			}
		}()

		l := lua.NewState()
		r.openSandbox(l)
		r.registerAPI(l, working, checkpoint)
		r.injectGlobals(l, working)

		if err := lua.LoadString(l, code); err != nil {
			done <- fmt.Errorf("script load error: %w", err)
			return
		}
		done <- l.ProtectedCall(0, 0, 0)
	}()

	// Le garde-fou abandonne l'état si le script ne rend pas la main: les
	// boucles pures sans appel d'API ne peuvent pas être interrompues, leur
	// résultat est simplement ignoré
	select {
	case err := <-done:
		if err != nil {
			return nil, err
		}
		return working, nil
	case <-time.After(r.wallClockBudget + watchdogGrace):
		return nil, ErrScriptTimeout
	}
}
