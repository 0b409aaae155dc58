package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"battle/internal/models"
	"battle/internal/scripting"
	"battle/internal/utils"
)

// Erreurs de validation du pipeline
var (
	ErrBattleNotActive    = errors.New("battle is not active")
	ErrNotYourTurn        = errors.New("it is not your turn")
	ErrAttackNotInLoadout = errors.New("attack is not part of your battle loadout")
)

// PipelineInterface définit le pipeline de tour et le pilote IA
type PipelineInterface interface {
	ExecuteAction(battle *models.Battle, players map[models.Role]*models.User, actor models.Role, attackID uuid.UUID) error
	RunAITurns(battle *models.Battle, players map[models.Role]*models.User)
}

// Pipeline implémente l'interface PipelineInterface. Il mute la bataille en
// mémoire; l'appelant détient le verrou de ligne et commit atomiquement.
type Pipeline struct {
	calc    CalculatorInterface
	runtime *scripting.Runtime
	rng     utils.RNG
}

// NewPipeline crée un nouveau pipeline de tour
func NewPipeline(calc CalculatorInterface, runtime *scripting.Runtime, rng utils.RNG) PipelineInterface {
	return &Pipeline{calc: calc, runtime: runtime, rng: rng}
}

// turnState porte l'état d'une exécution d'action: le journal s'accumule ici
// et n'est ajouté à event_log qu'en un seul groupe contigu à la fin
type turnState struct {
	battle   *models.Battle
	players  map[models.Role]*models.User
	registry *scripting.Registry
	log      []models.LogEntry
}

func (ts *turnState) appendLog(source, text, effectType string, details map[string]interface{}) {
	entry := models.LogEntry{
		Source:     source,
		Text:       text,
		EffectType: effectType,
		Turn:       ts.battle.TurnNumber,
		Timestamp:  time.Now().UTC(),
	}
	if len(details) > 0 {
		entry.EffectDetails = details
	}
	ts.log = append(ts.log, entry)
}

// ExecuteAction exécute les cinq phases d'un tour pour l'action soumise
func (p *Pipeline) ExecuteAction(battle *models.Battle, players map[models.Role]*models.User, actor models.Role, attackID uuid.UUID) error {
	if battle.Status != models.BattleStatusActive {
		return ErrBattleNotActive
	}
	if battle.WhoseTurn != actor {
		return ErrNotYourTurn
	}
	attack, ok := battle.FindBattleAttack(actor, attackID)
	if !ok {
		return ErrAttackNotInLoadout
	}

	ensureBattleMaps(battle)
	opponent := actor.Other()
	ts := &turnState{
		battle:   battle,
		players:  players,
		registry: scripting.NewRegistry(battle.RegisteredScripts),
	}

	// Phase 1: BEFORE_TURN
	p.runPhase(ts, models.TriggerWhenBeforeTurn, actor)
	if p.checkFaint(ts) {
		return p.finalize(ts)
	}

	// Phase 2: BEFORE_ATTACK
	p.runPhase(ts, models.TriggerWhenBeforeAttack, actor)
	if p.checkFaint(ts) {
		return p.finalize(ts)
	}

	// Phase 3: ON_USE — exécution immédiate et inscriptions
	p.runOnUse(ts, actor, attack)
	if p.checkFaint(ts) {
		return p.finalize(ts)
	}

	// Phase 4: AFTER_ATTACK — acteur puis adversaire
	p.runPhase(ts, models.TriggerWhenAfterAttack, actor)
	if p.checkFaint(ts) {
		return p.finalize(ts)
	}
	p.runPhase(ts, models.TriggerWhenAfterAttack, opponent)
	if p.checkFaint(ts) {
		return p.finalize(ts)
	}

	// Phase 5: momentum et passage de tour
	p.applyMomentum(ts, actor, attack)
	if p.checkFaint(ts) {
		return p.finalize(ts)
	}

	// Phase 6: AFTER_TURN — acteur puis adversaire
	p.runPhase(ts, models.TriggerWhenAfterTurn, actor)
	if p.checkFaint(ts) {
		return p.finalize(ts)
	}
	p.runPhase(ts, models.TriggerWhenAfterTurn, opponent)
	p.checkFaint(ts)

	return p.finalize(ts)
}

func ensureBattleMaps(b *models.Battle) {
	if b.StatStages == nil {
		b.StatStages = make(map[models.Role]map[string]int)
	}
	if b.CustomStatuses == nil {
		b.CustomStatuses = make(map[models.Role]map[string]models.StatusValue)
	}
	if b.AttacksUsed == nil {
		b.AttacksUsed = make(map[models.Role][]uuid.UUID)
	}
	for _, role := range []models.Role{models.RolePlayer1, models.RolePlayer2} {
		if b.StatStages[role] == nil {
			b.StatStages[role] = make(map[string]int)
		}
		if b.CustomStatuses[role] == nil {
			b.CustomStatuses[role] = make(map[string]models.StatusValue)
		}
	}
}

// finalize persiste le registre et le journal accumulé sur la bataille
func (p *Pipeline) finalize(ts *turnState) error {
	ts.battle.RegisteredScripts = ts.registry.Snapshot()
	ts.battle.EventLog = append(ts.battle.EventLog, ts.log...)
	return nil
}

// checkFaint termine la bataille si un joueur est à 0 PV; retourne true si
// la bataille est finie (phases restantes court-circuitées)
func (p *Pipeline) checkFaint(ts *turnState) bool {
	b := ts.battle
	if b.Status == models.BattleStatusFinished {
		return true
	}
	for _, role := range []models.Role{models.RolePlayer1, models.RolePlayer2} {
		if b.HP[role] > 0 {
			continue
		}
		winner := role.Other()
		winnerID := b.PlayerID(winner)
		b.Status = models.BattleStatusFinished
		b.WinnerID = &winnerID

		ts.appendLog(models.LogSourceSystem,
			fmt.Sprintf("%s fainted! %s wins the battle!",
				ts.players[role].Username, ts.players[winner].Username),
			models.EffectFaint,
			map[string]interface{}{"fainted_role": string(role), "winner_role": string(winner)})
		return true
	}
	return false
}

// runOnUse journalise l'action, exécute les scripts ON_USE de l'attaque et
// inscrit les autres dans le registre
func (p *Pipeline) runOnUse(ts *turnState, actor models.Role, attack *models.BattleAttack) {
	b := ts.battle
	opponent := actor.Other()

	ts.appendLog(string(actor),
		fmt.Sprintf("%s used %s!", ts.players[actor].Username, attack.Name),
		models.EffectAction,
		map[string]interface{}{
			"attack_name":      attack.Name,
			"source_attack_id": attack.ID.String(),
			"emoji":            attack.Emoji,
		})

	b.MarkAttackUsed(actor, attack.ID)

	for i := range attack.Scripts {
		script := &attack.Scripts[i]
		if script.TriggerWhen == models.TriggerWhenOnUse {
			ctx := p.buildContext(ts, actor, attack, models.RegisteredScript{
				ScriptID:             script.ID,
				SourceAttackID:       attack.ID,
				TriggerWho:           models.TriggerWhoMe,
				TriggerWhen:          models.TriggerWhenOnUse,
				TriggerDuration:      models.TriggerDurationOnce,
				OriginalAttackerRole: actor,
				OriginalTargetRole:   opponent,
				StartTurn:            b.TurnNumber,
			})
			p.executeScript(ts, script, ctx)
			continue
		}

		// Inscription au registre pour les phases ultérieures
		ts.registry.Add(models.RegisteredScript{
			RegistrationID:       uuid.New(),
			ScriptID:             script.ID,
			SourceAttackID:       attack.ID,
			TriggerWho:           script.TriggerWho,
			TriggerWhen:          script.TriggerWhen,
			TriggerDuration:      script.TriggerDuration,
			OriginalAttackerRole: actor,
			OriginalTargetRole:   opponent,
			StartTurn:            b.TurnNumber,
		})
	}
}

// runPhase sélectionne et exécute les scripts inscrits pour (phase, acteur)
func (p *Pipeline) runPhase(ts *turnState, phase models.TriggerWhen, phaseActor models.Role) {
	selected := ts.registry.Match(phase, phaseActor)
	for _, rs := range selected {
		// Une désinscription pendant la phase est immédiatement visible
		if !ts.registry.Contains(rs.RegistrationID) {
			continue
		}

		attack, script, found := findRegisteredScript(ts.battle, rs)
		if !found {
			logrus.WithFields(logrus.Fields{
				"battle_id": ts.battle.ID,
				"script_id": rs.ScriptID,
			}).Warn("Registered script not found in battle snapshot, skipping")
			ts.registry.Remove(rs.RegistrationID)
			continue
		}

		ctx := p.buildContext(ts, phaseActor, attack, rs)
		if p.executeScript(ts, script, ctx) && rs.TriggerDuration == models.TriggerDurationOnce {
			ts.registry.MarkConsumed(rs.RegistrationID)
		}
	}
	ts.registry.SweepConsumed()
}

// executeScript lance un script et fusionne ses effets en cas de succès;
// retourne true si l'exécution a abouti
func (p *Pipeline) executeScript(ts *turnState, script *models.BattleScript, ctx *scripting.Context) bool {
	result, err := p.runtime.Execute(script.LuaCode, ctx)
	if err != nil {
		// Les erreurs de script ne remontent jamais: journal + poursuite
		ts.appendLog(models.LogSourceSystem,
			fmt.Sprintf("Script '%s' failed: %v", script.Name, err),
			models.EffectError,
			map[string]interface{}{"script_name": script.Name})
		return false
	}

	ts.log = append(ts.log, stampLog(result.Log, ts.battle.TurnNumber)...)

	if result.StateChanged {
		ts.battle.HP = result.HP
		ts.battle.StatStages = result.StatStages
		ts.battle.CustomStatuses = result.CustomStatuses
		for _, id := range result.Unregistered {
			ts.registry.Remove(id)
		}
	}
	return true
}

func stampLog(entries []models.LogEntry, turn int) []models.LogEntry {
	now := time.Now().UTC()
	for i := range entries {
		if entries[i].Turn == 0 {
			entries[i].Turn = turn
		}
		if entries[i].Timestamp.IsZero() {
			entries[i].Timestamp = now
		}
	}
	return entries
}

func findRegisteredScript(b *models.Battle, rs models.RegisteredScript) (*models.BattleAttack, *models.BattleScript, bool) {
	for _, role := range []models.Role{models.RolePlayer1, models.RolePlayer2} {
		for i := range b.BattleAttacks[role] {
			attack := &b.BattleAttacks[role][i]
			if attack.ID != rs.SourceAttackID {
				continue
			}
			for j := range attack.Scripts {
				if attack.Scripts[j].ID == rs.ScriptID {
					return attack, &attack.Scripts[j], true
				}
			}
		}
	}
	return nil, nil, false
}

func (p *Pipeline) buildContext(ts *turnState, phaseActor models.Role, attack *models.BattleAttack, rs models.RegisteredScript) *scripting.Context {
	b := ts.battle

	players := make(map[models.Role]scripting.PlayerInfo, 2)
	for role, user := range ts.players {
		players[role] = scripting.PlayerInfo{
			ID:      user.ID,
			Name:    user.Username,
			MaxHP:   user.HP,
			Attack:  user.Attack,
			Defense: user.Defense,
			Speed:   user.Speed,
		}
	}

	// CONTEXT_ROLE suit le who du déclencheur; pour ANY c'est l'acteur de phase
	contextRole := phaseActor
	switch rs.TriggerWho {
	case models.TriggerWhoMe:
		contextRole = rs.OriginalAttackerRole
	case models.TriggerWhoEnemy:
		contextRole = rs.OriginalTargetRole
	}

	hp := make(map[models.Role]int, 2)
	momentum := make(map[models.Role]int, 2)
	stages := make(map[models.Role]map[string]int, 2)
	statuses := make(map[models.Role]map[string]models.StatusValue, 2)
	for _, role := range []models.Role{models.RolePlayer1, models.RolePlayer2} {
		hp[role] = b.HP[role]
		momentum[role] = b.Momentum[role]
		innerStages := make(map[string]int, len(b.StatStages[role]))
		for k, v := range b.StatStages[role] {
			innerStages[k] = v
		}
		stages[role] = innerStages
		innerStatuses := make(map[string]models.StatusValue, len(b.CustomStatuses[role]))
		for k, v := range b.CustomStatuses[role] {
			innerStatuses[k] = v
		}
		statuses[role] = innerStatuses
	}

	var sourceAttack *models.BattleAttack
	if attack != nil {
		copied := *attack
		sourceAttack = &copied
	}

	return &scripting.Context{
		Players:              players,
		HP:                   hp,
		Momentum:             momentum,
		StatStages:           stages,
		CustomStatuses:       statuses,
		ActorRole:            phaseActor,
		TargetRole:           phaseActor.Other(),
		ContextRole:          contextRole,
		OriginalAttackerRole: rs.OriginalAttackerRole,
		OriginalTargetRole:   rs.OriginalTargetRole,
		RegistrationID:       rs.RegistrationID,
		TurnNumber:           b.TurnNumber,
		StartTurn:            rs.StartTurn,
		TriggerWho:           rs.TriggerWho,
		TriggerWhen:          rs.TriggerWhen,
		TriggerDuration:      rs.TriggerDuration,
		SourceAttack:         sourceAttack,
		Registered:           ts.registry.Snapshot(),
	}
}

// applyMomentum déduit le coût réel; à découvert, l'excédent est transféré
// à l'adversaire et le tour change de main
func (p *Pipeline) applyMomentum(ts *turnState, actor models.Role, attack *models.BattleAttack) {
	b := ts.battle
	opponent := actor.Other()

	effSpeed := p.calc.ModifiedStat(ts.players[actor].Speed, b.StatStages[actor]["speed"])
	actualCost := p.calc.ActualMomentumCost(attack.MomentumCost, effSpeed)

	if b.Momentum[actor] >= actualCost {
		b.Momentum[actor] -= actualCost
		ts.appendLog(models.LogSourceSystem,
			fmt.Sprintf("%s spent %d momentum and keeps the turn.", ts.players[actor].Username, actualCost),
			models.EffectMomentum,
			map[string]interface{}{"cost": actualCost, "remaining": b.Momentum[actor]})
		return
	}

	overflow := actualCost - b.Momentum[actor]
	b.Momentum[actor] = 0
	b.Momentum[opponent] += overflow

	ts.appendLog(models.LogSourceSystem,
		fmt.Sprintf("%s spent %d momentum; %d overflowed to %s.",
			ts.players[actor].Username, actualCost, overflow, ts.players[opponent].Username),
		models.EffectMomentum,
		map[string]interface{}{"cost": actualCost, "overflow": overflow})

	b.WhoseTurn = opponent
	b.TurnNumber++

	ts.appendLog(models.LogSourceSystem,
		fmt.Sprintf("It is now %s's turn.", ts.players[opponent].Username),
		models.EffectTurnChange,
		map[string]interface{}{"whose_turn": string(opponent), "turn_number": b.TurnNumber})
}

// RunAITurns boucle tant que la bataille est active et que le tour revient
// au rôle piloté par l'IA
func (p *Pipeline) RunAITurns(battle *models.Battle, players map[models.Role]*models.User) {
	for battle.Status == models.BattleStatusActive &&
		battle.Player2IsAIControlled &&
		battle.WhoseTurn == models.RolePlayer2 {

		loadout := battle.BattleAttacks[models.RolePlayer2]
		if len(loadout) == 0 {
			p.skipAITurn(battle, players, "has no attacks and skips the turn", models.EffectInfo)
			continue
		}

		attack := loadout[p.rng.Intn(len(loadout))]
		if err := p.runAIAction(battle, players, attack.ID); err != nil {
			logrus.WithFields(logrus.Fields{
				"battle_id": battle.ID,
				"attack_id": attack.ID,
				"error":     err,
			}).Error("AI action failed, forcing turn switch")
			p.skipAITurn(battle, players, "stumbled and loses the turn", models.EffectError)
		}
	}
}

// runAIAction isole les paniques du pipeline pendant un tour IA
func (p *Pipeline) runAIAction(battle *models.Battle, players map[models.Role]*models.User, attackID uuid.UUID) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()
	return p.ExecuteAction(battle, players, models.RolePlayer2, attackID)
}

// skipAITurn journalise un tour IA avorté et rend la main artificiellement
func (p *Pipeline) skipAITurn(battle *models.Battle, players map[models.Role]*models.User, reason, effectType string) {
	aiName := players[models.RolePlayer2].Username

	entry := models.LogEntry{
		Source:     models.LogSourceSystem,
		Text:       fmt.Sprintf("%s %s.", aiName, reason),
		EffectType: effectType,
		Turn:       battle.TurnNumber,
		Timestamp:  time.Now().UTC(),
	}
	battle.EventLog = append(battle.EventLog, entry)

	battle.WhoseTurn = models.RolePlayer1
	battle.TurnNumber++
	battle.EventLog = append(battle.EventLog, models.LogEntry{
		Source:     models.LogSourceSystem,
		Text:       fmt.Sprintf("It is now %s's turn.", players[models.RolePlayer1].Username),
		EffectType: models.EffectTurnChange,
		Turn:       battle.TurnNumber,
		Timestamp:  time.Now().UTC(),
	})
}
