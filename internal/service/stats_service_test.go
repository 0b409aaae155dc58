package service

import (
	"testing"

	"github.com/google/uuid"

	"battle/internal/config"
	"battle/internal/models"
)

func TestReplayEventLogAttribution(t *testing.T) {
	tackleID := uuid.New()
	drainID := uuid.New()

	battle := &models.Battle{
		EventLog: []models.LogEntry{
			{Source: models.LogSourcePlayer1, EffectType: models.EffectAction, Text: "alice used Tackle"},
			{Source: models.LogSourceScript, EffectType: models.EffectDamage, EffectDetails: map[string]interface{}{
				"damage_dealt":     float64(17),
				"source_attack_id": tackleID.String(),
			}},
			{Source: models.LogSourcePlayer2, EffectType: models.EffectAction, Text: "bob used Drain"},
			{Source: models.LogSourceScript, EffectType: models.EffectDamage, EffectDetails: map[string]interface{}{
				"damage_dealt":     float64(12),
				"source_attack_id": drainID.String(),
			}},
			{Source: models.LogSourceScript, EffectType: models.EffectHeal, EffectDetails: map[string]interface{}{
				"healing_done":     float64(6),
				"source_attack_id": drainID.String(),
			}},
			{Source: models.LogSourcePlayer1, EffectType: models.EffectAction, Text: "alice used Tackle"},
			{Source: models.LogSourceScript, EffectType: models.EffectDamage, EffectDetails: map[string]interface{}{
				"damage_dealt":     float64(19),
				"source_attack_id": tackleID.String(),
			}},
		},
	}

	replay := replayEventLog(battle)

	if got := replay.damageByAttack[tackleID]; got != 36 {
		t.Errorf("tackle damage = %d, expected 36", got)
	}
	if got := replay.damageByAttack[drainID]; got != 12 {
		t.Errorf("drain damage = %d, expected 12", got)
	}
	if got := replay.healingByAttack[drainID]; got != 6 {
		t.Errorf("drain healing = %d, expected 6", got)
	}
	if got := replay.damageByRole[models.RolePlayer1]; got != 36 {
		t.Errorf("player1 damage = %d, expected 36", got)
	}
	if got := replay.damageByRole[models.RolePlayer2]; got != 12 {
		t.Errorf("player2 damage = %d, expected 12", got)
	}
}

func TestReplayEventLogIgnoresUnattributedDamage(t *testing.T) {
	battle := &models.Battle{
		EventLog: []models.LogEntry{
			{Source: models.LogSourcePlayer1, EffectType: models.EffectAction},
			// Dégâts sans source_attack_id: comptés par rôle, pas par attaque
			{Source: models.LogSourceScript, EffectType: models.EffectDamage, EffectDetails: map[string]interface{}{
				"damage_dealt": float64(8),
			}},
		},
	}

	replay := replayEventLog(battle)

	if len(replay.damageByAttack) != 0 {
		t.Errorf("damageByAttack = %v, expected empty", replay.damageByAttack)
	}
	if got := replay.damageByRole[models.RolePlayer1]; got != 8 {
		t.Errorf("player1 damage = %d, expected 8", got)
	}
}

func TestDetailInt64(t *testing.T) {
	details := map[string]interface{}{
		"as_int":     17,
		"as_int64":   int64(18),
		"as_float64": float64(19),
		"as_string":  "20",
	}

	if got := detailInt64(details, "as_int"); got != 17 {
		t.Errorf("int: got %d", got)
	}
	if got := detailInt64(details, "as_int64"); got != 18 {
		t.Errorf("int64: got %d", got)
	}
	if got := detailInt64(details, "as_float64"); got != 19 {
		t.Errorf("float64: got %d", got)
	}
	if got := detailInt64(details, "as_string"); got != 0 {
		t.Errorf("unsupported type must yield 0, got %d", got)
	}
	if got := detailInt64(details, "missing"); got != 0 {
		t.Errorf("missing key must yield 0, got %d", got)
	}
}

func TestDetailUUID(t *testing.T) {
	id := uuid.New()
	details := map[string]interface{}{
		"valid":   id.String(),
		"garbage": "not-a-uuid",
		"number":  42,
	}

	if got, ok := detailUUID(details, "valid"); !ok || got != id {
		t.Errorf("valid: got %s, %v", got, ok)
	}
	if _, ok := detailUUID(details, "garbage"); ok {
		t.Error("garbage string must not parse")
	}
	if _, ok := detailUUID(details, "number"); ok {
		t.Error("non-string value must not parse")
	}
	if _, ok := detailUUID(details, "missing"); ok {
		t.Error("missing key must not parse")
	}
}

func TestBattleOutcomeVsBotIsBattleLevel(t *testing.T) {
	winnerID := uuid.New()
	loserID := uuid.New()

	// La catégorie vs_bot est calculée une fois par bataille et s'applique
	// au vainqueur comme au perdant, camp IA compris
	bot := &models.Battle{
		Player1ID:             winnerID,
		Player2ID:             loserID,
		WinnerID:              &winnerID,
		Player2IsAIControlled: true,
	}
	if won, vsBot := battleOutcome(bot, models.RolePlayer1); !won || !vsBot {
		t.Errorf("player1 in an AI battle: won=%v vsBot=%v, expected true/true", won, vsBot)
	}
	if won, vsBot := battleOutcome(bot, models.RolePlayer2); won || !vsBot {
		t.Errorf("player2 in an AI battle: won=%v vsBot=%v, expected false/true", won, vsBot)
	}

	human := &models.Battle{
		Player1ID: winnerID,
		Player2ID: loserID,
		WinnerID:  &winnerID,
	}
	for _, role := range []models.Role{models.RolePlayer1, models.RolePlayer2} {
		if _, vsBot := battleOutcome(human, role); vsBot {
			t.Errorf("%s in a human battle must not count vs_bot", role)
		}
	}
}

func TestProcessFinishedBattleRequiresFinished(t *testing.T) {
	battles := newFakeBattleRepo()
	active := &models.Battle{ID: uuid.New(), Status: models.BattleStatusActive}
	battles.Create(active)

	svc := &StatsService{
		battles: battles,
		users:   newFakeUserRepo(),
		game:    config.GameConfig{},
	}

	if err := svc.ProcessFinishedBattle(active.ID); err == nil {
		t.Error("an unfinished battle must be rejected")
	}
}
