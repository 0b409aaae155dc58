package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"battle/internal/models"
)

func newGenerationFixture(credits int) (*GenerationService, *fakeUserRepo, *fakeAttackRepo, *fakeLLM, *models.User) {
	user := &models.User{ID: uuid.New(), Username: "alice", Credits: credits}
	users := newFakeUserRepo(user)
	attacks := newFakeAttackRepo()
	client := &fakeLLM{}
	svc := &GenerationService{
		users:      users,
		attacks:    attacks,
		gameConfig: &fakeGameConfigRepo{cost: 10},
		llm:        client,
	}
	return svc, users, attacks, client, user
}

func TestGenerateRejectsLongConcept(t *testing.T) {
	svc, _, _, client, user := newGenerationFixture(100)

	req := &models.GenerateAttacksRequest{Concept: strings.Repeat("x", 51)}
	if _, err := svc.Generate(context.Background(), user.ID, req); err != ErrConceptTooLong {
		t.Errorf("err = %v, expected ErrConceptTooLong", err)
	}
	if client.calls != 0 {
		t.Error("LLM must not be called when validation fails")
	}
}

func TestGenerateInsufficientCredits(t *testing.T) {
	svc, users, _, client, user := newGenerationFixture(9)

	_, err := svc.Generate(context.Background(), user.ID, &models.GenerateAttacksRequest{})
	if err != ErrInsufficientCredits {
		t.Errorf("err = %v, expected ErrInsufficientCredits", err)
	}
	if client.calls != 0 {
		t.Error("LLM must not be called without sufficient credits")
	}
	if len(users.creditAdjustments) != 0 {
		t.Error("no debit must happen before the credit check passes")
	}
}

func TestGenerateTooManyFavorites(t *testing.T) {
	svc, _, _, _, user := newGenerationFixture(100)

	ids := make([]uuid.UUID, 7)
	for i := range ids {
		ids[i] = uuid.New()
	}
	req := &models.GenerateAttacksRequest{FavoriteAttackIDs: ids}
	if _, err := svc.Generate(context.Background(), user.ID, req); err != ErrTooManyFavorites {
		t.Errorf("err = %v, expected ErrTooManyFavorites", err)
	}
}

func TestGenerateFavoriteNotOwned(t *testing.T) {
	svc, users, _, _, user := newGenerationFixture(100)

	req := &models.GenerateAttacksRequest{FavoriteAttackIDs: []uuid.UUID{uuid.New()}}
	if _, err := svc.Generate(context.Background(), user.ID, req); err != ErrFavoriteNotOwned {
		t.Errorf("err = %v, expected ErrFavoriteNotOwned", err)
	}
	if len(users.creditAdjustments) != 0 {
		t.Error("ownership check must happen before the debit")
	}
}

func TestGenerateRefundsOnLLMFailure(t *testing.T) {
	svc, users, _, client, user := newGenerationFixture(100)
	client.err = errors.New("api unreachable")

	_, err := svc.Generate(context.Background(), user.ID, &models.GenerateAttacksRequest{})
	if err == nil {
		t.Fatal("expected an error when the LLM call fails")
	}

	// Débit puis remboursement du même montant
	if len(users.creditAdjustments) != 2 ||
		users.creditAdjustments[0] != -10 || users.creditAdjustments[1] != 10 {
		t.Errorf("credit adjustments = %v, expected [-10, 10]", users.creditAdjustments)
	}
	if user.Credits != 100 {
		t.Errorf("credits = %d, expected restored to 100", user.Credits)
	}
}

func TestGenerateRefundsWhenNoCandidateSurvives(t *testing.T) {
	svc, users, _, client, user := newGenerationFixture(100)
	client.response = `[{
		"name": "Shell Escape",
		"description": "bad",
		"emoji": "💀",
		"momentum_cost": 20,
		"scripts": [{
			"name": "main",
			"lua_code": "os.execute('rm -rf /')",
			"trigger_who": "ME",
			"trigger_when": "ON_USE",
			"trigger_duration": "ONCE"
		}]
	}]`

	_, err := svc.Generate(context.Background(), user.ID, &models.GenerateAttacksRequest{})
	if !errors.Is(err, ErrNoValidAttacks) {
		t.Errorf("err = %v, expected ErrNoValidAttacks", err)
	}
	if user.Credits != 100 {
		t.Errorf("credits = %d, expected refund to 100", user.Credits)
	}
	if len(users.creditAdjustments) != 2 {
		t.Errorf("credit adjustments = %v, expected a debit and a refund", users.creditAdjustments)
	}
}

func TestGeneratePromptIncludesConceptAndFavorites(t *testing.T) {
	svc, users, attacks, client, user := newGenerationFixture(100)
	client.err = errors.New("stop before persistence")

	favorite := &models.Attack{ID: uuid.New(), Name: "Ember", Emoji: "🔥", MomentumCost: 25, Description: "A small flame."}
	attacks.attacks[favorite.ID] = favorite
	users.learned[user.ID] = []uuid.UUID{favorite.ID}

	req := &models.GenerateAttacksRequest{
		Concept:           "volcanic fury",
		FavoriteAttackIDs: []uuid.UUID{favorite.ID},
	}
	svc.Generate(context.Background(), user.ID, req)

	if client.calls != 1 {
		t.Fatalf("LLM calls = %d, expected 1", client.calls)
	}
	if !strings.Contains(client.user, "volcanic fury") {
		t.Error("prompt must carry the concept")
	}
	if !strings.Contains(client.user, "Ember") {
		t.Error("prompt must list the favorite attacks")
	}
	if !strings.Contains(client.user, "apply_std_damage") {
		t.Error("prompt must document the scripting API")
	}
}

func TestStripMarkdownFences(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`[{"a":1}]`, `[{"a":1}]`},
		{"```json\n[{\"a\":1}]\n```", `[{"a":1}]`},
		{"```\n[]\n```", `[]`},
		{"  [1]  ", `[1]`},
	}
	for _, tc := range cases {
		if got := stripMarkdownFences(tc.in); got != tc.want {
			t.Errorf("stripMarkdownFences(%q) = %q, expected %q", tc.in, got, tc.want)
		}
	}
}

func TestParseCandidates(t *testing.T) {
	if _, err := parseCandidates("not json"); err == nil {
		t.Error("invalid JSON must be rejected")
	}
	if _, err := parseCandidates("[]"); err == nil {
		t.Error("an empty list must be rejected")
	}

	candidates, err := parseCandidates("```json\n[{\"name\":\"Spark\",\"momentum_cost\":10}]\n```")
	if err != nil {
		t.Fatalf("parseCandidates: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Name != "Spark" {
		t.Errorf("candidates = %+v", candidates)
	}
}

func TestSanitizeText(t *testing.T) {
	if got := sanitizeText("<b>Fire</b> Blast", 50); got != "Fire Blast" {
		t.Errorf("html stripping: got %q", got)
	}
	if got := sanitizeText("  padded  ", 50); got != "padded" {
		t.Errorf("trimming: got %q", got)
	}
	if got := sanitizeText(strings.Repeat("é", 60), 50); len([]rune(got)) != 50 {
		t.Errorf("rune cap: got %d runes", len([]rune(got)))
	}
}

func validCandidate() attackCandidate {
	return attackCandidate{
		Name:         "Flame Burst",
		Description:  "A burst of fire.",
		Emoji:        "🔥",
		MomentumCost: 30,
		Scripts: []scriptCandidate{{
			Name:            "burn",
			LuaCode:         "apply_std_damage(40)",
			TriggerWho:      "ME",
			TriggerWhen:     "ON_USE",
			TriggerDuration: "ONCE",
		}},
	}
}

func TestValidateCandidate(t *testing.T) {
	svc, _, _, _, user := newGenerationFixture(100)

	attack, err := svc.validateCandidate(user.ID, validCandidate())
	if err != nil {
		t.Fatalf("validateCandidate: %v", err)
	}
	if attack.Name != "Flame Burst" || attack.MomentumCost != 30 {
		t.Errorf("attack = %+v", attack)
	}
	if attack.CreatorID == nil || *attack.CreatorID != user.ID {
		t.Error("creator must be the requesting user")
	}
	if len(attack.Scripts) != 1 {
		t.Fatalf("scripts = %d, expected 1", len(attack.Scripts))
	}
}

func TestValidateCandidateNormalizesOnUse(t *testing.T) {
	svc, _, _, _, user := newGenerationFixture(100)

	candidate := validCandidate()
	// ON_USE avec un triplet incohérent est corrigé, pas rejeté
	candidate.Scripts[0].TriggerWho = "ENEMY"
	candidate.Scripts[0].TriggerDuration = "PERSISTENT"

	attack, err := svc.validateCandidate(user.ID, candidate)
	if err != nil {
		t.Fatalf("validateCandidate: %v", err)
	}
	script := attack.Scripts[0]
	if script.TriggerWho != models.TriggerWhoMe || script.TriggerDuration != models.TriggerDurationOnce {
		t.Errorf("ON_USE script = (%s, %s), expected (ME, ONCE)", script.TriggerWho, script.TriggerDuration)
	}
}

func TestValidateCandidateRejections(t *testing.T) {
	svc, _, _, _, user := newGenerationFixture(100)

	cases := []struct {
		name   string
		mutate func(*attackCandidate)
	}{
		{"empty name", func(c *attackCandidate) { c.Name = "<script></script>" }},
		{"momentum too low", func(c *attackCandidate) { c.MomentumCost = 0 }},
		{"momentum too high", func(c *attackCandidate) { c.MomentumCost = 101 }},
		{"no scripts", func(c *attackCandidate) { c.Scripts = nil }},
		{"empty lua", func(c *attackCandidate) { c.Scripts[0].LuaCode = "   " }},
		{"forbidden os", func(c *attackCandidate) { c.Scripts[0].LuaCode = `os.execute("x")` }},
		{"forbidden require", func(c *attackCandidate) { c.Scripts[0].LuaCode = `require("socket")` }},
		{"forbidden global table", func(c *attackCandidate) { c.Scripts[0].LuaCode = `_G.print = nil` }},
		{"bad trigger when", func(c *attackCandidate) { c.Scripts[0].TriggerWhen = "SOMETIMES" }},
	}
	for _, tc := range cases {
		candidate := validCandidate()
		tc.mutate(&candidate)
		if _, err := svc.validateCandidate(user.ID, candidate); err == nil {
			t.Errorf("%s: expected a rejection", tc.name)
		}
	}
}

func TestDedupName(t *testing.T) {
	svc, _, attacks, _, _ := newGenerationFixture(100)

	if name, err := svc.dedupName("Fresh"); err != nil || name != "Fresh" {
		t.Errorf("dedupName(Fresh) = %q, %v", name, err)
	}

	attacks.names["Taken"] = true
	if name, err := svc.dedupName("Taken"); err != nil || name != "Taken (2)" {
		t.Errorf("dedupName(Taken) = %q, %v", name, err)
	}

	attacks.names["Taken (2)"] = true
	attacks.names["Taken (3)"] = true
	if name, err := svc.dedupName("Taken"); err != nil || name != "Taken (4)" {
		t.Errorf("dedupName with holes = %q, %v", name, err)
	}

	// Tous les suffixes jusqu'à 10 épuisés: le candidat est abandonné
	for n := 2; n <= 10; n++ {
		attacks.names[fmt.Sprintf("Taken (%d)", n)] = true
	}
	if _, err := svc.dedupName("Taken"); err == nil {
		t.Error("expected an error once every suffix is taken")
	}
}
