package service

import (
	"testing"

	"github.com/google/uuid"

	"battle/internal/config"
	"battle/internal/models"
	"battle/internal/repository"
	"battle/internal/utils"
)

func newBattleFixture() (BattleServiceInterface, *fakeBattleRepo, *fakeUserRepo, *fakeAttackRepo, *models.User, *models.User) {
	alice := &models.User{
		ID: uuid.New(), Username: "alice",
		HP: 100, Attack: 100, Defense: 100, Speed: 100,
		AllowBotChallenges: true,
	}
	bob := &models.User{
		ID: uuid.New(), Username: "bob",
		HP: 120, Attack: 90, Defense: 90, Speed: 100,
		AllowBotChallenges: true,
	}

	battles := newFakeBattleRepo()
	users := newFakeUserRepo(alice, bob)
	attacks := newFakeAttackRepo()

	rng := utils.NewSeededRNG(1)
	calc := NewCalculator(rng)
	game := config.GameConfig{BaseMomentum: 50, PendingBattleExpiry: 0}
	svc := NewBattleService(battles, users, attacks, nil, &fakeStatsService{}, calc, game)

	return svc, battles, users, attacks, alice, bob
}

func TestInitiateSelfChallenge(t *testing.T) {
	svc, _, _, _, alice, _ := newBattleFixture()

	req := &models.InitiateBattleRequest{OpponentID: alice.ID}
	if _, err := svc.Initiate(alice.ID, req); err != ErrSelfChallenge {
		t.Errorf("err = %v, expected ErrSelfChallenge", err)
	}
}

func TestInitiateUnknownOpponent(t *testing.T) {
	svc, _, _, _, alice, _ := newBattleFixture()

	req := &models.InitiateBattleRequest{OpponentID: uuid.New()}
	if _, err := svc.Initiate(alice.ID, req); err != repository.ErrNotFound {
		t.Errorf("err = %v, expected ErrNotFound", err)
	}
}

func TestInitiateDuplicateChallenge(t *testing.T) {
	svc, battles, _, _, alice, bob := newBattleFixture()
	battles.openBetween = true

	req := &models.InitiateBattleRequest{OpponentID: bob.ID}
	if _, err := svc.Initiate(alice.ID, req); err != ErrDuplicateChallenge {
		t.Errorf("err = %v, expected ErrDuplicateChallenge", err)
	}
}

func TestInitiateBusyChecks(t *testing.T) {
	svc, battles, _, _, alice, bob := newBattleFixture()

	battles.activeHuman[alice.ID] = true
	req := &models.InitiateBattleRequest{OpponentID: bob.ID}
	if _, err := svc.Initiate(alice.ID, req); err != ErrChallengerBusy {
		t.Errorf("busy challenger: err = %v, expected ErrChallengerBusy", err)
	}

	battles.activeHuman[alice.ID] = false
	battles.activeHuman[bob.ID] = true
	if _, err := svc.Initiate(alice.ID, req); err != ErrTargetBusy {
		t.Errorf("busy target: err = %v, expected ErrTargetBusy", err)
	}
}

func TestInitiateBotChallengeDenied(t *testing.T) {
	svc, _, _, _, alice, bob := newBattleFixture()
	bob.AllowBotChallenges = false

	req := &models.InitiateBattleRequest{OpponentID: bob.ID, FightAsBot: true}
	if _, err := svc.Initiate(alice.ID, req); err != ErrBotChallengesDenied {
		t.Errorf("err = %v, expected ErrBotChallengesDenied", err)
	}
}

func TestInitiateCreatesPendingChallenge(t *testing.T) {
	svc, battles, _, _, alice, bob := newBattleFixture()

	battle, err := svc.Initiate(alice.ID, &models.InitiateBattleRequest{OpponentID: bob.ID})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	if battle.Status != models.BattleStatusPending {
		t.Errorf("status = %s, expected pending", battle.Status)
	}
	if battle.Player1ID != alice.ID || battle.Player2ID != bob.ID {
		t.Error("roles must map challenger to player1")
	}
	if battle.Player2IsAIControlled {
		t.Error("a plain challenge must not be AI controlled")
	}
	if len(battle.BattleAttacks) != 0 {
		t.Error("loadouts must not be frozen before activation")
	}
	if _, err := battles.GetByID(battle.ID); err != nil {
		t.Error("battle must be persisted")
	}
}

func TestInitiateFightAsBotStartsActive(t *testing.T) {
	svc, _, users, attackRepo, alice, bob := newBattleFixture()

	tackle := &models.Attack{ID: uuid.New(), Name: "Tackle", MomentumCost: 20, Scripts: []*models.Script{{
		Name: "hit", LuaCode: "apply_std_damage(40)",
		TriggerWho: models.TriggerWhoMe, TriggerWhen: models.TriggerWhenOnUse, TriggerDuration: models.TriggerDurationOnce,
	}}}
	attackRepo.attacks[tackle.ID] = tackle
	users.selected[alice.ID] = []uuid.UUID{tackle.ID}
	users.selected[bob.ID] = []uuid.UUID{tackle.ID}

	battle, err := svc.Initiate(alice.ID, &models.InitiateBattleRequest{OpponentID: bob.ID, FightAsBot: true})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	if battle.Status != models.BattleStatusActive {
		t.Fatalf("status = %s, expected active", battle.Status)
	}
	if !battle.Player2IsAIControlled {
		t.Error("fight_as_bot must mark player2 as AI controlled")
	}
	if battle.HP[models.RolePlayer1] != 100 || battle.HP[models.RolePlayer2] != 120 {
		t.Errorf("HP = %v, expected players' max HP", battle.HP)
	}
	if battle.Momentum[models.RolePlayer1] != 50 || battle.Momentum[models.RolePlayer2] != 50 {
		t.Errorf("momentum = %v, expected base momentum", battle.Momentum)
	}
	loadout := battle.BattleAttacks[models.RolePlayer1]
	if len(loadout) != 1 || loadout[0].Name != "Tackle" || len(loadout[0].Scripts) != 1 {
		t.Errorf("frozen loadout = %+v", loadout)
	}
	if battle.WhoseTurn != models.RolePlayer1 || battle.TurnNumber != 1 {
		t.Error("battle must start on player1's first turn")
	}
}

func TestAcceptOnlyByTarget(t *testing.T) {
	svc, _, _, _, alice, bob := newBattleFixture()

	battle, err := svc.Initiate(alice.ID, &models.InitiateBattleRequest{OpponentID: bob.ID})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	if _, err := svc.Accept(alice.ID, battle.ID); err != ErrNotChallengeTarget {
		t.Errorf("challenger accept: err = %v, expected ErrNotChallengeTarget", err)
	}
}

func TestAcceptActivates(t *testing.T) {
	svc, _, users, attackRepo, alice, bob := newBattleFixture()

	tackle := &models.Attack{ID: uuid.New(), Name: "Tackle", MomentumCost: 20}
	attackRepo.attacks[tackle.ID] = tackle
	users.selected[alice.ID] = []uuid.UUID{tackle.ID}
	users.selected[bob.ID] = []uuid.UUID{tackle.ID}

	battle, err := svc.Initiate(alice.ID, &models.InitiateBattleRequest{OpponentID: bob.ID})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	accepted, err := svc.Accept(bob.ID, battle.ID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if accepted.Status != models.BattleStatusActive {
		t.Errorf("status = %s, expected active", accepted.Status)
	}
	if accepted.HP[models.RolePlayer2] != 120 {
		t.Errorf("player2 HP = %d, expected 120", accepted.HP[models.RolePlayer2])
	}

	// Un second accept échoue, la bataille n'est plus en attente
	if _, err := svc.Accept(bob.ID, battle.ID); err != ErrBattleNotPending {
		t.Errorf("double accept: err = %v, expected ErrBattleNotPending", err)
	}
}

func TestDeclineSetsStatus(t *testing.T) {
	svc, _, _, _, alice, bob := newBattleFixture()

	battle, err := svc.Initiate(alice.ID, &models.InitiateBattleRequest{OpponentID: bob.ID})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	if _, err := svc.Decline(alice.ID, battle.ID); err != ErrNotChallengeTarget {
		t.Errorf("challenger decline: err = %v, expected ErrNotChallengeTarget", err)
	}

	declined, err := svc.Decline(bob.ID, battle.ID)
	if err != nil {
		t.Fatalf("Decline: %v", err)
	}
	if declined.Status != models.BattleStatusDeclined {
		t.Errorf("status = %s, expected declined", declined.Status)
	}
}

func TestCancelOnlyByInitiator(t *testing.T) {
	svc, battles, _, _, alice, bob := newBattleFixture()

	battle, err := svc.Initiate(alice.ID, &models.InitiateBattleRequest{OpponentID: bob.ID})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	if err := svc.Cancel(bob.ID, battle.ID); err != ErrNotChallengeInitiator {
		t.Errorf("target cancel: err = %v, expected ErrNotChallengeInitiator", err)
	}

	if err := svc.Cancel(alice.ID, battle.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := battles.GetByID(battle.ID); err != repository.ErrNotFound {
		t.Error("cancelled challenge must be deleted")
	}
}

func TestGetBattleRequiresParticipant(t *testing.T) {
	svc, _, users, _, alice, bob := newBattleFixture()

	stranger := &models.User{ID: uuid.New(), Username: "mallory"}
	users.users[stranger.ID] = stranger

	battle, err := svc.Initiate(alice.ID, &models.InitiateBattleRequest{OpponentID: bob.ID})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	if _, err := svc.GetBattle(stranger.ID, battle.ID); err != ErrNotParticipant {
		t.Errorf("err = %v, expected ErrNotParticipant", err)
	}
	if _, err := svc.GetBattle(bob.ID, battle.ID); err != nil {
		t.Errorf("participant read: %v", err)
	}
}

func TestGetActiveBattle(t *testing.T) {
	svc, battles, _, _, alice, bob := newBattleFixture()

	if _, err := svc.GetActiveBattle(alice.ID); err != repository.ErrNotFound {
		t.Errorf("no active battle: err = %v, expected ErrNotFound", err)
	}

	active := &models.Battle{
		ID: uuid.New(), Player1ID: alice.ID, Player2ID: bob.ID,
		Status: models.BattleStatusActive,
	}
	battles.Create(active)

	got, err := svc.GetActiveBattle(alice.ID)
	if err != nil {
		t.Fatalf("GetActiveBattle: %v", err)
	}
	if got.ID != active.ID {
		t.Errorf("battle = %s, expected %s", got.ID, active.ID)
	}
}

// ListPendingRequests ne retourne que les défis en attente dont l'appelant
// est la cible
func TestListPendingRequests(t *testing.T) {
	svc, battles, users, _, alice, bob := newBattleFixture()

	carol := &models.User{ID: uuid.New(), Username: "carol", HP: 100, Attack: 100, Defense: 100, Speed: 100}
	users.users[carol.ID] = carol

	received, err := svc.Initiate(alice.ID, &models.InitiateBattleRequest{OpponentID: bob.ID})
	if err != nil {
		t.Fatalf("Initiate alice->bob: %v", err)
	}
	sent, err := svc.Initiate(bob.ID, &models.InitiateBattleRequest{OpponentID: carol.ID})
	if err != nil {
		t.Fatalf("Initiate bob->carol: %v", err)
	}

	// Une bataille déjà active entre carol et bob ne compte pas
	battles.Create(&models.Battle{
		ID: uuid.New(), Player1ID: carol.ID, Player2ID: bob.ID,
		Status: models.BattleStatusActive,
	})

	requests, err := svc.ListPendingRequests(bob.ID)
	if err != nil {
		t.Fatalf("ListPendingRequests: %v", err)
	}
	if len(requests) != 1 || requests[0].ID != received.ID {
		t.Fatalf("requests = %+v, expected only the challenge received from alice", requests)
	}

	// Le défi lancé par bob apparaît chez carol, pas chez bob
	carolRequests, err := svc.ListPendingRequests(carol.ID)
	if err != nil {
		t.Fatalf("ListPendingRequests carol: %v", err)
	}
	if len(carolRequests) != 1 || carolRequests[0].ID != sent.ID {
		t.Fatalf("carol requests = %+v, expected the challenge from bob", carolRequests)
	}

	// Un défi refusé disparaît de la liste
	if _, err := svc.Decline(bob.ID, received.ID); err != nil {
		t.Fatalf("Decline: %v", err)
	}
	requests, err = svc.ListPendingRequests(bob.ID)
	if err != nil {
		t.Fatalf("ListPendingRequests after decline: %v", err)
	}
	if len(requests) != 0 {
		t.Errorf("requests after decline = %+v, expected none", requests)
	}
}

func TestBuildViewCostRangesOnlyOnMyTurn(t *testing.T) {
	svc, _, users, attackRepo, alice, bob := newBattleFixture()

	tackle := &models.Attack{ID: uuid.New(), Name: "Tackle", MomentumCost: 20}
	attackRepo.attacks[tackle.ID] = tackle
	users.selected[alice.ID] = []uuid.UUID{tackle.ID}
	users.selected[bob.ID] = []uuid.UUID{tackle.ID}

	battle, err := svc.Initiate(alice.ID, &models.InitiateBattleRequest{OpponentID: bob.ID, FightAsBot: true})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	view, err := svc.BuildView(battle, alice.ID)
	if err != nil {
		t.Fatalf("BuildView: %v", err)
	}
	if !view.IsMyTurn || view.MyRole != models.RolePlayer1 {
		t.Error("view must report player1's turn")
	}
	if len(view.MySelectedAttacks) != 1 {
		t.Fatalf("selected attacks = %d, expected 1", len(view.MySelectedAttacks))
	}
	entry := view.MySelectedAttacks[0]
	if entry.CalculatedMinCost == nil || entry.CalculatedMaxCost == nil {
		t.Fatal("cost bounds must be present on the caller's turn")
	}
	// Coût 20 à vitesse 100: bornes [17,23]
	if *entry.CalculatedMinCost != 17 || *entry.CalculatedMaxCost != 23 {
		t.Errorf("cost bounds = [%d,%d], expected [17,23]", *entry.CalculatedMinCost, *entry.CalculatedMaxCost)
	}

	// Du point de vue de l'adversaire ce n'est pas son tour: pas de bornes
	opponentView, err := svc.BuildView(battle, bob.ID)
	if err != nil {
		t.Fatalf("BuildView opponent: %v", err)
	}
	if opponentView.IsMyTurn {
		t.Error("opponent view must not report its turn")
	}
	if opponentView.MySelectedAttacks[0].CalculatedMinCost != nil {
		t.Error("cost bounds must be omitted off turn")
	}
}
