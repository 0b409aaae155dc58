package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"battle/internal/models"
	"battle/internal/repository"
)

// errNoDB est retournée par les fakes pour tout chemin transactionnel:
// les tests unitaires couvrent les chemins hors transaction
var errNoDB = errors.New("transactions unavailable in tests")

// fakeUserRepo est un repository utilisateur en mémoire
type fakeUserRepo struct {
	users             map[uuid.UUID]*models.User
	learned           map[uuid.UUID][]uuid.UUID
	selected          map[uuid.UUID][]uuid.UUID
	creditAdjustments []int
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	repo := &fakeUserRepo{
		users:    make(map[uuid.UUID]*models.User),
		learned:  make(map[uuid.UUID][]uuid.UUID),
		selected: make(map[uuid.UUID][]uuid.UUID),
	}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (r *fakeUserRepo) Create(user *models.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(id uuid.UUID) (*models.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByUsername(username string) (*models.User, error) {
	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) Update(user *models.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) UpdateBaseStats(id uuid.UUID, hp, attack, defense, speed int) error {
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.HP, user.Attack, user.Defense, user.Speed = hp, attack, defense, speed
	return nil
}

func (r *fakeUserRepo) UpdateProfile(id uuid.UUID, allowBotChallenges *bool, profilePrompt *string) error {
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if allowBotChallenges != nil {
		user.AllowBotChallenges = *allowBotChallenges
	}
	if profilePrompt != nil {
		user.ProfilePrompt = *profilePrompt
	}
	return nil
}

func (r *fakeUserRepo) TouchLastSeen(id uuid.UUID) error { return nil }

func (r *fakeUserRepo) AdjustCredits(id uuid.UUID, delta int) error {
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.Credits += delta
	r.creditAdjustments = append(r.creditAdjustments, delta)
	return nil
}

func (r *fakeUserRepo) AdjustCreditsTx(tx *sqlx.Tx, id uuid.UUID, delta int) error {
	return errNoDB
}

func (r *fakeUserRepo) UpdateUserStatsTx(tx *sqlx.Tx, id uuid.UUID, stats models.UserStats) error {
	return errNoDB
}

func (r *fakeUserRepo) List(excludeID uuid.UUID) ([]*models.User, error) {
	var out []*models.User
	for _, user := range r.users {
		if user.ID != excludeID {
			out = append(out, user)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) LearnAttack(userID, attackID uuid.UUID) error {
	r.learned[userID] = append(r.learned[userID], attackID)
	return nil
}

func (r *fakeUserRepo) LearnAttackTx(tx *sqlx.Tx, userID, attackID uuid.UUID) error {
	return errNoDB
}

func (r *fakeUserRepo) GetLearnedAttackIDs(userID uuid.UUID) ([]uuid.UUID, error) {
	return r.learned[userID], nil
}

func (r *fakeUserRepo) UnlearnAttack(userID, attackID uuid.UUID) error {
	r.learned[userID] = removeID(r.learned[userID], attackID)
	r.selected[userID] = removeID(r.selected[userID], attackID)
	return nil
}

func removeID(ids []uuid.UUID, target uuid.UUID) []uuid.UUID {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

func (r *fakeUserRepo) SetSelectedAttacks(userID uuid.UUID, attackIDs []uuid.UUID) error {
	r.selected[userID] = attackIDs
	return nil
}

func (r *fakeUserRepo) GetSelectedAttackIDs(userID uuid.UUID) ([]uuid.UUID, error) {
	return r.selected[userID], nil
}

func (r *fakeUserRepo) Leaderboard(limit int) ([]*models.LeaderboardEntry, error) {
	return nil, nil
}

// fakeAttackRepo est un repository d'attaques en mémoire
type fakeAttackRepo struct {
	attacks map[uuid.UUID]*models.Attack
	names   map[string]bool
}

func newFakeAttackRepo(attacks ...*models.Attack) *fakeAttackRepo {
	repo := &fakeAttackRepo{
		attacks: make(map[uuid.UUID]*models.Attack),
		names:   make(map[string]bool),
	}
	for _, a := range attacks {
		repo.attacks[a.ID] = a
		repo.names[a.Name] = true
	}
	return repo
}

func (r *fakeAttackRepo) CreateTx(tx *sqlx.Tx, attack *models.Attack) error { return errNoDB }

func (r *fakeAttackRepo) GetByID(id uuid.UUID) (*models.Attack, error) {
	attack, ok := r.attacks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return attack, nil
}

func (r *fakeAttackRepo) GetByIDs(ids []uuid.UUID) ([]*models.Attack, error) {
	out := make([]*models.Attack, 0, len(ids))
	for _, id := range ids {
		if attack, ok := r.attacks[id]; ok {
			out = append(out, attack)
		}
	}
	return out, nil
}

func (r *fakeAttackRepo) List() ([]*models.Attack, error) {
	var out []*models.Attack
	for _, attack := range r.attacks {
		out = append(out, attack)
	}
	return out, nil
}

func (r *fakeAttackRepo) NameExists(name string) (bool, error) {
	return r.names[name], nil
}

func (r *fakeAttackRepo) Beginx() (*sqlx.Tx, error) { return nil, errNoDB }

// fakeBattleRepo est un repository de batailles en mémoire
type fakeBattleRepo struct {
	battles     map[uuid.UUID]*models.Battle
	activeHuman map[uuid.UUID]bool
	openBetween bool
}

func newFakeBattleRepo() *fakeBattleRepo {
	return &fakeBattleRepo{
		battles:     make(map[uuid.UUID]*models.Battle),
		activeHuman: make(map[uuid.UUID]bool),
	}
}

func (r *fakeBattleRepo) Create(battle *models.Battle) error {
	r.battles[battle.ID] = battle
	return nil
}

func (r *fakeBattleRepo) GetByID(id uuid.UUID) (*models.Battle, error) {
	battle, ok := r.battles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return battle, nil
}

func (r *fakeBattleRepo) GetForUpdate(tx *sqlx.Tx, id uuid.UUID) (*models.Battle, error) {
	return r.GetByID(id)
}

func (r *fakeBattleRepo) Update(battle *models.Battle) error {
	r.battles[battle.ID] = battle
	return nil
}

func (r *fakeBattleRepo) UpdateTx(tx *sqlx.Tx, battle *models.Battle) error { return errNoDB }

func (r *fakeBattleRepo) Delete(id uuid.UUID) error {
	if _, ok := r.battles[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.battles, id)
	return nil
}

func (r *fakeBattleRepo) ListForUser(userID uuid.UUID) ([]*models.Battle, error) {
	var out []*models.Battle
	for _, battle := range r.battles {
		if battle.IsParticipant(userID) {
			out = append(out, battle)
		}
	}
	return out, nil
}

func (r *fakeBattleRepo) GetActiveForUser(userID uuid.UUID) (*models.Battle, error) {
	for _, battle := range r.battles {
		if battle.Status == models.BattleStatusActive && battle.IsParticipant(userID) {
			return battle, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeBattleRepo) HasActiveHumanBattle(userID uuid.UUID) (bool, error) {
	return r.activeHuman[userID], nil
}

func (r *fakeBattleRepo) HasOpenBattleBetween(a, b uuid.UUID) (bool, error) {
	return r.openBetween, nil
}

func (r *fakeBattleRepo) ListPendingReceived(userID uuid.UUID) ([]*models.Battle, error) {
	var out []*models.Battle
	for _, battle := range r.battles {
		if battle.Status == models.BattleStatusPending && battle.Player2ID == userID {
			out = append(out, battle)
		}
	}
	return out, nil
}

func (r *fakeBattleRepo) DeleteExpiredPending(before time.Time) (int, error) { return 0, nil }

func (r *fakeBattleRepo) ListFinishedIDs() ([]uuid.UUID, error) {
	var out []uuid.UUID
	for id, battle := range r.battles {
		if battle.Status == models.BattleStatusFinished {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *fakeBattleRepo) Beginx() (*sqlx.Tx, error) { return nil, errNoDB }

// fakeStatsRepo sert des stats d'usage en mémoire et enregistre les
// paramètres du dernier classement demandé
type fakeStatsRepo struct {
	stats       map[uuid.UUID]*models.AttackUsageStats
	leaderboard []*models.AttackLeaderboardEntry
	lastSort    string
	lastLimit   int
}

func newFakeStatsRepo() *fakeStatsRepo {
	return &fakeStatsRepo{stats: make(map[uuid.UUID]*models.AttackUsageStats)}
}

func (r *fakeStatsRepo) GetByAttackID(attackID uuid.UUID) (*models.AttackUsageStats, error) {
	stats, ok := r.stats[attackID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return stats, nil
}

func (r *fakeStatsRepo) GetByAttackIDTx(tx *sqlx.Tx, attackID uuid.UUID) (*models.AttackUsageStats, error) {
	return nil, errNoDB
}

func (r *fakeStatsRepo) UpsertTx(tx *sqlx.Tx, stats *models.AttackUsageStats) error { return errNoDB }

func (r *fakeStatsRepo) ResetAllTx(tx *sqlx.Tx) error { return errNoDB }

func (r *fakeStatsRepo) Leaderboard(sort string, limit int) ([]*models.AttackLeaderboardEntry, error) {
	r.lastSort = sort
	r.lastLimit = limit
	return r.leaderboard, nil
}

func (r *fakeStatsRepo) Beginx() (*sqlx.Tx, error) { return nil, errNoDB }

// fakeGameConfigRepo sert une configuration fixe
type fakeGameConfigRepo struct {
	cost int
}

func (r *fakeGameConfigRepo) Get() (*models.GameConfiguration, error) {
	return &models.GameConfiguration{ID: 1, AttackGenerationCost: r.cost}, nil
}

func (r *fakeGameConfigRepo) UpdateGenerationCost(cost int) error {
	r.cost = cost
	return nil
}

// fakeLLM retourne une réponse canned et enregistre les appels
type fakeLLM struct {
	response string
	err      error
	calls    int
	system   string
	user     string
}

func (c *fakeLLM) Complete(ctx context.Context, system, user string) (string, error) {
	c.calls++
	c.system = system
	c.user = user
	if c.err != nil {
		return "", c.err
	}
	return c.response, nil
}

// fakeStatsService enregistre les batailles traitées
type fakeStatsService struct {
	processed []uuid.UUID
}

func (s *fakeStatsService) ProcessFinishedBattle(battleID uuid.UUID) error {
	s.processed = append(s.processed, battleID)
	return nil
}

func (s *fakeStatsService) RecalculateAll() (*models.RecalculateStatsResponse, error) {
	return &models.RecalculateStatsResponse{}, nil
}
