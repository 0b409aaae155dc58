package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"battle/internal/config"
	"battle/internal/models"
	"battle/internal/repository"
)

// Erreurs du cycle de vie des batailles
var (
	ErrSelfChallenge        = errors.New("you cannot challenge yourself")
	ErrDuplicateChallenge   = errors.New("a pending or active battle already exists with this opponent")
	ErrChallengerBusy       = errors.New("you are already in an active battle against a human")
	ErrTargetBusy           = errors.New("opponent is already in an active battle against a human")
	ErrBotChallengesDenied  = errors.New("opponent does not allow bot challenges")
	ErrBattleNotPending     = errors.New("battle is not pending")
	ErrNotChallengeTarget   = errors.New("only the challenged player may do this")
	ErrNotChallengeInitiator = errors.New("only the challenger may do this")
	ErrNotParticipant       = errors.New("you are not a participant of this battle")
)

// BattleServiceInterface définit le cycle de vie et les actions de bataille
type BattleServiceInterface interface {
	Initiate(challengerID uuid.UUID, req *models.InitiateBattleRequest) (*models.Battle, error)
	Accept(userID, battleID uuid.UUID) (*models.Battle, error)
	Decline(userID, battleID uuid.UUID) (*models.Battle, error)
	Cancel(userID, battleID uuid.UUID) error
	Concede(userID, battleID uuid.UUID) (*models.Battle, error)
	UseAttack(userID, battleID, attackID uuid.UUID) (*models.Battle, error)
	GetBattle(userID, battleID uuid.UUID) (*models.Battle, error)
	GetActiveBattle(userID uuid.UUID) (*models.Battle, error)
	ListBattles(userID uuid.UUID) ([]*models.Battle, error)
	ListPendingRequests(userID uuid.UUID) ([]*models.Battle, error)
	BuildView(battle *models.Battle, callerID uuid.UUID) (*models.BattleView, error)
	BuildSummary(battle *models.Battle) (*models.BattleSummary, error)
}

// BattleService implémente l'interface BattleServiceInterface
type BattleService struct {
	battles  repository.BattleRepositoryInterface
	users    repository.UserRepositoryInterface
	attacks  repository.AttackRepositoryInterface
	pipeline PipelineInterface
	stats    StatsServiceInterface
	calc     CalculatorInterface
	game     config.GameConfig
}

// NewBattleService crée un nouveau service de bataille
func NewBattleService(
	battles repository.BattleRepositoryInterface,
	users repository.UserRepositoryInterface,
	attacks repository.AttackRepositoryInterface,
	pipeline PipelineInterface,
	stats StatsServiceInterface,
	calc CalculatorInterface,
	game config.GameConfig,
) BattleServiceInterface {
	return &BattleService{
		battles:  battles,
		users:    users,
		attacks:  attacks,
		pipeline: pipeline,
		stats:    stats,
		calc:     calc,
		game:     game,
	}
}

// Initiate crée un défi; avec fight_as_bot la bataille démarre immédiatement
// avec player2 piloté par l'IA
func (s *BattleService) Initiate(challengerID uuid.UUID, req *models.InitiateBattleRequest) (*models.Battle, error) {
	if challengerID == req.OpponentID {
		return nil, ErrSelfChallenge
	}

	challenger, err := s.users.GetByID(challengerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load challenger: %w", err)
	}
	opponent, err := s.users.GetByID(req.OpponentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load opponent: %w", err)
	}

	if open, err := s.battles.HasOpenBattleBetween(challengerID, req.OpponentID); err != nil {
		return nil, err
	} else if open {
		return nil, ErrDuplicateChallenge
	}
	if busy, err := s.battles.HasActiveHumanBattle(challengerID); err != nil {
		return nil, err
	} else if busy {
		return nil, ErrChallengerBusy
	}
	if busy, err := s.battles.HasActiveHumanBattle(req.OpponentID); err != nil {
		return nil, err
	} else if busy {
		return nil, ErrTargetBusy
	}
	if req.FightAsBot && !opponent.AllowBotChallenges {
		return nil, ErrBotChallengesDenied
	}

	now := time.Now().UTC()
	battle := &models.Battle{
		ID:                    uuid.New(),
		Player1ID:             challengerID,
		Player2ID:             req.OpponentID,
		Status:                models.BattleStatusPending,
		Player2IsAIControlled: req.FightAsBot,
		TurnNumber:            1,
		WhoseTurn:             models.RolePlayer1,
		HP:                    map[models.Role]int{},
		Momentum:              map[models.Role]int{},
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if req.FightAsBot {
		if err := s.activate(battle, challenger, opponent); err != nil {
			return nil, err
		}
		battle.Status = models.BattleStatusActive
	}

	if err := s.battles.Create(battle); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"battle_id":    battle.ID,
		"challenger":   challenger.Username,
		"opponent":     opponent.Username,
		"fight_as_bot": req.FightAsBot,
	}).Info("⚔️ Battle challenge created")

	return battle, nil
}

// activate fige les loadouts et initialise l'état de combat
func (s *BattleService) activate(battle *models.Battle, player1, player2 *models.User) error {
	for role, user := range map[models.Role]*models.User{
		models.RolePlayer1: player1,
		models.RolePlayer2: player2,
	} {
		selected, err := s.users.GetSelectedAttackIDs(user.ID)
		if err != nil {
			return err
		}
		attacks, err := s.attacks.GetByIDs(selected)
		if err != nil {
			return err
		}
		snapshot := make([]models.BattleAttack, 0, len(attacks))
		for _, a := range attacks {
			snapshot = append(snapshot, models.SnapshotAttack(a))
		}
		if battle.BattleAttacks == nil {
			battle.BattleAttacks = make(map[models.Role][]models.BattleAttack, 2)
		}
		battle.BattleAttacks[role] = snapshot
		battle.HP[role] = user.HP
		battle.Momentum[role] = s.game.BaseMomentum
	}

	battle.StatStages = map[models.Role]map[string]int{
		models.RolePlayer1: {},
		models.RolePlayer2: {},
	}
	battle.CustomStatuses = map[models.Role]map[string]models.StatusValue{
		models.RolePlayer1: {},
		models.RolePlayer2: {},
	}
	battle.AttacksUsed = map[models.Role][]uuid.UUID{}
	battle.RegisteredScripts = nil
	battle.EventLog = nil
	battle.TurnNumber = 1
	battle.WhoseTurn = models.RolePlayer1
	return nil
}

// Accept active un défi en attente (player2 uniquement)
func (s *BattleService) Accept(userID, battleID uuid.UUID) (*models.Battle, error) {
	battle, err := s.battles.GetByID(battleID)
	if err != nil {
		return nil, err
	}
	if battle.Status != models.BattleStatusPending {
		return nil, ErrBattleNotPending
	}
	if battle.Player2ID != userID {
		return nil, ErrNotChallengeTarget
	}

	// La contrainte active-contre-humain est revérifiée à l'acceptation
	for _, id := range []uuid.UUID{battle.Player1ID, battle.Player2ID} {
		busy, err := s.battles.HasActiveHumanBattle(id)
		if err != nil {
			return nil, err
		}
		if busy {
			if id == userID {
				return nil, ErrChallengerBusy
			}
			return nil, ErrTargetBusy
		}
	}

	player1, err := s.users.GetByID(battle.Player1ID)
	if err != nil {
		return nil, err
	}
	player2, err := s.users.GetByID(battle.Player2ID)
	if err != nil {
		return nil, err
	}

	if err := s.activate(battle, player1, player2); err != nil {
		return nil, err
	}
	battle.Status = models.BattleStatusActive

	if err := s.battles.Update(battle); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"battle_id": battle.ID,
		"player1":   player1.Username,
		"player2":   player2.Username,
	}).Info("🔥 Battle activated")

	return battle, nil
}

// Decline refuse un défi en attente (player2 uniquement)
func (s *BattleService) Decline(userID, battleID uuid.UUID) (*models.Battle, error) {
	battle, err := s.battles.GetByID(battleID)
	if err != nil {
		return nil, err
	}
	if battle.Status != models.BattleStatusPending {
		return nil, ErrBattleNotPending
	}
	if battle.Player2ID != userID {
		return nil, ErrNotChallengeTarget
	}

	battle.Status = models.BattleStatusDeclined
	if err := s.battles.Update(battle); err != nil {
		return nil, err
	}
	return battle, nil
}

// Cancel retire un défi en attente (player1 uniquement, suppression)
func (s *BattleService) Cancel(userID, battleID uuid.UUID) error {
	battle, err := s.battles.GetByID(battleID)
	if err != nil {
		return err
	}
	if battle.Status != models.BattleStatusPending {
		return ErrBattleNotPending
	}
	if battle.Player1ID != userID {
		return ErrNotChallengeInitiator
	}
	return s.battles.Delete(battleID)
}

// Concede abandonne une bataille active; l'adversaire gagne et la chaîne de
// récompenses se déclenche
func (s *BattleService) Concede(userID, battleID uuid.UUID) (*models.Battle, error) {
	tx, err := s.battles.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	battle, err := s.battles.GetForUpdate(tx, battleID)
	if err != nil {
		return nil, err
	}
	role, ok := battle.RoleOf(userID)
	if !ok {
		return nil, ErrNotParticipant
	}
	if battle.Status != models.BattleStatusActive {
		return nil, ErrBattleNotActive
	}

	winner := role.Other()
	winnerID := battle.PlayerID(winner)
	battle.Status = models.BattleStatusFinished
	battle.WinnerID = &winnerID

	loser, err := s.users.GetByID(userID)
	if err != nil {
		return nil, err
	}
	battle.AppendLog(models.LogEntry{
		Source:     models.LogSourceSystem,
		Text:       fmt.Sprintf("%s conceded the battle.", loser.Username),
		EffectType: models.EffectFaint,
		Turn:       battle.TurnNumber,
		Timestamp:  time.Now().UTC(),
	})

	if err := s.battles.UpdateTx(tx, battle); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if err := s.stats.ProcessFinishedBattle(battle.ID); err != nil {
		logrus.WithField("battle_id", battle.ID).WithError(err).Error("Failed to process battle stats after concede")
	}

	return battle, nil
}

// UseAttack exécute une action de tour sous verrou de ligne, enchaîne les
// tours IA, commit atomiquement et déclenche l'agrégation si la bataille
// se termine
func (s *BattleService) UseAttack(userID, battleID, attackID uuid.UUID) (*models.Battle, error) {
	tx, err := s.battles.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	battle, err := s.battles.GetForUpdate(tx, battleID)
	if err != nil {
		return nil, err
	}
	role, ok := battle.RoleOf(userID)
	if !ok {
		return nil, ErrNotParticipant
	}

	players, err := s.loadPlayers(battle)
	if err != nil {
		return nil, err
	}

	if err := s.pipeline.ExecuteAction(battle, players, role, attackID); err != nil {
		return nil, err
	}
	s.pipeline.RunAITurns(battle, players)

	if err := s.battles.UpdateTx(tx, battle); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if battle.Status == models.BattleStatusFinished {
		if err := s.stats.ProcessFinishedBattle(battle.ID); err != nil {
			logrus.WithField("battle_id", battle.ID).WithError(err).Error("Failed to process battle stats")
		}
	}

	return battle, nil
}

func (s *BattleService) loadPlayers(battle *models.Battle) (map[models.Role]*models.User, error) {
	player1, err := s.users.GetByID(battle.Player1ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load player1: %w", err)
	}
	player2, err := s.users.GetByID(battle.Player2ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load player2: %w", err)
	}
	return map[models.Role]*models.User{
		models.RolePlayer1: player1,
		models.RolePlayer2: player2,
	}, nil
}

// GetBattle retourne une bataille visible par l'appelant
func (s *BattleService) GetBattle(userID, battleID uuid.UUID) (*models.Battle, error) {
	battle, err := s.battles.GetByID(battleID)
	if err != nil {
		return nil, err
	}
	if !battle.IsParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return battle, nil
}

// GetActiveBattle retourne la bataille active de l'appelant
func (s *BattleService) GetActiveBattle(userID uuid.UUID) (*models.Battle, error) {
	return s.battles.GetActiveForUser(userID)
}

// ListBattles liste les batailles de l'appelant; les défis en attente
// expirés sont moissonnés au passage
func (s *BattleService) ListBattles(userID uuid.UUID) ([]*models.Battle, error) {
	s.reapExpiredPending()
	return s.battles.ListForUser(userID)
}

// ListPendingRequests liste les défis en attente reçus par l'appelant;
// les défis expirés sont moissonnés au passage
func (s *BattleService) ListPendingRequests(userID uuid.UUID) ([]*models.Battle, error) {
	s.reapExpiredPending()
	return s.battles.ListPendingReceived(userID)
}

// reapExpiredPending supprime les défis en attente plus vieux que le délai
// configuré; idempotent, un échec n'empêche pas le listage
func (s *BattleService) reapExpiredPending() {
	cutoff := time.Now().UTC().Add(-s.game.PendingBattleExpiry)
	if reaped, err := s.battles.DeleteExpiredPending(cutoff); err != nil {
		logrus.WithError(err).Warn("Failed to reap expired pending battles")
	} else if reaped > 0 {
		logrus.WithField("count", reaped).Debug("Reaped expired pending battles")
	}
}

// BuildView construit la vue de bataille du point de vue de l'appelant;
// les bornes de coût ne sont calculées que lorsque c'est son tour
func (s *BattleService) BuildView(battle *models.Battle, callerID uuid.UUID) (*models.BattleView, error) {
	role, ok := battle.RoleOf(callerID)
	if !ok {
		return nil, ErrNotParticipant
	}

	players, err := s.loadPlayers(battle)
	if err != nil {
		return nil, err
	}

	isMyTurn := battle.Status == models.BattleStatusActive && battle.WhoseTurn == role
	selected := make([]models.AttackWithCostRange, 0, len(battle.BattleAttacks[role]))
	for _, attack := range battle.BattleAttacks[role] {
		entry := models.AttackWithCostRange{BattleAttack: attack}
		if isMyTurn {
			effSpeed := s.calc.ModifiedStat(players[role].Speed, battle.StatStages[role]["speed"])
			min, max := s.calc.MomentumCostRange(attack.MomentumCost, effSpeed)
			entry.CalculatedMinCost = &min
			entry.CalculatedMaxCost = &max
		}
		selected = append(selected, entry)
	}

	return &models.BattleView{
		ID:                    battle.ID,
		Player1:               players[models.RolePlayer1].Basic(),
		Player2:               players[models.RolePlayer2].Basic(),
		Status:                battle.Status,
		WinnerID:              battle.WinnerID,
		Player2IsAIControlled: battle.Player2IsAIControlled,
		TurnNumber:            battle.TurnNumber,
		WhoseTurn:             battle.WhoseTurn,
		MyRole:                role,
		IsMyTurn:              isMyTurn,
		HP:                    battle.HP,
		Momentum:              battle.Momentum,
		StatStages:            battle.StatStages,
		CustomStatuses:        battle.CustomStatuses,
		MySelectedAttacks:     selected,
		EventLog:              battle.EventLog,
		CreatedAt:             battle.CreatedAt,
		UpdatedAt:             battle.UpdatedAt,
	}, nil
}

// BuildSummary construit la vue condensée pour les listes
func (s *BattleService) BuildSummary(battle *models.Battle) (*models.BattleSummary, error) {
	players, err := s.loadPlayers(battle)
	if err != nil {
		return nil, err
	}
	return &models.BattleSummary{
		ID:                    battle.ID,
		Player1:               players[models.RolePlayer1].Basic(),
		Player2:               players[models.RolePlayer2].Basic(),
		Status:                battle.Status,
		WinnerID:              battle.WinnerID,
		Player2IsAIControlled: battle.Player2IsAIControlled,
		TurnNumber:            battle.TurnNumber,
		WhoseTurn:             battle.WhoseTurn,
		CreatedAt:             battle.CreatedAt,
		UpdatedAt:             battle.UpdatedAt,
	}, nil
}
