package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"battle/internal/config"
	"battle/internal/models"
	"battle/internal/repository"
)

// StatsServiceInterface définit l'agrégateur de stats post-bataille
type StatsServiceInterface interface {
	ProcessFinishedBattle(battleID uuid.UUID) error
	RecalculateAll() (*models.RecalculateStatsResponse, error)
}

// StatsService implémente l'interface StatsServiceInterface en rejouant le
// journal d'événements d'une bataille terminée
type StatsService struct {
	stats   repository.StatsRepositoryInterface
	battles repository.BattleRepositoryInterface
	users   repository.UserRepositoryInterface
	game    config.GameConfig
}

// NewStatsService crée un nouveau service de stats
func NewStatsService(
	stats repository.StatsRepositoryInterface,
	battles repository.BattleRepositoryInterface,
	users repository.UserRepositoryInterface,
	game config.GameConfig,
) StatsServiceInterface {
	return &StatsService{stats: stats, battles: battles, users: users, game: game}
}

// battleReplay est le produit du rejeu d'un event_log
type battleReplay struct {
	// Dégâts et soins par attaque source
	damageByAttack  map[uuid.UUID]int64
	healingByAttack map[uuid.UUID]int64
	// Dégâts infligés par rôle (attribution via les entrées action)
	damageByRole map[models.Role]int64
}

// replayEventLog rejoue le journal: les entrées action portent le rôle
// acteur courant, les entrées damage/heal qui suivent lui sont attribuées
func replayEventLog(battle *models.Battle) *battleReplay {
	replay := &battleReplay{
		damageByAttack:  make(map[uuid.UUID]int64),
		healingByAttack: make(map[uuid.UUID]int64),
		damageByRole:    make(map[models.Role]int64),
	}

	currentActor := models.RolePlayer1
	for _, entry := range battle.EventLog {
		switch entry.EffectType {
		case models.EffectAction:
			if entry.Source == models.LogSourcePlayer1 {
				currentActor = models.RolePlayer1
			} else if entry.Source == models.LogSourcePlayer2 {
				currentActor = models.RolePlayer2
			}
		case models.EffectDamage:
			dealt := detailInt64(entry.EffectDetails, "damage_dealt")
			replay.damageByRole[currentActor] += dealt
			if attackID, ok := detailUUID(entry.EffectDetails, "source_attack_id"); ok {
				replay.damageByAttack[attackID] += dealt
			}
		case models.EffectHeal:
			healed := detailInt64(entry.EffectDetails, "healing_done")
			if attackID, ok := detailUUID(entry.EffectDetails, "source_attack_id"); ok {
				replay.healingByAttack[attackID] += healed
			}
		}
	}
	return replay
}

func detailInt64(details map[string]interface{}, key string) int64 {
	switch v := details[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

func detailUUID(details map[string]interface{}, key string) (uuid.UUID, bool) {
	s, ok := details[key].(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// ProcessFinishedBattle agrège une bataille terminée: stats d'attaques,
// stats utilisateur et récompenses en crédits, en une seule transaction
func (s *StatsService) ProcessFinishedBattle(battleID uuid.UUID) error {
	battle, err := s.battles.GetByID(battleID)
	if err != nil {
		return err
	}
	if battle.Status != models.BattleStatusFinished {
		return fmt.Errorf("battle %s is not finished", battleID)
	}

	tx, err := s.stats.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.aggregateBattleTx(tx, battle); err != nil {
		return err
	}
	if err := s.applyUserResultsTx(tx, battle); err != nil {
		return err
	}

	return tx.Commit()
}

// aggregateBattleTx applique la contribution d'une bataille aux
// AttackUsageStats: times_used une fois par (attaque, bataille, joueur)
func (s *StatsService) aggregateBattleTx(tx *sqlx.Tx, battle *models.Battle) error {
	replay := replayEventLog(battle)

	for _, role := range []models.Role{models.RolePlayer1, models.RolePlayer2} {
		used := battle.AttacksUsed[role]
		won, vsBot := battleOutcome(battle, role)

		for _, attackID := range used {
			stats, err := s.stats.GetByAttackIDTx(tx, attackID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					// Attaque supprimée depuis: référence structurelle seulement
					logrus.WithFields(logrus.Fields{
						"battle_id": battle.ID,
						"attack_id": attackID,
					}).Warn("Attack no longer exists, skipping stats aggregation")
					continue
				}
				return err
			}

			stats.TimesUsed++
			switch {
			case won && vsBot:
				stats.WinsVsBot++
			case won:
				stats.WinsVsHuman++
			case vsBot:
				stats.LossesVsBot++
			default:
				stats.LossesVsHuman++
			}
			stats.TotalDamageDealt += replay.damageByAttack[attackID]
			stats.TotalHealingDone += replay.healingByAttack[attackID]

			// Co-utilisation: paires d'attaques distinctes du même joueur
			for _, otherID := range used {
				if otherID == attackID {
					continue
				}
				stats.CoUsedWithCounts[otherID.String()]++
			}

			if err := s.stats.UpsertTx(tx, stats); err != nil {
				return err
			}
		}
	}
	return nil
}

// battleOutcome catégorise le résultat d'un rôle; vs_bot est une propriété
// de la bataille (player2 piloté par l'IA) et s'applique aux deux camps
func battleOutcome(battle *models.Battle, role models.Role) (won, vsBot bool) {
	won = battle.WinnerID != nil && *battle.WinnerID == battle.PlayerID(role)
	vsBot = battle.Player2IsAIControlled
	return won, vsBot
}

// applyUserResultsTx met à jour les stats agrégées des joueurs et crédite
// les récompenses (chemin vivant uniquement, pas le recalcul administrateur)
func (s *StatsService) applyUserResultsTx(tx *sqlx.Tx, battle *models.Battle) error {
	replay := replayEventLog(battle)

	for _, role := range []models.Role{models.RolePlayer1, models.RolePlayer2} {
		userID := battle.PlayerID(role)
		user, err := s.users.GetByID(userID)
		if err != nil {
			return err
		}

		won, vsBot := battleOutcome(battle, role)

		switch {
		case won && vsBot:
			user.Stats.WinsVsBot++
		case won:
			user.Stats.WinsVsHuman++
		case vsBot:
			user.Stats.LossesVsBot++
		default:
			user.Stats.LossesVsHuman++
		}
		user.Stats.TotalDamageDealt += replay.damageByRole[role]

		if err := s.users.UpdateUserStatsTx(tx, userID, user.Stats); err != nil {
			return err
		}

		reward := s.game.CreditsLoss
		if won {
			if vsBot {
				reward = s.game.CreditsWinVsBot
			} else {
				reward = s.game.CreditsWinVsHuman
			}
		}
		if err := s.users.AdjustCreditsTx(tx, userID, reward); err != nil {
			return err
		}
	}
	return nil
}

// RecalculateAll remet toutes les AttackUsageStats à zéro puis rejoue
// chaque bataille terminée; les crédits et stats joueur ne sont pas rejoués
func (s *StatsService) RecalculateAll() (*models.RecalculateStatsResponse, error) {
	ids, err := s.battles.ListFinishedIDs()
	if err != nil {
		return nil, err
	}

	tx, err := s.stats.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.stats.ResetAllTx(tx); err != nil {
		return nil, err
	}

	touched := make(map[uuid.UUID]bool)
	for _, id := range ids {
		battle, err := s.battles.GetByID(id)
		if err != nil {
			return nil, err
		}
		if err := s.aggregateBattleTx(tx, battle); err != nil {
			return nil, err
		}
		for _, used := range battle.AttacksUsed {
			for _, attackID := range used {
				touched[attackID] = true
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"battles_replayed": len(ids),
		"attacks_updated":  len(touched),
	}).Info("📊 Attack usage stats recalculated")

	return &models.RecalculateStatsResponse{
		BattlesReplayed: len(ids),
		AttacksUpdated:  len(touched),
	}, nil
}
