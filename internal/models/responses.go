// internal/models/responses.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// AuthResponse représente la réponse de connexion/inscription
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// AttackWithCostRange est une attaque du loadout enrichie du coût réel
// calculé; les bornes ne sont exposées que lorsque c'est le tour de l'appelant
type AttackWithCostRange struct {
	BattleAttack
	CalculatedMinCost *int `json:"calculated_min_cost,omitempty"`
	CalculatedMaxCost *int `json:"calculated_max_cost,omitempty"`
}

// BattleView est la vue d'une bataille du point de vue de l'appelant
type BattleView struct {
	ID                    uuid.UUID                       `json:"id"`
	Player1               BasicUser                       `json:"player1"`
	Player2               BasicUser                       `json:"player2"`
	Status                string                          `json:"status"`
	WinnerID              *uuid.UUID                      `json:"winner_id,omitempty"`
	Player2IsAIControlled bool                            `json:"player2_is_ai_controlled"`
	TurnNumber            int                             `json:"turn_number"`
	WhoseTurn             Role                            `json:"whose_turn"`
	MyRole                Role                            `json:"my_role"`
	IsMyTurn              bool                            `json:"is_my_turn"`
	HP                    map[Role]int                    `json:"hp"`
	Momentum              map[Role]int                    `json:"momentum"`
	StatStages            map[Role]map[string]int         `json:"stat_stages"`
	CustomStatuses        map[Role]map[string]StatusValue `json:"custom_statuses"`
	MySelectedAttacks     []AttackWithCostRange           `json:"my_selected_attacks"`
	EventLog              []LogEntry                      `json:"event_log"`
	CreatedAt             time.Time                       `json:"created_at"`
	UpdatedAt             time.Time                       `json:"updated_at"`
}

// BattleSummary est la vue condensée pour les listes de batailles
type BattleSummary struct {
	ID                    uuid.UUID  `json:"id"`
	Player1               BasicUser  `json:"player1"`
	Player2               BasicUser  `json:"player2"`
	Status                string     `json:"status"`
	WinnerID              *uuid.UUID `json:"winner_id,omitempty"`
	Player2IsAIControlled bool       `json:"player2_is_ai_controlled"`
	TurnNumber            int        `json:"turn_number"`
	WhoseTurn             Role       `json:"whose_turn"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// GenerateAttacksResponse liste les attaques générées et le solde restant
type GenerateAttacksResponse struct {
	Attacks          []*Attack `json:"attacks"`
	CreditsSpent     int       `json:"credits_spent"`
	CreditsRemaining int       `json:"credits_remaining"`
}

// AttackStatsView est la vue publique des stats d'usage d'une attaque
type AttackStatsView struct {
	Attack *Attack           `json:"attack"`
	Stats  *AttackUsageStats `json:"stats"`
}

// LeaderboardEntry est une ligne du classement des joueurs
type LeaderboardEntry struct {
	Rank             int       `json:"rank"`
	UserID           uuid.UUID `json:"user_id"`
	Username         string    `json:"username"`
	TotalWins        int       `json:"total_wins"`
	TotalLosses      int       `json:"total_losses"`
	TotalDamageDealt int64     `json:"total_damage_dealt"`
}

// AttackLeaderboardEntry est une ligne du classement des attaques
type AttackLeaderboardEntry struct {
	Rank             int       `json:"rank"`
	AttackID         uuid.UUID `json:"attack_id"`
	Name             string    `json:"name"`
	Emoji            string    `json:"emoji"`
	TimesUsed        int       `json:"times_used"`
	TotalWins        int       `json:"total_wins"`
	TotalLosses      int       `json:"total_losses"`
	TotalDamageDealt int64     `json:"total_damage_dealt"`
	TotalHealingDone int64     `json:"total_healing_done"`
}

// RecalculateStatsResponse résume un recalcul administrateur
type RecalculateStatsResponse struct {
	BattlesReplayed int `json:"battles_replayed"`
	AttacksUpdated  int `json:"attacks_updated"`
}
