// internal/models/requests.go
package models

import "github.com/google/uuid"

// RegisterRequest représente une demande de création de compte; le mot de
// passe est confirmé côté serveur et l'email est facultatif
type RegisterRequest struct {
	Username  string `json:"username" binding:"required,min=3,max=30"`
	Email     string `json:"email" binding:"omitempty,email"`
	Password  string `json:"password" binding:"required,min=8"`
	Password2 string `json:"password2" binding:"required,eqfield=Password"`
}

// LoginRequest représente une demande de connexion
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UpdateStatsRequest représente une réallocation des stats de base
type UpdateStatsRequest struct {
	HP      int `json:"hp" binding:"required"`
	Attack  int `json:"attack" binding:"required"`
	Defense int `json:"defense" binding:"required"`
	Speed   int `json:"speed" binding:"required"`
}

// UpdateProfileRequest représente une mise à jour du profil
type UpdateProfileRequest struct {
	AllowBotChallenges *bool   `json:"allow_bot_challenges,omitempty"`
	ProfilePrompt      *string `json:"profile_prompt,omitempty"`
}

// SelectAttacksRequest représente le choix du loadout (≤6 attaques apprises)
type SelectAttacksRequest struct {
	AttackIDs []uuid.UUID `json:"attack_ids" binding:"required"`
}

// InitiateBattleRequest représente un défi lancé à un adversaire
type InitiateBattleRequest struct {
	OpponentID uuid.UUID `json:"opponent_id" binding:"required"`
	FightAsBot bool      `json:"fight_as_bot,omitempty"`
}

// UseAttackRequest représente l'usage d'une attaque pendant son tour
type UseAttackRequest struct {
	AttackID uuid.UUID `json:"attack_id" binding:"required"`
}

// GenerateAttacksRequest représente une demande de génération d'attaques
type GenerateAttacksRequest struct {
	Concept           string      `json:"concept,omitempty"`
	FavoriteAttackIDs []uuid.UUID `json:"favorite_attack_ids,omitempty"`
}
