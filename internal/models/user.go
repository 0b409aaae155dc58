// internal/models/user.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// User représente un joueur et ses stats de base
type User struct {
	ID                 uuid.UUID  `json:"id" db:"id"`
	Username           string     `json:"username" db:"username"`
	Email              string     `json:"email,omitempty" db:"email"`
	PasswordHash       string     `json:"-" db:"password_hash"`
	Role               string     `json:"role" db:"role"`
	HP                 int        `json:"hp" db:"hp"`
	Attack             int        `json:"attack" db:"attack"`
	Defense            int        `json:"defense" db:"defense"`
	Speed              int        `json:"speed" db:"speed"`
	Credits            int        `json:"credits" db:"credits"`
	AllowBotChallenges bool       `json:"allow_bot_challenges" db:"allow_bot_challenges"`
	ProfilePrompt      string     `json:"profile_prompt,omitempty" db:"profile_prompt"`
	ProfilePicture     []byte     `json:"-" db:"profile_picture"`
	Stats              UserStats  `json:"stats" db:"-"`
	LastSeen           time.Time  `json:"last_seen" db:"last_seen"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}

// UserStats agrège les résultats de combat d'un joueur
type UserStats struct {
	WinsVsHuman      int   `json:"wins_vs_human"`
	WinsVsBot        int   `json:"wins_vs_bot"`
	LossesVsHuman    int   `json:"losses_vs_human"`
	LossesVsBot      int   `json:"losses_vs_bot"`
	TotalDamageDealt int64 `json:"total_damage_dealt"`
}

// Rôles utilisateur
const (
	UserRolePlayer = "player"
	UserRoleAdmin  = "admin"
)

// BasicUser est la vue publique minimale d'un joueur
type BasicUser struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	LastSeen time.Time `json:"last_seen"`
}

// Basic retourne la vue publique minimale
func (u *User) Basic() BasicUser {
	return BasicUser{ID: u.ID, Username: u.Username, LastSeen: u.LastSeen}
}

// BaseStats retourne les stats de base sous forme de map (hp exclu)
func (u *User) BaseStats() map[string]int {
	return map[string]int{
		"attack":  u.Attack,
		"defense": u.Defense,
		"speed":   u.Speed,
	}
}
