package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"battle/internal/config"
	"battle/internal/constants"
	"battle/internal/models"
	"battle/internal/repository"
)

var (
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrStatSumViolation   = errors.New("base stats must be multiples of 10, each at least 10, summing to 400")
	ErrTooManySelected    = errors.New("at most 6 attacks can be selected")
	ErrAttackNotLearned   = errors.New("attack not learned")
)

// UserServiceInterface définit les opérations compte et profil
type UserServiceInterface interface {
	Register(req *models.RegisterRequest) (*models.AuthResponse, error)
	Login(req *models.LoginRequest) (*models.AuthResponse, error)
	GetUser(id uuid.UUID) (*models.User, error)
	ListOpponents(callerID uuid.UUID) ([]models.BasicUser, error)
	UpdateBaseStats(id uuid.UUID, req *models.UpdateStatsRequest) (*models.User, error)
	UpdateProfile(id uuid.UUID, req *models.UpdateProfileRequest) (*models.User, error)
	SelectAttacks(id uuid.UUID, attackIDs []uuid.UUID) error
	GetSelectedAttacks(id uuid.UUID) ([]*models.Attack, error)
	GetLearnedAttacks(id uuid.UUID) ([]*models.Attack, error)
	Leaderboard(limit int) ([]*models.LeaderboardEntry, error)
}

// UserService implémente l'interface UserServiceInterface
type UserService struct {
	users   repository.UserRepositoryInterface
	attacks repository.AttackRepositoryInterface
	jwt     config.JWTConfig
	game    config.GameConfig
}

// NewUserService crée un nouveau service utilisateur
func NewUserService(
	users repository.UserRepositoryInterface,
	attacks repository.AttackRepositoryInterface,
	jwtCfg config.JWTConfig,
	game config.GameConfig,
) UserServiceInterface {
	return &UserService{users: users, attacks: attacks, jwt: jwtCfg, game: game}
}

// userClaims sont les claims émis à la connexion, le middleware les relit
type userClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Register crée un compte avec la répartition de stats par défaut (100 partout)
func (s *UserService) Register(req *models.RegisterRequest) (*models.AuthResponse, error) {
	if _, err := s.users.GetByUsername(req.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:                 uuid.New(),
		Username:           req.Username,
		Email:              req.Email,
		PasswordHash:       string(hash),
		Role:               models.UserRolePlayer,
		HP:                 constants.StatPointTotal / 4,
		Attack:             constants.StatPointTotal / 4,
		Defense:            constants.StatPointTotal / 4,
		Speed:              constants.StatPointTotal / 4,
		Credits:            s.game.StartingCredits,
		AllowBotChallenges: true,
	}
	if err := s.users.Create(user); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
	}).Info("👤 User registered")

	return s.authResponse(user)
}

// Login vérifie le mot de passe et émet un JWT
func (s *UserService) Login(req *models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.users.GetByUsername(req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.users.TouchLastSeen(user.ID); err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("Failed to touch last_seen")
	}

	return s.authResponse(user)
}

func (s *UserService) authResponse(user *models.User) (*models.AuthResponse, error) {
	now := time.Now()
	claims := userClaims{
		UserID:   user.ID.String(),
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwt.ExpirationTime)),
			Subject:   user.ID.String(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwt.Secret))
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{Token: token, User: user}, nil
}

// GetUser retourne un utilisateur par id
func (s *UserService) GetUser(id uuid.UUID) (*models.User, error) {
	return s.users.GetByID(id)
}

// ListOpponents liste les autres joueurs, du plus récemment vu au plus ancien
func (s *UserService) ListOpponents(callerID uuid.UUID) ([]models.BasicUser, error) {
	users, err := s.users.List(callerID)
	if err != nil {
		return nil, err
	}
	opponents := make([]models.BasicUser, 0, len(users))
	for _, u := range users {
		opponents = append(opponents, u.Basic())
	}
	return opponents, nil
}

// UpdateBaseStats réalloue les points: multiples de 10, minimum 10, somme 400
func (s *UserService) UpdateBaseStats(id uuid.UUID, req *models.UpdateStatsRequest) (*models.User, error) {
	values := []int{req.HP, req.Attack, req.Defense, req.Speed}
	sum := 0
	for _, v := range values {
		if v < constants.StatPointMin || v%constants.StatPointStep != 0 {
			return nil, ErrStatSumViolation
		}
		sum += v
	}
	if sum != constants.StatPointTotal {
		return nil, ErrStatSumViolation
	}

	if err := s.users.UpdateBaseStats(id, req.HP, req.Attack, req.Defense, req.Speed); err != nil {
		return nil, err
	}
	return s.users.GetByID(id)
}

// UpdateProfile modifie allow_bot_challenges et/ou le prompt de profil
func (s *UserService) UpdateProfile(id uuid.UUID, req *models.UpdateProfileRequest) (*models.User, error) {
	if err := s.users.UpdateProfile(id, req.AllowBotChallenges, req.ProfilePrompt); err != nil {
		return nil, err
	}
	return s.users.GetByID(id)
}

// SelectAttacks remplace le loadout par défaut (≤6 attaques apprises)
func (s *UserService) SelectAttacks(id uuid.UUID, attackIDs []uuid.UUID) error {
	if len(attackIDs) > constants.MaxSelectedAttacks {
		return ErrTooManySelected
	}
	learned, err := s.users.GetLearnedAttackIDs(id)
	if err != nil {
		return err
	}
	owned := make(map[uuid.UUID]bool, len(learned))
	for _, aid := range learned {
		owned[aid] = true
	}
	for _, aid := range attackIDs {
		if !owned[aid] {
			return ErrAttackNotLearned
		}
	}
	return s.users.SetSelectedAttacks(id, attackIDs)
}

// GetSelectedAttacks retourne le loadout courant, dans l'ordre des positions
func (s *UserService) GetSelectedAttacks(id uuid.UUID) ([]*models.Attack, error) {
	ids, err := s.users.GetSelectedAttackIDs(id)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*models.Attack{}, nil
	}
	return s.attacks.GetByIDs(ids)
}

// GetLearnedAttacks retourne toutes les attaques apprises
func (s *UserService) GetLearnedAttacks(id uuid.UUID) ([]*models.Attack, error) {
	ids, err := s.users.GetLearnedAttackIDs(id)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*models.Attack{}, nil
	}
	return s.attacks.GetByIDs(ids)
}

// Leaderboard retourne le classement des joueurs
func (s *UserService) Leaderboard(limit int) ([]*models.LeaderboardEntry, error) {
	return s.users.Leaderboard(limit)
}
