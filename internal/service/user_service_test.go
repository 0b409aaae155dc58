package service

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"battle/internal/config"
	"battle/internal/models"
)

func newUserFixture() (UserServiceInterface, *fakeUserRepo, *fakeAttackRepo) {
	users := newFakeUserRepo()
	attacks := newFakeAttackRepo()
	jwtCfg := config.JWTConfig{Secret: "test-secret", ExpirationTime: time.Hour}
	game := config.GameConfig{StartingCredits: 100}
	return NewUserService(users, attacks, jwtCfg, game), users, attacks
}

func TestRegisterDefaults(t *testing.T) {
	svc, _, _ := newUserFixture()

	resp, err := svc.Register(&models.RegisterRequest{
		Username:  "alice",
		Email:     "alice@example.com",
		Password:  "correct-horse",
		Password2: "correct-horse",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	user := resp.User
	if user.HP != 100 || user.Attack != 100 || user.Defense != 100 || user.Speed != 100 {
		t.Errorf("default stats = %d/%d/%d/%d, expected 100 each", user.HP, user.Attack, user.Defense, user.Speed)
	}
	if user.Credits != 100 {
		t.Errorf("credits = %d, expected starting credits", user.Credits)
	}
	if !user.AllowBotChallenges {
		t.Error("bot challenges must default to allowed")
	}
	if user.Role != models.UserRolePlayer {
		t.Errorf("role = %q, expected player", user.Role)
	}
	if user.PasswordHash == "correct-horse" || user.PasswordHash == "" {
		t.Error("password must be stored hashed")
	}
	if resp.Token == "" {
		t.Error("registration must issue a token")
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc, _, _ := newUserFixture()

	req := &models.RegisterRequest{Username: "alice", Email: "a@example.com", Password: "correct-horse"}
	if _, err := svc.Register(req); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if _, err := svc.Register(req); err != ErrUsernameTaken {
		t.Errorf("err = %v, expected ErrUsernameTaken", err)
	}
}

func TestLogin(t *testing.T) {
	svc, _, _ := newUserFixture()

	if _, err := svc.Register(&models.RegisterRequest{
		Username: "alice", Email: "a@example.com", Password: "correct-horse",
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.Login(&models.LoginRequest{Username: "alice", Password: "wrong"}); err != ErrInvalidCredentials {
		t.Errorf("bad password: err = %v, expected ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(&models.LoginRequest{Username: "nobody", Password: "x"}); err != ErrInvalidCredentials {
		t.Errorf("unknown user: err = %v, expected ErrInvalidCredentials", err)
	}

	resp, err := svc.Login(&models.LoginRequest{Username: "alice", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.Token == "" || resp.User.Username != "alice" {
		t.Errorf("response = %+v", resp)
	}
}

func TestUpdateBaseStatsValidation(t *testing.T) {
	svc, users, _ := newUserFixture()
	user := &models.User{ID: uuid.New(), Username: "alice"}
	users.users[user.ID] = user

	cases := []struct {
		name string
		req  models.UpdateStatsRequest
	}{
		{"sum too low", models.UpdateStatsRequest{HP: 100, Attack: 100, Defense: 100, Speed: 90}},
		{"sum too high", models.UpdateStatsRequest{HP: 110, Attack: 100, Defense: 100, Speed: 100}},
		{"below minimum", models.UpdateStatsRequest{HP: 0, Attack: 200, Defense: 100, Speed: 100}},
		{"not a step multiple", models.UpdateStatsRequest{HP: 105, Attack: 95, Defense: 100, Speed: 100}},
	}
	for _, tc := range cases {
		if _, err := svc.UpdateBaseStats(user.ID, &tc.req); err != ErrStatSumViolation {
			t.Errorf("%s: err = %v, expected ErrStatSumViolation", tc.name, err)
		}
	}

	updated, err := svc.UpdateBaseStats(user.ID, &models.UpdateStatsRequest{
		HP: 160, Attack: 120, Defense: 60, Speed: 60,
	})
	if err != nil {
		t.Fatalf("valid reallocation: %v", err)
	}
	if updated.HP != 160 || updated.Attack != 120 || updated.Defense != 60 || updated.Speed != 60 {
		t.Errorf("stats = %d/%d/%d/%d", updated.HP, updated.Attack, updated.Defense, updated.Speed)
	}
}

func TestSelectAttacks(t *testing.T) {
	svc, users, attackRepo := newUserFixture()
	user := &models.User{ID: uuid.New(), Username: "alice"}
	users.users[user.ID] = user

	learned := make([]uuid.UUID, 7)
	for i := range learned {
		id := uuid.New()
		learned[i] = id
		attackRepo.attacks[id] = &models.Attack{ID: id, Name: "Move"}
	}
	users.learned[user.ID] = learned

	if err := svc.SelectAttacks(user.ID, learned); err != ErrTooManySelected {
		t.Errorf("7 attacks: err = %v, expected ErrTooManySelected", err)
	}
	if err := svc.SelectAttacks(user.ID, []uuid.UUID{uuid.New()}); err != ErrAttackNotLearned {
		t.Errorf("unlearned attack: err = %v, expected ErrAttackNotLearned", err)
	}

	if err := svc.SelectAttacks(user.ID, learned[:6]); err != nil {
		t.Fatalf("SelectAttacks: %v", err)
	}
	selected, err := svc.GetSelectedAttacks(user.ID)
	if err != nil {
		t.Fatalf("GetSelectedAttacks: %v", err)
	}
	if len(selected) != 6 {
		t.Errorf("selected = %d, expected 6", len(selected))
	}
}

func TestGetSelectedAttacksEmpty(t *testing.T) {
	svc, users, _ := newUserFixture()
	user := &models.User{ID: uuid.New(), Username: "alice"}
	users.users[user.ID] = user

	selected, err := svc.GetSelectedAttacks(user.ID)
	if err != nil {
		t.Fatalf("GetSelectedAttacks: %v", err)
	}
	if selected == nil || len(selected) != 0 {
		t.Errorf("selected = %v, expected empty non-nil slice", selected)
	}
}
