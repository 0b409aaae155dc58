package service

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"battle/internal/models"
	"battle/internal/repository"
)

func newTestAttackService() (AttackServiceInterface, *fakeAttackRepo, *fakeStatsRepo, *fakeUserRepo) {
	attackRepo := newFakeAttackRepo()
	statsRepo := newFakeStatsRepo()
	userRepo := newFakeUserRepo()
	return NewAttackService(attackRepo, statsRepo, userRepo), attackRepo, statsRepo, userRepo
}

// Unlink retire l'attaque de la collection et du loadout, sans toucher
// à l'entité attaque elle-même
func TestUnlinkRemovesFromCollectionAndLoadout(t *testing.T) {
	svc, attackRepo, _, userRepo := newTestAttackService()

	userID := uuid.New()
	tackle := &models.Attack{ID: uuid.New(), Name: "Tackle", MomentumCost: 20}
	other := &models.Attack{ID: uuid.New(), Name: "Growl", MomentumCost: 10}
	attackRepo.attacks[tackle.ID] = tackle
	attackRepo.attacks[other.ID] = other
	userRepo.learned[userID] = []uuid.UUID{tackle.ID, other.ID}
	userRepo.selected[userID] = []uuid.UUID{tackle.ID, other.ID}

	if err := svc.Unlink(userID, tackle.ID); err != nil {
		t.Fatalf("Unlink: %v", err)
	}

	if len(userRepo.learned[userID]) != 1 || userRepo.learned[userID][0] != other.ID {
		t.Errorf("collection après Unlink = %v, attendu [%s]", userRepo.learned[userID], other.ID)
	}
	if len(userRepo.selected[userID]) != 1 || userRepo.selected[userID][0] != other.ID {
		t.Errorf("loadout après Unlink = %v, attendu [%s]", userRepo.selected[userID], other.ID)
	}
	if _, err := svc.Get(tackle.ID); err != nil {
		t.Errorf("l'attaque doit survivre au Unlink, Get: %v", err)
	}
}

func TestUnlinkUnknownAttack(t *testing.T) {
	svc, _, _, _ := newTestAttackService()

	err := svc.Unlink(uuid.New(), uuid.New())
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("Unlink attaque inconnue = %v, attendu ErrNotFound", err)
	}
}

// Unlink d'une attaque jamais apprise ne fait rien et réussit
func TestUnlinkIsIdempotent(t *testing.T) {
	svc, attackRepo, _, _ := newTestAttackService()

	tackle := &models.Attack{ID: uuid.New(), Name: "Tackle", MomentumCost: 20}
	attackRepo.attacks[tackle.ID] = tackle

	if err := svc.Unlink(uuid.New(), tackle.ID); err != nil {
		t.Fatalf("Unlink sans apprentissage préalable: %v", err)
	}
}

func TestLeaderboardSortValidation(t *testing.T) {
	svc, _, statsRepo, _ := newTestAttackService()
	statsRepo.leaderboard = []*models.AttackLeaderboardEntry{
		{Rank: 1, Name: "Tackle", TimesUsed: 12},
	}

	if _, err := svc.Leaderboard("victories", 50); !errors.Is(err, ErrInvalidLeaderboardSort) {
		t.Fatalf("tri hors liste blanche = %v, attendu ErrInvalidLeaderboardSort", err)
	}

	// Un tri vide retombe sur "used"
	entries, err := svc.Leaderboard("", 25)
	if err != nil {
		t.Fatalf("Leaderboard tri vide: %v", err)
	}
	if statsRepo.lastSort != "used" || statsRepo.lastLimit != 25 {
		t.Errorf("tri/limite transmis = %q/%d, attendu used/25", statsRepo.lastSort, statsRepo.lastLimit)
	}
	if len(entries) != 1 || entries[0].Name != "Tackle" {
		t.Errorf("entrées inattendues: %+v", entries)
	}

	for _, sort := range []string{"used", "wins", "damage", "healing"} {
		if _, err := svc.Leaderboard(sort, 10); err != nil {
			t.Errorf("tri %q rejeté: %v", sort, err)
		}
		if statsRepo.lastSort != sort {
			t.Errorf("tri transmis = %q, attendu %q", statsRepo.lastSort, sort)
		}
	}
}
