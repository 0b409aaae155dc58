package models

import (
	"testing"

	"github.com/google/uuid"
)

// Les scripts d'une même insertion partagent le même horodatage: l'ordre
// d'exécution ON_USE repose sur la position figée à la création
func TestStampScriptPositions(t *testing.T) {
	attack := &Attack{
		ID: uuid.New(),
		Scripts: []*Script{
			{Name: "first", Position: 99},
			{Name: "second"},
			{Name: "third"},
		},
	}

	attack.StampScriptPositions()

	for i, s := range attack.Scripts {
		if s.Position != i {
			t.Errorf("script %q position = %d, expected %d", s.Name, s.Position, i)
		}
	}
}

func TestScriptNormalizeForcesOnUseTriple(t *testing.T) {
	s := &Script{
		TriggerWho:      TriggerWhoEnemy,
		TriggerWhen:     TriggerWhenOnUse,
		TriggerDuration: TriggerDurationPersistent,
	}
	s.Normalize()

	if s.TriggerWho != TriggerWhoMe || s.TriggerDuration != TriggerDurationOnce {
		t.Errorf("normalized ON_USE script = (%s, %s), expected (ME, ONCE)", s.TriggerWho, s.TriggerDuration)
	}
}

func TestScriptValidateRejectsBadTriples(t *testing.T) {
	cases := []Script{
		{TriggerWho: "SOMEONE", TriggerWhen: TriggerWhenOnUse, TriggerDuration: TriggerDurationOnce},
		{TriggerWho: TriggerWhoMe, TriggerWhen: "WHENEVER", TriggerDuration: TriggerDurationOnce},
		{TriggerWho: TriggerWhoMe, TriggerWhen: TriggerWhenOnUse, TriggerDuration: "FOREVER"},
		{TriggerWho: TriggerWhoEnemy, TriggerWhen: TriggerWhenOnUse, TriggerDuration: TriggerDurationOnce},
	}
	for i, s := range cases {
		if err := s.Validate(); err == nil {
			t.Errorf("case %d: expected a validation error for %+v", i, s)
		}
	}

	good := Script{TriggerWho: TriggerWhoAny, TriggerWhen: TriggerWhenAfterTurn, TriggerDuration: TriggerDurationPersistent}
	if err := good.Validate(); err != nil {
		t.Errorf("valid triple rejected: %v", err)
	}
}
