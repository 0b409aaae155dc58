package service

import (
	"math"
	"testing"

	"battle/internal/utils"
)

// fixedRNG retourne toujours les mêmes valeurs (bornes contrôlées)
type fixedRNG struct {
	f float64
	n int
}

func (r *fixedRNG) Float64() float64 { return r.f }
func (r *fixedRNG) Intn(n int) int {
	if r.n >= n {
		return n - 1
	}
	return r.n
}

func TestStageModifier(t *testing.T) {
	calc := NewCalculator(utils.NewSeededRNG(1))

	tests := []struct {
		stage    int
		expected float64
	}{
		{0, 1.0},
		{1, 1.5},
		{2, 2.0},
		{6, 4.0},
		{-1, 2.0 / 3.0},
		{-2, 0.5},
		{-6, 0.25},
		// Les paliers hors bornes sont ramenés dans [-6, +6]
		{7, 4.0},
		{-10, 0.25},
	}

	for _, tt := range tests {
		got := calc.StageModifier(tt.stage)
		if math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("StageModifier(%d) = %f, expected %f", tt.stage, got, tt.expected)
		}
	}
}

func TestModifiedStat(t *testing.T) {
	calc := NewCalculator(utils.NewSeededRNG(1))

	if got := calc.ModifiedStat(100, 2); got != 200 {
		t.Errorf("ModifiedStat(100, 2) = %d, expected 200", got)
	}
	if got := calc.ModifiedStat(100, -2); got != 50 {
		t.Errorf("ModifiedStat(100, -2) = %d, expected 50", got)
	}
	// floor(15 * 2/3) = 10
	if got := calc.ModifiedStat(15, -1); got != 10 {
		t.Errorf("ModifiedStat(15, -1) = %d, expected 10", got)
	}
	// Plancher à 1
	if got := calc.ModifiedStat(1, -6); got != 1 {
		t.Errorf("ModifiedStat(1, -6) = %d, expected 1", got)
	}
}

func TestCalculateDamageFormula(t *testing.T) {
	// Facteur aléatoire forcé à son minimum (0.85): rng.Float64() = 0
	calc := NewCalculator(&fixedRNG{f: 0.0})

	// base = (22*40*100/100)/50 + 2 = 19.6; 19.6*0.85 = 16.66 -> 16
	if got := calc.CalculateDamage(40, 100, 100); got != 16 {
		t.Errorf("CalculateDamage(40, 100, 100) = %d, expected 16", got)
	}

	// Facteur forcé au maximum (1.00): 19.6 -> 19
	calcMax := NewCalculator(&fixedRNG{f: 1.0})
	if got := calcMax.CalculateDamage(40, 100, 100); got != 19 {
		t.Errorf("CalculateDamage at max factor = %d, expected 19", got)
	}
}

func TestCalculateDamageMinimumOne(t *testing.T) {
	calc := NewCalculator(&fixedRNG{f: 0.0})

	// Puissance nulle contre une grosse défense: toujours au moins 1
	if got := calc.CalculateDamage(0, 10, 400); got != 1 {
		t.Errorf("CalculateDamage(0, 10, 400) = %d, expected 1", got)
	}
}

func TestCalculateDamageWithinBounds(t *testing.T) {
	calc := NewCalculator(utils.NewSeededRNG(42))

	for i := 0; i < 200; i++ {
		dmg := calc.CalculateDamage(40, 100, 100)
		// base = 19.6; bornes [floor(19.6*0.85), floor(19.6*1.00)]
		if dmg < 16 || dmg > 19 {
			t.Fatalf("damage %d out of [16, 19]", dmg)
		}
	}
}

func TestMomentumCostRange(t *testing.T) {
	calc := NewCalculator(utils.NewSeededRNG(1))

	tests := []struct {
		name        string
		baseCost    int
		speed       int
		expectedMin int
		expectedMax int
	}{
		// Vitesse de référence: multiplicateur 1.0, coût attendu = 40
		{"baseline speed", 40, 100, 34, 46},
		// Vitesse double: multiplicateur borné à 0.5, coût attendu = 20
		{"fast actor", 40, 200, 17, 23},
		// Vitesse très haute: même borne 0.5
		{"clamped fast", 40, 1000, 17, 23},
		// Vitesse moitié: multiplicateur 2 borné à 1.5, coût attendu = 60
		{"slow actor", 40, 50, 51, 69},
		// Vitesse nulle: borne haute
		{"zero speed", 40, 0, 51, 69},
		// Plancher à 1
		{"tiny cost", 1, 200, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			min, max := calc.MomentumCostRange(tt.baseCost, tt.speed)
			if min != tt.expectedMin || max != tt.expectedMax {
				t.Errorf("MomentumCostRange(%d, %d) = [%d, %d], expected [%d, %d]",
					tt.baseCost, tt.speed, min, max, tt.expectedMin, tt.expectedMax)
			}
		})
	}
}

func TestActualMomentumCostWithinRange(t *testing.T) {
	calc := NewCalculator(utils.NewSeededRNG(7))

	for i := 0; i < 200; i++ {
		cost := calc.ActualMomentumCost(40, 100)
		if cost < 34 || cost > 46 {
			t.Fatalf("actual cost %d out of [34, 46]", cost)
		}
	}
}

func TestActualMomentumCostMinimumOne(t *testing.T) {
	calc := NewCalculator(&fixedRNG{f: 0.0, n: 0})

	if cost := calc.ActualMomentumCost(1, 1000); cost < 1 {
		t.Errorf("actual cost %d below 1", cost)
	}
}
