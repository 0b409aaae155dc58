package service

import (
	"math"

	"battle/internal/constants"
	"battle/internal/utils"
)

// CalculatorInterface définit les méthodes du calculateur de combat
type CalculatorInterface interface {
	StageModifier(stage int) float64
	ModifiedStat(base, stage int) int
	CalculateDamage(power, attackerAttack, defenderDefense int) int
	MomentumCostRange(baseCost, effectiveSpeed int) (min, max int)
	ActualMomentumCost(baseCost, effectiveSpeed int) int
}

// Calculator implémente l'interface CalculatorInterface; toute la variance
// aléatoire passe par la source injectée
type Calculator struct {
	rng utils.RNG
}

// NewCalculator crée un nouveau calculateur de combat
func NewCalculator(rng utils.RNG) CalculatorInterface {
	return &Calculator{rng: rng}
}

// ClampStage ramène un palier de stat dans [-6, +6]
func ClampStage(stage int) int {
	if stage > constants.MaxStatStage {
		return constants.MaxStatStage
	}
	if stage < constants.MinStatStage {
		return constants.MinStatStage
	}
	return stage
}

// StageModifier retourne le multiplicateur d'un palier de stat:
// (2+s)/2 pour s >= 0, 2/(2+|s|) pour s < 0
func (c *Calculator) StageModifier(stage int) float64 {
	stage = ClampStage(stage)
	if stage >= 0 {
		return float64(2+stage) / 2.0
	}
	return 2.0 / float64(2-stage)
}

// ModifiedStat applique le palier à une stat de base:
// max(1, floor(base × multiplicateur))
func (c *Calculator) ModifiedStat(base, stage int) int {
	modified := int(math.Floor(float64(base) * c.StageModifier(stage)))
	if modified < 1 {
		modified = 1
	}
	return modified
}

// CalculateDamage calcule les dégâts d'une attaque: un seul tirage aléatoire
// dans [0.85, 1.00], arrondi vers le bas, minimum 1
func (c *Calculator) CalculateDamage(power, attackerAttack, defenderDefense int) int {
	if defenderDefense < 1 {
		defenderDefense = 1
	}

	base := (22.0*float64(power)*float64(attackerAttack)/float64(defenderDefense))/50.0 + 2.0

	spread := constants.DamageRandomFactorMax - constants.DamageRandomFactorMin
	factor := constants.DamageRandomFactorMin + c.rng.Float64()*spread

	damage := int(math.Floor(base * factor))
	if damage < 1 {
		damage = 1
	}
	return damage
}

// momentumMultiplier retourne le multiplicateur de coût dérivé de la vitesse
// effective: les joueurs rapides paient moins, bornage dans [0.5, 1.5]
func momentumMultiplier(effectiveSpeed int) float64 {
	if effectiveSpeed <= 0 {
		return constants.MomentumCostMultiplierMax
	}
	ratio := float64(effectiveSpeed) / float64(constants.BaselineSpeedForMomentum)
	multiplier := 1.0 / ratio
	if multiplier < constants.MomentumCostMultiplierMin {
		return constants.MomentumCostMultiplierMin
	}
	if multiplier > constants.MomentumCostMultiplierMax {
		return constants.MomentumCostMultiplierMax
	}
	return multiplier
}

// MomentumCostRange retourne les bornes [min, max] du coût réel d'une attaque
// pour une vitesse effective donnée, variance ±15%
func (c *Calculator) MomentumCostRange(baseCost, effectiveSpeed int) (int, int) {
	expected := float64(baseCost) * momentumMultiplier(effectiveSpeed)

	min := int(math.Floor(expected * (1.0 - constants.MomentumUncertaintyFactor)))
	max := int(math.Ceil(expected * (1.0 + constants.MomentumUncertaintyFactor)))

	if min < constants.MinMomentumCost {
		min = constants.MinMomentumCost
	}
	if max < min {
		max = min
	}
	return min, max
}

// ActualMomentumCost tire le coût réel uniformément dans [min, max]
func (c *Calculator) ActualMomentumCost(baseCost, effectiveSpeed int) int {
	min, max := c.MomentumCostRange(baseCost, effectiveSpeed)
	if min == max {
		return min
	}
	return min + c.rng.Intn(max-min+1)
}
