package constants

// Constantes des mécaniques de combat
const (
	// Paliers de statistiques (stat stages)
	MaxStatStage = 6
	MinStatStage = -6

	// Variance aléatoire des dégâts
	DamageRandomFactorMin = 0.85
	DamageRandomFactorMax = 1.00

	// Momentum
	BaselineSpeedForMomentum  = 100
	MomentumCostMultiplierMin = 0.5
	MomentumCostMultiplierMax = 1.5
	MomentumUncertaintyFactor = 0.15

	// Bornes du coût de base d'une attaque
	MinMomentumCost = 1
	MaxMomentumCost = 100
)

// Constantes des joueurs et attaques
const (
	MaxSelectedAttacks      = 6
	MaxAttackNameLength     = 50
	MaxAttackDescLength     = 150
	MaxAttackEmojiLength    = 5
	MaxConceptLength        = 50
	GeneratedAttacksPerCall = 6

	// Répartition des points de stats de base
	StatPointTotal = 400
	StatPointStep  = 10
	StatPointMin   = 10
)
