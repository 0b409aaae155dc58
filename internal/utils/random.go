package utils

import (
	"crypto/rand"
	"math/big"
	mathrand "math/rand"
)

const (
	// Constantes pour la génération aléatoire sécurisée
	randomPrecision     = 1000000
	randomPrecisionF64  = 1000000.0
	fallbackRandomValue = 0.5
)

// RNG est la source d'aléa injectée dans les calculs de combat; une
// implémentation seedée rend le pipeline déterministe pour les tests
type RNG interface {
	Float64() float64
	Intn(n int) int
}

// SecureRNG est la source par défaut, basée sur crypto/rand
type SecureRNG struct{}

// NewSecureRNG crée la source d'aléa par défaut
func NewSecureRNG() RNG {
	return &SecureRNG{}
}

// Float64 génère un nombre aléatoire sécurisé entre 0.0 et 1.0
func (s *SecureRNG) Float64() float64 {
	maxVal := big.NewInt(randomPrecision)
	n, err := rand.Int(rand.Reader, maxVal)
	if err != nil {
		// Fallback en cas d'erreur (ne devrait pas arriver)
		return fallbackRandomValue
	}
	return float64(n.Int64()) / randomPrecisionF64
}

// Intn génère un entier aléatoire sécurisé entre 0 et n-1
func (s *SecureRNG) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	maxVal := big.NewInt(int64(n))
	result, err := rand.Int(rand.Reader, maxVal)
	if err != nil {
		// Fallback en cas d'erreur
		return 0
	}
	return int(result.Int64())
}

// SeededRNG est une source déterministe pour les tests et les rejeux
type SeededRNG struct {
	r *mathrand.Rand
}

// NewSeededRNG crée une source déterministe à partir d'une graine
func NewSeededRNG(seed int64) RNG {
	return &SeededRNG{r: mathrand.New(mathrand.NewSource(seed))}
}

// Float64 retourne le prochain flottant de la séquence seedée
func (s *SeededRNG) Float64() float64 {
	return s.r.Float64()
}

// Intn retourne le prochain entier de la séquence seedée dans [0, n)
func (s *SeededRNG) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return s.r.Intn(n)
}
