package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"battle/internal/llm"
	"battle/internal/models"
	"battle/internal/repository"
)

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrConceptTooLong      = errors.New("concept must be at most 50 characters")
	ErrTooManyFavorites    = errors.New("at most 6 favorite attacks allowed")
	ErrFavoriteNotOwned    = errors.New("favorite attack not owned")
	ErrNoValidAttacks      = errors.New("no valid attacks were generated")
)

const (
	maxConceptLength     = 50
	maxFavorites         = 6
	maxNameLength        = 50
	maxDescriptionLength = 150
	maxEmojiLength       = 5
	maxNameDedupSuffix   = 10
)

// forbiddenLuaTokens sont interdits dans le code généré, la sandbox les
// bloque déjà à l'exécution mais on refuse de les persister
var forbiddenLuaTokens = []string{
	"os.", "io.", "package.", "require", "_G", "loadstring", "dofile", "loadfile",
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// GenerationServiceInterface définit la génération d'attaques par LLM
type GenerationServiceInterface interface {
	Generate(ctx context.Context, userID uuid.UUID, req *models.GenerateAttacksRequest) (*models.GenerateAttacksResponse, error)
}

// GenerationService implémente l'interface GenerationServiceInterface
type GenerationService struct {
	users      repository.UserRepositoryInterface
	attacks    repository.AttackRepositoryInterface
	gameConfig repository.GameConfigRepositoryInterface
	llm        llm.ClientInterface
}

// NewGenerationService crée un nouveau service de génération
func NewGenerationService(
	users repository.UserRepositoryInterface,
	attacks repository.AttackRepositoryInterface,
	gameConfig repository.GameConfigRepositoryInterface,
	client llm.ClientInterface,
) GenerationServiceInterface {
	return &GenerationService{users: users, attacks: attacks, gameConfig: gameConfig, llm: client}
}

// attackCandidate est la forme attendue d'un objet attaque dans la réponse LLM
type attackCandidate struct {
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Emoji        string            `json:"emoji"`
	MomentumCost int               `json:"momentum_cost"`
	Scripts      []scriptCandidate `json:"scripts"`
}

type scriptCandidate struct {
	Name               string `json:"name"`
	LuaCode            string `json:"lua_code"`
	TooltipDescription string `json:"tooltip_description"`
	TriggerWho         string `json:"trigger_who"`
	TriggerWhen        string `json:"trigger_when"`
	TriggerDuration    string `json:"trigger_duration"`
}

// Generate exécute le pipeline de génération dans l'ordre strict:
// coût → crédits → favoris → débit → prompt → LLM → validation → persistance.
// Tout échec après le débit rembourse le coût.
func (s *GenerationService) Generate(ctx context.Context, userID uuid.UUID, req *models.GenerateAttacksRequest) (*models.GenerateAttacksResponse, error) {
	concept := strings.TrimSpace(req.Concept)
	if len(concept) > maxConceptLength {
		return nil, ErrConceptTooLong
	}
	if len(req.FavoriteAttackIDs) > maxFavorites {
		return nil, ErrTooManyFavorites
	}

	gameConfig, err := s.gameConfig.Get()
	if err != nil {
		return nil, err
	}
	cost := gameConfig.AttackGenerationCost

	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user.Credits < cost {
		return nil, ErrInsufficientCredits
	}

	favorites, err := s.loadFavorites(userID, req.FavoriteAttackIDs)
	if err != nil {
		return nil, err
	}

	// Débit immédiat, remboursé en cas d'échec ultérieur
	if err := s.users.AdjustCredits(userID, -cost); err != nil {
		return nil, err
	}

	created, err := s.generateAfterDebit(ctx, userID, concept, favorites)
	if err != nil {
		s.refund(userID, cost)
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":       userID,
		"attacks_count": len(created),
		"credits_spent": cost,
	}).Info("🎨 Attacks generated")

	return &models.GenerateAttacksResponse{
		Attacks:          created,
		CreditsSpent:     cost,
		CreditsRemaining: user.Credits - cost,
	}, nil
}

func (s *GenerationService) refund(userID uuid.UUID, cost int) {
	if err := s.users.AdjustCredits(userID, cost); err != nil {
		logrus.WithError(err).WithField("user_id", userID).
			Error("Failed to refund attack generation cost")
	}
}

// loadFavorites vérifie la possession et charge les attaques favorites
func (s *GenerationService) loadFavorites(userID uuid.UUID, ids []uuid.UUID) ([]*models.Attack, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	learned, err := s.users.GetLearnedAttackIDs(userID)
	if err != nil {
		return nil, err
	}
	owned := make(map[uuid.UUID]bool, len(learned))
	for _, id := range learned {
		owned[id] = true
	}
	for _, id := range ids {
		if !owned[id] {
			return nil, ErrFavoriteNotOwned
		}
	}
	return s.attacks.GetByIDs(ids)
}

// generateAfterDebit couvre tout ce qui suit le débit, donc tout ce qui
// doit être remboursé en cas d'échec
func (s *GenerationService) generateAfterDebit(ctx context.Context, userID uuid.UUID, concept string, favorites []*models.Attack) ([]*models.Attack, error) {
	prompt := buildGenerationPrompt(concept, favorites)

	raw, err := s.llm.Complete(ctx, generationSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("llm call failed: %w", err)
	}

	candidates, err := parseCandidates(raw)
	if err != nil {
		return nil, err
	}

	var survivors []*models.Attack
	for i, candidate := range candidates {
		attack, err := s.validateCandidate(userID, candidate)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"user_id":   userID,
				"candidate": i,
				"reason":    err.Error(),
			}).Warn("Generated attack candidate rejected")
			continue
		}
		survivors = append(survivors, attack)
	}
	if len(survivors) == 0 {
		return nil, ErrNoValidAttacks
	}

	tx, err := s.attacks.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	for _, attack := range survivors {
		if err := s.attacks.CreateTx(tx, attack); err != nil {
			return nil, err
		}
		if err := s.users.LearnAttackTx(tx, userID, attack.ID); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return survivors, nil
}

// parseCandidates enlève les clôtures markdown et décode la liste JSON
func parseCandidates(raw string) ([]attackCandidate, error) {
	cleaned := stripMarkdownFences(raw)

	var candidates []attackCandidate
	if err := json.Unmarshal([]byte(cleaned), &candidates); err != nil {
		return nil, fmt.Errorf("invalid generation response: %w", err)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("generation response contains no attacks")
	}
	return candidates, nil
}

func stripMarkdownFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		if idx := strings.Index(cleaned, "\n"); idx >= 0 {
			cleaned = cleaned[idx+1:]
		}
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	}
	return strings.TrimSpace(cleaned)
}

// validateCandidate assainit et valide un candidat, et résout les
// collisions de nom par suffixe "(n)"
func (s *GenerationService) validateCandidate(userID uuid.UUID, candidate attackCandidate) (*models.Attack, error) {
	name := sanitizeText(candidate.Name, maxNameLength)
	if name == "" {
		return nil, fmt.Errorf("empty name")
	}
	description := sanitizeText(candidate.Description, maxDescriptionLength)
	emoji := sanitizeText(candidate.Emoji, maxEmojiLength)

	if candidate.MomentumCost < 1 || candidate.MomentumCost > 100 {
		return nil, fmt.Errorf("momentum_cost %d out of range [1,100]", candidate.MomentumCost)
	}
	if len(candidate.Scripts) == 0 {
		return nil, fmt.Errorf("attack has no scripts")
	}

	var scripts []*models.Script
	for _, sc := range candidate.Scripts {
		script := &models.Script{
			Name:               sanitizeText(sc.Name, maxNameLength),
			LuaCode:            sc.LuaCode,
			TooltipDescription: sanitizeText(sc.TooltipDescription, maxDescriptionLength),
			TriggerWho:         models.TriggerWho(sc.TriggerWho),
			TriggerWhen:        models.TriggerWhen(sc.TriggerWhen),
			TriggerDuration:    models.TriggerDuration(sc.TriggerDuration),
		}
		script.Normalize()
		if err := script.Validate(); err != nil {
			return nil, err
		}
		if strings.TrimSpace(script.LuaCode) == "" {
			return nil, fmt.Errorf("script has empty lua_code")
		}
		if token := findForbiddenToken(script.LuaCode); token != "" {
			return nil, fmt.Errorf("lua code contains forbidden token %q", token)
		}
		scripts = append(scripts, script)
	}

	finalName, err := s.dedupName(name)
	if err != nil {
		return nil, err
	}

	return &models.Attack{
		ID:           uuid.New(),
		Name:         finalName,
		Description:  description,
		Emoji:        emoji,
		MomentumCost: candidate.MomentumCost,
		CreatorID:    &userID,
		Scripts:      scripts,
	}, nil
}

// dedupName suffixe "(n)" jusqu'à n=10, au-delà le candidat est abandonné
func (s *GenerationService) dedupName(name string) (string, error) {
	exists, err := s.attacks.NameExists(name)
	if err != nil {
		return "", err
	}
	if !exists {
		return name, nil
	}
	for n := 2; n <= maxNameDedupSuffix; n++ {
		suffixed := fmt.Sprintf("%s (%d)", name, n)
		exists, err := s.attacks.NameExists(suffixed)
		if err != nil {
			return "", err
		}
		if !exists {
			return suffixed, nil
		}
	}
	return "", fmt.Errorf("name %q exhausted dedup suffixes", name)
}

func sanitizeText(text string, maxLength int) string {
	cleaned := strings.TrimSpace(htmlTagPattern.ReplaceAllString(text, ""))
	runes := []rune(cleaned)
	if len(runes) > maxLength {
		cleaned = string(runes[:maxLength])
	}
	return cleaned
}

func findForbiddenToken(luaCode string) string {
	for _, token := range forbiddenLuaTokens {
		if strings.Contains(luaCode, token) {
			return token
		}
	}
	return ""
}
