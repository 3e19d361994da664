// Package session runs the turn loop of a story: it applies the gameplay
// mode to each player action, asks the generator for the next story beat
// and applies awards to the player's health, gold and inventory.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/tatianab/grammrpg/internal/engine"
	"github.com/tatianab/grammrpg/internal/models"
	"github.com/tatianab/grammrpg/internal/spell"
	"github.com/tatianab/grammrpg/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	IntroMessage = "To begin a story, give me some input describing what kind of story you would like to play. You can only use items you currently have in your inventory."

	AdvisoryMessage = "Story generation is unavailable when running as root. Please run the game as a standard user to continue the story."

	DefaultTurnDelay = time.Second

	// penaltyThreshold is the allowance below which a turn goes wrong.
	penaltyThreshold = 3
)

// StarterItems are kept by a reset and seeded into an empty store.
var StarterItems = []string{"Knife", "Rope", "Potion"}

// ErrTurnInProgress is returned when an action or reset arrives while
// another turn is still being processed.
var ErrTurnInProgress = errors.New("a turn is already in progress")

// ErrNoSnapshot is returned by Restore when given no snapshot.
var ErrNoSnapshot = errors.New("no snapshot to restore")

// Continuer generates story continuations.
type Continuer interface {
	Continue(ctx context.Context, action string, history, inventory []string) (models.ContinuationResult, error)
	Available() bool
	Privileged() bool
}

// Corrector checks the spelling of an action.
type Corrector interface {
	Analyze(text string, protectedTerms []string) spell.Result
}

// Config wires a Session. Zero fields get defaults, except Store and
// Generator which are required.
type Config struct {
	Store     store.ItemStore
	Generator Continuer
	Analyzer  Corrector
	Health    *models.Health
	Gold      *models.Gold
	Mode      models.GameplayMode
	TurnDelay time.Duration
	Rand      *rand.Rand
	Logger    *zap.Logger
}

// Turn describes what one call to SendAction did.
type Turn struct {
	// Messages appended to the log during the turn.
	Messages []models.Message
	// Alert is set when generation is disabled and the user has to act.
	// No story message is appended in that case.
	Alert error

	Damage int
	Roll   int
	Items  []models.Item
	Gold   int
}

// Session is a single story played by one player. Turns never overlap.
type Session struct {
	store     store.ItemStore
	generator Continuer
	analyzer  Corrector
	logger    *zap.Logger
	rng       *rand.Rand
	turnDelay time.Duration

	turn *semaphore.Weighted

	mu       sync.RWMutex
	health   *models.Health
	gold     *models.Gold
	mode     models.GameplayMode
	messages []models.Message
}

// New returns a Session.
func New(cfg Config) *Session {
	s := &Session{
		store:     cfg.Store,
		generator: cfg.Generator,
		analyzer:  cfg.Analyzer,
		logger:    cfg.Logger,
		rng:       cfg.Rand,
		turnDelay: cfg.TurnDelay,
		turn:      semaphore.NewWeighted(1),
		health:    cfg.Health,
		gold:      cfg.Gold,
		mode:      cfg.Mode,
	}
	if s.analyzer == nil {
		s.analyzer = spell.NewAnalyzer(spell.DefaultDictionary())
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if s.health == nil {
		s.health = models.NewHealth(models.DefaultHealth, models.DefaultHealth)
	}
	if s.gold == nil {
		s.gold = models.NewGold(models.DefaultGold)
	}
	if s.mode == "" {
		s.mode = models.SpellingCheck
	}
	return s
}

// Start seeds the starter items into an empty store and shows the intro
// message when the log is empty.
func (s *Session) Start(ctx context.Context) error {
	items, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}
	if len(items) == 0 {
		for _, name := range []string{"Potion", "Knife", "Rope"} {
			if _, err := s.store.Insert(ctx, name); err != nil {
				return fmt.Errorf("seed %s: %w", name, err)
			}
		}
		s.logger.Info("seeded starter items")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		s.messages = append(s.messages, storyMessage(IntroMessage))
	}
	return nil
}

// Notice describes why stories cannot be generated, or is empty.
func (s *Session) Notice() string {
	switch {
	case s.generator.Privileged():
		return "Running as root is not supported. Please run as a standard user."
	case !s.generator.Available():
		return "No story backend is configured. Set GEMINI_API_KEY to enable story generation; until then the story continues with a simple fallback."
	}
	return ""
}

// SendAction processes one player action. Empty input is ignored.
func (s *Session) SendAction(ctx context.Context, text string) (Turn, error) {
	action := strings.TrimSpace(text)
	if action == "" {
		return Turn{}, nil
	}
	if !s.turn.TryAcquire(1) {
		return Turn{}, ErrTurnInProgress
	}
	defer s.turn.Release(1)

	items, err := s.store.List(ctx)
	if err != nil {
		return Turn{}, fmt.Errorf("list items: %w", err)
	}
	inventory := models.NamesOf(items)

	s.mu.Lock()
	turn, proceed := s.transform(action, inventory)
	if !proceed {
		s.mu.Unlock()
		return turn, nil
	}
	if s.generator.Privileged() {
		turn.Messages = append(turn.Messages, s.appendLocked(storyMessage(AdvisoryMessage)))
		s.mu.Unlock()
		return turn, nil
	}
	played := turn.Messages[0].Text
	history := s.historyLocked(played)
	s.mu.Unlock()

	if err := s.pause(ctx); err != nil {
		return turn, err
	}

	result, err := s.generator.Continue(ctx, played, history, inventory)
	switch {
	case err == nil:
	case errors.Is(err, engine.ErrGenerationDisabled):
		s.logger.Warn("story generation disabled", zap.Error(err))
		turn.Alert = err
		return turn, nil
	case errors.Is(err, engine.ErrPrivilegedContext):
		s.mu.Lock()
		turn.Messages = append(turn.Messages, s.appendLocked(storyMessage(AdvisoryMessage)))
		s.mu.Unlock()
		return turn, nil
	default:
		return turn, fmt.Errorf("continue story: %w", err)
	}

	// The generator has returned; awards must not be cut short by a late
	// cancellation.
	if err := s.award(context.WithoutCancel(ctx), result, &turn); err != nil {
		return turn, err
	}

	s.mu.Lock()
	turn.Messages = append(turn.Messages, s.appendLocked(storyMessage(sanitize(result.Text))))
	s.mu.Unlock()

	s.logger.Info("turn completed",
		zap.Int("items", len(turn.Items)),
		zap.Int("gold", turn.Gold))
	return turn, nil
}

// transform appends the user message after applying the gameplay mode. It
// reports false when the turn ends without generation. Callers hold s.mu.
func (s *Session) transform(action string, inventory []string) (Turn, bool) {
	var turn Turn
	msg := models.Message{Role: models.RoleUser, Text: action}

	switch s.mode {
	case models.DiceRoll:
		turn.Roll = s.rng.IntN(20) + 1
		msg.Text = fmt.Sprintf("%s\n(Rolled d20: %d)", action, turn.Roll)
		turn.Messages = append(turn.Messages, s.appendLocked(msg))
		s.logger.Debug("dice rolled", zap.Int("roll", turn.Roll))
		return turn, true

	default:
		res := s.analyzer.Analyze(action, inventory)
		remaining := res.Remaining
		msg.Text = res.Corrected
		msg.Markup = res.Markup
		msg.Remaining = &remaining
		turn.Messages = append(turn.Messages, s.appendLocked(msg))

		if remaining >= penaltyThreshold {
			return turn, true
		}
		turn.Damage = penaltyFor(remaining)
		s.health.Damage(turn.Damage)
		turn.Messages = append(turn.Messages, s.appendLocked(storyMessage(mishap(remaining, turn.Damage))))
		s.logger.Info("spelling penalty applied",
			zap.Int("mistakes", res.Mistakes),
			zap.Int("damage", turn.Damage),
			zap.Int("health", s.health.Current))
		return turn, false
	}
}

func (s *Session) award(ctx context.Context, result models.ContinuationResult, turn *Turn) error {
	for _, name := range result.Items {
		item, err := s.store.Insert(ctx, name)
		if err != nil {
			s.logger.Error("failed to award item", zap.String("item", name), zap.Error(err))
			return fmt.Errorf("award %s: %w", name, err)
		}
		turn.Items = append(turn.Items, item)
	}
	if result.Gold > 0 {
		s.mu.Lock()
		s.gold.Add(result.Gold)
		s.mu.Unlock()
		turn.Gold = result.Gold
	}
	return nil
}

// historyLocked returns the log texts sent with a request. The first player
// turn starts fresh with only the action itself.
func (s *Session) historyLocked(action string) []string {
	users := 0
	for _, m := range s.messages {
		if m.Role == models.RoleUser {
			users++
		}
	}
	if users == 1 {
		return []string{action}
	}
	history := make([]string, len(s.messages))
	for i, m := range s.messages {
		history[i] = m.Text
	}
	return history
}

func (s *Session) pause(ctx context.Context) error {
	if s.turnDelay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.turnDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Session) appendLocked(m models.Message) models.Message {
	s.messages = append(s.messages, m)
	return m
}

// Reset starts the story over: empty log, full health, 100 gold and only
// the starter items.
func (s *Session) Reset(ctx context.Context) error {
	if !s.turn.TryAcquire(1) {
		return ErrTurnInProgress
	}
	defer s.turn.Release(1)

	s.mu.Lock()
	s.messages = nil
	s.health.Reset()
	s.gold.Set(models.DefaultGold)
	s.mu.Unlock()

	items, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}
	kept := make(map[string]bool, len(StarterItems))
	for _, it := range items {
		name := strings.TrimSpace(it.Name)
		if it.Valid() && slices.Contains(StarterItems, name) && !kept[name] {
			kept[name] = true
			continue
		}
		if err := s.store.Delete(ctx, it.ID); err != nil {
			return fmt.Errorf("delete %q: %w", it.Name, err)
		}
	}
	for _, name := range StarterItems {
		if kept[name] {
			continue
		}
		if _, err := s.store.Insert(ctx, name); err != nil {
			return fmt.Errorf("restore %s: %w", name, err)
		}
	}

	s.mu.Lock()
	s.messages = append(s.messages, storyMessage(IntroMessage))
	s.mu.Unlock()

	s.logger.Info("session reset")
	return nil
}

// SetMode changes the gameplay mode for the following turns.
func (s *Session) SetMode(mode models.GameplayMode) error {
	if !slices.Contains(models.AllModes(), mode) {
		return fmt.Errorf("unknown gameplay mode %q", mode)
	}
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
	return nil
}

func (s *Session) Mode() models.GameplayMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Messages returns a copy of the story log.
func (s *Session) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.messages)
}

func (s *Session) Health() models.Health {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.health
}

func (s *Session) Gold() models.Gold {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.gold
}

// Inventory lists the player's items.
func (s *Session) Inventory(ctx context.Context) ([]models.Item, error) {
	return s.store.List(ctx)
}

// RemoveItem deletes the first item whose name matches, ignoring case.
func (s *Session) RemoveItem(ctx context.Context, name string) error {
	items, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}
	name = strings.TrimSpace(name)
	for _, it := range items {
		if strings.EqualFold(strings.TrimSpace(it.Name), name) {
			return s.store.Delete(ctx, it.ID)
		}
	}
	return fmt.Errorf("%q: %w", name, store.ErrItemNotFound)
}

// Snapshot captures the session state for saving.
func (s *Session) Snapshot() *models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &models.Snapshot{
		Mode:     s.mode,
		Health:   *s.health,
		Gold:     *s.gold,
		Messages: slices.Clone(s.messages),
	}
}

// Restore replaces the session state with a saved snapshot.
func (s *Session) Restore(snap *models.Snapshot) error {
	if snap == nil {
		return ErrNoSnapshot
	}
	if !s.turn.TryAcquire(1) {
		return ErrTurnInProgress
	}
	defer s.turn.Release(1)

	s.mu.Lock()
	defer s.mu.Unlock()
	*s.health = *models.NewHealth(snap.Health.Current, snap.Health.Total)
	s.gold.Set(snap.Gold.Coins)
	if slices.Contains(models.AllModes(), snap.Mode) {
		s.mode = snap.Mode
	}
	s.messages = slices.Clone(snap.Messages)
	return nil
}

func storyMessage(text string) models.Message {
	return models.Message{Role: models.RoleStory, Text: text}
}
