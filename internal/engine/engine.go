package engine

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/tatianab/grammrpg/internal/models"
	"github.com/tatianab/grammrpg/internal/rewards"
	"go.uber.org/zap"
)

//go:embed prompts/system.txt
var systemPrompt string

//go:embed prompts/continue.txt
var continuePrompt string

const (
	// HistoryWindow is how many log entries are sent with each request.
	HistoryWindow = 8

	DefaultTemperature float32 = 0.9

	awardGuideline = "If the player is receiving something, give them some item or amount of gold that fits within the context of the situation. Use tags [ITEM: Name] and/or [GOLD: Amount] in your response when you award items or gold."
)

var (
	// ErrGenerationDisabled is returned when the backend is switched off.
	// Callers should ask the user to enable it rather than fall back.
	ErrGenerationDisabled = errors.New("story generation is disabled; enable it in settings to continue the story")

	// ErrPrivilegedContext is returned when generation is attempted from an
	// elevated process.
	ErrPrivilegedContext = errors.New("story generation is not supported when running as root")
)

var continueTmpl = template.Must(template.New("continue").
	Funcs(template.FuncMap{"join": strings.Join}).
	Parse(continuePrompt))

// Generator asks a Backend for story continuations and falls back to a
// fixed line when it cannot.
type Generator struct {
	backend     Backend
	temperature float32
	privileged  func() bool
	logger      *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithTemperature sets the sampling temperature sent to the backend.
func WithTemperature(t float32) Option {
	return func(g *Generator) { g.temperature = t }
}

// WithPrivilegeCheck replaces the elevated-process check.
func WithPrivilegeCheck(f func() bool) Option {
	return func(g *Generator) { g.privileged = f }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// NewGenerator returns a Generator. A nil backend is allowed; every request
// then produces the fallback line.
func NewGenerator(backend Backend, opts ...Option) *Generator {
	g := &Generator{
		backend:     backend,
		temperature: DefaultTemperature,
		privileged:  RunningAsRoot,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Available reports whether a backend is configured.
func (g *Generator) Available() bool {
	return g.backend != nil
}

// Privileged reports whether the process is in a context where generation
// is refused.
func (g *Generator) Privileged() bool {
	return g.privileged != nil && g.privileged()
}

// Continue generates the next story beat for action. Award tags are removed
// from the text and returned separately.
func (g *Generator) Continue(ctx context.Context, action string, history, inventory []string) (models.ContinuationResult, error) {
	if g.Privileged() {
		return models.ContinuationResult{}, ErrPrivilegedContext
	}

	prompt, err := buildPrompt(action, history, inventory)
	if err != nil {
		return models.ContinuationResult{}, err
	}

	if g.backend == nil {
		return fallback(action, inventory), nil
	}

	text, err := g.backend.Respond(ctx, systemPrompt, prompt, g.temperature)
	switch {
	case err == nil:
	case errors.Is(err, ErrBackendDisabled):
		return models.ContinuationResult{}, fmt.Errorf("%w: %w", ErrGenerationDisabled, err)
	case ctx.Err() != nil:
		return models.ContinuationResult{}, ctx.Err()
	default:
		g.logger.Warn("generation failed, using fallback", zap.Error(err))
		return fallback(action, inventory), nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		g.logger.Warn("generation returned no text, using fallback")
		return fallback(action, inventory), nil
	}

	clean, items, gold := rewards.Parse(text)
	if clean == "" {
		clean = text
	}
	g.logger.Debug("continuation generated",
		zap.Int("chars", len(clean)),
		zap.Strings("items", items),
		zap.Int("gold", gold))

	return models.ContinuationResult{Text: clean, Items: items, Gold: gold}, nil
}

func buildPrompt(action string, history, inventory []string) (string, error) {
	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}

	var buf bytes.Buffer
	data := struct {
		Inventory []string
		History   []string
		Action    string
		Guideline string
	}{
		Inventory: inventory,
		History:   history,
		Action:    action,
		Guideline: awardGuideline,
	}
	if err := continueTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallback echoes the first line of action, leaving out annotations such as
// a dice roll.
func fallback(action string, inventory []string) models.ContinuationResult {
	action, _, _ = strings.Cut(action, "\n")
	action = strings.TrimSpace(action)
	held := "empty hands"
	if len(inventory) > 0 {
		held = strings.Join(inventory, ", ")
	}
	return models.ContinuationResult{
		Text: fmt.Sprintf("You steady yourself and take stock. With %s at the ready, you %s. The air seems to shift as the world reacts, revealing a new path forward.",
			held, strings.ToLower(action)),
	}
}
