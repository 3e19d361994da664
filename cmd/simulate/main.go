package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tatianab/grammrpg/internal/config"
	"github.com/tatianab/grammrpg/internal/engine"
	"github.com/tatianab/grammrpg/internal/logging"
	"github.com/tatianab/grammrpg/internal/models"
	"github.com/tatianab/grammrpg/internal/session"
	"github.com/tatianab/grammrpg/internal/store"
	"go.uber.org/zap"
)

const playerInstructions = "You are a player in a text adventure game. You answer with a single short action written the way a hurried person types, occasional spelling mistakes included."

func main() {
	var (
		turns int
		mode  string
	)
	cmd := &cobra.Command{
		Use:          "simulate",
		Short:        "Let a model play the game for a number of turns",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return simulate(cmd.Context(), turns, mode)
		},
	}
	cmd.Flags().IntVarP(&turns, "turns", "n", 10, "number of turns to play")
	cmd.Flags().StringVar(&mode, "mode", "", "gameplay mode, spell or dice (overrides GRAMMRPG_MODE)")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}
}

func simulate(ctx context.Context, turns int, mode string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if mode != "" {
		cfg.Mode = mode
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	// The same Gemini client serves the game master and the player.
	backend, err := engine.NewGeminiBackend(ctx, cfg.GeminiAPIKey, cfg.Model)
	if err != nil {
		return fmt.Errorf("creating backend: %w", err)
	}
	defer backend.Close()

	sess := session.New(session.Config{
		Store:     store.NewMemoryStore(),
		Generator: engine.NewGenerator(backend, engine.WithTemperature(cfg.Temperature), engine.WithLogger(logger)),
		Mode:      cfg.GameplayMode(),
		Logger:    logger,
	})
	if err := sess.Start(ctx); err != nil {
		return err
	}
	if notice := sess.Notice(); notice != "" {
		return fmt.Errorf("cannot simulate: %s", notice)
	}

	// 1. Get a premise from the player
	fmt.Println("--- Step 1: Requesting a premise from the player ---")
	premise, err := backend.Respond(ctx, playerInstructions,
		"Describe in one sentence the kind of story you would like to play (e.g. 'a haunted lighthouse on a stormy coast'). Return ONLY the sentence.", 1.0)
	if err != nil {
		return fmt.Errorf("requesting premise: %w", err)
	}
	premise = strings.TrimSpace(premise)
	fmt.Printf("Player chose: %s\n\n", premise)
	if !play(ctx, sess, premise) {
		return nil
	}

	// 2. Play the game
	for turn := 1; turn <= turns; turn++ {
		fmt.Printf("--- Turn %d ---\n", turn)
		if !play(ctx, sess, playerAction(ctx, backend, sess, logger)) {
			break
		}
		if sess.Health().IsDown() {
			fmt.Println("Game ended: the player has no health left.")
			break
		}
	}
	return nil
}

// play sends one action and prints what happened. It reports whether the
// simulation can go on.
func play(ctx context.Context, sess *session.Session, action string) bool {
	fmt.Printf("Player Action: %s\n", action)

	turn, err := sess.SendAction(ctx, action)
	if err != nil {
		fmt.Printf("Error processing turn: %v\n", err)
		return false
	}
	if turn.Alert != nil {
		fmt.Printf("Generation disabled: %v\n", turn.Alert)
		return false
	}

	for _, msg := range turn.Messages {
		switch msg.Role {
		case models.RoleUser:
			if msg.Text != action {
				fmt.Printf("Corrected: %s\n", msg.Text)
			}
			if msg.Remaining != nil {
				fmt.Printf("Mistakes left: %d\n", *msg.Remaining)
			}
		case models.RoleStory:
			fmt.Printf("Story: %s\n", msg.Text)
		}
	}
	if turn.Damage > 0 {
		fmt.Printf("Damage: %d HP\n", turn.Damage)
	}
	for _, it := range turn.Items {
		fmt.Printf("FOUND: %s\n", it.Name)
	}
	if turn.Gold > 0 {
		fmt.Printf("GOLD: +%d\n", turn.Gold)
	}

	items, err := sess.Inventory(ctx)
	if err != nil {
		fmt.Printf("Error listing inventory: %v\n", err)
		return false
	}
	h := sess.Health()
	fmt.Printf("Stats: Health=%d/%d, Gold=%d, Inventory=%v\n\n", h.Current, h.Total, sess.Gold().Coins, models.NamesOf(items))
	return true
}

func playerAction(ctx context.Context, player engine.Backend, sess *session.Session, logger *zap.Logger) string {
	items, err := sess.Inventory(ctx)
	if err != nil {
		return "look around"
	}

	msgs := sess.Messages()
	var history strings.Builder
	for _, m := range msgs[max(0, len(msgs)-engine.HistoryWindow):] {
		fmt.Fprintf(&history, "%s: %s\n", m.Role, m.Text)
	}
	h := sess.Health()

	prompt := fmt.Sprintf(`You are playing a text-based adventure game.
Inventory: %s
Health: %d/%d
Gold: %d

Recent story:
%s
What is your next action? Stay within the story and only use items you carry. Return ONLY the action string, no extra commentary.`,
		strings.Join(models.NamesOf(items), ", "),
		h.Current, h.Total,
		sess.Gold().Coins,
		history.String(),
	)

	text, err := player.Respond(ctx, playerInstructions, prompt, 1.0)
	if err != nil {
		logger.Warn("player model failed", zap.Error(err))
		return "examine the area"
	}
	if text = strings.TrimSpace(text); text == "" {
		return "look around"
	}
	return text
}
