package session

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tatianab/grammrpg/internal/engine"
	"github.com/tatianab/grammrpg/internal/models"
	"github.com/tatianab/grammrpg/internal/spell"
	"github.com/tatianab/grammrpg/internal/store"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type call struct {
	action    string
	history   []string
	inventory []string
}

type fakeGenerator struct {
	result     models.ContinuationResult
	err        error
	privileged bool
	calls      []call

	// when set, Continue signals entered and waits for release
	entered chan struct{}
	release chan struct{}
}

func (g *fakeGenerator) Continue(ctx context.Context, action string, history, inventory []string) (models.ContinuationResult, error) {
	g.calls = append(g.calls, call{action: action, history: history, inventory: inventory})
	if g.entered != nil {
		close(g.entered)
		<-g.release
	}
	return g.result, g.err
}

func (g *fakeGenerator) Available() bool  { return true }
func (g *fakeGenerator) Privileged() bool { return g.privileged }

type correctorFunc func(text string, protected []string) spell.Result

func (f correctorFunc) Analyze(text string, protected []string) spell.Result {
	return f(text, protected)
}

func cleanCorrector() correctorFunc {
	return func(text string, _ []string) spell.Result {
		return spell.Result{Markup: models.Markup{{Text: text}}, Remaining: spell.MistakeAllowance, Corrected: text}
	}
}

func newTestSession(t *testing.T, gen *fakeGenerator, cfg Config) (*Session, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	cfg.Store = st
	cfg.Generator = gen
	if cfg.Analyzer == nil {
		cfg.Analyzer = cleanCorrector()
	}
	s := New(cfg)
	require.NoError(t, s.Start(context.Background()))
	return s, st
}

func names(t *testing.T, st store.ItemStore) []string {
	t.Helper()
	items, err := st.List(context.Background())
	require.NoError(t, err)
	return models.NamesOf(items)
}

func TestStart(t *testing.T) {
	s, st := newTestSession(t, &fakeGenerator{}, Config{})

	assert.Equal(t, []string{"Potion", "Knife", "Rope"}, names(t, st))
	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.RoleStory, msgs[0].Role)
	assert.Equal(t, IntroMessage, msgs[0].Text)

	require.NoError(t, s.Start(context.Background()))
	assert.Len(t, s.Messages(), 1)
	assert.Len(t, names(t, st), 3)
	assert.Equal(t, models.Health{Current: 100, Total: 100}, s.Health())
	assert.Equal(t, 100, s.Gold().Coins)
	assert.Equal(t, models.SpellingCheck, s.Mode())
}

func TestSendActionEmpty(t *testing.T) {
	gen := &fakeGenerator{}
	s, _ := newTestSession(t, gen, Config{})

	turn, err := s.SendAction(context.Background(), "  \n\t ")
	require.NoError(t, err)
	assert.Empty(t, turn.Messages)
	assert.Len(t, s.Messages(), 1)
	assert.Empty(t, gen.calls)
	assert.Equal(t, 100, s.Health().Current)
}

func TestSendActionSpellingPenalty(t *testing.T) {
	tests := []struct {
		remaining int
		damage    int
		wording   string
	}{
		{2, 10, "minor mishap"},
		{1, 30, "backfires"},
		{0, 50, "misreads your intent"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("remaining %d", tt.remaining), func(t *testing.T) {
			gen := &fakeGenerator{}
			analyzer := correctorFunc(func(text string, _ []string) spell.Result {
				return spell.Result{Corrected: "fixed " + text, Remaining: tt.remaining}
			})
			s, _ := newTestSession(t, gen, Config{Analyzer: analyzer})

			turn, err := s.SendAction(context.Background(), "wlak nrth")
			require.NoError(t, err)
			assert.Equal(t, tt.damage, turn.Damage)
			assert.Equal(t, 100-tt.damage, s.Health().Current)
			assert.Empty(t, gen.calls, "generation is skipped")

			msgs := s.Messages()
			require.Len(t, msgs, 3)
			assert.Equal(t, "fixed wlak nrth", msgs[1].Text)
			require.NotNil(t, msgs[1].Remaining)
			assert.Equal(t, tt.remaining, *msgs[1].Remaining)
			assert.Equal(t, models.RoleStory, msgs[2].Role)
			assert.Contains(t, msgs[2].Text, tt.wording)
			assert.Contains(t, msgs[2].Text, fmt.Sprintf("(-%d HP)", tt.damage))
			assert.Equal(t, msgs[1:], turn.Messages)
		})
	}
}

func TestSendActionPenaltyClampsHealth(t *testing.T) {
	analyzer := correctorFunc(func(text string, _ []string) spell.Result {
		return spell.Result{Corrected: text, Remaining: 0}
	})
	s, _ := newTestSession(t, &fakeGenerator{}, Config{Analyzer: analyzer, Health: models.NewHealth(20, 100)})

	_, err := s.SendAction(context.Background(), "xx")
	require.NoError(t, err)
	assert.Equal(t, 0, s.Health().Current)
}

func TestSendActionGeneratesStory(t *testing.T) {
	gen := &fakeGenerator{result: models.ContinuationResult{
		Text:  "The door swings open.\n- Search the room\n2. Leave\n[GOLD: 5]\nA lantern glows inside.",
		Items: []string{"Lantern", "Silver Key"},
		Gold:  15,
	}}
	var protected []string
	analyzer := correctorFunc(func(text string, terms []string) spell.Result {
		protected = terms
		return spell.Result{
			Markup:    models.Markup{{Text: "open the "}, {Text: "door", Corrected: true}},
			Remaining: 4,
			Corrected: "open the door",
			Mistakes:  1,
		}
	})
	s, st := newTestSession(t, gen, Config{Analyzer: analyzer})

	turn, err := s.SendAction(context.Background(), "open the dor")
	require.NoError(t, err)
	assert.Nil(t, turn.Alert)
	assert.Equal(t, []string{"Potion", "Knife", "Rope"}, protected)

	require.Len(t, gen.calls, 1)
	assert.Equal(t, "open the door", gen.calls[0].action)
	assert.Equal(t, []string{"open the door"}, gen.calls[0].history, "first turn starts fresh")
	assert.Equal(t, []string{"Potion", "Knife", "Rope"}, gen.calls[0].inventory)

	assert.Equal(t, []string{"Potion", "Knife", "Rope", "Lantern", "Silver Key"}, names(t, st))
	require.Len(t, turn.Items, 2)
	assert.Equal(t, 115, s.Gold().Coins)
	assert.Equal(t, 15, turn.Gold)

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, models.Message{
		Role:      models.RoleUser,
		Text:      "open the door",
		Markup:    models.Markup{{Text: "open the "}, {Text: "door", Corrected: true}},
		Remaining: msgs[1].Remaining,
	}, msgs[1])
	assert.Equal(t, 4, *msgs[1].Remaining)
	assert.Equal(t, "The door swings open.\nA lantern glows inside.", msgs[2].Text)
	assert.Equal(t, msgs[1:], turn.Messages)
}

func TestSendActionHistoryAfterFirstTurn(t *testing.T) {
	gen := &fakeGenerator{result: models.ContinuationResult{Text: "Time passes."}}
	s, _ := newTestSession(t, gen, Config{})
	ctx := context.Background()

	_, err := s.SendAction(ctx, "a haunted lighthouse")
	require.NoError(t, err)
	_, err = s.SendAction(ctx, "climb the stairs")
	require.NoError(t, err)

	require.Len(t, gen.calls, 2)
	assert.Equal(t, []string{IntroMessage, "a haunted lighthouse", "Time passes.", "climb the stairs"}, gen.calls[1].history)
}

func TestSendActionDiceRoll(t *testing.T) {
	gen := &fakeGenerator{result: models.ContinuationResult{Text: "You swing."}}
	s, _ := newTestSession(t, gen, Config{
		Mode:     models.DiceRoll,
		Rand:     rand.New(rand.NewPCG(7, 11)),
		Analyzer: correctorFunc(func(string, []string) spell.Result { panic("spell check in dice mode") }),
	})
	want := rand.New(rand.NewPCG(7, 11)).IntN(20) + 1

	turn, err := s.SendAction(context.Background(), "  attack the troll ")
	require.NoError(t, err)
	assert.Equal(t, want, turn.Roll)
	assert.GreaterOrEqual(t, turn.Roll, 1)
	assert.LessOrEqual(t, turn.Roll, 20)

	annotated := fmt.Sprintf("attack the troll\n(Rolled d20: %d)", want)
	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, annotated, msgs[1].Text)
	assert.Nil(t, msgs[1].Remaining)
	require.Len(t, gen.calls, 1)
	assert.Equal(t, annotated, gen.calls[0].action)
	assert.Equal(t, 100, s.Health().Current)
}

func TestSendActionDisabledAlert(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("%w: off", engine.ErrGenerationDisabled)}
	s, _ := newTestSession(t, gen, Config{})

	turn, err := s.SendAction(context.Background(), "look around")
	require.NoError(t, err)
	assert.ErrorIs(t, turn.Alert, engine.ErrGenerationDisabled)
	require.Len(t, turn.Messages, 1)
	assert.Equal(t, models.RoleUser, turn.Messages[0].Role)
	assert.Len(t, s.Messages(), 2)
}

func TestSendActionPrivileged(t *testing.T) {
	gen := &fakeGenerator{privileged: true}
	s, _ := newTestSession(t, gen, Config{})

	turn, err := s.SendAction(context.Background(), "look around")
	require.NoError(t, err)
	assert.Empty(t, gen.calls)
	require.Len(t, turn.Messages, 2)
	assert.Equal(t, AdvisoryMessage, turn.Messages[1].Text)
	assert.Contains(t, s.Notice(), "root")
}

func TestSendActionGenericError(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("broken pipe")}
	s, _ := newTestSession(t, gen, Config{})

	_, err := s.SendAction(context.Background(), "look around")
	assert.ErrorContains(t, err, "broken pipe")
	assert.Len(t, s.Messages(), 2)
}

func TestSendActionCanceledDuringDelay(t *testing.T) {
	gen := &fakeGenerator{result: models.ContinuationResult{Text: "x", Items: []string{"Gem"}, Gold: 10}}
	s, st := newTestSession(t, gen, Config{TurnDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.SendAction(ctx, "look around")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, gen.calls)
	assert.Len(t, names(t, st), 3)
	assert.Equal(t, 100, s.Gold().Coins)
	assert.Len(t, s.Messages(), 2, "no story message")
}

func TestSendActionSingleFlight(t *testing.T) {
	gen := &fakeGenerator{
		result:  models.ContinuationResult{Text: "Done."},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	s, _ := newTestSession(t, gen, Config{})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := s.SendAction(ctx, "first")
		done <- err
	}()
	<-gen.entered

	_, err := s.SendAction(ctx, "second")
	assert.ErrorIs(t, err, ErrTurnInProgress)
	assert.ErrorIs(t, s.Reset(ctx), ErrTurnInProgress)

	close(gen.release)
	require.NoError(t, <-done)

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[1].Text)
	assert.Equal(t, "Done.", msgs[2].Text)
}

func TestReset(t *testing.T) {
	gen := &fakeGenerator{result: models.ContinuationResult{Text: "Loot!", Items: []string{"Rope", "Gem"}, Gold: 40}}
	s, st := newTestSession(t, gen, Config{Health: models.NewHealth(100, 150)})
	ctx := context.Background()

	_, err := s.SendAction(ctx, "search the crate")
	require.NoError(t, err)
	_, err = st.Insert(ctx, "   ")
	require.NoError(t, err)
	require.NoError(t, s.RemoveItem(ctx, "knife"))
	require.NoError(t, s.SetMode(models.DiceRoll))

	require.NoError(t, s.Reset(ctx))

	got := names(t, st)
	slices.Sort(got)
	assert.Equal(t, []string{"Knife", "Potion", "Rope"}, got)
	items, err := st.List(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 3)

	assert.Equal(t, models.Health{Current: 100, Total: 150}, s.Health())
	assert.Equal(t, 100, s.Gold().Coins)
	assert.Equal(t, []models.Message{{Role: models.RoleStory, Text: IntroMessage}}, s.Messages())
	assert.Equal(t, models.DiceRoll, s.Mode(), "mode survives a reset")
}

func TestResetAfterDamage(t *testing.T) {
	analyzer := correctorFunc(func(text string, _ []string) spell.Result {
		return spell.Result{Corrected: text, Remaining: 0}
	})
	s, _ := newTestSession(t, &fakeGenerator{}, Config{Analyzer: analyzer})
	ctx := context.Background()

	_, err := s.SendAction(ctx, "zzz")
	require.NoError(t, err)
	require.Equal(t, 50, s.Health().Current)

	require.NoError(t, s.Reset(ctx))
	assert.Equal(t, models.Health{Current: 100, Total: 100}, s.Health())
}

func TestRemoveItem(t *testing.T) {
	s, st := newTestSession(t, &fakeGenerator{}, Config{})
	ctx := context.Background()

	require.NoError(t, s.RemoveItem(ctx, " ROPE "))
	assert.Equal(t, []string{"Potion", "Knife"}, names(t, st))
	assert.ErrorIs(t, s.RemoveItem(ctx, "Rope"), store.ErrItemNotFound)
}

func TestSetMode(t *testing.T) {
	s, _ := newTestSession(t, &fakeGenerator{}, Config{})
	require.NoError(t, s.SetMode(models.DiceRoll))
	assert.Equal(t, models.DiceRoll, s.Mode())
	assert.Error(t, s.SetMode("Chess"))
	assert.Equal(t, models.DiceRoll, s.Mode())
}

func TestSnapshotRestore(t *testing.T) {
	gen := &fakeGenerator{result: models.ContinuationResult{Text: "Onward.", Gold: 5}}
	s, _ := newTestSession(t, gen, Config{})
	_, err := s.SendAction(context.Background(), "walk north")
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Equal(t, 105, snap.Gold.Coins)
	assert.Len(t, snap.Messages, 3)

	other, _ := newTestSession(t, gen, Config{})
	require.NoError(t, other.Restore(snap))
	assert.Equal(t, s.Messages(), other.Messages())
	assert.Equal(t, 105, other.Gold().Coins)
	assert.Equal(t, models.SpellingCheck, other.Mode())
}

func TestRestoreNilSnapshot(t *testing.T) {
	s, _ := newTestSession(t, &fakeGenerator{}, Config{})
	assert.ErrorIs(t, s.Restore(nil), ErrNoSnapshot)
	assert.Len(t, s.Messages(), 1)
}

func TestSendActionDiceFallback(t *testing.T) {
	gen := engine.NewGenerator(nil, engine.WithPrivilegeCheck(func() bool { return false }))
	s := New(Config{Store: store.NewMemoryStore(), Generator: gen, Mode: models.DiceRoll, Rand: rand.New(rand.NewPCG(1, 2))})
	require.NoError(t, s.Start(context.Background()))

	turn, err := s.SendAction(context.Background(), "Go north")
	require.NoError(t, err)
	require.Len(t, turn.Messages, 2)
	assert.Contains(t, turn.Messages[1].Text, "you go north. The air")
	assert.NotContains(t, turn.Messages[1].Text, "Rolled")
}

func TestSessionWithGenerator(t *testing.T) {
	gen := engine.NewGenerator(nil, engine.WithPrivilegeCheck(func() bool { return false }))
	s := New(Config{Store: store.NewMemoryStore(), Generator: gen})
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	assert.Contains(t, s.Notice(), "GEMINI_API_KEY")

	turn, err := s.SendAction(ctx, "I opne the door with my Knife")
	require.NoError(t, err)
	require.Len(t, turn.Messages, 2)
	assert.Equal(t, "I open the door with my Knife", turn.Messages[0].Text)
	assert.Equal(t, 4, *turn.Messages[0].Remaining)
	assert.Equal(t,
		"You steady yourself and take stock. With Potion, Knife, Rope at the ready, you i open the door with my knife. The air seems to shift as the world reacts, revealing a new path forward.",
		turn.Messages[1].Text)
}
