package models

import "math"

// DefaultHealth is the full health a fresh or reset session starts with.
const DefaultHealth = 100

// Health tracks hit points. Current stays within [0, Total] and Total >= 1.
type Health struct {
	Current int `yaml:"current"`
	Total   int `yaml:"total"`
}

// NewHealth returns a clamped Health.
func NewHealth(current, total int) *Health {
	h := &Health{Current: max(0, current), Total: max(1, total)}
	h.Current = min(h.Current, h.Total)
	return h
}

// Damage subtracts amount, never dropping below zero.
func (h *Health) Damage(amount int) {
	if amount <= 0 {
		return
	}
	h.Current = max(0, h.Current-amount)
}

// Heal adds amount, never exceeding Total.
func (h *Health) Heal(amount int) {
	if amount <= 0 {
		return
	}
	h.Current = min(h.Total, h.Current+amount)
}

// SetTotal changes the maximum. With preservePercentage the current value is
// rescaled to keep the same fraction of the new total.
func (h *Health) SetTotal(total int, preservePercentage bool) {
	clamped := max(1, total)
	if preservePercentage && h.Total > 0 {
		pct := float64(h.Current) / float64(h.Total)
		h.Total = clamped
		h.Current = max(0, min(h.Total, int(math.Round(pct*float64(h.Total)))))
		return
	}
	h.Total = clamped
	h.Current = min(h.Current, h.Total)
}

// Reset restores full health, keeping a total above the default.
func (h *Health) Reset() {
	h.Total = max(h.Total, DefaultHealth)
	h.Current = DefaultHealth
}

// Fraction is Current/Total in [0,1].
func (h *Health) Fraction() float64 {
	if h.Total <= 0 {
		return 0
	}
	return float64(max(0, min(h.Current, h.Total))) / float64(h.Total)
}

// IsDown reports whether the player has no health left.
func (h *Health) IsDown() bool {
	return h.Current == 0
}

// DefaultGold is the purse a fresh or reset session starts with.
const DefaultGold = 100

// Gold tracks coins. Coins is never negative.
type Gold struct {
	Coins int `yaml:"coins"`
}

// NewGold returns a purse holding initial coins, clamped at zero.
func NewGold(initial int) *Gold {
	return &Gold{Coins: max(0, initial)}
}

// Set replaces the coin count, clamped at zero.
func (g *Gold) Set(v int) {
	g.Coins = max(0, v)
}

// Add applies a signed delta. Coins never go below zero and saturate at
// math.MaxInt.
func (g *Gold) Add(delta int) {
	if delta == 0 {
		return
	}
	if delta > 0 && g.Coins > math.MaxInt-delta {
		g.Coins = math.MaxInt
		return
	}
	g.Coins = max(0, g.Coins+delta)
}

// Spend debits amount if the purse covers it and reports success.
func (g *Gold) Spend(amount int) bool {
	if amount <= 0 {
		return true
	}
	if g.Coins < amount {
		return false
	}
	g.Coins -= amount
	return true
}
