// Package clock holds the simulated system clock and the risk window shared by
// every engine component.
package clock

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultRiskRange is the risk window used until one is configured
const DefaultRiskRange = time.Hour

// Clock provides time to the application.
type Clock interface {
	Now() time.Time
}

// Snapshot is a consistent view of the clock and the risk window
type Snapshot struct {
	Now       time.Time
	RiskRange time.Duration
}

// Unit is a step by which the simulated clock can be advanced
type Unit string

const (
	UnitMinute Unit = "minute"
	UnitHour   Unit = "hour"
	UnitDay    Unit = "day"
	UnitMonth  Unit = "month"
	UnitYear   Unit = "year"
)

func ParseUnit(s string) (Unit, error) {
	switch u := Unit(strings.ToLower(strings.TrimSpace(s))); u {
	case UnitMinute, UnitHour, UnitDay, UnitMonth, UnitYear:
		return u, nil
	}
	return "", fmt.Errorf("unknown clock unit %q", s)
}

// Provider is the mutable simulated clock. It is safe for concurrent use; the
// clock and the risk window are always read and written together.
type Provider struct {
	mu        sync.RWMutex
	now       time.Time
	riskRange time.Duration

	initialNow       func() time.Time
	initialRiskRange time.Duration
}

// NewProvider creates a provider starting at start. A zero start means wall-clock
// time at construction (and at every Reset).
func NewProvider(start time.Time, riskRange time.Duration) *Provider {
	if riskRange <= 0 {
		riskRange = DefaultRiskRange
	}
	initial := func() time.Time { return time.Now().UTC().Truncate(time.Second) }
	if !start.IsZero() {
		fixed := start.UTC()
		initial = func() time.Time { return fixed }
	}
	p := &Provider{
		initialNow:       initial,
		initialRiskRange: riskRange,
	}
	p.Reset()
	return p
}

func (p *Provider) Now() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.now
}

func (p *Provider) RiskRange() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.riskRange
}

func (p *Provider) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Snapshot{Now: p.now, RiskRange: p.riskRange}
}

func (p *Provider) SetClock(t time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = t.UTC()
}

func (p *Provider) SetRiskRange(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("risk range must not be negative, got %s", d)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.riskRange = d
	return nil
}

// Advance moves the clock forward by one unit and returns the new time
func (p *Provider) Advance(unit Unit) (time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch unit {
	case UnitMinute:
		p.now = p.now.Add(time.Minute)
	case UnitHour:
		p.now = p.now.Add(time.Hour)
	case UnitDay:
		p.now = p.now.AddDate(0, 0, 1)
	case UnitMonth:
		p.now = p.now.AddDate(0, 1, 0)
	case UnitYear:
		p.now = p.now.AddDate(1, 0, 0)
	default:
		return p.now, fmt.Errorf("unknown clock unit %q", unit)
	}
	return p.now, nil
}

// AdvanceTo moves the clock to t if t is later than the current time
func (p *Provider) AdvanceTo(t time.Time) time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t.After(p.now) {
		p.now = t.UTC()
	}
	return p.now
}

// Reset restores the initial clock and risk window
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = p.initialNow()
	p.riskRange = p.initialRiskRange
}
