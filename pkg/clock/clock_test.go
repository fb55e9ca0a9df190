package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func TestProvider_Advance(t *testing.T) {
	p := NewProvider(t0, 30*time.Minute)

	tests := []struct {
		unit Unit
		want time.Time
	}{
		{UnitMinute, t0.Add(time.Minute)},
		{UnitHour, t0.Add(time.Minute + time.Hour)},
		{UnitDay, t0.Add(time.Minute+time.Hour).AddDate(0, 0, 1)},
		{UnitMonth, t0.Add(time.Minute+time.Hour).AddDate(0, 1, 1)},
		{UnitYear, t0.Add(time.Minute+time.Hour).AddDate(1, 1, 1)},
	}
	for _, tt := range tests {
		got, err := p.Advance(tt.unit)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "after advancing by %s", tt.unit)
	}

	_, err := p.Advance(Unit("week"))
	assert.Error(t, err)
}

func TestProvider_ResetRestoresInitialState(t *testing.T) {
	p := NewProvider(t0, 30*time.Minute)
	p.SetClock(t0.Add(48 * time.Hour))
	require.NoError(t, p.SetRiskRange(2*time.Hour))

	p.Reset()

	snap := p.Snapshot()
	assert.Equal(t, t0, snap.Now)
	assert.Equal(t, 30*time.Minute, snap.RiskRange)
}

func TestProvider_DefaultsRiskRange(t *testing.T) {
	p := NewProvider(t0, 0)
	assert.Equal(t, DefaultRiskRange, p.RiskRange())
}

func TestProvider_SetRiskRangeRejectsNegative(t *testing.T) {
	p := NewProvider(t0, time.Hour)
	assert.Error(t, p.SetRiskRange(-time.Minute))
	assert.Equal(t, time.Hour, p.RiskRange())
}

func TestProvider_AdvanceToNeverMovesBackwards(t *testing.T) {
	p := NewProvider(t0, time.Hour)

	assert.Equal(t, t0, p.AdvanceTo(t0.Add(-time.Hour)))
	assert.Equal(t, t0.Add(time.Hour), p.AdvanceTo(t0.Add(time.Hour)))
}

func TestParseUnit(t *testing.T) {
	u, err := ParseUnit(" Hour ")
	require.NoError(t, err)
	assert.Equal(t, UnitHour, u)

	_, err = ParseUnit("fortnight")
	assert.Error(t, err)
}

func TestProvider_ConcurrentAccess(t *testing.T) {
	p := NewProvider(t0, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = p.Advance(UnitMinute)
		}()
		go func() {
			defer wg.Done()
			snap := p.Snapshot()
			assert.False(t, snap.Now.Before(t0))
		}()
	}
	wg.Wait()

	assert.Equal(t, t0.Add(50*time.Minute), p.Now())
}
