package alerting

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerComparesAgainstPreviousCycle(t *testing.T) {
	tr := NewTracker(NewEvaluator(DefaultThresholds(), WithChecks(ShortPrice, OpenInterest)), DefaultCooldown, 10)

	first := obs("NI")
	first.Last = num("1000")
	first.OpenInterest = num("1000")
	assert.Empty(t, tr.Observe([]Observation{first}, t0))

	second := obs("NI")
	second.Timestamp = t0.Add(30 * time.Second)
	second.Last = num("994")
	second.OpenInterest = num("1000")
	conds := tr.Observe([]Observation{second}, second.Timestamp)
	require.Equal(t, []ConditionType{ShortPrice}, kinds(conds))

	prev, ok := tr.Previous("NI")
	require.True(t, ok)
	assert.True(t, prev.Last.Decimal.Equal(second.Last.Decimal))
}

func TestTrackerUsesOwnOpenAsDayOpen(t *testing.T) {
	tr := NewTracker(NewEvaluator(DefaultThresholds(), WithChecks(DayPrice)), DefaultCooldown, 10)
	cur := obs("NI")
	cur.Open = num("100")
	cur.Last = num("101.5")

	conds := tr.Observe([]Observation{cur}, t0)
	require.Len(t, conds, 1)
	assert.Equal(t, SeverityMedium, conds[0].Severity)
}

func TestTrackerDropsInstrumentsMissingFromCycle(t *testing.T) {
	tr := NewTracker(NewEvaluator(DefaultThresholds()), DefaultCooldown, 10)
	ni := obs("NI")
	ni.Last = num("100")
	tr.Observe([]Observation{ni}, t0)

	ss := obs("SS")
	ss.Last = num("50")
	tr.Observe([]Observation{ss}, t0.Add(time.Minute))

	_, ok := tr.Previous("NI")
	assert.False(t, ok)
}

func TestTrackerReconfigureKeepsCooldowns(t *testing.T) {
	tr := NewTracker(NewEvaluator(DefaultThresholds(), WithChecks(DayPrice)), DefaultCooldown, 10)
	cur := obs("NI")
	cur.Open = num("100")
	cur.Last = num("102")
	require.Len(t, tr.Observe([]Observation{cur}, t0), 1)

	tr.Reconfigure(NewEvaluator(DefaultThresholds(), WithChecks(DayPrice)), 10*time.Minute)
	assert.Empty(t, tr.Observe([]Observation{cur}, t0.Add(6*time.Minute)))
	assert.Len(t, tr.Observe([]Observation{cur}, t0.Add(10*time.Minute)), 1)
	assert.Equal(t, 10*time.Minute, tr.Cooldowns().Interval())
}

func TestHistoryCapsAndOrdersNewestFirst(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Add(Condition{Message: fmt.Sprintf("m%d", i)})
	}
	require.Equal(t, 3, h.Len())

	recent := h.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "m4", recent[0].Message)
	assert.Equal(t, "m3", recent[1].Message)
	assert.Len(t, h.Recent(0), 3)
}

func TestCooldownRegistryZeroIntervalAlwaysAllows(t *testing.T) {
	reg := NewCooldownRegistry(0)
	reg.Record("NI", DayPrice, t0)
	assert.True(t, reg.Allow("NI", DayPrice, t0))

	last, ok := reg.Last("NI", DayPrice)
	assert.True(t, ok)
	assert.Equal(t, t0, last)
}
