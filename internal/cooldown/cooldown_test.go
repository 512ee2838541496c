package cooldown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRemaining_Scenarios(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	ms := now.UnixMilli()

	cases := []struct {
		name     string
		last     int64
		cooldown int
		want     int
	}{
		{"three seconds into a five second window", ms - 3000, 5, 2},
		{"just issued", ms, 5, 5},
		{"rounds partial second up", ms - 4001, 5, 1},
		{"last millisecond still blocks", ms - 4999, 5, 1},
		{"window fully elapsed", ms - 5000, 5, 0},
		{"long past", ms - 60_000, 5, 0},
		{"zero cooldown", ms - 100, 0, 0},
		{"negative cooldown", ms - 100, -3, 0},
		{"no command yet", 0, 30, 0},
		{"negative command time", -1, 30, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Remaining(now, tc.last, tc.cooldown))
		})
	}
}

func TestRemaining_NonPositiveCooldownNeverBlocks(t *testing.T) {
	now := time.Now()
	for cooldown := -50; cooldown <= 0; cooldown++ {
		for _, offset := range []int64{0, 1, 999, 1000, 60_000} {
			last := now.UnixMilli() - offset
			assert.Zero(t, Remaining(now, last, cooldown), "cooldown=%d offset=%d", cooldown, offset)
		}
	}
}

func TestRemaining_MonotonicWithinWindow(t *testing.T) {
	start := time.UnixMilli(1_700_000_000_000)
	last := start.UnixMilli()

	prev := Remaining(start, last, 30)
	for step := 0; step <= 35_000; step += 137 {
		got := Remaining(start.Add(time.Duration(step)*time.Millisecond), last, 30)
		assert.LessOrEqual(t, got, prev, "step %dms", step)
		assert.GreaterOrEqual(t, got, 0)
		prev = got
	}
	assert.Zero(t, prev)
}

func TestRemaining_NewCommandJumpsUp(t *testing.T) {
	now := time.UnixMilli(1_700_000_100_000)
	old := Remaining(now, now.UnixMilli()-29_000, 30)
	fresh := Remaining(now, now.UnixMilli()-500, 30)
	assert.Equal(t, 1, old)
	assert.Equal(t, 30, fresh)
}

func TestUntil(t *testing.T) {
	last := time.UnixMilli(1_700_000_000_000)
	assert.True(t, Until(last.UnixMilli(), 10).Equal(last.Add(10*time.Second)))
	assert.True(t, Until(0, 10).IsZero())
	assert.True(t, Until(last.UnixMilli(), 0).IsZero())
}
