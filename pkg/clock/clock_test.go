package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/artshare/pkg/clock"
)

func TestMock(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)
	c := clock.NewMock(t0)
	assert.Equal(t, t0, c.Now())

	c.Advance(time.Hour)
	assert.Equal(t, t0.Add(time.Hour), c.Now())

	c.Set(t0)
	assert.Equal(t, t0, c.Now())
}

func TestSystem(t *testing.T) {
	t.Parallel()

	now := clock.System{}.Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.WithinDuration(t, time.Now(), now, time.Second)
}
