package liveengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_NonPositiveFallsBackToDefaults(t *testing.T) {
	l := NewRateLimiter(0, 0)
	assert.Equal(t, DefaultRateLimit, l.limit)
	assert.Equal(t, time.Second, l.window)
}
