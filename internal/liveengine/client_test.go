package liveengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReconnectConfig_NextDelay_FirstAttemptIsBase(t *testing.T) {
	cfg := DefaultReconnectConfig()
	d := cfg.NextDelay(1, 0)
	assert.Equal(t, cfg.Base, d)
}
