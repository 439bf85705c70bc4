package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestBlocklistManager_ProcessSignal(t *testing.T) {
	m := NewBlocklistManager(nil, zap.NewNop())

	m.processSignal("agent-1:on")
	assert.True(t, m.IsBlocked("agent-1"))

	m.processSignal("agent-1:off")
	assert.False(t, m.IsBlocked("agent-1"))

	// "true" — легаси-форма включения
	m.processSignal("agent-2:true")
	assert.True(t, m.IsBlocked("agent-2"))

	// Мусорный payload игнорируется
	m.processSignal("garbage")
	assert.False(t, m.IsBlocked("garbage"))
}

func TestBlocklistManager_MarkAsBlocked(t *testing.T) {
	m := NewBlocklistManager(nil, zap.NewNop())
	assert.False(t, m.IsBlocked("agent-1"))
	m.MarkAsBlocked("agent-1")
	assert.True(t, m.IsBlocked("agent-1"))
}
