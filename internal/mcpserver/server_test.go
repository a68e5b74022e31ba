package mcpserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewServer_RegistersBothTools(t *testing.T) {
	t.Parallel()

	s := NewServer(ServerDeps{})

	assert.Equal(t, []string{ToolNameInspect, ToolNameTick}, s.ListToolNames())
}
