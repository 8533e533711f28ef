package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pscheid92/roomqa/internal/domain"
	"github.com/pscheid92/roomqa/internal/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderView(t *testing.T) {
	var buf bytes.Buffer
	entries := []reconcile.Entry{
		{Message: domain.Message{ID: "m2", Message: "How do channels work?", ReactionCount: 4, Answered: true}},
		{Message: domain.Message{ID: "m1", Message: "What is a goroutine?", ReactionCount: 1}, Voted: true},
	}

	require.NoError(t, renderView(&buf, entries))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "VOTES"))
	assert.Contains(t, lines[1], "How do channels work?")
	assert.Contains(t, lines[1], "yes")
	assert.Contains(t, lines[2], "1*")
}

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	root := newRootCmd()

	for _, name := range []string{"rooms", "create-room", "ask", "vote", "unvote", "answer", "watch"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}
