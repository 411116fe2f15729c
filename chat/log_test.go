package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Tk21111/whiteboard_sync/config"
)

func TestLog_ReplaceThenAppend(t *testing.T) {
	var l Log
	l.Append(config.ChatMessage{User: "stale", Text: "x"})

	l.Replace([]config.ChatMessage{{User: "Alice", Text: "hi"}, {User: "Bob", Text: "yo"}})
	l.Append(config.ChatMessage{User: "Carol", Text: "hey"})

	assert.Equal(t, []config.ChatMessage{
		{User: "Alice", Text: "hi"},
		{User: "Bob", Text: "yo"},
		{User: "Carol", Text: "hey"},
	}, l.Messages())
	assert.Equal(t, 3, l.Len())
}

func TestLog_CopiesAreIsolated(t *testing.T) {
	history := []config.ChatMessage{{User: "Alice", Text: "hi"}}

	var l Log
	l.Replace(history)
	history[0].Text = "changed"

	out := l.Messages()
	out[0].User = "mallory"

	assert.Equal(t, "hi", l.Messages()[0].Text)
	assert.Equal(t, "Alice", l.Messages()[0].User)
}

func TestLog_ReplaceWithEmpty(t *testing.T) {
	var l Log
	l.Append(config.ChatMessage{User: "a", Text: "b"})
	l.Replace(nil)
	assert.Zero(t, l.Len())
	assert.Empty(t, l.Messages())
}
