// Package chat keeps the ordered chat transcript of a room.
package chat

import "github.com/Tk21111/whiteboard_sync/config"

// Log is append-only between history loads. Entries are only added when the
// relay echoes them, so every member sees one server-relative order.
type Log struct {
	msgs []config.ChatMessage
}

// Replace swaps in the join-time history.
func (l *Log) Replace(history []config.ChatMessage) {
	l.msgs = append([]config.ChatMessage(nil), history...)
}

func (l *Log) Append(m config.ChatMessage) {
	l.msgs = append(l.msgs, m)
}

func (l *Log) Len() int { return len(l.msgs) }

// Messages returns a copy of the transcript.
func (l *Log) Messages() []config.ChatMessage {
	return append([]config.ChatMessage(nil), l.msgs...)
}
