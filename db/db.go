// Package db persists room snapshots, chat and the drawing event log.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/Tk21111/whiteboard_sync/config"
	"github.com/Tk21111/whiteboard_sync/internal/logx"
)

// Operation Types
const (
	OpSaveSnapshot = iota
	OpAddChat
	OpWriteEvent
)

var ErrClosed = errors.New("db: writer closed")

type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, roomID, imageData string) error
	// Snapshot returns ok=false when the room has none.
	Snapshot(ctx context.Context, roomID string) (string, bool, error)
}

type ChatStore interface {
	AddChat(ctx context.Context, roomID string, m config.ChatMessage) error
	ChatHistory(ctx context.Context, roomID string) ([]config.ChatMessage, error)
}

// EventStore reads back the relayed drawing log of a room.
type EventStore interface {
	Events(ctx context.Context, roomID string) ([]Event, error)
}

// Event is one relayed drawing frame.
type Event struct {
	ID        int64
	RoomID    string
	Type      string
	Payload   []byte
	CreatedAt int64
}

type DbJob struct {
	Type     int
	RoomID   string
	Snapshot string
	Chat     config.ChatMessage
	Event    Event
	Now      int64
	Result   chan error
}

// Writer funnels every write through one goroutine; reads go straight to
// the pool.
type Writer struct {
	db   *sql.DB
	opCh chan DbJob
	done chan struct{}
	log  *zap.Logger

	stmtSnapshot *sql.Stmt
	stmtChat     *sql.Stmt
	stmtEvent    *sql.Stmt

	mu     sync.RWMutex
	closed bool
}

const schema = `
	CREATE TABLE IF NOT EXISTS whiteboard_snapshots (
		room_id TEXT PRIMARY KEY,
		snapshot_data TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		user_name TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chat_messages_room
	ON chat_messages(room_id, id);

	CREATE TABLE IF NOT EXISTS whiteboard_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		event_data BLOB NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_whiteboard_events_room
	ON whiteboard_events(room_id, id);
`

func Open(dbPath string, log *zap.Logger) (*Writer, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		return nil, multierr.Append(fmt.Errorf("pragma: %w", err), db.Close())
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, multierr.Append(fmt.Errorf("schema: %w", err), db.Close())
	}

	w := &Writer{
		db:   db,
		opCh: make(chan DbJob, 10000),
		done: make(chan struct{}),
		log:  logx.Or(log),
	}

	if err := w.prepare(); err != nil {
		return nil, multierr.Append(err, w.closeDB())
	}

	go w.writerLoop()
	return w, nil
}

func (w *Writer) prepare() error {
	var err error

	w.stmtSnapshot, err = w.db.Prepare(`
		INSERT INTO whiteboard_snapshots (room_id, snapshot_data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(room_id)
		DO UPDATE SET
			snapshot_data = excluded.snapshot_data,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("prepare snapshot: %w", err)
	}

	w.stmtChat, err = w.db.Prepare(`
		INSERT INTO chat_messages (room_id, user_name, text, created_at)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare chat: %w", err)
	}

	w.stmtEvent, err = w.db.Prepare(`
		INSERT INTO whiteboard_events (room_id, event_type, event_data, created_at)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare event: %w", err)
	}

	return nil
}

func (w *Writer) writerLoop() {
	defer close(w.done)

	for job := range w.opCh {
		switch job.Type {

		case OpSaveSnapshot:
			_, err := w.stmtSnapshot.Exec(job.RoomID, job.Snapshot, job.Now)
			job.Result <- err

		case OpAddChat:
			_, err := w.stmtChat.Exec(job.RoomID, job.Chat.User, job.Chat.Text, job.Now)
			job.Result <- err

		case OpWriteEvent:
			e := job.Event
			if _, err := w.stmtEvent.Exec(e.RoomID, e.Type, e.Payload, e.CreatedAt); err != nil {
				w.log.Error("db write event", zap.String("room", e.RoomID), zap.Error(err))
			}
		}
	}
}

// Close drains queued writes, then closes statements and the database.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.opCh)
	w.mu.Unlock()

	<-w.done
	return w.closeDB()
}

func (w *Writer) closeDB() error {
	var err error
	for _, s := range []*sql.Stmt{w.stmtSnapshot, w.stmtChat, w.stmtEvent} {
		if s != nil {
			err = multierr.Append(err, s.Close())
		}
	}
	return multierr.Append(err, w.db.Close())
}

// submit queues a job and waits for its result.
func (w *Writer) submit(ctx context.Context, job DbJob) error {
	job.Result = make(chan error, 1)
	job.Now = time.Now().UnixMilli()

	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return ErrClosed
	}
	select {
	case w.opCh <- job:
	case <-ctx.Done():
		w.mu.RUnlock()
		return ctx.Err()
	}
	w.mu.RUnlock()

	select {
	case err := <-job.Result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// --- Public Write Methods ---

func (w *Writer) SaveSnapshot(ctx context.Context, roomID, imageData string) error {
	if err := w.submit(ctx, DbJob{Type: OpSaveSnapshot, RoomID: roomID, Snapshot: imageData}); err != nil {
		return fmt.Errorf("save snapshot %s: %w", roomID, err)
	}
	w.log.Info("snapshot stored", zap.String("room", roomID), zap.String("size", humanize.Bytes(uint64(len(imageData)))))
	return nil
}

func (w *Writer) AddChat(ctx context.Context, roomID string, m config.ChatMessage) error {
	if err := w.submit(ctx, DbJob{Type: OpAddChat, RoomID: roomID, Chat: m}); err != nil {
		return fmt.Errorf("add chat %s: %w", roomID, err)
	}
	return nil
}

// WriteEvent appends to the event log without waiting. Events are dropped
// when the queue is full.
func (w *Writer) WriteEvent(e Event) {
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().UnixMilli()
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}

	select {
	case w.opCh <- DbJob{Type: OpWriteEvent, Event: e}:
	default:
		w.log.Warn("db queue full, event dropped", zap.String("room", e.RoomID), zap.String("type", e.Type))
	}
}

// --- Read Methods ---

func (w *Writer) Snapshot(ctx context.Context, roomID string) (string, bool, error) {
	var data string
	err := w.db.QueryRowContext(ctx, `
		SELECT snapshot_data
		FROM whiteboard_snapshots
		WHERE room_id = ?
	`, roomID).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return data, true, nil
}

func (w *Writer) ChatHistory(ctx context.Context, roomID string) ([]config.ChatMessage, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT user_name, text
		FROM chat_messages
		WHERE room_id = ?
		ORDER BY id ASC
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []config.ChatMessage
	for rows.Next() {
		var m config.ChatMessage
		if err := rows.Scan(&m.User, &m.Text); err != nil {
			return nil, err
		}
		history = append(history, m)
	}
	return history, rows.Err()
}

func (w *Writer) Events(ctx context.Context, roomID string) ([]Event, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT id, room_id, event_type, event_data, created_at
		FROM whiteboard_events
		WHERE room_id = ?
		ORDER BY id ASC
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.RoomID, &e.Type, &e.Payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
