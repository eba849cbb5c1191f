/*
Package space contains the core logic of the shared-space relay.

This file defines the History store, the message-side counterpart of the
presence Registry. It is backed by an embedded in-memory SQLite database:
messages survive only for the process lifetime, pagination is plain SQL with a
seq cursor, and retention is bounded. Like the Registry, every call happens on
the Hub's run goroutine, so operations need no locking of their own.
*/
package space

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"hiroba/internal/pkg/logx"
)

const (
	// DefaultPageSize is the number of messages returned by a history fetch
	// when the client does not ask for a specific page size.
	DefaultPageSize = 25

	// MaxPageSize caps the page size a client may request.
	MaxPageSize = 100
)

const historySchema = `
CREATE TABLE IF NOT EXISTS messages (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	id            TEXT NOT NULL UNIQUE,
	kind          TEXT NOT NULL,
	sender        TEXT NOT NULL,
	sender_id     TEXT NOT NULL DEFAULT '',
	content       TEXT NOT NULL,
	ts            TEXT NOT NULL,
	reactions     TEXT NOT NULL DEFAULT '',
	reply_to      TEXT NOT NULL DEFAULT '',
	reply_sender  TEXT NOT NULL DEFAULT '',
	reply_content TEXT NOT NULL DEFAULT ''
);
`

// ErrMessageUnknown is returned by History operations referencing an id that
// is not (or no longer) in the store.
var ErrMessageUnknown = errors.New("message not found in history")

// History is the bounded, process-lifetime message store.
type History struct {
	db     *sql.DB
	limit  int
	logger zerolog.Logger
}

// NewHistory opens the in-memory database and prepares the schema. The limit
// bounds how many messages are retained; older rows are pruned on append.
func NewHistory(limit int) (*History, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory history database: %w", err)
	}

	// A second pool connection would see its own empty :memory: database,
	// so the pool is pinned to a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	return &History{
		db:     db,
		limit:  limit,
		logger: logx.Logger().With().Str("component", "History").Logger(),
	}, nil
}

// Close releases the underlying database.
func (h *History) Close() error {
	return h.db.Close()
}

// Append stores a message and prunes rows beyond the retention limit.
func (h *History) Append(msg Message) error {
	reactions, err := encodeReactions(msg.Reactions)
	if err != nil {
		return fmt.Errorf("failed to encode reactions: %w", err)
	}

	var replySender, replyContent string
	if msg.ReplyContext != nil {
		replySender = msg.ReplyContext.Sender
		replyContent = msg.ReplyContext.Content
	}

	_, err = h.db.Exec(
		`INSERT INTO messages (id, kind, sender, sender_id, content, ts, reactions, reply_to, reply_sender, reply_content)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, string(msg.Kind), msg.Sender, msg.SenderID, msg.Content,
		msg.Timestamp, reactions, msg.ReplyTo, replySender, replyContent,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	_, err = h.db.Exec(
		`DELETE FROM messages WHERE seq NOT IN (SELECT seq FROM messages ORDER BY seq DESC LIMIT ?)`,
		h.limit,
	)
	if err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}

	return nil
}

// Get returns the stored message with the given id.
func (h *History) Get(messageID string) (Message, error) {
	row := h.db.QueryRow(
		`SELECT id, kind, sender, sender_id, content, ts, reactions, reply_to, reply_sender, reply_content
		 FROM messages WHERE id = ?`,
		messageID,
	)

	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, ErrMessageUnknown
	}
	if err != nil {
		return Message{}, fmt.Errorf("failed to load message: %w", err)
	}

	return msg, nil
}

// Page returns one page of messages older than the before cursor (zero means
// newest first), in chronological order. It fetches one extra row to derive
// hasMore without a count query. The returned cursor addresses the page that
// precedes this one and is only meaningful when hasMore is true.
func (h *History) Page(before int64, limit int) (messages []Message, hasMore bool, nextCursor int64, err error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	rows, err := h.db.Query(
		`SELECT seq, id, kind, sender, sender_id, content, ts, reactions, reply_to, reply_sender, reply_content
		 FROM messages
		 WHERE (? = 0 OR seq < ?)
		 ORDER BY seq DESC
		 LIMIT ?`,
		before, before, limit+1,
	)
	if err != nil {
		return nil, false, 0, fmt.Errorf("failed to query history page: %w", err)
	}
	defer rows.Close()

	var oldestSeq int64
	messages = make([]Message, 0, limit)

	for rows.Next() {
		if len(messages) == limit {
			hasMore = true
			break
		}

		var seq int64
		var msg Message
		var kind, reactions, replySender, replyContent string

		if err := rows.Scan(&seq, &msg.ID, &kind, &msg.Sender, &msg.SenderID,
			&msg.Content, &msg.Timestamp, &reactions, &msg.ReplyTo,
			&replySender, &replyContent); err != nil {
			return nil, false, 0, fmt.Errorf("failed to scan history row: %w", err)
		}

		msg.Kind = MessageKind(kind)
		if msg.Reactions, err = decodeReactions(reactions); err != nil {
			return nil, false, 0, err
		}
		if msg.ReplyTo != "" {
			msg.ReplyContext = &ReplyContext{Sender: replySender, Content: replyContent}
		}

		oldestSeq = seq
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, false, 0, fmt.Errorf("failed to iterate history rows: %w", err)
	}

	slices.Reverse(messages)

	if hasMore {
		nextCursor = oldestSeq
	}

	return messages, hasMore, nextCursor, nil
}

// React adds or removes one display name under the given emoji and returns
// the complete updated reaction map for broadcast. Adding an already-present
// reaction or removing an absent one is a no-op that still returns the map.
func (h *History) React(messageID, emoji, displayName string, add bool) (map[string][]string, error) {
	var stored string
	err := h.db.QueryRow(`SELECT reactions FROM messages WHERE id = ?`, messageID).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMessageUnknown
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load reactions: %w", err)
	}

	reactions, err := decodeReactions(stored)
	if err != nil {
		return nil, err
	}
	if reactions == nil {
		reactions = make(map[string][]string)
	}

	names := reactions[emoji]
	idx := slices.Index(names, displayName)

	if add && idx < 0 {
		reactions[emoji] = append(names, displayName)
	} else if !add && idx >= 0 {
		names = slices.Delete(names, idx, idx+1)
		if len(names) == 0 {
			delete(reactions, emoji)
		} else {
			reactions[emoji] = names
		}
	}

	encoded, err := encodeReactions(reactions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode reactions: %w", err)
	}

	if _, err := h.db.Exec(`UPDATE messages SET reactions = ? WHERE id = ?`, encoded, messageID); err != nil {
		return nil, fmt.Errorf("failed to store reactions: %w", err)
	}

	return reactions, nil
}

// Delete removes the message with the given id.
func (h *History) Delete(messageID string) error {
	res, err := h.db.Exec(`DELETE FROM messages WHERE id = ?`, messageID)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrMessageUnknown
	}

	return nil
}

// Clear removes every stored message.
func (h *History) Clear() error {
	if _, err := h.db.Exec(`DELETE FROM messages`); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Len returns the number of stored messages.
func (h *History) Len() (int, error) {
	var count int
	if err := h.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return count, nil
}

// scanner covers both *sql.Row and *sql.Rows for scanMessage.
type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (Message, error) {
	var msg Message
	var kind, reactions, replySender, replyContent string

	if err := row.Scan(&msg.ID, &kind, &msg.Sender, &msg.SenderID, &msg.Content,
		&msg.Timestamp, &reactions, &msg.ReplyTo, &replySender, &replyContent); err != nil {
		return Message{}, err
	}

	msg.Kind = MessageKind(kind)

	var err error
	if msg.Reactions, err = decodeReactions(reactions); err != nil {
		return Message{}, err
	}
	if msg.ReplyTo != "" {
		msg.ReplyContext = &ReplyContext{Sender: replySender, Content: replyContent}
	}

	return msg, nil
}

func encodeReactions(reactions map[string][]string) (string, error) {
	if len(reactions) == 0 {
		return "", nil
	}

	encoded, err := json.Marshal(reactions)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func decodeReactions(stored string) (map[string][]string, error) {
	if stored == "" {
		return nil, nil
	}

	var reactions map[string][]string
	if err := json.Unmarshal([]byte(stored), &reactions); err != nil {
		return nil, fmt.Errorf("failed to decode stored reactions: %w", err)
	}
	return reactions, nil
}
