// Package store is the durable client-side half of the messenger: a
// SQLite database holding users, chats and messages for one device.
// The relay keeps nothing, so everything a client knows across
// sessions lives here.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/enot3481-eng/messenger-app/internal/models"
)

// ErrNotInitialized is returned by every operation before Open has
// succeeded, so callers surface an explicit error instead of silently
// corrupting state.
var ErrNotInitialized = errors.New("store not initialized")

// ErrTagTaken mirrors the directory's tag-uniqueness rule locally; the
// users table enforces it by schema.
var ErrTagTaken = errors.New("tag already in use")

// Store handles the local messenger database. Mutations are serialized
// by an internal lock, which keeps the last-message recomputation
// consistent; reads observe every prior same-process mutation
// immediately.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at dbPath.
// If dbPath is empty, defaults to "./data/messenger.db".
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if dbPath == "" {
		dbPath = "./data/messenger.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	// A single connection serializes mutations, preserving the
	// per-chat last-message invariant without a separate lock.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// initSchema creates tables if they don't exist.
func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE,
		nickname TEXT NOT NULL DEFAULT '',
		tag TEXT NOT NULL UNIQUE COLLATE NOCASE,
		avatar TEXT NOT NULL DEFAULT '',
		bio TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS chats (
		id TEXT PRIMARY KEY,
		is_group INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		last_message_id TEXT,
		last_message_ts INTEGER
	);

	CREATE TABLE IF NOT EXISTS chat_participants (
		chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (chat_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		chat_id TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		content TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'text',
		ts INTEGER NOT NULL,
		is_read INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS session_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_participants_user ON chat_participants(user_id);
	CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id);
	CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages(ts);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ready() error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	return nil
}

// ── Messages ────────────────────────────────────────────────────────

// PutMessage appends or overwrites a message by id, then recomputes
// the chat's last message. Resending the same id is idempotent: the
// row is replaced in place and keeps its insertion order. A strictly
// newer timestamp wins the last-message slot; ties keep the existing
// one.
func (s *Store) PutMessage(ctx context.Context, m models.Message) error {
	if err := s.ready(); err != nil {
		return err
	}
	if m.ID == "" || m.ChatID == "" {
		return errors.New("message id and chatId are required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// ON CONFLICT DO UPDATE keeps the original rowid, so insertion
	// order survives idempotent re-puts.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, chat_id, sender_id, content, type, ts, is_read)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			type = excluded.type,
			ts = excluded.ts,
			is_read = excluded.is_read
	`, m.ID, m.ChatID, m.SenderID, m.Content, m.Type, m.Timestamp, boolToInt(m.IsRead))
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE chats
		SET last_message_id = ?, last_message_ts = ?
		WHERE id = ? AND (last_message_ts IS NULL OR last_message_ts < ?)
	`, m.ID, m.Timestamp, m.ChatID, m.Timestamp)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// ListMessages returns a chat's history ordered by timestamp
// ascending, ties broken by insertion order.
func (s *Store) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, sender_id, content, type, ts, is_read
		FROM messages
		WHERE chat_id = ?
		ORDER BY ts ASC, rowid ASC
	`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

// SearchMessages returns a chat's messages whose content contains
// query, case-insensitively, in history order.
func (s *Store) SearchMessages(ctx context.Context, chatID, query string) ([]models.Message, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, sender_id, content, type, ts, is_read
		FROM messages
		WHERE chat_id = ? AND instr(lower(content), lower(?)) > 0
		ORDER BY ts ASC, rowid ASC
	`, chatID, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

// MarkRead flags a message as read, the only mutation a message
// permits after creation.
func (s *Store) MarkRead(ctx context.Context, messageID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `UPDATE messages SET is_read = 1 WHERE id = ?`, messageID)
	return err
}

// UnreadCount counts messages in chatID not yet read and not sent by
// selfID.
func (s *Store) UnreadCount(ctx context.Context, chatID, selfID string) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE chat_id = ? AND is_read = 0 AND sender_id != ?
	`, chatID, selfID).Scan(&n)
	return n, err
}

func scanMessages(rows *sql.Rows) ([]models.Message, error) {
	var out []models.Message
	for rows.Next() {
		var m models.Message
		var isRead int
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.Type, &m.Timestamp, &isRead); err != nil {
			return nil, err
		}
		m.IsRead = isRead == 1
		out = append(out, m)
	}
	return out, rows.Err()
}

// ── Chats ───────────────────────────────────────────────────────────

// PutChat stores a chat and its participant list, replacing any prior
// version.
func (s *Store) PutChat(ctx context.Context, c models.Chat) error {
	if err := s.ready(); err != nil {
		return err
	}
	if c.ID == "" {
		return errors.New("chat id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chats (id, is_group, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET is_group = excluded.is_group
	`, c.ID, boolToInt(c.IsGroup), c.CreatedAt)
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM chat_participants WHERE chat_id = ?`, c.ID); err != nil {
		return err
	}
	for i, uid := range c.ParticipantIDs {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO chat_participants (chat_id, user_id, position) VALUES (?, ?, ?)
		`, c.ID, uid, i); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetChat loads one chat with participants and last message.
func (s *Store) GetChat(ctx context.Context, chatID string) (models.Chat, bool, error) {
	if err := s.ready(); err != nil {
		return models.Chat{}, false, err
	}

	var cr chatRow
	err := s.db.QueryRowContext(ctx, `
		SELECT id, is_group, created_at, last_message_id FROM chats WHERE id = ?
	`, chatID).Scan(&cr.id, &cr.isGroup, &cr.createdAt, &cr.lastMsgID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Chat{}, false, nil
		}
		return models.Chat{}, false, err
	}
	c, err := s.loadChat(ctx, cr)
	if err != nil {
		return models.Chat{}, false, err
	}
	return c, true, nil
}

// EnsureDirectChat finds the direct chat between a and b, creating it
// if this device has never seen one. The participant pair is the
// natural key; the relay does not deduplicate chats, clients do.
func (s *Store) EnsureDirectChat(ctx context.Context, a, b string) (models.Chat, error) {
	if err := s.ready(); err != nil {
		return models.Chat{}, err
	}

	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT c.id
		FROM chats c
		JOIN chat_participants p1 ON p1.chat_id = c.id AND p1.user_id = ?
		JOIN chat_participants p2 ON p2.chat_id = c.id AND p2.user_id = ?
		WHERE c.is_group = 0
		  AND (SELECT COUNT(*) FROM chat_participants p WHERE p.chat_id = c.id) = 2
	`, a, b).Scan(&id)
	switch {
	case err == nil:
		c, _, err := s.GetChat(ctx, id)
		return c, err
	case errors.Is(err, sql.ErrNoRows):
		c := models.Chat{
			ID:             uuid.New().String(),
			ParticipantIDs: []string{a, b},
			CreatedAt:      time.Now().UnixMilli(),
			IsGroup:        false,
		}
		if err := s.PutChat(ctx, c); err != nil {
			return models.Chat{}, err
		}
		return c, nil
	default:
		return models.Chat{}, err
	}
}

// ListChats returns every chat the participant belongs to, ordered by
// effective last activity descending: last message timestamp when one
// exists, chat creation time otherwise.
func (s *Store) ListChats(ctx context.Context, participantID string) ([]models.Chat, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	// Drain the cursor completely before loading details: the store
	// runs on a single connection, and a nested query while these rows
	// are open would wait on it forever.
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.is_group, c.created_at, c.last_message_id
		FROM chats c
		JOIN chat_participants p ON p.chat_id = c.id
		WHERE p.user_id = ?
		ORDER BY COALESCE(c.last_message_ts, c.created_at) DESC
	`, participantID)
	if err != nil {
		return nil, err
	}

	var base []chatRow
	for rows.Next() {
		var cr chatRow
		if err := rows.Scan(&cr.id, &cr.isGroup, &cr.createdAt, &cr.lastMsgID); err != nil {
			rows.Close()
			return nil, err
		}
		base = append(base, cr)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	var out []models.Chat
	for _, cr := range base {
		c, err := s.loadChat(ctx, cr)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type chatRow struct {
	id        string
	isGroup   int
	createdAt int64
	lastMsgID sql.NullString
}

// loadChat fills in participants and the last message for a base chat
// row. Must only be called with no other cursor open.
func (s *Store) loadChat(ctx context.Context, cr chatRow) (models.Chat, error) {
	c := models.Chat{
		ID:        cr.id,
		IsGroup:   cr.isGroup == 1,
		CreatedAt: cr.createdAt,
	}

	prows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM chat_participants WHERE chat_id = ? ORDER BY position
	`, c.ID)
	if err != nil {
		return models.Chat{}, err
	}
	defer prows.Close()
	for prows.Next() {
		var uid string
		if err := prows.Scan(&uid); err != nil {
			return models.Chat{}, err
		}
		c.ParticipantIDs = append(c.ParticipantIDs, uid)
	}
	if err := prows.Err(); err != nil {
		return models.Chat{}, err
	}

	if cr.lastMsgID.Valid {
		var m models.Message
		var isRead int
		err := s.db.QueryRowContext(ctx, `
			SELECT id, chat_id, sender_id, content, type, ts, is_read
			FROM messages WHERE id = ?
		`, cr.lastMsgID.String).Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.Type, &m.Timestamp, &isRead)
		if err == nil {
			m.IsRead = isRead == 1
			c.LastMessage = &m
		} else if !errors.Is(err, sql.ErrNoRows) {
			return models.Chat{}, err
		}
	}

	return c, nil
}

// ── Profiles ────────────────────────────────────────────────────────

// UpsertProfile stores a profile, replacing any existing one for the
// same identity. The schema's unique tag index is the local mirror of
// the directory's tag-uniqueness rule.
func (s *Store) UpsertProfile(ctx context.Context, p models.Profile) error {
	if err := s.ready(); err != nil {
		return err
	}
	if p.ID == "" {
		return errors.New("profile id is required")
	}
	tag := models.NormalizeTag(p.Tag)
	if tag == "" {
		return errors.New("profile tag is required")
	}

	var email interface{}
	if p.Email != "" {
		email = strings.ToLower(p.Email)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, nickname, tag, avatar, bio)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			nickname = excluded.nickname,
			tag = excluded.tag,
			avatar = excluded.avatar,
			bio = excluded.bio
	`, p.ID, email, p.DisplayName, tag, p.AvatarRef, p.Bio)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) &&
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique &&
			strings.Contains(err.Error(), "users.tag") {
			return ErrTagTaken
		}
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// FindProfile returns the locally known profile for an identity.
func (s *Store) FindProfile(ctx context.Context, id string) (models.Profile, bool, error) {
	if err := s.ready(); err != nil {
		return models.Profile{}, false, err
	}
	return s.queryProfile(ctx, `SELECT id, email, nickname, tag, avatar, bio FROM users WHERE id = ?`, id)
}

// FindProfileByTag is the local, offline fallback for the directory's
// exact tag lookup. Case-insensitive.
func (s *Store) FindProfileByTag(ctx context.Context, tag string) (models.Profile, bool, error) {
	if err := s.ready(); err != nil {
		return models.Profile{}, false, err
	}
	return s.queryProfile(ctx,
		`SELECT id, email, nickname, tag, avatar, bio FROM users WHERE tag = ? COLLATE NOCASE`,
		models.NormalizeTag(tag))
}

// SearchProfilesByTag is the local, offline fallback for the
// directory's substring search over tag and display name.
// Case-insensitive, unordered.
func (s *Store) SearchProfilesByTag(ctx context.Context, query string) ([]models.Profile, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	q := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(query)), "@")
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, nickname, tag, avatar, bio
		FROM users
		WHERE instr(lower(tag), ?) > 0 OR instr(lower(nickname), ?) > 0
	`, q, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) queryProfile(ctx context.Context, query string, arg interface{}) (models.Profile, bool, error) {
	p, err := scanProfile(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Profile{}, false, nil
		}
		return models.Profile{}, false, err
	}
	return p, true, nil
}

func scanProfile(row rowScanner) (models.Profile, error) {
	var p models.Profile
	var email sql.NullString
	if err := row.Scan(&p.ID, &email, &p.DisplayName, &p.Tag, &p.AvatarRef, &p.Bio); err != nil {
		return models.Profile{}, err
	}
	p.Email = email.String
	return p, nil
}

// ── Session state ───────────────────────────────────────────────────

const currentUserKey = "currentUser"

// SetCurrentUser stores the identity this device is logged in as.
func (s *Store) SetCurrentUser(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, currentUserKey, id)
	return err
}

// CurrentUser returns the identity stored by SetCurrentUser, or empty.
func (s *Store) CurrentUser(ctx context.Context) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM session_state WHERE key = ?`, currentUserKey).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return id, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
