package store

import (
	"context"
	"strings"
	"time"
)

type Message struct {
	ID         int64     `json:"id"`
	ReportID   int64     `json:"report_id"`
	SenderID   int64     `json:"sender_id"`
	SenderRole string    `json:"sender_role"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

type InternalNote struct {
	ID         int64     `json:"id"`
	ReportID   int64     `json:"report_id"`
	AuthorID   int64     `json:"author_id"`
	AuthorRole string    `json:"author_role"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

type MessagesStore interface {
	AppendMessage(ctx context.Context, msg *Message) error
	ListMessages(ctx context.Context, reportID, afterID int64) ([]Message, error)
}

type NotesStore interface {
	AppendNote(ctx context.Context, note *InternalNote) error
	ListNotes(ctx context.Context, reportID, afterID int64) ([]InternalNote, error)
}

// threadTable holds the shared append/list logic; messages and notes live in
// disjoint tables and never share a handle.
type threadTable struct {
	db    *DB
	table string
}

type threadRow struct {
	id, reportID, authorID int64
	authorRole, content    string
	createdAt              time.Time
}

func (t threadTable) append(ctx context.Context, row *threadRow) error {
	row.createdAt = time.Now().UTC()
	row.content = strings.TrimSpace(row.content)
	return t.db.QueryRowContext(ctx, `
		INSERT INTO `+t.table+`(report_id, author_id, author_role, content, created_at)
		VALUES(?,?,?,?,?) RETURNING id`,
		row.reportID, row.authorID, row.authorRole, row.content, row.createdAt).Scan(&row.id)
}

func (t threadTable) list(ctx context.Context, reportID, afterID int64) ([]threadRow, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT id, report_id, author_id, author_role, content, created_at
		FROM `+t.table+` WHERE report_id=? AND id>?
		ORDER BY created_at ASC, id ASC`, reportID, afterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []threadRow
	for rows.Next() {
		var r threadRow
		if err := rows.Scan(&r.id, &r.reportID, &r.authorID, &r.authorRole, &r.content, &r.createdAt); err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

type messagesStore struct{ t threadTable }

func NewMessagesStore(db *DB) MessagesStore {
	return &messagesStore{t: threadTable{db: db, table: "report_messages"}}
}

func (s *messagesStore) AppendMessage(ctx context.Context, msg *Message) error {
	row := threadRow{reportID: msg.ReportID, authorID: msg.SenderID, authorRole: msg.SenderRole, content: msg.Content}
	if err := s.t.append(ctx, &row); err != nil {
		return err
	}
	msg.ID, msg.Content, msg.CreatedAt = row.id, row.content, row.createdAt
	return nil
}

func (s *messagesStore) ListMessages(ctx context.Context, reportID, afterID int64) ([]Message, error) {
	rows, err := s.t.list(ctx, reportID, afterID)
	if err != nil {
		return nil, err
	}
	out := make([]Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, Message{ID: r.id, ReportID: r.reportID, SenderID: r.authorID, SenderRole: r.authorRole, Content: r.content, CreatedAt: r.createdAt})
	}
	return out, nil
}

type notesStore struct{ t threadTable }

func NewNotesStore(db *DB) NotesStore {
	return &notesStore{t: threadTable{db: db, table: "report_internal_notes"}}
}

func (s *notesStore) AppendNote(ctx context.Context, note *InternalNote) error {
	row := threadRow{reportID: note.ReportID, authorID: note.AuthorID, authorRole: note.AuthorRole, content: note.Content}
	if err := s.t.append(ctx, &row); err != nil {
		return err
	}
	note.ID, note.Content, note.CreatedAt = row.id, row.content, row.createdAt
	return nil
}

func (s *notesStore) ListNotes(ctx context.Context, reportID, afterID int64) ([]InternalNote, error) {
	rows, err := s.t.list(ctx, reportID, afterID)
	if err != nil {
		return nil, err
	}
	out := make([]InternalNote, 0, len(rows))
	for _, r := range rows {
		out = append(out, InternalNote{ID: r.id, ReportID: r.reportID, AuthorID: r.authorID, AuthorRole: r.authorRole, Content: r.content, CreatedAt: r.createdAt})
	}
	return out, nil
}
