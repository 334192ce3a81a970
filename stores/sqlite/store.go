package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dannidrenovci/myriad-slides/core"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE COLLATE NOCASE,
	login TEXT,
	name TEXT,
	password_hash BLOB,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS presentations (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	status TEXT NOT NULL,
	file_path TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS presentations_user ON presentations (user_id, created_at);
CREATE TABLE IF NOT EXISTS slides (
	id TEXT PRIMARY KEY,
	presentation_id TEXT NOT NULL,
	layout_id TEXT NOT NULL,
	content TEXT NOT NULL,
	order_index INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS slides_presentation ON slides (presentation_id, order_index);
`

type sqliteStore struct {
	db *sql.DB
}

// NewStore opens (and migrates) the SQLite database at dataSourceName.
func NewStore(dataSourceName string) (*sqliteStore, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection serialises writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return &sqliteStore{db}, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// PresentationStore implementation
func (s *sqliteStore) CreatePresentation(ctx context.Context, p *core.Presentation) error {
	if p.UserID == "" {
		return fmt.Errorf("UserID cannot be empty")
	}
	if p.ID == "" {
		p.ID = ulid.Make().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.Status == "" {
		p.Status = core.StatusProcessing
	}

	log := logrus.WithFields(logrus.Fields{"user_id": p.UserID, "presentation_id": p.ID})
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO presentations (id, user_id, title, status, file_path, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		p.ID, p.UserID, p.Title, string(p.Status), p.FilePath, p.CreatedAt.UnixNano())
	if err != nil {
		log.WithError(err).Error("Failed to create presentation")
		return err
	}
	log.Info("Presentation created successfully")
	return nil
}

const presentationColumns = `p.id, p.user_id, p.title, p.status, COALESCE(p.file_path, ''), p.created_at,
	(SELECT COUNT(*) FROM slides s WHERE s.presentation_id = p.id)`

func scanPresentation(row interface{ Scan(...any) error }) (*core.Presentation, error) {
	var p core.Presentation
	var status string
	var created int64
	if err := row.Scan(&p.ID, &p.UserID, &p.Title, &status, &p.FilePath, &created, &p.SlideCount); err != nil {
		return nil, err
	}
	p.Status = core.Status(status)
	p.CreatedAt = time.Unix(0, created)
	return &p, nil
}

func (s *sqliteStore) GetPresentation(ctx context.Context, userID, id string) (*core.Presentation, error) {
	query := "SELECT " + presentationColumns + " FROM presentations p WHERE p.id = ?"
	args := []any{id}
	if userID != "" {
		query += " AND p.user_id = ?"
		args = append(args, userID)
	}

	p, err := scanPresentation(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		logrus.WithFields(logrus.Fields{"user_id": userID, "presentation_id": id}).Warn("Presentation not found for user")
		return nil, core.ErrNotFound
	}
	return p, err
}

func (s *sqliteStore) ListPresentations(ctx context.Context, userID string) ([]*core.Presentation, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+presentationColumns+" FROM presentations p WHERE p.user_id = ? ORDER BY p.created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]*core.Presentation, 0)
	for rows.Next() {
		p, err := scanPresentation(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func (s *sqliteStore) SetPresentationStatus(ctx context.Context, id string, status core.Status) error {
	res, err := s.db.ExecContext(ctx, "UPDATE presentations SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func (s *sqliteStore) DeletePresentation(ctx context.Context, userID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // Rollback on any error

	res, err := tx.ExecContext(ctx, "DELETE FROM presentations WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return err
	}
	if err := expectRow(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM slides WHERE presentation_id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

// SlideRowStore implementation
func (s *sqliteStore) ListSlides(ctx context.Context, presentationID string) ([]core.Slide, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, layout_id, content, order_index FROM slides WHERE presentation_id = ? ORDER BY order_index",
		presentationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slides []core.Slide
	for rows.Next() {
		sl := core.Slide{PresentationID: presentationID}
		var content string
		if err := rows.Scan(&sl.ID, &sl.LayoutID, &content, &sl.OrderIndex); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(content), &sl.Content); err != nil {
			return nil, fmt.Errorf("decode content of slide %s: %w", sl.ID, err)
		}
		slides = append(slides, sl)
	}
	return slides, rows.Err()
}

func (s *sqliteStore) CountSlides(ctx context.Context, presentationID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM slides WHERE presentation_id = ?", presentationID).Scan(&n)
	return n, err
}

func (s *sqliteStore) InsertSlides(ctx context.Context, slides ...core.Slide) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // Rollback on any error

	for _, sl := range slides {
		if sl.ID == "" {
			sl.ID = ulid.Make().String()
		}
		content, err := encodeContent(sl.Content)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO slides (id, presentation_id, layout_id, content, order_index) VALUES (?, ?, ?, ?, ?)",
			sl.ID, sl.PresentationID, sl.LayoutID, content, sl.OrderIndex)
		if err != nil {
			return fmt.Errorf("insert slide %s: %w", sl.ID, err)
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) SaveSlide(ctx context.Context, sl core.Slide) error {
	if sl.ID == "" {
		return fmt.Errorf("slide ID cannot be empty for save operation")
	}
	content, err := encodeContent(sl.Content)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO slides (id, presentation_id, layout_id, content, order_index) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			presentation_id = excluded.presentation_id,
			layout_id = excluded.layout_id,
			content = excluded.content,
			order_index = excluded.order_index`,
		sl.ID, sl.PresentationID, sl.LayoutID, content, sl.OrderIndex)
	return err
}

func (s *sqliteStore) UpdateSlide(ctx context.Context, id string, patch core.SlidePatch) error {
	var sets []string
	var args []any
	if patch.LayoutID != nil {
		sets = append(sets, "layout_id = ?")
		args = append(args, *patch.LayoutID)
	}
	if patch.Content != nil {
		content, err := encodeContent(patch.Content)
		if err != nil {
			return err
		}
		sets = append(sets, "content = ?")
		args = append(args, content)
	}
	if patch.OrderIndex != nil {
		sets = append(sets, "order_index = ?")
		args = append(args, *patch.OrderIndex)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx, "UPDATE slides SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func (s *sqliteStore) DeleteSlide(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM slides WHERE id = ?", id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// UserStore implementation
func (s *sqliteStore) CreateUser(ctx context.Context, user *core.User) error {
	if user.ID == "" {
		user.ID = ulid.Make().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, email, login, name, password_hash, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		user.ID, user.Email, user.Login, user.Name, user.PasswordHash, user.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("create user %s: %w", user.Email, err)
	}
	return nil
}

func (s *sqliteStore) FindUserByEmail(ctx context.Context, email string) (*core.User, error) {
	var u core.User
	var login, name sql.NullString
	var created int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, login, name, password_hash, created_at FROM users WHERE email = ?", email).
		Scan(&u.ID, &u.Email, &login, &name, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Login, u.Name = login.String, name.String
	u.CreatedAt = time.Unix(0, created)
	return &u, nil
}

func encodeContent(c core.Content) (string, error) {
	if c == nil {
		c = core.Content{}
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode slide content: %w", err)
	}
	return string(b), nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
