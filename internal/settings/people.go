package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var emailValidator = validator.New()

type personRow struct {
	ID        int64  `db:"id"`
	Name      string `db:"name"`
	Email     string `db:"email"`
	CreatedAt string `db:"created_at"`
}

func (r personRow) toPerson() Person {
	return Person{ID: r.ID, Name: r.Name, Email: r.Email, CreatedAt: parseTimestamp(r.CreatedAt)}
}

func normalizePerson(p Person) (Person, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.TrimSpace(p.Email)
	if p.Name == "" {
		return p, validationError("save person", "name is required")
	}
	if err := emailValidator.Var(p.Email, "required,email"); err != nil {
		return p, validationError("save person", fmt.Sprintf("email %q is invalid", p.Email))
	}
	p.Email = strings.ToLower(p.Email)
	return p, nil
}

// ListPeople returns all contacts ordered by name.
func (s *Store) ListPeople(ctx context.Context) ([]Person, error) {
	ctx = ensureContext(ctx)
	var rows []personRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, name, email, created_at FROM people ORDER BY name COLLATE NOCASE, id`); err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	people := make([]Person, 0, len(rows))
	for _, row := range rows {
		people = append(people, row.toPerson())
	}
	return people, nil
}

// GetPerson fetches a contact by id.
func (s *Store) GetPerson(ctx context.Context, id int64) (Person, error) {
	ctx = ensureContext(ctx)
	var row personRow
	err := s.db.GetContext(ctx, &row, `SELECT id, name, email, created_at FROM people WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Person{}, notFoundError("get person", fmt.Sprintf("person %d", id))
	}
	if err != nil {
		return Person{}, fmt.Errorf("get person: %w", err)
	}
	return row.toPerson(), nil
}

// CreatePerson inserts a contact. Emails are unique.
func (s *Store) CreatePerson(ctx context.Context, p Person) (Person, error) {
	p, err := normalizePerson(p)
	if err != nil {
		return Person{}, err
	}
	res, err := s.execWithRetry(ctx, `INSERT INTO people (name, email, created_at) VALUES (?, ?, ?)`,
		p.Name, p.Email, s.timestamp())
	if err != nil {
		if isUniqueViolation(err) {
			return Person{}, validationError("create person", fmt.Sprintf("email %q already exists", p.Email))
		}
		return Person{}, fmt.Errorf("insert person: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Person{}, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetPerson(ctx, id)
}

// UpdatePerson replaces the name and email of an existing contact.
func (s *Store) UpdatePerson(ctx context.Context, p Person) (Person, error) {
	p, err := normalizePerson(p)
	if err != nil {
		return Person{}, err
	}
	res, err := s.execWithRetry(ctx, `UPDATE people SET name = ?, email = ? WHERE id = ?`, p.Name, p.Email, p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return Person{}, validationError("update person", fmt.Sprintf("email %q already exists", p.Email))
		}
		return Person{}, fmt.Errorf("update person: %w", err)
	}
	if err := requireAffected(res, "update person", fmt.Sprintf("person %d", p.ID)); err != nil {
		return Person{}, err
	}
	return s.GetPerson(ctx, p.ID)
}

// DeletePerson removes a contact and, through the foreign key, its auto-sends.
func (s *Store) DeletePerson(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM people WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	return requireAffected(res, "delete person", fmt.Sprintf("person %d", id))
}

type autoSendRow struct {
	ID         int64          `db:"id"`
	PersonID   int64          `db:"person_id"`
	Subject    string         `db:"subject"`
	Body       string         `db:"body"`
	Interval   string         `db:"interval"`
	Enabled    bool           `db:"enabled"`
	LastSentAt sql.NullString `db:"last_sent_at"`
	CreatedAt  string         `db:"created_at"`
}

func (r autoSendRow) toAutoSend() AutoSend {
	send := AutoSend{
		ID:        r.ID,
		PersonID:  r.PersonID,
		Subject:   r.Subject,
		Body:      r.Body,
		Interval:  NormalizeTimeframe(r.Interval),
		Enabled:   r.Enabled,
		CreatedAt: parseTimestamp(r.CreatedAt),
	}
	if r.LastSentAt.Valid {
		if ts := parseTimestamp(r.LastSentAt.String); !ts.IsZero() {
			send.LastSentAt = &ts
		}
	}
	return send
}

const autoSendColumns = `id, person_id, subject, body, interval, enabled, last_sent_at, created_at`

func normalizeAutoSend(a AutoSend) (AutoSend, error) {
	a.Subject = strings.TrimSpace(a.Subject)
	if a.PersonID <= 0 {
		return a, validationError("save auto-send", "person_id is required")
	}
	if a.Subject == "" {
		return a, validationError("save auto-send", "subject is required")
	}
	a.Interval = NormalizeTimeframe(string(a.Interval))
	return a, nil
}

// ListAutoSends returns every auto-send, optionally limited to one person when
// personID > 0.
func (s *Store) ListAutoSends(ctx context.Context, personID int64) ([]AutoSend, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + autoSendColumns + ` FROM auto_sends`
	args := []any{}
	if personID > 0 {
		query += ` WHERE person_id = ?`
		args = append(args, personID)
	}
	query += ` ORDER BY id`

	var rows []autoSendRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list auto-sends: %w", err)
	}
	sends := make([]AutoSend, 0, len(rows))
	for _, row := range rows {
		sends = append(sends, row.toAutoSend())
	}
	return sends, nil
}

// GetAutoSend fetches an auto-send by id.
func (s *Store) GetAutoSend(ctx context.Context, id int64) (AutoSend, error) {
	ctx = ensureContext(ctx)
	var row autoSendRow
	err := s.db.GetContext(ctx, &row, `SELECT `+autoSendColumns+` FROM auto_sends WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return AutoSend{}, notFoundError("get auto-send", fmt.Sprintf("auto-send %d", id))
	}
	if err != nil {
		return AutoSend{}, fmt.Errorf("get auto-send: %w", err)
	}
	return row.toAutoSend(), nil
}

// CreateAutoSend inserts an auto-send for an existing person.
func (s *Store) CreateAutoSend(ctx context.Context, a AutoSend) (AutoSend, error) {
	a, err := normalizeAutoSend(a)
	if err != nil {
		return AutoSend{}, err
	}
	if _, err := s.GetPerson(ctx, a.PersonID); err != nil {
		return AutoSend{}, err
	}
	res, err := s.execWithRetry(ctx, `INSERT INTO auto_sends (person_id, subject, body, interval, enabled, last_sent_at, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.PersonID, a.Subject, a.Body, string(a.Interval), a.Enabled, nullableTime(a.LastSentAt), s.timestamp())
	if err != nil {
		return AutoSend{}, fmt.Errorf("insert auto-send: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return AutoSend{}, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetAutoSend(ctx, id)
}

// UpdateAutoSend replaces the mutable fields of an auto-send.
func (s *Store) UpdateAutoSend(ctx context.Context, a AutoSend) (AutoSend, error) {
	a, err := normalizeAutoSend(a)
	if err != nil {
		return AutoSend{}, err
	}
	if _, err := s.GetPerson(ctx, a.PersonID); err != nil {
		return AutoSend{}, err
	}
	res, err := s.execWithRetry(ctx, `UPDATE auto_sends
        SET person_id = ?, subject = ?, body = ?, interval = ?, enabled = ?, last_sent_at = ?
        WHERE id = ?`,
		a.PersonID, a.Subject, a.Body, string(a.Interval), a.Enabled, nullableTime(a.LastSentAt), a.ID)
	if err != nil {
		return AutoSend{}, fmt.Errorf("update auto-send: %w", err)
	}
	if err := requireAffected(res, "update auto-send", fmt.Sprintf("auto-send %d", a.ID)); err != nil {
		return AutoSend{}, err
	}
	return s.GetAutoSend(ctx, a.ID)
}

// DeleteAutoSend removes an auto-send.
func (s *Store) DeleteAutoSend(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM auto_sends WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete auto-send: %w", err)
	}
	return requireAffected(res, "delete auto-send", fmt.Sprintf("auto-send %d", id))
}

func requireAffected(res interface{ RowsAffected() (int64, error) }, operation, subject string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", operation, err)
	}
	if n == 0 {
		return notFoundError(operation, subject)
	}
	return nil
}

func nullableTime(ts *time.Time) any {
	if ts == nil || ts.IsZero() {
		return nil
	}
	return ts.UTC().Format(time.RFC3339Nano)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
