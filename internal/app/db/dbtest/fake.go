// Package dbtest provides an in-memory db.Querier for handler and service tests.
package dbtest

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"duochat/internal/app/db"
)

// Fake is a goroutine-safe in-memory implementation of db.Querier.
// Setting Err makes every call fail with it; CreateMessageErr fails only
// CreateMessage.
type Fake struct {
	mu       sync.Mutex
	users    []db.User
	messages []db.Message
	clock    time.Time

	Err              error
	CreateMessageErr error
}

var _ db.Querier = (*Fake)(nil)

// New returns an empty Fake.
func New() *Fake {
	return &Fake{clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *Fake) tick() pgtype.Timestamptz {
	f.clock = f.clock.Add(time.Second)
	return pgtype.Timestamptz{Time: f.clock, Valid: true}
}

func newID() pgtype.UUID {
	id, _ := db.ParseUUID(uuid.NewString())
	return id
}

// Messages returns a copy of every stored message.
func (f *Fake) Messages() []db.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.messages)
}

func (f *Fake) CreateUser(_ context.Context, arg db.CreateUserParams) (db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return db.User{}, f.Err
	}

	email := strings.ToLower(arg.Email)
	for _, u := range f.users {
		if u.Email == email {
			return db.User{}, &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
		}
	}

	now := f.tick()
	u := db.User{
		ID:           newID(),
		FullName:     arg.FullName,
		Email:        email,
		PasswordHash: arg.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.users = append(f.users, u)
	return u, nil
}

func (f *Fake) GetUserByEmail(_ context.Context, email string) (db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return db.User{}, f.Err
	}

	for _, u := range f.users {
		if u.Email == strings.ToLower(email) {
			return u, nil
		}
	}
	return db.User{}, pgx.ErrNoRows
}

func (f *Fake) GetUserByID(_ context.Context, id pgtype.UUID) (db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return db.User{}, f.Err
	}

	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return db.User{}, pgx.ErrNoRows
}

func (f *Fake) ListUsersExcept(_ context.Context, id pgtype.UUID) ([]db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}

	var out []db.User
	for _, u := range f.users {
		if u.ID != id {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b db.User) int { return strings.Compare(a.FullName, b.FullName) })
	return out, nil
}

func (f *Fake) UpdateProfilePic(_ context.Context, arg db.UpdateProfilePicParams) (db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return db.User{}, f.Err
	}

	for i := range f.users {
		if f.users[i].ID == arg.ID {
			f.users[i].ProfilePic = arg.ProfilePic
			f.users[i].UpdatedAt = f.tick()
			return f.users[i], nil
		}
	}
	return db.User{}, pgx.ErrNoRows
}

func (f *Fake) CreateMessage(_ context.Context, arg db.CreateMessageParams) (db.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return db.Message{}, f.Err
	}
	if f.CreateMessageErr != nil {
		return db.Message{}, f.CreateMessageErr
	}

	if !f.hasUserLocked(arg.SenderID) || !f.hasUserLocked(arg.ReceiverID) {
		return db.Message{}, &pgconn.PgError{Code: "23503"}
	}

	if !arg.Text.Valid && !arg.Image.Valid {
		return db.Message{}, errors.New("messages_has_content violated")
	}

	m := db.Message{
		ID:         newID(),
		SenderID:   arg.SenderID,
		ReceiverID: arg.ReceiverID,
		Text:       arg.Text,
		Image:      arg.Image,
		CreatedAt:  f.tick(),
	}
	f.messages = append(f.messages, m)
	return m, nil
}

func (f *Fake) ListConversation(_ context.Context, arg db.ListConversationParams) ([]db.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}

	var out []db.Message
	for _, m := range f.messages {
		if (m.SenderID == arg.UserA && m.ReceiverID == arg.UserB) ||
			(m.SenderID == arg.UserB && m.ReceiverID == arg.UserA) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *Fake) hasUserLocked(id pgtype.UUID) bool {
	for _, u := range f.users {
		if u.ID == id {
			return true
		}
	}
	return false
}
