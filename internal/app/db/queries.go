/*
Package db owns the PostgreSQL connection pool, schema migrations, and the
typed queries used by the REST handlers.

Queries follows the layout sqlc generates (DBTX, Querier, params structs) so the
handlers can depend on the Querier interface and tests can substitute a fake.
*/
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Querier lists every query the application runs.
type Querier interface {
	CreateUser(ctx context.Context, arg CreateUserParams) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id pgtype.UUID) (User, error)
	ListUsersExcept(ctx context.Context, id pgtype.UUID) ([]User, error)
	UpdateProfilePic(ctx context.Context, arg UpdateProfilePicParams) (User, error)
	CreateMessage(ctx context.Context, arg CreateMessageParams) (Message, error)
	ListConversation(ctx context.Context, arg ListConversationParams) ([]Message, error)
}

// Queries implements Querier on top of a DBTX.
type Queries struct {
	db DBTX
}

var _ Querier = (*Queries)(nil)

// New returns Queries bound to db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// User is a row of the users table.
type User struct {
	ID           pgtype.UUID
	FullName     string
	Email        string
	PasswordHash string
	ProfilePic   pgtype.Text
	CreatedAt    pgtype.Timestamptz
	UpdatedAt    pgtype.Timestamptz
}

// Message is a row of the messages table.
type Message struct {
	ID         pgtype.UUID
	SenderID   pgtype.UUID
	ReceiverID pgtype.UUID
	Text       pgtype.Text
	Image      pgtype.Text
	CreatedAt  pgtype.Timestamptz
}

const userColumns = `id, full_name, email, password_hash, profile_pic, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &u.ProfilePic, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

const createUser = `-- name: CreateUser :one
INSERT INTO users (full_name, email, password_hash)
VALUES ($1, lower($2), $3)
RETURNING ` + userColumns

// CreateUserParams are the inputs of CreateUser.
type CreateUserParams struct {
	FullName     string
	Email        string
	PasswordHash string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, createUser, arg.FullName, arg.Email, arg.PasswordHash))
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByEmail, email))
}

const getUserByID = `-- name: GetUserByID :one
SELECT ` + userColumns + ` FROM users WHERE id = $1`

func (q *Queries) GetUserByID(ctx context.Context, id pgtype.UUID) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByID, id))
}

const listUsersExcept = `-- name: ListUsersExcept :many
SELECT ` + userColumns + ` FROM users WHERE id <> $1 ORDER BY full_name, id`

func (q *Queries) ListUsersExcept(ctx context.Context, id pgtype.UUID) ([]User, error) {
	rows, err := q.db.Query(ctx, listUsersExcept, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

const updateProfilePic = `-- name: UpdateProfilePic :one
UPDATE users SET profile_pic = $2, updated_at = now()
WHERE id = $1
RETURNING ` + userColumns

// UpdateProfilePicParams are the inputs of UpdateProfilePic.
type UpdateProfilePicParams struct {
	ID         pgtype.UUID
	ProfilePic pgtype.Text
}

func (q *Queries) UpdateProfilePic(ctx context.Context, arg UpdateProfilePicParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, updateProfilePic, arg.ID, arg.ProfilePic))
}

const messageColumns = `id, sender_id, receiver_id, text, image, created_at`

func scanMessage(row pgx.Row) (Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.Image, &m.CreatedAt)
	return m, err
}

const createMessage = `-- name: CreateMessage :one
INSERT INTO messages (sender_id, receiver_id, text, image)
VALUES ($1, $2, $3, $4)
RETURNING ` + messageColumns

// CreateMessageParams are the inputs of CreateMessage.
type CreateMessageParams struct {
	SenderID   pgtype.UUID
	ReceiverID pgtype.UUID
	Text       pgtype.Text
	Image      pgtype.Text
}

func (q *Queries) CreateMessage(ctx context.Context, arg CreateMessageParams) (Message, error) {
	return scanMessage(q.db.QueryRow(ctx, createMessage, arg.SenderID, arg.ReceiverID, arg.Text, arg.Image))
}

const listConversation = `-- name: ListConversation :many
SELECT ` + messageColumns + ` FROM messages
WHERE (sender_id = $1 AND receiver_id = $2)
   OR (sender_id = $2 AND receiver_id = $1)
ORDER BY created_at, id`

// ListConversationParams selects both directions between UserA and UserB.
type ListConversationParams struct {
	UserA pgtype.UUID
	UserB pgtype.UUID
}

func (q *Queries) ListConversation(ctx context.Context, arg ListConversationParams) ([]Message, error) {
	rows, err := q.db.Query(ctx, listConversation, arg.UserA, arg.UserB)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
