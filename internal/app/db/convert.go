package db

import (
	"github.com/jackc/pgx/v5/pgtype"

	"duochat/internal/app/user"
)

// ParseUUID converts a textual ID into a pgtype.UUID. ok is false for malformed input.
func ParseUUID(s string) (id pgtype.UUID, ok bool) {
	if err := id.Scan(s); err != nil {
		return pgtype.UUID{}, false
	}
	return id, id.Valid
}

// Text wraps s as a nullable column value; "" becomes NULL.
func Text(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

// ToUser maps a users row to its public view.
func (u User) ToUser() user.User {
	return user.User{
		ID:         u.ID.String(),
		FullName:   u.FullName,
		Email:      u.Email,
		ProfilePic: u.ProfilePic.String,
		CreatedAt:  u.CreatedAt.Time,
	}
}
