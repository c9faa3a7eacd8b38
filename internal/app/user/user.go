/*
Package user contains the account record shared by the auth and message handlers.
*/
package user

import "time"

// User is the public view of an account. The password hash never leaves the db package.
// JSON names follow the wire format the web client already consumes.
type User struct {
	ID         string    `json:"_id"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	ProfilePic string    `json:"profilePic"`
	CreatedAt  time.Time `json:"createdAt"`
}
