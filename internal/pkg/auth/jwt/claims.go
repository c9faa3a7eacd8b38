package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the claims carried by a duochat identity token.
type Payload struct {
	// StandardClaims carries exp, iat and iss. Embedded without a tag so the
	// fields sit at the top level of the token as RFC 7519 expects.
	jwt.StandardClaims

	// ID is the user's UUID; it is also the presence identity of every
	// live connection opened with this token.
	ID string `json:"id"`

	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
}
