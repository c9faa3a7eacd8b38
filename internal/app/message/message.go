/*
Package message defines the persisted chat message and the service that stores
messages and hands them to the live fan-out once the write has succeeded.
*/
package message

import "time"

// Message is a stored direct message between two users.
// JSON names follow the wire format the web client already consumes.
type Message struct {
	ID         string    `json:"_id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
