package message

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"duochat/internal/app/db"
	"duochat/internal/app/media"
	"duochat/internal/app/storage"
	"duochat/internal/app/user"
	"duochat/internal/pkg/errs"
	"duochat/internal/pkg/logx"
)

// MaxTextBytes is the maximum size of a message's text.
const MaxTextBytes = 5000

// Notifier receives every message after it has been durably stored.
type Notifier interface {
	NotifyNewMessage(msg Message) int
}

// SendInput is the body of a send request. At least one field must be set;
// Image is a base64 data URL.
type SendInput struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// Service stores messages and serves conversation reads.
type Service struct {
	queries  db.Querier
	store    storage.StorageService
	notifier Notifier
	logger   zerolog.Logger
}

// NewService wires a Service. store may be nil, in which case image messages are rejected.
func NewService(queries db.Querier, store storage.StorageService, notifier Notifier) *Service {
	return &Service{
		queries:  queries,
		store:    store,
		notifier: notifier,
		logger:   logx.Component("MessageService"),
	}
}

// Send validates and stores a message from senderID to receiverID, then hands
// it to the notifier. The notifier is never called when the write fails.
func (s *Service) Send(ctx context.Context, senderID, receiverID string, in SendInput) (Message, *errs.CustomError) {
	text := strings.TrimSpace(in.Text)
	if text == "" && in.Image == "" {
		return Message{}, errs.NewError(errs.ErrMessageEmpty)
	}

	if len(text) > MaxTextBytes {
		return Message{}, errs.NewError(errs.ErrMessageContentTooLong, MaxTextBytes)
	}

	senderUUID, ok := db.ParseUUID(senderID)
	if !ok {
		return Message{}, errs.NewError(errs.ErrUnauthorized)
	}

	receiverUUID, ok := db.ParseUUID(receiverID)
	if !ok {
		return Message{}, errs.NewError(errs.ErrInvalidParams)
	}

	if _, err := s.queries.GetUserByID(ctx, receiverUUID); err != nil {
		if db.IsNotFound(err) {
			return Message{}, errs.NewError(errs.ErrRecipientNotFound)
		}
		return Message{}, errs.NewError(errs.ErrUnknown, err)
	}

	var imageURL string
	if in.Image != "" {
		if s.store == nil {
			return Message{}, errs.NewError(errs.ErrFileStorageFailed)
		}

		url, customErr := media.UploadDataURL(ctx, s.store, "messages/"+senderID, in.Image)
		if customErr != nil {
			return Message{}, customErr
		}
		imageURL = url
	}

	row, err := s.queries.CreateMessage(ctx, db.CreateMessageParams{
		SenderID:   senderUUID,
		ReceiverID: receiverUUID,
		Text:       db.Text(text),
		Image:      db.Text(imageURL),
	})
	if err != nil {
		if imageURL != "" {
			s.discardUpload(ctx, imageURL)
		}
		if db.IsForeignKeyViolation(err) {
			return Message{}, errs.NewError(errs.ErrRecipientNotFound)
		}
		return Message{}, errs.NewError(errs.ErrUnknown, err)
	}

	msg := fromRow(row)

	delivered := s.notifier.NotifyNewMessage(msg)

	s.logger.Debug().
		Str("message_id", msg.ID).
		Str("sender_id", msg.SenderID).
		Str("receiver_id", msg.ReceiverID).
		Int("live_deliveries", delivered).
		Msg("Message stored.")

	return msg, nil
}

// discardUpload removes an image whose message was never stored. Failures are
// only logged; the request already failed.
func (s *Service) discardUpload(ctx context.Context, url string) {
	key := s.store.KeyFromURL(url)
	if key == "" {
		return
	}

	if err := s.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to delete orphaned message image.")
	}
}

// Conversation returns every message exchanged between me and peer, oldest first.
func (s *Service) Conversation(ctx context.Context, me, peer string) ([]Message, *errs.CustomError) {
	meUUID, ok := db.ParseUUID(me)
	if !ok {
		return nil, errs.NewError(errs.ErrUnauthorized)
	}

	peerUUID, ok := db.ParseUUID(peer)
	if !ok {
		return nil, errs.NewError(errs.ErrInvalidParams)
	}

	rows, err := s.queries.ListConversation(ctx, db.ListConversationParams{UserA: meUUID, UserB: peerUUID})
	if err != nil {
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	out := make([]Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}

// Contacts lists every user except me.
func (s *Service) Contacts(ctx context.Context, me string) ([]user.User, *errs.CustomError) {
	meUUID, ok := db.ParseUUID(me)
	if !ok {
		return nil, errs.NewError(errs.ErrUnauthorized)
	}

	rows, err := s.queries.ListUsersExcept(ctx, meUUID)
	if err != nil {
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	out := make([]user.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToUser())
	}
	return out, nil
}

func fromRow(m db.Message) Message {
	return Message{
		ID:         m.ID.String(),
		SenderID:   m.SenderID.String(),
		ReceiverID: m.ReceiverID.String(),
		Text:       m.Text.String,
		Image:      m.Image.String,
		CreatedAt:  m.CreatedAt.Time,
	}
}
