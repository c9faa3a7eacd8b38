package handler

import (
	"duochat/internal/app/db"
	"duochat/internal/app/message"
	"duochat/internal/app/presence"
	"duochat/internal/app/storage"
	"duochat/internal/configs"
	"duochat/internal/pkg/pow"
)

// AppDeps carries everything the handlers need.
type AppDeps struct {
	// Hub owns the live connections. The ws handler registers every upgraded
	// socket with it; /health reads its counts.
	Hub *presence.Hub

	Config *configs.AppConfig

	// Storage receives profile pictures. Nil when S3 is not configured, in
	// which case update-profile with an image is rejected.
	Storage storage.StorageService

	DB db.Querier

	// Messages stores messages and hands them to the Hub for live delivery.
	Messages *message.Service

	// Pow gates signup behind a proof-of-work challenge. Nil disables the
	// challenge routes entirely.
	Pow *pow.PoWManager
}
