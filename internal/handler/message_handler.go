package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"duochat/internal/app/message"
	"duochat/internal/pkg/auth/jwt"
	"duochat/internal/pkg/req"
	"duochat/internal/pkg/resp"
)

// HandleListContacts lists every user except the caller.
func HandleListContacts(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		users, customErr := deps.Messages.Contacts(r.Context(), identity.ID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, users)
	}
}

// HandleGetConversation returns the conversation with the user in the path, oldest first.
func HandleGetConversation(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		msgs, customErr := deps.Messages.Conversation(r.Context(), identity.ID, chi.URLParam(r, "id"))
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, msgs)
	}
}

// HandleSendMessage stores a message for the user in the path. The live
// newMessage push happens inside the service once the row is written.
func HandleSendMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		var input message.SendInput
		if customErr := req.BindJSON(w, r, &input, req.ImageBodyLimit); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		msg, customErr := deps.Messages.Send(r.Context(), identity.ID, chi.URLParam(r, "id"), input)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondCreated(w, r, msg)
	}
}
