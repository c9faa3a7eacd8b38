package handler

import (
	"net/http"
	"net/mail"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"duochat/internal/app/db"
	"duochat/internal/app/media"
	"duochat/internal/app/user"
	"duochat/internal/pkg/auth/jwt"
	"duochat/internal/pkg/errs"
	"duochat/internal/pkg/logx"
	"duochat/internal/pkg/req"
	"duochat/internal/pkg/resp"
)

const (
	MinPasswordLength = 6
	MaxPasswordLength = 72 // bcrypt ignores anything longer
)

func errNotFound() *errs.CustomError { return errs.NewError(errs.ErrNotFound) }

type SignupInput struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleSignup creates an account, signs the caller in and returns the new user.
func HandleSignup(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if payload := jwt.GetPayloadFromContext(r); payload != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAlreadyLoggedIn))
			return
		}

		var input SignupInput
		if customErr := req.BindJSON(w, r, &input, req.DefaultBodyLimit); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		input.FullName = strings.TrimSpace(input.FullName)
		input.Email = strings.TrimSpace(input.Email)

		if input.FullName == "" || input.Email == "" || input.Password == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrMissingFields))
			return
		}

		passwordLen := utf8.RuneCountInString(input.Password)
		if passwordLen < MinPasswordLength || len(input.Password) > MaxPasswordLength {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidPassword, MinPasswordLength))
			return
		}

		if addr, err := mail.ParseAddress(input.Email); err != nil || addr.Address != input.Email {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidEmail))
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		row, err := deps.DB.CreateUser(r.Context(), db.CreateUserParams{
			FullName:     input.FullName,
			Email:        input.Email,
			PasswordHash: string(hashedPassword),
		})
		if err != nil {
			if db.IsUniqueViolation(err) {
				logx.Warn("signup conflict: email already exists")
				resp.RespondError(w, r, errs.NewError(errs.ErrEmailAlreadyExists))
				return
			}

			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		u := row.ToUser()
		if !issueSession(w, r, deps, u) {
			return
		}

		logx.Info("User signed up", "user_id", u.ID)
		resp.RespondCreated(w, r, u)
	}
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin verifies credentials and sets the session cookie.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input LoginInput
		if customErr := req.BindJSON(w, r, &input, req.DefaultBodyLimit); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.Email == "" || input.Password == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrMissingFields))
			return
		}

		row, err := deps.DB.GetUserByEmail(r.Context(), strings.TrimSpace(input.Email))
		if err != nil {
			if !db.IsNotFound(err) {
				resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
				return
			}

			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(input.Password)); err != nil {
			logx.Warn("login: password mismatch", "user_id", row.ID.String())
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		u := row.ToUser()
		if !issueSession(w, r, deps, u) {
			return
		}

		resp.RespondSuccess(w, r, u)
	}
}

// HandleLogout expires the session cookie. Live connections opened with the
// old token stay up until the client closes them.
func HandleLogout(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jwt.ClearAuthCookie(w, !deps.Config.IsDevelopment())
		resp.RespondSuccess(w, r, map[string]string{"message": "Logged out successfully"})
	}
}

// HandleCheckAuth returns the current user.
func HandleCheckAuth(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, customErr := currentUser(r, deps)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, u)
	}
}

type UpdateProfileInput struct {
	ProfilePic string `json:"profilePic"`
}

// HandleUpdateProfile uploads a new profile picture and removes the previous one.
func HandleUpdateProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		var input UpdateProfileInput
		if customErr := req.BindJSON(w, r, &input, req.ImageBodyLimit); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.ProfilePic == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrMissingFields))
			return
		}

		if deps.Storage == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		previous, customErr := currentUser(r, deps)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		url, customErr := media.UploadDataURL(r.Context(), deps.Storage, "avatars/"+identity.ID, input.ProfilePic)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		userUUID, _ := db.ParseUUID(identity.ID)
		row, err := deps.DB.UpdateProfilePic(r.Context(), db.UpdateProfilePicParams{
			ID:         userUUID,
			ProfilePic: db.Text(url),
		})
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		if key := deps.Storage.KeyFromURL(previous.ProfilePic); key != "" {
			if err := deps.Storage.Delete(r.Context(), key); err != nil {
				logx.Warn("update_profile: failed to delete previous avatar", "key", key, "error", err)
			}
		}

		resp.RespondSuccess(w, r, row.ToUser())
	}
}

// currentUser loads the authenticated caller. A valid token for a deleted
// account is treated as signed out.
func currentUser(r *http.Request, deps *AppDeps) (user.User, *errs.CustomError) {
	identity := jwt.GetPayloadFromContext(r)
	if identity == nil {
		return user.User{}, errs.NewError(errs.ErrUnauthorized)
	}

	userUUID, ok := db.ParseUUID(identity.ID)
	if !ok {
		return user.User{}, errs.NewError(errs.ErrUnauthorized)
	}

	row, err := deps.DB.GetUserByID(r.Context(), userUUID)
	if err != nil {
		if db.IsNotFound(err) {
			return user.User{}, errs.NewError(errs.ErrUnauthorized)
		}
		return user.User{}, errs.NewError(errs.ErrUnknown, err)
	}

	return row.ToUser(), nil
}

// issueSession signs a token for u and sets it as the session cookie.
// It writes the error response itself and returns false on failure.
func issueSession(w http.ResponseWriter, r *http.Request, deps *AppDeps, u user.User) bool {
	token, err := jwt.GenerateToken(&jwt.Payload{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.FullName,
	}, deps.Config.JWTSecret, jwt.UserIdentityExpiration)
	if err != nil {
		resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
		return false
	}

	jwt.SetAuthCookie(w, token, !deps.Config.IsDevelopment())
	return true
}
