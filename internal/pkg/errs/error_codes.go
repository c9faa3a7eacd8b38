/*
Package errs provides custom error types and application-level error code constants.

Codes identify business and system failures both inside the server and in the
JSON envelope returned to clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body is not valid JSON.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates trailing data after the JSON document.
	ErrExtraContentInBody = 1004

	// ErrRequestEntityTooLarge indicates that the request body exceeded the server limit.
	ErrRequestEntityTooLarge = 1006

	// ErrRateLimitExceeded indicates that the caller exceeded its request budget.
	ErrRateLimitExceeded = 1007

	// ErrNotFound indicates an unknown route.
	ErrNotFound = 1008
)

// 2xxx: Message and Content Errors
const (
	// ErrMessageEmpty indicates a message with neither text nor image.
	ErrMessageEmpty = 2201

	// ErrMessageContentTooLong indicates that message text exceeded the length limit.
	ErrMessageContentTooLong = 2202

	// ErrImageInvalid indicates an image that is not a supported base64 data URL.
	ErrImageInvalid = 2203

	// ErrFileSizeTooLarge indicates an image above the size limit.
	ErrFileSizeTooLarge = 2204

	// ErrRecipientNotFound indicates a message addressed to an unknown user.
	ErrRecipientNotFound = 2205
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrPowChallengeRequired indicates the client must complete a Proof-of-Work challenge first.
	ErrPowChallengeRequired = 3001

	// ErrPowChallengeInvalid indicates that the submitted proof was rejected.
	ErrPowChallengeInvalid = 3002

	// ErrUnauthorized indicates a missing or invalid identity token.
	ErrUnauthorized = 3101

	// ErrAlreadyLoggedIn indicates signup or login attempted with a valid session.
	ErrAlreadyLoggedIn = 3102

	// ErrMissingFields indicates that required credential fields were empty.
	ErrMissingFields = 3103

	// ErrInvalidEmail indicates a malformed email address.
	ErrInvalidEmail = 3104

	// ErrInvalidPassword indicates a password outside the accepted length.
	ErrInvalidPassword = 3105

	// ErrEmailAlreadyExists indicates signup with an email that is already registered.
	ErrEmailAlreadyExists = 3106

	// ErrInvalidCredentials indicates a failed login.
	ErrInvalidCredentials = 3107

	// ErrUserNotFound indicates the authenticated user no longer exists.
	ErrUserNotFound = 3108
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified internal server error.
	ErrUnknown = 5000

	// ErrFileStorageFailed indicates that the object store rejected an upload.
	ErrFileStorageFailed = 5001
)
