/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific business or protocol errors both internally
and in communication with clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request or payload validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON is malformed.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate exceeded the set limit.
	ErrRateLimitExceeded = 1005
)

// 2xxx: Presence and Messaging Errors
const (
	// ErrNotLoggedIn indicates an event that requires a completed login was
	// received on a connection that has not logged in.
	ErrNotLoggedIn = 2101

	// ErrNameInvalid indicates an empty or over-long display name.
	ErrNameInvalid = 2102

	// ErrNameTaken indicates the display name is already in use by another
	// live connection and uniqueness enforcement is enabled.
	ErrNameTaken = 2103

	// ErrMessageContentTooLong indicates message content exceeded the maximum length.
	ErrMessageContentTooLong = 2201

	// ErrMessageNotFound indicates the referenced message id is unknown.
	ErrMessageNotFound = 2202

	// ErrNotPermitted indicates the connection lacks permission for the operation.
	ErrNotPermitted = 2203

	// ErrMessageRateExceeded indicates the per-connection message rate limit was hit.
	ErrMessageRateExceeded = 2204
)

// 3xxx: Avatar Storage Errors
const (
	// ErrFileSizeTooLarge indicates an avatar upload exceeding the size limit.
	ErrFileSizeTooLarge = 3001

	// ErrFileTypeInvalid indicates an unsupported avatar file type.
	ErrFileTypeInvalid = 3002

	// ErrFileStorageFailed indicates a storage backend failure.
	ErrFileStorageFailed = 3003

	// ErrStorageDisabled indicates the avatar storage feature is not configured.
	ErrStorageDisabled = 3004
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified internal server error.
	ErrUnknown = 5000
)
