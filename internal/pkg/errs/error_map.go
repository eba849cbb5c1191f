/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to
standardize responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format."},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format."},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data."},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Presence and Messaging Errors
	ErrNotLoggedIn:           {Code: ErrNotLoggedIn, Message: "Please enter the space first."},
	ErrNameInvalid:           {Code: ErrNameInvalid, Message: "Invalid display name."},
	ErrNameTaken:             {Code: ErrNameTaken, Message: "This name is already in use."},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long."},
	ErrMessageNotFound:       {Code: ErrMessageNotFound, Message: "Message not found."},
	ErrNotPermitted:          {Code: ErrNotPermitted, Message: "You are not allowed to do that."},
	ErrMessageRateExceeded:   {Code: ErrMessageRateExceeded, Message: "You are sending messages too quickly."},

	// 3xxx: Avatar Storage Errors
	ErrFileSizeTooLarge:  {Code: ErrFileSizeTooLarge, Message: "File is too large."},
	ErrFileTypeInvalid:   {Code: ErrFileTypeInvalid, Message: "Unsupported file type."},
	ErrFileStorageFailed: {Code: ErrFileStorageFailed, Message: "File upload failed. Please try again."},
	ErrStorageDisabled:   {Code: ErrStorageDisabled, Message: "Avatar upload is not available.", Status: http.StatusNotFound},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
