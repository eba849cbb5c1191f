/*
Package req provides helper functions for HTTP request parsing and data binding.

It encapsulates strict JSON body binding with unified error reporting, used by
the few plain-HTTP endpoints the relay exposes next to its WebSocket surface.
*/
package req

import (
	"encoding/json"
	"net/http"
	"strings"

	"hiroba/internal/pkg/errs"
)

// BindJSON binds the JSON body of the request to the destination struct dst.
// Unknown fields and trailing content are rejected.
func BindJSON(r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}
