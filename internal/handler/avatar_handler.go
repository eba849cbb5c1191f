package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"hiroba/internal/app/storage"
	"hiroba/internal/pkg/errs"
	"hiroba/internal/pkg/logx"
	"hiroba/internal/pkg/req"
	"hiroba/internal/pkg/resp"
)

// avatarKeyPrefix namespaces avatar objects in the bucket. Refs outside it
// are rejected so presign endpoints cannot touch arbitrary keys.
const avatarKeyPrefix = "avatars/"

// PresignAvatarInput is the JSON input for generating an avatar upload URL.
// PreviousRef optionally names the uploader's current avatar, which is
// deleted once the replacement URL has been issued.
type PresignAvatarInput struct {
	FileName    string `json:"file_name"`
	MimeType    string `json:"mime_type"`
	FileSize    int64  `json:"file_size"`
	PreviousRef string `json:"previous_ref,omitempty"`
}

// PresignAvatarOutput carries the presigned upload URL and the object key the
// client should later present as its avatarRef at login.
type PresignAvatarOutput struct {
	UploadURL string `json:"upload_url"`
	AvatarRef string `json:"avatar_ref"`
}

// HandlePresignAvatarURL creates the HandlerFunc that issues a time-limited
// presigned URL for an avatar upload. The resulting object key is the opaque
// avatarRef carried in the login payload.
func HandlePresignAvatarURL(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Storage == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageDisabled))
			return
		}

		var input PresignAvatarInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if err := storage.ValidateAvatarSize(input.FileSize); err != nil {
			resp.RespondError(w, r, err)
			return
		}

		if err := storage.ValidateAvatarType(input.FileName, input.MimeType); err != nil {
			resp.RespondError(w, r, err)
			return
		}

		if input.PreviousRef != "" && !validAvatarRef(input.PreviousRef) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		fileExt := strings.ToLower(filepath.Ext(input.FileName))
		avatarRef := avatarKeyPrefix + uuid.New().String() + fileExt

		uploadURL, err := deps.Storage.PresignUpload(
			r.Context(),
			avatarRef,
			input.MimeType,
			input.FileSize,
			storage.PresignedURLDuration,
		)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		// The replaced object is removed best-effort; a failure leaves an
		// orphaned object, never a broken response.
		if input.PreviousRef != "" {
			if err := deps.Storage.Delete(r.Context(), input.PreviousRef); err != nil {
				logx.Warn("Failed to delete replaced avatar", "avatar_ref", input.PreviousRef)
			}
		}

		resp.RespondSuccess(w, r, PresignAvatarOutput{
			UploadURL: uploadURL,
			AvatarRef: avatarRef,
		})
	}
}

// AvatarURLOutput carries the presigned download URL for an avatarRef.
type AvatarURLOutput struct {
	DownloadURL string `json:"download_url"`
}

// HandleAvatarDownloadURL creates the HandlerFunc that resolves an avatarRef
// (as carried in presence snapshots) into a time-limited download URL. The
// ref is passed as the `ref` query parameter.
func HandleAvatarDownloadURL(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Storage == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageDisabled))
			return
		}

		avatarRef := r.URL.Query().Get("ref")
		if !validAvatarRef(avatarRef) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		downloadURL, err := deps.Storage.PresignDownload(r.Context(), avatarRef, storage.PresignedURLDuration)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, AvatarURLOutput{DownloadURL: downloadURL})
	}
}

// validAvatarRef accepts only refs the presign endpoint itself issues:
// a single object key under the avatar prefix.
func validAvatarRef(ref string) bool {
	if !strings.HasPrefix(ref, avatarKeyPrefix) {
		return false
	}

	key := strings.TrimPrefix(ref, avatarKeyPrefix)
	return key != "" && !strings.Contains(key, "/")
}
