package storage

import (
	"testing"

	"hiroba/internal/pkg/errs"
)

func TestValidateAvatarSize(t *testing.T) {
	tests := []struct {
		name     string
		fileSize int64
		wantCode int
	}{
		{"valid", 1024, 0},
		{"at limit", MaxAvatarSize, 0},
		{"zero", 0, errs.ErrInvalidParams},
		{"negative", -1, errs.ErrInvalidParams},
		{"over limit", MaxAvatarSize + 1, errs.ErrFileSizeTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAvatarSize(tt.fileSize)
			if tt.wantCode == 0 {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || err.Code != tt.wantCode {
				t.Errorf("expected error code %d, got %v", tt.wantCode, err)
			}
		})
	}
}

func TestValidateAvatarType(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		mimeType string
		wantOK   bool
	}{
		{"png", "me.png", "image/png", true},
		{"jpeg alias", "me.jpg", "image/jpeg", true},
		{"webp uppercase mime", "me.webp", "IMAGE/WEBP", true},
		{"gif rejected", "me.gif", "image/gif", false},
		{"mime mismatch", "me.png", "image/jpeg", false},
		{"no extension", "avatar", "image/png", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAvatarType(tt.fileName, tt.mimeType)
			if tt.wantOK && err != nil {
				t.Errorf("expected %s/%s to be accepted, got %v", tt.fileName, tt.mimeType, err)
			}
			if !tt.wantOK && err == nil {
				t.Errorf("expected %s/%s to be rejected", tt.fileName, tt.mimeType)
			}
		})
	}
}
