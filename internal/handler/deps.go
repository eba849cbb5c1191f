package handler

import (
	"hiroba/internal/app/space"
	"hiroba/internal/app/storage"
	"hiroba/internal/configs"
)

// AppDeps bundles the dependencies shared by the HTTP handlers. Storage is
// nil when avatar upload is not configured.
type AppDeps struct {
	Hub     *space.Hub
	Config  *configs.AppConfig
	Storage storage.StorageService
}
