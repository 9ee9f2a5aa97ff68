package handler

import (
	"github.com/prometheus/client_golang/prometheus"

	"relaychat/internal/app/chat"
	"relaychat/internal/app/storage"
	"relaychat/internal/app/user"
	"relaychat/internal/configs"
)

type AppDeps struct {
	Hub            *chat.Hub
	Users          user.Store
	StorageService storage.StorageService
	Config         *configs.AppConfig
	Metrics        prometheus.Gatherer
}
