package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/voxel-client/internal/hub"
	"github.com/DoyleJ11/voxel-client/internal/ws"
)

// SetupRoutes builds the authority's router. chat may be nil when no journal
// database is configured.
func SetupRoutes(h *hub.Hub, chat ChatLog, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Post("/worlds", CreateWorld(h, log))
	r.Get("/worlds", ListWorlds(h))
	if chat != nil {
		r.Get("/worlds/{code}/chat", RecentChat(h, chat))
	}
	r.Get("/ws", ws.Handler(h, log))
	return r
}
