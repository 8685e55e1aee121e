package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)
	r.Get("/ws", h.hub.HandleWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Agents
		r.Post("/agents", h.RegisterAgent)
		r.Get("/agents", h.ListAgents)
		r.Get("/agents/{name}", h.GetAgent)
		r.Delete("/agents/{name}", h.RemoveAgent)

		// Teams
		r.Post("/teams", h.CreateTeam)
		r.Get("/teams", h.ListTeams)
		r.Get("/teams/{name}", h.GetTeam)
		r.Get("/teams/{name}/hierarchy", h.GetTeamHierarchy)
		r.Delete("/teams/{name}", h.RemoveTeam)

		// Roles and permissions
		r.Post("/roles", h.AssignRole)
		r.Get("/roles", h.ListRoles)
		r.Get("/roles/{subject}", h.GetRole)
		r.Delete("/roles/{subject}", h.RemoveRole)
		r.Get("/permissions/{subject}/tools/{tool}", h.CheckPermission)

		// Cascade routing
		r.Post("/cascade", h.SendCascade)
		r.Get("/dispatches", h.ListDispatches)

		// Admin
		r.Post("/admin/compact", h.CompactJournals)
	})
}
