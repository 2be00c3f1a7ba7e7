package handler

import "github.com/go-chi/chi/v5"

// Mount registers the dashboard on the base URL and on the legacy
// /index.php path older controllers still post to
func Mount(r chi.Router, dashboard *DashboardHandler) {
	for _, path := range []string{"/", "/index.php"} {
		r.Get(path, dashboard.Show)
		r.Post(path, dashboard.Post)
	}
}
