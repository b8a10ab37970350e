package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires every route in §7's REST surface under /v4, with the
// WebSocket upgrade and REST handlers sharing the same Authorization
// check.
func NewRouter(s *Server) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/version", s.Version).Methods(http.MethodGet)
	r.HandleFunc("/", s.Landing).Methods(http.MethodGet)

	v4 := r.PathPrefix("/v4").Subrouter()
	v4.Use(authMiddleware(s.Cfg.Authorization))

	v4.HandleFunc("/decodetrack", s.DecodeTrack).Methods(http.MethodGet)
	v4.HandleFunc("/loadtracks", s.LoadTracks).Methods(http.MethodGet)
	v4.HandleFunc("/sessions/{sid}/players/{gid}", s.GetPlayer).Methods(http.MethodGet)
	v4.HandleFunc("/sessions/{sid}/players/{gid}", s.UpdatePlayer).Methods(http.MethodPatch)
	v4.HandleFunc("/sessions/{sid}/players/{gid}", s.DeletePlayer).Methods(http.MethodDelete)
	v4.HandleFunc("/sessions/{sid}", s.PatchSession).Methods(http.MethodPatch)
	v4.HandleFunc("/websocket", s.WebSocket)

	return r
}
