package server

import (
	"net/http"

	"blob-storage-proxy-go/storage"
)

// Handler returns the HTTP API. The Azure routes live under /azure/container,
// and the same set is mounted under /aws/container when AWS is configured.
// /azure/default addresses the configured default container and blob.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeText(w, http.StatusOK, "ok")
	})

	s.mount(mux, "/azure/container", s.Config.Azure)
	if s.Config.AWS != nil {
		s.mount(mux, "/aws/container", s.Config.AWS)
	}
	if s.Config.Defaults != nil {
		mux.HandleFunc("GET /azure/default/container", s.handleDefaultContainer)
		mux.HandleFunc("GET /azure/default/blob", s.handleDefaultBlobGet)
		mux.HandleFunc("GET /azure/default/blob/link", s.handleDefaultBlobLink)
	}

	handler := s.LogRequest(mux)
	handler = s.Recoverer(handler)
	handler = RequestID(handler)
	return handler
}

func (s *Server) mount(mux *http.ServeMux, prefix string, auth storage.ProxyAuthHandler) {
	mux.HandleFunc("GET "+prefix, func(w http.ResponseWriter, r *http.Request) {
		s.handleContainerList(w, r, auth)
	})
	mux.HandleFunc("POST "+prefix+"/{container}", func(w http.ResponseWriter, r *http.Request) {
		s.handleContainerCreate(w, r, auth, r.PathValue("container"))
	})
	mux.HandleFunc("DELETE "+prefix+"/{container}", func(w http.ResponseWriter, r *http.Request) {
		s.handleContainerDelete(w, r, auth, r.PathValue("container"))
	})
	mux.HandleFunc("GET "+prefix+"/{container}/blob", func(w http.ResponseWriter, r *http.Request) {
		s.handleBlobList(w, r, auth, r.PathValue("container"))
	})
	mux.HandleFunc("POST "+prefix+"/{container}/uploadSample", func(w http.ResponseWriter, r *http.Request) {
		s.handleSampleUpload(w, r, auth, r.PathValue("container"))
	})

	mux.HandleFunc("GET "+prefix+"/{container}/blob/{blob}", func(w http.ResponseWriter, r *http.Request) {
		s.handleBlobGet(w, r, auth, r.PathValue("container"), r.PathValue("blob"))
	})
	mux.HandleFunc("GET "+prefix+"/{container}/blob/{blob}/link", func(w http.ResponseWriter, r *http.Request) {
		s.handleBlobLink(w, r, auth, r.PathValue("container"), r.PathValue("blob"))
	})
	mux.HandleFunc("POST "+prefix+"/{container}/blob/{blob}", func(w http.ResponseWriter, r *http.Request) {
		s.handleBlobUpload(w, r, auth, r.PathValue("container"), r.PathValue("blob"))
	})
	mux.HandleFunc("DELETE "+prefix+"/{container}/blob/{blob}", func(w http.ResponseWriter, r *http.Request) {
		s.handleBlobDelete(w, r, auth, r.PathValue("container"), r.PathValue("blob"))
	})
}
