package server

import (
	"errors"
	"io"
	"net/http"

	"blob-storage-proxy-go/storage"
	"blob-storage-proxy-go/util"
)

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// errorStatus maps a storage failure onto the response status.
func errorStatus(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case storage.IsNotFound(err):
		return http.StatusNotFound
	case storage.IsConflict(err):
		return http.StatusConflict
	}
	switch code := storage.StatusCode(err); code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return code
	}
	return http.StatusBadGateway
}

// writeError logs err and replies with status text only; upstream error
// messages can carry request URLs.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.logger.Warn("request failed",
		"request_id", RequestIDFromContext(r.Context()),
		"status", status,
		"error", err)
	writeText(w, status, http.StatusText(status))
}

// open builds the proxy for this request. Construction failures are
// configuration problems and reported as 500.
func (s *Server) open(w http.ResponseWriter, r *http.Request, auth storage.ProxyAuthHandler) (storage.CloudStorageProxy, bool) {
	proxy, err := s.proxy(auth)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return nil, false
	}
	return proxy, true
}

func (s *Server) handleContainerList(w http.ResponseWriter, r *http.Request, auth storage.ProxyAuthHandler) {
	proxy, ok := s.open(w, r, auth)
	if !ok {
		return
	}
	urls, err := proxy.ListContainers(r.Context())
	if err != nil {
		s.writeError(w, r, errorStatus(err), err)
		return
	}
	writeText(w, http.StatusOK, util.JoinLines(urls))
}

func (s *Server) handleContainerCreate(w http.ResponseWriter, r *http.Request, auth storage.ProxyAuthHandler, container string) {
	proxy, ok := s.open(w, r, auth)
	if !ok {
		return
	}
	containerURL, err := proxy.CreateContainer(r.Context(), container)
	if err != nil {
		s.writeError(w, r, errorStatus(err), err)
		return
	}
	writeText(w, http.StatusCreated, containerURL)
}

func (s *Server) handleContainerDelete(w http.ResponseWriter, r *http.Request, auth storage.ProxyAuthHandler, container string) {
	proxy, ok := s.open(w, r, auth)
	if !ok {
		return
	}
	if err := proxy.DeleteContainer(r.Context(), container); err != nil {
		s.writeError(w, r, errorStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBlobList(w http.ResponseWriter, r *http.Request, auth storage.ProxyAuthHandler, container string) {
	proxy, ok := s.open(w, r, auth)
	if !ok {
		return
	}
	urls, err := proxy.ListFiles(r.Context(), container)
	if err != nil {
		s.writeError(w, r, errorStatus(err), err)
		return
	}
	writeText(w, http.StatusOK, util.JoinLines(urls))
}

func (s *Server) handleBlobGet(w http.ResponseWriter, r *http.Request, auth storage.ProxyAuthHandler, container string, blob string) {
	proxy, ok := s.open(w, r, auth)
	if !ok {
		return
	}
	body, err := proxy.GetFileContentAsInputStream(r.Context(), container, blob)
	if err != nil {
		s.writeError(w, r, errorStatus(err), err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		// headers are already sent
		s.logger.Error("blob download interrupted",
			"request_id", RequestIDFromContext(r.Context()),
			"container", container,
			"blob", blob,
			"error", err)
	}
}

func (s *Server) handleBlobLink(w http.ResponseWriter, r *http.Request, auth storage.ProxyAuthHandler, container string, blob string) {
	proxy, ok := s.open(w, r, auth)
	if !ok {
		return
	}
	link, err := proxy.GetSourceBlobSignedURL(r.Context(), container, blob)
	if err != nil {
		s.writeError(w, r, errorStatus(err), err)
		return
	}
	writeText(w, http.StatusOK, link)
}

func (s *Server) handleBlobUpload(w http.ResponseWriter, r *http.Request, auth storage.ProxyAuthHandler, container string, blob string) {
	content, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.Config.MaxUploadBytes))
	if err != nil {
		s.writeError(w, r, errorStatus(err), err)
		return
	}
	s.upload(w, r, auth, container, blob, content)
}

func (s *Server) handleSampleUpload(w http.ResponseWriter, r *http.Request, auth storage.ProxyAuthHandler, container string) {
	name := s.pickSample()
	content, err := readSample(name)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.upload(w, r, auth, container, name, content)
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request, auth storage.ProxyAuthHandler, container string, blob string, content []byte) {
	proxy, ok := s.open(w, r, auth)
	if !ok {
		return
	}
	blobURL, err := proxy.UploadFile(r.Context(), container, blob, content)
	if err != nil {
		s.writeError(w, r, errorStatus(err), err)
		return
	}
	writeText(w, http.StatusOK, blobURL)
}

func (s *Server) handleBlobDelete(w http.ResponseWriter, r *http.Request, auth storage.ProxyAuthHandler, container string, blob string) {
	proxy, ok := s.open(w, r, auth)
	if !ok {
		return
	}
	if err := proxy.DeleteFile(r.Context(), container, blob); err != nil {
		s.writeError(w, r, errorStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
