package server

import (
	"errors"
	"net/http"

	"blob-storage-proxy-go/storage"
)

var errNotAzureProxy = errors.New("default handles need an Azure storage proxy")

// openAzure is open for routes that need Azure handles. A missing default
// setting is a configuration problem, reported as 500 like construction errors.
func (s *Server) openAzure(w http.ResponseWriter, r *http.Request) (*storage.AzureCloudStorageProxy, bool) {
	proxy, ok := s.open(w, r, s.Config.Azure)
	if !ok {
		return nil, false
	}
	az, ok := proxy.(*storage.AzureCloudStorageProxy)
	if !ok {
		s.writeError(w, r, http.StatusInternalServerError, errNotAzureProxy)
		return nil, false
	}
	return az, true
}

func (s *Server) defaultBlob(w http.ResponseWriter, r *http.Request) (*storage.AzureBlobHandle, bool) {
	az, ok := s.openAzure(w, r)
	if !ok {
		return nil, false
	}
	blob, err := az.DefaultBlob(s.Config.Defaults)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return nil, false
	}
	return blob, true
}

func (s *Server) handleDefaultContainer(w http.ResponseWriter, r *http.Request) {
	az, ok := s.openAzure(w, r)
	if !ok {
		return
	}
	container, err := az.DefaultContainer(s.Config.Defaults)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeText(w, http.StatusOK, container.URL())
}

func (s *Server) handleDefaultBlobGet(w http.ResponseWriter, r *http.Request) {
	if blob, ok := s.defaultBlob(w, r); ok {
		s.handleBlobGet(w, r, s.Config.Azure, blob.ContainerName(), blob.Name())
	}
}

func (s *Server) handleDefaultBlobLink(w http.ResponseWriter, r *http.Request) {
	if blob, ok := s.defaultBlob(w, r); ok {
		s.handleBlobLink(w, r, s.Config.Azure, blob.ContainerName(), blob.Name())
	}
}
