// Package storagetest provides in-process emulators of the Azure Blob and S3
// REST endpoints, sufficient for the operations the proxies issue.
package storagetest

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
)

const (
	// AzureAccount is the emulated storage account name.
	AzureAccount = "devstoreaccount1"
	// AzureAccountKey is the well-known emulator account key.
	AzureAccountKey = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="

	delegationKeyValue = "c2VjcmV0LWtleS1mb3ItdGVzdGluZy0wMTIzNDU2Nzg5"
)

// AzureBlobService emulates a single storage account over plain HTTP using
// IP-style addressing: http://127.0.0.1:port/<account>/<container>/<blob>.
type AzureBlobService struct {
	server *httptest.Server

	mu                    sync.Mutex
	containers            map[string]map[string][]byte
	delegationKeyRequests int
}

// NewAzureBlobService starts an emulator that is shut down when t finishes.
func NewAzureBlobService(t testing.TB) *AzureBlobService {
	t.Helper()
	s := &AzureBlobService{containers: make(map[string]map[string][]byte)}
	s.server = httptest.NewServer(s)
	t.Cleanup(s.server.Close)
	return s
}

// URL is the account endpoint, used where a storage account URL is expected.
func (s *AzureBlobService) URL() string {
	return s.server.URL + "/" + AzureAccount
}

// ConnectionString returns a connection string pointing at the emulator.
func (s *AzureBlobService) ConnectionString() string {
	return fmt.Sprintf("DefaultEndpointsProtocol=http;AccountName=%s;AccountKey=%s;BlobEndpoint=%s",
		AzureAccount, AzureAccountKey, s.URL())
}

// AddContainer creates an empty container directly.
func (s *AzureBlobService) AddContainer(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.containers[name]; !ok {
		s.containers[name] = make(map[string][]byte)
	}
}

// Blob returns the stored content of a blob.
func (s *AzureBlobService) Blob(container string, blob string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blobs, ok := s.containers[container]
	if !ok {
		return nil, false
	}
	content, ok := blobs[blob]
	return content, ok
}

// HasContainer reports whether the container exists.
func (s *AzureBlobService) HasContainer(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.containers[name]
	return ok
}

// DelegationKeyRequests counts user delegation keys handed out so far.
func (s *AzureBlobService) DelegationKeyRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delegationKeyRequests
}

// authorized accepts a SharedKey header naming the emulated account with an
// HMAC-SHA256 sized signature, a bearer token, or a query string carrying a
// SAS signature. Signatures themselves are not recomputed.
func authorized(r *http.Request) (string, bool) {
	if sig := r.URL.Query().Get("sig"); sig != "" {
		return "", true
	}
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "NoAuthenticationInformation", false
	}
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok && token != "" {
		return "", true
	}
	credential, ok := strings.CutPrefix(auth, "SharedKey ")
	if !ok {
		return "InvalidAuthenticationInfo", false
	}
	account, signature, _ := strings.Cut(credential, ":")
	if account != AzureAccount {
		return "AuthenticationFailed", false
	}
	mac, err := base64.StdEncoding.DecodeString(signature)
	if err != nil || len(mac) != 32 {
		return "AuthenticationFailed", false
	}
	return "", true
}

func (s *AzureBlobService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if code, ok := authorized(r); !ok {
		status := http.StatusForbidden
		if code == "NoAuthenticationInformation" {
			status = http.StatusUnauthorized
		}
		writeAzureError(w, status, code)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/"+AzureAccount)
	path = strings.TrimPrefix(path, "/")
	query := r.URL.Query()

	if path == "" {
		switch {
		case r.Method == http.MethodGet && query.Get("comp") == "list":
			s.listContainers(w)
		case r.Method == http.MethodPost && query.Get("comp") == "userdelegationkey":
			s.userDelegationKey(w, r)
		default:
			writeAzureError(w, http.StatusBadRequest, "UnsupportedQueryParameter")
		}
		return
	}

	containerName, blobName, _ := strings.Cut(path, "/")
	if blobName == "" && query.Get("restype") == "container" {
		switch {
		case r.Method == http.MethodPut:
			s.createContainer(w, containerName)
		case r.Method == http.MethodDelete:
			s.deleteContainer(w, containerName)
		case r.Method == http.MethodGet && query.Get("comp") == "list":
			s.listBlobs(w, containerName)
		default:
			writeAzureError(w, http.StatusBadRequest, "UnsupportedHttpVerb")
		}
		return
	}

	switch r.Method {
	case http.MethodPut:
		s.putBlob(w, r, containerName, blobName)
	case http.MethodGet:
		s.getBlob(w, containerName, blobName)
	case http.MethodDelete:
		s.deleteBlob(w, containerName, blobName)
	default:
		writeAzureError(w, http.StatusBadRequest, "UnsupportedHttpVerb")
	}
}

func (s *AzureBlobService) listContainers(w http.ResponseWriter) {
	s.mu.Lock()
	names := make([]string, 0, len(s.containers))
	for name := range s.containers {
		names = append(names, name)
	}
	s.mu.Unlock()
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, `<?xml version="1.0" encoding="utf-8"?><EnumerationResults ServiceEndpoint="%s/"><Containers>`, s.URL())
	for _, name := range names {
		fmt.Fprintf(&b, "<Container><Name>%s</Name><Properties></Properties></Container>", xmlEscape(name))
	}
	b.WriteString("</Containers></EnumerationResults>")
	writeXML(w, http.StatusOK, b.String())
}

type keyInfo struct {
	Start  string `xml:"Start"`
	Expiry string `xml:"Expiry"`
}

func (s *AzureBlobService) userDelegationKey(w http.ResponseWriter, r *http.Request) {
	var info keyInfo
	if err := xml.NewDecoder(r.Body).Decode(&info); err != nil || info.Expiry == "" {
		writeAzureError(w, http.StatusBadRequest, "InvalidXmlDocument")
		return
	}
	if info.Start == "" {
		info.Start = info.Expiry
	}
	s.mu.Lock()
	s.delegationKeyRequests++
	s.mu.Unlock()

	body := fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?><UserDelegationKey>`+
		`<SignedOid>00000000-0000-0000-0000-000000000001</SignedOid>`+
		`<SignedTid>00000000-0000-0000-0000-000000000002</SignedTid>`+
		`<SignedStart>%s</SignedStart><SignedExpiry>%s</SignedExpiry>`+
		`<SignedService>b</SignedService><SignedVersion>2023-11-03</SignedVersion>`+
		`<Value>%s</Value></UserDelegationKey>`, info.Start, info.Expiry, delegationKeyValue)
	writeXML(w, http.StatusOK, body)
}

func (s *AzureBlobService) createContainer(w http.ResponseWriter, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.containers[name]; ok {
		writeAzureError(w, http.StatusConflict, "ContainerAlreadyExists")
		return
	}
	s.containers[name] = make(map[string][]byte)
	w.WriteHeader(http.StatusCreated)
}

func (s *AzureBlobService) deleteContainer(w http.ResponseWriter, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.containers[name]; !ok {
		writeAzureError(w, http.StatusNotFound, "ContainerNotFound")
		return
	}
	delete(s.containers, name)
	w.WriteHeader(http.StatusAccepted)
}

func (s *AzureBlobService) listBlobs(w http.ResponseWriter, containerName string) {
	s.mu.Lock()
	blobs, ok := s.containers[containerName]
	names := make([]string, 0, len(blobs))
	for name := range blobs {
		names = append(names, name)
	}
	s.mu.Unlock()
	if !ok {
		writeAzureError(w, http.StatusNotFound, "ContainerNotFound")
		return
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, `<?xml version="1.0" encoding="utf-8"?><EnumerationResults ServiceEndpoint="%s/" ContainerName="%s"><Blobs>`,
		s.URL(), xmlEscape(containerName))
	for _, name := range names {
		fmt.Fprintf(&b, "<Blob><Name>%s</Name><Properties><BlobType>BlockBlob</BlobType></Properties></Blob>", xmlEscape(name))
	}
	b.WriteString("</Blobs></EnumerationResults>")
	writeXML(w, http.StatusOK, b.String())
}

func (s *AzureBlobService) putBlob(w http.ResponseWriter, r *http.Request, containerName string, blobName string) {
	content, err := io.ReadAll(r.Body)
	if err != nil {
		writeAzureError(w, http.StatusBadRequest, "InvalidInput")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	blobs, ok := s.containers[containerName]
	if !ok {
		writeAzureError(w, http.StatusNotFound, "ContainerNotFound")
		return
	}
	blobs[blobName] = content
	w.WriteHeader(http.StatusCreated)
}

func (s *AzureBlobService) getBlob(w http.ResponseWriter, containerName string, blobName string) {
	s.mu.Lock()
	blobs, containerFound := s.containers[containerName]
	content, blobFound := blobs[blobName]
	s.mu.Unlock()
	switch {
	case !containerFound:
		writeAzureError(w, http.StatusNotFound, "ContainerNotFound")
	case !blobFound:
		writeAzureError(w, http.StatusNotFound, "BlobNotFound")
	default:
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", fmt.Sprint(len(content)))
		w.Header().Set("x-ms-blob-type", "BlockBlob")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(content)
	}
}

func (s *AzureBlobService) deleteBlob(w http.ResponseWriter, containerName string, blobName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blobs, ok := s.containers[containerName]
	if !ok {
		writeAzureError(w, http.StatusNotFound, "ContainerNotFound")
		return
	}
	if _, ok := blobs[blobName]; !ok {
		writeAzureError(w, http.StatusNotFound, "BlobNotFound")
		return
	}
	delete(blobs, blobName)
	w.WriteHeader(http.StatusAccepted)
}

func writeAzureError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("x-ms-error-code", code)
	writeXML(w, status, fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?><Error><Code>%s</Code><Message>%s</Message></Error>`,
		code, code))
}

func writeXML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
