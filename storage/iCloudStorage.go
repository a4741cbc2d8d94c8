package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"golang.org/x/net/context"
)

// CloudStorageProxy is the set of container and blob operations exposed over HTTP.
// Listings and creations return resource URLs, never credentials.
type CloudStorageProxy interface {
	ListContainers(ctx context.Context) ([]string, error)
	CreateContainer(ctx context.Context, containerName string) (string, error)
	DeleteContainer(ctx context.Context, containerName string) error
	ListFiles(ctx context.Context, containerName string) ([]string, error)
	GetFileContentAsInputStream(ctx context.Context, containerName string, fileName string) (io.ReadCloser, error)
	UploadFile(ctx context.Context, containerName string, fileName string, content []byte) (string, error)
	DeleteFile(ctx context.Context, containerName string, fileName string) error
	GetSourceBlobSignedURL(ctx context.Context, containerName string, fileName string) (string, error)
}

// CloudStorageProxyOptions holds settings shared by every authentication mode.
type CloudStorageProxyOptions struct {
	// LinkExpiration is how long a generated download link stays valid.
	LinkExpiration time.Duration
	Logger         *slog.Logger
}

const defaultLinkExpiration = 60 * time.Minute

func (o *CloudStorageProxyOptions) linkExpiration() time.Duration {
	if o == nil || o.LinkExpiration <= 0 {
		return defaultLinkExpiration
	}
	return o.LinkExpiration
}

func (o *CloudStorageProxyOptions) logger() *slog.Logger {
	if o == nil || o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// CloudStorageProxyFactory builds a proxy whose credentials are chosen by the handler variant.
func CloudStorageProxyFactory(handler ProxyAuthHandler, options *CloudStorageProxyOptions) (CloudStorageProxy, error) {
	if handler == nil {
		return nil, wrapError("no authentication handler configured", nil)
	}
	return handler.createProxy(options)
}

type CloudStorageError struct {
	message       string
	internalError error
}

func (err *CloudStorageError) Error() string {
	if err.internalError != nil {
		return fmt.Sprintf("CloudStorage Error: %s: %s", err.message, err.internalError.Error())
	}
	return fmt.Sprintf("CloudStorage Error: %s", err.message)
}

func (err *CloudStorageError) Unwrap() error {
	return err.internalError
}

func wrapError(msg string, err error) *CloudStorageError {
	return &CloudStorageError{message: msg, internalError: err}
}

func missingField(mode string, field string) *CloudStorageError {
	return wrapError(fmt.Sprintf("%s authentication requires %s", mode, field), nil)
}

// StatusCode returns the HTTP status reported by the storage service for err,
// or 0 when err did not come from a service response.
func StatusCode(err error) int {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode
	}
	// S3 wraps its transport error, so match on behavior rather than type.
	var awsErr interface{ HTTPStatusCode() int }
	if errors.As(err, &awsErr) {
		return awsErr.HTTPStatusCode()
	}
	return 0
}

// IsNotFound reports whether err means the container or blob does not exist.
func IsNotFound(err error) bool {
	if bloberror.HasCode(err, bloberror.ContainerNotFound, bloberror.BlobNotFound, bloberror.ResourceNotFound) {
		return true
	}
	return StatusCode(err) == http.StatusNotFound
}

// IsConflict reports whether err means the resource already exists or is being deleted.
func IsConflict(err error) bool {
	if bloberror.HasCode(err, bloberror.ContainerAlreadyExists, bloberror.ContainerBeingDeleted, bloberror.BlobAlreadyExists) {
		return true
	}
	return StatusCode(err) == http.StatusConflict
}
