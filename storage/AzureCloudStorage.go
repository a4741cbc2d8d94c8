package storage

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/dustin/go-humanize"
	"golang.org/x/net/context"
)

// defaultUserTenant is the tenant used by the username/password flow when none is configured.
const defaultUserTenant = "organizations"

// implements CloudStorageProxy

type AzureCloudStorageProxy struct {
	blobServiceClient *azblob.Client
	linkExpiration    time.Duration
	logger            *slog.Logger
	now               func() time.Time
}

// AzureContainerHandle addresses one container. Handles hold no state beyond
// the SDK client and may be created freely.
type AzureContainerHandle struct {
	client *container.Client
	name   string
}

// AzureBlobHandle addresses one block blob inside a container.
type AzureBlobHandle struct {
	client        *blockblob.Client
	containerName string
	blobName      string
}

func (handler ProxyAuthHandlerAzureSASToken) createProxy(options *CloudStorageProxyOptions) (CloudStorageProxy, error) {
	return azureProxy(handler, options)
}

func (handler ProxyAuthHandlerAzureConnectionString) createProxy(options *CloudStorageProxyOptions) (CloudStorageProxy, error) {
	return azureProxy(handler, options)
}

func (handler ProxyAuthHandlerAzureSharedKey) createProxy(options *CloudStorageProxyOptions) (CloudStorageProxy, error) {
	return azureProxy(handler, options)
}

func (handler ProxyAuthHandlerAzureServicePrincipal) createProxy(options *CloudStorageProxyOptions) (CloudStorageProxy, error) {
	return azureProxy(handler, options)
}

func (handler ProxyAuthHandlerAzureUserCredentials) createProxy(options *CloudStorageProxyOptions) (CloudStorageProxy, error) {
	return azureProxy(handler, options)
}

func azureProxy(handler ProxyAuthHandler, options *CloudStorageProxyOptions) (CloudStorageProxy, error) {
	proxy, err := NewAzureCloudStorageProxy(handler, options)
	if err != nil {
		return nil, err
	}
	return proxy, nil
}

// NewAzureCloudStorageProxy builds the blob service client for one of the five
// Azure authentication variants.
func NewAzureCloudStorageProxy(handler ProxyAuthHandler, options *CloudStorageProxyOptions) (*AzureCloudStorageProxy, error) {
	logger := options.logger()
	client, err := getBlobServiceClient(handler, logger)
	if err != nil {
		return nil, err
	}
	return &AzureCloudStorageProxy{
		blobServiceClient: client,
		linkExpiration:    options.linkExpiration(),
		logger:            logger,
		now:               time.Now,
	}, nil
}

func getBlobServiceClient(handler ProxyAuthHandler, logger *slog.Logger) (*azblob.Client, error) {
	switch h := handler.(type) {
	case ProxyAuthHandlerAzureSASToken:
		if h.AccountURL == "" {
			return nil, missingField(h.AuthMode(), "an account URL")
		}
		if h.SASToken == "" {
			return nil, missingField(h.AuthMode(), "a SAS token")
		}
		serviceURL, err := appendSASToken(h.AccountURL, h.SASToken)
		if err != nil {
			return nil, err
		}
		logger.Debug("using SAS token authentication", "url", h.AccountURL)
		client, err := azblob.NewClientWithNoCredential(serviceURL, nil)
		if err != nil {
			return nil, wrapError("unable to create Azure blob service client with SAS token", err)
		}
		return client, nil

	case ProxyAuthHandlerAzureConnectionString:
		if h.ConnectionString == "" {
			return nil, missingField(h.AuthMode(), "a connection string")
		}
		logger.Debug("using connection string authentication")
		client, err := azblob.NewClientFromConnectionString(h.ConnectionString, nil)
		if err != nil {
			return nil, wrapError("unable to create Azure blob service client from connection string", err)
		}
		return client, nil

	case ProxyAuthHandlerAzureSharedKey:
		if h.AccountURL == "" {
			return nil, missingField(h.AuthMode(), "an account URL")
		}
		if h.AccountName == "" {
			return nil, missingField(h.AuthMode(), "an account name")
		}
		if h.AccountKey == "" {
			return nil, missingField(h.AuthMode(), "an account key")
		}
		logger.Debug("using shared key authentication", "account", h.AccountName)
		credential, err := azblob.NewSharedKeyCredential(h.AccountName, h.AccountKey)
		if err != nil {
			return nil, wrapError("invalid shared key credential", err)
		}
		client, err := azblob.NewClientWithSharedKeyCredential(h.AccountURL, credential, nil)
		if err != nil {
			return nil, wrapError("unable to create Azure blob service client with shared key", err)
		}
		return client, nil

	case ProxyAuthHandlerAzureServicePrincipal:
		if h.AccountURL == "" {
			return nil, missingField(h.AuthMode(), "an account URL")
		}
		if h.ClientID == "" {
			return nil, missingField(h.AuthMode(), "a client id")
		}
		if h.ClientSecret == "" {
			return nil, missingField(h.AuthMode(), "a client secret")
		}
		if h.TenantID == "" {
			return nil, missingField(h.AuthMode(), "a tenant id")
		}
		logger.Debug("using service principal authentication", "clientID", h.ClientID, "tenantID", h.TenantID)
		credential, err := azidentity.NewClientSecretCredential(h.TenantID, h.ClientID, h.ClientSecret, nil)
		if err != nil {
			return nil, wrapError("unable to create service principal credential", err)
		}
		client, err := azblob.NewClient(h.AccountURL, credential, nil)
		if err != nil {
			return nil, wrapError("unable to create Azure blob service client with service principal", err)
		}
		return client, nil

	case ProxyAuthHandlerAzureUserCredentials:
		if h.AccountURL == "" {
			return nil, missingField(h.AuthMode(), "an account URL")
		}
		if h.ClientID == "" {
			return nil, missingField(h.AuthMode(), "a client id")
		}
		if h.Username == "" {
			return nil, missingField(h.AuthMode(), "a username")
		}
		if h.Password == "" {
			return nil, missingField(h.AuthMode(), "a password")
		}
		tenantID := h.TenantID
		if tenantID == "" {
			tenantID = defaultUserTenant
		}
		logger.Debug("using user credentials authentication", "clientID", h.ClientID, "username", h.Username)
		credential, err := azidentity.NewUsernamePasswordCredential(tenantID, h.ClientID, h.Username, h.Password, nil)
		if err != nil {
			return nil, wrapError("unable to create user credential", err)
		}
		client, err := azblob.NewClient(h.AccountURL, credential, nil)
		if err != nil {
			return nil, wrapError("unable to create Azure blob service client with user credentials", err)
		}
		return client, nil

	default:
		return nil, wrapError(fmt.Sprintf("unsupported Azure authentication handler %T", handler), nil)
	}
}

func appendSASToken(accountURL string, token string) (string, error) {
	u, err := url.Parse(accountURL)
	if err != nil {
		return "", wrapError("invalid account URL "+accountURL, err)
	}
	u.RawQuery = strings.TrimPrefix(token, "?")
	return u.String(), nil
}

// publicURL drops any query string, so a SAS token used by the client never
// leaks into a returned URL.
func publicURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	return u.String()
}

// Container derives a handle for containerName. Every call returns a new handle.
func (az *AzureCloudStorageProxy) Container(containerName string) *AzureContainerHandle {
	return &AzureContainerHandle{
		client: az.blobServiceClient.ServiceClient().NewContainerClient(containerName),
		name:   containerName,
	}
}

// Blob derives a handle for blobName inside containerName. Every call returns a new handle.
func (az *AzureCloudStorageProxy) Blob(containerName string, blobName string) *AzureBlobHandle {
	return &AzureBlobHandle{
		client:        az.Container(containerName).client.NewBlockBlobClient(blobName),
		containerName: containerName,
		blobName:      blobName,
	}
}

// DefaultNames supplies the configured default container and blob. Either
// method fails when its setting is absent.
type DefaultNames interface {
	ContainerName() (string, error)
	BlobName() (string, error)
}

// DefaultContainer derives a handle for the configured default container.
// The error from names is returned as is.
func (az *AzureCloudStorageProxy) DefaultContainer(names DefaultNames) (*AzureContainerHandle, error) {
	containerName, err := names.ContainerName()
	if err != nil {
		return nil, err
	}
	return az.Container(containerName), nil
}

// DefaultBlob derives a handle for the configured default blob inside the default container.
func (az *AzureCloudStorageProxy) DefaultBlob(names DefaultNames) (*AzureBlobHandle, error) {
	containerName, err := names.ContainerName()
	if err != nil {
		return nil, err
	}
	blobName, err := names.BlobName()
	if err != nil {
		return nil, err
	}
	return az.Blob(containerName, blobName), nil
}

func (h *AzureContainerHandle) Name() string {
	return h.name
}

func (h *AzureContainerHandle) URL() string {
	return publicURL(h.client.URL())
}

func (h *AzureBlobHandle) ContainerName() string {
	return h.containerName
}

func (h *AzureBlobHandle) Name() string {
	return h.blobName
}

func (h *AzureBlobHandle) URL() string {
	return publicURL(h.client.URL())
}

func (az *AzureCloudStorageProxy) ListContainers(ctx context.Context) ([]string, error) {
	urls := make([]string, 0)
	pager := az.blobServiceClient.ServiceClient().NewListContainersPager(nil)
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return urls, wrapError("unable to list containers", err)
		}
		for _, item := range resp.ContainerItems {
			if item.Name == nil {
				continue
			}
			urls = append(urls, az.Container(*item.Name).URL())
		}
	}
	return urls, nil
}

func (az *AzureCloudStorageProxy) CreateContainer(ctx context.Context, containerName string) (string, error) {
	handle := az.Container(containerName)
	if _, err := handle.client.Create(ctx, nil); err != nil {
		return "", wrapError("unable to create container "+containerName, err)
	}
	az.logger.Info("created container", "container", containerName)
	return handle.URL(), nil
}

func (az *AzureCloudStorageProxy) DeleteContainer(ctx context.Context, containerName string) error {
	if _, err := az.Container(containerName).client.Delete(ctx, nil); err != nil {
		return wrapError("unable to delete container "+containerName, err)
	}
	az.logger.Info("deleted container", "container", containerName)
	return nil
}

func (az *AzureCloudStorageProxy) ListFiles(ctx context.Context, containerName string) ([]string, error) {
	handle := az.Container(containerName)
	urls := make([]string, 0)
	pager := handle.client.NewListBlobsFlatPager(nil)
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return urls, wrapError(fmt.Sprintf("unable to list blobs in %s", containerName), err)
		}
		if resp.Segment == nil {
			continue
		}
		for _, item := range resp.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			urls = append(urls, az.Blob(containerName, *item.Name).URL())
		}
	}
	return urls, nil
}

func (az *AzureCloudStorageProxy) GetFileContentAsInputStream(ctx context.Context, containerName string, fileName string) (io.ReadCloser, error) {
	resp, err := az.Blob(containerName, fileName).client.BlobClient().DownloadStream(ctx, nil)
	if err != nil {
		return nil, wrapError("unable to get stream reader for file "+fileName, err)
	}
	return resp.Body, nil
}

// UploadFile creates or overwrites the blob with content.
func (az *AzureCloudStorageProxy) UploadFile(ctx context.Context, containerName string, fileName string, content []byte) (string, error) {
	handle := az.Blob(containerName, fileName)
	if _, err := handle.client.UploadBuffer(ctx, content, nil); err != nil {
		return "", wrapError("unable to upload file "+fileName, err)
	}
	az.logger.Info("uploaded blob", "container", containerName, "blob", fileName,
		"size", humanize.Bytes(uint64(len(content))))
	return handle.URL(), nil
}

func (az *AzureCloudStorageProxy) DeleteFile(ctx context.Context, containerName string, fileName string) error {
	if _, err := az.Blob(containerName, fileName).client.BlobClient().Delete(ctx, nil); err != nil {
		return wrapError("unable to delete file "+fileName, err)
	}
	return nil
}
