package storage

import (
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"

	"blob-storage-proxy-go/storage/storagetest"
)

const (
	testAccountURL = "https://acct.blob.core.windows.net"
	testTenantID   = "72f988bf-86f1-41af-91ab-2d7cd011db47"
	testClientID   = "4a1a7b38-1d7c-4c36-9a6b-3c5e3f0c7e11"
)

func completeHandlers() map[string]ProxyAuthHandler {
	return map[string]ProxyAuthHandler{
		"SAS_TOKEN": ProxyAuthHandlerAzureSASToken{
			AccountURL: testAccountURL,
			SASToken:   "sv=2023-11-03&ss=b&srt=sco&sp=rl&sig=abc",
		},
		"CONNECTION_STRING": ProxyAuthHandlerAzureConnectionString{
			ConnectionString: "DefaultEndpointsProtocol=https;AccountName=acct;AccountKey=" +
				storagetest.AzureAccountKey + ";EndpointSuffix=core.windows.net",
		},
		"KEY": ProxyAuthHandlerAzureSharedKey{
			AccountURL:  testAccountURL,
			AccountName: "acct",
			AccountKey:  storagetest.AzureAccountKey,
		},
		"SERVICE_PRINCIPAL": ProxyAuthHandlerAzureServicePrincipal{
			AccountURL:   testAccountURL,
			ClientID:     testClientID,
			ClientSecret: "client-secret",
			TenantID:     testTenantID,
		},
		"USER_CREDENTIALS": ProxyAuthHandlerAzureUserCredentials{
			AccountURL: testAccountURL,
			ClientID:   testClientID,
			Username:   "user@example.com",
			Password:   "password",
		},
	}
}

func TestAzureProxyConstructionForEveryMode(t *testing.T) {
	for mode, handler := range completeHandlers() {
		t.Run(mode, func(t *testing.T) {
			assert.Equal(t, mode, handler.AuthMode())
			proxy, err := CloudStorageProxyFactory(handler, nil)
			require.NoError(t, err)
			assert.IsType(t, &AzureCloudStorageProxy{}, proxy)
		})
	}
}

func TestAzureProxyConstructionFailsOnMissingField(t *testing.T) {
	cases := map[string]ProxyAuthHandler{
		"sas without token":            ProxyAuthHandlerAzureSASToken{AccountURL: testAccountURL},
		"sas without url":              ProxyAuthHandlerAzureSASToken{SASToken: "sig=abc"},
		"empty connection string":      ProxyAuthHandlerAzureConnectionString{},
		"shared key without key":       ProxyAuthHandlerAzureSharedKey{AccountURL: testAccountURL, AccountName: "acct"},
		"shared key without name":      ProxyAuthHandlerAzureSharedKey{AccountURL: testAccountURL, AccountKey: storagetest.AzureAccountKey},
		"principal without secret":     ProxyAuthHandlerAzureServicePrincipal{AccountURL: testAccountURL, ClientID: testClientID, TenantID: testTenantID},
		"principal without tenant":     ProxyAuthHandlerAzureServicePrincipal{AccountURL: testAccountURL, ClientID: testClientID, ClientSecret: "s"},
		"principal without client":     ProxyAuthHandlerAzureServicePrincipal{AccountURL: testAccountURL, ClientSecret: "s", TenantID: testTenantID},
		"user without password":        ProxyAuthHandlerAzureUserCredentials{AccountURL: testAccountURL, ClientID: testClientID, Username: "u"},
		"user without username":        ProxyAuthHandlerAzureUserCredentials{AccountURL: testAccountURL, ClientID: testClientID, Password: "p"},
		"user without client":          ProxyAuthHandlerAzureUserCredentials{AccountURL: testAccountURL, Username: "u", Password: "p"},
		"shared key with invalid key":  ProxyAuthHandlerAzureSharedKey{AccountURL: testAccountURL, AccountName: "acct", AccountKey: "not base64!"},
		"aws handler on azure factory": ProxyAuthHandlerAWSDefaultIdentity{Region: "us-east-1"},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			proxy, err := NewAzureCloudStorageProxy(handler, nil)
			assert.Nil(t, proxy)
			var cloudError *CloudStorageError
			assert.ErrorAs(t, err, &cloudError)
		})
	}
}

func TestFactoryRejectsNilHandler(t *testing.T) {
	_, err := CloudStorageProxyFactory(nil, nil)
	assert.Error(t, err)
}

func TestHandleDerivationIsIndependent(t *testing.T) {
	proxy, err := NewAzureCloudStorageProxy(completeHandlers()["SAS_TOKEN"], nil)
	require.NoError(t, err)

	first := proxy.Container("videos")
	second := proxy.Container("videos")
	assert.NotSame(t, first, second)
	assert.Equal(t, first.URL(), second.URL())
	assert.Equal(t, testAccountURL+"/videos", first.URL())

	blobA := proxy.Blob("videos", "clip.mp3")
	blobB := proxy.Blob("videos", "clip.mp3")
	assert.NotSame(t, blobA, blobB)
	assert.Equal(t, blobA.URL(), blobB.URL())
	assert.Equal(t, testAccountURL+"/videos/clip.mp3", blobA.URL())
	assert.NotContains(t, blobA.URL(), "sig=")
	assert.Equal(t, "videos", blobA.ContainerName())
	assert.Equal(t, "clip.mp3", blobA.Name())
}

func emulatedProxy(t *testing.T, emulator *storagetest.AzureBlobService) *AzureCloudStorageProxy {
	t.Helper()
	proxy, err := NewAzureCloudStorageProxy(ProxyAuthHandlerAzureSharedKey{
		AccountURL:  emulator.URL(),
		AccountName: storagetest.AzureAccount,
		AccountKey:  storagetest.AzureAccountKey,
	}, &CloudStorageProxyOptions{LinkExpiration: 15 * time.Minute})
	require.NoError(t, err)
	return proxy
}

func TestAzureUploadDownloadRoundTrip(t *testing.T) {
	emulator := storagetest.NewAzureBlobService(t)
	proxy := emulatedProxy(t, emulator)
	ctx := context.Background()

	containerURL, err := proxy.CreateContainer(ctx, "media")
	require.NoError(t, err)
	assert.Equal(t, emulator.URL()+"/media", containerURL)

	content := []byte("ID3\x03\x00binary\x00payload")
	blobURL, err := proxy.UploadFile(ctx, "media", "track.mp3", content)
	require.NoError(t, err)
	assert.Equal(t, emulator.URL()+"/media/track.mp3", blobURL)

	body, err := proxy.GetFileContentAsInputStream(ctx, "media", "track.mp3")
	require.NoError(t, err)
	defer body.Close()
	downloaded, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, content, downloaded)

	// upload overwrites
	_, err = proxy.UploadFile(ctx, "media", "track.mp3", []byte("second"))
	require.NoError(t, err)
	stored, ok := emulator.Blob("media", "track.mp3")
	require.True(t, ok)
	assert.Equal(t, []byte("second"), stored)
}

func TestAzureListings(t *testing.T) {
	emulator := storagetest.NewAzureBlobService(t)
	proxy := emulatedProxy(t, emulator)
	ctx := context.Background()

	emulator.AddContainer("alpha")
	emulator.AddContainer("beta")
	_, err := proxy.UploadFile(ctx, "alpha", "a.txt", []byte("a"))
	require.NoError(t, err)
	_, err = proxy.UploadFile(ctx, "alpha", "b.txt", []byte("b"))
	require.NoError(t, err)

	containers, err := proxy.ListContainers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{emulator.URL() + "/alpha", emulator.URL() + "/beta"}, containers)

	blobs, err := proxy.ListFiles(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, []string{emulator.URL() + "/alpha/a.txt", emulator.URL() + "/alpha/b.txt"}, blobs)

	empty, err := proxy.ListFiles(ctx, "beta")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAzureDeleteSurfacesNotFound(t *testing.T) {
	emulator := storagetest.NewAzureBlobService(t)
	proxy := emulatedProxy(t, emulator)
	ctx := context.Background()

	err := proxy.DeleteContainer(ctx, "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, 404, StatusCode(err))

	emulator.AddContainer("present")
	err = proxy.DeleteFile(ctx, "present", "missing.bin")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	_, err = proxy.UploadFile(ctx, "present", "here.bin", []byte{1})
	require.NoError(t, err)
	require.NoError(t, proxy.DeleteFile(ctx, "present", "here.bin"))
	assert.True(t, IsNotFound(proxy.DeleteFile(ctx, "present", "here.bin")))

	require.NoError(t, proxy.DeleteContainer(ctx, "present"))
	assert.False(t, emulator.HasContainer("present"))
}

func TestAzureCreateExistingContainerConflicts(t *testing.T) {
	emulator := storagetest.NewAzureBlobService(t)
	proxy := emulatedProxy(t, emulator)

	emulator.AddContainer("taken")
	_, err := proxy.CreateContainer(context.Background(), "taken")
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.False(t, IsNotFound(err))
}

func TestAzureDownloadMissingBlob(t *testing.T) {
	emulator := storagetest.NewAzureBlobService(t)
	proxy := emulatedProxy(t, emulator)
	emulator.AddContainer("media")

	_, err := proxy.GetFileContentAsInputStream(context.Background(), "media", "nothing.mp3")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "nothing.mp3")
}

func TestAzureConnectionStringAndSASModesReachService(t *testing.T) {
	emulator := storagetest.NewAzureBlobService(t)
	emulator.AddContainer("shared")
	ctx := context.Background()

	handlers := map[string]ProxyAuthHandler{
		"connection string": ProxyAuthHandlerAzureConnectionString{ConnectionString: emulator.ConnectionString()},
		"sas token":         ProxyAuthHandlerAzureSASToken{AccountURL: emulator.URL(), SASToken: "?sv=2023-11-03&sig=emulated"},
	}
	for name, handler := range handlers {
		t.Run(name, func(t *testing.T) {
			proxy, err := NewAzureCloudStorageProxy(handler, nil)
			require.NoError(t, err)
			blobURL, err := proxy.UploadFile(ctx, "shared", "note.txt", []byte(name))
			require.NoError(t, err)
			assert.Equal(t, emulator.URL()+"/shared/note.txt", blobURL)

			stored, ok := emulator.Blob("shared", "note.txt")
			require.True(t, ok)
			assert.Equal(t, name, string(stored))
		})
	}
}

func TestAzureSignedLinksInQuickSuccession(t *testing.T) {
	emulator := storagetest.NewAzureBlobService(t)
	proxy := emulatedProxy(t, emulator)
	emulator.AddContainer("media")
	ctx := context.Background()

	first, err := proxy.GetSourceBlobSignedURL(ctx, "media", "track.mp3")
	require.NoError(t, err)
	second, err := proxy.GetSourceBlobSignedURL(ctx, "media", "track.mp3")
	require.NoError(t, err)
	assert.Equal(t, 2, emulator.DelegationKeyRequests())

	for _, link := range []string{first, second} {
		base, rawQuery, found := strings.Cut(link, "?")
		require.True(t, found)
		assert.Equal(t, emulator.URL()+"/media/track.mp3", base)
		query, err := url.ParseQuery(rawQuery)
		require.NoError(t, err)
		assert.Equal(t, "r", query.Get("sp"))
		assert.Equal(t, "b", query.Get("sr"))
		assert.NotEmpty(t, query.Get("sig"))
		assert.NotEmpty(t, query.Get("skoid"))

		expiry, err := time.Parse(time.RFC3339, query.Get("se"))
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiry, time.Minute)
	}
}

func TestDelegationKeyCannotSignAfterExpiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	key := &delegationKey{
		expiresOn: now.Add(DelegationKeyValidity),
		now:       func() time.Time { return now },
	}
	key.expire()
	assert.Equal(t, now, key.expiresOn)

	_, err := key.sign(sas.BlobSignatureValues{ContainerName: "media", BlobName: "track.mp3"})
	assert.ErrorIs(t, err, errDelegationKeyExpired)
}

func TestCloudStorageErrorUnwraps(t *testing.T) {
	inner := io.ErrUnexpectedEOF
	err := wrapError("unable to read", inner)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, "CloudStorage Error: unable to read: unexpected EOF", err.Error())
	assert.Equal(t, 0, StatusCode(err))
	assert.False(t, IsNotFound(err))
}

func TestAzureRejectsForeignCredentials(t *testing.T) {
	emulator := storagetest.NewAzureBlobService(t)
	emulator.AddContainer("media")
	ctx := context.Background()

	handlers := map[string]ProxyAuthHandler{
		"wrong account": ProxyAuthHandlerAzureSharedKey{
			AccountURL:  emulator.URL(),
			AccountName: "wrongaccount",
			AccountKey:  "d3Jvbmcta2V5",
		},
		"sas without signature": ProxyAuthHandlerAzureSASToken{AccountURL: emulator.URL(), SASToken: "sv=2023-11-03&sp=rw"},
	}
	for name, handler := range handlers {
		t.Run(name, func(t *testing.T) {
			proxy, err := NewAzureCloudStorageProxy(handler, nil)
			require.NoError(t, err)

			_, err = proxy.UploadFile(ctx, "media", "track.mp3", []byte("audio"))
			require.Error(t, err)
			assert.Contains(t, []int{401, 403}, StatusCode(err))
			_, stored := emulator.Blob("media", "track.mp3")
			assert.False(t, stored)
		})
	}
}

type fixedNames struct {
	container, blob string
}

var errUnset = errors.New("unset")

func (n fixedNames) ContainerName() (string, error) {
	if n.container == "" {
		return "", errUnset
	}
	return n.container, nil
}

func (n fixedNames) BlobName() (string, error) {
	if n.blob == "" {
		return "", errUnset
	}
	return n.blob, nil
}

func TestDefaultHandles(t *testing.T) {
	proxy, err := NewAzureCloudStorageProxy(completeHandlers()["KEY"], nil)
	require.NoError(t, err)

	container, err := proxy.DefaultContainer(fixedNames{container: "videos"})
	require.NoError(t, err)
	assert.Equal(t, testAccountURL+"/videos", container.URL())

	blob, err := proxy.DefaultBlob(fixedNames{container: "videos", blob: "clip.mp3"})
	require.NoError(t, err)
	assert.Equal(t, "videos", blob.ContainerName())
	assert.Equal(t, testAccountURL+"/videos/clip.mp3", blob.URL())

	_, err = proxy.DefaultBlob(fixedNames{container: "videos"})
	assert.ErrorIs(t, err, errUnset)
	_, err = proxy.DefaultBlob(fixedNames{blob: "clip.mp3"})
	assert.ErrorIs(t, err, errUnset)
	_, err = proxy.DefaultContainer(fixedNames{})
	assert.ErrorIs(t, err, errUnset)
}
