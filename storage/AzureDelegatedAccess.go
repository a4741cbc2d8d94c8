package storage

import (
	"errors"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/service"
	"golang.org/x/net/context"
)

// DelegationKeyValidity is the lifetime requested for a user delegation key.
// Azure stops honoring a link once its key expires, whatever the link's own
// expiry says.
const DelegationKeyValidity = 10 * time.Minute

var errDelegationKeyExpired = errors.New("user delegation key has expired")

// delegationKey wraps a user delegation credential with a local expiry.
// Expiring it only stops this process from signing with it; links already
// issued stay valid until the key's service-side expiry.
type delegationKey struct {
	credential *service.UserDelegationCredential
	expiresOn  time.Time
	now        func() time.Time
}

func (az *AzureCloudStorageProxy) getDelegationKey(ctx context.Context) (*delegationKey, error) {
	start := az.now().UTC()
	expiry := start.Add(DelegationKeyValidity)
	info := service.KeyInfo{
		Start:  to.Ptr(start.Format(sas.TimeFormat)),
		Expiry: to.Ptr(expiry.Format(sas.TimeFormat)),
	}
	credential, err := az.blobServiceClient.ServiceClient().GetUserDelegationCredential(ctx, info, nil)
	if err != nil {
		return nil, wrapError("unable to obtain user delegation key", err)
	}
	return &delegationKey{credential: credential, expiresOn: expiry, now: az.now}, nil
}

func (k *delegationKey) sign(values sas.BlobSignatureValues) (sas.QueryParameters, error) {
	if !k.now().Before(k.expiresOn) {
		return sas.QueryParameters{}, errDelegationKeyExpired
	}
	return values.SignWithUserDelegation(k.credential)
}

func (k *delegationKey) expire() {
	k.expiresOn = k.now()
}

// GetSourceBlobSignedURL returns a read-only link to the blob signed with a
// fresh user delegation key. The link's expiry is the configured link
// expiration, but it is usable for at most DelegationKeyValidity.
func (az *AzureCloudStorageProxy) GetSourceBlobSignedURL(ctx context.Context, containerName string, fileName string) (string, error) {
	handle := az.Blob(containerName, fileName)
	key, err := az.getDelegationKey(ctx)
	if err != nil {
		return "", err
	}
	defer key.expire()

	values := sas.BlobSignatureValues{
		ExpiryTime:    az.now().UTC().Add(az.linkExpiration),
		Permissions:   to.Ptr(sas.BlobPermissions{Read: true}).String(),
		ContainerName: containerName,
		BlobName:      fileName,
	}
	query, err := key.sign(values)
	if err != nil {
		return "", wrapError("could not sign link for "+fileName, err)
	}
	return handle.URL() + "?" + query.Encode(), nil
}
