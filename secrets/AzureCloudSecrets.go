package secrets

import (
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"golang.org/x/net/context"
)

// AzureCloudSecretsProxy reads the latest version of Key Vault secrets.
type AzureCloudSecretsProxy struct {
	secretServicesClient *azsecrets.Client
	cache                *secretCache
}

func (handler ProxyAuthHandlerAzureDefaultIdentity) createProxy(options *CloudSecretsCacheOptions) (CloudSecretsProxy, error) {
	if handler.KeyVaultURL == "" {
		return nil, wrapError("a key vault URL is required", nil)
	}
	credential, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, wrapError("unable to create default Azure credential", err)
	}
	return createProxyFromCredential(handler.KeyVaultURL, credential, options)
}

func (handler ProxyAuthHandlerAzureClientSecretIdentity) createProxy(options *CloudSecretsCacheOptions) (CloudSecretsProxy, error) {
	if handler.KeyVaultURL == "" {
		return nil, wrapError("a key vault URL is required", nil)
	}
	credential, err := azidentity.NewClientSecretCredential(handler.TenantID, handler.ClientID,
		handler.ClientSecret, nil)
	if err != nil {
		return nil, wrapError("unable to create client secret credential", err)
	}
	return createProxyFromCredential(handler.KeyVaultURL, credential, options)
}

func createProxyFromCredential(vaultURL string, credential azcore.TokenCredential, options *CloudSecretsCacheOptions) (CloudSecretsProxy, error) {
	client, err := azsecrets.NewClient(vaultURL, credential, nil)
	if err != nil {
		return nil, wrapError("unable to create Azure KeyVault service client", err)
	}
	return &AzureCloudSecretsProxy{secretServicesClient: client, cache: newSecretCache(options)}, nil
}

func (az *AzureCloudSecretsProxy) fetch(ctx context.Context, name string) (string, error) {
	resp, err := az.secretServicesClient.GetSecret(ctx, name, "", nil)
	if err != nil {
		return "", wrapError("unable to retrieve secret "+name, err)
	}
	if resp.Value == nil {
		return "", wrapError("secret "+name+" has no value", nil)
	}
	return *resp.Value, nil
}

func (az *AzureCloudSecretsProxy) GetSecret(ctx context.Context, name string) (string, error) {
	return az.cache.get(ctx, name, az.fetch)
}
