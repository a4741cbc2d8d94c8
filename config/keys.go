package config

// Setting keys. Each is also read from the environment, e.g.
// azure.storage-account-name from AZURE_STORAGE_ACCOUNT_NAME.
const (
	KeyAzureStorageAccountName = "azure.storage-account-name"
	KeyAzureAuthenticationType = "azure.authentication-type"
	KeyAzureExpirationMinutes  = "azure.expiration-minutes"
	KeyAzureSASToken           = "azure.sas-token"
	KeyAzureKey                = "azure.key"
	KeyAzureConnectionString   = "azure.connection-string"
	KeyAzureClientID           = "azure.client-id"
	KeyAzureClientSecret       = "azure.client-secret"
	KeyAzureTenantID           = "azure.tenant-id"
	KeyAzureUsername           = "azure.username"
	KeyAzurePassword           = "azure.password"
	KeyAzureContainerName      = "azure.container-name"
	KeyAzureBlobName           = "azure.blob-name"
	KeyAzureEndpoint           = "azure.endpoint"

	KeyAWSRegion          = "aws.region"
	KeyAWSEndpoint        = "aws.endpoint"
	KeyAWSAccessKeyID     = "aws.access-key-id"
	KeyAWSSecretAccessKey = "aws.secret-access-key"

	KeySecretsKeyVaultURL     = "secrets.key-vault-url"
	KeySecretsTenantID        = "secrets.tenant-id"
	KeySecretsClientID        = "secrets.client-id"
	KeySecretsClientSecret    = "secrets.client-secret"
	KeySecretsAWSRegion       = "secrets.aws-region"
	KeySecretsAWSEndpoint     = "secrets.aws-endpoint"
	KeySecretsCacheTTL        = "secrets.cache-ttl"
	KeySecretsCacheMaxEntries = "secrets.cache-max-entries"

	KeyServerListen          = "server.listen"
	KeyServerMaxUploadBytes  = "server.max-upload-bytes"
	KeyServerShutdownTimeout = "server.shutdown-timeout"
	KeyServerLogLevel        = "server.log-level"
)

var allKeys = []string{
	KeyAzureStorageAccountName, KeyAzureAuthenticationType, KeyAzureExpirationMinutes,
	KeyAzureSASToken, KeyAzureKey, KeyAzureConnectionString, KeyAzureClientID,
	KeyAzureClientSecret, KeyAzureTenantID, KeyAzureUsername, KeyAzurePassword,
	KeyAzureContainerName, KeyAzureBlobName, KeyAzureEndpoint,
	KeyAWSRegion, KeyAWSEndpoint, KeyAWSAccessKeyID, KeyAWSSecretAccessKey,
	KeySecretsKeyVaultURL, KeySecretsTenantID, KeySecretsClientID, KeySecretsClientSecret,
	KeySecretsAWSRegion, KeySecretsAWSEndpoint, KeySecretsCacheTTL, KeySecretsCacheMaxEntries,
	KeyServerListen, KeyServerMaxUploadBytes, KeyServerShutdownTimeout, KeyServerLogLevel,
}

// sensitiveKeys are redacted when settings are printed.
var sensitiveKeys = map[string]bool{
	KeyAzureSASToken:         true,
	KeyAzureKey:              true,
	KeyAzureConnectionString: true,
	KeyAzureClientSecret:     true,
	KeyAzurePassword:         true,
	KeyAWSSecretAccessKey:    true,
	KeySecretsClientSecret:   true,
}
