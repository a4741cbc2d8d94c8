// Package config resolves the proxy's named settings from the environment,
// an optional config file and secret references.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/net/context"

	"blob-storage-proxy-go/secrets"
	"blob-storage-proxy-go/storage"
	"blob-storage-proxy-go/util"
)

const redactedValue = "********"

type Settings struct {
	Azure   StorageConfiguration
	AWS     AWSConfiguration
	Secrets SecretsConfiguration
	Server  ServerConfiguration
}

// StorageConfiguration holds the azure.* settings. Mode specific values are
// only checked when the mode that needs them is selected.
type StorageConfiguration struct {
	AccountName        string
	AuthenticationType AuthenticationType
	ExpirationMinutes  int
	Endpoint           string

	sasToken         string
	key              string
	connectionString string
	clientID         string
	clientSecret     string
	tenantID         string
	username         string
	password         string
	containerName    string
	blobName         string
}

type AWSConfiguration struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

type SecretsConfiguration struct {
	KeyVaultURL     string
	TenantID        string
	ClientID        string
	ClientSecret    string
	AWSRegion       string
	AWSEndpoint     string
	CacheTTL        time.Duration
	CacheMaxEntries int
}

type ServerConfiguration struct {
	Listen          string
	MaxUploadBytes  int64
	ShutdownTimeout time.Duration
	LogLevel        string
}

// NewViper returns a private viper instance with defaults set and every
// setting bound to its environment variable.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyServerListen, ":8080")
	v.SetDefault(KeyServerMaxUploadBytes, 64<<20)
	v.SetDefault(KeyServerShutdownTimeout, 10*time.Second)
	v.SetDefault(KeyServerLogLevel, "info")
	v.SetDefault(KeySecretsCacheTTL, 10*time.Minute)
	v.SetDefault(KeySecretsCacheMaxEntries, 100)
	for _, key := range allKeys {
		_ = v.BindEnv(key, util.EnvKey(key))
	}
	return v
}

// ReadConfigFile merges a YAML, JSON or TOML file into v. Environment
// variables still take precedence.
func ReadConfigFile(v *viper.Viper, path string) error {
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return nil
}

// LoadSecretsConfiguration reads the secrets.* settings. They are needed to
// build the resolver used by Load, so they can not be secret references.
func LoadSecretsConfiguration(v *viper.Viper) SecretsConfiguration {
	return SecretsConfiguration{
		KeyVaultURL:     v.GetString(KeySecretsKeyVaultURL),
		TenantID:        v.GetString(KeySecretsTenantID),
		ClientID:        v.GetString(KeySecretsClientID),
		ClientSecret:    v.GetString(KeySecretsClientSecret),
		AWSRegion:       v.GetString(KeySecretsAWSRegion),
		AWSEndpoint:     v.GetString(KeySecretsAWSEndpoint),
		CacheTTL:        v.GetDuration(KeySecretsCacheTTL),
		CacheMaxEntries: v.GetInt(KeySecretsCacheMaxEntries),
	}
}

// Load reads every namespace. A nil resolver rejects secret references.
func Load(ctx context.Context, v *viper.Viper, resolver secrets.Resolver) (*Settings, error) {
	if resolver == nil {
		resolver = secrets.NewResolver(nil)
	}
	var resolveErr error
	get := func(key string) string {
		value, err := resolver.Resolve(ctx, strings.TrimSpace(v.GetString(key)))
		if err != nil && resolveErr == nil {
			resolveErr = fmt.Errorf("resolving %s: %w", key, err)
		}
		return value
	}

	azure := StorageConfiguration{
		AccountName:      get(KeyAzureStorageAccountName),
		Endpoint:         strings.TrimSuffix(get(KeyAzureEndpoint), "/"),
		sasToken:         get(KeyAzureSASToken),
		key:              get(KeyAzureKey),
		connectionString: get(KeyAzureConnectionString),
		clientID:         get(KeyAzureClientID),
		clientSecret:     get(KeyAzureClientSecret),
		tenantID:         get(KeyAzureTenantID),
		username:         get(KeyAzureUsername),
		password:         get(KeyAzurePassword),
		containerName:    get(KeyAzureContainerName),
		blobName:         get(KeyAzureBlobName),
	}
	authType := get(KeyAzureAuthenticationType)
	expiration := get(KeyAzureExpirationMinutes)
	aws := AWSConfiguration{
		Region:          get(KeyAWSRegion),
		Endpoint:        get(KeyAWSEndpoint),
		AccessKeyID:     get(KeyAWSAccessKeyID),
		SecretAccessKey: get(KeyAWSSecretAccessKey),
	}
	if resolveErr != nil {
		return nil, resolveErr
	}

	var absent []string
	if azure.AccountName == "" {
		absent = append(absent, KeyAzureStorageAccountName)
	}
	if authType == "" {
		absent = append(absent, KeyAzureAuthenticationType)
	}
	if expiration == "" {
		absent = append(absent, KeyAzureExpirationMinutes)
	}
	if len(absent) > 0 {
		return nil, missing(absent...)
	}

	var err error
	if azure.AuthenticationType, err = ParseAuthenticationType(authType); err != nil {
		return nil, err
	}
	azure.ExpirationMinutes, err = strconv.Atoi(expiration)
	if err != nil || azure.ExpirationMinutes <= 0 {
		return nil, fmt.Errorf("%s must be a positive integer, got %q", KeyAzureExpirationMinutes, expiration)
	}

	server := ServerConfiguration{
		Listen:          v.GetString(KeyServerListen),
		MaxUploadBytes:  v.GetInt64(KeyServerMaxUploadBytes),
		ShutdownTimeout: v.GetDuration(KeyServerShutdownTimeout),
		LogLevel:        v.GetString(KeyServerLogLevel),
	}
	if server.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("%s must be positive", KeyServerMaxUploadBytes)
	}

	return &Settings{
		Azure:   azure,
		AWS:     aws,
		Secrets: LoadSecretsConfiguration(v),
		Server:  server,
	}, nil
}

// Redacted returns every setting as configured, with credentials masked.
// Secret references are shown as written.
func Redacted(v *viper.Viper) map[string]string {
	out := make(map[string]string, len(allKeys))
	for _, key := range allKeys {
		value := v.GetString(key)
		if sensitiveKeys[key] && value != "" && !secrets.IsReference(value) {
			value = redactedValue
		}
		out[key] = value
	}
	return out
}

// StorageAccountURL is the configured endpoint, or the public Azure endpoint of the account.
func (c StorageConfiguration) StorageAccountURL() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net", c.AccountName)
}

func (c StorageConfiguration) LinkExpiration() time.Duration {
	return time.Duration(c.ExpirationMinutes) * time.Minute
}

func optional(key string, value string) (string, error) {
	if value == "" {
		return "", missing(key)
	}
	return value, nil
}

func (c StorageConfiguration) SASToken() (string, error) {
	return optional(KeyAzureSASToken, c.sasToken)
}

func (c StorageConfiguration) Key() (string, error) {
	return optional(KeyAzureKey, c.key)
}

func (c StorageConfiguration) ConnectionString() (string, error) {
	return optional(KeyAzureConnectionString, c.connectionString)
}

func (c StorageConfiguration) ClientID() (string, error) {
	return optional(KeyAzureClientID, c.clientID)
}

func (c StorageConfiguration) ClientSecret() (string, error) {
	return optional(KeyAzureClientSecret, c.clientSecret)
}

func (c StorageConfiguration) TenantID() (string, error) {
	return optional(KeyAzureTenantID, c.tenantID)
}

func (c StorageConfiguration) Username() (string, error) {
	return optional(KeyAzureUsername, c.username)
}

func (c StorageConfiguration) Password() (string, error) {
	return optional(KeyAzurePassword, c.password)
}

func (c StorageConfiguration) ContainerName() (string, error) {
	return optional(KeyAzureContainerName, c.containerName)
}

func (c StorageConfiguration) BlobName() (string, error) {
	return optional(KeyAzureBlobName, c.blobName)
}

// AuthHandler builds the authentication variant for the selected mode.
// Every setting the mode requires must be present; there is no fallback
// to another mode.
func (c StorageConfiguration) AuthHandler() (storage.ProxyAuthHandler, error) {
	var absent []string
	need := func(get func() (string, error)) string {
		value, err := get()
		var missingErr *MissingSettingError
		if errors.As(err, &missingErr) {
			absent = append(absent, missingErr.Keys...)
		}
		return value
	}

	var handler storage.ProxyAuthHandler
	switch c.AuthenticationType {
	case SASToken:
		handler = storage.ProxyAuthHandlerAzureSASToken{
			AccountURL: c.StorageAccountURL(),
			SASToken:   need(c.SASToken),
		}
	case ConnectionString:
		handler = storage.ProxyAuthHandlerAzureConnectionString{ConnectionString: need(c.ConnectionString)}
	case Key:
		handler = storage.ProxyAuthHandlerAzureSharedKey{
			AccountURL:  c.StorageAccountURL(),
			AccountName: c.AccountName,
			AccountKey:  need(c.Key),
		}
	case ServicePrincipal:
		handler = storage.ProxyAuthHandlerAzureServicePrincipal{
			AccountURL:   c.StorageAccountURL(),
			ClientID:     need(c.ClientID),
			ClientSecret: need(c.ClientSecret),
			TenantID:     need(c.TenantID),
		}
	case UserCredentials:
		// the tenant is optional here
		tenantID, _ := c.TenantID()
		handler = storage.ProxyAuthHandlerAzureUserCredentials{
			AccountURL: c.StorageAccountURL(),
			ClientID:   need(c.ClientID),
			Username:   need(c.Username),
			Password:   need(c.Password),
			TenantID:   tenantID,
		}
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownAuthenticationType, c.AuthenticationType)
	}
	if len(absent) > 0 {
		return nil, missing(absent...)
	}
	return handler, nil
}

// AuthHandler returns nil, nil when no AWS settings are present. Static keys
// must be set together; with neither, the default credential chain is used.
func (c AWSConfiguration) AuthHandler() (storage.ProxyAuthHandler, error) {
	if c.Region == "" && c.Endpoint == "" {
		return nil, nil
	}
	switch {
	case c.AccessKeyID != "" && c.SecretAccessKey != "":
		return storage.ProxyAuthHandlerAWSConfiguredIdentity{
			AccountURL: c.Endpoint,
			Region:     c.Region,
			AccessID:   c.AccessKeyID,
			AccessKey:  c.SecretAccessKey,
		}, nil
	case c.AccessKeyID != "":
		return nil, missing(KeyAWSSecretAccessKey)
	case c.SecretAccessKey != "":
		return nil, missing(KeyAWSAccessKeyID)
	}
	return storage.ProxyAuthHandlerAWSDefaultIdentity{AccountURL: c.Endpoint, Region: c.Region}, nil
}

// Handler picks Key Vault when a vault URL is set, then Secrets Manager when
// a region is set. It reports false when no secrets store is configured.
func (c SecretsConfiguration) Handler() (secrets.ProxyAuthHandler, bool) {
	switch {
	case c.KeyVaultURL != "" && c.ClientSecret != "":
		return secrets.ProxyAuthHandlerAzureClientSecretIdentity{
			KeyVaultURL:  c.KeyVaultURL,
			TenantID:     c.TenantID,
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
		}, true
	case c.KeyVaultURL != "":
		return secrets.ProxyAuthHandlerAzureDefaultIdentity{KeyVaultURL: c.KeyVaultURL}, true
	case c.AWSRegion != "" || c.AWSEndpoint != "":
		return secrets.ProxyAuthHandlerAWSDefaultIdentity{Region: c.AWSRegion, Endpoint: c.AWSEndpoint}, true
	default:
		return nil, false
	}
}

func (c SecretsConfiguration) CacheOptions() *secrets.CloudSecretsCacheOptions {
	return &secrets.CloudSecretsCacheOptions{MaxEntries: c.CacheMaxEntries, TTL: c.CacheTTL}
}
