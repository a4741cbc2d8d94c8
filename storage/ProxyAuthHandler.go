package storage

// ProxyAuthHandler selects how the storage proxy authenticates. Each variant
// carries exactly the fields its mode needs.
type ProxyAuthHandler interface {
	AuthMode() string
	createProxy(options *CloudStorageProxyOptions) (CloudStorageProxy, error)
}

// ProxyAuthHandlerAzureSASToken attaches a pre-issued SAS token to every request.
type ProxyAuthHandlerAzureSASToken struct {
	AccountURL string
	SASToken   string
}

// ProxyAuthHandlerAzureConnectionString takes account name and key from a connection string.
type ProxyAuthHandlerAzureConnectionString struct {
	ConnectionString string
}

// ProxyAuthHandlerAzureSharedKey signs requests with the storage account key.
type ProxyAuthHandlerAzureSharedKey struct {
	AccountURL  string
	AccountName string
	AccountKey  string
}

// ProxyAuthHandlerAzureServicePrincipal authenticates as an app registration.
type ProxyAuthHandlerAzureServicePrincipal struct {
	AccountURL   string
	ClientID     string
	ClientSecret string
	TenantID     string
}

// ProxyAuthHandlerAzureUserCredentials authenticates a user with the
// resource-owner password flow. TenantID may be empty.
type ProxyAuthHandlerAzureUserCredentials struct {
	AccountURL string
	ClientID   string
	Username   string
	Password   string
	TenantID   string
}

type ProxyAuthHandlerAWSDefaultIdentity struct {
	AccountURL string
	Region     string
}

type ProxyAuthHandlerAWSConfiguredIdentity struct {
	AccountURL string
	Region     string
	AccessID   string
	AccessKey  string
}

func (ProxyAuthHandlerAzureSASToken) AuthMode() string         { return "SAS_TOKEN" }
func (ProxyAuthHandlerAzureConnectionString) AuthMode() string { return "CONNECTION_STRING" }
func (ProxyAuthHandlerAzureSharedKey) AuthMode() string        { return "KEY" }
func (ProxyAuthHandlerAzureServicePrincipal) AuthMode() string { return "SERVICE_PRINCIPAL" }
func (ProxyAuthHandlerAzureUserCredentials) AuthMode() string  { return "USER_CREDENTIALS" }
func (ProxyAuthHandlerAWSDefaultIdentity) AuthMode() string    { return "AWS_DEFAULT_IDENTITY" }
func (ProxyAuthHandlerAWSConfiguredIdentity) AuthMode() string { return "AWS_CONFIGURED_IDENTITY" }
