package secrets

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/context"
)

// ReferencePrefix marks a configuration value that names a secret instead of holding one.
const ReferencePrefix = "secret://"

type CloudSecretsProxy interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

type CloudSecretsCacheOptions struct {
	MaxEntries int
	TTL        time.Duration
}

const (
	defaultMaxEntries = 100
	defaultTTL        = 10 * time.Minute
)

func (o *CloudSecretsCacheOptions) maxEntries() int {
	if o == nil || o.MaxEntries <= 0 {
		return defaultMaxEntries
	}
	return o.MaxEntries
}

func (o *CloudSecretsCacheOptions) ttl() time.Duration {
	if o == nil || o.TTL <= 0 {
		return defaultTTL
	}
	return o.TTL
}

func CloudSecretsProxyFactory(handler ProxyAuthHandler, options *CloudSecretsCacheOptions) (CloudSecretsProxy, error) {
	if handler == nil {
		return nil, wrapError("no secrets handler configured", nil)
	}
	return handler.createProxy(options)
}

// Resolver turns configuration values into their effective value.
type Resolver interface {
	Resolve(ctx context.Context, value string) (string, error)
}

// IsReference reports whether value is a secret reference.
func IsReference(value string) bool {
	return strings.HasPrefix(value, ReferencePrefix)
}

// ReferenceResolver looks up secret references through a proxy and passes
// every other value through unchanged. A nil proxy rejects references.
type ReferenceResolver struct {
	proxy CloudSecretsProxy
}

func NewResolver(proxy CloudSecretsProxy) *ReferenceResolver {
	return &ReferenceResolver{proxy: proxy}
}

func (r *ReferenceResolver) Resolve(ctx context.Context, value string) (string, error) {
	if !IsReference(value) {
		return value, nil
	}
	name := strings.TrimPrefix(value, ReferencePrefix)
	if name == "" {
		return "", wrapError("empty secret reference", nil)
	}
	if r == nil || r.proxy == nil {
		return "", wrapError(fmt.Sprintf("secret %q referenced but no secrets store is configured", name), nil)
	}
	return r.proxy.GetSecret(ctx, name)
}

type CloudSecretsError struct {
	message       string
	internalError error
}

func (err *CloudSecretsError) Error() string {
	if err.internalError != nil {
		return fmt.Sprintf("CloudSecrets Error: %s: %s", err.message, err.internalError.Error())
	}
	return fmt.Sprintf("CloudSecrets Error: %s", err.message)
}

func (err *CloudSecretsError) Unwrap() error {
	return err.internalError
}

func wrapError(msg string, err error) *CloudSecretsError {
	return &CloudSecretsError{message: msg, internalError: err}
}
