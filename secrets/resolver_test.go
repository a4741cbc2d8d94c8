package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

type mapProxy map[string]string

func (m mapProxy) GetSecret(_ context.Context, name string) (string, error) {
	value, ok := m[name]
	if !ok {
		return "", wrapError("unknown secret "+name, nil)
	}
	return value, nil
}

func TestResolverPassesPlainValuesThrough(t *testing.T) {
	value, err := NewResolver(nil).Resolve(context.Background(), "plain-value")
	require.NoError(t, err)
	assert.Equal(t, "plain-value", value)
}

func TestResolverLooksUpReferences(t *testing.T) {
	resolver := NewResolver(mapProxy{"storage-key": "s3cr3t"})

	value, err := resolver.Resolve(context.Background(), "secret://storage-key")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", value)

	_, err = resolver.Resolve(context.Background(), "secret://missing")
	var secretsError *CloudSecretsError
	assert.ErrorAs(t, err, &secretsError)

	_, err = resolver.Resolve(context.Background(), "secret://")
	assert.Error(t, err)
}

func TestResolverWithoutStoreRejectsReferences(t *testing.T) {
	_, err := NewResolver(nil).Resolve(context.Background(), "secret://storage-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage-key")
}

func TestFactoryRejectsIncompleteHandlers(t *testing.T) {
	_, err := CloudSecretsProxyFactory(nil, nil)
	assert.Error(t, err)
	_, err = CloudSecretsProxyFactory(ProxyAuthHandlerAzureDefaultIdentity{}, nil)
	assert.Error(t, err)
	_, err = CloudSecretsProxyFactory(ProxyAuthHandlerAWSConfiguredIdentity{Region: "us-east-1", AccessID: "id"}, nil)
	assert.Error(t, err)
}
