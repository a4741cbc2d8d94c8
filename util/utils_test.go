package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeString(t *testing.T) {
	assert.Equal(t, "service_principal", NormalizeString("Service Principal"))
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "AZURE_STORAGE_ACCOUNT_NAME", EnvKey("azure.storage-account-name"))
	assert.Equal(t, "SERVER_LISTEN", EnvKey("server.listen"))
}

func TestJoinLines(t *testing.T) {
	assert.Equal(t, "", JoinLines(nil))
	assert.Equal(t, "a", JoinLines([]string{"a"}))
	assert.Equal(t, "a\nb", JoinLines([]string{"a", "b"}))
}
