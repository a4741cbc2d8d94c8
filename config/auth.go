package config

import (
	"errors"
	"fmt"
	"strings"

	"blob-storage-proxy-go/util"
)

// AuthenticationType selects how the proxy authenticates against the storage account.
type AuthenticationType string

const (
	SASToken         AuthenticationType = "SAS_TOKEN"
	ConnectionString AuthenticationType = "CONNECTION_STRING"
	Key              AuthenticationType = "KEY"
	ServicePrincipal AuthenticationType = "SERVICE_PRINCIPAL"
	UserCredentials  AuthenticationType = "USER_CREDENTIALS"
)

var ErrUnknownAuthenticationType = errors.New("unknown authentication type")

var authenticationTypes = []AuthenticationType{SASToken, ConnectionString, Key, ServicePrincipal, UserCredentials}

// ParseAuthenticationType accepts any case, and "-" or " " in place of "_".
func ParseAuthenticationType(s string) (AuthenticationType, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(util.NormalizeString(strings.TrimSpace(s)), "-", "_"))
	for _, t := range authenticationTypes {
		if string(t) == normalized {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownAuthenticationType, s)
}

// MissingSettingError names every required setting that has no value.
type MissingSettingError struct {
	Keys []string
}

func (e *MissingSettingError) Error() string {
	if len(e.Keys) == 1 {
		return fmt.Sprintf("missing required setting %s", e.Keys[0])
	}
	return fmt.Sprintf("missing required settings %s", strings.Join(e.Keys, ", "))
}

func missing(keys ...string) *MissingSettingError {
	return &MissingSettingError{Keys: keys}
}
