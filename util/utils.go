package util

import "strings"

// NormalizeString lowercases s and replaces spaces with underscores.
func NormalizeString(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	return strings.ToLower(s)
}

// EnvKey maps a dotted setting key such as "azure.storage-account-name" to
// the environment variable that carries it, "AZURE_STORAGE_ACCOUNT_NAME".
func EnvKey(key string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_")
	return strings.ToUpper(r.Replace(key))
}

// JoinLines joins items with "\n", the response format for listings.
func JoinLines(items []string) string {
	return strings.Join(items, "\n")
}
