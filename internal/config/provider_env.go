package config

import (
	"context"
	"os"
)

// EnvVarProvider is a SecretProvider that treats every parameter path as an
// environment variable name. It lets a non-local APP_ENV run without SSM,
// for instance in CI.
type EnvVarProvider struct{}

func NewEnvVarProvider() *EnvVarProvider { return &EnvVarProvider{} }

// GetParametersBatch returns only the keys that are set.
func (EnvVarProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	found := make(map[string]string, len(keys))
	for _, key := range keys {
		if v, ok := os.LookupEnv(key); ok {
			found[key] = v
		}
	}
	return found, nil
}
