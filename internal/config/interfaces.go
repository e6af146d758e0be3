package config

import "context"

// SecretProvider resolves secret references, such as SSM parameter paths,
// to plaintext values. Keys that cannot be found are omitted from the result.
type SecretProvider interface {
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}

// NewSecretProvider picks the provider named by SECRETS_PROVIDER: "env"
// reads secrets from plain environment variables, anything else uses SSM in
// AWS_REGION.
func NewSecretProvider(lookupEnv func(string) (string, bool)) SecretProvider {
	if kind, _ := lookupEnv("SECRETS_PROVIDER"); kind == "env" {
		return NewEnvVarProvider()
	}
	region, _ := lookupEnv("AWS_REGION")
	return NewSSMProvider(region)
}
