package config

const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString keeps credentials out of logs and JSON dumps. String and
// MarshalJSON return a placeholder; Unmask returns the raw value.
type SecretString string

func (s SecretString) String() string {
	return redactedPlaceholder
}

func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the plaintext. Call it only where the raw value is needed,
// such as a connection string or an Authorization header.
func (s SecretString) Unmask() string {
	return string(s)
}
