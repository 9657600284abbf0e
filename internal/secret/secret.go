package secret

import (
	"fmt"
	"os"
	"strings"
)

type MissingEnvironmentKey string

func (k MissingEnvironmentKey) Error() string {
	return fmt.Sprintf("%s environment variable not set", string(k))
}

// FromEnvironment reads key from the environment. When key is unset but
// key_FILE names a file, the file's content is used instead, which is how
// container secrets are usually mounted.
func FromEnvironment(key string) (string, error) {
	value := os.Getenv(key)
	path := os.Getenv(key + "_FILE")
	if value == "" && path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("%s_FILE: %w", key, err)
		}
		value = string(content)
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return "", MissingEnvironmentKey(key)
	}
	return value, nil
}

// Optional is FromEnvironment that treats a missing key as empty.
func Optional(key string) (string, error) {
	v, err := FromEnvironment(key)
	if _, ok := err.(MissingEnvironmentKey); ok {
		return "", nil
	}
	return v, err
}
