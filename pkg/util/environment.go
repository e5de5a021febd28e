package util

import (
	"os"
	"strconv"
	"strings"
	"time"
)

func GetEnvironmentVariables() map[string]string {
	environmentVariables := map[string]string{}

	for _, variable := range os.Environ() {
		pair := strings.SplitN(variable, "=", 2)

		environmentVariables[pair[0]] = pair[1]
	}

	return environmentVariables
}

// OverrideString replaces target with env[key] when the variable is set and non-empty
func OverrideString(env map[string]string, key string, target *string) {
	if val := env[key]; val != "" {
		*target = val
	}
}

func OverrideInt(env map[string]string, key string, target *int) error {
	val := env[key]
	if val == "" {
		return nil
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return &EnvironmentError{Key: key, Err: err}
	}
	*target = parsed

	return nil
}

func OverrideDuration(env map[string]string, key string, target *time.Duration) error {
	val := env[key]
	if val == "" {
		return nil
	}

	parsed, err := time.ParseDuration(val)
	if err != nil {
		return &EnvironmentError{Key: key, Err: err}
	}
	*target = parsed

	return nil
}

type EnvironmentError struct {
	Key string
	Err error
}

func (e *EnvironmentError) Error() string {
	return "invalid value for " + e.Key + ": " + e.Err.Error()
}

func (e *EnvironmentError) Unwrap() error {
	return e.Err
}
