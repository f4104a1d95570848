package internal

import (
	"os"
	"strconv"
	"time"
)

func getEnv(name string) (string, bool) {
	val, exists := os.LookupEnv(name)
	return val, exists
}

// GetEnvString returns the value of the environment variable with the given name
// or defaultValue if the environment variable is not set.
func GetEnvString(name string, defaultValue string) string {
	val, ok := getEnv(name)
	if !ok {
		return defaultValue
	}

	return val
}

// getEnvConvert returns the converted value of the environment variable with the given name
// or defaultValue if the environment variable is not set or fails to convert.
func getEnvConvert[T any](name string, defaultValue T, convert func(string) (T, error)) T {
	val, ok := getEnv(name)
	if !ok {
		return defaultValue
	}

	ret, err := convert(val)
	if err != nil {
		return defaultValue
	}
	return ret
}

func getEnvInt(name string, defaultValue int) int {
	return getEnvConvert(name, defaultValue, strconv.Atoi)
}

func getEnvInt64(name string, defaultValue int64) int64 {
	return getEnvConvert(name, defaultValue, func(s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	})
}

func getEnvUint16(name string, defaultValue uint16) uint16 {
	return getEnvConvert(name, defaultValue, func(s string) (uint16, error) {
		v, err := strconv.ParseUint(s, 10, 16)
		return uint16(v), err
	})
}

func getEnvBool(name string, defaultValue bool) bool {
	return getEnvConvert(name, defaultValue, strconv.ParseBool)
}

func getEnvDuration(name string, defaultValue time.Duration) time.Duration {
	return getEnvConvert(name, defaultValue, time.ParseDuration)
}
