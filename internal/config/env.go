package config

import (
	"os"
	"strings"
)

// Env abstracts environment lookup so tests can inject values without
// mutating the process environment.
type Env interface {
	Get(key, def string) string
}

type osEnv struct{}

func (osEnv) Get(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

// OSEnv returns the process-environment backed Env.
func OSEnv() Env { return osEnv{} }

// MapEnv is an Env backed by a map, for tests.
type MapEnv map[string]string

func (m MapEnv) Get(key, def string) string {
	v := strings.TrimSpace(m[key])
	if v == "" {
		return def
	}
	return v
}
