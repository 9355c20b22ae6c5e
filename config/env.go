package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "MCPAGENT_"

// EnvConfigPath names the YAML file to load when no --config flag is given.
const EnvConfigPath = EnvPrefix + "CONFIG"

// ApplyEnv overrides settings from the MCPAGENT_* variables named by the
// env struct tags. A nil environ reads the process environment. Empty
// variables are ignored. Unparseable values are reported together; the
// valid ones are still applied.
func (c *Config) ApplyEnv(environ map[string]string) error {
	if environ == nil {
		environ = processEnviron()
	}
	return env.ParseWithOptions(c, env.Options{
		Prefix:      EnvPrefix,
		Environment: environ,
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(time.Duration(0)): parseDuration,
		},
	})
}

// parseDuration accepts Go duration strings ("90s") or a bare number of
// seconds.
func parseDuration(val string) (any, error) {
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(val)
}

func processEnviron() map[string]string {
	environ := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			environ[k] = v
		}
	}
	return environ
}
