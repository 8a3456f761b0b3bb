package process

import (
	"errors"
	"os"
	"strings"
)

// ErrEmptyExecutable is returned before launch when Setup.Executable is blank.
var ErrEmptyExecutable = errors.New("executable is empty")

// EnvVar is a single environment variable injected into the child.
type EnvVar struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Setup describes what to run. Timeouts and cancellation are passed to the
// Handler methods instead.
type Setup struct {
	// Executable is a path or a name looked up in $PATH.
	Executable string `json:"executable" yaml:"executable"`
	// Arguments is a single argument string. It is split into argv using
	// POSIX quoting rules, no shell ever sees it.
	Arguments string `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	// WorkingDir is the current directory of the child, empty means inherit.
	WorkingDir string `json:"dir,omitempty" yaml:"dir,omitempty"`
	// EnvironmentVariables are layered on top of the inherited environment.
	// On duplicate keys the last one wins.
	EnvironmentVariables []EnvVar `json:"env,omitempty" yaml:"env,omitempty"`
}

// NewSetup returns a Setup for executable and arguments only.
func NewSetup(executable, arguments string) Setup {
	return Setup{
		Executable: executable,
		Arguments:  arguments,
	}
}

// Validate reports programmer errors, which fail fast before any process exists.
func (s Setup) Validate() error {
	if strings.TrimSpace(s.Executable) == "" {
		return ErrEmptyExecutable
	}
	return nil
}

// Environ returns os.Environ() with EnvironmentVariables applied.
func (s Setup) Environ() []string {
	return mergeEnv(os.Environ(), s.EnvironmentVariables)
}

// mergeEnv overrides base (KEY=VALUE strings) with vars. Keys keep the
// position of their first occurrence, values are the last written.
func mergeEnv(base []string, vars []EnvVar) []string {
	env := make([]string, 0, len(base)+len(vars))
	index := make(map[string]int, len(base)+len(vars))
	set := func(key, kv string) {
		if i, ok := index[key]; ok {
			env[i] = kv
			return
		}
		index[key] = len(env)
		env = append(env, kv)
	}

	for _, kv := range base {
		key, _, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			// windows keeps per-drive cwd as "=C:=C:\dir"
			env = append(env, kv)
			continue
		}
		set(key, kv)
	}
	for _, v := range vars {
		if v.Key == "" {
			continue
		}
		set(v.Key, v.Key+"="+v.Value)
	}
	return env
}
