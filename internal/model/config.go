package model

import (
	"errors"
	"fmt"
	"io"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	"github.com/CZERTAINLY/prochandler/process"

	_ "embed"
)

const (
	DefaultParallel = 4
)

var (
	ErrDuplicateJob   = errors.New("duplicate job name")
	ErrInvalidTimeout = errors.New("invalid timeout")
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource, cue.Filename("config.cue"))
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

// Config is a batch of processes executed by `prochandler batch`.
type Config struct {
	Version  int    `json:"version" yaml:"version"` // fixed 0 for now
	Parallel int    `json:"parallel,omitempty" yaml:"parallel,omitempty"`
	Timeout  string `json:"timeout,omitempty" yaml:"timeout,omitempty"` // default for jobs
	Jobs     []Job  `json:"jobs" yaml:"jobs"`
}

// Job is a single process of a batch.
type Job struct {
	Name       string           `json:"name" yaml:"name"`
	Executable string           `json:"executable" yaml:"executable"`
	Arguments  string           `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	Dir        string           `json:"dir,omitempty" yaml:"dir,omitempty"`
	Timeout    string           `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Env        []process.EnvVar `json:"env,omitempty" yaml:"env,omitempty"`
}

// Setup converts the job into a process launch descriptor.
func (j Job) Setup() process.Setup {
	return process.Setup{
		Executable:           j.Executable,
		Arguments:            j.Arguments,
		WorkingDir:           j.Dir,
		EnvironmentVariables: append([]process.EnvVar(nil), j.Env...),
	}
}

// JobTimeout returns the timeout of job j, falling back to the config wide
// timeout and then to process.DefaultTimeout.
func (c Config) JobTimeout(j Job) (time.Duration, error) {
	for _, s := range []string{j.Timeout, c.Timeout} {
		if s == "" {
			continue
		}
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return 0, fmt.Errorf("%w: job %s: %q", ErrInvalidTimeout, j.Name, s)
		}
		return d, nil
	}
	return process.DefaultTimeout, nil
}

// ParallelOrDefault returns the configured concurrency limit.
func (c Config) ParallelOrDefault() int {
	if c.Parallel <= 0 {
		return DefaultParallel
	}
	return c.Parallel
}

// Validate checks the constraints CUE can't express.
func (c Config) Validate() error {
	var errs []error
	seen := make(map[string]struct{}, len(c.Jobs))
	for _, j := range c.Jobs {
		if _, ok := seen[j.Name]; ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateJob, j.Name))
		}
		seen[j.Name] = struct{}{}
		if err := j.Setup().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("job %s: %w", j.Name, err))
		}
		if _, err := c.JobTimeout(j); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DefaultConfig returns a single job config, which is what `prochandler
// batch --init` stores.
func DefaultConfig() Config {
	return Config{
		Version:  0,
		Parallel: DefaultParallel,
		Timeout:  process.DefaultTimeout.String(),
		Jobs: []Job{
			{
				Name:       "hello",
				Executable: "echo",
				Arguments:  "hello",
			},
		},
	}
}

// LoadConfig validates YAML from r against CUE schema and decodes to Config.
func LoadConfig(r io.Reader) (*Config, error) {
	yamlFile, err := yaml.Extract("config.yaml", r)
	if err != nil {
		return nil, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return nil, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return nil, err
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}

	return &out, nil
}
