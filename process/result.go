package process

import (
	"sync"
	"time"
)

// Result is the outcome of one run. It is never shared between runs and is
// not modified after the Handler returns it.
type Result struct {
	// ID identifies the run in logs.
	ID string `json:"id" yaml:"id"`
	// WasStarted is true if the OS accepted the launch request.
	WasStarted bool `json:"was_started" yaml:"was_started"`
	// HasCompleted is true if the process exited on its own, which also
	// means ExitCode is valid.
	HasCompleted bool `json:"has_completed" yaml:"has_completed"`
	// Killed is true if the deadline or the cancellation won the race.
	// A started run has either HasCompleted or Killed set, except when the
	// exit status could not be collected; then both are false and the
	// reason is the last entry of Errors.
	Killed bool `json:"killed,omitempty" yaml:"killed,omitempty"`
	// ExitCode is set only when HasCompleted is true.
	ExitCode *int `json:"exit_code,omitempty" yaml:"exit_code,omitempty"`
	// Output holds the lines written to stdout in arrival order.
	Output []string `json:"output" yaml:"output"`
	// Errors holds the lines written to stderr in arrival order together
	// with engine level failure messages, such as a failed launch.
	Errors []string `json:"errors" yaml:"errors"`

	Started time.Time `json:"started" yaml:"started"`
	Stopped time.Time `json:"stopped" yaml:"stopped"`
}

// Success reports a natural exit with code 0.
func (r Result) Success() bool {
	return r.HasCompleted && r.ExitCode != nil && *r.ExitCode == 0
}

// Duration is the wall clock time between start and stop, zero if the
// process never started.
func (r Result) Duration() time.Duration {
	if r.Started.IsZero() || r.Stopped.IsZero() {
		return 0
	}
	return r.Stopped.Sub(r.Started)
}

// Recorder accumulates a Result while a run is in flight. Both stream drains
// append concurrently, so every method is safe for concurrent use. Once the
// Handler freezes the recorder, later appends are dropped.
type Recorder struct {
	mx     sync.Mutex
	frozen bool
	result Result
}

func newRecorder(id string) *Recorder {
	return &Recorder{
		result: Result{
			ID:     id,
			Output: []string{},
			Errors: []string{},
		},
	}
}

// AppendOutput records a stdout line.
func (r *Recorder) AppendOutput(line string) {
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.frozen {
		return
	}
	r.result.Output = append(r.result.Output, line)
}

// AppendError records a stderr line or an engine failure message.
func (r *Recorder) AppendError(line string) {
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.frozen {
		return
	}
	r.result.Errors = append(r.result.Errors, line)
}

// update runs fn on the in-flight result under the lock.
func (r *Recorder) update(fn func(*Result)) {
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.frozen {
		return
	}
	fn(&r.result)
}

// freeze stops recording and returns a copy the caller owns exclusively.
func (r *Recorder) freeze() Result {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.frozen = true
	res := r.result
	res.Output = append([]string{}, r.result.Output...)
	res.Errors = append([]string{}, r.result.Errors...)
	return res
}
