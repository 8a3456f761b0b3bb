package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

var ErrUnknownFormat = errors.New("unknown format")

type Reporter interface {
	Report(ctx context.Context, jr JobResult) error
}

type ReportCloser interface {
	Reporter
	io.Closer
}

// Encoder writes a stream of documents in a single format. YAML documents
// are separated by ---, JSON documents by a newline.
type Encoder struct {
	format string
	yaml   *yaml.Encoder
	json   *json.Encoder
}

func NewEncoder(w io.Writer, format string) (*Encoder, error) {
	switch strings.ToLower(format) {
	case "", FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		return &Encoder{format: FormatYAML, yaml: enc}, nil
	case FormatJSON:
		return &Encoder{format: FormatJSON, json: json.NewEncoder(w)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func (e *Encoder) Format() string {
	return e.format
}

func (e *Encoder) Encode(v any) error {
	if e.yaml != nil {
		return e.yaml.Encode(v)
	}
	return e.json.Encode(v)
}

// Close flushes pending YAML output.
func (e *Encoder) Close() error {
	if e.yaml != nil {
		return e.yaml.Close()
	}
	return nil
}

// WriteReporter encodes every JobResult to a writer.
type WriteReporter struct {
	mx  sync.Mutex
	enc *Encoder
}

func NewWriteReporter(w io.Writer, format string) (*WriteReporter, error) {
	if w == nil {
		w = os.Stdout
	}
	enc, err := NewEncoder(w, format)
	if err != nil {
		return nil, err
	}
	return &WriteReporter{enc: enc}, nil
}

func (r *WriteReporter) Report(_ context.Context, jr JobResult) error {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.enc.Encode(jr)
}

func (r *WriteReporter) Close() error {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.enc.Close()
}

// OSRootReporter stores every JobResult as a file in a directory.
type OSRootReporter struct {
	root   *os.Root
	format string
	now    func() time.Time
}

func NewOSRootReporter(path, format string) (*OSRootReporter, error) {
	if _, err := NewEncoder(io.Discard, format); err != nil {
		return nil, err
	}
	root, err := os.OpenRoot(path)
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = FormatYAML
	}
	return &OSRootReporter{root: root, format: strings.ToLower(format), now: time.Now}, nil
}

func (r *OSRootReporter) Report(ctx context.Context, jr JobResult) error {
	if r.root == nil {
		return errors.New("root already closed")
	}

	path := fmt.Sprintf("%s-%s.%s", sanitize(jr.Name), r.now().Format("2006-01-02-15-04-05"), r.format)

	f, err := r.root.Create(path)
	if err != nil {
		return fmt.Errorf("creating job result: %w", err)
	}
	enc, err := NewEncoder(f, r.format)
	if err != nil {
		_ = f.Close()
		return err
	}
	err = enc.Encode(jr)
	if err == nil {
		err = enc.Close()
	}
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("saving job result: %w", err)
	}
	err = f.Close()
	if err != nil {
		return fmt.Errorf("closing job result: %w", err)
	}
	slog.InfoContext(ctx, "job result saved", "path", path)
	return nil
}

func (r *OSRootReporter) Close() error {
	if r.root == nil {
		return errors.New("reporter already closed")
	}
	err := r.root.Close()
	r.root = nil
	return err
}

// sanitize keeps job names usable as a file name inside the root.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}
