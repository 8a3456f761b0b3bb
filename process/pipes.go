package process

import (
	"fmt"
	"os"
	"sync"
)

// pipes carries the stdout and stderr of one child. The write ends belong to
// the child once it is started, the read ends to the drains.
type pipes struct {
	stdoutR, stdoutW *os.File
	stderrR, stderrW *os.File

	readOnce  sync.Once
	writeOnce sync.Once
}

func openPipes() (*pipes, error) {
	or, ow, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	er, ew, err := os.Pipe()
	if err != nil {
		_ = or.Close()
		_ = ow.Close()
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}
	return &pipes{
		stdoutR: or,
		stdoutW: ow,
		stderrR: er,
		stderrW: ew,
	}, nil
}

// closeWrite drops the parent's copies of the write ends, so the drains see
// EOF as soon as the child (and anything it shares the pipes with) is gone.
func (p *pipes) closeWrite() {
	p.writeOnce.Do(func() {
		_ = p.stdoutW.Close()
		_ = p.stderrW.Close()
	})
}

// closeRead unblocks pending reads with os.ErrClosed.
func (p *pipes) closeRead() {
	p.readOnce.Do(func() {
		_ = p.stdoutR.Close()
		_ = p.stderrR.Close()
	})
}

func (p *pipes) close() {
	p.closeWrite()
	p.closeRead()
}
