package luaengine

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonwraymond/toolscript/script"
)

// progressContext is installed as the Lua state's context. The VM selects on
// Done before every instruction, which makes Done the instruction counter
// and the abort-poll point. Once aborted, Done returns a closed channel and
// the VM raises Err as a Lua error.
type progressContext struct {
	maxOps uint64
	hook   script.ProgressFunc

	ops   uint64
	done  chan struct{}
	once  sync.Once
	cause error
}

func newProgressContext(maxOps uint64) *progressContext {
	return &progressContext{maxOps: maxOps, done: make(chan struct{})}
}

func (c *progressContext) Done() <-chan struct{} {
	if c.cause != nil {
		return c.done
	}
	c.ops++
	if c.maxOps > 0 && c.ops > c.maxOps {
		c.abort(fmt.Errorf("%w: more than %d operations", script.ErrOperationLimit, c.maxOps))
	} else if c.hook != nil {
		if err := c.hook(c.ops); err != nil {
			c.abort(&script.AbortError{Cause: err})
		}
	}
	return c.done
}

func (c *progressContext) Err() error {
	select {
	case <-c.done:
		return c.cause
	default:
		return nil
	}
}

func (c *progressContext) Deadline() (time.Time, bool) { return time.Time{}, false }

func (c *progressContext) Value(any) any { return nil }

// abort records cause and closes done. The first cause wins.
func (c *progressContext) abort(cause error) {
	c.once.Do(func() {
		c.cause = cause
		close(c.done)
	})
}

// poll runs the hook without counting an instruction and returns the abort
// cause, if any. Host functions that loop call it between steps.
func (c *progressContext) poll() error {
	if c.cause == nil && c.hook != nil {
		if err := c.hook(c.ops); err != nil {
			c.abort(&script.AbortError{Cause: err})
		}
	}
	return c.Err()
}

// aborted returns the abort cause, if any.
func (c *progressContext) aborted() error {
	return c.Err()
}

// count returns the number of instructions counted so far.
func (c *progressContext) count() uint64 { return c.ops }
