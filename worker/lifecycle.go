package worker

import (
	"sync"

	"github.com/zeebo/errs"
)

// Error is the error class of the worker runtime.
var Error = errs.Class("worker")

// State is the lifecycle state of a worker instance. A given instance only
// ever moves forward: installing, installed (waiting), activating, activated,
// redundant.
type State string

const (
	StateInstalling State = "installing"
	StateInstalled  State = "installed"
	StateActivating State = "activating"
	StateActivated  State = "activated"
	StateRedundant  State = "redundant"
)

// ScopedTask extends the lifetime of the event that created it. Any
// asynchronous work started inside an event handler must hold a ScopedTask
// until it concludes, otherwise the runtime may be reclaimed mid-operation
// and the work silently dropped. Done is safe to call more than once.
type ScopedTask struct {
	wg   *sync.WaitGroup
	once sync.Once
}

// Done releases the lifetime extension.
func (t *ScopedTask) Done() {
	t.once.Do(t.wg.Done)
}
