package monitoring

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

var (
	faultOnce      sync.Once
	faultInstalled atomic.Bool
	faultCount     atomic.Int64
)

// InstallFaultBridge enables panic reporting through Logf for every
// RecoverFault call site. It is idempotent and stays installed for the
// lifetime of the process.
func InstallFaultBridge() {
	faultOnce.Do(func() {
		faultInstalled.Store(true)
	})
}

// FaultCount returns the number of panics converted by RecoverFault.
func FaultCount() int64 {
	return faultCount.Load()
}

// RecoverFault must be deferred. When the bridge is installed it converts a
// panic into a logged error, stores it in *errp (if non-nil) and lets the
// caller return normally. Without the bridge the panic propagates.
func RecoverFault(where string, errp *error) {
	if !faultInstalled.Load() {
		return
	}
	r := recover()
	if r == nil {
		return
	}
	faultCount.Add(1)
	err := fmt.Errorf("fault in %s: %v", where, r)
	Logf("[fault] %v\n%s", err, debug.Stack())
	if errp != nil {
		*errp = err
	}
}
