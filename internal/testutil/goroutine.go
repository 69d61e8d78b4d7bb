package testutil

import (
	"runtime"
	"testing"
	"time"
)

const (
	leakWait = 10 * time.Second
	leakPoll = 200 * time.Millisecond
)

// AssertNoGoroutineLeaks fails the test unless the goroutine count settles
// back to baseline (plus margin) before the wait runs out. Teardown paths
// release their goroutines asynchronously, hence the polling.
func AssertNoGoroutineLeaks(t *testing.T, baseline, margin int) {
	t.Helper()
	var current int
	for deadline := time.Now().Add(leakWait); time.Now().Before(deadline); time.Sleep(leakPoll) {
		if current = runtime.NumGoroutine(); current <= baseline+margin {
			return
		}
	}
	t.Errorf("leaked goroutines: %d running, baseline %d, margin %d", current, baseline, margin)
}
