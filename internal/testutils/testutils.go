// Package testutils provides simplified testing utilities and helper functions
package testutils

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// DefaultTimeout bounds every blocking step in a test
const DefaultTimeout = 5 * time.Second

// TestContext simplified test context
type TestContext struct {
	t       *testing.T
	timeout time.Duration
	cleanup []func()
	mu      sync.Mutex
}

// NewTestContext creates a test context; cleanups run when the test ends
func NewTestContext(t *testing.T) *TestContext {
	tc := &TestContext{
		t:       t,
		timeout: DefaultTimeout,
	}
	t.Cleanup(tc.Cleanup)
	return tc
}

// T returns testing.T instance
func (tc *TestContext) T() *testing.T {
	return tc.t
}

// Context returns context with timeout
func (tc *TestContext) Context() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), tc.timeout)
	tc.AddCleanup(cancel)
	return ctx
}

// AddCleanup adds cleanup function
func (tc *TestContext) AddCleanup(fn func()) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.cleanup = append(tc.cleanup, fn)
}

// Cleanup executes cleanup functions in reverse order
func (tc *TestContext) Cleanup() {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	for i := len(tc.cleanup) - 1; i >= 0; i-- {
		tc.cleanup[i]()
	}
	tc.cleanup = nil
}

// AssertEventually waits for condition to be true
func (tc *TestContext) AssertEventually(condition func() bool, msgAndArgs ...interface{}) bool {
	return assert.Eventually(tc.t, condition, tc.timeout, time.Millisecond, msgAndArgs...)
}

// Go runs fn in a goroutine and returns a channel closed when it returns
func Go(fn func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	return done
}

// RequireDone fails the test if done is not closed within DefaultTimeout
func RequireDone(t testing.TB, done <-chan struct{}, msgAndArgs ...interface{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(DefaultTimeout):
		assert.Fail(t, "timed out waiting for goroutine", msgAndArgs...)
		t.FailNow()
	}
}

// RequireBlocked fails the test if done closes within d
func RequireBlocked(t testing.TB, done <-chan struct{}, d time.Duration, msgAndArgs ...interface{}) {
	t.Helper()
	select {
	case <-done:
		assert.Fail(t, "goroutine returned while it should block", msgAndArgs...)
		t.FailNow()
	case <-time.After(d):
	}
}
