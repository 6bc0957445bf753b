// Package testutil provides the small test-only helpers shared across
// package tests: a miniredis-backed Store and a terse require/fail idiom
// matching the teacher's own common_test.go helpers.
package testutil

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/skirmishlabs/vault/storekeeper"
)

// NewStore spins up an in-process miniredis instance and wraps it in a
// *storekeeper.Store, registering cleanup on t.
func NewStore(t *testing.T) *storekeeper.Store {
	t.Helper()
	mr, err := miniredis.Run()
	Require(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return storekeeper.New(rdb)
}

// Require fails the test immediately if err is non-nil.
func Require(t *testing.T, err error, msgAndArgs ...interface{}) {
	t.Helper()
	if err != nil {
		Fail(t, err, msgAndArgs...)
	}
}

// Fail reports a fatal test failure with an attached cause.
func Fail(t *testing.T, cause interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	if len(msgAndArgs) > 0 {
		t.Fatalf("%v: %v", msgAndArgs[0], cause)
	}
	t.Fatalf("%v", cause)
}
