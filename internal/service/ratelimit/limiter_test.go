package ratelimit

import "testing"

func TestAllowExhaustsBurst(t *testing.T) {
	l := New()
	if !l.Allow("k", 2, 0) {
		t.Fatal("first request must pass")
	}
	if !l.Allow("k", 2, 0) {
		t.Fatal("second request must pass")
	}
	if l.Allow("k", 2, 0) {
		t.Fatal("third request must be limited")
	}
}

func TestAllowKeysAreIndependent(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		l.Allow("a", 1, 0)
	}
	if !l.Allow("b", 1, 0) {
		t.Fatal("unrelated key must not be limited")
	}
}

func TestAllowReusesFirstBucketParams(t *testing.T) {
	l := New()
	l.Allow("k", 1, 0)
	// The bucket was created with burst 1; a larger burst later does not
	// reset it.
	if l.Allow("k", 100, 0) {
		t.Fatal("existing bucket must keep its original burst")
	}
}
