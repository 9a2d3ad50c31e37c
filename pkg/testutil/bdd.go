package testutil

import "testing"

// Given, When and Then run named subtests so multi-step lifecycle scenarios
// read as a script. Steps share state through the enclosing closure and run
// in declaration order.
func Given(t *testing.T, step string, fn func(t *testing.T)) {
	t.Helper()
	scenario(t, "Given", step, fn)
}

func When(t *testing.T, step string, fn func(t *testing.T)) {
	t.Helper()
	scenario(t, "When", step, fn)
}

func Then(t *testing.T, step string, fn func(t *testing.T)) {
	t.Helper()
	scenario(t, "Then", step, fn)
}

func scenario(t *testing.T, word, step string, fn func(t *testing.T)) {
	t.Helper()
	t.Run(word+" "+step, fn)
}
