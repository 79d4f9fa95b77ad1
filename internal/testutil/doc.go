// Package testutil provides shared test helpers and fixtures for gatekeeper.
//
// Philosophy:
// - Prefer real SQLite and real files (no storage mocks) for correctness.
// - Keep helpers small, composable, and deterministic.
// - Register cleanup via t.Cleanup so tests stay leak-free.
//
// Most packages should start with:
//
//	runner := testutil.NewMockRunner("ok", 0)
//	gk := testutil.NewTestGatekeeper(t, testutil.WithRunner(runner))
package testutil
