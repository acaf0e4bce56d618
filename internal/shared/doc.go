// Package shared holds code used across packages that belongs to no
// single layer. Its testutil subpackage captures slog output so tests can
// assert on log records:
//
//	logger, logs := testutil.NewTestLogger(t)
//	svc := services.NewHealthService("1.0.0", "", paths, false, logger)
//	...
//	assert.True(t, logs.ContainsMessage("readiness check failed"))
package shared
