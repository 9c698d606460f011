//go:build !unix

package system

import "log/slog"

// InitResourceLimits is a no-op where rlimits do not exist.
func InitResourceLimits(logger *slog.Logger, want uint64) {}
