//go:build unix

package system

import (
	"log/slog"
	"syscall"
)

// InitResourceLimits raises the open-file soft limit so the HTTP server can
// hold many concurrent uploads and remote fetches.
func InitResourceLimits(logger *slog.Logger, want uint64) {
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		logger.Warn("could not read open-file limit", "error", err)
		return
	}
	if rLimit.Cur >= want {
		return
	}

	rLimit.Cur = want
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		logger.Warn("could not raise open-file limit", "error", err)
		return
	}
	logger.Info("open-file limit raised", "limit", rLimit.Cur)
}
