//go:build integration

package vm

import (
	"context"
	"io/fs"
	"time"
)

// VM is a guest the integration tests drive over SSH
type VM interface {
	Run(cmd string) (string, error)
	RunWithTimeout(ctx context.Context, cmd string, timeout time.Duration) (string, error)
	WriteFile(remotePath string, data []byte, mode fs.FileMode) error
	// ScratchDisk is the guest path of the empty disk attached for tests
	ScratchDisk() string
	Stop()
	IsRunning() bool
	WaitForSSH(ctx context.Context) error
}
