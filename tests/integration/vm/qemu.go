//go:build integration

package vm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/kriansa/fmcmd/tests/integration/log"
)

// scratchSerial identifies the scratch disk inside the guest
const scratchSerial = "fmcmd-scratch"

// QEMU represents a running QEMU virtual machine
type QEMU struct {
	cmd       *exec.Cmd
	sshClient *ssh.Client
	config    *QEMUConfig
	tempFiles []string
	mu        sync.Mutex
}

// QEMUConfig holds configuration for starting a VM
type QEMUConfig struct {
	ImagePath  string
	SSHPort    int
	SSHUser    string
	SSHPass    string
	SSHTimeout time.Duration
	Memory     int
	CPUs       int
	// ScratchSize is the size of the blank disk handed to the guest
	// (qemu-img syntax, e.g. "64M")
	ScratchSize string
}

// StartQEMUVM boots the default test image with a blank scratch disk
func StartQEMUVM(ctx context.Context) (*QEMU, error) {
	imagePath, err := getImagePath()
	if err != nil {
		return nil, err
	}

	config := QEMUConfig{
		SSHPort:     10023,
		Memory:      1024,
		CPUs:        2,
		SSHUser:     "fedora",
		SSHPass:     "fedora",
		SSHTimeout:  1 * time.Minute,
		ImagePath:   imagePath,
		ScratchSize: "64M",
	}

	return StartQEMUVMWithConfig(ctx, config)
}

// StartQEMUVMWithConfig launches a QEMU VM. Call WaitForSSH before using it.
func StartQEMUVMWithConfig(ctx context.Context, config QEMUConfig) (*QEMU, error) {
	if config.ImagePath == "" {
		return nil, fmt.Errorf("image path is required")
	}

	if _, err := os.Stat(config.ImagePath); err != nil {
		return nil, fmt.Errorf("image not found: %w", err)
	}

	vm := &QEMU{config: &config}

	// The base image stays untouched; all writes go to a throwaway overlay
	overlayPath := vm.tempPath("overlay")
	if err := qemuImg(ctx, "create", "-f", "qcow2", "-b", config.ImagePath, "-F", "qcow2", overlayPath); err != nil {
		return nil, fmt.Errorf("create overlay: %w", err)
	}

	scratchPath := vm.tempPath("scratch")
	if err := qemuImg(ctx, "create", "-f", "qcow2", scratchPath, config.ScratchSize); err != nil {
		vm.removeTempFiles()
		return nil, fmt.Errorf("create scratch disk: %w", err)
	}

	log.Status("Starting VM with image: %s", config.ImagePath)
	cmd := exec.CommandContext(ctx, "qemu-system-x86_64",
		"-m", fmt.Sprintf("%dM", config.Memory),
		"-smp", fmt.Sprintf("%d", config.CPUs),
		"-machine", "type=pc,accel=kvm",
		"-cpu", "host",
		"-drive", fmt.Sprintf("file=%s,if=virtio,cache=writeback,discard=ignore,format=qcow2", overlayPath),
		"-drive", fmt.Sprintf("file=%s,if=none,id=scratch,format=qcow2", scratchPath),
		"-device", fmt.Sprintf("virtio-blk-pci,drive=scratch,serial=%s", scratchSerial),
		"-boot", "c",
		"-netdev", fmt.Sprintf("user,id=net0,hostfwd=tcp::%d-:22", config.SSHPort),
		"-device", "virtio-net,netdev=net0",
		"-nographic",
	)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		vm.removeTempFiles()
		return nil, fmt.Errorf("start qemu: %w", err)
	}
	vm.cmd = cmd

	return vm, nil
}

func (vm *QEMU) tempPath(kind string) string {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("fmcmd-vm-%s-%d.qcow2", kind, os.Getpid()))
	vm.tempFiles = append(vm.tempFiles, path)
	return path
}

func (vm *QEMU) removeTempFiles() {
	for _, path := range vm.tempFiles {
		_ = os.Remove(path)
	}
	vm.tempFiles = nil
}

func qemuImg(ctx context.Context, args ...string) error {
	output, err := exec.CommandContext(ctx, "qemu-img", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, output)
	}
	return nil
}

func getImagePath() (string, error) {
	imagePath := os.Getenv("VM_IMAGE")
	if imagePath == "" {
		imagePath = "../images/fedora-udisks.qcow2"
	}

	if _, err := os.Stat(imagePath); errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("VM image not found. Run 'make test-image' first or set VM_IMAGE env var")
	}

	absImagePath, err := filepath.Abs(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %v", err)
	}

	return absImagePath, nil
}

// ScratchDisk returns the udev path of the scratch disk
func (vm *QEMU) ScratchDisk() string {
	return "/dev/disk/by-id/virtio-" + scratchSerial
}

// WaitForSSH polls until SSH is available
func (vm *QEMU) WaitForSSH(ctx context.Context) error {
	config := &ssh.ClientConfig{
		User:            vm.config.SSHUser,
		Auth:            []ssh.AuthMethod{ssh.Password(vm.config.SSHPass)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	}

	deadline := time.Now().Add(vm.config.SSHTimeout)
	var lastErr error

	log.Status("Waiting for SSH to become available...")
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, err := ssh.Dial("tcp", fmt.Sprintf("localhost:%d", vm.config.SSHPort), config)
		if err == nil {
			vm.mu.Lock()
			vm.sshClient = conn
			vm.mu.Unlock()
			return nil
		}
		lastErr = err
		time.Sleep(2 * time.Second)
	}

	return fmt.Errorf("ssh timeout after %v: %w", vm.config.SSHTimeout, lastErr)
}

// Run executes a command in the VM and returns its combined output. A
// non-zero exit status is returned as *ssh.ExitError.
func (vm *QEMU) Run(cmd string) (string, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.sshClient == nil {
		return "", fmt.Errorf("ssh client not connected")
	}

	session, err := vm.sshClient.NewSession()
	if err != nil {
		return "", fmt.Errorf("new session: %w", err)
	}
	defer func() { _ = session.Close() }()

	output, err := session.CombinedOutput(cmd)
	return string(output), err
}

// RunWithTimeout executes a command with a specific timeout
func (vm *QEMU) RunWithTimeout(ctx context.Context, cmd string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		output string
		err    error
	}

	ch := make(chan result, 1)
	go func() {
		output, err := vm.Run(cmd)
		ch <- result{output, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		return r.output, r.err
	}
}

// WriteFile writes data to a file in the VM using SFTP, creating parent
// directories as needed
func (vm *QEMU) WriteFile(remotePath string, data []byte, mode fs.FileMode) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.sshClient == nil {
		return fmt.Errorf("ssh client not connected")
	}

	sftpClient, err := sftp.NewClient(vm.sshClient)
	if err != nil {
		return fmt.Errorf("create sftp client: %w", err)
	}
	defer func() { _ = sftpClient.Close() }()

	dir := filepath.Dir(remotePath)
	if err := sftpClient.MkdirAll(dir); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	f, err := sftpClient.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create remote file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	if err := sftpClient.Chmod(remotePath, mode); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}

	return nil
}

// Stop shuts the guest down and removes the temporary disks
func (vm *QEMU) Stop() {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.sshClient != nil {
		session, err := vm.sshClient.NewSession()
		if err == nil {
			_ = session.Run("sudo shutdown -P now")
			_ = session.Close()
			time.Sleep(2 * time.Second)
		}
		_ = vm.sshClient.Close()
		vm.sshClient = nil
	}

	log.Status("Shutting down VM...")
	if vm.cmd != nil && vm.cmd.Process != nil {
		_ = vm.cmd.Process.Kill()
		_ = vm.cmd.Wait()
		vm.cmd = nil
	}

	if len(vm.tempFiles) > 0 {
		log.Status("Cleaning up disk images...")
		vm.removeTempFiles()
	}
}

// IsRunning checks if the VM process is still running
func (vm *QEMU) IsRunning() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.cmd == nil || vm.cmd.Process == nil {
		return false
	}

	return vm.cmd.ProcessState == nil
}
