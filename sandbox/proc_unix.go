//go:build unix && !linux

package sandbox

import "syscall"

// sysProcAttr puts the server in its own process group. Pdeathsig is not
// available on non-Linux platforms.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid: true,
	}
}

func killProcessGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}
