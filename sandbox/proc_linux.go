package sandbox

import "syscall"

// sysProcAttr puts the server in its own process group so that every helper
// it spawns can be killed with it. Pdeathsig is a Linux-only safety net: if
// noimport dies unexpectedly, the kernel kills the direct child.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
}

func killProcessGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}
