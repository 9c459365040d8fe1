package cmdutil

import (
	"os/exec"
	"syscall"
)

// HideWindow 在 Windows 上隐藏 adb/scrcpy 子进程的控制台窗口
func HideWindow(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow: true,
	}
}
