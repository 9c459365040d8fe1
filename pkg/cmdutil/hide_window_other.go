//go:build !windows

package cmdutil

import "os/exec"

// HideWindow 非 Windows 平台无需隐藏窗口
func HideWindow(_ *exec.Cmd) {}
