// Package cmdutil 封装外部命令 (adb、scrcpy、ocrmypdf) 的执行
package cmdutil

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandError 外部命令执行失败
type CommandError struct {
	Name   string
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("执行 %s %s 失败: %v", e.Name, strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Runner 执行外部命令并返回标准输出
type Runner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner 基于 os/exec 的 Runner
type ExecRunner struct{}

// Output 实现 Runner
func (ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return Output(ctx, name, args...)
}

// Command 创建隐藏窗口的命令
func Command(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	HideWindow(cmd)
	return cmd
}

// Output 执行命令，失败时返回 *CommandError
func Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := Command(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return out, &CommandError{
			Name:   name,
			Args:   args,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return out, nil
}
