package cmdutil

import (
	"context"
	"errors"
	"os/exec"
	"testing"
)

func TestOutputMissingBinary(t *testing.T) {
	_, err := Output(context.Background(), "scrollstitch-no-such-binary", "-x")

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("应返回 CommandError, 实际 %v", err)
	}
	if cmdErr.Name != "scrollstitch-no-such-binary" || len(cmdErr.Args) != 1 {
		t.Errorf("CommandError 字段不符: %+v", cmdErr)
	}
	if !errors.Is(err, exec.ErrNotFound) {
		t.Errorf("应能解包出 exec.ErrNotFound, 实际 %v", err)
	}
}

func TestOutputSuccess(t *testing.T) {
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("PATH 中没有 go，跳过")
	}
	out, err := ExecRunner{}.Output(context.Background(), "go", "env", "GOOS")
	if err != nil {
		t.Fatalf("执行失败: %v", err)
	}
	if len(out) == 0 {
		t.Error("输出不应为空")
	}
}
