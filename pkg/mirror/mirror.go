// Package mirror 启动 scrcpy 镜像或录屏并监视其退出
package mirror

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/zoeyai/scrollstitch/internal/logger"
	"github.com/zoeyai/scrollstitch/pkg/cmdutil"
)

// Mode 启动模式
type Mode string

const (
	// Mirror 仅镜像屏幕，配合手动截图
	Mirror Mode = "mirror"
	// Record 镜像并录屏为 mp4
	Record Mode = "record"
)

// RecordLayout 录屏文件名的时间格式
const RecordLayout = "2006-01-02_15-04-05"

// ErrAlreadyRunning 已有 scrcpy 进程在运行
var ErrAlreadyRunning = errors.New("scrcpy 已在运行")

// Options 启动选项
type Options struct {
	Path      string
	Mode      Mode
	OutputDir string
	// Now 录屏文件名使用的时钟，默认 time.Now
	Now func() time.Time
}

// Args 按模式生成 scrcpy 参数
func (o Options) Args() []string {
	if o.Mode != Record {
		return nil
	}
	now := o.Now
	if now == nil {
		now = time.Now
	}
	return []string{"--record", filepath.Join(o.OutputDir, now().Format(RecordLayout)+".mp4")}
}

// Launcher 管理单个 scrcpy 进程
type Launcher struct {
	opts      Options
	processes ProcessLister
	start     func(ctx context.Context, name string, args ...string) (*exec.Cmd, error)

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan error
}

// NewLauncher 创建启动器
func NewLauncher(opts Options) *Launcher {
	if opts.Path == "" {
		opts.Path = "scrcpy"
	}
	if opts.Mode == "" {
		opts.Mode = Mirror
	}
	return &Launcher{opts: opts, processes: SystemProcesses{}, start: startCommand}
}

// WithProcesses 替换进程枚举实现
func (l *Launcher) WithProcesses(p ProcessLister) *Launcher {
	l.processes = p
	return l
}

func startCommand(ctx context.Context, name string, args ...string) (*exec.Cmd, error) {
	cmd := cmdutil.Command(ctx, name, args...)
	if err := cmd.Start(); err != nil {
		return nil, &cmdutil.CommandError{Name: name, Args: args, Err: err}
	}
	return cmd, nil
}

// Running 查找已在运行的 scrcpy 进程
func (l *Launcher) Running() ([]ProcessInfo, error) {
	name := filepath.Base(l.opts.Path)
	procs, err := l.processes.FindProcess(name)
	if err != nil {
		return nil, err
	}
	var alive []ProcessInfo
	for _, p := range procs {
		if IsProcessRunning(p.PID) {
			alive = append(alive, p)
		}
	}
	return alive, nil
}

// Start 启动 scrcpy，返回的通道在进程退出时收到退出错误（正常退出为 nil）并关闭
func (l *Launcher) Start(ctx context.Context) (<-chan error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cmd != nil {
		return nil, ErrAlreadyRunning
	}
	if procs, err := l.Running(); err != nil {
		logger.Warn("检查 scrcpy 进程失败: %v", err)
	} else if len(procs) > 0 {
		return nil, fmt.Errorf("%w: PID=%d", ErrAlreadyRunning, procs[0].PID)
	}

	cmd, err := l.start(ctx, l.opts.Path, l.opts.Args()...)
	if err != nil {
		return nil, fmt.Errorf("启动 scrcpy 失败: %w", err)
	}
	l.cmd = cmd
	l.done = make(chan error, 1)
	logger.Info("scrcpy 已启动 (%s)", l.opts.Mode)

	go l.wait(cmd, l.done)
	return l.done, nil
}

func (l *Launcher) wait(cmd *exec.Cmd, done chan error) {
	err := cmd.Wait()

	l.mu.Lock()
	l.cmd = nil
	l.mu.Unlock()

	if err != nil {
		logger.Warn("scrcpy 异常退出: %v", err)
	} else {
		logger.Info("scrcpy 已退出")
	}
	done <- err
	close(done)
}

// Stop 终止正在运行的 scrcpy
func (l *Launcher) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cmd == nil || l.cmd.Process == nil {
		return nil
	}
	return l.cmd.Process.Kill()
}
