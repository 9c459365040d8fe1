// Package device 通过 adb 与 Android 设备交互：截图、滑动、读取屏幕信息和 UI 层级
package device

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zoeyai/scrollstitch/internal/logger"
	"github.com/zoeyai/scrollstitch/pkg/cmdutil"
)

// 读取屏幕尺寸失败时使用的默认值
const (
	DefaultWidth  = 1080
	DefaultHeight = 1920
)

// Size 屏幕尺寸（像素）
type Size struct {
	Width  int
	Height int
}

// ADB adb 客户端
type ADB struct {
	Path   string // adb 可执行文件
	Serial string // 设备序列号，空表示唯一连接的设备
	runner cmdutil.Runner
}

// NewADB 创建 adb 客户端
func NewADB(path, serial string) *ADB {
	if path == "" {
		path = "adb"
	}
	return &ADB{Path: path, Serial: serial, runner: cmdutil.ExecRunner{}}
}

// WithRunner 替换命令执行器
func (a *ADB) WithRunner(r cmdutil.Runner) *ADB {
	a.runner = r
	return a
}

func (a *ADB) run(ctx context.Context, args ...string) ([]byte, error) {
	if a.Serial != "" {
		args = append([]string{"-s", a.Serial}, args...)
	}
	return a.runner.Output(ctx, a.Path, args...)
}

// Screenshot 截取设备屏幕，返回 PNG 数据
func (a *ADB) Screenshot(ctx context.Context) ([]byte, error) {
	startTime := time.Now()
	data, err := a.run(ctx, "exec-out", "screencap", "-p")
	if err != nil {
		logger.LogEvent("CAP", false, logger.Since(startTime), "截图失败")
		return nil, fmt.Errorf("截图失败，设备未连接？: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("截图失败: 数据为空")
	}
	logger.LogEvent("CAP", true, logger.Since(startTime), fmt.Sprintf("%d 字节", len(data)))
	return data, nil
}

// ScreenSize 读取屏幕分辨率，失败时返回默认尺寸和错误
func (a *ADB) ScreenSize(ctx context.Context) (Size, error) {
	out, err := a.run(ctx, "shell", "wm", "size")
	if err != nil {
		return Size{DefaultWidth, DefaultHeight}, fmt.Errorf("读取屏幕信息失败: %w", err)
	}
	size, err := ParseWMSize(string(out))
	if err != nil {
		return Size{DefaultWidth, DefaultHeight}, err
	}
	return size, nil
}

// ParseWMSize 解析 `wm size` 输出，取最后一个 WxH
// 存在 Override size 时它在最后一行，以实际生效的分辨率为准
func ParseWMSize(out string) (Size, error) {
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return Size{}, fmt.Errorf("无法解析屏幕尺寸: 输出为空")
	}

	last := fields[len(fields)-1]
	parts := strings.Split(last, "x")
	if len(parts) != 2 {
		return Size{}, fmt.Errorf("无法解析屏幕尺寸: %q", last)
	}
	w, errW := strconv.Atoi(parts[0])
	h, errH := strconv.Atoi(parts[1])
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return Size{}, fmt.Errorf("无法解析屏幕尺寸: %q", last)
	}
	return Size{Width: w, Height: h}, nil
}

// AndroidVersion 读取系统版本号
func (a *ADB) AndroidVersion(ctx context.Context) (string, error) {
	out, err := a.run(ctx, "shell", "getprop", "ro.build.version.release")
	if err != nil {
		return "", fmt.Errorf("读取系统版本失败: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Swipe 执行一次滑动，并等待 max(时长, 1s) 让界面稳定
func (a *ADB) Swipe(ctx context.Context, s Swipe) error {
	_, err := a.run(ctx, "shell", "input", "touchscreen", "swipe",
		strconv.Itoa(s.StartX), strconv.Itoa(s.StartY),
		strconv.Itoa(s.EndX), strconv.Itoa(s.EndY),
		strconv.Itoa(s.DurationMs))
	if err != nil {
		return fmt.Errorf("滑动失败: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.Settle()):
		return nil
	}
}

// DumpUI 导出当前界面的 UI 层级 XML，不经过设备存储
func (a *ADB) DumpUI(ctx context.Context) ([]byte, error) {
	out, err := a.run(ctx, "exec-out", "uiautomator", "dump", "--compressed", "/dev/tty")
	if err != nil {
		return nil, fmt.Errorf("导出 UI XML 失败: %w", err)
	}
	return out, nil
}
