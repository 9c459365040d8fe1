// Package session 驱动自动滚动截图：截图、去重、滑动，结束后交给后处理
package session

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/zoeyai/scrollstitch/internal/logger"
	"github.com/zoeyai/scrollstitch/pkg/dedup"
	"github.com/zoeyai/scrollstitch/pkg/device"
)

// Device 采集用到的设备操作，*device.ADB 实现了它
type Device interface {
	Screenshot(ctx context.Context) ([]byte, error)
	ScreenSize(ctx context.Context) (device.Size, error)
	Swipe(ctx context.Context, s device.Swipe) error
	DumpUI(ctx context.Context) ([]byte, error)
}

// StopReason 采集结束原因
type StopReason string

const (
	StopDuplicate StopReason = "duplicate" // 相邻两次截图相同，已到底
	StopCount     StopReason = "count"     // 达到设定次数
	StopError     StopReason = "error"
	StopCancelled StopReason = "cancelled"
)

// Result 一次采集的结果，按采集顺序保存截图路径
type Result struct {
	Paths     []string
	Direction device.Direction
	Count     int
	Stop      StopReason
	Err       error
}

// EventKind 进度事件类型
type EventKind string

const (
	EventCaptured EventKind = "captured"
	EventSwiped   EventKind = "swiped"
	EventDone     EventKind = "done"
)

// Event 进度事件，EventDone 是最后一个事件且只发送一次
type Event struct {
	Kind   EventKind
	Index  int
	Path   string
	Result *Result
}

// Options 采集选项
type Options struct {
	OutputDir  string
	Direction  device.Direction
	DurationMs int
	// Count 截图次数，0 表示一直滚动到检测到重复
	Count int
	// Delay 每次滑动后的额外等待
	Delay         time.Duration
	HashThreshold int
	// Annotator 每张截图保存后调用，可为 nil
	Annotator Annotator
	// Now 截图文件名使用的时钟，默认 time.Now
	Now func() time.Time
}

// Runner 采集循环
type Runner struct {
	dev      Device
	opts     Options
	detector *dedup.Detector
}

// NewRunner 创建采集循环
func NewRunner(dev Device, opts Options) *Runner {
	if opts.Direction == "" {
		opts.Direction = device.Up
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{dev: dev, opts: opts, detector: dedup.NewDetector(opts.HashThreshold)}
}

// FileName 截图文件名，精确到毫秒
func FileName(t time.Time) string {
	return fmt.Sprintf("%s_%03d.png", t.Format(TimestampLayout), t.Nanosecond()/int(time.Millisecond))
}

// Start 在后台运行采集，返回进度事件通道
// 通道最后收到一个 EventDone 后关闭。ctx 取消后调用方若不再读取，
// 缓冲已满时完成事件被丢弃，通道照常关闭
func (r *Runner) Start(ctx context.Context) <-chan Event {
	events := make(chan Event, 16)
	go func() {
		defer close(events)
		result := r.run(ctx, events)
		done := Event{Kind: EventDone, Index: result.Count, Result: result}

		select {
		case events <- done:
			return
		default:
		}
		select {
		case events <- done:
		case <-ctx.Done():
			logger.Warn("事件无人读取，丢弃完成事件 (%s)", result.Stop)
		}
	}()
	return events
}

// Run 同步运行采集
func (r *Runner) Run(ctx context.Context) *Result {
	return r.run(ctx, nil)
}

func (r *Runner) run(ctx context.Context, events chan<- Event) *Result {
	startTime := time.Now()
	result := &Result{Direction: r.opts.Direction}

	emit := func(e Event) {
		if events == nil {
			return
		}
		select {
		case events <- e:
		case <-ctx.Done():
		}
	}
	finish := func(reason StopReason, err error) *Result {
		result.Stop = reason
		result.Err = err
		logger.LogEvent("CAP", err == nil, logger.Since(startTime),
			fmt.Sprintf("共 %d 张, 结束原因: %s", result.Count, reason))
		return result
	}

	if err := os.MkdirAll(r.opts.OutputDir, 0755); err != nil {
		return finish(StopError, fmt.Errorf("创建输出目录失败: %w", err))
	}

	size, err := r.dev.ScreenSize(ctx)
	if err != nil {
		logger.Warn("%v, 使用 %dx%d", err, size.Width, size.Height)
	}
	swipe, err := device.NewSwipe(size, r.opts.Direction, r.opts.DurationMs)
	if err != nil {
		return finish(StopError, err)
	}

	var previous *dedup.Fingerprint
	for r.opts.Count == 0 || result.Count < r.opts.Count {
		if ctx.Err() != nil {
			return finish(StopCancelled, ctx.Err())
		}

		path, img, err := r.capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return finish(StopCancelled, ctx.Err())
			}
			return finish(StopError, err)
		}

		duplicate, fp := r.detector.IsDuplicate(dedup.Frame{Image: img, Index: result.Count}, previous)
		if duplicate {
			logger.Info("检测到重复截图，停止滚动")
			if err := os.Remove(path); err != nil {
				logger.Warn("删除重复截图失败: %v", err)
			}
			return finish(StopDuplicate, nil)
		}
		previous = fp

		result.Paths = append(result.Paths, path)
		result.Count++
		logger.Info("第 %d 张截图: %s", result.Count, filepath.Base(path))
		emit(Event{Kind: EventCaptured, Index: result.Count, Path: path})

		if r.opts.Annotator != nil {
			if err := r.opts.Annotator.Annotate(ctx, path); err != nil {
				logger.Warn("处理截图 %s 失败: %v", filepath.Base(path), err)
			}
		}

		if r.opts.Count != 0 && result.Count >= r.opts.Count {
			break
		}
		if err := r.dev.Swipe(ctx, swipe); err != nil {
			if ctx.Err() != nil {
				return finish(StopCancelled, ctx.Err())
			}
			return finish(StopError, err)
		}
		emit(Event{Kind: EventSwiped, Index: result.Count})

		if err := sleep(ctx, r.opts.Delay); err != nil {
			return finish(StopCancelled, err)
		}
	}
	return finish(StopCount, nil)
}

// capture 截图、落盘并解码
func (r *Runner) capture(ctx context.Context) (string, image.Image, error) {
	data, err := r.dev.Screenshot(ctx)
	if err != nil {
		return "", nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("解码截图失败: %w", err)
	}

	path := filepath.Join(r.opts.OutputDir, FileName(r.opts.Now()))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", nil, fmt.Errorf("保存截图失败: %w", err)
	}
	return path, img, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
