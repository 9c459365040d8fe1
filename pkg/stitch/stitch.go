// Package stitch 将按顺序排列、上下部分重叠的截图拼接为一张长图
//
// 每张新图用画布已写入内容的最后若干行作为模板，在新图灰度图上做
// 归一化互相关匹配，从匹配位置之后的行开始追加到画布。
package stitch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gocv.io/x/gocv"

	"github.com/zoeyai/scrollstitch/internal/logger"
	"github.com/zoeyai/scrollstitch/pkg/vision/cv"
)

// 默认参数
const (
	DefaultOverlapRows   = 50
	DefaultMinConfidence = 0.5
	OutputSuffix         = "_stitched.png"
	TimestampLayout      = "2006-01-02_15-04-05"
)

// Direction 拼接方向
// DOWN: 序列已按从上到下排列；UP: 序列从下到上，拼接前反转
type Direction string

const (
	Up   Direction = "UP"
	Down Direction = "DOWN"
)

// ParseDirection 解析方向字符串
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Up, Down:
		return Direction(s), nil
	default:
		return "", fmt.Errorf("无效的拼接方向: %q", s)
	}
}

// ForSwipe 根据手指滑动方向得到自动滚动截图的拼接方向
// 手指上滑时内容向下推进，截图顺序即从上到下
func ForSwipe(swipe Direction) Direction {
	if swipe == Down {
		return Up
	}
	return Down
}

// Options 拼接选项
type Options struct {
	// OverlapRows 用作模板的画布尾部行数
	OverlapRows int
	// MinConfidence 最低匹配置信度，低于该值视为对齐失败
	MinConfidence float64
	// OutputDir 输出目录
	OutputDir string
	// Growth 画布扩容策略，默认 Doubling
	Growth GrowthPolicy
	// Now 输出文件名使用的时钟，默认 time.Now
	Now func() time.Time
}

// Result 拼接结果
type Result struct {
	Path   string
	Width  int
	Height int
	// SourceStarts 每张图被追加内容的起始行，第一张为 0
	SourceStarts []int
}

// Stitcher 顺序拼接器，每次调用独占自己的画布，可并发使用
type Stitcher struct {
	opts Options
}

// New 创建拼接器，未设置的选项使用默认值
func New(opts Options) *Stitcher {
	if opts.OverlapRows <= 0 {
		opts.OverlapRows = DefaultOverlapRows
	}
	if opts.MinConfidence == 0 {
		opts.MinConfidence = DefaultMinConfidence
	}
	if opts.Growth == nil {
		opts.Growth = Doubling{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	return &Stitcher{opts: opts}
}

// OutputPath 当前时刻对应的输出文件路径，精确到毫秒
func (s *Stitcher) OutputPath() string {
	now := s.opts.Now()
	name := fmt.Sprintf("%s_%03d%s", now.Format(TimestampLayout), now.Nanosecond()/int(time.Millisecond), OutputSuffix)
	return filepath.Join(s.opts.OutputDir, name)
}

// Stitch 加载并拼接图像，成功时写出且仅写出一个文件
// 任一图像加载失败或对齐失败时不写出任何文件
func (s *Stitcher) Stitch(paths []string, direction Direction) (*Result, error) {
	startTime := time.Now()

	if len(paths) == 0 {
		return nil, &Error{Kind: ImageLoadFailure, Index: -1, Err: fmt.Errorf("没有输入图像")}
	}

	ordered := Order(paths, direction)

	images := make([]gocv.Mat, 0, len(ordered))
	defer func() {
		for _, img := range images {
			img.Close()
		}
	}()
	for i, p := range ordered {
		img, err := cv.ReadImage(p)
		if err != nil {
			logger.LogEvent("STCH", false, logger.Since(startTime), fmt.Sprintf("加载失败 %s", p))
			return nil, &Error{Kind: ImageLoadFailure, Index: i, Path: p, Err: err}
		}
		images = append(images, img)
	}

	composite, starts, err := s.Compose(images)
	if err != nil {
		var se *Error
		if errors.As(err, &se) && se.Index >= 0 && se.Index < len(ordered) {
			se.Path = ordered[se.Index]
		}
		logger.LogEvent("STCH", false, logger.Since(startTime), err.Error())
		return nil, err
	}
	defer composite.Close()

	out := s.OutputPath()
	if _, err := os.Stat(out); err == nil {
		return nil, &Error{Kind: CanvasWriteFailure, Index: -1, Path: out,
			Err: fmt.Errorf("输出文件已存在: %w", os.ErrExist)}
	}
	if err := cv.WriteImage(out, composite); err != nil {
		logger.LogEvent("STCH", false, logger.Since(startTime), err.Error())
		return nil, &Error{Kind: CanvasWriteFailure, Index: -1, Path: out, Err: err}
	}

	result := &Result{
		Path:         out,
		Width:        composite.Cols(),
		Height:       composite.Rows(),
		SourceStarts: starts,
	}
	logger.LogEvent("STCH", true, logger.Since(startTime),
		fmt.Sprintf("%d 张 -> %dx%d %s", len(ordered), result.Width, result.Height, out))
	return result, nil
}

// Compose 在内存中拼接已加载的图像，返回裁剪后的画布和每张图的起始行
// 调用方负责关闭返回的 Mat
func (s *Stitcher) Compose(images []gocv.Mat) (gocv.Mat, []int, error) {
	if len(images) == 0 {
		return gocv.NewMat(), nil, &Error{Kind: ImageLoadFailure, Index: -1, Err: fmt.Errorf("没有输入图像")}
	}

	width := 0
	for _, img := range images {
		if img.Cols() > width {
			width = img.Cols()
		}
	}

	canvas, err := NewCanvas(images[0], width, s.opts.Growth)
	if err != nil {
		return gocv.NewMat(), nil, err
	}
	defer canvas.Close()

	starts := make([]int, len(images))
	for i := 1; i < len(images); i++ {
		start, err := s.align(canvas, images[i])
		if err != nil {
			tagIndex(err, i)
			return gocv.NewMat(), nil, err
		}
		if err := canvas.Append(images[i], start); err != nil {
			tagIndex(err, i)
			return gocv.NewMat(), nil, err
		}
		starts[i] = start
		logger.Debug("第 %d 张: 起始行=%d, 画布=%d/%d 行", i, start, canvas.Written(), canvas.Allocated())
	}

	return canvas.Trimmed(), starts, nil
}

// align 计算 img 中新内容的起始行
func (s *Stitcher) align(canvas *Canvas, img gocv.Mat) (int, error) {
	overlap := min(s.opts.OverlapRows, canvas.Written(), img.Rows())
	if overlap < 1 {
		return 0, &Error{Kind: AlignmentFailure, Err: fmt.Errorf("可用重叠行数为 %d", overlap)}
	}
	// 只比较画布尾部与新图共有的有效列，窄图右侧的填充列不参与匹配
	cols := min(canvas.TailWidth(overlap), img.Cols())

	tail, err := canvas.Tail(overlap, cols)
	if err != nil {
		return 0, err
	}
	defer tail.Close()

	result, err := cv.NewTemplateMatching(tail, img, s.opts.MinConfidence).FindBestResult()
	if err != nil {
		return 0, &Error{Kind: AlignmentFailure, Err: err}
	}
	if result == nil {
		return 0, &Error{Kind: AlignmentFailure,
			Err: fmt.Errorf("匹配置信度低于 %.2f", s.opts.MinConfidence)}
	}

	matchY := result.TopLeft.Y
	if matchY < 0 {
		return 0, &Error{Kind: AlignmentFailure, Err: fmt.Errorf("匹配位置无效: %d", matchY)}
	}

	start := matchY + overlap
	if start > img.Rows() {
		return 0, &Error{Kind: CanvasWriteFailure,
			Err: fmt.Errorf("起始行 %d 超出图像高度 %d", start, img.Rows())}
	}
	return start, nil
}

func tagIndex(err error, index int) {
	var se *Error
	if errors.As(err, &se) {
		se.Index = index
	}
}

// Order 按方向调整顺序，返回新切片
func Order(paths []string, direction Direction) []string {
	ordered := make([]string, len(paths))
	copy(ordered, paths)
	if direction == Up {
		for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		}
	}
	return ordered
}
