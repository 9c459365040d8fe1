package session

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/zoeyai/scrollstitch/internal/logger"
	"github.com/zoeyai/scrollstitch/pkg/config"
	"github.com/zoeyai/scrollstitch/pkg/roi"
	"github.com/zoeyai/scrollstitch/pkg/stitch"
)

// TimestampLayout 截图文件名中的时间格式，其后可跟 _毫秒
const TimestampLayout = "2006-01-02_15-04-05"

// PostOptions 后处理选项
type PostOptions struct {
	// Mode none / crop / crop_stitch
	Mode     string
	Selector roi.Selector
	// OutputDir 裁剪图与拼接结果目录，空表示截图所在目录
	OutputDir string
	Stitch    stitch.Options
}

// PostResult 后处理产物
type PostResult struct {
	Cropped []string
	// Stitched 拼接结果，仅 crop_stitch 成功时非 nil
	Stitched *stitch.Result
}

// PostProcess 对采集结果裁剪或裁剪后拼接
// crop_stitch 拼接成功后删除中间的裁剪图，失败时保留
func PostProcess(res *Result, opts PostOptions) (*PostResult, error) {
	out := &PostResult{}
	if opts.Mode == config.PostNone || opts.Mode == "" {
		return out, nil
	}
	if opts.Mode != config.PostCrop && opts.Mode != config.PostCropStitch {
		return nil, fmt.Errorf("无效的后处理方式: %q", opts.Mode)
	}
	if len(res.Paths) == 0 {
		logger.Warn("没有可裁剪的截图")
		return out, nil
	}
	if opts.Selector == nil {
		opts.Selector = roi.WindowSelector{}
	}

	rect, err := opts.Selector.Select(res.Paths[0])
	if err != nil {
		return nil, err
	}
	if rect.Empty() {
		logger.Warn("未选择裁剪区域，跳过后处理")
		return out, nil
	}

	out.Cropped, err = roi.CropAll(res.Paths, rect, opts.OutputDir)
	if err != nil {
		return out, err
	}
	if opts.Mode == config.PostCrop {
		return out, nil
	}

	if opts.Stitch.OutputDir == "" {
		opts.Stitch.OutputDir = opts.OutputDir
		if opts.Stitch.OutputDir == "" {
			opts.Stitch.OutputDir = filepath.Dir(res.Paths[0])
		}
	}
	direction := stitch.ForSwipe(stitch.Direction(res.Direction))
	logger.Info("开始拼接 %d 张裁剪图，方向 %s", len(out.Cropped), direction)

	// 自动滚动的截图已按采集顺序排列，Stitch 只按方向决定是否反转
	out.Stitched, err = stitch.New(opts.Stitch).Stitch(out.Cropped, direction)
	if err != nil {
		return out, err
	}
	logger.Info("拼接结果已保存: %s", out.Stitched.Path)

	removeAll(out.Cropped)
	out.Cropped = nil
	return out, nil
}

// ManualStitch 按文件名中的时间排序后拼接
func ManualStitch(paths []string, direction stitch.Direction, opts stitch.Options) (*stitch.Result, error) {
	sorted := SortByTimestamp(paths)
	logger.Info("%d 张图像待拼接，方向 %s", len(sorted), direction)
	return stitch.New(opts).Stitch(sorted, direction)
}

// ParseTimestamp 从文件名解析采集时间
// 支持 2006-01-02_15-04-05[_毫秒][_cropped].ext
func ParseTimestamp(path string) (time.Time, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name, _, _ = strings.Cut(name, roi.CroppedSuffix)

	if len(name) < len(TimestampLayout) {
		return time.Time{}, fmt.Errorf("文件名不含时间: %s", path)
	}
	t, err := time.ParseInLocation(TimestampLayout, name[:len(TimestampLayout)], time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("文件名不含时间: %s", path)
	}

	rest := name[len(TimestampLayout):]
	if rest == "" {
		return t, nil
	}
	ms, err := strconv.Atoi(strings.TrimPrefix(rest, "_"))
	if !strings.HasPrefix(rest, "_") || err != nil || ms < 0 || ms > 999 {
		return time.Time{}, fmt.Errorf("文件名不含时间: %s", path)
	}
	return t.Add(time.Duration(ms) * time.Millisecond), nil
}

// SortByTimestamp 按文件名中的时间升序排序，返回新切片
// 任一文件名无法解析时保持原顺序
func SortByTimestamp(paths []string) []string {
	type stamped struct {
		path string
		at   time.Time
	}
	items := make([]stamped, 0, len(paths))
	for _, p := range paths {
		t, err := ParseTimestamp(p)
		if err != nil {
			logger.Warn("无法按时间排序: %v，保持原顺序", err)
			return slices.Clone(paths)
		}
		items = append(items, stamped{p, t})
	}

	slices.SortStableFunc(items, func(a, b stamped) int {
		return a.at.Compare(b.at)
	})
	sorted := make([]string, len(items))
	for i, it := range items {
		sorted[i] = it.path
	}
	return sorted
}

func removeAll(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil {
			logger.Warn("删除临时裁剪图 %s 失败: %v", p, err)
			continue
		}
		logger.Debug("已删除临时裁剪图 %s", p)
	}
}
