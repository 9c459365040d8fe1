// Package roi 选择感兴趣区域并批量裁剪截图
package roi

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-vgo/robotgo"
	"gocv.io/x/gocv"

	"github.com/zoeyai/scrollstitch/internal/logger"
	"github.com/zoeyai/scrollstitch/pkg/vision/cv"
)

// CroppedSuffix 裁剪后文件名后缀，位于扩展名之前
const CroppedSuffix = "_cropped"

// TaskbarBuffer 预览窗口为任务栏和标题栏预留的高度
const TaskbarBuffer = 200

// Rect 区域 (x, y, width, height)
type Rect struct {
	X, Y, Width, Height int
}

// Empty 宽或高为 0
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Image 转换为 image.Rectangle
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d, %d, %d, %d)", r.X, r.Y, r.Width, r.Height)
}

// Selector 从一张图像上选择区域，取消时返回空 Rect
type Selector interface {
	Select(imagePath string) (Rect, error)
}

// Fixed 固定区域，用于非交互场景
type Fixed Rect

// Select 实现 Selector
func (f Fixed) Select(string) (Rect, error) {
	return Rect(f), nil
}

// WindowSelector 弹出 OpenCV 窗口让用户框选
// 图像高于桌面可用高度时按比例缩小显示，结果映射回原图坐标
type WindowSelector struct {
	// ScreenHeight 桌面高度，0 表示通过 robotgo 读取
	ScreenHeight int
}

// Select 实现 Selector
func (s WindowSelector) Select(imagePath string) (Rect, error) {
	img, err := cv.ReadImage(imagePath)
	if err != nil {
		return Rect{}, err
	}
	defer img.Close()

	screenHeight := s.ScreenHeight
	if screenHeight <= 0 {
		_, screenHeight = robotgo.GetScreenSize()
	}
	scale := PreviewScale(img.Rows(), screenHeight-TaskbarBuffer)

	preview := img
	if scale < 1 {
		preview = cv.ResizeImage(img, int(float64(img.Cols())*scale), int(float64(img.Rows())*scale))
		defer preview.Close()
	}

	logger.Info("框选区域后按 SPACE 或 ENTER 确认，按 c 取消")
	window := gocv.NewWindow("Select ROI")
	r := window.SelectROI(preview)
	window.Close()

	rect := ScaleRect(Rect{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()},
		float64(img.Cols())/float64(preview.Cols()))
	if rect.Empty() {
		logger.Warn("未选择有效区域")
		return Rect{}, nil
	}
	logger.Info("已选择区域: %s", rect)
	return rect, nil
}

// PreviewScale 返回使图像高度不超过 available 的缩放比例，只缩小不放大
func PreviewScale(imageHeight, available int) float64 {
	if available <= 0 || imageHeight <= available {
		return 1
	}
	return float64(available) / float64(imageHeight)
}

// ScaleRect 按比例缩放区域，结果向下取整
func ScaleRect(r Rect, factor float64) Rect {
	return Rect{
		X:      int(float64(r.X) * factor),
		Y:      int(float64(r.Y) * factor),
		Width:  int(float64(r.Width) * factor),
		Height: int(float64(r.Height) * factor),
	}
}

// CroppedName 生成裁剪后的文件名：<原文件名>_cropped<扩展名>
func CroppedName(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(filepath.Base(path), ext) + CroppedSuffix + ext
}

// Crop 裁剪单张图像并保存到 outputDir，返回新文件路径
func Crop(imagePath string, rect Rect, outputDir string) (string, error) {
	startTime := time.Now()

	img, err := cv.ReadImage(imagePath)
	if err != nil {
		return "", err
	}
	defer img.Close()

	cropped, err := cv.CropImage(img, rect.Image())
	if err != nil {
		return "", fmt.Errorf("裁剪 %s 失败: %w", imagePath, err)
	}
	defer cropped.Close()

	out := filepath.Join(outputDir, CroppedName(imagePath))
	if err := cv.WriteImage(out, cropped); err != nil {
		return "", err
	}

	logger.LogEvent("CROP", true, logger.Since(startTime), out)
	return out, nil
}

// CropAll 用同一区域裁剪所有图像，outputDir 为空时保存在各自原目录
// 返回与输入顺序一致的新路径
func CropAll(paths []string, rect Rect, outputDir string) ([]string, error) {
	if rect.Empty() {
		return nil, fmt.Errorf("裁剪区域为空")
	}

	out := make([]string, 0, len(paths))
	for _, p := range paths {
		dir := outputDir
		if dir == "" {
			dir = filepath.Dir(p)
		}
		cropped, err := Crop(p, rect, dir)
		if err != nil {
			return out, err
		}
		out = append(out, cropped)
	}
	return out, nil
}
