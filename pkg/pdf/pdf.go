// Package pdf 把长截图切分为 PDF 可容纳的页面，并生成、合并 PDF 文件
package pdf

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"gocv.io/x/gocv"
	"golang.org/x/image/draw"

	"github.com/zoeyai/scrollstitch/internal/logger"
	"github.com/zoeyai/scrollstitch/pkg/vision/cv"
)

// MaxPageDimension PDF 单页允许的最大宽高（像素）
const MaxPageDimension = 14400

// CombinedSuffix 合并后 PDF 的文件名后缀
const CombinedSuffix = "_combined_OCR.pdf"

// Options 页面准备选项
type Options struct {
	// Grayscale 转为灰度以提高对比度
	Grayscale bool
	// MaxDimension 单页最大宽高，0 表示 MaxPageDimension
	MaxDimension int
}

func (o Options) limit() int {
	if o.MaxDimension <= 0 {
		return MaxPageDimension
	}
	return o.MaxDimension
}

// Stem 去掉目录和扩展名的文件名
func Stem(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// SegmentName 第 i 段页面图像的文件名
func SegmentName(stem string, i int) string {
	return fmt.Sprintf("%s_segment_%d.png", stem, i)
}

// NeedsSplit 图像高度超过单页上限时需要切分
func NeedsSplit(height int, opts Options) bool {
	return height > opts.limit()
}

// Segment 把图像按行切分为不超过单页上限的 PNG 页面，写到 outputDir
// 超宽的页面按比例缩小到上限宽度
func Segment(imagePath, outputDir string, opts Options) ([]string, error) {
	startTime := time.Now()

	img, err := cv.ReadImage(imagePath)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	src := img
	if opts.Grayscale {
		src = cv.ToGray(img)
		defer src.Close()
	}

	limit := opts.limit()
	stem := Stem(imagePath)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("创建目录失败: %w", err)
	}

	var paths []string
	for i, top := 0, 0; top < src.Rows(); i, top = i+1, top+limit {
		bottom := min(top+limit, src.Rows())
		band, err := cv.CropImage(src, image.Rect(0, top, src.Cols(), bottom))
		if err != nil {
			Remove(paths...)
			return nil, err
		}
		out := filepath.Join(outputDir, SegmentName(stem, i))
		err = writeBand(out, band, limit)
		band.Close()
		if err != nil {
			Remove(paths...)
			return nil, err
		}
		paths = append(paths, out)
	}

	logger.LogEvent("PDF", true, logger.Since(startTime),
		fmt.Sprintf("%s 切分为 %d 页", filepath.Base(imagePath), len(paths)))
	return paths, nil
}

func writeBand(path string, band gocv.Mat, limit int) error {
	img, err := cv.MatToImage(band)
	if err != nil {
		return err
	}
	img = FitWidth(img, limit)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建页面文件失败: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("编码页面失败: %w", err)
	}
	return f.Close()
}

// FitWidth 宽度超过 maxWidth 时等比缩小，否则原样返回
func FitWidth(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxWidth {
		return img
	}
	height := max(1, b.Dy()*maxWidth/b.Dx())
	rect := image.Rect(0, 0, maxWidth, height)

	var dst draw.Image
	if _, ok := img.(*image.Gray); ok {
		dst = image.NewGray(rect)
	} else {
		dst = image.NewRGBA(rect)
	}
	draw.CatmullRom.Scale(dst, rect, img, b, draw.Src, nil)
	return dst
}

// FromImages 每张图像一页生成 PDF
func FromImages(imagePaths []string, outFile string) error {
	if len(imagePaths) == 0 {
		return fmt.Errorf("没有输入图像")
	}
	conf := model.NewDefaultConfiguration()
	if err := api.ImportImagesFile(imagePaths, outFile, pdfcpu.DefaultImportConfig(), conf); err != nil {
		return fmt.Errorf("生成 PDF 失败: %w", err)
	}
	return nil
}

// Merge 按顺序合并多个 PDF
func Merge(inFiles []string, outFile string) error {
	startTime := time.Now()
	if len(inFiles) == 0 {
		return fmt.Errorf("没有待合并的 PDF")
	}
	conf := model.NewDefaultConfiguration()
	if err := api.MergeCreateFile(inFiles, outFile, false, conf); err != nil {
		logger.LogEvent("PDF", false, logger.Since(startTime), "合并失败")
		return fmt.Errorf("合并 PDF 失败: %w", err)
	}
	logger.LogEvent("PDF", true, logger.Since(startTime),
		fmt.Sprintf("合并 %d 个文件 -> %s", len(inFiles), outFile))
	return nil
}

// PageCount 读取 PDF 页数
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("读取 PDF 失败: %w", err)
	}
	return n, nil
}

// Remove 删除临时文件，失败只记录日志
func Remove(paths ...string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			logger.Warn("删除文件 %s 失败: %v", p, err)
			continue
		}
		logger.Debug("已删除 %s", p)
	}
}
