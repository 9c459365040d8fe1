// Package ocr 对截图做文字识别
//
// 两种方式:
//
//	// 调用 ocrmypdf 生成可搜索的 PDF
//	r := ocr.NewPDFRunner("ocrmypdf", outputDir)
//	pdfPath, err := r.Run(ctx, "2024-05-01_12-00-00.png")
//
//	// 使用本地 PaddleOCR 模型输出纯文本
//	rec, err := ocr.NewTextRecognizer(ocr.DefaultModelConfig())
//	txtPath, err := ocr.WriteText(rec, "2024-05-01_12-00-00.png", outputDir)
package ocr

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/zoeyai/scrollstitch/internal/logger"
)

// TextSuffix 文本结果文件名后缀
const TextSuffix = "_ocr.txt"

// Line 一行识别结果
type Line struct {
	Text       string          `json:"text"`
	Confidence float64         `json:"confidence"`
	Box        image.Rectangle `json:"box"`
}

// Recognizer 从图像中识别文字行
type Recognizer interface {
	Recognize(img image.Image) ([]Line, error)
}

// SortLines 按从上到下、从左到右排序
func SortLines(lines []Line) {
	slices.SortStableFunc(lines, func(a, b Line) int {
		if a.Box.Min.Y != b.Box.Min.Y {
			return a.Box.Min.Y - b.Box.Min.Y
		}
		return a.Box.Min.X - b.Box.Min.X
	})
}

// WriteText 识别 imagePath 并把文字逐行写到 outputDir/<name>_ocr.txt
func WriteText(r Recognizer, imagePath, outputDir string) (string, error) {
	img, err := loadImageFromFile(imagePath)
	if err != nil {
		return "", err
	}

	lines, err := r.Recognize(img)
	if err != nil {
		return "", err
	}
	SortLines(lines)

	var b strings.Builder
	for _, l := range lines {
		if strings.TrimSpace(l.Text) == "" {
			continue
		}
		b.WriteString(l.Text)
		b.WriteByte('\n')
	}

	if outputDir == "" {
		outputDir = filepath.Dir(imagePath)
	}
	out := filepath.Join(outputDir, stem(imagePath)+TextSuffix)
	if err := os.WriteFile(out, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("写入识别结果失败: %w", err)
	}
	logger.Info("识别文字已保存: %s", out)
	return out, nil
}

func stem(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// loadImageFromFile 从文件加载图像
func loadImageFromFile(filename string) (image.Image, error) {
	file, err := os.Open(filename)
	if err != nil {
		logger.Error("打开图像文件失败: %s, %v", filename, err)
		return nil, fmt.Errorf("打开图像文件失败: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		logger.Error("解码图像失败: %s, %v", filename, err)
		return nil, fmt.Errorf("解码图像失败: %w", err)
	}

	return img, nil
}
