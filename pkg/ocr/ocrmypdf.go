package ocr

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/zoeyai/scrollstitch/internal/logger"
	"github.com/zoeyai/scrollstitch/pkg/cmdutil"
	"github.com/zoeyai/scrollstitch/pkg/pdf"
)

// PDFSuffix 单页识别结果的文件名后缀
const PDFSuffix = "_OCR.pdf"

// PDFRunner 调用 ocrmypdf 生成带文字层的 PDF
// 过高的图像先切分为多页，逐页识别后合并为 <name>_combined_OCR.pdf
type PDFRunner struct {
	Path      string
	OutputDir string
	// Page 页面准备选项，默认灰度
	Page   pdf.Options
	runner cmdutil.Runner
}

// NewPDFRunner 创建 ocrmypdf 调用器，outputDir 为空时输出到图像所在目录
func NewPDFRunner(path, outputDir string) *PDFRunner {
	if path == "" {
		path = "ocrmypdf"
	}
	return &PDFRunner{
		Path:      path,
		OutputDir: outputDir,
		Page:      pdf.Options{Grayscale: true},
		runner:    cmdutil.ExecRunner{},
	}
}

// WithRunner 替换命令执行器
func (r *PDFRunner) WithRunner(runner cmdutil.Runner) *PDFRunner {
	r.runner = runner
	return r
}

// Run 识别一张图像，返回最终 PDF 路径
// 中间产生的页面图像和 PDF 在结束后删除
func (r *PDFRunner) Run(ctx context.Context, imagePath string) (string, error) {
	startTime := time.Now()

	outDir := r.OutputDir
	if outDir == "" {
		outDir = filepath.Dir(imagePath)
	}
	name := pdf.Stem(imagePath)

	pages, err := pdf.Segment(imagePath, outDir, r.Page)
	if err != nil {
		return "", err
	}
	defer pdf.Remove(pages...)
	if len(pages) > 1 {
		logger.Info("图像过大，已切分为 %d 段进行识别", len(pages))
	}

	var results []string
	for _, page := range pages {
		out := strings.TrimSuffix(page, filepath.Ext(page)) + PDFSuffix
		if len(pages) == 1 {
			out = filepath.Join(outDir, name+PDFSuffix)
		}
		if err := r.runPage(ctx, page, out); err != nil {
			pdf.Remove(results...)
			logger.LogEvent("OCR", false, logger.Since(startTime), filepath.Base(imagePath))
			return "", err
		}
		results = append(results, out)
	}

	final := results[0]
	if len(results) > 1 {
		final = filepath.Join(outDir, name+pdf.CombinedSuffix)
		err := pdf.Merge(results, final)
		pdf.Remove(results...)
		if err != nil {
			return "", err
		}
	}

	logger.LogEvent("OCR", true, logger.Since(startTime), final)
	return final, nil
}

// runPage 页面图像 -> 临时 PDF -> ocrmypdf，临时 PDF 随后删除
func (r *PDFRunner) runPage(ctx context.Context, page, out string) error {
	tmp := strings.TrimSuffix(page, filepath.Ext(page)) + ".pdf"
	if err := pdf.FromImages([]string{page}, tmp); err != nil {
		return err
	}
	defer pdf.Remove(tmp)

	args := []string{"--tesseract-downsample-large-images", "--max-image-mpixels", "0", tmp, out}
	if _, err := r.runner.Output(ctx, r.Path, args...); err != nil {
		return fmt.Errorf("ocrmypdf 识别失败: %w", err)
	}
	return nil
}
