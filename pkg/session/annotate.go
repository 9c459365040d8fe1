package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zoeyai/scrollstitch/internal/logger"
	"github.com/zoeyai/scrollstitch/pkg/config"
	"github.com/zoeyai/scrollstitch/pkg/ocr"
	"github.com/zoeyai/scrollstitch/pkg/uidump"
)

// 界面导出文件后缀
const (
	ScreenDumpXMLSuffix  = "_screendump.xml"
	ScreenDumpTextSuffix = "_screendump.txt"
)

// Annotator 对刚保存的截图做附加处理（OCR、界面文字导出）
type Annotator interface {
	Annotate(ctx context.Context, imagePath string) error
}

// AnnotatorFunc 函数形式的 Annotator
type AnnotatorFunc func(ctx context.Context, imagePath string) error

// Annotate 实现 Annotator
func (f AnnotatorFunc) Annotate(ctx context.Context, imagePath string) error {
	return f(ctx, imagePath)
}

// NewAnnotator 按 OCR 方式创建处理器，disabled 时返回 nil
// 返回的 close 函数释放模型等资源，总是非 nil
func NewAnnotator(settings *config.Settings, dev Device) (Annotator, func(), error) {
	noop := func() {}

	switch settings.OCRMode {
	case config.OCRDisabled, "":
		return nil, noop, nil

	case config.OCRMyPDF:
		runner := ocr.NewPDFRunner(settings.OCRMyPDFPath, "")
		return AnnotatorFunc(func(ctx context.Context, path string) error {
			_, err := runner.Run(ctx, path)
			return err
		}), noop, nil

	case config.OCRPaddle:
		rec, err := ocr.NewTextRecognizer(ocr.DefaultModelConfig())
		if err != nil {
			return nil, noop, err
		}
		return AnnotatorFunc(func(_ context.Context, path string) error {
			_, err := ocr.WriteText(rec, path, "")
			return err
		}), func() { rec.Close() }, nil

	case config.OCRUIDump:
		return &screenDumper{dev: dev}, noop, nil

	default:
		return nil, noop, fmt.Errorf("无效的 OCR 方式: %q", settings.OCRMode)
	}
}

// screenDumper 导出界面 XML 并提取其中的文字，文字写出后删除 XML
type screenDumper struct {
	dev Device
}

func (d *screenDumper) Annotate(ctx context.Context, imagePath string) error {
	data, err := d.dev.DumpUI(ctx)
	if err != nil {
		return err
	}

	base := strings.TrimSuffix(imagePath, filepath.Ext(imagePath))
	if err := os.WriteFile(base+ScreenDumpXMLSuffix, data, 0644); err != nil {
		return fmt.Errorf("保存 UI XML 失败: %w", err)
	}

	// 提取失败时保留 XML 供排查
	texts, err := uidump.ExtractText(data)
	if err != nil {
		return err
	}
	if err := uidump.WriteText(base+ScreenDumpTextSuffix, texts); err != nil {
		return err
	}
	if err := os.Remove(base + ScreenDumpXMLSuffix); err != nil {
		logger.Warn("删除 UI XML 失败: %v", err)
	}
	return nil
}
