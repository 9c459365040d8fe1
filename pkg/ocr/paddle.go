package ocr

import (
	"fmt"
	"image"
	"sync"
	"time"

	goocr "github.com/getcharzp/go-ocr"

	"github.com/zoeyai/scrollstitch/internal/logger"
)

// TextRecognizer 基于 PaddleOCR ONNX 模型的识别器，可并发调用
type TextRecognizer struct {
	engine goocr.Engine
	config ModelConfig
	mu     sync.Mutex
}

// NewTextRecognizer 加载模型并创建识别器
func NewTextRecognizer(config ModelConfig) (*TextRecognizer, error) {
	if missing := config.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("OCR 模型文件不存在: %v", missing)
	}

	engine, err := goocr.NewPaddleOcrEngine(goocr.Config{
		OnnxRuntimeLibPath: config.OnnxRuntimeLibPath,
		DetModelPath:       config.DetModelPath,
		RecModelPath:       config.RecModelPath,
		DictPath:           config.DictPath,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 OCR 引擎失败: %w", err)
	}

	logger.Info("OCR 引擎初始化成功")
	return &TextRecognizer{engine: engine, config: config}, nil
}

// Recognize 实现 Recognizer
func (r *TextRecognizer) Recognize(img image.Image) ([]Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.engine == nil {
		return nil, fmt.Errorf("OCR 引擎已关闭")
	}

	startTime := time.Now()
	results, err := r.engine.RunOCR(img)
	if err != nil {
		logger.LogEvent("OCR", false, logger.Since(startTime), "识别失败")
		return nil, fmt.Errorf("OCR 识别失败: %w", err)
	}

	lines := make([]Line, 0, len(results))
	for _, result := range results {
		lines = append(lines, convertResult(result))
	}

	logger.LogEvent("OCR", true, logger.Since(startTime), fmt.Sprintf("识别到 %d 个文本", len(lines)))
	return lines, nil
}

// Close 释放资源
func (r *TextRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.engine != nil {
		r.engine.Destroy()
		r.engine = nil
	}
	return nil
}

// convertResult go-ocr RecResult: Box [4]int{x1, y1, x2, y2}
func convertResult(result goocr.RecResult) Line {
	box := result.Box
	return Line{
		Text:       result.Text,
		Confidence: float64(result.Score),
		Box:        image.Rect(box[0], box[1], box[2], box[3]),
	}
}
