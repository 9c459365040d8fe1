// Package dedup 通过感知哈希判断相邻两次截图是否相同，用于结束自动滚动
package dedup

import (
	"fmt"
	"image"
	"time"

	"github.com/corona10/goimagehash"

	"github.com/zoeyai/scrollstitch/internal/logger"
)

// DefaultThreshold 默认相似阈值（汉明距离小于该值视为重复）
const DefaultThreshold = 5

// Frame 一次截图及其采集序号
type Frame struct {
	Image image.Image
	Index int
}

// Fingerprint 64 位差值哈希 (dHash)
type Fingerprint struct {
	hash *goimagehash.ImageHash
}

// Compute 计算图像的指纹
func Compute(img image.Image) (*Fingerprint, error) {
	if img == nil {
		return nil, fmt.Errorf("图像为空")
	}
	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return nil, fmt.Errorf("计算差值哈希失败: %w", err)
	}
	return &Fingerprint{hash: hash}, nil
}

// Distance 与另一个指纹的汉明距离
func (f *Fingerprint) Distance(other *Fingerprint) (int, error) {
	return f.hash.Distance(other.hash)
}

func (f *Fingerprint) String() string {
	return f.hash.ToString()
}

// Detector 重复截图检测器，无内部状态，上一次指纹由调用方保存
type Detector struct {
	Threshold int
}

// NewDetector 创建检测器，threshold <= 0 时使用默认值
func NewDetector(threshold int) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Detector{Threshold: threshold}
}

// IsDuplicate 判断当前帧是否与上一帧重复
// 重复时返回 (true, nil)；否则返回 (false, 当前帧指纹) 供下次调用
// previous 为 nil（第一次调用）时永远不是重复
func (d *Detector) IsDuplicate(current Frame, previous *Fingerprint) (bool, *Fingerprint) {
	startTime := time.Now()

	fp, err := Compute(current.Image)
	if err != nil {
		logger.Warn("第 %d 帧无法计算指纹: %v", current.Index, err)
		return false, nil
	}

	if previous == nil {
		logger.LogEvent("DUP", true, logger.Since(startTime), fmt.Sprintf("#%d 首帧 %s", current.Index, fp))
		return false, fp
	}

	dist, err := previous.Distance(fp)
	if err != nil {
		logger.Warn("第 %d 帧指纹比较失败: %v", current.Index, err)
		return false, fp
	}

	if dist < d.Threshold {
		logger.LogEvent("DUP", true, logger.Since(startTime), fmt.Sprintf("#%d 重复 距离=%d", current.Index, dist))
		return true, nil
	}

	logger.LogEvent("DUP", true, logger.Since(startTime), fmt.Sprintf("#%d 距离=%d", current.Index, dist))
	return false, fp
}
