// Package config 管理采集、拼接与 OCR 的本地配置
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// 后处理方式
const (
	PostNone       = "none"
	PostCrop       = "crop"
	PostCropStitch = "crop_stitch"
)

// OCR 方式
const (
	OCRDisabled = "disabled"
	OCRMyPDF    = "ocrmypdf"
	OCRPaddle   = "paddle"
	OCRUIDump   = "uidump"
)

// 取值范围
const (
	MinSwipeDurationMs = 1
	MaxSwipeDurationMs = 499
	MinSwipeCount      = 2
	MaxSwipeCount      = 100
	MaxSwipeDelay      = 2.0
)

// Settings 配置项
type Settings struct {
	ADBPath      string `json:"adb_path"`
	ScrcpyPath   string `json:"scrcpy_path"`
	OCRMyPDFPath string `json:"ocrmypdf_path"`
	OutputDir    string `json:"output_dir"`

	// SwipeDirection 手指滑动方向 UP / DOWN
	SwipeDirection  string  `json:"swipe_direction"`
	SwipeDurationMs int     `json:"swipe_duration_ms"`
	SwipeCount      int     `json:"swipe_count"` // 0 表示无限，直到检测到重复
	SwipeDelay      float64 `json:"swipe_delay"` // 秒
	PostProcessing  string  `json:"post_processing"`
	OCRMode         string  `json:"ocr_mode"`

	OverlapRows   int     `json:"overlap_rows"`
	HashThreshold int     `json:"hash_threshold"`
	MinConfidence float64 `json:"min_confidence"`

	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`
}

// DefaultSettings 默认配置
func DefaultSettings() *Settings {
	return &Settings{
		ADBPath:         "adb",
		ScrcpyPath:      "scrcpy",
		OCRMyPDFPath:    "ocrmypdf",
		OutputDir:       "AndroidScreenOutput",
		SwipeDirection:  "UP",
		SwipeDurationMs: 125,
		SwipeCount:      0,
		SwipeDelay:      1.0,
		PostProcessing:  PostNone,
		OCRMode:         OCRDisabled,
		OverlapRows:     50,
		HashThreshold:   5,
		MinConfidence:   0.5,
		LogLevel:        "INFO",
	}
}

// Validate 校验配置，非法值返回错误
func (s *Settings) Validate() error {
	switch s.SwipeDirection {
	case "UP", "DOWN":
	default:
		return fmt.Errorf("无效的滑动方向: %q", s.SwipeDirection)
	}
	if s.SwipeDurationMs < MinSwipeDurationMs || s.SwipeDurationMs > MaxSwipeDurationMs {
		return fmt.Errorf("滑动时长超出范围 [%d, %d]: %d", MinSwipeDurationMs, MaxSwipeDurationMs, s.SwipeDurationMs)
	}
	if s.SwipeCount != 0 && (s.SwipeCount < MinSwipeCount || s.SwipeCount > MaxSwipeCount) {
		return fmt.Errorf("滑动次数应为 0(无限) 或 [%d, %d]: %d", MinSwipeCount, MaxSwipeCount, s.SwipeCount)
	}
	if s.SwipeDelay < 0 || s.SwipeDelay > MaxSwipeDelay {
		return fmt.Errorf("滑动间隔超出范围 [0, %.1f]: %.2f", MaxSwipeDelay, s.SwipeDelay)
	}
	switch s.PostProcessing {
	case PostNone, PostCrop, PostCropStitch:
	default:
		return fmt.Errorf("无效的后处理方式: %q", s.PostProcessing)
	}
	switch s.OCRMode {
	case OCRDisabled, OCRMyPDF, OCRPaddle, OCRUIDump:
	default:
		return fmt.Errorf("无效的 OCR 方式: %q", s.OCRMode)
	}
	if s.OverlapRows < 1 {
		return fmt.Errorf("重叠行数必须大于 0: %d", s.OverlapRows)
	}
	if s.HashThreshold < 1 || s.HashThreshold > 64 {
		return fmt.Errorf("哈希阈值超出范围 [1, 64]: %d", s.HashThreshold)
	}
	if s.MinConfidence < -1 || s.MinConfidence > 1 {
		return fmt.Errorf("最小置信度超出范围 [-1, 1]: %.2f", s.MinConfidence)
	}
	if s.OutputDir == "" {
		return fmt.Errorf("输出目录不能为空")
	}
	return nil
}

// Manager 配置管理器
type Manager struct {
	configDir  string
	configFile string
	mu         sync.RWMutex
}

// NewManager 创建位于用户目录下的配置管理器
func NewManager() *Manager {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return NewManagerWithDir(filepath.Join(homeDir, ".scrollstitch"))
}

// NewManagerWithDir 使用指定目录创建配置管理器
func NewManagerWithDir(configDir string) *Manager {
	return &Manager{
		configDir:  configDir,
		configFile: filepath.Join(configDir, "config.json"),
	}
}

// Load 加载配置，文件不存在时返回默认配置
// 文件中缺失的字段保留默认值
func (m *Manager) Load() (*Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := os.ReadFile(m.configFile)
	if os.IsNotExist(err) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return DefaultSettings(), fmt.Errorf("读取配置文件失败: %w", err)
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, settings); err != nil {
		return DefaultSettings(), fmt.Errorf("解析配置文件失败: %w", err)
	}
	return settings, nil
}

// Save 校验并保存配置
func (m *Manager) Save(settings *Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.configDir, 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(m.configFile, data, 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}

// Clear 删除配置文件
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := os.Remove(m.configFile)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// GetConfigFile 获取配置文件路径
func (m *Manager) GetConfigFile() string {
	return m.configFile
}

// Exists 检查配置文件是否存在
func (m *Manager) Exists() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, err := os.Stat(m.configFile)
	return err == nil
}

var defaultManager = NewManager()

// GetDefaultManager 获取默认配置管理器
func GetDefaultManager() *Manager {
	return defaultManager
}

// Load 使用默认管理器加载配置
func Load() (*Settings, error) {
	return defaultManager.Load()
}

// Save 使用默认管理器保存配置
func Save(settings *Settings) error {
	return defaultManager.Save(settings)
}

// Clear 使用默认管理器清除配置
func Clear() error {
	return defaultManager.Clear()
}
