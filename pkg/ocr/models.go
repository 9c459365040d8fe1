package ocr

import (
	"os"
	"path/filepath"
	"runtime"
)

// ModelConfig PaddleOCR 模型与运行库路径
type ModelConfig struct {
	// OnnxRuntimeLibPath ONNX Runtime 动态库路径
	OnnxRuntimeLibPath string
	// DetModelPath 检测模型路径
	DetModelPath string
	// RecModelPath 识别模型路径
	RecModelPath string
	// DictPath 字典文件路径
	DictPath string
}

// DefaultModelConfig 在可执行文件目录和当前目录下查找模型
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		OnnxRuntimeLibPath: getDefaultOnnxRuntimePath(),
		DetModelPath:       getDefaultModelPath("det.onnx"),
		RecModelPath:       getDefaultModelPath("rec.onnx"),
		DictPath:           getDefaultModelPath("dict.txt"),
	}
}

// Missing 返回不存在的文件
func (c ModelConfig) Missing() []string {
	var missing []string
	for _, p := range []string{c.OnnxRuntimeLibPath, c.DetModelPath, c.RecModelPath, c.DictPath} {
		if !fileExists(p) {
			missing = append(missing, p)
		}
	}
	return missing
}

// IsAvailable 检查默认模型文件是否齐全
func IsAvailable() bool {
	return len(DefaultModelConfig().Missing()) == 0
}

// getExecutableDir 获取可执行文件所在目录
func getExecutableDir() string {
	execPath, err := os.Executable()
	if err != nil {
		return "."
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return "."
	}
	return filepath.Dir(execPath)
}

// getDefaultOnnxRuntimePath 按操作系统查找 ONNX Runtime 库
func getDefaultOnnxRuntimePath() string {
	execDir := getExecutableDir()

	var paths []string
	switch runtime.GOOS {
	case "darwin":
		paths = []string{
			filepath.Join(execDir, "libonnxruntime.dylib"),
			filepath.Join(execDir, "models", "lib", "onnxruntime_"+runtime.GOARCH+".dylib"),
			filepath.Join("models", "lib", "onnxruntime_"+runtime.GOARCH+".dylib"),
		}
	case "windows":
		paths = []string{
			filepath.Join(execDir, "onnxruntime.dll"),
			filepath.Join("models", "lib", "onnxruntime.dll"),
			"onnxruntime.dll",
		}
	default:
		paths = []string{
			filepath.Join(execDir, "libonnxruntime.so"),
			filepath.Join(execDir, "models", "lib", "onnxruntime_"+runtime.GOARCH+".so"),
			filepath.Join("models", "lib", "onnxruntime_"+runtime.GOARCH+".so"),
		}
	}

	for _, p := range paths {
		if fileExists(p) {
			return p
		}
	}
	return paths[len(paths)-1]
}

// getDefaultModelPath 获取默认的模型路径
func getDefaultModelPath(filename string) string {
	paths := []string{
		filepath.Join(getExecutableDir(), "models", "paddle_weights", filename),
		filepath.Join("models", "paddle_weights", filename),
	}

	for _, p := range paths {
		if fileExists(p) {
			return p
		}
	}
	return paths[0]
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
