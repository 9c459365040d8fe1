package cv

import (
	"errors"
	"image"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"
)

// noiseImage 生成确定性的随机噪声图像
func noiseImage(w, h int, seed int64) *image.RGBA {
	r := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(r.Intn(256)), uint8(r.Intn(256)), uint8(r.Intn(256)), 255})
		}
	}
	return img
}

func mustMat(t *testing.T, img image.Image) gocv.Mat {
	t.Helper()
	mat, err := ImageToMat(img)
	if err != nil {
		t.Fatalf("转换图像失败: %v", err)
	}
	return mat
}

func TestTemplateMatchingFindsRow(t *testing.T) {
	source := mustMat(t, noiseImage(60, 200, 1))
	defer source.Close()

	search, err := CropImage(source, image.Rect(0, 120, 60, 150))
	if err != nil {
		t.Fatalf("裁剪失败: %v", err)
	}
	defer search.Close()

	result, err := NewTemplateMatching(search, source, 0.9).FindBestResult()
	if err != nil {
		t.Fatalf("模板匹配失败: %v", err)
	}
	if result == nil {
		t.Fatal("应找到匹配")
	}
	if result.TopLeft.Y != 120 || result.TopLeft.X != 0 {
		t.Errorf("匹配位置应为 (0,120), 实际 (%d,%d)", result.TopLeft.X, result.TopLeft.Y)
	}
	if result.Confidence < 0.99 {
		t.Errorf("完全相同区域的置信度应接近 1, 实际 %.4f", result.Confidence)
	}
}

func TestTemplateMatchingBelowThreshold(t *testing.T) {
	source := mustMat(t, noiseImage(40, 100, 2))
	defer source.Close()
	search := mustMat(t, noiseImage(40, 20, 3))
	defer search.Close()

	result, err := NewTemplateMatching(search, source, 0.9).FindBestResult()
	if err != nil {
		t.Fatalf("不应报错: %v", err)
	}
	if result != nil {
		t.Errorf("无关图像不应达到阈值, 置信度 %.4f", result.Confidence)
	}
}

func TestTemplateMatchingUniform(t *testing.T) {
	source := gocv.Zeros(100, 40, gocv.MatTypeCV8UC3)
	defer source.Close()
	search := mustMat(t, noiseImage(40, 20, 4))
	defer search.Close()

	_, err := NewTemplateMatching(search, source, 0.5).FindBestResult()
	var uniformErr *UniformImageError
	if !errors.As(err, &uniformErr) {
		t.Fatalf("纯色源图像应返回 UniformImageError, 实际 %v", err)
	}
	if uniformErr.Which != "source" {
		t.Errorf("Which 应为 source, 实际 %s", uniformErr.Which)
	}
}

func TestTemplateMatchingSizeError(t *testing.T) {
	source := mustMat(t, noiseImage(20, 20, 5))
	defer source.Close()
	search := mustMat(t, noiseImage(30, 10, 6))
	defer search.Close()

	_, err := NewTemplateMatching(search, source, 0.5).FindBestResult()
	var sizeErr *ImageSizeError
	if !errors.As(err, &sizeErr) {
		t.Fatalf("应返回 ImageSizeError, 实际 %v", err)
	}
}

func TestWriteAndReadImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "frame.png")

	mat := mustMat(t, noiseImage(16, 12, 7))
	defer mat.Close()

	if err := WriteImage(path, mat); err != nil {
		t.Fatalf("保存失败: %v", err)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("目录中应只有一个文件, 实际 %d", len(entries))
	}

	loaded, err := ReadImage(path)
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	defer loaded.Close()

	if w, h := GetResolution(loaded); w != 16 || h != 12 {
		t.Errorf("分辨率应为 16x12, 实际 %dx%d", w, h)
	}
	if loaded.Channels() != 3 {
		t.Errorf("应为三通道, 实际 %d", loaded.Channels())
	}
}

func TestReadImageErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := ReadImage(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("读取不存在的文件应报错")
	}

	corrupt := filepath.Join(dir, "corrupt.png")
	if err := os.WriteFile(corrupt, []byte("not an image"), 0644); err != nil {
		t.Fatalf("创建测试文件失败: %v", err)
	}
	if _, err := ReadImage(corrupt); err == nil {
		t.Error("读取损坏的文件应报错")
	}

	if _, err := DecodeImage(nil); err == nil {
		t.Error("解码空数据应报错")
	}
}

func TestCropImageClamps(t *testing.T) {
	mat := mustMat(t, noiseImage(50, 40, 8))
	defer mat.Close()

	cropped, err := CropImage(mat, image.Rect(30, 30, 80, 90))
	if err != nil {
		t.Fatalf("裁剪失败: %v", err)
	}
	defer cropped.Close()

	if w, h := GetResolution(cropped); w != 20 || h != 10 {
		t.Errorf("截断后应为 20x10, 实际 %dx%d", w, h)
	}

	if _, err := CropImage(mat, image.Rect(100, 100, 120, 120)); err == nil {
		t.Error("无交集区域应报错")
	}
}
