package roi

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/zoeyai/scrollstitch/pkg/vision/cv"
)

func writeImage(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 90, 255})
		}
	}
	mat, err := cv.ImageToMat(img)
	if err != nil {
		t.Fatalf("转换图像失败: %v", err)
	}
	defer mat.Close()

	path := filepath.Join(dir, name)
	if err := cv.WriteImage(path, mat); err != nil {
		t.Fatalf("写入图像失败: %v", err)
	}
	return path
}

func TestPreviewScale(t *testing.T) {
	tests := []struct {
		height, available int
		want              float64
	}{
		{800, 1000, 1},
		{2000, 1000, 0.5},
		{2000, 0, 1},
	}
	for _, tt := range tests {
		if got := PreviewScale(tt.height, tt.available); got != tt.want {
			t.Errorf("PreviewScale(%d, %d) = %v, 期望 %v", tt.height, tt.available, got, tt.want)
		}
	}
}

func TestScaleRect(t *testing.T) {
	got := ScaleRect(Rect{X: 10, Y: 21, Width: 30, Height: 41}, 2)
	want := Rect{X: 20, Y: 42, Width: 60, Height: 82}
	if got != want {
		t.Errorf("ScaleRect = %v, 期望 %v", got, want)
	}
}

func TestCroppedName(t *testing.T) {
	if got := CroppedName("/a/b/2024-05-01_12-00-00_123.png"); got != "2024-05-01_12-00-00_123_cropped.png" {
		t.Errorf("CroppedName 结果不符: %s", got)
	}
}

func TestCropAll(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeImage(t, dir, "a.png", 100, 200),
		writeImage(t, dir, "b.png", 100, 200),
	}

	sel := Fixed{X: 10, Y: 20, Width: 50, Height: 60}
	rect, _ := sel.Select(paths[0])

	out, err := CropAll(paths, rect, "")
	if err != nil {
		t.Fatalf("批量裁剪失败: %v", err)
	}
	if len(out) != 2 || filepath.Base(out[1]) != "b_cropped.png" {
		t.Fatalf("输出路径不符: %v", out)
	}

	cropped, err := cv.ReadImage(out[0])
	if err != nil {
		t.Fatalf("读取裁剪结果失败: %v", err)
	}
	defer cropped.Close()
	if cropped.Cols() != 50 || cropped.Rows() != 60 {
		t.Errorf("裁剪尺寸应为 50x60, 实际 %dx%d", cropped.Cols(), cropped.Rows())
	}
}

func TestCropAllRejectsEmptyRect(t *testing.T) {
	if _, err := CropAll([]string{"x.png"}, Rect{}, ""); err == nil {
		t.Error("空区域应报错")
	}
}
