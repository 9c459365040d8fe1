package pdf

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/zoeyai/scrollstitch/pkg/vision/cv"
)

func writeTestImage(t *testing.T, dir string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 7), uint8(y * 3), 200, 255})
		}
	}
	mat, err := cv.ImageToMat(img)
	if err != nil {
		t.Fatalf("转换图像失败: %v", err)
	}
	defer mat.Close()

	path := filepath.Join(dir, "2024-05-01_12-00-00.png")
	if err := cv.WriteImage(path, mat); err != nil {
		t.Fatalf("写入图像失败: %v", err)
	}
	return path
}

func TestSegmentSplitsTallImage(t *testing.T) {
	dir := t.TempDir()
	src := writeTestImage(t, dir, 40, 250)

	paths, err := Segment(src, dir, Options{Grayscale: true, MaxDimension: 100})
	if err != nil {
		t.Fatalf("切分失败: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("应切分为 3 页, 实际 %d", len(paths))
	}
	if filepath.Base(paths[2]) != "2024-05-01_12-00-00_segment_2.png" {
		t.Errorf("页面文件名不符: %s", paths[2])
	}

	last, err := cv.ReadImage(paths[2])
	if err != nil {
		t.Fatalf("读取页面失败: %v", err)
	}
	defer last.Close()
	if last.Rows() != 50 || last.Cols() != 40 {
		t.Errorf("最后一页应为 40x50, 实际 %dx%d", last.Cols(), last.Rows())
	}
}

func TestSegmentSmallImageIsSinglePage(t *testing.T) {
	dir := t.TempDir()
	src := writeTestImage(t, dir, 40, 60)

	if NeedsSplit(60, Options{}) {
		t.Error("60 行不应需要切分")
	}
	paths, err := Segment(src, t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("切分失败: %v", err)
	}
	if len(paths) != 1 {
		t.Errorf("小图应只有 1 页, 实际 %d", len(paths))
	}
}

func TestFitWidth(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 200, 100))
	out := FitWidth(gray, 50)
	if out.Bounds().Dx() != 50 || out.Bounds().Dy() != 25 {
		t.Errorf("缩放后应为 50x25, 实际 %v", out.Bounds())
	}
	if _, ok := out.(*image.Gray); !ok {
		t.Errorf("灰度图缩放后应保持灰度, 实际 %T", out)
	}
	if FitWidth(gray, 300) != image.Image(gray) {
		t.Error("未超宽的图像应原样返回")
	}
}

func TestFromImagesAndMerge(t *testing.T) {
	dir := t.TempDir()
	src := writeTestImage(t, dir, 40, 250)
	pages, err := Segment(src, dir, Options{MaxDimension: 100})
	if err != nil {
		t.Fatalf("切分失败: %v", err)
	}

	var pdfs []string
	for i, p := range pages {
		out := filepath.Join(dir, SegmentName("page", i)+".pdf")
		if err := FromImages([]string{p}, out); err != nil {
			t.Fatalf("生成 PDF 失败: %v", err)
		}
		pdfs = append(pdfs, out)
	}

	combined := filepath.Join(dir, Stem(src)+CombinedSuffix)
	if err := Merge(pdfs, combined); err != nil {
		t.Fatalf("合并失败: %v", err)
	}
	n, err := PageCount(combined)
	if err != nil {
		t.Fatalf("读取页数失败: %v", err)
	}
	if n != len(pages) {
		t.Errorf("合并后应有 %d 页, 实际 %d", len(pages), n)
	}

	Remove(pdfs...)
	for _, p := range pdfs {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s 应已删除", p)
		}
	}
}

func TestFromImagesEmpty(t *testing.T) {
	if err := FromImages(nil, filepath.Join(t.TempDir(), "x.pdf")); err == nil {
		t.Error("空输入应报错")
	}
}
