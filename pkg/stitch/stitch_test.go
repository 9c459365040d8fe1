package stitch

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/zoeyai/scrollstitch/pkg/vision/cv"
)

var fixedNow = func() time.Time { return time.Date(2024, 5, 1, 12, 30, 45, 0, time.Local) }

// document 生成一张确定性的噪声长图，模拟可滚动内容
func document(t *testing.T, w, h int, seed int64) gocv.Mat {
	t.Helper()
	r := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(r.Intn(256)), uint8(r.Intn(256)), uint8(r.Intn(256)), 255})
		}
	}
	mat, err := cv.ImageToMat(img)
	if err != nil {
		t.Fatalf("生成测试图像失败: %v", err)
	}
	return mat
}

// writeFrames 按行区间从 doc 中切出截图并写到 dir，返回路径
func writeFrames(t *testing.T, doc gocv.Mat, dir string, rows [][2]int) []string {
	t.Helper()
	var paths []string
	for i, r := range rows {
		frame, err := cv.CropImage(doc, image.Rect(0, r[0], doc.Cols(), r[1]))
		if err != nil {
			t.Fatalf("切图失败: %v", err)
		}
		path := filepath.Join(dir, fmt.Sprintf("frame_%02d.png", i))
		if err := cv.WriteImage(path, frame); err != nil {
			t.Fatalf("写入截图失败: %v", err)
		}
		frame.Close()
		paths = append(paths, path)
	}
	return paths
}

func sameMat(a, b gocv.Mat) bool {
	return a.Rows() == b.Rows() && a.Cols() == b.Cols() && a.Type() == b.Type() &&
		bytes.Equal(a.ToBytes(), b.ToBytes())
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		t.Fatalf("读取目录失败: %v", err)
	}
	return len(entries)
}

// 重叠分别为 60, 70, 60 行
var overlappingRows = [][2]int{{0, 150}, {90, 240}, {170, 320}, {260, 400}}

func TestStitchReconstructsDocument(t *testing.T) {
	doc := document(t, 80, 400, 1)
	defer doc.Close()

	inDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")
	paths := writeFrames(t, doc, inDir, overlappingRows)

	s := New(Options{OutputDir: outDir, Now: fixedNow})
	result, err := s.Stitch(paths, Down)
	if err != nil {
		t.Fatalf("拼接失败: %v", err)
	}

	// 150*3 + 140 - (60 + 70 + 60) = 400
	if result.Height != 400 || result.Width != 80 {
		t.Errorf("结果尺寸应为 80x400, 实际 %dx%d", result.Width, result.Height)
	}
	wantStarts := []int{0, 60, 70, 60}
	for i, want := range wantStarts {
		if result.SourceStarts[i] != want {
			t.Errorf("第 %d 张起始行应为 %d, 实际 %d", i, want, result.SourceStarts[i])
		}
	}

	if filepath.Base(result.Path) != "2024-05-01_12-30-45_000_stitched.png" {
		t.Errorf("输出文件名不符: %s", result.Path)
	}
	if n := countFiles(t, outDir); n != 1 {
		t.Errorf("应只写出一个文件, 实际 %d", n)
	}

	out, err := cv.ReadImage(result.Path)
	if err != nil {
		t.Fatalf("读取结果失败: %v", err)
	}
	defer out.Close()
	if !sameMat(out, doc) {
		t.Error("拼接结果应与原始长图逐像素一致")
	}
}

func TestStitchUpReversesOrder(t *testing.T) {
	doc := document(t, 64, 300, 2)
	defer doc.Close()

	paths := writeFrames(t, doc, t.TempDir(), [][2]int{{0, 120}, {60, 180}, {120, 300}})
	reversed := []string{paths[2], paths[1], paths[0]}

	result, err := New(Options{OutputDir: t.TempDir(), Now: fixedNow}).Stitch(reversed, Up)
	if err != nil {
		t.Fatalf("拼接失败: %v", err)
	}
	if result.Height != 300 {
		t.Errorf("结果高度应为 300, 实际 %d", result.Height)
	}
}

func TestStitchSingleImage(t *testing.T) {
	doc := document(t, 50, 70, 3)
	defer doc.Close()

	paths := writeFrames(t, doc, t.TempDir(), [][2]int{{0, 70}})
	result, err := New(Options{OutputDir: t.TempDir()}).Stitch(paths, Down)
	if err != nil {
		t.Fatalf("拼接失败: %v", err)
	}

	out, err := cv.ReadImage(result.Path)
	if err != nil {
		t.Fatalf("读取结果失败: %v", err)
	}
	defer out.Close()
	if !sameMat(out, doc) {
		t.Error("单张输入的结果应与输入一致")
	}
}

func TestStitchIsDeterministic(t *testing.T) {
	doc := document(t, 80, 400, 4)
	defer doc.Close()
	paths := writeFrames(t, doc, t.TempDir(), overlappingRows)

	first, err := New(Options{OutputDir: t.TempDir(), Now: fixedNow}).Stitch(paths, Down)
	if err != nil {
		t.Fatalf("第一次拼接失败: %v", err)
	}
	second, err := New(Options{OutputDir: t.TempDir(), Now: fixedNow}).Stitch(paths, Down)
	if err != nil {
		t.Fatalf("第二次拼接失败: %v", err)
	}

	a, _ := os.ReadFile(first.Path)
	b, _ := os.ReadFile(second.Path)
	if len(a) == 0 || !bytes.Equal(a, b) {
		t.Error("相同输入两次拼接的输出应逐字节一致")
	}
}

func TestStitchLoadFailure(t *testing.T) {
	doc := document(t, 40, 100, 5)
	defer doc.Close()

	inDir := t.TempDir()
	paths := writeFrames(t, doc, inDir, [][2]int{{0, 80}})

	corrupt := filepath.Join(inDir, "corrupt.png")
	if err := os.WriteFile(corrupt, []byte("garbage"), 0644); err != nil {
		t.Fatalf("创建测试文件失败: %v", err)
	}

	tests := []struct {
		name  string
		paths []string
	}{
		{"不存在", append(paths, filepath.Join(inDir, "missing.png"))},
		{"已损坏", append(paths, corrupt)},
		{"空输入", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outDir := filepath.Join(t.TempDir(), "out")
			_, err := New(Options{OutputDir: outDir}).Stitch(tt.paths, Down)
			if !errors.Is(err, ErrImageLoad) {
				t.Fatalf("应返回 ImageLoadFailure, 实际 %v", err)
			}
			if KindOf(err) != ImageLoadFailure {
				t.Errorf("KindOf 应为 ImageLoadFailure, 实际 %v", KindOf(err))
			}
			if n := countFiles(t, outDir); n != 0 {
				t.Errorf("失败时不应写出文件, 实际 %d", n)
			}
		})
	}
}

func TestStitchAlignmentFailure(t *testing.T) {
	doc := document(t, 60, 200, 6)
	defer doc.Close()

	inDir := t.TempDir()
	paths := writeFrames(t, doc, inDir, [][2]int{{0, 120}, {60, 200}})

	solid := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(200, 200, 200, 0), 120, 60, gocv.MatTypeCV8UC3)
	defer solid.Close()
	solidPath := filepath.Join(inDir, "solid.png")
	if err := cv.WriteImage(solidPath, solid); err != nil {
		t.Fatalf("写入纯色图失败: %v", err)
	}

	outDir := filepath.Join(t.TempDir(), "out")
	_, err := New(Options{OutputDir: outDir}).Stitch(append(paths, solidPath), Down)
	if !errors.Is(err, ErrAlignment) {
		t.Fatalf("应返回 AlignmentFailure, 实际 %v", err)
	}

	var se *Error
	if !errors.As(err, &se) || se.Index != 2 || se.Path != solidPath {
		t.Errorf("错误应指向第 2 张 %s, 实际 %+v", solidPath, se)
	}
	if n := countFiles(t, outDir); n != 0 {
		t.Errorf("失败时不应写出文件, 实际 %d", n)
	}
}

func TestStitchUnrelatedImagesFail(t *testing.T) {
	a := document(t, 60, 120, 7)
	defer a.Close()
	b := document(t, 60, 120, 8)
	defer b.Close()

	_, _, err := New(Options{}).Compose([]gocv.Mat{a, b})
	if KindOf(err) != AlignmentFailure {
		t.Fatalf("无重叠的图像应对齐失败, 实际 %v", err)
	}
}

func TestComposeNarrowImageIsZeroFilled(t *testing.T) {
	doc := document(t, 80, 200, 9)
	defer doc.Close()

	first, _ := cv.CropImage(doc, image.Rect(0, 0, 80, 120))
	defer first.Close()
	narrow, _ := cv.CropImage(doc, image.Rect(0, 60, 50, 200))
	defer narrow.Close()

	out, starts, err := New(Options{}).Compose([]gocv.Mat{first, narrow})
	if err != nil {
		t.Fatalf("拼接失败: %v", err)
	}
	defer out.Close()

	if out.Cols() != 80 || out.Rows() != 200 {
		t.Fatalf("结果应为 80x200, 实际 %dx%d", out.Cols(), out.Rows())
	}
	if starts[1] != 60 {
		t.Errorf("起始行应为 60, 实际 %d", starts[1])
	}

	px := out.GetVecbAt(150, 70)
	if px[0] != 0 || px[1] != 0 || px[2] != 0 {
		t.Errorf("窄图右侧未覆盖区域应为黑色, 实际 %v", px)
	}
}

func TestComposeWideAfterNarrowIgnoresPadding(t *testing.T) {
	doc := document(t, 80, 200, 10)
	defer doc.Close()

	narrow, _ := cv.CropImage(doc, image.Rect(0, 0, 50, 120))
	defer narrow.Close()
	wide, _ := cv.CropImage(doc, image.Rect(0, 60, 80, 200))
	defer wide.Close()

	out, starts, err := New(Options{}).Compose([]gocv.Mat{narrow, wide})
	if err != nil {
		t.Fatalf("窄图后接宽图应能对齐, 实际 %v", err)
	}
	defer out.Close()

	if out.Cols() != 80 || out.Rows() != 200 {
		t.Fatalf("结果应为 80x200, 实际 %dx%d", out.Cols(), out.Rows())
	}
	if starts[1] != 60 {
		t.Errorf("起始行应为 60, 实际 %d", starts[1])
	}

	px := out.GetVecbAt(30, 70)
	if px[0] != 0 || px[1] != 0 || px[2] != 0 {
		t.Errorf("窄图区域右侧应为黑色, 实际 %v", px)
	}
	got, want := out.GetVecbAt(150, 70), doc.GetVecbAt(150, 70)
	if got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Errorf("宽图内容应完整写入, 实际 %v 期望 %v", got, want)
	}
}

func TestStitchWriteFailure(t *testing.T) {
	doc := document(t, 40, 120, 11)
	defer doc.Close()

	dir := t.TempDir()
	paths := writeFrames(t, doc, dir, [][2]int{{0, 80}, {40, 120}})

	// 输出目录被同名文件占用
	blocked := filepath.Join(dir, "out")
	if err := os.WriteFile(blocked, []byte("x"), 0644); err != nil {
		t.Fatalf("创建测试文件失败: %v", err)
	}

	_, err := New(Options{OutputDir: blocked, Now: fixedNow}).Stitch(paths, Down)
	if KindOf(err) != CanvasWriteFailure {
		t.Fatalf("保存失败应返回 CanvasWriteFailure, 实际 %v", err)
	}
}

func TestStitchRefusesOverwrite(t *testing.T) {
	doc := document(t, 40, 120, 12)
	defer doc.Close()

	paths := writeFrames(t, doc, t.TempDir(), [][2]int{{0, 80}, {40, 120}})
	outDir := t.TempDir()
	s := New(Options{OutputDir: outDir, Now: fixedNow})

	first, err := s.Stitch(paths, Down)
	if err != nil {
		t.Fatalf("拼接失败: %v", err)
	}
	before, _ := os.ReadFile(first.Path)

	_, err = s.Stitch(paths, Down)
	if !errors.Is(err, ErrCanvasWrite) || !errors.Is(err, os.ErrExist) {
		t.Fatalf("同名输出已存在时应拒绝覆盖, 实际 %v", err)
	}
	after, _ := os.ReadFile(first.Path)
	if !bytes.Equal(before, after) {
		t.Error("已有结果不应被改写")
	}
	if n := countFiles(t, outDir); n != 1 {
		t.Errorf("应只有一个输出文件, 实际 %d", n)
	}
}

func TestOutputPathMilliseconds(t *testing.T) {
	now := func() time.Time { return time.Date(2024, 5, 1, 12, 30, 45, 7*int(time.Millisecond), time.Local) }
	got := filepath.Base(New(Options{Now: now}).OutputPath())
	if got != "2024-05-01_12-30-45_007_stitched.png" {
		t.Errorf("输出文件名应精确到毫秒, 实际 %s", got)
	}
}

func TestDirectionHelpers(t *testing.T) {
	if ForSwipe(Up) != Down || ForSwipe(Down) != Up {
		t.Error("上滑截图应按 DOWN 拼接, 下滑截图应按 UP 拼接")
	}
	if _, err := ParseDirection("LEFT"); err == nil {
		t.Error("无效方向应报错")
	}
	if d, err := ParseDirection("UP"); err != nil || d != Up {
		t.Errorf("解析 UP 失败: %v %v", d, err)
	}

	in := []string{"a", "b", "c"}
	got := Order(in, Up)
	if got[0] != "c" || got[2] != "a" || in[0] != "a" {
		t.Errorf("Order 应返回反转后的新切片, 实际 %v (原切片 %v)", got, in)
	}
}
