package cv

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"
)

// ReadImage 读取图像文件 (BGR 三通道)
func ReadImage(filename string) (gocv.Mat, error) {
	if _, err := os.Stat(filename); err != nil {
		return gocv.NewMat(), fmt.Errorf("无法读取图像: %w", err)
	}
	mat := gocv.IMRead(filename, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), fmt.Errorf("无法解码图像: %s", filename)
	}
	return mat, nil
}

// DecodeImage 从内存数据解码图像 (BGR 三通道)
func DecodeImage(data []byte) (gocv.Mat, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("解码图像失败: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), fmt.Errorf("解码图像失败: 数据为空或格式不支持")
	}
	return mat, nil
}

// WriteImage 保存图像文件，格式由扩展名决定
// 先写入同目录临时文件再重命名，失败时不留下半成品
func WriteImage(filename string, img gocv.Mat) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filepath.Base(filename), ext)
	tmp := filepath.Join(dir, "."+base+".tmp"+ext)

	if ok := gocv.IMWrite(tmp, img); !ok {
		os.Remove(tmp)
		return fmt.Errorf("保存图像失败: %s", filename)
	}
	if err := os.Rename(tmp, filename); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("保存图像失败: %w", err)
	}
	return nil
}

// ToGray 转换为灰度图
func ToGray(src gocv.Mat) gocv.Mat {
	if src.Channels() == 1 {
		return src.Clone()
	}
	dst := gocv.NewMat()
	gocv.CvtColor(src, &dst, gocv.ColorBGRToGray)
	return dst
}

// IsUniform 判断单通道图像是否为纯色
func IsUniform(gray gocv.Mat) bool {
	minVal, maxVal, _, _ := gocv.MinMaxLoc(gray)
	return minVal == maxVal
}

// GetResolution 获取图像分辨率 (width, height)
func GetResolution(img gocv.Mat) (int, int) {
	return img.Cols(), img.Rows()
}

// CropImage 裁剪图像，区域超出边界时截断
// 返回独立内存的副本
func CropImage(img gocv.Mat, rect image.Rectangle) (gocv.Mat, error) {
	rect = rect.Intersect(image.Rect(0, 0, img.Cols(), img.Rows()))
	if rect.Empty() {
		return gocv.NewMat(), fmt.Errorf("裁剪区域与图像无交集")
	}

	region := img.Region(rect)
	defer region.Close()
	return region.Clone(), nil
}

// ResizeImage 调整图像大小
func ResizeImage(img gocv.Mat, width, height int) gocv.Mat {
	dst := gocv.NewMat()
	gocv.Resize(img, &dst, image.Point{X: width, Y: height}, 0, 0, gocv.InterpolationArea)
	return dst
}

// ImageToMat 将 image.Image 转换为 BGR gocv.Mat
func ImageToMat(img image.Image) (gocv.Mat, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("图像转换失败: %w", err)
	}
	return mat, nil
}

// MatToImage 将 gocv.Mat 转换为 image.Image
func MatToImage(mat gocv.Mat) (image.Image, error) {
	img, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("Mat 转换失败: %w", err)
	}
	return img, nil
}
