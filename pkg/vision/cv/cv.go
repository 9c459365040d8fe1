// Package cv 提供拼接流程使用的 OpenCV 图像操作
//
// 包含:
//   - 图像读写 (BGR 三通道，原子写出)
//   - 灰度转换、裁剪、缩放
//   - 模板匹配 (TM_CCOEFF_NORMED，单一最佳峰值)
//
// 基本用法:
//
//	img, err := cv.ReadImage("frame.png")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer img.Close()
//
//	m := cv.NewTemplateMatching(tail, img, 0.5)
//	result, err := m.FindBestResult()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("最佳位置: y=%d, 置信度=%.2f\n", result.TopLeft.Y, result.Confidence)
package cv
