package cv

import "fmt"

// Point 表示二维坐标点
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// MatchResult 模板匹配结果
type MatchResult struct {
	// TopLeft 模板在源图像中的左上角位置
	TopLeft Point `json:"top_left"`
	// Width, Height 模板尺寸
	Width  int `json:"width"`
	Height int `json:"height"`
	// Confidence 归一化相关系数 (-1 ~ 1)
	Confidence float64 `json:"confidence"`
	// Time 匹配耗时（毫秒）
	Time float64 `json:"time,omitempty"`
}

// ImageSizeError 模板大于源图像
type ImageSizeError struct {
	SourceSize [2]int
	SearchSize [2]int
}

func (e *ImageSizeError) Error() string {
	return fmt.Sprintf("搜索图像尺寸 %dx%d 大于源图像 %dx%d",
		e.SearchSize[0], e.SearchSize[1], e.SourceSize[0], e.SourceSize[1])
}

// UniformImageError 图像为纯色，相关系数无意义
type UniformImageError struct {
	Which string // "source" 或 "search"
}

func (e *UniformImageError) Error() string {
	return fmt.Sprintf("%s 图像为纯色，无法匹配", e.Which)
}
