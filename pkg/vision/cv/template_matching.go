package cv

import (
	"time"

	"gocv.io/x/gocv"
)

// TemplateMatching 模板匹配器
// 灰度化后使用 TM_CCOEFF_NORMED，只取单一最佳峰值
type TemplateMatching struct {
	imSearch  gocv.Mat
	imSource  gocv.Mat
	threshold float64
}

// NewTemplateMatching 创建模板匹配器
// search: 模板, source: 被搜索图像, threshold: 最低置信度
func NewTemplateMatching(search, source gocv.Mat, threshold float64) *TemplateMatching {
	return &TemplateMatching{
		imSearch:  search,
		imSource:  source,
		threshold: threshold,
	}
}

// FindBestResult 查找最佳匹配结果
// 置信度低于阈值时返回 nil, nil；相同峰值取 MinMaxLoc 最先返回的位置
func (t *TemplateMatching) FindBestResult() (*MatchResult, error) {
	startTime := time.Now()

	if err := checkSourceLargerThanSearch(t.imSource, t.imSearch); err != nil {
		return nil, err
	}

	srcGray := ToGray(t.imSource)
	searchGray := ToGray(t.imSearch)
	defer srcGray.Close()
	defer searchGray.Close()

	if IsUniform(searchGray) {
		return nil, &UniformImageError{Which: "search"}
	}
	if IsUniform(srcGray) {
		return nil, &UniformImageError{Which: "source"}
	}

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	gocv.MatchTemplate(srcGray, searchGray, &result, gocv.TmCcoeffNormed, mask)
	_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)

	matchResult := &MatchResult{
		TopLeft:    Point{X: maxLoc.X, Y: maxLoc.Y},
		Width:      t.imSearch.Cols(),
		Height:     t.imSearch.Rows(),
		Confidence: float64(maxVal),
		Time:       float64(time.Since(startTime).Milliseconds()),
	}

	if matchResult.Confidence >= t.threshold {
		return matchResult, nil
	}
	return nil, nil
}

// checkSourceLargerThanSearch 检查源图像是否不小于搜索图像
func checkSourceLargerThanSearch(source, search gocv.Mat) error {
	if source.Rows() < search.Rows() || source.Cols() < search.Cols() {
		return &ImageSizeError{
			SourceSize: [2]int{source.Cols(), source.Rows()},
			SearchSize: [2]int{search.Cols(), search.Rows()},
		}
	}
	return nil
}
