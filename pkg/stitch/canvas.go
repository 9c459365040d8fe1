package stitch

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// GrowthPolicy 画布扩容策略
type GrowthPolicy interface {
	// Capacity 返回新的分配行数，结果必须 >= required
	Capacity(allocated, required int) int
}

// ExactFit 按需扩容到恰好够用
type ExactFit struct{}

// Capacity 实现 GrowthPolicy
func (ExactFit) Capacity(_, required int) int {
	return required
}

// Doubling 按倍数扩容，摊还复制开销
type Doubling struct{}

// Capacity 实现 GrowthPolicy
func (Doubling) Capacity(allocated, required int) int {
	capacity := allocated * 2
	if capacity < required {
		capacity = required
	}
	return capacity
}

// Canvas 拼接中的画布，只向下增长
// 宽度固定，未写入的列和尾部保持为 0（黑色）
type Canvas struct {
	mat     gocv.Mat
	width   int
	written int
	policy  GrowthPolicy
	// rowWidths 每个已写入行来自源图像的有效列数
	rowWidths []int
}

// NewCanvas 以 seed 为第一段内容创建画布
func NewCanvas(seed gocv.Mat, width int, policy GrowthPolicy) (*Canvas, error) {
	if policy == nil {
		policy = Doubling{}
	}
	if seed.Cols() > width {
		return nil, &Error{Kind: CanvasWriteFailure, Index: 0,
			Err: fmt.Errorf("图像宽度 %d 超过画布宽度 %d", seed.Cols(), width)}
	}

	c := &Canvas{
		mat:    gocv.Zeros(seed.Rows(), width, seed.Type()),
		width:  width,
		policy: policy,
	}
	if err := c.Append(seed, 0); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Width 画布宽度
func (c *Canvas) Width() int { return c.width }

// Written 已写入的行数
func (c *Canvas) Written() int { return c.written }

// Allocated 已分配的行数
func (c *Canvas) Allocated() int { return c.mat.Rows() }

// TailWidth 最后 rows 行中最窄的有效列数，右侧其余列为填充的 0
func (c *Canvas) TailWidth(rows int) int {
	if rows < 1 || rows > c.written {
		return 0
	}
	width := c.width
	for _, w := range c.rowWidths[c.written-rows:] {
		width = min(width, w)
	}
	return width
}

// Tail 返回已写入内容最后 rows 行、左侧 cols 列的视图
// 视图与画布共享内存，调用方负责 Close，且在下一次 Append 前使用完毕
func (c *Canvas) Tail(rows, cols int) (gocv.Mat, error) {
	if rows < 1 || rows > c.written || cols < 1 || cols > c.width {
		return gocv.NewMat(), &Error{Kind: CanvasWriteFailure, Index: -1,
			Err: fmt.Errorf("尾部区域 %dx%d 超出已写入范围 %dx%d", cols, rows, c.width, c.written)}
	}
	return c.mat.Region(image.Rect(0, c.written-rows, cols, c.written)), nil
}

// Append 将 src 从第 fromRow 行开始的内容左对齐写到已写入内容之后
func (c *Canvas) Append(src gocv.Mat, fromRow int) error {
	if fromRow < 0 || fromRow > src.Rows() {
		return &Error{Kind: CanvasWriteFailure, Index: -1,
			Err: fmt.Errorf("起始行 %d 超出图像高度 %d", fromRow, src.Rows())}
	}
	if src.Cols() > c.width {
		return &Error{Kind: CanvasWriteFailure, Index: -1,
			Err: fmt.Errorf("图像宽度 %d 超过画布宽度 %d", src.Cols(), c.width)}
	}
	if src.Type() != c.mat.Type() {
		return &Error{Kind: CanvasWriteFailure, Index: -1,
			Err: fmt.Errorf("图像类型 %v 与画布类型 %v 不一致", src.Type(), c.mat.Type())}
	}

	n := src.Rows() - fromRow
	if n == 0 {
		return nil
	}
	if err := c.ensure(c.written + n); err != nil {
		return err
	}

	from := src.Region(image.Rect(0, fromRow, src.Cols(), src.Rows()))
	defer from.Close()
	to := c.mat.Region(image.Rect(0, c.written, src.Cols(), c.written+n))
	defer to.Close()
	from.CopyTo(&to)

	for i := 0; i < n; i++ {
		c.rowWidths = append(c.rowWidths, src.Cols())
	}
	c.written += n
	return nil
}

// ensure 保证至少分配 required 行，扩容时复制已写入内容
func (c *Canvas) ensure(required int) error {
	allocated := c.mat.Rows()
	if required <= allocated {
		return nil
	}

	capacity := c.policy.Capacity(allocated, required)
	if capacity < required {
		return &Error{Kind: CanvasWriteFailure, Index: -1,
			Err: fmt.Errorf("扩容策略返回 %d 行，小于所需 %d 行", capacity, required)}
	}

	grown := gocv.Zeros(capacity, c.width, c.mat.Type())
	if c.written > 0 {
		from := c.mat.Region(image.Rect(0, 0, c.width, c.written))
		to := grown.Region(image.Rect(0, 0, c.width, c.written))
		from.CopyTo(&to)
		from.Close()
		to.Close()
	}

	c.mat.Close()
	c.mat = grown
	return nil
}

// Trimmed 返回裁掉未使用尾部后的画布副本
func (c *Canvas) Trimmed() gocv.Mat {
	region := c.mat.Region(image.Rect(0, 0, c.width, c.written))
	defer region.Close()
	return region.Clone()
}

// Close 释放画布内存
func (c *Canvas) Close() {
	c.mat.Close()
}
