package stitch

import (
	"errors"
	"fmt"
)

// ErrorKind 拼接失败类别
type ErrorKind int

const (
	// ImageLoadFailure 输入路径无法解码为图像
	ImageLoadFailure ErrorKind = iota + 1
	// AlignmentFailure 模板匹配找不到可用的偏移
	AlignmentFailure
	// CanvasWriteFailure 画布分配、越界或结果无法保存
	CanvasWriteFailure
)

func (k ErrorKind) String() string {
	switch k {
	case ImageLoadFailure:
		return "ImageLoadFailure"
	case AlignmentFailure:
		return "AlignmentFailure"
	case CanvasWriteFailure:
		return "CanvasWriteFailure"
	default:
		return "Unknown"
	}
}

// 哨兵错误，配合 errors.Is 使用
var (
	ErrImageLoad   = errors.New("图像加载失败")
	ErrAlignment   = errors.New("图像对齐失败")
	ErrCanvasWrite = errors.New("画布写入失败")
)

// Error 拼接错误
type Error struct {
	Kind  ErrorKind
	Index int    // 出错图像在（调整顺序后）序列中的位置，-1 表示与具体图像无关
	Path  string // 出错图像路径，可能为空
	Err   error
}

func (e *Error) Error() string {
	msg := e.sentinel().Error()
	if e.Path != "" {
		msg = fmt.Sprintf("%s [#%d %s]", msg, e.Index, e.Path)
	} else if e.Index >= 0 {
		msg = fmt.Sprintf("%s [#%d]", msg, e.Index)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 使 errors.Is(err, ErrAlignment) 等判断成立
func (e *Error) Is(target error) bool {
	return target == e.sentinel()
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case ImageLoadFailure:
		return ErrImageLoad
	case AlignmentFailure:
		return ErrAlignment
	default:
		return ErrCanvasWrite
	}
}

// KindOf 返回错误的类别，非拼接错误返回 0
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}
