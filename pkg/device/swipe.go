package device

import (
	"fmt"
	"time"
)

// Direction 手指滑动方向
type Direction string

const (
	Up   Direction = "UP"
	Down Direction = "DOWN"
)

// MinSettle 滑动后最短等待时间
const MinSettle = time.Second

// Swipe 一次滑动手势
type Swipe struct {
	StartX, StartY int
	EndX, EndY     int
	DurationMs     int
}

// Settle 滑动后的等待时间
func (s Swipe) Settle() time.Duration {
	d := time.Duration(s.DurationMs) * time.Millisecond
	if d < MinSettle {
		return MinSettle
	}
	return d
}

// NewSwipe 在屏幕中线上构造滑动，距离为屏幕高度的 1/4.5，以屏幕中心对称
func NewSwipe(size Size, direction Direction, durationMs int) (Swipe, error) {
	distance := float64(int(float64(size.Height) / 4.5))
	x := size.Width / 2
	mid := float64(size.Height) * 0.5

	s := Swipe{StartX: x, EndX: x, DurationMs: durationMs}
	switch direction {
	case Up:
		s.StartY = int(mid + distance/2)
		s.EndY = int(mid - distance/2)
	case Down:
		s.StartY = int(mid - distance/2)
		s.EndY = int(mid + distance/2)
	default:
		return Swipe{}, fmt.Errorf("无效的滑动方向: %q", direction)
	}
	return s, nil
}
