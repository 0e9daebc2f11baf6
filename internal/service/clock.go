package service

import "time"

// Clock 时间来源，注入以便测试中控制时间
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// NewSystemClock 创建墙钟时间来源
func NewSystemClock() Clock {
	return systemClock{}
}
