package domain

import "time"

// Clock 把"现在"变成可注入的依赖，测试时用固定时钟替换。
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock 返回读取真实墙钟的 Clock。
func SystemClock() Clock { return systemClock{} }
