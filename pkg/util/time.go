package util

import (
	"time"
)

func FromUnixMillis(millis int64) time.Time {
	return time.UnixMilli(millis).UTC()
}
