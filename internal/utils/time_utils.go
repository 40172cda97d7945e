package utils

import (
	"errors"
	"fmt"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/logger"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidDuration = errors.New("invalid time format")

const Day = 24 * time.Hour

// ParseDuration 解析形如 "50ms"、"90s"、"5m"、"1d12h30m" 的时间字符串
// 不带单位的纯数字按秒处理
func ParseDuration(timeString string) (time.Duration, error) {
	timeString = strings.ToLower(strings.TrimSpace(timeString))
	if timeString == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidDuration)
	}

	if number, err := strconv.Atoi(timeString); err == nil {
		if number < 0 {
			return 0, fmt.Errorf("%w: %s", ErrInvalidDuration, timeString)
		}
		return time.Duration(number) * time.Second, nil
	}

	var total time.Duration
	start := 0
	for i := 0; i < len(timeString); i++ {
		ch := timeString[i]
		if ch >= '0' && ch <= '9' {
			continue
		}
		if i == start {
			return 0, fmt.Errorf("%w: %s", ErrInvalidDuration, timeString)
		}
		number, err := strconv.Atoi(timeString[start:i])
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrInvalidDuration, timeString)
		}
		var unit time.Duration
		switch ch {
		case 's':
			unit = time.Second
		case 'm':
			unit = time.Minute
			if i+1 < len(timeString) && timeString[i+1] == 's' {
				unit = time.Millisecond
				i++
			}
		case 'h':
			unit = time.Hour
		case 'd':
			unit = Day
		default:
			return 0, fmt.Errorf("%w: %s", ErrInvalidDuration, timeString)
		}
		total += time.Duration(number) * unit
		start = i + 1
	}
	if start != len(timeString) {
		return 0, fmt.Errorf("%w: %s", ErrInvalidDuration, timeString)
	}
	return total, nil
}

// ParseStringTime 与 ParseDuration 相同, 解析失败时记录日志并返回 0
func ParseStringTime(timeString string) time.Duration {
	duration, err := ParseDuration(timeString)
	if err != nil {
		logger.ErrorF("Error parsing time string: %s", err.Error())
		return 0
	}
	return duration
}

// FormatCountdown 把剩余时间格式化为广播用的文本, 例如 "1 Hour(s) 5 Minute(s)"
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	days := secs / 86400
	hours := secs % 86400 / 3600
	minutes := secs % 3600 / 60
	seconds := secs % 60

	parts := make([]string, 0, 4)
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%d Day(s)", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%d Hour(s)", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%d Minute(s)", minutes))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%d Second(s)", seconds))
	}
	return strings.Join(parts, " ")
}

// NextDailyTime 返回 now 之后最近的一次 hour 点整 (本地时间)
func NextDailyTime(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
