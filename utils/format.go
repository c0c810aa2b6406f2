package utils

import "fmt"

// FormatDuration 将秒数格式化为人类可读的时长，如 "1h 23min" / "45min"
func FormatDuration(seconds int) string {
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dmin", hours, minutes)
	}
	return fmt.Sprintf("%dmin", minutes)
}

// FormatDistance 将米数格式化为人类可读的距离，如 "12.3 km" / "850 m"
func FormatDistance(meters int) string {
	if meters >= 1000 {
		return fmt.Sprintf("%.1f km", float64(meters)/1000)
	}
	return fmt.Sprintf("%d m", meters)
}
