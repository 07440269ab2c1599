package countdown

import "fmt"

// FormatSeconds 将秒数转换为 MM:SS，分钟超过两位时照常显示
func FormatSeconds(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
