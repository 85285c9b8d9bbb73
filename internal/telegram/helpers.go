package telegram

import (
	"fmt"
	"time"
)

// formatSeconds renders a duration as whole seconds, rounding up so "1s" is
// never shown as "0s".
func formatSeconds(d time.Duration) string {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%ds", secs)
}
