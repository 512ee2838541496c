// Package cooldown derives the pump command cooldown countdown from the last
// accepted command time and the server-declared cooldown window.
package cooldown

import "time"

// Remaining returns the whole seconds left in the cooldown window, rounded up.
//
// It is zero when cooldownSeconds <= 0, when lastCommandMillis is unset, or
// once now has moved past the end of the window. A result of 1 may still
// block for up to 999ms of the final second.
func Remaining(now time.Time, lastCommandMillis int64, cooldownSeconds int) int {
	if cooldownSeconds <= 0 || lastCommandMillis <= 0 {
		return 0
	}
	windowMs := int64(cooldownSeconds) * 1000
	leftMs := windowMs - (now.UnixMilli() - lastCommandMillis)
	if leftMs <= 0 {
		return 0
	}
	return int((leftMs + 999) / 1000)
}

// Until returns the instant the window ends, or the zero time when there is
// no window.
func Until(lastCommandMillis int64, cooldownSeconds int) time.Time {
	if cooldownSeconds <= 0 || lastCommandMillis <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(lastCommandMillis).Add(time.Duration(cooldownSeconds) * time.Second)
}
