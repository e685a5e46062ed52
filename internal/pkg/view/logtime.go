package view

import (
	"fmt"
	"time"

	"github.com/anicoll/diffuser-panel/internal/pkg/model"
)

// FormatLogTime renders the timestamp column of a device log entry. Entries
// written after NTP sync carry epoch seconds and get wall-clock formatting;
// earlier entries only have the device uptime and are shown relative.
func FormatLogTime(entry model.LogEntry, now time.Time) string {
	if entry.Epoch > 0 {
		return formatEpoch(time.Unix(entry.Epoch, 0).In(now.Location()), now)
	}
	return formatUptime(entry.UptimeMs)
}

func formatEpoch(t, now time.Time) string {
	clock := t.Format("15:04:05")
	if sameDay(t, now) {
		return clock
	}
	if sameDay(t, now.AddDate(0, 0, -1)) {
		return "Yesterday " + clock
	}
	return t.Format("02/01") + " " + clock
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func formatUptime(uptimeMs int64) string {
	secs := uptimeMs / 1000
	mins := secs / 60
	hrs := mins / 60
	if hrs > 0 {
		return fmt.Sprintf("+%dh%dm", hrs, mins%60)
	}
	if mins > 0 {
		return fmt.Sprintf("+%dm%ds", mins, secs%60)
	}
	return fmt.Sprintf("+%ds", secs)
}

// FormatLogEntries renders device logs newest first, the order the panel
// shows them.
func FormatLogEntries(entries []model.LogEntry, now time.Time) []string {
	lines := make([]string, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		lines = append(lines, fmt.Sprintf("%s %s %s", FormatLogTime(e, now), e.Level, e.Message))
	}
	return lines
}
