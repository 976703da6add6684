package export

import (
	"time"
)

const filenamePrefix = "calendar"

// SuggestedFilename returns the date-stamped download name for a mode,
// e.g. calendar-2024-03-01.pdf. The date is taken in UTC.
func SuggestedFilename(mode Mode, now time.Time) string {
	ext := mode.Extension()
	if ext == "" {
		ext = "bin"
	}
	return filenamePrefix + "-" + now.UTC().Format("2006-01-02") + "." + ext
}

// DispositionFilename is the fixed attachment name used in
// Content-Disposition headers.
func DispositionFilename(mode Mode) string {
	ext := mode.Extension()
	if ext == "" {
		ext = "bin"
	}
	return filenamePrefix + "." + ext
}
