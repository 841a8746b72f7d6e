package events

// KeyDownload is the channel name used for download progress.
const KeyDownload = "download"

// ProgressEvent reports how far a transfer has come. Total is zero when the
// size is not known.
type ProgressEvent struct {
	Key         string
	TaskID      string
	Transferred int64
	Total       int64
}

// Known reports whether Total carries a size.
func (e ProgressEvent) Known() bool {
	return e.Total > 0
}

// Fraction returns Transferred/Total in [0, 1], or 0 when Total is unknown.
func (e ProgressEvent) Fraction() float64 {
	if !e.Known() {
		return 0
	}
	f := float64(e.Transferred) / float64(e.Total)
	if f > 1 {
		f = 1
	}
	return f
}

// Percent returns the completion percentage, or 0 when Total is unknown.
func (e ProgressEvent) Percent() int {
	return int(e.Fraction() * 100)
}
