package model

import "time"

// FileInfo describes one saved source file, as returned by the file listing.
// The content is deliberately not included — listings stay cheap no matter
// how large the saved files grow.
type FileInfo struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}
