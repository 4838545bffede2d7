package internal

import "time"

// A single request to fetch a URL into the storage root. Jobs live only for
// the duration of the http request that created them; the token is the only
// trace they leave, as the base name of the stored file.
type DownloadJob struct {
	Token     string
	URL       string
	Template  string // <root>/<token>.%(ext)s
	CreatedAt time.Time
}

type DownloadResult struct {
	Path string
	Err  error
}
