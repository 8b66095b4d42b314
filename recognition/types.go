package recognition

import (
	"fmt"
	"strings"
)

// Result is the normalized outcome of one recognition call. When Found is
// false every other field is nil.
type Result struct {
	Found  bool
	Title  *string
	Artist *string
	Album  *string
	// Year is never populated; the upstream payload does not carry it in a
	// consistent place.
	Year *string
}

func (r *Result) String() string {
	if r == nil || !r.Found {
		return "No song detected"
	}
	parts := []string{fmt.Sprintf("%s by %s", deref(r.Title), deref(r.Artist))}
	if r.Album != nil && *r.Album != "" {
		parts = append(parts, "Album: "+*r.Album)
	}
	return strings.Join(parts, " - ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// RecognitionError wraps any failure talking to the recognition service.
type RecognitionError struct {
	Err error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("recognition service error: %v", e.Err)
}

func (e *RecognitionError) Unwrap() error {
	return e.Err
}

// discoveryResponse is the subset of the Shazam discovery payload we read.
type discoveryResponse struct {
	Matches []struct {
		ID string `json:"id"`
	} `json:"matches"`
	Track *track `json:"track"`
}

type track struct {
	Key      string    `json:"key"`
	Title    *string   `json:"title"`
	Subtitle *string   `json:"subtitle"`
	Sections []section `json:"sections"`
}

type section struct {
	Type     string     `json:"type"`
	Metadata []metadata `json:"metadata"`
}

type metadata struct {
	Title string  `json:"title"`
	Text  *string `json:"text"`
}
