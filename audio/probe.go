package audio

import (
	"fmt"
	"os"

	"github.com/faiface/beep/mp3"
)

// Probe decodes the MP3 stream headers of path and reports its format and
// length. It reads the whole file to count frames.
func Probe(path string) (*AudioInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	defer streamer.Close()

	return &AudioInfo{
		SampleRate: int(format.SampleRate),
		Channels:   format.NumChannels,
		Duration:   format.SampleRate.D(streamer.Len()),
	}, nil
}
