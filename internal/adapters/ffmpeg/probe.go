package ffmpeg

import (
	"fmt"
	"os"

	"github.com/yapingcat/gomedia/go-mp4"
)

// CountTracks reads the moov box of an mp4 file and returns its track count.
func CountTracks(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if st.Size() == 0 {
		return 0, fmt.Errorf("%s is empty", path)
	}

	demuxer := mp4.CreateMp4Demuxer(f)
	tracks, err := demuxer.ReadHead()
	if err != nil {
		return 0, fmt.Errorf("reading mp4 header: %w", err)
	}
	return len(tracks), nil
}
