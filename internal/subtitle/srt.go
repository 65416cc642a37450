// Package subtitle renders caption events as an SRT track.
package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// CaptionEvent is a single transcript line starting at StartMs.
type CaptionEvent struct {
	StartMs int64
	Text    string
}

// FormatTimestamp renders ms as HH:MM:SS,mm.
// Every field is padded to two digits, milliseconds included, so values
// above 99 ms print with three digits and values below 10 ms with two.
func FormatTimestamp(ms int64) string {
	seconds, millis := ms/1000, ms%1000
	minutes, seconds := seconds/60, seconds%60
	hours, minutes := minutes/60, minutes%60
	return fmt.Sprintf("%02d:%02d:%02d,%02d", hours, minutes, seconds, millis)
}

// Write emits one cue per event. A cue ends where the next one starts and
// the last cue ends at durationMs. No events produce no output.
func Write(w io.Writer, events []CaptionEvent, durationMs int64) error {
	bw := bufio.NewWriter(w)
	for i, ev := range events {
		end := durationMs
		if i+1 < len(events) {
			end = events[i+1].StartMs
		}
		if _, err := fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n",
			i+1, FormatTimestamp(ev.StartMs), FormatTimestamp(end), ev.Text); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes the track to path, truncating any existing file.
func WriteFile(path string, events []CaptionEvent, durationMs int64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating subtitle file: %w", err)
	}
	if err := Write(f, events, durationMs); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing subtitle file `%s`: %w", path, err)
	}
	return f.Close()
}
