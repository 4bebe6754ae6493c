package decode

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
)

// Metadata is the tag information extracted from an audio file. Files with
// no tags leave every field zero.
type Metadata struct {
	Title  string
	Artist string
	Album  string
	Genre  string

	// BPM is the tagged tempo when present, 0 otherwise.
	BPM float64
}

// Raw tag keys that may carry a tempo value, checked case-insensitively.
var bpmTagKeys = []string{"tbpm", "bpm", "tempo"}

// ReadMetadata extracts tag metadata from an audio file. A file without
// readable tags returns an error; callers treat that as a soft failure and
// keep the zero Metadata.
func ReadMetadata(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return Metadata{}, fmt.Errorf("read tags %s: %w", path, err)
	}

	return Metadata{
		Title:  m.Title(),
		Artist: m.Artist(),
		Album:  m.Album(),
		Genre:  m.Genre(),
		BPM:    taggedBPM(m.Raw()),
	}, nil
}

func taggedBPM(raw map[string]interface{}) float64 {
	for key, value := range raw {
		lower := strings.ToLower(key)
		for _, want := range bpmTagKeys {
			if lower != want {
				continue
			}
			switch v := value.(type) {
			case string:
				if bpm, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && bpm > 0 {
					return bpm
				}
			case int:
				if v > 0 {
					return float64(v)
				}
			case float64:
				if v > 0 {
					return v
				}
			}
		}
	}
	return 0
}
