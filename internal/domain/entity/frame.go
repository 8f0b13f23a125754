package entity

import (
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	FramePrefix = "frame-"
	FrameExt    = ".jpg"
	// FramePadWidth matches the %06d pattern handed to ffmpeg. Longer names are still
	// parsed numerically, so ordering never depends on lexical comparison.
	FramePadWidth = 6
)

// Frame is one extracted still. Ordinal is 1-based.
type Frame struct {
	Ordinal int
	Name    string
}

// FrameRef is a frame resolved to a fetchable locator.
type FrameRef struct {
	Ordinal int    `json:"ordinal"`
	Name    string `json:"name"`
	URL     string `json:"url"`
}

func FrameFileName(ordinal int) string {
	return fmt.Sprintf("%s%0*d%s", FramePrefix, FramePadWidth, ordinal, FrameExt)
}

// FramePattern is the printf-style output pattern given to ffmpeg.
func FramePattern() string {
	return fmt.Sprintf("%s%%0%dd%s", FramePrefix, FramePadWidth, FrameExt)
}

// ParseFrameOrdinal extracts the ordinal from a frame file name.
func ParseFrameOrdinal(name string) (int, bool) {
	if !strings.HasPrefix(name, FramePrefix) || !strings.HasSuffix(name, FrameExt) {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, FramePrefix), FrameExt)
	if len(digits) < FramePadWidth {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// SortFrames parses names, orders them by ordinal and verifies they form the run 1..n.
// Names that are not frame files are ignored.
func SortFrames(names []string) ([]Frame, error) {
	frames := make([]Frame, 0, len(names))
	for _, name := range names {
		ord, ok := ParseFrameOrdinal(name)
		if !ok {
			continue
		}
		frames = append(frames, Frame{Ordinal: ord, Name: name})
	}
	sort.Slice(frames, func(a, b int) bool { return frames[a].Ordinal < frames[b].Ordinal })
	for i, f := range frames {
		if f.Ordinal != i+1 {
			return nil, fmt.Errorf("frame sequence broken at position %d: found ordinal %d (%s)", i+1, f.Ordinal, f.Name)
		}
	}
	return frames, nil
}

// FrameURL builds the public locator of a frame under prefix.
func FrameURL(prefix string, jobID uuid.UUID, name string) string {
	return path.Join("/", prefix, jobID.String(), name)
}
