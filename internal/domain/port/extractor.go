package port

import (
	"context"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
)

type ExtractionRequest struct {
	VideoPath string
	OutputDir string
	Mode      entity.Mode
	Threshold float64
}

type FrameExtractionResult struct {
	VideoDuration float64
	// Output is the tool's diagnostic output, kept for failure reporting.
	Output string
}

// FrameExtractor runs the external media tool once. It writes frames named after
// entity.FramePattern into OutputDir and returns entity.ErrExternalTool on failure.
type FrameExtractor interface {
	ExtractFrames(ctx context.Context, req ExtractionRequest) (*FrameExtractionResult, error)
}
