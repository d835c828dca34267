package domain

// Canonical capture resolution. Frames are rasterized to this size before
// upload and bounding boxes come back in these coordinates.
const (
	CaptureWidth  = 640
	CaptureHeight = 480
)

// BBox is a detected face region in capture-frame pixels.
type BBox struct {
	X, Y, W, H float64
}

// MatchResult is one frame's verdict from the matching backend. The wire
// payload carries either a percentage or a 0-1 similarity depending on the
// backend variant; results are normalized so Similarity is always 0-1.
type MatchResult struct {
	Matched    bool
	Name       string
	Similarity float64
	BBox       *BBox
}

// ConfidencePercent derives the display percentage from the similarity.
func (r MatchResult) ConfidencePercent() float64 {
	return r.Similarity * 100
}

// MatchSink consumes per-frame match results. Both matched and unmatched
// verdicts are delivered so consumers always reflect the latest frame.
type MatchSink interface {
	OnMatch(MatchResult)
}
