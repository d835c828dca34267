package domain

import "image"

// FrameSource produces frames for the uplink sampler. Implementations own
// the underlying device or decoder; Close releases it.
type FrameSource interface {
	Frame() (image.Image, error)
	Close() error
}
