package flatten

import (
	"errors"
	"fmt"
)

// Flatten errors
var (
	ErrRankMismatch      = errors.New("flatten: rank mismatch")
	ErrMissingAlpha      = errors.New("flatten: images must have an alpha channel")
	ErrDataLength        = errors.New("flatten: data length does not match shape")
	ErrUnknownBackground = errors.New("flatten: unknown background color")
	ErrNoLayers          = errors.New("flatten: no layers to stack")
	ErrLayerMismatch     = errors.New("flatten: layers have mismatched shapes")
	ErrIndexOutOfRange   = errors.New("flatten: index out of range")
)

// ShapeReason identifies which shape check failed.
type ShapeReason int

const (
	// ReasonRank means the input is not a 4-axis [N, H, W, C] tensor.
	ReasonRank ShapeReason = iota
	// ReasonAlpha means the channel axis has fewer than 4 entries.
	ReasonAlpha
	// ReasonData means the backing slice does not hold exactly the number
	// of values described by the shape, or a dimension is negative.
	ReasonData
)

// String returns a short name for the reason.
func (r ShapeReason) String() string {
	switch r {
	case ReasonRank:
		return "rank mismatch"
	case ReasonAlpha:
		return "missing alpha"
	case ReasonData:
		return "data length"
	default:
		return fmt.Sprintf("ShapeReason(%d)", int(r))
	}
}

// ShapeError is returned by Flatten when the input tensor has the wrong
// shape. It wraps one of ErrRankMismatch, ErrMissingAlpha or ErrDataLength.
type ShapeError struct {
	Reason ShapeReason
	Shape  []int
	Len    int
}

func (e *ShapeError) Error() string {
	switch e.Reason {
	case ReasonRank:
		return fmt.Sprintf("flatten: expected a batch of images with shape [batch, height, width, channels], got shape %v", e.Shape)
	case ReasonAlpha:
		return fmt.Sprintf("flatten: images must have an alpha channel (RGBA), got shape %v", e.Shape)
	default:
		return fmt.Sprintf("flatten: shape %v does not match %d values", e.Shape, e.Len)
	}
}

// Unwrap returns the sentinel error for the failed check.
func (e *ShapeError) Unwrap() error {
	switch e.Reason {
	case ReasonRank:
		return ErrRankMismatch
	case ReasonAlpha:
		return ErrMissingAlpha
	default:
		return ErrDataLength
	}
}
