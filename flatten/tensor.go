package flatten

import (
	"fmt"
)

// Tensor is a dense row-major float32 array.
//
// A batch of layers is a rank-4 tensor with shape [N, H, W, C]; a single
// layer is a rank-3 tensor [H, W, C]. The last axis varies fastest, so the
// value of channel c of pixel (x, y) in layer i lives at
// Data[((i*H+y)*W+x)*C+c].
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewTensor allocates a zero-filled tensor with the given shape.
// Negative dimensions are treated as zero.
func NewTensor(shape ...int) *Tensor {
	s := make([]int, len(shape))
	n := 1
	for i, d := range shape {
		if d < 0 {
			d = 0
		}
		s[i] = d
		n *= d
	}
	return &Tensor{Shape: s, Data: make([]float32, n)}
}

// FromData wraps data in a tensor with the given shape. The slice is not
// copied. It returns a *ShapeError if len(data) does not match the shape.
func FromData(data []float32, shape ...int) (*Tensor, error) {
	t := &Tensor{Shape: append([]int(nil), shape...), Data: data}
	if n, ok := volume(t.Shape); !ok || n != len(data) {
		return nil, &ShapeError{Reason: ReasonData, Shape: t.Shape, Len: len(data)}
	}
	return t, nil
}

// volume returns the product of the dimensions. ok is false if any
// dimension is negative.
func volume(shape []int) (n int, ok bool) {
	n = 1
	for _, d := range shape {
		if d < 0 {
			return 0, false
		}
		n *= d
	}
	return n, true
}

// Rank returns the number of axes.
func (t *Tensor) Rank() int {
	return len(t.Shape)
}

// Len returns the number of values held by the tensor.
func (t *Tensor) Len() int {
	return len(t.Data)
}

// Dim returns the size of axis i, or 0 if the axis does not exist.
func (t *Tensor) Dim(i int) int {
	if i < 0 || i >= len(t.Shape) {
		return 0
	}
	return t.Shape[i]
}

// offset converts a multi-index into a position in Data.
func (t *Tensor) offset(idx []int) (int, error) {
	if len(idx) != len(t.Shape) {
		return 0, fmt.Errorf("%w: %d indices for rank %d", ErrIndexOutOfRange, len(idx), len(t.Shape))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= t.Shape[i] {
			return 0, fmt.Errorf("%w: index %d on axis %d of size %d", ErrIndexOutOfRange, v, i, t.Shape[i])
		}
		off = off*t.Shape[i] + v
	}
	return off, nil
}

// At returns the value at the given multi-index.
// It panics if the index is out of range.
func (t *Tensor) At(idx ...int) float32 {
	off, err := t.offset(idx)
	if err != nil {
		panic(err)
	}
	return t.Data[off]
}

// Set stores v at the given multi-index.
// It panics if the index is out of range.
func (t *Tensor) Set(v float32, idx ...int) {
	off, err := t.offset(idx)
	if err != nil {
		panic(err)
	}
	t.Data[off] = v
}

// Clone returns a deep copy of t.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{
		Shape: append([]int(nil), t.Shape...),
		Data:  append([]float32(nil), t.Data...),
	}
}

// Layer returns entry i of a batch as a rank-3 [H, W, C] tensor.
// The result shares storage with t and must be treated as read-only.
func (t *Tensor) Layer(i int) (*Tensor, error) {
	if len(t.Shape) != 4 {
		return nil, &ShapeError{Reason: ReasonRank, Shape: t.Shape}
	}
	if i < 0 || i >= t.Shape[0] {
		return nil, fmt.Errorf("%w: layer %d of %d", ErrIndexOutOfRange, i, t.Shape[0])
	}
	size := t.Shape[1] * t.Shape[2] * t.Shape[3]
	return &Tensor{
		Shape: []int{t.Shape[1], t.Shape[2], t.Shape[3]},
		Data:  t.Data[i*size : (i+1)*size : (i+1)*size],
	}, nil
}

// Stack concatenates layers along a new leading batch axis.
//
// Each layer is either a rank-3 [H, W, C] tensor or a rank-4 tensor whose
// batch axis has size 1. All layers must share H, W and C.
func Stack(layers ...*Tensor) (*Tensor, error) {
	if len(layers) == 0 {
		return nil, ErrNoLayers
	}

	var h, w, c int
	for i, l := range layers {
		lh, lw, lc, err := layerDims(l)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		if i == 0 {
			h, w, c = lh, lw, lc
			continue
		}
		if lh != h || lw != w || lc != c {
			return nil, fmt.Errorf("%w: layer %d is %dx%dx%d, layer 0 is %dx%dx%d",
				ErrLayerMismatch, i, lw, lh, lc, w, h, c)
		}
	}

	size := h * w * c
	out := NewTensor(len(layers), h, w, c)
	for i, l := range layers {
		copy(out.Data[i*size:(i+1)*size], l.Data)
	}
	return out, nil
}

// layerDims returns the height, width and channel count of a single layer.
func layerDims(l *Tensor) (h, w, c int, err error) {
	if l == nil {
		return 0, 0, 0, &ShapeError{Reason: ReasonRank}
	}
	switch {
	case len(l.Shape) == 3:
		h, w, c = l.Shape[0], l.Shape[1], l.Shape[2]
	case len(l.Shape) == 4 && l.Shape[0] == 1:
		h, w, c = l.Shape[1], l.Shape[2], l.Shape[3]
	default:
		return 0, 0, 0, &ShapeError{Reason: ReasonRank, Shape: l.Shape}
	}
	if n, ok := volume(l.Shape); !ok || n != len(l.Data) {
		return 0, 0, 0, &ShapeError{Reason: ReasonData, Shape: l.Shape, Len: len(l.Data)}
	}
	return h, w, c, nil
}
