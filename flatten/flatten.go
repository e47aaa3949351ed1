package flatten

// Flatten composites every layer of images, in batch order, onto bg.
//
// images must have shape [N, H, W, C] with C >= 4; the shape is checked
// before anything is allocated and a *ShapeError is returned on failure.
// The result is a new tensor of shape [1, H, W, 4] for Transparent and
// [1, H, W, 3] for every opaque background.
//
// An empty batch (N == 0) is valid and yields the background itself: the
// fill colour for opaque backgrounds, or an all-zero image for Transparent.
func Flatten(images *Tensor, bg Background) (*Tensor, error) {
	if err := validateBatch(images); err != nil {
		return nil, err
	}

	if bg.Opaque() {
		return flattenOpaque(images, bg), nil
	}
	return flattenTransparent(images), nil
}

// validateBatch checks the rank, the alpha channel and the data length.
func validateBatch(images *Tensor) error {
	if images == nil {
		return &ShapeError{Reason: ReasonRank}
	}
	if len(images.Shape) != 4 {
		return &ShapeError{Reason: ReasonRank, Shape: images.Shape, Len: len(images.Data)}
	}
	if images.Shape[3] < 4 {
		return &ShapeError{Reason: ReasonAlpha, Shape: images.Shape, Len: len(images.Data)}
	}
	if n, ok := volume(images.Shape); !ok || n != len(images.Data) {
		return &ShapeError{Reason: ReasonData, Shape: images.Shape, Len: len(images.Data)}
	}
	return nil
}

// flattenTransparent accumulates the stack over a transparent canvas.
//
// Each layer goes over the running result:
//
//	alpha' = alpha + a*(1-alpha)
//	rgb'   = (c*a + rgb*alpha*(1-a)) / alpha'   where alpha' > 0
//
// Where alpha' is zero both the layer and the accumulator are fully
// transparent and rgb is left as it was.
func flattenTransparent(images *Tensor) *Tensor {
	n, h, w, c := images.Shape[0], images.Shape[1], images.Shape[2], images.Shape[3]
	out := NewTensor(1, h, w, 4)
	layerSize := h * w * c
	src := images.Data
	dst := out.Data

	parallelRange(h, func(y0, y1 int) {
		for p := y0 * w; p < y1*w; p++ {
			var r, g, b, alpha float32
			for i := 0; i < n; i++ {
				px := src[i*layerSize+p*c : i*layerSize+p*c+4 : i*layerSize+p*c+4]
				a := px[3]
				next := alpha + a*(1-alpha)
				if next > 0 {
					under := alpha * (1 - a)
					r = (px[0]*a + r*under) / next
					g = (px[1]*a + g*under) / next
					b = (px[2]*a + b*under) / next
				}
				alpha = next
			}
			o := dst[p*4 : p*4+4 : p*4+4]
			o[0], o[1], o[2], o[3] = r, g, b, alpha
		}
	})
	return out
}

// flattenOpaque blends the stack onto an opaque fill. The destination is
// always opaque, so no running alpha is kept: each layer replaces the
// result in proportion to its own alpha.
func flattenOpaque(images *Tensor, bg Background) *Tensor {
	n, h, w, c := images.Shape[0], images.Shape[1], images.Shape[2], images.Shape[3]
	out := NewTensor(1, h, w, 3)
	layerSize := h * w * c
	src := images.Data
	dst := out.Data
	br, bgG, bb := bg.RGB()

	parallelRange(h, func(y0, y1 int) {
		for p := y0 * w; p < y1*w; p++ {
			r, g, b := br, bgG, bb
			for i := 0; i < n; i++ {
				px := src[i*layerSize+p*c : i*layerSize+p*c+4 : i*layerSize+p*c+4]
				a := px[3]
				keep := 1 - a
				r = r*keep + px[0]*a
				g = g*keep + px[1]*a
				b = b*keep + px[2]*a
			}
			o := dst[p*3 : p*3+3 : p*3+3]
			o[0], o[1], o[2] = r, g, b
		}
	})
	return out
}
