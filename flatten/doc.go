// Package flatten composites a batch of straight-alpha RGBA layers into a
// single image, the way an image editor flattens a layer stack.
//
// Layers are stored in a [Tensor] of shape [N, H, W, C] with C >= 4. Channels
// 0 to 2 hold red, green and blue, channel 3 holds alpha and any further
// channels are ignored. Layer 0 is the bottom of the stack; every later layer
// is painted over the result of the layers before it using the Porter-Duff
// "over" operator.
//
// Transparent flattening keeps the usual alpha recurrence
// alpha' = alpha + a*(1-alpha) but weights colour with the new layer on top,
// so the last opaque layer wins. This intentionally differs from the
// flatten-by-alpha node formula, which weights the accumulator over the new
// layer and lets the first opaque layer win.
//
// The background decides what the stack is composited onto:
//
//	out, err := flatten.Flatten(batch, flatten.White)          // [1, H, W, 3]
//	out, err := flatten.Flatten(batch, flatten.Transparent)    // [1, H, W, 4]
//	out, err := flatten.Flatten(batch, flatten.Custom(0.2, 0.4, 0.6))
//
// No clamping is performed: values outside [0, 1] pass through the arithmetic
// unchanged. Inputs are never modified and the result never aliases them.
package flatten
