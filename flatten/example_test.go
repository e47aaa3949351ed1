package flatten_test

import (
	"fmt"

	"github.com/pixelworldai/alphaflatten/flatten"
)

// twoLayers returns a 1x1 stack: half-transparent red under
// half-transparent blue.
func twoLayers() *flatten.Tensor {
	batch := flatten.NewTensor(2, 1, 1, 4)
	batch.Set(1, 0, 0, 0, 0)
	batch.Set(0.5, 0, 0, 0, 3)
	batch.Set(1, 1, 0, 0, 2)
	batch.Set(0.5, 1, 0, 0, 3)
	return batch
}

// ExampleFlatten composites a stack onto an opaque white background.
func ExampleFlatten() {
	out, err := flatten.Flatten(twoLayers(), flatten.White)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Println("shape:", out.Shape)
	fmt.Printf("rgb: %.3f %.3f %.3f\n", out.Data[0], out.Data[1], out.Data[2])
	// Output:
	// shape: [1 1 1 3]
	// rgb: 0.500 0.250 0.750
}

// Example_transparent keeps the accumulated alpha.
func Example_transparent() {
	out, err := flatten.Flatten(twoLayers(), flatten.Transparent)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Println("shape:", out.Shape)
	fmt.Printf("rgba: %.3f %.3f %.3f %.3f\n", out.Data[0], out.Data[1], out.Data[2], out.Data[3])
	// Output:
	// shape: [1 1 1 4]
	// rgba: 0.333 0.000 0.667 0.750
}

// ExampleParseColor builds a custom background from a hex string.
func ExampleParseColor() {
	bg, err := flatten.ParseColor("#336699")
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Println(bg, bg.Opaque())
	// Output: custom(0.2,0.4,0.6) true
}

// ExampleStack assembles a batch from separate layers.
func ExampleStack() {
	plate := flatten.NewTensor(4, 4, 4)
	fx := flatten.NewTensor(1, 4, 4, 4)
	batch, err := flatten.Stack(plate, fx)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Println(batch.Shape)
	// Output: [2 4 4 4]
}
