package flatten

import (
	"math/rand"
	"testing"
)

func benchmarkFlatten(b *testing.B, bg Background, layers int) {
	rng := rand.New(rand.NewSource(1))
	in := randomBatch(rng, layers, 512, 512, -1)
	b.SetBytes(int64(len(in.Data) * 4))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Flatten(in, bg); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFlattenTransparent4(b *testing.B)  { benchmarkFlatten(b, Transparent, 4) }
func BenchmarkFlattenWhite4(b *testing.B)        { benchmarkFlatten(b, White, 4) }
func BenchmarkFlattenTransparent16(b *testing.B) { benchmarkFlatten(b, Transparent, 16) }
