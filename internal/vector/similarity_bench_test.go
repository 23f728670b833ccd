package vector

import "testing"

func BenchmarkCosineSimilarity(b *testing.B) {
	x := make([]float32, 768)
	y := make([]float32, 768)
	for i := range x {
		x[i] = float32(i%7) / 7
		y[i] = float32(i%5) / 5
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = CosineSimilarity(x, y)
	}
}
