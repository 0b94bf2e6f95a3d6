package chromem

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/philippgille/chromem-go"
)

// DefaultDimensions is the vector size of HashEmbedding.
const DefaultDimensions = 512

// HashEmbedding returns an offline embedding function: a normalized bag of
// hashed lower-case words. It only captures lexical overlap.
func HashEmbedding(dims int) chromem.EmbeddingFunc {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return func(_ context.Context, text string) ([]float32, error) {
		vec := make([]float32, dims)
		words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, w := range words {
			h := fnv.New32a()
			_, _ = h.Write([]byte(w))
			vec[h.Sum32()%uint32(dims)]++
		}

		var norm float64
		for _, v := range vec {
			norm += float64(v * v)
		}
		if norm == 0 {
			// Empty text still needs a unit vector.
			vec[0] = 1
			return vec, nil
		}
		n := float32(math.Sqrt(norm))
		for i := range vec {
			vec[i] /= n
		}
		return vec, nil
	}
}
