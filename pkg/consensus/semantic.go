package consensus

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"hash/fnv"
	"log/slog"
	"math"
	"strings"

	"github.com/zen-systems/quorum/pkg/provider"
)

const fallbackDims = 256

// Semantic scores answers by cosine similarity of embedding vectors. Each
// instance carries a private embedding cache keyed by content hash, so it
// must be constructed fresh per request; a shared instance would grow
// without bound in a long-lived process.
type Semantic struct {
	embedder provider.Embedder
	model    string
	cache    map[string][]float64
	embeds   int
}

// NewSemantic creates a request-scoped semantic scorer.
func NewSemantic(embedder provider.Embedder, model string) *Semantic {
	return &Semantic{
		embedder: embedder,
		model:    model,
		cache:    make(map[string][]float64),
	}
}

// Threshold returns the semantic join threshold.
func (s *Semantic) Threshold() float64 { return 0.85 }

// EmbedCalls returns how many upstream embedding requests were made, for
// cost accounting.
func (s *Semantic) EmbedCalls() int { return s.embeds }

// Score returns the cosine similarity of the two answers' vectors. An
// embedding failure degrades to a deterministic character-trigram vector
// so clustering stays stable under upstream outage.
func (s *Semantic) Score(ctx context.Context, a, b string) float64 {
	return cosine(s.vector(ctx, a), s.vector(ctx, b))
}

func (s *Semantic) vector(ctx context.Context, text string) []float64 {
	key := contentHash(text)
	if vec, ok := s.cache[key]; ok {
		return vec
	}

	var vec []float64
	if s.embedder != nil {
		vectors, err := s.embedder.Embed(ctx, s.model, []string{text})
		if err == nil && len(vectors) == 1 && len(vectors[0]) > 0 {
			s.embeds++
			vec = vectors[0]
		} else if err != nil {
			slog.Warn("embedding unavailable, using trigram fallback", "error", err)
		}
	}
	if vec == nil {
		vec = trigramVector(text)
	}

	s.cache[key] = vec
	return vec
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// trigramVector hashes character trigrams of the lowercased text into a
// fixed-width count vector. It is a crude stand-in for an embedding but it
// is deterministic, which keeps grouping reproducible during an outage.
func trigramVector(text string) []float64 {
	vec := make([]float64, fallbackDims)
	lowered := strings.ToLower(strings.Join(strings.Fields(text), " "))
	runes := []rune(lowered)
	if len(runes) < 3 {
		h := fnv.New32a()
		h.Write([]byte(lowered))
		vec[h.Sum32()%fallbackDims]++
		return vec
	}
	for i := 0; i+3 <= len(runes); i++ {
		h := fnv.New32a()
		h.Write([]byte(string(runes[i : i+3])))
		vec[h.Sum32()%fallbackDims]++
	}
	return vec
}

func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, magA, magB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}
	for _, v := range a {
		magA += v * v
	}
	for _, v := range b {
		magB += v * v
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
