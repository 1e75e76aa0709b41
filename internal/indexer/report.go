package indexer

import (
	"math"
	"sort"
	"unicode/utf8"
)

// tokensPerRune is an approximation for token counting (4 chars per token).
const tokensPerRune = 4.0

// computeTokenStats estimates per-chunk token counts and summarizes them.
// Token counts are approximated from rune counts; the stats exist to spot
// chunking regressions (e.g. a chunk blowing past the embedding context),
// not to bill anyone.
func computeTokenStats(chunks []Chunk) ChunkTokenStats {
	if len(chunks) == 0 {
		return ChunkTokenStats{}
	}

	counts := make([]int, 0, len(chunks))
	for _, chunk := range chunks {
		runeCount := utf8.RuneCountInString(chunk.Text)
		tokenCount := int(math.Round(float64(runeCount) / tokensPerRune))
		if tokenCount < 1 {
			tokenCount = 1
		}
		counts = append(counts, tokenCount)
	}

	sorted := make([]int, len(counts))
	copy(sorted, counts)
	sort.Ints(sorted)

	sum := 0
	for _, c := range counts {
		sum += c
	}
	mean := float64(sum) / float64(len(counts))

	p95Index := int(math.Ceil(float64(len(sorted)) * 0.95))
	if p95Index >= len(sorted) {
		p95Index = len(sorted) - 1
	}

	return ChunkTokenStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: math.Round(mean*100) / 100,
		P95:  sorted[p95Index],
	}
}
