package parfun_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parfungo/parfun"
	"github.com/parfungo/parfun/backend"
	"github.com/parfungo/parfun/engine"
	"github.com/parfungo/parfun/partition"
	"github.com/parfungo/parfun/split"
)

// countWords mirrors the original library's count_words example: lowercase,
// strip punctuation, tally. Grounded on original_source/examples/count_words.py.
func countWords(lines []string) map[string]int {
	counts := make(map[string]int)
	for _, line := range lines {
		for _, word := range strings.Fields(line) {
			word = strings.ToLower(strings.TrimFunc(word, func(r rune) bool {
				return !unicode.IsLetter(r)
			}))
			if word == "" {
				continue
			}
			counts[word]++
		}
	}
	return counts
}

func sumWordCounts(acc, partial map[string]int) map[string]int {
	for word, n := range partial {
		acc[word] += n
	}
	return acc
}

type linesGenerator struct {
	inner *partition.SliceGenerator[string]
}

func (g linesGenerator) Next(n int) (any, int, bool) {
	chunk, size, ok := g.inner.Next(n)
	return chunk, size, ok
}

func (g linesGenerator) Len() int { return g.inner.Len() }

func wordCountSplitter() split.Splitter {
	return split.PerArgument(map[string]split.ArgPartitioner{
		"text": func(value any) (partition.Generator[any], error) {
			return linesGenerator{partition.FromSlice(value.([]string))}, nil
		},
	})
}

func TestCountWordsParallel(t *testing.T) {
	text := []string{
		"To be, or not to be,",
		"that is the question",
		"Whether tis nobler in the mind to suffer",
	}

	b, err := backend.DefaultRegistry().New("local_multiprocessing", map[string]any{"max_workers": 2})
	require.NoError(t, err)
	defer b.Close()

	result, err := parfun.Parallel(
		context.Background(),
		parfun.NamedArguments{Keyed: map[string]any{"text": text}},
		engine.Options{
			Splitter: wordCountSplitter(),
			Compute: func(ctx context.Context, chunk split.NamedArguments, carried split.NamedArguments) (any, error) {
				return countWords(chunk.Keyed["text"].([]string)), nil
			},
			Combiner: func() engine.Combiner {
				return &wordCountCombiner{acc: make(map[string]int)}
			},
			InitialPartitionSize: engine.FixedSize(1),
			FixedPartitionSize:   engine.FixedSize(1),
			Backend:              b,
		},
	)
	require.NoError(t, err)

	counts := result.(map[string]int)
	assert.Equal(t, 3, counts["to"])
	assert.Equal(t, 2, counts["be"])
	assert.Equal(t, 1, counts["question"])
}

func TestCountWordsFromConfigFile(t *testing.T) {
	text := []string{
		"To be, or not to be,",
		"that is the question",
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "parfun.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend:
  name: local_single_process
`), 0o644))

	compute := func(ctx context.Context, chunk split.NamedArguments, carried split.NamedArguments) (any, error) {
		return countWords(chunk.Keyed["text"].([]string)), nil
	}
	combiner := func() engine.Combiner {
		return &wordCountCombiner{acc: make(map[string]int)}
	}

	fn, err := parfun.NewFuncFromConfig(path, wordCountSplitter(), compute, combiner)
	require.NoError(t, err)

	result, err := fn.Call(
		context.Background(),
		parfun.NamedArguments{Keyed: map[string]any{"text": text}},
	)
	require.NoError(t, err)

	counts := result.(map[string]int)
	assert.Equal(t, 2, counts["to"])
	assert.Equal(t, 2, counts["be"])
}

type wordCountCombiner struct {
	acc map[string]int
}

func (c *wordCountCombiner) Add(partial any) {
	c.acc = sumWordCounts(c.acc, partial.(map[string]int))
}

func (c *wordCountCombiner) Result() any { return c.acc }
