package similarity

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tinyVectors = `5 3
add 1 0 0
create 0.9 0.1 0
task 0 1 0
todo 0 0.95 0.05
delete -1 0 0
`

func loadTiny(t *testing.T) *Vectors {
	t.Helper()
	v, err := ReadVectors(strings.NewReader(tinyVectors))
	require.NoError(t, err)
	return v
}

func TestReadVectors(t *testing.T) {
	v := loadTiny(t)
	assert.Equal(t, 5, v.Len())
	assert.Equal(t, 3, v.Dim())
}

func TestReadVectors_NoHeader(t *testing.T) {
	v, err := ReadVectors(strings.NewReader("a 1 0\nb 0 1\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, v.Len())
	assert.Equal(t, 2, v.Dim())
}

func TestReadVectors_BadWidth(t *testing.T) {
	_, err := ReadVectors(strings.NewReader("2 3\na 1 0 0\nb 1 0\n"))
	assert.ErrorContains(t, err, "line 3")
}

func TestWordSimilarity(t *testing.T) {
	v := loadTiny(t)

	s, ok := v.WordSimilarity("Add", "add")
	assert.True(t, ok)
	assert.Equal(t, 1.0, s)

	s, ok = v.WordSimilarity("add", "task")
	assert.True(t, ok)
	assert.InDelta(t, 0, s, 1e-9)

	s, ok = v.WordSimilarity("add", "delete")
	assert.True(t, ok)
	assert.InDelta(t, -1, s, 1e-9)

	_, ok = v.WordSimilarity("add", "unknown")
	assert.False(t, ok)
}

func TestSentenceSimilarity_GreedyPairs(t *testing.T) {
	v := loadTiny(t)
	s, ok, err := v.Similarity(context.Background(), []string{"add", "task"}, []string{"create", "todo"})
	require.NoError(t, err)
	require.True(t, ok)
	addCreate, _ := v.WordSimilarity("add", "create")
	taskTodo, _ := v.WordSimilarity("task", "todo")
	assert.InDelta(t, (addCreate+taskTodo)/2, s, 1e-9)
}

func TestSentenceSimilarity_WordsUsedOnce(t *testing.T) {
	word := func(a, b string) (float64, bool) {
		if a == b {
			return 1, true
		}
		return 0.5, true
	}
	s, ok := SentenceSimilarity([]string{"x", "x", "y"}, []string{"x"}, word)
	require.True(t, ok)
	assert.Equal(t, 1.0, s)
}

func TestSentenceSimilarity_NoSignal(t *testing.T) {
	v := loadTiny(t)
	_, ok, err := v.Similarity(context.Background(), []string{"foo"}, []string{"bar"})
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok = SentenceSimilarity(nil, []string{"add"}, v.WordSimilarity)
	assert.False(t, ok)
}

func TestVectors_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := loadTiny(t).Similarity(ctx, []string{"add"}, []string{"add"})
	assert.ErrorIs(t, err, context.Canceled)
}
