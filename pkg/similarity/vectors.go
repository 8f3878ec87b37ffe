package similarity

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Vectors is a local oracle over word vectors in the word2vec text format:
// an optional "<count> <dim>" header followed by one "<word> <v1> ... <vn>"
// line per word.
type Vectors struct {
	dim  int
	vecs map[string][]float64
}

// LoadVectors reads a word2vec text file.
func LoadVectors(path string) (*Vectors, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vectors: %w", err)
	}
	defer f.Close()
	return ReadVectors(f)
}

// ReadVectors parses word2vec text vectors. Vectors are normalized so that
// similarity is a dot product.
func ReadVectors(r io.Reader) (*Vectors, error) {
	v := &Vectors{vecs: make(map[string][]float64)}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if line == 1 && len(fields) == 2 {
			if _, err := strconv.Atoi(fields[0]); err == nil {
				dim, err := strconv.Atoi(fields[1])
				if err != nil {
					return nil, fmt.Errorf("vectors line 1: bad dimension %q", fields[1])
				}
				v.dim = dim
				continue
			}
		}
		if v.dim == 0 {
			v.dim = len(fields) - 1
		}
		if len(fields)-1 != v.dim {
			return nil, fmt.Errorf("vectors line %d: want %d values, got %d", line, v.dim, len(fields)-1)
		}
		vec := make([]float64, v.dim)
		norm := 0.0
		for i, s := range fields[1:] {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("vectors line %d: %w", line, err)
			}
			vec[i] = f
			norm += f * f
		}
		if norm = math.Sqrt(norm); norm > 0 {
			for i := range vec {
				vec[i] /= norm
			}
		}
		v.vecs[fields[0]] = vec
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read vectors: %w", err)
	}
	return v, nil
}

// Len returns the vocabulary size.
func (v *Vectors) Len() int { return len(v.vecs) }

// Dim returns the vector dimension.
func (v *Vectors) Dim() int { return v.dim }

// WordSimilarity is 1 for words equal ignoring case, the cosine of their
// vectors when both are known, and no signal otherwise.
func (v *Vectors) WordSimilarity(a, b string) (float64, bool) {
	if strings.EqualFold(a, b) {
		return 1, true
	}
	va, ok := v.vecs[a]
	if !ok {
		return 0, false
	}
	vb, ok := v.vecs[b]
	if !ok {
		return 0, false
	}
	dot := 0.0
	for i := range va {
		dot += va[i] * vb[i]
	}
	return dot, true
}

// Similarity implements Oracle.
func (v *Vectors) Similarity(ctx context.Context, newWords, oldWords []string) (float64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	s, ok := SentenceSimilarity(newWords, oldWords, v.WordSimilarity)
	return s, ok, nil
}
