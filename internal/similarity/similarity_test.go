package similarity

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func payload(b byte, n int) []byte {
	return bytes.Repeat([]byte{b}, n)
}

func TestCompare(t *testing.T) {
	t.Run("identical payloads match", func(t *testing.T) {
		p := payload('A', 1000)
		assert.Equal(t, Match, Compare(p, append([]byte(nil), p...)))
	})

	t.Run("absent payloads are inconclusive", func(t *testing.T) {
		p := payload('A', 1000)
		assert.Equal(t, Inconclusive, Compare(nil, p))
		assert.Equal(t, Inconclusive, Compare(p, nil))
		assert.Equal(t, Inconclusive, Compare(nil, nil))
	})

	t.Run("size difference over five percent mismatches", func(t *testing.T) {
		assert.Equal(t, Mismatch, Compare(payload('A', 1000), payload('A', 900)))
	})

	t.Run("equal size with different trailing window mismatches", func(t *testing.T) {
		assert.Equal(t, Mismatch, Compare(payload('A', 1000), payload('B', 1000)))
	})

	t.Run("similar size with identical trailing window matches", func(t *testing.T) {
		// Same last 100 bytes, different earlier content.
		ref := append(payload('A', 900), payload('Z', 100)...)
		cand := append(payload('B', 900), payload('Z', 100)...)
		assert.Equal(t, Match, Compare(ref, cand))
	})

	t.Run("window capped at 500 bytes", func(t *testing.T) {
		// 10000-byte payloads: window is 500, so a difference 600 bytes from
		// the end is invisible to the heuristic.
		ref := append(payload('A', 9400), payload('Z', 600)...)
		cand := append(payload('B', 9400), payload('Z', 600)...)
		assert.Equal(t, Match, Compare(ref, cand))
	})

	t.Run("tiny payloads are inconclusive", func(t *testing.T) {
		// 300-byte payloads give a 30-byte window, below the 50-byte floor.
		assert.Equal(t, Inconclusive, Compare(payload('A', 300), payload('B', 300)))
	})
}

func TestVerdictBool(t *testing.T) {
	m := Match.Bool()
	if assert.NotNil(t, m) {
		assert.True(t, *m)
	}
	mm := Mismatch.Bool()
	if assert.NotNil(t, mm) {
		assert.False(t, *mm)
	}
	assert.Nil(t, Inconclusive.Bool())
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "match", Match.String())
	assert.Equal(t, "mismatch", Mismatch.String())
	assert.Equal(t, "inconclusive", Inconclusive.String())
}
