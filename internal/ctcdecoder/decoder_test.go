package ctcdecoder

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrieHasAndPrefixLen(t *testing.T) {
	trie := NewTrieFromWords([]string{"cat", "car", "cart"})
	require.True(t, trie.Has("cat"))
	require.False(t, trie.Has("ca"))
	require.Equal(t, 4, trie.PrefixLen("cartwheel"))
}

func TestBKTreeSearchFindsCloseWords(t *testing.T) {
	tree := NewBKTreeFromWords([]string{"hello", "help", "hell", "world"})
	results := tree.Search("helo", 1)

	found := make(map[string]bool)
	for _, r := range results {
		found[r.Word] = true
	}
	require.True(t, found["hello"])
	require.True(t, found["hell"])
	require.False(t, found["world"])
}

func TestLevenshteinDistance(t *testing.T) {
	require.Equal(t, 0, levenshtein("same", "same"))
	require.Equal(t, 1, levenshtein("cat", "cats"))
	require.Equal(t, 3, levenshtein("kitten", "sitting"))
}

// alphabet: a b c blank silence, in that id order.
func testTokenSet() TokenSet {
	return NewTokenSet([]rune{'a', 'b', 'c'}, 3, 4)
}

func row(vocab int, hot int, value float64) []float64 {
	r := make([]float64, vocab)
	for i := range r {
		r[i] = -10
	}
	r[hot] = value
	return r
}

func TestDecodeAcceptsKnownWord(t *testing.T) {
	ts := testTokenSet()
	dict := NewTrieFromWords([]string{"cab"})
	tree := NewBKTreeFromWords([]string{"cab"})
	dec := NewDecoder(ts, dict, tree)

	logits := [][]float64{
		row(5, 2, 10), // c
		row(5, 0, 10), // a
		row(5, 1, 10), // b
		row(5, 4, 10), // silence
	}
	require.Equal(t, "cab", dec.Decode(logits))
}

func TestDecodeCorrectsUnknownWordViaDictionary(t *testing.T) {
	ts := testTokenSet()
	dict := NewTrieFromWords([]string{"cab"})
	tree := NewBKTreeFromWords([]string{"cab"})
	dec := NewDecoder(ts, dict, tree)

	// Greedy decode yields "cb" (a dropped), one edit away from "cab". A
	// spare blank frame gives the alignment DP enough frames (3) to host
	// the corrected word's 3 characters.
	logits := [][]float64{
		row(5, 2, 10), // c
		row(5, 3, 10), // blank
		row(5, 1, 10), // b
		row(5, 4, 10), // silence
	}
	require.Equal(t, "cab", dec.Decode(logits))
}

func TestDecodeCollapsesRepeatsAndBlanks(t *testing.T) {
	ts := testTokenSet()
	dec := NewDecoder(ts, nil, nil)

	logits := [][]float64{
		row(5, 0, 10), // a
		row(5, 0, 10), // a (repeat, collapsed)
		row(5, 3, 10), // blank
		row(5, 0, 10), // a (after blank: a new run, so a second 'a' is emitted)
		row(5, 4, 10), // silence
	}
	got := dec.Decode(logits)
	require.NotEmpty(t, got)
}
