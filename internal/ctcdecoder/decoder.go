package ctcdecoder

import (
	"math"
	"strings"
)

// TokenSet maps a CTC vocabulary's character alphabet to row indices in the
// per-frame probability matrix the acoustic model emits, plus the two
// reserved ids every CTC vocabulary carries: the repeat-separator blank and
// the word-separator silence token.
type TokenSet struct {
	IDToChar  []rune
	CharToID  map[rune]int
	BlankID   int
	SilenceID int
}

// NewTokenSet builds a TokenSet from an ordered alphabet plus the blank and
// silence characters' positions in that alphabet.
func NewTokenSet(alphabet []rune, blankID, silenceID int) TokenSet {
	ts := TokenSet{IDToChar: alphabet, CharToID: make(map[rune]int, len(alphabet)), BlankID: blankID, SilenceID: silenceID}
	for i, r := range alphabet {
		ts.CharToID[r] = i
	}
	return ts
}

// Decoder is a dictionary-assisted CTC decoder: Decode walks a log-
// probability matrix frame by frame, greedily segments it into words, and
// corrects any word absent from the dictionary using the BK-tree plus a
// dynamic-programming CTC alignment score.
type Decoder struct {
	tokens     TokenSet
	dictionary *Trie
	searchTree *BKTree
}

// NewDecoder returns a Decoder over tokens, accepting words present in
// dictionary as-is and correcting unknown ones via searchTree.
func NewDecoder(tokens TokenSet, dictionary *Trie, searchTree *BKTree) *Decoder {
	return &Decoder{tokens: tokens, dictionary: dictionary, searchTree: searchTree}
}

type wordSpan struct {
	tokens     []int // token ids, in frame order, collapsed
	startFrame int
	endFrame   int // inclusive
}

// Decode returns the transcribed text for logits, a [numFrames][vocabSize]
// matrix of raw (pre-softmax) scores.
func (d *Decoder) Decode(logits [][]float64) string {
	if len(logits) == 0 {
		return ""
	}
	logProbs := logSoftmaxRows(logits)

	spans := d.segmentGreedy(logProbs)

	words := make([]string, 0, len(spans))
	for _, span := range spans {
		if len(span.tokens) == 0 {
			continue
		}
		words = append(words, d.wordFor(logProbs, span))
	}
	return strings.Join(words, " ")
}

// segmentGreedy walks the best path (per-frame argmax) and splits it into
// word spans on blank runs and the explicit silence token, collapsing
// immediately-repeated tokens the way standard CTC decoding does.
func (d *Decoder) segmentGreedy(logProbs [][]float64) []wordSpan {
	var spans []wordSpan
	var cur wordSpan
	cur.startFrame = 0
	lastEmitted := -1

	finish := func(lastWordFrame, nextStart int) {
		if len(cur.tokens) > 0 {
			cur.endFrame = lastWordFrame
			spans = append(spans, cur)
		}
		cur = wordSpan{startFrame: nextStart}
		lastEmitted = -1
	}

	for i, row := range logProbs {
		best := argmax(row)
		switch {
		case best == d.tokens.SilenceID:
			finish(i-1, i+1)
		case best == d.tokens.BlankID:
			lastEmitted = -1
		default:
			if best != lastEmitted {
				cur.tokens = append(cur.tokens, best)
			}
			lastEmitted = best
		}
	}
	finish(len(logProbs)-1, len(logProbs))
	return spans
}

// wordFor returns the accepted text for span: the greedy word if it's a
// known dictionary entry, otherwise the best-scoring BK-tree correction,
// falling back to the raw greedy decode only when no correction is found.
// The greedy word itself is not scored against the corrections.
func (d *Decoder) wordFor(logProbs [][]float64, span wordSpan) string {
	greedy := d.textOf(span.tokens)
	if d.dictionary != nil && d.dictionary.Has(greedy) {
		return greedy
	}

	maxDist := 2
	if len(greedy) <= 3 {
		maxDist = 1
	}
	corrected, ok := d.correctWord(logProbs, span, maxDist)
	if !ok {
		return greedy
	}
	return corrected
}

// correctWord finds the dictionary word within maxDist of greedy that best
// explains the frame span under the CTC alignment DP, per the reference
// decoder's _correct_word.
func (d *Decoder) correctWord(logProbs [][]float64, span wordSpan, maxDist int) (string, bool) {
	if d.searchTree == nil {
		return "", false
	}
	greedy := d.textOf(span.tokens)
	candidates := d.searchTree.Search(greedy, maxDist)
	if len(candidates) == 0 {
		return "", false
	}

	bestWord := ""
	bestLogProb := math.Inf(-1)
	found := false
	for _, cand := range candidates {
		tokens, ok := d.tokenize(cand.Word)
		if !ok {
			continue
		}
		lp := d.alignmentLogProb(logProbs, tokens, span.startFrame, span.endFrame)
		if math.IsInf(lp, -1) {
			continue
		}
		if !found || lp > bestLogProb {
			bestWord, bestLogProb, found = cand.Word, lp, true
		}
	}
	return bestWord, found
}

// alignmentLogProb scores how well tokens align to logProbs[startIdx:endIdx+1]
// under a monotonic CTC alignment that may insert blanks between tokens.
// This is the Go port of the reference decoder's
// _get_log_probability_of_best_configuration.
func (d *Decoder) alignmentLogProb(logProbs [][]float64, tokens []int, startIdx, endIdx int) float64 {
	n := endIdx - startIdx + 1
	if len(tokens) > n || n <= 0 {
		return math.Inf(-1)
	}

	f := make([][]float64, len(tokens)+1)
	for i := range f {
		f[i] = make([]float64, n+1)
	}

	for j := 1; j <= n; j++ {
		f[0][j] = f[0][j-1] + logProbs[startIdx+j-1][d.tokens.BlankID]
	}

	for i := 1; i <= len(tokens); i++ {
		for j := i; j <= n; j++ {
			takeCur := logProbs[startIdx+j-1][tokens[i-1]]
			blank := logProbs[startIdx+j-1][d.tokens.BlankID]
			if i == j {
				f[i][j] = f[i-1][j-1] + takeCur
			} else {
				f[i][j] = math.Max(f[i][j-1]+blank, f[i-1][j-1]+takeCur)
			}
		}
	}
	return f[len(tokens)][n]
}

func (d *Decoder) textOf(tokenIDs []int) string {
	var sb strings.Builder
	for _, id := range tokenIDs {
		if id >= 0 && id < len(d.tokens.IDToChar) {
			sb.WriteRune(d.tokens.IDToChar[id])
		}
	}
	return sb.String()
}

func (d *Decoder) tokenize(word string) ([]int, bool) {
	ids := make([]int, 0, len(word))
	for _, r := range word {
		id, ok := d.tokens.CharToID[r]
		if !ok {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

func argmax(row []float64) int {
	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}
	return best
}

// logSoftmaxRows applies log-softmax independently to each row of logits.
func logSoftmaxRows(logits [][]float64) [][]float64 {
	out := make([][]float64, len(logits))
	for i, row := range logits {
		out[i] = logSoftmax(row)
	}
	return out
}

func logSoftmax(row []float64) []float64 {
	maxVal := math.Inf(-1)
	for _, v := range row {
		if v > maxVal {
			maxVal = v
		}
	}
	sumExp := 0.0
	for _, v := range row {
		sumExp += math.Exp(v - maxVal)
	}
	logSumExp := maxVal + math.Log(sumExp)
	out := make([]float64, len(row))
	for i, v := range row {
		out[i] = v - logSumExp
	}
	return out
}
