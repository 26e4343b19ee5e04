// Package tokenizer implements the byte-level BPE tokenizer of the GPT-2
// vocabulary, which the H3 checkpoints share.
package tokenizer

import (
	"fmt"
	"regexp"
	"strings"
)

// EndOfText is the only special token in the GPT-2 vocabulary.
const EndOfText = "<|endoftext|>"

// GPT2 is a byte-level BPE tokenizer over a fixed vocabulary.
type GPT2 struct {
	encoder map[string]int
	decoder []string
	ranks   map[pair]int
	cache   map[string][]string
	byteEnc map[byte]string
	byteDec map[string]byte
	pattern *regexp.Regexp
	eosID   int
}

// New builds a tokenizer from a token-to-id vocabulary and the merge list in
// rank order.
func New(vocab map[string]int, merges []string) (*GPT2, error) {
	if len(vocab) == 0 {
		return nil, fmt.Errorf("empty vocabulary")
	}

	maxID := -1
	for _, id := range vocab {
		if id < 0 {
			return nil, fmt.Errorf("negative token id %d", id)
		}
		if id > maxID {
			maxID = id
		}
	}
	decoder := make([]string, maxID+1)
	for tok, id := range vocab {
		decoder[id] = tok
	}

	ranks := make(map[pair]int, len(merges))
	rank := 0
	for _, line := range merges {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, " ")
		if len(parts) != 2 {
			continue
		}
		p := pair{parts[0], parts[1]}
		if _, ok := ranks[p]; !ok {
			ranks[p] = rank
			rank++
		}
	}

	eosID, ok := vocab[EndOfText]
	if !ok {
		return nil, fmt.Errorf("vocabulary has no %s token", EndOfText)
	}

	byteEnc, byteDec := bytesToUnicode()
	return &GPT2{
		encoder: vocab,
		decoder: decoder,
		ranks:   ranks,
		cache:   make(map[string][]string),
		byteEnc: byteEnc,
		byteDec: byteDec,
		// Go regexp has no lookahead, so the original trailing-whitespace
		// branches collapse into a plain \s+ alternative.
		pattern: regexp.MustCompile(`'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+`),
		eosID:   eosID,
	}, nil
}

// VocabSize is the number of token ids, including any gaps.
func (t *GPT2) VocabSize() int { return len(t.decoder) }

// EOSID is the id of the end-of-text token.
func (t *GPT2) EOSID() int { return t.eosID }

// Encode maps text to token ids. Occurrences of the end-of-text token in the
// input encode to its id rather than being BPE-split.
func (t *GPT2) Encode(text string) ([]int, error) {
	var ids []int
	for i, part := range strings.Split(text, EndOfText) {
		if i > 0 {
			ids = append(ids, t.eosID)
		}
		for _, token := range t.pattern.FindAllString(part, -1) {
			for _, piece := range t.bpe(t.byteEncode(token)) {
				id, ok := t.encoder[piece]
				if !ok {
					return nil, fmt.Errorf("token %q not in vocabulary", piece)
				}
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// Decode maps token ids back to text. Special tokens are filtered out of the
// output.
func (t *GPT2) Decode(ids []int) (string, error) {
	var b []byte
	for _, id := range ids {
		if id < 0 || id >= len(t.decoder) {
			return "", fmt.Errorf("token id %d out of range", id)
		}
		tok := t.decoder[id]
		if tok == EndOfText {
			continue
		}
		for _, r := range tok {
			if by, ok := t.byteDec[string(r)]; ok {
				b = append(b, by)
			} else {
				b = append(b, string(r)...)
			}
		}
	}
	return string(b), nil
}

func (t *GPT2) byteEncode(s string) string {
	var b strings.Builder
	for _, by := range []byte(s) {
		b.WriteString(t.byteEnc[by])
	}
	return b.String()
}

// bpe merges the pre-tokenized word greedily by lowest merge rank until no
// mergeable pair remains.
func (t *GPT2) bpe(token string) []string {
	if v, ok := t.cache[token]; ok {
		return v
	}
	word := splitRunes(token)
	for len(word) > 1 {
		best := pair{}
		bestRank := -1
		for p := range wordPairs(word) {
			if rank, ok := t.ranks[p]; ok && (bestRank < 0 || rank < bestRank) {
				best, bestRank = p, rank
			}
		}
		if bestRank < 0 {
			break
		}
		word = mergePair(word, best)
	}
	t.cache[token] = word
	return word
}
