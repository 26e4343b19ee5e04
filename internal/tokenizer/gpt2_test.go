package tokenizer

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// testVocab covers the words "low" and " low" with the space byte mapped to
// its byte-level form.
func testVocab() (map[string]int, []string) {
	vocab := map[string]int{
		"l": 0, "o": 1, "w": 2, "Ġ": 3,
		"lo": 4, "low": 5,
		"Ġl": 6, "Ġlo": 7, "Ġlow": 8,
		EndOfText: 9,
	}
	merges := []string{
		"Ġ l",
		"l o",
		"Ġl o",
		"lo w",
		"Ġlo w",
	}
	return vocab, merges
}

func newTestTokenizer(t *testing.T) *GPT2 {
	t.Helper()
	vocab, merges := testVocab()
	tok, err := New(vocab, merges)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tok
}

func TestEncode(t *testing.T) {
	tok := newTestTokenizer(t)

	ids, err := tok.Encode("low low")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if want := []int{5, 8}; !reflect.DeepEqual(ids, want) {
		t.Errorf("Encode = %v, want %v", ids, want)
	}
}

func TestEncodeAppliesMergesInRankOrder(t *testing.T) {
	tok := newTestTokenizer(t)

	// "lo" alone stops after the first merge.
	ids, err := tok.Encode("lo")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if want := []int{4}; !reflect.DeepEqual(ids, want) {
		t.Errorf("Encode = %v, want %v", ids, want)
	}
}

func TestEncodeSpecialToken(t *testing.T) {
	tok := newTestTokenizer(t)

	ids, err := tok.Encode("low<|endoftext|>low")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if want := []int{5, 9, 5}; !reflect.DeepEqual(ids, want) {
		t.Errorf("Encode = %v, want %v", ids, want)
	}

	ids, err = tok.Encode("<|endoftext|>low")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if want := []int{9, 5}; !reflect.DeepEqual(ids, want) {
		t.Errorf("leading special: Encode = %v, want %v", ids, want)
	}
}

func TestEncodeUnknownToken(t *testing.T) {
	tok := newTestTokenizer(t)
	if _, err := tok.Encode("z"); err == nil {
		t.Error("Encode accepted a token outside the vocabulary")
	}
}

func TestDecode(t *testing.T) {
	tok := newTestTokenizer(t)

	text, err := tok.Decode([]int{5, 8})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if want := "low low"; text != want {
		t.Errorf("Decode = %q, want %q", text, want)
	}

	if _, err := tok.Decode([]int{100}); err == nil {
		t.Error("Decode accepted an out-of-range id")
	}
}

func TestDecodeFiltersSpecialTokens(t *testing.T) {
	tok := newTestTokenizer(t)

	// End-of-text ids anywhere in the sequence must not surface in the text.
	text, err := tok.Decode([]int{9, 5, 9, 8, 9})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if want := "low low"; text != want {
		t.Errorf("Decode = %q, want %q", text, want)
	}
	if strings.Contains(text, EndOfText) {
		t.Errorf("decoded text contains the special token: %q", text)
	}
}

func TestRoundTrip(t *testing.T) {
	tok := newTestTokenizer(t)
	for _, text := range []string{"low", " low", "low low low"} {
		ids, err := tok.Encode(text)
		if err != nil {
			t.Fatalf("Encode(%q): %v", text, err)
		}
		got, err := tok.Decode(ids)
		if err != nil {
			t.Fatalf("Decode(%v): %v", ids, err)
		}
		if got != text {
			t.Errorf("round trip %q -> %v -> %q", text, ids, got)
		}
	}
}

func TestEOSID(t *testing.T) {
	tok := newTestTokenizer(t)
	if tok.EOSID() != 9 {
		t.Errorf("EOSID = %d, want 9", tok.EOSID())
	}
	if tok.VocabSize() != 10 {
		t.Errorf("VocabSize = %d, want 10", tok.VocabSize())
	}
}

func TestNewRejectsBadVocab(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Error("New accepted an empty vocabulary")
	}
	if _, err := New(map[string]int{"a": 0}, nil); err == nil {
		t.Error("New accepted a vocabulary without the end-of-text token")
	}
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	vocabPath := filepath.Join(dir, "vocab.json")
	mergesPath := filepath.Join(dir, "merges.txt")

	vocabJSON := `{"l":0,"o":1,"w":2,"lo":3,"low":4,"<|endoftext|>":5}`
	if err := os.WriteFile(vocabPath, []byte(vocabJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	merges := "#version: 0.2\nl o\nlo w\n"
	if err := os.WriteFile(mergesPath, []byte(merges), 0o644); err != nil {
		t.Fatal(err)
	}

	tok, err := LoadFiles(vocabPath, mergesPath)
	if err != nil {
		t.Fatalf("LoadFiles: %v", err)
	}
	ids, err := tok.Encode("low")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if want := []int{4}; !reflect.DeepEqual(ids, want) {
		t.Errorf("Encode = %v, want %v", ids, want)
	}
}
