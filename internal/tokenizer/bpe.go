package tokenizer

type pair struct {
	a, b string
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func wordPairs(word []string) map[pair]struct{} {
	pairs := make(map[pair]struct{})
	for i := 1; i < len(word); i++ {
		pairs[pair{word[i-1], word[i]}] = struct{}{}
	}
	return pairs
}

func mergePair(word []string, p pair) []string {
	out := make([]string, 0, len(word))
	for i := 0; i < len(word); i++ {
		if i+1 < len(word) && word[i] == p.a && word[i+1] == p.b {
			out = append(out, word[i]+word[i+1])
			i++
			continue
		}
		out = append(out, word[i])
	}
	return out
}

// bytesToUnicode is the reversible byte-to-printable-rune mapping that makes
// byte-level BPE operate on strings. Printable latin bytes map to themselves;
// the rest are shifted past 255.
func bytesToUnicode() (map[byte]string, map[string]byte) {
	var bs []int
	for i := int('!'); i <= int('~'); i++ {
		bs = append(bs, i)
	}
	for i := int('¡'); i <= int('¬'); i++ {
		bs = append(bs, i)
	}
	for i := int('®'); i <= int('ÿ'); i++ {
		bs = append(bs, i)
	}

	seen := make(map[int]bool, len(bs))
	for _, v := range bs {
		seen[v] = true
	}
	cs := append([]int(nil), bs...)
	n := 0
	for b := 0; b < 256; b++ {
		if !seen[b] {
			bs = append(bs, b)
			cs = append(cs, 256+n)
			n++
		}
	}

	enc := make(map[byte]string, len(bs))
	dec := make(map[string]byte, len(bs))
	for i := range bs {
		s := string(rune(cs[i]))
		enc[byte(bs[i])] = s
		dec[s] = byte(bs[i])
	}
	return enc, dec
}
