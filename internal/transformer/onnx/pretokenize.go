package onnx

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/normalizer"
	"github.com/sugarme/tokenizer/pretokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// RE2 has no lookahead; Llama 3 style split patterns carry this alternative.
const wsLookahead = `|\s+(?!\S)`

// buildPreTokenizer mirrors pretrained.CreatePreTokenizer for the shapes Go's
// regexp cannot compile directly, and delegates everything else.
func buildPreTokenizer(cfg map[string]any) (tk.PreTokenizer, error) {
	typ, _ := cfg["type"].(string)
	switch typ {
	case "Sequence":
		items, _ := cfg["pretokenizers"].([]any)
		steps := make([]tk.PreTokenizer, 0, len(items))
		for _, it := range items {
			m, ok := it.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("bad pre_tokenizer entry %v", it)
			}
			step, err := buildPreTokenizer(m)
			if err != nil {
				return nil, err
			}
			steps = append(steps, step)
		}
		return pretokenizer.NewSequence(steps), nil
	case "Split":
		return buildSplit(cfg)
	case "ByteLevel":
		// use_regex=false means the input was already split upstream
		if useRegex, ok := cfg["use_regex"].(bool); ok && !useRegex {
			addPrefix, _ := cfg["add_prefix_space"].(bool)
			return &byteLevel{addPrefixSpace: addPrefix}, nil
		}
		return pretrained.CreatePreTokenizer(cfg)
	default:
		return pretrained.CreatePreTokenizer(cfg)
	}
}

func buildSplit(cfg map[string]any) (tk.PreTokenizer, error) {
	patternCfg, _ := cfg["pattern"].(map[string]any)
	var pattern normalizer.Pattern
	if expr, ok := patternCfg["Regex"].(string); ok {
		p, err := newSplitPattern(expr)
		if err != nil {
			return nil, err
		}
		pattern = p
	} else if s, ok := patternCfg["String"].(string); ok {
		pattern = normalizer.NewStringPattern(s)
	} else {
		return nil, fmt.Errorf("unsupported split pattern %v", patternCfg)
	}

	var behavior normalizer.SplitDelimiterBehavior
	switch b, _ := cfg["behavior"].(string); b {
	case "Removed":
		behavior = normalizer.RemovedBehavior
	case "Isolated":
		behavior = normalizer.IsolatedBehavior
	case "MergedWithNext":
		behavior = normalizer.MergedWithNextBehavior
	case "MergedWithPrevious":
		behavior = normalizer.MergedWithPreviousBehavior
	case "Contiguous":
		behavior = normalizer.ContiguousBehavior
	default:
		return nil, fmt.Errorf("unsupported split behavior %q", b)
	}

	invert, _ := cfg["invert"].(bool)
	return pretokenizer.NewSplit(pattern, behavior, invert), nil
}

// newSplitPattern compiles expr, rewriting a trailing-whitespace lookahead
// into an equivalent post-match adjustment when RE2 rejects it.
func newSplitPattern(expr string) (normalizer.Pattern, error) {
	if _, err := regexp.Compile(expr); err == nil {
		return normalizer.NewRegexpPattern(expr), nil
	} else if !strings.Contains(expr, wsLookahead) {
		return nil, fmt.Errorf("split pattern: %w", err)
	}
	re, err := regexp.Compile(strings.Replace(expr, wsLookahead, "", 1))
	if err != nil {
		return nil, fmt.Errorf("split pattern: %w", err)
	}
	return &lookaheadPattern{re: re}, nil
}

// lookaheadPattern splits like `\s+(?!\S)|\s+`: a run of spaces followed by a
// word leaves its last space to that word.
type lookaheadPattern struct {
	re *regexp.Regexp
}

var _ normalizer.Pattern = (*lookaheadPattern)(nil)

func (p *lookaheadPattern) FindMatches(inside string) []normalizer.OffsetsMatch {
	if inside == "" {
		return []normalizer.OffsetsMatch{{Offsets: []int{0, 0}, Match: false}}
	}

	var subs []normalizer.OffsetsMatch
	prev, pos := 0, 0
	for pos < len(inside) {
		loc := p.re.FindStringIndex(inside[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if start == end {
			_, size := utf8.DecodeRuneInString(inside[end:])
			pos = end + size
			continue
		}
		end = releaseLastSpace(inside, start, end)

		if start > prev {
			subs = append(subs, normalizer.OffsetsMatch{Offsets: []int{prev, start}, Match: false})
		}
		subs = append(subs, normalizer.OffsetsMatch{Offsets: []int{start, end}, Match: true})
		prev, pos = end, end
	}
	if prev < len(inside) {
		subs = append(subs, normalizer.OffsetsMatch{Offsets: []int{prev, len(inside)}, Match: false})
	}
	return subs
}

// releaseLastSpace shortens a horizontal whitespace run of two or more bytes
// by one when more text follows it. Runs holding a line break are kept whole.
func releaseLastSpace(s string, start, end int) int {
	if end >= len(s) || end-start < 2 {
		return end
	}
	for i := start; i < end; i++ {
		switch s[i] {
		case ' ', '\t', '\f':
		default:
			return end
		}
	}
	return end - 1
}

// byteLevel maps every byte onto its printable byte-level rune without the
// GPT-2 word split pretokenizer.ByteLevel always applies.
type byteLevel struct {
	addPrefixSpace bool
}

var _ tk.PreTokenizer = (*byteLevel)(nil)

func (b *byteLevel) PreTokenize(pretok *tk.PreTokenizedString) (*tk.PreTokenizedString, error) {
	return pretok.Normalize(func(n *normalizer.NormalizedString) *normalizer.NormalizedString {
		if b.addPrefixSpace && !strings.HasPrefix(n.GetNormalized(), " ") {
			n = n.Prepend(" ")
		}
		var changes []normalizer.ChangeMap
		for _, r := range n.GetNormalized() {
			for i, c := range []byte(string(r)) {
				change := 0
				if i > 0 {
					change = 1
				}
				changes = append(changes, normalizer.ChangeMap{RuneVal: pretokenizer.BytesChar[c], Changes: change})
			}
		}
		return n.Transform(changes, 0)
	}), nil
}
