package onnx

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeTokenizer(n int) *HFTokenizer {
	h := &HFTokenizer{
		encode: func(string) ([]int, error) {
			ids := make([]int, n)
			for i := range ids {
				ids[i] = i + 10
			}
			return ids, nil
		},
		eosID: 2,
		padID: -1,
	}
	h.SetPadToEOS()
	return h
}

func TestHFTokenizerEncode(t *testing.T) {
	tests := []struct {
		name    string
		tokens  int
		maxLen  int
		wantLen int
	}{
		{"short text kept whole", 12, 512, 12},
		{"exactly at cap", 512, 512, 512},
		{"long text truncated", 2000, 512, 512},
		{"zero cap falls back to 512", 700, 0, 512},
		{"smaller cap", 50, 16, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, mask, err := fakeTokenizer(tt.tokens).Encode("complaint", tt.maxLen)
			require.NoError(t, err)
			assert.Len(t, ids, tt.wantLen)
			assert.Len(t, mask, tt.wantLen)
			assert.Equal(t, int64(10), ids[0])
			assert.Equal(t, int64(10+tt.wantLen-1), ids[len(ids)-1])
			for _, m := range mask {
				assert.Equal(t, int64(1), m)
			}
		})
	}
}

func TestHFTokenizerPadding(t *testing.T) {
	h := fakeTokenizer(1)
	assert.Equal(t, h.EOSID(), h.PadID())
}

func TestHFTokenizerErrors(t *testing.T) {
	t.Run("nil tokenizer", func(t *testing.T) {
		_, _, err := (&HFTokenizer{}).Encode("x", 8)
		assert.Error(t, err)
		_, err = (&HFTokenizer{}).VocabSize()
		assert.Error(t, err)
	})

	t.Run("encode failure is wrapped", func(t *testing.T) {
		boom := errors.New("boom")
		h := &HFTokenizer{encode: func(string) ([]int, error) { return nil, boom }}
		_, _, err := h.Encode("x", 8)
		assert.ErrorIs(t, err, boom)
	})
}

const llama3SplitRegex = `(?i:'s|'t|'re|'ve|'m|'ll|'d)|[^\r\n\p{L}\p{N}]?\p{L}+|\p{N}{1,3}| ?[^\s\p{L}\p{N}]+[\r\n]*|\s*[\r\n]+|\s+(?!\S)|\s+`

// writeLlama3Tokenizer writes a small tokenizer.json shaped like Meta-Llama-3:
// byte level BPE behind a lookahead Split pre-tokenizer with use_regex=false.
func writeLlama3Tokenizer(t *testing.T, withSpecials bool) string {
	t.Helper()

	vocab := map[string]int{
		"h": 0, "e": 1, "l": 2, "o": 3, "Ġ": 4, "w": 5, "r": 6, "d": 7,
		"he": 8, "ll": 9, "hell": 10, "hello": 11, "!": 12,
	}
	added := []map[string]any{}
	if withSpecials {
		for i, content := range []string{"<|begin_of_text|>", DefaultEOSToken} {
			added = append(added, map[string]any{
				"id": len(vocab) + i, "content": content, "single_word": false,
				"lstrip": false, "rstrip": false, "normalized": false, "special": true,
			})
		}
	}

	cfg := map[string]any{
		"version":      "1.0",
		"truncation":   nil,
		"padding":      nil,
		"added_tokens": added,
		"normalizer":   nil,
		"pre_tokenizer": map[string]any{
			"type": "Sequence",
			"pretokenizers": []any{
				map[string]any{
					"type":     "Split",
					"pattern":  map[string]any{"Regex": llama3SplitRegex},
					"behavior": "Isolated",
					"invert":   false,
				},
				map[string]any{
					"type":             "ByteLevel",
					"add_prefix_space": false,
					"trim_offsets":     true,
					"use_regex":        false,
				},
			},
		},
		"post_processor": nil,
		"decoder": map[string]any{
			"type":             "ByteLevel",
			"add_prefix_space": true,
			"trim_offsets":     true,
			"use_regex":        true,
		},
		"model": map[string]any{
			"type":                      "BPE",
			"dropout":                   nil,
			"unk_token":                 nil,
			"continuing_subword_prefix": nil,
			"end_of_word_suffix":        nil,
			"fuse_unk":                  false,
			"byte_fallback":             false,
			"ignore_merges":             true,
			"vocab":                     vocab,
			"merges":                    []string{"h e", "l l", "he ll", "hell o"},
		},
	}

	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "tokenizer.json")
	require.NoError(t, os.WriteFile(path, b, 0o644))
	return path
}

func TestNewHFTokenizerFromLocalLlama3(t *testing.T) {
	path := writeLlama3Tokenizer(t, true)

	var (
		h   *HFTokenizer
		err error
	)
	require.NotPanics(t, func() { h, err = NewHFTokenizerFromLocal(path, DefaultEOSToken) })
	require.NoError(t, err)

	t.Run("eos doubles as pad", func(t *testing.T) {
		assert.Equal(t, 14, h.EOSID())
		assert.Equal(t, h.EOSID(), h.PadID())
		n, err := h.VocabSize()
		require.NoError(t, err)
		assert.Equal(t, 15, n)
	})

	t.Run("encodes words and spaces", func(t *testing.T) {
		ids, mask, err := h.Encode("hello world", 512)
		require.NoError(t, err)
		assert.Equal(t, []int64{11, 4, 5, 3, 6, 2, 7}, ids)
		assert.Equal(t, []int64{1, 1, 1, 1, 1, 1, 1}, mask)
	})

	t.Run("double space leaves one space to the next word", func(t *testing.T) {
		ids, _, err := h.Encode("hello  world", 512)
		require.NoError(t, err)
		assert.Equal(t, []int64{11, 4, 4, 5, 3, 6, 2, 7}, ids)
	})

	t.Run("long complaint truncated to 512", func(t *testing.T) {
		ids, mask, err := h.Encode(strings.Repeat("hello ", 600), 512)
		require.NoError(t, err)
		assert.Len(t, ids, 512)
		assert.Len(t, mask, 512)
		assert.Equal(t, int64(11), ids[0])
		assert.Equal(t, []int64{4, 11}, ids[1:3])
	})
}

func TestNewHFTokenizerFromLocalErrors(t *testing.T) {
	t.Run("eos token not in vocabulary", func(t *testing.T) {
		_, err := NewHFTokenizerFromLocal(writeLlama3Tokenizer(t, false), DefaultEOSToken)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not in vocabulary")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewHFTokenizerFromLocal(filepath.Join(t.TempDir(), "tokenizer.json"), "")
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("malformed model section reports instead of panicking", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tokenizer.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"model": {"type": "BPE", "vocab": "oops", "merges": []}}`), 0o644))
		var err error
		require.NotPanics(t, func() { _, err = NewHFTokenizerFromLocal(path, "") })
		assert.Error(t, err)
	})
}
