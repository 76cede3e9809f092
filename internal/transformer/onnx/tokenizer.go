package onnx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// DefaultEOSToken is the Llama 3 end of text marker.
const DefaultEOSToken = "<|end_of_text|>"

// HFTokenizer wraps a HuggingFace tokenizer for ONNX models.
type HFTokenizer struct {
	tok    *tk.Tokenizer
	encode func(text string) ([]int, error)
	eosID  int
	padID  int
	vocab  int
}

// NewHFTokenizerFromLocal loads a tokenizer from a local tokenizer.json file.
// The base tokenizer ships without a padding token, so padding uses eosToken.
func NewHFTokenizerFromLocal(path, eosToken string) (h *HFTokenizer, err error) {
	// the pretrained builders assert on json shapes and panic on mismatch
	defer func() {
		if r := recover(); r != nil {
			h, err = nil, fmt.Errorf("load tokenizer %s: %v", path, r)
		}
	}()

	tok, err := loadTokenizerFile(path)
	if err != nil {
		return nil, err
	}

	if eosToken == "" {
		eosToken = DefaultEOSToken
	}
	eosID, ok := tok.TokenToId(eosToken)
	if !ok {
		return nil, fmt.Errorf("eos token %q not in vocabulary", eosToken)
	}

	h = &HFTokenizer{
		tok: tok,
		encode: func(text string) ([]int, error) {
			enc, err := tok.EncodeSingle(text, true)
			if err != nil {
				return nil, err
			}
			return enc.Ids, nil
		},
		eosID: eosID,
		padID: -1,
		vocab: tok.GetVocabSize(true),
	}
	h.SetPadToEOS()
	return h, nil
}

// loadTokenizerFile reads tokenizer.json, building the pre-tokenizer itself so
// lookahead split patterns load on RE2.
func loadTokenizerFile(path string) (*tk.Tokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg tk.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	var pre tk.PreTokenizer
	if cfg.PreTokenizer != nil {
		if pre, err = buildPreTokenizer(cfg.PreTokenizer); err != nil {
			return nil, fmt.Errorf("pre_tokenizer: %w", err)
		}
		cfg.PreTokenizer = nil
		if data, err = json.Marshal(cfg); err != nil {
			return nil, err
		}
	}

	tok, err := pretrained.FromReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if pre != nil {
		tok.WithPreTokenizer(pre)
	}
	return tok, nil
}

// SetPadToEOS makes the end of sequence token double as the padding token.
func (h *HFTokenizer) SetPadToEOS() {
	h.padID = h.eosID
}

func (h *HFTokenizer) PadID() int {
	return h.padID
}

func (h *HFTokenizer) EOSID() int {
	return h.eosID
}

// VocabSize returns the vocabulary size including added special tokens.
func (h *HFTokenizer) VocabSize() (int, error) {
	if h.tok == nil {
		return 0, fmt.Errorf("tokenizer nil")
	}
	return h.vocab, nil
}

// Encode returns input_ids and attention_mask for one text, truncated to maxLen tokens.
func (h *HFTokenizer) Encode(text string, maxLen int) ([]int64, []int64, error) {
	if h.encode == nil {
		return nil, nil, fmt.Errorf("tokenizer nil")
	}
	if maxLen <= 0 {
		maxLen = 512
	}

	raw, err := h.encode(text)
	if err != nil {
		return nil, nil, fmt.Errorf("encode: %w", err)
	}

	T := len(raw)
	if T > maxLen {
		T = maxLen
	}

	ids := make([]int64, T)
	mask := make([]int64, T)
	for t := 0; t < T; t++ {
		if raw[t] < 0 || (h.vocab > 0 && raw[t] >= h.vocab) {
			return nil, nil, fmt.Errorf("token id %d outside vocabulary of %d", raw[t], h.vocab)
		}
		ids[t] = int64(raw[t])
		mask[t] = 1
	}
	return ids, mask, nil
}
