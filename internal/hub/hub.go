// Package hub resolves the base model's tokenizer files, either from a local
// directory or from the Hugging Face hub.
package hub

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	hfhub "github.com/gomlx/go-huggingface/hub"
)

const (
	TokenizerFile       = "tokenizer.json"
	TokenizerConfigFile = "tokenizer_config.json"
)

// TokenizerFiles are local paths to a model's tokenizer artifacts.
// ConfigPath is empty when the model has no tokenizer_config.json.
type TokenizerFiles struct {
	TokenizerPath string
	ConfigPath    string
}

// Source fetches files for one model repository.
type Source struct {
	modelID  string
	localDir string
	repo     *hfhub.Repo
}

// NewSource prefers localDir when set; otherwise files are downloaded from the
// hub with token and cached under cacheDir.
func NewSource(modelID, localDir, token, cacheDir string) (*Source, error) {
	if localDir != "" {
		return &Source{modelID: modelID, localDir: localDir}, nil
	}
	if modelID == "" {
		return nil, fmt.Errorf("missing model id")
	}

	repo := hfhub.New(modelID)
	if token != "" {
		repo = repo.WithAuth(token)
	}
	if cacheDir != "" {
		repo = repo.WithCacheDir(cacheDir)
	}
	return &Source{modelID: modelID, repo: repo}, nil
}

// Tokenizer resolves tokenizer.json and, when present, tokenizer_config.json.
func (s *Source) Tokenizer() (TokenizerFiles, error) {
	tokPath, err := s.file(TokenizerFile)
	if err != nil {
		return TokenizerFiles{}, fmt.Errorf("%s: %w", TokenizerFile, err)
	}
	files := TokenizerFiles{TokenizerPath: tokPath}

	if cfgPath, err := s.file(TokenizerConfigFile); err == nil {
		files.ConfigPath = cfgPath
	}
	return files, nil
}

func (s *Source) file(name string) (string, error) {
	if s.localDir != "" {
		p := filepath.Join(s.localDir, name)
		if _, err := os.Stat(p); err != nil {
			return "", err
		}
		return p, nil
	}
	return s.repo.DownloadFile(name)
}

// EOSToken reads the end of sequence token from a tokenizer_config.json.
// The field is either a plain string or an AddedToken object.
func EOSToken(configPath string) (string, error) {
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return "", err
	}

	var cfg struct {
		EOSToken json.RawMessage `json:"eos_token"`
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return "", fmt.Errorf("parse %s: %w", TokenizerConfigFile, err)
	}
	if len(cfg.EOSToken) == 0 || string(cfg.EOSToken) == "null" {
		return "", fmt.Errorf("%s has no eos_token", TokenizerConfigFile)
	}

	var tok string
	if err := json.Unmarshal(cfg.EOSToken, &tok); err == nil {
		return tok, nil
	}
	var added struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(cfg.EOSToken, &added); err != nil || added.Content == "" {
		return "", fmt.Errorf("unreadable eos_token %s", cfg.EOSToken)
	}
	return added.Content, nil
}
