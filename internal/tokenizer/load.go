package tokenizer

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
)

const (
	// VocabRepo is the hub repository holding the GPT-2 vocabulary files.
	VocabRepo  = "gpt2"
	vocabFile  = "vocab.json"
	mergesFile = "merges.txt"
)

// Downloader fetches a repository file and returns its local path. Satisfied
// by *hub.Client.
type Downloader interface {
	Download(ctx context.Context, repo, filename string) (string, error)
}

// Load fetches vocab.json and merges.txt from the hub and builds the
// tokenizer.
func Load(ctx context.Context, dl Downloader) (*GPT2, error) {
	vocabPath, err := dl.Download(ctx, VocabRepo, vocabFile)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", vocabFile, err)
	}
	mergesPath, err := dl.Download(ctx, VocabRepo, mergesFile)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", mergesFile, err)
	}
	return LoadFiles(vocabPath, mergesPath)
}

// LoadFiles builds the tokenizer from local vocabulary and merge files.
func LoadFiles(vocabPath, mergesPath string) (*GPT2, error) {
	raw, err := os.ReadFile(vocabPath)
	if err != nil {
		return nil, err
	}
	var vocab map[string]int
	if err := json.Unmarshal(raw, &vocab); err != nil {
		return nil, fmt.Errorf("parse %s: %w", vocabPath, err)
	}

	mergesRaw, err := os.ReadFile(mergesPath)
	if err != nil {
		return nil, err
	}
	merges := strings.Split(string(mergesRaw), "\n")

	return New(vocab, merges)
}
