// Package onnx embeds text locally with a sentence-transformer model
// (all-MiniLM-L6-v2 by default) running on ONNX Runtime. The runtime-backed
// embedder is only built with the "onnx" build tag; the tokenizer and
// pooling code here are pure Go.
package onnx

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// Fallback ids of the special tokens in the bert-base-uncased vocabulary.
const (
	defaultUnkID = 100
	defaultCLSID = 101
	defaultSEPID = 102
)

// maxWordChars mirrors BERT: longer words become a single [UNK].
const maxWordChars = 100

// Tokenizer is a lowercasing BERT WordPiece tokenizer.
type Tokenizer struct {
	vocab map[string]int
	cls   int
	sep   int
	unk   int
}

// NewTokenizer builds a tokenizer over vocab. Special token ids are looked up
// in vocab and fall back to the bert-base-uncased ids.
func NewTokenizer(vocab map[string]int) *Tokenizer {
	lookup := func(tok string, def int) int {
		if id, ok := vocab[tok]; ok {
			return id
		}
		return def
	}
	return &Tokenizer{
		vocab: vocab,
		cls:   lookup("[CLS]", defaultCLSID),
		sep:   lookup("[SEP]", defaultSEPID),
		unk:   lookup("[UNK]", defaultUnkID),
	}
}

// LoadTokenizer reads the vocabulary from a HuggingFace tokenizer.json.
func LoadTokenizer(path string) (*Tokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tokenizer: %w", err)
	}
	var file struct {
		Model struct {
			Vocab map[string]int `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse tokenizer: %w", err)
	}
	if len(file.Model.Vocab) == 0 {
		return nil, fmt.Errorf("tokenizer %s has an empty vocabulary", path)
	}
	return NewTokenizer(file.Model.Vocab), nil
}

// Encoded is one model input row, padded to a fixed sequence length.
type Encoded struct {
	InputIDs      []int64
	AttentionMask []int64
	TokenTypeIDs  []int64
}

// Encode tokenizes text into [CLS] tokens... [SEP], truncated and zero padded
// to seqLen.
func (t *Tokenizer) Encode(text string, seqLen int) Encoded {
	enc := Encoded{
		InputIDs:      make([]int64, seqLen),
		AttentionMask: make([]int64, seqLen),
		TokenTypeIDs:  make([]int64, seqLen),
	}
	if seqLen < 2 {
		return enc
	}

	ids := t.Tokenize(text)
	if len(ids) > seqLen-2 {
		ids = ids[:seqLen-2]
	}

	enc.InputIDs[0] = int64(t.cls)
	for i, id := range ids {
		enc.InputIDs[i+1] = int64(id)
	}
	enc.InputIDs[len(ids)+1] = int64(t.sep)
	for i := 0; i < len(ids)+2; i++ {
		enc.AttentionMask[i] = 1
	}
	return enc
}

// Tokenize returns the WordPiece ids of text, without special tokens.
func (t *Tokenizer) Tokenize(text string) []int {
	var ids []int
	for _, word := range basicSplit(strings.ToLower(text)) {
		ids = append(ids, t.wordPiece(word)...)
	}
	return ids
}

// wordPiece splits word greedily into the longest vocabulary pieces. A word
// that cannot be fully covered becomes a single [UNK].
func (t *Tokenizer) wordPiece(word string) []int {
	runes := []rune(word)
	if len(runes) > maxWordChars {
		return []int{t.unk}
	}

	var ids []int
	for start := 0; start < len(runes); {
		end := len(runes)
		match := -1
		for ; end > start; end-- {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := t.vocab[piece]; ok {
				match = id
				break
			}
		}
		if match < 0 {
			return []int{t.unk}
		}
		ids = append(ids, match)
		start = end
	}
	return ids
}

// basicSplit splits on whitespace and isolates every punctuation rune as its
// own word.
func basicSplit(text string) []string {
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			words = append(words, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}
