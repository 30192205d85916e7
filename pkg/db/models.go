package db

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ExampleSentence is one illustrative sentence attached to a curated entry.
type ExampleSentence struct {
	Chinese string `json:"chinese"`
	Pinyin  string `json:"pinyin"`
	English string `json:"english"`
}

// VocabEntry is the persisted vocabulary record.
//
// Identity is the pair (Chinese, PinyinNoTones); the store enforces its
// uniqueness. HSKLevel 0 marks a dictionary-only entry; levels >= 1 are set
// by curation and never touched by the dictionary pipeline, and the same
// goes for ExampleSentences.
type VocabEntry struct {
	ID               uuid.UUID
	Chinese          string
	Traditional      *string
	Pinyin           string
	PinyinNoTones    string
	English          string
	HSKLevel         int
	ExampleSentences json.RawMessage
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// GetExampleSentences parses the stored example sentences JSON. A plain
// string array (the legacy storage format) is accepted too.
func (v *VocabEntry) GetExampleSentences() ([]ExampleSentence, error) {
	if len(v.ExampleSentences) == 0 {
		return []ExampleSentence{}, nil
	}

	var sentences []ExampleSentence
	if err := json.Unmarshal(v.ExampleSentences, &sentences); err != nil {
		var simple []string
		if err2 := json.Unmarshal(v.ExampleSentences, &simple); err2 != nil {
			return nil, fmt.Errorf("failed to parse example sentences: %w", err)
		}
		for _, s := range simple {
			sentences = append(sentences, ExampleSentence{Chinese: s})
		}
	}
	return sentences, nil
}
