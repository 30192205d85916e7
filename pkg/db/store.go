package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hanzihelper/vocabsync/pkg/pinyin"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// VocabSummary is the slice of a vocabulary row the merge pipeline needs to
// build its identity snapshot.
type VocabSummary struct {
	ID            uuid.UUID
	Chinese       string
	Pinyin        string
	PinyinNoTones string
	HSKLevel      int
}

// ListVocabulary returns the identity-relevant columns of every row in the
// store. The merge pipeline calls this exactly once per run.
func ListVocabulary(db DBExecutor) ([]VocabSummary, error) {
	rows, err := db.Query(`SELECT id, chinese, pinyin, pinyin_no_tones, hsk_level FROM vocabulary`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VocabSummary
	for rows.Next() {
		var v VocabSummary
		var id string
		var noTones sql.NullString
		if err := rows.Scan(&id, &v.Chinese, &v.Pinyin, &noTones, &v.HSKLevel); err != nil {
			return nil, err
		}
		if v.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid vocabulary id %q: %w", id, err)
		}
		if noTones.Valid {
			v.PinyinNoTones = noTones.String
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateDictionaryFields enriches an existing row with dictionary data. Only
// english, traditional and updated_at are written; hsk_level, examples and
// the identity columns stay untouched.
func UpdateDictionaryFields(db DBExecutor, id uuid.UUID, english string, traditional *string) error {
	_, err := db.Exec(
		`UPDATE vocabulary SET english = ?, traditional = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		english, traditional, id.String(),
	)
	if err != nil {
		return fmt.Errorf("update vocabulary %s: %w", id, err)
	}
	return nil
}

// InsertEntry inserts a fully populated vocabulary row.
func InsertEntry(db DBExecutor, e VocabEntry) error {
	if strings.TrimSpace(e.Chinese) == "" {
		return fmt.Errorf("chinese must be non-empty")
	}
	var examples interface{}
	if len(e.ExampleSentences) > 0 {
		examples = string(e.ExampleSentences)
	}
	_, err := db.Exec(
		`INSERT INTO vocabulary (id, chinese, traditional, pinyin, pinyin_no_tones, english, hsk_level, example_sentences)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.Chinese, e.Traditional, e.Pinyin, e.PinyinNoTones, e.English, e.HSKLevel, examples,
	)
	if err != nil {
		return fmt.Errorf("insert vocabulary %s: %w", e.Chinese, err)
	}
	return nil
}

// CreateCuratedEntry inserts a human-reviewed entry with a proficiency level
// and example sentences. This is the curation-side write; the dictionary
// pipeline never calls it.
func CreateCuratedEntry(db DBExecutor, chinese, pinyinMarked, english string, level int, examples []ExampleSentence) (uuid.UUID, error) {
	if strings.TrimSpace(chinese) == "" {
		return uuid.Nil, fmt.Errorf("chinese must be non-empty")
	}
	if level < 1 {
		return uuid.Nil, fmt.Errorf("curated entries require level >= 1, got %d", level)
	}

	var examplesJSON interface{}
	if len(examples) > 0 {
		b, err := json.Marshal(examples)
		if err != nil {
			return uuid.Nil, fmt.Errorf("marshal example sentences: %w", err)
		}
		examplesJSON = string(b)
	}

	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO vocabulary (id, chinese, pinyin, pinyin_no_tones, english, hsk_level, example_sentences)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id.String(), chinese, pinyinMarked, pinyin.MatchKey(pinyinMarked), english, level, examplesJSON,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert curated entry %s: %w", chinese, err)
	}
	return id, nil
}

// GetBySimplified returns all entries whose primary script form matches.
// Distinct pronunciations of the same characters are separate rows.
func GetBySimplified(db DBExecutor, chinese string) ([]VocabEntry, error) {
	rows, err := db.Query(
		`SELECT id, chinese, traditional, pinyin, pinyin_no_tones, english, hsk_level, example_sentences, created_at, updated_at
		 FROM vocabulary WHERE chinese = ? ORDER BY pinyin_no_tones`,
		chinese,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VocabEntry
	for rows.Next() {
		var e VocabEntry
		var id string
		var traditional, noTones, examples sql.NullString
		if err := rows.Scan(&id, &e.Chinese, &traditional, &e.Pinyin, &noTones, &e.English, &e.HSKLevel, &examples, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid vocabulary id %q: %w", id, err)
		}
		if traditional.Valid {
			t := traditional.String
			e.Traditional = &t
		}
		if noTones.Valid {
			e.PinyinNoTones = noTones.String
		}
		if examples.Valid {
			e.ExampleSentences = json.RawMessage(examples.String)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountVocabulary returns the number of rows currently in the store.
func CountVocabulary(db DBExecutor) (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM vocabulary`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
