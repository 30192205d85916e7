package db

import (
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const migrationsSQL = `
CREATE TABLE IF NOT EXISTS vocabulary (
	id TEXT PRIMARY KEY,
	chinese TEXT NOT NULL,
	traditional TEXT,
	pinyin TEXT NOT NULL DEFAULT '',
	pinyin_no_tones TEXT NOT NULL DEFAULT '',
	english TEXT NOT NULL DEFAULT '',
	hsk_level INTEGER NOT NULL DEFAULT 0,
	example_sentences TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_vocabulary_identity ON vocabulary(chinese, pinyin_no_tones);
CREATE INDEX IF NOT EXISTS idx_vocabulary_english ON vocabulary(english);
CREATE INDEX IF NOT EXISTS idx_vocabulary_pinyin ON vocabulary(pinyin);
CREATE INDEX IF NOT EXISTS idx_vocabulary_hsk_level ON vocabulary(hsk_level)
`

// InitDB runs migrations on the given DB connection using the embedded SQL.
func InitDB(db *sql.DB) error {
	stmts := strings.Split(migrationsSQL, ";")
	for _, s := range stmts {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}
