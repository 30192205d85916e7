package merge

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hanzihelper/vocabsync/pkg/cedict"
	"github.com/hanzihelper/vocabsync/pkg/db"
	"github.com/hanzihelper/vocabsync/pkg/pinyin"
)

// identityKey is the pair that identifies a vocabulary entry: the simplified
// form and the normalized (toneless, lowercase, space-free) pronunciation.
type identityKey struct {
	chinese string
	pinyin  string
}

type existingEntry struct {
	id       uuid.UUID
	hskLevel int
}

// Importer merges a CC-CEDICT dictionary stream into the vocabulary store.
//
// Each run reads the full store once to build an identity snapshot, then
// classifies every parsed entry as an update (identity already present) or
// an insert. Updates only ever touch english, traditional and updated_at;
// curated hsk_level and example_sentences are never written. The run is
// single-threaded and idempotent: re-running over the same source converges
// after one pass.
type Importer struct {
	conn *sql.DB
	log  *zap.Logger

	// BatchSize is the chunk size for applying writes; each chunk is one
	// transaction.
	BatchSize int
}

// NewImporter creates an Importer with the default chunk size.
func NewImporter(conn *sql.DB, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{
		conn:      conn,
		log:       logger,
		BatchSize: 500,
	}
}

// Report holds the final counts of a merge run.
type Report struct {
	Updated  int
	Inserted int
	Skipped  int
	Total    int
}

// Summary renders the report as a human-readable line.
func (r Report) Summary() string {
	return fmt.Sprintf("updated %d, inserted %d, skipped %d, total entries now %d",
		r.Updated, r.Inserted, r.Skipped, r.Total)
}

type pendingUpdate struct {
	id          uuid.UUID
	english     string
	traditional *string
}

// Run streams dictionary lines from r, classifies them against a snapshot of
// the store, and applies the resulting update and insert batches in chunks.
// A chunk failure aborts the run; chunks committed before the failure stay
// committed, and the partially filled Report is returned alongside the error.
func (im *Importer) Run(ctx context.Context, r io.Reader) (Report, error) {
	var report Report

	snapshot, err := im.buildSnapshot()
	if err != nil {
		return report, fmt.Errorf("build identity snapshot: %w", err)
	}
	im.log.Info("built identity snapshot", zap.Int("existing_entries", len(snapshot)))

	var updates []pendingUpdate
	var inserts []db.VocabEntry
	// Within-run duplicates of one identity collapse onto the first
	// occurrence; the later entry's fields win, matching update semantics.
	pendingByKey := make(map[identityKey]int)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		entry := cedict.ParseLine(line)
		if entry == nil {
			report.Skipped++
			continue
		}

		key := identityKey{entry.Simplified, pinyin.MatchKey(entry.Pinyin)}
		traditional := entry.Traditional

		if existing, ok := snapshot[key]; ok {
			updates = append(updates, pendingUpdate{
				id:          existing.id,
				english:     entry.English(),
				traditional: &traditional,
			})
			continue
		}

		if i, ok := pendingByKey[key]; ok {
			inserts[i].Traditional = &traditional
			inserts[i].Pinyin = entry.Pinyin
			inserts[i].English = entry.English()
			continue
		}

		pendingByKey[key] = len(inserts)
		inserts = append(inserts, db.VocabEntry{
			ID:            uuid.New(),
			Chinese:       entry.Simplified,
			Traditional:   &traditional,
			Pinyin:        entry.Pinyin,
			PinyinNoTones: key.pinyin,
			English:       entry.English(),
			HSKLevel:      0,
		})
	}
	if err := scanner.Err(); err != nil {
		return report, fmt.Errorf("read dictionary source: %w", err)
	}

	im.log.Info("classified entries",
		zap.Int("updates", len(updates)),
		zap.Int("inserts", len(inserts)),
		zap.Int("skipped", report.Skipped))

	updateFuncs := make([]WriteFunc, len(updates))
	for i, u := range updates {
		u := u
		updateFuncs[i] = func(ctx context.Context, tx *sql.Tx) error {
			return db.UpdateDictionaryFields(tx, u.id, u.english, u.traditional)
		}
	}
	applied, err := im.applyBatch(ctx, updateFuncs)
	report.Updated = applied
	if err != nil {
		return report, fmt.Errorf("apply updates: %w", err)
	}

	insertFuncs := make([]WriteFunc, len(inserts))
	for i, e := range inserts {
		e := e
		insertFuncs[i] = func(ctx context.Context, tx *sql.Tx) error {
			return db.InsertEntry(tx, e)
		}
	}
	applied, err = im.applyBatch(ctx, insertFuncs)
	report.Inserted = applied
	if err != nil {
		return report, fmt.Errorf("apply inserts: %w", err)
	}

	if report.Total, err = db.CountVocabulary(im.conn); err != nil {
		return report, fmt.Errorf("count vocabulary: %w", err)
	}
	return report, nil
}

// buildSnapshot reads the full store once and maps identity keys to existing
// rows. Rows predating the persisted key column fall back to recomputing the
// key from the tone-marked pinyin.
func (im *Importer) buildSnapshot() (map[identityKey]existingEntry, error) {
	rows, err := db.ListVocabulary(im.conn)
	if err != nil {
		return nil, err
	}
	snapshot := make(map[identityKey]existingEntry, len(rows))
	for _, r := range rows {
		key := r.PinyinNoTones
		if key == "" {
			key = pinyin.MatchKey(r.Pinyin)
		} else {
			key = strings.ToLower(strings.ReplaceAll(key, " ", ""))
		}
		snapshot[identityKey{r.Chinese, key}] = existingEntry{id: r.ID, hskLevel: r.HSKLevel}
	}
	return snapshot, nil
}

func (im *Importer) applyBatch(ctx context.Context, funcs []WriteFunc) (int, error) {
	bw := NewBatchWriter(im.conn, im.BatchSize)
	for _, fn := range funcs {
		if err := bw.Submit(ctx, fn); err != nil {
			return bw.Applied(), err
		}
	}
	if err := bw.Close(ctx); err != nil {
		return bw.Applied(), err
	}
	return bw.Applied(), nil
}
