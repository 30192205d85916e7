package merge

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hanzihelper/vocabsync/pkg/db"
)

func setupDB(t *testing.T) *sql.DB {
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	conn.SetMaxOpenConns(1)
	if err := db.InitDB(conn); err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	return conn
}

const sampleSource = `# CC-CEDICT sample
# more header noise
愛 爱 [ai4] /to love/affection/
恨 恨 [hen4] /to hate/
`

func TestImportEndToEnd(t *testing.T) {
	conn := setupDB(t)
	defer conn.Close()

	// Pre-populate one curated entry that the dictionary must enrich but
	// never overwrite.
	examples := []db.ExampleSentence{{Chinese: "我爱你。", Pinyin: "wǒ ài nǐ", English: "I love you."}}
	curatedID, err := db.CreateCuratedEntry(conn, "爱", "ài", "love", 3, examples)
	if err != nil {
		t.Fatalf("create curated: %v", err)
	}

	importer := NewImporter(conn, nil)
	report, err := importer.Run(context.Background(), strings.NewReader(sampleSource))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if report.Updated != 1 || report.Inserted != 1 || report.Skipped != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Total != 2 {
		t.Fatalf("expected 2 total entries, got %d", report.Total)
	}

	// Curated row: gloss and traditional enriched, level and examples intact.
	got, err := db.GetBySimplified(conn, "爱")
	if err != nil {
		t.Fatalf("get 爱: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entry for 爱, got %d", len(got))
	}
	if got[0].ID != curatedID {
		t.Errorf("update must target the existing row, got id %s", got[0].ID)
	}
	if got[0].English != "to love; affection" {
		t.Errorf("expected enriched gloss, got %q", got[0].English)
	}
	if got[0].Traditional == nil || *got[0].Traditional != "愛" {
		t.Errorf("expected traditional 愛, got %v", got[0].Traditional)
	}
	if got[0].HSKLevel != 3 {
		t.Errorf("curated hsk_level must stay 3, got %d", got[0].HSKLevel)
	}
	sentences, err := got[0].GetExampleSentences()
	if err != nil {
		t.Fatalf("examples: %v", err)
	}
	if len(sentences) != 1 || sentences[0].Chinese != "我爱你。" {
		t.Errorf("curated examples must stay untouched, got %v", sentences)
	}

	// New row: dictionary-only, level 0.
	got, err = db.GetBySimplified(conn, "恨")
	if err != nil {
		t.Fatalf("get 恨: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entry for 恨, got %d", len(got))
	}
	if got[0].HSKLevel != 0 {
		t.Errorf("dictionary insert must have level 0, got %d", got[0].HSKLevel)
	}
	if got[0].English != "to hate" || got[0].Pinyin != "hèn" || got[0].PinyinNoTones != "hen" {
		t.Errorf("unexpected inserted entry: %+v", got[0])
	}
}

func TestImportIdempotent(t *testing.T) {
	conn := setupDB(t)
	defer conn.Close()
	importer := NewImporter(conn, nil)

	first, err := importer.Run(context.Background(), strings.NewReader(sampleSource))
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Inserted != 2 || first.Updated != 0 {
		t.Fatalf("unexpected first report: %+v", first)
	}

	snapshotEnglish := func() map[string]string {
		out := map[string]string{}
		for _, chinese := range []string{"爱", "恨"} {
			entries, err := db.GetBySimplified(conn, chinese)
			if err != nil || len(entries) != 1 {
				t.Fatalf("get %s: %v (%d entries)", chinese, err, len(entries))
			}
			out[chinese] = entries[0].English
		}
		return out
	}
	afterFirst := snapshotEnglish()

	second, err := importer.Run(context.Background(), strings.NewReader(sampleSource))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Inserted != 0 {
		t.Fatalf("second run must insert nothing, got %d", second.Inserted)
	}
	if second.Updated != 2 {
		t.Fatalf("second run must classify every entry as update, got %d", second.Updated)
	}
	if second.Total != 2 {
		t.Fatalf("expected 2 total entries after second run, got %d", second.Total)
	}

	afterSecond := snapshotEnglish()
	for chinese, english := range afterFirst {
		if afterSecond[chinese] != english {
			t.Errorf("gloss for %s changed across runs: %q -> %q", chinese, english, afterSecond[chinese])
		}
	}
}

func TestImportSkipsMalformedLines(t *testing.T) {
	conn := setupDB(t)
	defer conn.Close()
	importer := NewImporter(conn, nil)

	source := `# header comment

not a dictionary line
個 个 [ge4] /CL:個|个[ge4]/
恨 恨 [hen4] /to hate/
`
	report, err := importer.Run(context.Background(), strings.NewReader(source))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// The garbage line and the classifier-only entry are skipped; blank and
	// comment lines are not counted.
	if report.Skipped != 2 {
		t.Errorf("expected 2 skipped, got %d", report.Skipped)
	}
	if report.Inserted != 1 {
		t.Errorf("expected 1 inserted, got %d", report.Inserted)
	}
}

// Two source lines can share an identity when their tones differ but their
// toneless keys match; they must collapse to one row, last entry winning.
func TestImportCollapsesDuplicateIdentity(t *testing.T) {
	conn := setupDB(t)
	defer conn.Close()
	importer := NewImporter(conn, nil)

	source := `隻 只 [zhi1] /classifier for birds and some animals/
祇 只 [zhi3] /only/merely/
`
	report, err := importer.Run(context.Background(), strings.NewReader(source))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Inserted != 1 {
		t.Fatalf("expected duplicate identities to collapse to 1 insert, got %d", report.Inserted)
	}

	got, err := db.GetBySimplified(conn, "只")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 row, got %d", len(got))
	}
	if got[0].English != "only; merely" {
		t.Errorf("expected last entry's gloss, got %q", got[0].English)
	}
	if got[0].Traditional == nil || *got[0].Traditional != "祇" {
		t.Errorf("expected last entry's traditional, got %v", got[0].Traditional)
	}
}

func TestImportCanceledContext(t *testing.T) {
	conn := setupDB(t)
	defer conn.Close()
	importer := NewImporter(conn, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := importer.Run(ctx, strings.NewReader(sampleSource))
	if err == nil {
		t.Fatal("expected error with canceled context")
	}
	if report.Inserted != 0 {
		t.Errorf("expected no inserts applied, got %d", report.Inserted)
	}

	n, err := db.CountVocabulary(conn)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("store must be untouched after aborted run, got %d rows", n)
	}
}
