package cedict

import (
	"regexp"
	"strings"

	"github.com/hanzihelper/vocabsync/pkg/pinyin"
)

// Entry is a single parsed CC-CEDICT record.
type Entry struct {
	Traditional string
	Simplified  string
	// Pinyin is the tone-marked romanization, already converted from the
	// numbered form found in the source file.
	Pinyin      string
	Definitions []string
}

// English joins the cleaned definitions into the stored gloss format.
func (e *Entry) English() string {
	return strings.Join(e.Definitions, "; ")
}

// Line grammar: Traditional Simplified [pin1 yin1] /def 1/def 2/.../
var lineRE = regexp.MustCompile(`^(\S+)\s+(\S+)\s+\[([^\]]+)\]\s+/(.+)/$`)

// Inline classifier annotations like "CL:家[jia1],個|个[ge4]" embedded in an
// otherwise useful definition.
var inlineClassifierRE = regexp.MustCompile(`\s*CL:[^\s,]+(?:,[^\s,]+)*`)

// ParseLine parses one raw line of dictionary text. It returns nil for blank
// lines, comments, lines that don't match the entry grammar, and entries
// whose definitions all get filtered away. A line is accepted or rejected
// atomically; no partial entries are produced.
func ParseLine(line string) *Entry {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	m := lineRE.FindStringSubmatch(line)
	if m == nil {
		return nil
	}

	defs := CleanDefinitions(m[4])
	if len(defs) == 0 {
		return nil
	}

	return &Entry{
		Traditional: m[1],
		Simplified:  m[2],
		Pinyin:      pinyin.Convert(m[3]),
		Definitions: defs,
	}
}

// CleanDefinitions splits a slash-delimited definition blob and filters out
// fragments that aren't definitions: classifier-only entries and
// cross-references to other entries. Inline classifier annotations are
// stripped from the fragments that remain. Order and multiplicity of the
// survivors are preserved.
func CleanDefinitions(raw string) []string {
	var cleaned []string
	for _, d := range strings.Split(raw, "/") {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if strings.HasPrefix(d, "CL:") {
			continue
		}
		if strings.HasPrefix(d, "variant of ") ||
			strings.HasPrefix(d, "see also ") ||
			strings.HasPrefix(d, "also written ") {
			continue
		}
		d = strings.TrimSpace(inlineClassifierRE.ReplaceAllString(d, ""))
		if strings.HasPrefix(d, "old variant of ") {
			continue
		}
		if d != "" {
			cleaned = append(cleaned, d)
		}
	}
	return cleaned
}
