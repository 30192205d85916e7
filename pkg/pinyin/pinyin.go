package pinyin

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// toneMarks maps a base vowel to its four tone-marked forms (tone 1-4).
// 'v' is the common ASCII stand-in for 'ü' in numbered pinyin.
var toneMarks = map[rune][4]rune{
	'a': {'ā', 'á', 'ǎ', 'à'},
	'e': {'ē', 'é', 'ě', 'è'},
	'i': {'ī', 'í', 'ǐ', 'ì'},
	'o': {'ō', 'ó', 'ǒ', 'ò'},
	'u': {'ū', 'ú', 'ǔ', 'ù'},
	'ü': {'ǖ', 'ǘ', 'ǚ', 'ǜ'},
	'v': {'ǖ', 'ǘ', 'ǚ', 'ǜ'},
}

var syllableRE = regexp.MustCompile(`^([a-zA-ZüÜ]+)([0-9])$`)

// Convert turns a numbered-tone romanization (e.g. "ni3 hao3") into its
// tone-marked form ("nǐ hǎo"). Syllables are converted independently;
// anything that doesn't look like a numbered syllable passes through
// unchanged.
func Convert(raw string) string {
	syllables := strings.Fields(raw)
	for i, s := range syllables {
		syllables[i] = convertSyllable(s)
	}
	return strings.Join(syllables, " ")
}

func convertSyllable(syl string) string {
	syl = strings.ReplaceAll(syl, "u:", "ü")
	syl = strings.ReplaceAll(syl, "U:", "Ü")

	m := syllableRE.FindStringSubmatch(syl)
	if m == nil {
		return syl
	}
	letters := []rune(m[1])
	tone := int(m[2][0] - '0')
	if tone == 5 || tone == 0 {
		return string(letters)
	}
	if tone < 1 || tone > 4 {
		return syl
	}

	lower := []rune(strings.ToLower(string(letters)))

	// Standard placement rule: a and e always carry the mark; in "ou" the o
	// carries it; otherwise the last vowel does.
	idx := -1
	var vowel rune
	for _, p := range []rune{'a', 'e'} {
		for j, r := range lower {
			if r == p {
				idx, vowel = j, p
				break
			}
		}
		if idx >= 0 {
			break
		}
	}
	if idx < 0 {
		if j := strings.Index(string(lower), "ou"); j >= 0 {
			idx, vowel = len([]rune(string(lower)[:j])), 'o'
		} else {
			for j := len(lower) - 1; j >= 0; j-- {
				if _, ok := toneMarks[lower[j]]; ok {
					idx, vowel = j, lower[j]
					break
				}
			}
		}
	}

	marks, ok := toneMarks[vowel]
	if idx < 0 || !ok {
		// No eligible vowel: return the bare letters rather than failing.
		return string(letters)
	}

	marked := marks[tone-1]
	if unicode.IsUpper(letters[idx]) {
		marked = unicode.ToUpper(marked)
	}
	letters[idx] = marked
	return string(letters)
}

// Tone marks are combining characters after NFD decomposition: macron,
// acute, caron, grave. The diaeresis of ü is deliberately not in this set.
func isToneMark(r rune) bool {
	switch r {
	case 0x0304, 0x0301, 0x030C, 0x0300:
		return true
	}
	return false
}

var toneStripper = transform.Chain(norm.NFD, runes.Remove(runes.Predicate(isToneMark)), norm.NFC)

// StripTones removes tone marks from a tone-marked romanization, yielding
// the lowercase base letters ("nǐ hǎo" -> "ni hao", "lǜ" -> "lü"). Residual
// tone digits are dropped as well.
func StripTones(pinyin string) string {
	stripped, _, err := transform.String(toneStripper, pinyin)
	if err != nil {
		stripped = pinyin
	}
	stripped = strings.Map(func(r rune) rune {
		if r >= '1' && r <= '5' {
			return -1
		}
		return r
	}, stripped)
	return strings.ToLower(stripped)
}

// MatchKey derives the normalized pronunciation key used for identity
// matching: tone-stripped, lowercase, with internal spaces removed. It is
// never shown to users.
func MatchKey(pinyin string) string {
	return strings.ReplaceAll(StripTones(pinyin), " ", "")
}
