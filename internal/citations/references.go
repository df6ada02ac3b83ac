// Package citations parses scripture references such as "MT 5:1-12A" and maps
// English and USCCB book names to the Vietnamese names used by the verse store.
package citations

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Reference is one parsed scripture reference.
type Reference struct {
	Original   string // Matched text
	Book       string // Vietnamese short name when known, else the book as written
	BookName   string // Vietnamese long name, empty when unknown
	Chapter    int
	VerseStart int
	VerseEnd   int // Equal to VerseStart for a single verse
	Known      bool
}

// String formats the reference with the normalized book, e.g. "Mt 5:1-12".
func (r Reference) String() string {
	if r.VerseEnd > r.VerseStart {
		return fmt.Sprintf("%s %d:%d-%d", r.Book, r.Chapter, r.VerseStart, r.VerseEnd)
	}
	return fmt.Sprintf("%s %d:%d", r.Book, r.Chapter, r.VerseStart)
}

// Handles "Matthew 5:3-4", "1 Cor 13:4", "MT 5:1-12A", "Mk. 1:14–20" and "Matthew 5, 3-4".
// Verse letter suffixes are dropped.
var referencePattern = regexp.MustCompile(
	`(?i)\b((?:[1-3]\s?)?[a-z][a-z\-]*)\.?\s+(\d+)\s*[:,]\s*(\d+)[a-z]?(?:\s*[-–]\s*(\d+)[a-z]?)?`)

type book struct {
	short string
	long  string
}

var (
	genesis       = book{"St", "Sáng Thế"}
	exodus        = book{"Xh", "Xuất Hành"}
	leviticus     = book{"Lv", "Lêvi"}
	numbers       = book{"Ds", "Dân Số"}
	deuteronomy   = book{"Đnl", "Đệ Nhị Luật"}
	psalms        = book{"Tv", "Thánh Vịnh"}
	proverbs      = book{"Cn", "Châm Ngôn"}
	isaiah        = book{"Is", "Isaia"}
	jeremiah      = book{"Gr", "Giêrêmia"}
	ezekiel       = book{"Ed", "Êdêkien"}
	daniel        = book{"Đn", "Đaniel"}
	matthew       = book{"Mt", "Mátthêu"}
	mark          = book{"Mc", "Máccô"}
	luke          = book{"Lc", "Luca"}
	john          = book{"Ga", "Gioan"}
	acts          = book{"Cv", "Công Vụ Tông Đồ"}
	romans        = book{"Rm", "Rôma"}
	corinthians1  = book{"1Cr", "1 Côrintô"}
	corinthians2  = book{"2Cr", "2 Côrintô"}
	galatians     = book{"Gl", "Galát"}
	ephesians     = book{"Ep", "Êphêxô"}
	philippians   = book{"Pl", "Philípphê"}
	colossians    = book{"Cl", "Côlôxê"}
	thessalonian1 = book{"1Tx", "1 Thêxalônica"}
	thessalonian2 = book{"2Tx", "2 Thêxalônica"}
	timothy1      = book{"1Tm", "1 Timôthê"}
	timothy2      = book{"2Tm", "2 Timôthê"}
	titus         = book{"Tt", "Titô"}
	philemon      = book{"Plm", "Philêmon"}
	hebrews       = book{"Dt", "Do Thái"}
	james         = book{"Gc", "Giacôbê"}
	peter1        = book{"1Pr", "1 Phêrô"}
	peter2        = book{"2Pr", "2 Phêrô"}
	john1         = book{"1Ga", "1 Gioan"}
	john2         = book{"2Ga", "2 Gioan"}
	john3         = book{"3Ga", "3 Gioan"}
	jude          = book{"Gđ", "Giuđa"}
	revelation    = book{"Kh", "Khải Huyền"}
)

// books maps lower-cased English names and abbreviations to Vietnamese books.
var books = map[string]book{
	"genesis": genesis, "gen": genesis, "gn": genesis,
	"exodus": exodus, "exod": exodus, "ex": exodus,
	"leviticus": leviticus, "lev": leviticus, "lv": leviticus,
	"numbers": numbers, "num": numbers, "nm": numbers,
	"deuteronomy": deuteronomy, "deut": deuteronomy, "dt": deuteronomy,
	"psalm": psalms, "psalms": psalms, "ps": psalms, "pss": psalms,
	"proverbs": proverbs, "prov": proverbs, "prv": proverbs,
	"isaiah": isaiah, "isa": isaiah, "is": isaiah,
	"jeremiah": jeremiah, "jer": jeremiah,
	"ezekiel": ezekiel, "ez": ezekiel, "ezek": ezekiel,
	"daniel": daniel, "dn": daniel, "dan": daniel,
	"matthew": matthew, "matt": matthew, "mt": matthew,
	"mark": mark, "mk": mark,
	"luke": luke, "lk": luke,
	"john": john, "jn": john,
	"acts": acts,
	"romans": romans, "rom": romans, "rm": romans,
	"1 corinthians": corinthians1, "1 cor": corinthians1,
	"2 corinthians": corinthians2, "2 cor": corinthians2,
	"galatians": galatians, "gal": galatians,
	"ephesians": ephesians, "eph": ephesians,
	"philippians": philippians, "phil": philippians,
	"colossians": colossians, "col": colossians,
	"1 thessalonians": thessalonian1, "1 thess": thessalonian1, "1 thes": thessalonian1,
	"2 thessalonians": thessalonian2, "2 thess": thessalonian2, "2 thes": thessalonian2,
	"1 timothy": timothy1, "1 tim": timothy1, "1 tm": timothy1,
	"2 timothy": timothy2, "2 tim": timothy2, "2 tm": timothy2,
	"titus": titus, "ti": titus, "tt": titus,
	"philemon": philemon, "phlm": philemon,
	"hebrews": hebrews, "heb": hebrews,
	"james": james, "jas": james,
	"1 peter": peter1, "1 pet": peter1, "1 pt": peter1,
	"2 peter": peter2, "2 pet": peter2, "2 pt": peter2,
	"1 john": john1, "1 jn": john1,
	"2 john": john2, "2 jn": john2,
	"3 john": john3, "3 jn": john3,
	"jude": jude, "jud": jude,
	"revelation": revelation, "rev": revelation, "rv": revelation,
}

// Parse returns every reference found in text, in order of appearance.
func Parse(text string) []Reference {
	var refs []Reference
	for _, m := range referencePattern.FindAllStringSubmatch(text, -1) {
		chapter, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		start, err := strconv.Atoi(m[3])
		if err != nil {
			continue
		}
		end := start
		if m[4] != "" {
			if end, err = strconv.Atoi(m[4]); err != nil || end < start {
				end = start
			}
		}

		ref := Reference{
			Original:   strings.TrimSpace(m[0]),
			Book:       strings.TrimSpace(m[1]),
			Chapter:    chapter,
			VerseStart: start,
			VerseEnd:   end,
		}
		if b, ok := lookupBook(ref.Book); ok {
			ref.Book = b.short
			ref.BookName = b.long
			ref.Known = true
		}
		refs = append(refs, ref)
	}
	return refs
}

// First returns the first reference in text.
func First(text string) (Reference, bool) {
	refs := Parse(text)
	if len(refs) == 0 {
		return Reference{}, false
	}
	return refs[0], true
}

// NormalizeBook returns the Vietnamese short and long names for an English
// book name or abbreviation.
func NormalizeBook(name string) (short, long string, ok bool) {
	b, ok := lookupBook(name)
	return b.short, b.long, ok
}

func lookupBook(name string) (book, bool) {
	key := strings.ToLower(strings.ReplaceAll(name, ".", ""))
	key = strings.Join(strings.Fields(key), " ")
	// "1cor" and "1 cor" are the same book
	if len(key) > 1 && key[0] >= '1' && key[0] <= '3' && key[1] != ' ' {
		key = key[:1] + " " + key[1:]
	}
	b, ok := books[key]
	return b, ok
}
