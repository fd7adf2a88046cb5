// Package ref parses the short scripture references accepted by the reader:
// book/chapter references such as "Gen.3" or "1Ch 5", and verse labels such
// as "1" or "1-2" as they appear in book files.
package ref

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// ChapterRef identifies a chapter of a book by abbreviation.
type ChapterRef struct {
	// Book is the book abbreviation as written (e.g., "Gen", "1Ch", "gen").
	Book string `json:"book"`

	// Chapter is the 1-based chapter number, 0 when the reference names only a book.
	Chapter uint32 `json:"chapter,omitempty"`
}

// chapterRefGrammar is the participle grammar for book/chapter references.
// Examples: "Gen", "Gen.3", "Gen 3", "1Ch.5", "gen.50"
//
//nolint:govet // participle grammar tags are not standard struct tags
type chapterRefGrammar struct {
	BookPrefix string `@Int?`
	BookName   string `@Ident`
	Chapter    *int   `( "."? @Int )?`
}

// chapterRefLexer accepts lowercase abbreviations and non-Latin letters,
// since book abbreviations follow the casing of each dataset.
var chapterRefLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Ident", Pattern: `\p{L}[\p{L}\p{M}_]*`},
	{Name: "Punct", Pattern: `\.`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var chapterRefParser = participle.MustBuild[chapterRefGrammar](
	participle.Lexer(chapterRefLexer),
	participle.Elide("Whitespace"),
)

// ParseChapterRef parses a book/chapter reference.
// Supported formats:
//   - "Gen" (book only, Chapter is 0)
//   - "Gen.3" or "Gen 3" (book and chapter)
//   - "1Ch.5" (numbered book)
func ParseChapterRef(s string) (*ChapterRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty reference string")
	}

	parsed, err := chapterRefParser.ParseString("", s)
	if err != nil {
		return nil, fmt.Errorf("invalid reference format: %q: %w", s, err)
	}

	r := &ChapterRef{Book: parsed.BookPrefix + parsed.BookName}
	if parsed.Chapter != nil {
		if *parsed.Chapter < 1 || int64(*parsed.Chapter) > math.MaxUint32 {
			return nil, fmt.Errorf("invalid reference format: %q: chapter out of range", s)
		}
		r.Chapter = uint32(*parsed.Chapter)
	}

	return r, nil
}

// String returns the dotted form of the reference.
func (r *ChapterRef) String() string {
	if r.Chapter == 0 {
		return r.Book
	}
	return r.Book + "." + strconv.FormatUint(uint64(r.Chapter), 10)
}

// VerseLabel is a parsed verse label. Labels are free text in book files;
// Numeric reports whether the label was a single number or an ascending range.
type VerseLabel struct {
	Raw     string `json:"raw"`
	Start   int    `json:"start,omitempty"`
	End     int    `json:"end,omitempty"`
	Numeric bool   `json:"numeric"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type verseLabelGrammar struct {
	Start int  `@Int`
	End   *int `( "-" @Int )?`
}

var verseLabelLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Punct", Pattern: `-`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var verseLabelParser = participle.MustBuild[verseLabelGrammar](
	participle.Lexer(verseLabelLexer),
	participle.Elide("Whitespace"),
)

// ParseVerseLabel parses a verse label such as "1" or "1-2". Labels that are
// not numeric keep only Raw.
func ParseVerseLabel(s string) VerseLabel {
	label := VerseLabel{Raw: s}

	parsed, err := verseLabelParser.ParseString("", strings.TrimSpace(s))
	if err != nil {
		return label
	}

	end := parsed.Start
	if parsed.End != nil {
		end = *parsed.End
	}
	if parsed.Start < 1 || end < parsed.Start {
		return label
	}

	label.Start = parsed.Start
	label.End = end
	label.Numeric = true
	return label
}

// IsRange returns true if the label spans more than one verse.
func (l VerseLabel) IsRange() bool {
	return l.Numeric && l.End > l.Start
}

// Contains returns true if verse n falls within a numeric label.
func (l VerseLabel) Contains(n int) bool {
	return l.Numeric && n >= l.Start && n <= l.End
}
