// Package export gathers a whole translation through the content resolver,
// reports gaps in it, and writes it out as JSON, OSIS XML or SQLite.
package export

import (
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/FocuswithJustin/JuniperReader/core/content"
	"github.com/FocuswithJustin/JuniperReader/core/errors"
	"github.com/FocuswithJustin/JuniperReader/internal/logging"
)

// Translation is every chapter of a translation that could be resolved.
type Translation struct {
	LanguageCode string                   `json:"language_code" yaml:"language_code"`
	Folder       string                   `json:"folder" yaml:"folder"`
	Info         *content.TranslationInfo `json:"translation,omitempty" yaml:"translation,omitempty"`
	Books        []Book                   `json:"books" yaml:"books"`
}

// Book is one book of a Translation.
type Book struct {
	Abbr     string    `json:"abbr" yaml:"abbr"`
	Name     string    `json:"name" yaml:"name"`
	Chapters []Chapter `json:"chapters" yaml:"chapters"`
}

// Chapter holds the verses resolved for one chapter number.
type Chapter struct {
	Number uint32          `json:"number" yaml:"number"`
	Verses []content.Verse `json:"verses" yaml:"verses"`
}

// IssueKind classifies a Report issue.
type IssueKind string

const (
	IssueMissingBookFile    IssueKind = "missing_book_file"
	IssueUnreadableBookFile IssueKind = "unreadable_book_file"
	IssueMissingChapter     IssueKind = "missing_chapter"
	IssueExtraChapter       IssueKind = "extra_chapter"
	IssueDuplicateChapter   IssueKind = "duplicate_chapter"
	IssueUnnumberedChapter  IssueKind = "unnumbered_chapter"
)

// Issue is a gap or inconsistency found while collecting.
type Issue struct {
	Kind    IssueKind `json:"kind" yaml:"kind"`
	Book    string    `json:"book" yaml:"book"`
	Chapter uint32    `json:"chapter,omitempty" yaml:"chapter,omitempty"`
	// Through ends a span of missing chapters starting at Chapter.
	Through uint32 `json:"through,omitempty" yaml:"through,omitempty"`
	Message string `json:"message" yaml:"message"`
}

func (i Issue) String() string {
	if i.Through > i.Chapter {
		return fmt.Sprintf("%s %d-%d: %s: %s", i.Book, i.Chapter, i.Through, i.Kind, i.Message)
	}
	if i.Chapter > 0 {
		return fmt.Sprintf("%s %d: %s: %s", i.Book, i.Chapter, i.Kind, i.Message)
	}
	return fmt.Sprintf("%s: %s: %s", i.Book, i.Kind, i.Message)
}

// Report summarizes a Collect run.
type Report struct {
	LanguageCode string  `json:"language_code" yaml:"language_code"`
	Folder       string  `json:"folder" yaml:"folder"`
	Books        int     `json:"books" yaml:"books"`
	Chapters     int     `json:"chapters" yaml:"chapters"`
	Verses       int     `json:"verses" yaml:"verses"`
	Issues       []Issue `json:"issues" yaml:"issues"`
}

// OK reports whether the translation had no issues.
func (r *Report) OK() bool {
	return len(r.Issues) == 0
}

func (r *Report) add(kind IssueKind, book string, chapter uint32, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{
		Kind:    kind,
		Book:    book,
		Chapter: chapter,
		Message: fmt.Sprintf(format, args...),
	})
}

// Collect resolves every book in the translation's manifest and the chapters
// 1..BookInfo.Chapters of each that the book file holds. Missing books and
// gaps in the chapter numbers are reported as issues; only a failure to read
// the book manifest is returned as an error.
func Collect(resolver *content.Resolver, languageCode, translationFolder string) (*Translation, *Report, error) {
	manifest, err := resolver.ListBooks(languageCode, translationFolder)
	if err != nil {
		return nil, nil, err
	}

	t := &Translation{
		LanguageCode: languageCode,
		Folder:       translationFolder,
		Info:         lookupTranslation(resolver, languageCode, translationFolder),
		Books:        make([]Book, 0, len(manifest)),
	}
	report := &Report{LanguageCode: languageCode, Folder: translationFolder}

	for _, info := range manifest {
		path, file, err := resolver.LoadBook(languageCode, translationFolder, info.Abbr)
		switch {
		case errors.Is(err, errors.ErrBookFileNotFound):
			report.add(IssueMissingBookFile, info.Abbr, 0, "%v", err)
			continue
		case err != nil:
			report.add(IssueUnreadableBookFile, info.Abbr, 0, "%v", err)
			continue
		}

		numbers := lo.FilterMap(file.Chapters, func(c content.Chapter, _ int) (uint32, bool) {
			return c.Chapter.Number()
		})
		declared := lo.Uniq(lo.Filter(numbers, func(n uint32, _ int) bool { return n <= info.Chapters }))
		slices.Sort(declared)

		book := Book{Abbr: info.Abbr, Name: info.Name}
		for _, n := range declared {
			verses, err := content.FindChapter(file, n)
			if err != nil {
				continue
			}
			book.Chapters = append(book.Chapters, Chapter{Number: n, Verses: verses})
			report.Chapters++
			report.Verses += len(verses)
		}
		reportMissing(report, info, declared, path)
		auditChapterIDs(report, info, file, numbers)

		t.Books = append(t.Books, book)
		report.Books++
	}

	logging.Info("translation collected",
		"language", languageCode,
		"folder", translationFolder,
		"books", report.Books,
		"chapters", report.Chapters,
		"verses", report.Verses,
		"issues", len(report.Issues))
	return t, report, nil
}

// reportMissing reports each run of chapter numbers in 1..info.Chapters
// absent from present, which must be sorted and unique, as one issue.
func reportMissing(report *Report, info content.BookInfo, present []uint32, path string) {
	missing := func(from, through uint64) {
		issue := Issue{
			Kind:    IssueMissingChapter,
			Book:    info.Abbr,
			Chapter: uint32(from),
			Message: fmt.Sprintf("not in %s", path),
		}
		if through > from {
			issue.Through = uint32(through)
			issue.Message = fmt.Sprintf("%d chapters not in %s", through-from+1, path)
		}
		report.Issues = append(report.Issues, issue)
	}

	next := uint64(1)
	for _, n := range present {
		if uint64(n) > next {
			missing(next, uint64(n)-1)
		}
		next = uint64(n) + 1
	}
	if next <= uint64(info.Chapters) {
		missing(next, uint64(info.Chapters))
	}
}

// auditChapterIDs reports chapter entries that lookups by number will never
// return: beyond the declared count, shadowed by an earlier entry with the
// same number, or not numbered at all.
func auditChapterIDs(report *Report, info content.BookInfo, file *content.BookFile, numbers []uint32) {
	for _, c := range file.Chapters {
		if _, ok := c.Chapter.Number(); !ok {
			report.add(IssueUnnumberedChapter, info.Abbr, 0, "chapter identity %q is not a chapter number", c.Chapter.String())
		}
	}

	extra := lo.Uniq(lo.Filter(numbers, func(n uint32, _ int) bool { return n > info.Chapters }))
	slices.Sort(extra)
	for _, n := range extra {
		report.add(IssueExtraChapter, info.Abbr, n, "manifest declares %d chapters", info.Chapters)
	}

	counts := lo.CountValues(numbers)
	dups := lo.Keys(lo.PickBy(counts, func(_ uint32, c int) bool { return c > 1 }))
	slices.Sort(dups)
	for _, n := range dups {
		report.add(IssueDuplicateChapter, info.Abbr, n, "%d entries, only the first is served", counts[n])
	}
}

// lookupTranslation finds the manifest entry for folder. The translations
// manifest is optional for an export.
func lookupTranslation(resolver *content.Resolver, languageCode, folder string) *content.TranslationInfo {
	langs, err := resolver.ListLanguages()
	if err != nil {
		logging.Debug("translations manifest unavailable", "error", err.Error())
		return nil
	}
	lang, ok := lo.Find(langs, func(l content.LanguageInfo) bool { return l.Code == languageCode })
	if !ok {
		return nil
	}
	info, ok := lo.Find(lang.Translations, func(t content.TranslationInfo) bool { return t.Folder == folder })
	if !ok {
		return nil
	}
	return &info
}
