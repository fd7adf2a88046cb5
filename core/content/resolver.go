// Package content resolves scripture content stored as a tree of JSON files:
//
//	<root>/translations_manifest.json
//	<root>/<language>/<translation folder>/manifest.json
//	<root>/<language>/<translation folder>/json/<book abbr>.json
//
// Every query re-reads the files it needs; a Resolver holds no state beyond
// how to locate the root, so it is safe for concurrent use.
//
// Language codes, translation folders and book abbreviations are joined into
// paths as given. They are expected to come from the manifests themselves;
// callers that accept them from elsewhere must validate them first.
package content

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"github.com/FocuswithJustin/JuniperReader/core/errors"
	"github.com/FocuswithJustin/JuniperReader/internal/logging"
)

const (
	// TranslationsManifestName is the language/translation manifest at the root.
	TranslationsManifestName = "translations_manifest.json"
	// BookManifestName is the book manifest inside a translation folder.
	BookManifestName = "manifest.json"
	// BookDirName is the directory of book files inside a translation folder.
	BookDirName = "json"
)

// Resolver answers content queries against a content root.
type Resolver struct {
	root RootConfig
}

// NewResolver creates a Resolver that locates its root with cfg on every call.
func NewResolver(cfg RootConfig) *Resolver {
	return &Resolver{root: cfg}
}

// Root resolves the content root.
func (r *Resolver) Root() (string, error) {
	return ResolveRoot(r.root)
}

// ListLanguages returns the languages of translations_manifest.json in file order.
func (r *Resolver) ListLanguages() ([]LanguageInfo, error) {
	root, err := r.Root()
	if err != nil {
		return nil, err
	}

	path := filepath.Join(root, TranslationsManifestName)
	logging.ContentLookup("translations_manifest", path)
	return ReadJSON[[]LanguageInfo](path)
}

// ListBooks returns the books of a translation's manifest.json in file order.
func (r *Resolver) ListBooks(languageCode, translationFolder string) ([]BookInfo, error) {
	root, err := r.Root()
	if err != nil {
		return nil, err
	}

	path := filepath.Join(root, languageCode, translationFolder, BookManifestName)
	logging.ContentLookup("book_manifest", path)
	return ReadJSON[[]BookInfo](path)
}

// LoadBook loads the book file for bookAbbr. The lowercased abbreviation is
// tried first, then the abbreviation as given. It returns the path that was
// loaded.
func (r *Resolver) LoadBook(languageCode, translationFolder, bookAbbr string) (string, *BookFile, error) {
	root, err := r.Root()
	if err != nil {
		return "", nil, err
	}

	dir := filepath.Join(root, languageCode, translationFolder, BookDirName)
	candidates := bookFileNames(bookAbbr)

	for _, name := range lo.Uniq(candidates) {
		path := filepath.Join(dir, name)
		logging.ContentLookup("book_file", path)

		if _, err := os.Stat(path); err != nil {
			continue
		}

		book, err := ReadJSON[BookFile](path)
		if err != nil {
			return "", nil, err
		}
		logging.Debug("book file loaded", "path", path, "chapters", len(book.Chapters))
		return path, &book, nil
	}

	return "", nil, errors.NewBookFileNotFound(bookAbbr, dir, candidates...)
}

// bookFileNames returns the lowercased and the as-given filename for an
// abbreviation, in probe order. Both are returned even when they are equal.
func bookFileNames(bookAbbr string) []string {
	return []string{
		strings.ToLower(bookAbbr) + ".json",
		bookAbbr + ".json",
	}
}

// ChapterVerses loads a book and returns the verses of chapter n.
func (r *Resolver) ChapterVerses(languageCode, translationFolder, bookAbbr string, n uint32) ([]Verse, error) {
	path, book, err := r.LoadBook(languageCode, translationFolder, bookAbbr)
	if err != nil {
		return nil, err
	}

	verses, err := FindChapter(book, n)
	if err != nil {
		return nil, errors.NewChapterNotFound(n, bookAbbr, path)
	}
	return verses, nil
}

// FindChapter returns the verses of the first chapter, in file order, whose
// identity matches n.
func FindChapter(book *BookFile, n uint32) ([]Verse, error) {
	ch, ok := lo.Find(book.Chapters, func(c Chapter) bool {
		return c.Chapter.Matches(n)
	})
	if !ok {
		return nil, errors.NewChapterNotFound(n, book.Book, "")
	}
	return ch.Verses, nil
}
