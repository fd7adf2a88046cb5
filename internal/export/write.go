package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/JuniperReader/core/errors"
	"github.com/FocuswithJustin/JuniperReader/core/ref"
	"github.com/FocuswithJustin/JuniperReader/core/sqlite"
	"github.com/FocuswithJustin/JuniperReader/core/xml"
	"github.com/FocuswithJustin/JuniperReader/internal/logging"
)

// Format is an export output format.
type Format string

const (
	FormatJSON   Format = "json"
	FormatOSIS   Format = "osis"
	FormatSQLite Format = "sqlite"
)

// Formats lists the supported formats.
var Formats = []Format{FormatJSON, FormatOSIS, FormatSQLite}

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", errors.NewValidation("format", fmt.Sprintf("unknown export format %q", s))
}

// OSISNamespace is the OSIS 2.1 XML namespace.
const OSISNamespace = "http://www.bibletechnologies.net/2003/OSIS/namespace"

// WriteFile writes t to path in format. compress applies to JSON only.
func WriteFile(ctx context.Context, t *Translation, format Format, path string, compress bool) error {
	var err error
	switch format {
	case FormatSQLite:
		err = WriteSQLite(ctx, path, t)
	case FormatJSON, FormatOSIS:
		err = writeStream(t, format, path, compress)
	default:
		err = errors.NewValidation("format", fmt.Sprintf("unknown export format %q", format))
	}
	if err != nil {
		return err
	}

	logging.Info("export written", "format", string(format), "path", path, "compressed", compress && format == FormatJSON)
	return nil
}

func writeStream(t *Translation, format Format, path string, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.NewIO("create", path, err)
	}

	if format == FormatOSIS {
		err = WriteOSIS(f, t)
	} else {
		err = WriteJSON(f, t, compress)
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = errors.NewIO("close", path, cerr)
	}
	return err
}

// WriteJSON writes t as indented JSON, xz-compressed when compress is set.
func WriteJSON(w io.Writer, t *Translation, compress bool) error {
	out := w
	var zw *xz.Writer
	if compress {
		var err error
		zw, err = xz.NewWriter(w)
		if err != nil {
			return errors.Wrap(err, "xz writer")
		}
		out = zw
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(t); err != nil {
		return errors.NewIO("write", "", err)
	}

	if zw != nil {
		if err := zw.Close(); err != nil {
			return errors.NewIO("write", "", err)
		}
	}
	return nil
}

// WriteOSIS writes t as an OSIS document. Numeric verse labels become
// osisIDs ("1-2" lists both verses); other labels, and ranges wider than
// MaxVerseSpan, are kept in the n attribute only.
func WriteOSIS(w io.Writer, t *Translation) error {
	work := t.Folder
	title := t.Folder
	if t.Info != nil {
		work = t.Info.ID
		title = t.Info.Name
	}

	doc, root := xml.NewDocument("osis", xml.Attr{Name: "xmlns", Value: OSISNamespace})
	text := root.AddElement("osisText",
		xml.Attr{Name: "osisIDWork", Value: work},
		xml.Attr{Name: "osisRefWork", Value: "Bible"},
		xml.Attr{Name: "xml:lang", Value: t.LanguageCode})

	header := text.AddElement("header").AddElement("work", xml.Attr{Name: "osisWork", Value: work})
	header.AddElement("title").SetText(title)
	if t.Info != nil && t.Info.Year != nil {
		header.AddElement("date").SetText(strconv.Itoa(int(*t.Info.Year)))
	}
	header.AddElement("language").SetText(t.LanguageCode)

	for _, b := range t.Books {
		book := text.AddElement("div",
			xml.Attr{Name: "type", Value: "book"},
			xml.Attr{Name: "osisID", Value: b.Abbr})
		book.AddElement("title").SetText(b.Name)

		for _, c := range b.Chapters {
			chapterID := b.Abbr + "." + strconv.FormatUint(uint64(c.Number), 10)
			chapter := book.AddElement("chapter", xml.Attr{Name: "osisID", Value: chapterID})
			for _, v := range c.Verses {
				chapter.AddElement("verse", verseAttrs(chapterID, v.Verse)...).SetText(v.Text)
			}
		}
	}

	if _, err := w.Write(doc.Bytes()); err != nil {
		return errors.NewIO("write", "", err)
	}
	return nil
}

// MaxVerseSpan is the widest verse range WriteOSIS expands into osisIDs.
const MaxVerseSpan = 200

func verseAttrs(chapterID, label string) []xml.Attr {
	parsed := ref.ParseVerseLabel(label)
	if !parsed.Numeric || parsed.End-parsed.Start >= MaxVerseSpan {
		return []xml.Attr{{Name: "n", Value: label}}
	}
	ids := make([]string, 0, parsed.End-parsed.Start+1)
	for n := parsed.Start; n <= parsed.End; n++ {
		ids = append(ids, chapterID+"."+strconv.Itoa(n))
	}
	return []xml.Attr{{Name: "osisID", Value: strings.Join(ids, " ")}, {Name: "n", Value: label}}
}

const sqliteSchema = `
CREATE TABLE meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE books (
	id       INTEGER PRIMARY KEY,
	abbr     TEXT NOT NULL,
	name     TEXT NOT NULL,
	chapters INTEGER NOT NULL
);
CREATE TABLE verses (
	book_id INTEGER NOT NULL REFERENCES books(id),
	chapter INTEGER NOT NULL,
	ord     INTEGER NOT NULL,
	verse   TEXT NOT NULL,
	text    TEXT NOT NULL,
	PRIMARY KEY (book_id, chapter, ord)
);`

// WriteSQLite writes t to a new database at path, replacing any file there.
func WriteSQLite(ctx context.Context, path string, t *Translation) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.NewIO("remove", path, err)
	}

	db, err := sqlite.Open(path)
	if err != nil {
		return errors.NewIO("open", path, err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return errors.NewIO("create schema", path, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewIO("begin", path, err)
	}
	defer tx.Rollback()

	meta := [][2]string{
		{"language_code", t.LanguageCode},
		{"folder", t.Folder},
		{"driver", sqlite.DriverType()},
	}
	if t.Info != nil {
		meta = append(meta, [2]string{"translation_id", t.Info.ID}, [2]string{"translation_name", t.Info.Name})
	}
	for _, kv := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, kv[0], kv[1]); err != nil {
			return errors.NewIO("insert meta", path, err)
		}
	}

	verseStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO verses (book_id, chapter, ord, verse, text) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.NewIO("prepare", path, err)
	}
	defer verseStmt.Close()

	for i, b := range t.Books {
		bookID := i + 1
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO books (id, abbr, name, chapters) VALUES (?, ?, ?, ?)`,
			bookID, b.Abbr, b.Name, len(b.Chapters)); err != nil {
			return errors.NewIO("insert book", path, err)
		}
		for _, c := range b.Chapters {
			for ord, v := range c.Verses {
				if _, err := verseStmt.ExecContext(ctx, bookID, c.Number, ord+1, v.Verse, v.Text); err != nil {
					return errors.NewIO("insert verse", path, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewIO("commit", path, err)
	}
	logging.Debug("sqlite export written", "path", path, "driver", sqlite.DriverName(), "books", len(t.Books))
	return nil
}
