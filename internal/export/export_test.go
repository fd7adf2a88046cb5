package export

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/JuniperReader/core/content"
	"github.com/FocuswithJustin/JuniperReader/core/errors"
	"github.com/FocuswithJustin/JuniperReader/core/sqlite"
	"github.com/FocuswithJustin/JuniperReader/core/xml"
)

func setupTranslation(t *testing.T) *content.Resolver {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"translations_manifest.json": `[{"code":"amh","name":"Amharic","translations":[{"id":"amh-1962","name":"Amharic 1962","year":1962,"folder":"bible"}]}]`,
		"amh/bible/manifest.json": `[
			{"name":"Genesis","abbr":"Gen","chapters":3},
			{"name":"Exodus","abbr":"Exod","chapters":40},
			{"name":"Leviticus","abbr":"Lev","chapters":27}
		]`,
		"amh/bible/json/gen.json": `{"book":"Genesis","chapters":[
			{"chapter":1,"verses":[{"verse":"1","text":"In the beginning"},{"verse":"2-3","text":"Void & dark"}]},
			{"chapter":"2","verses":[{"verse":"1","text":"Thus the heavens"}]},
			{"chapter":2,"verses":[{"verse":"1","text":"shadowed"}]},
			{"chapter":4,"verses":[]},
			{"chapter":"intro","verses":[]}
		]}`,
		"amh/bible/json/lev.json": `{"book":`,
		"amh/empty/manifest.json": `[]`,
	}
	for name, data := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return content.NewResolver(content.FixedRoot(root))
}

func TestCollect(t *testing.T) {
	tr, report, err := Collect(setupTranslation(t), "amh", "bible")
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if tr.Info == nil || tr.Info.ID != "amh-1962" {
		t.Errorf("Info = %+v", tr.Info)
	}
	if len(tr.Books) != 1 || tr.Books[0].Abbr != "Gen" {
		t.Fatalf("books = %+v", tr.Books)
	}
	chapters := tr.Books[0].Chapters
	if len(chapters) != 2 || chapters[0].Number != 1 || chapters[1].Number != 2 {
		t.Fatalf("chapters = %+v", chapters)
	}
	if chapters[1].Verses[0].Text != "Thus the heavens" {
		t.Errorf("chapter 2 should come from the first matching entry, got %q", chapters[1].Verses[0].Text)
	}

	if report.Books != 1 || report.Chapters != 2 || report.Verses != 3 {
		t.Errorf("report counts = %d/%d/%d", report.Books, report.Chapters, report.Verses)
	}

	want := []struct {
		kind    IssueKind
		book    string
		chapter uint32
	}{
		{IssueMissingChapter, "Gen", 3},
		{IssueUnnumberedChapter, "Gen", 0},
		{IssueExtraChapter, "Gen", 4},
		{IssueDuplicateChapter, "Gen", 2},
		{IssueMissingBookFile, "Exod", 0},
		{IssueUnreadableBookFile, "Lev", 0},
	}
	if len(report.Issues) != len(want) {
		t.Fatalf("issues = %v", report.Issues)
	}
	for i, w := range want {
		got := report.Issues[i]
		if got.Kind != w.kind || got.Book != w.book || got.Chapter != w.chapter {
			t.Errorf("issue %d = %v, want %s %s %d", i, got, w.kind, w.book, w.chapter)
		}
	}
	if report.OK() {
		t.Error("report with issues should not be OK")
	}
	if !strings.Contains(report.Issues[4].Message, "exod.json") {
		t.Errorf("missing book message should name the probed files: %q", report.Issues[4].Message)
	}
}

func TestCollect_MissingChapterRanges(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		"amh/gaps/manifest.json": `[
			{"name":"Genesis","abbr":"Gen","chapters":9},
			{"name":"Psalms","abbr":"Ps","chapters":4294967295}
		]`,
		"amh/gaps/json/gen.json": `{"book":"Genesis","chapters":[
			{"chapter":5,"verses":[]},{"chapter":1,"verses":[]},{"chapter":3,"verses":[]}
		]}`,
		"amh/gaps/json/ps.json": `{"book":"Psalms","chapters":[{"chapter":1,"verses":[{"verse":"1","text":"Blessed"}]}]}`,
	}
	for name, data := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	tr, report, err := Collect(content.NewResolver(content.FixedRoot(root)), "amh", "gaps")
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	numbers := make([]uint32, 0, len(tr.Books[0].Chapters))
	for _, c := range tr.Books[0].Chapters {
		numbers = append(numbers, c.Number)
	}
	if want := []uint32{1, 3, 5}; !reflect.DeepEqual(numbers, want) {
		t.Errorf("Gen chapters = %v, want %v", numbers, want)
	}

	want := []Issue{
		{Kind: IssueMissingChapter, Book: "Gen", Chapter: 2},
		{Kind: IssueMissingChapter, Book: "Gen", Chapter: 4},
		{Kind: IssueMissingChapter, Book: "Gen", Chapter: 6, Through: 9},
		{Kind: IssueMissingChapter, Book: "Ps", Chapter: 2, Through: math.MaxUint32},
	}
	if len(report.Issues) != len(want) {
		t.Fatalf("issues = %v", report.Issues)
	}
	for i, w := range want {
		got := report.Issues[i]
		if got.Kind != w.Kind || got.Book != w.Book || got.Chapter != w.Chapter || got.Through != w.Through {
			t.Errorf("issue %d = %+v, want %+v", i, got, w)
		}
	}
	if got := report.Issues[2].String(); !strings.HasPrefix(got, "Gen 6-9: missing_chapter: 4 chapters") {
		t.Errorf("String() = %q", got)
	}
}

func TestCollect_Clean(t *testing.T) {
	_, report, err := Collect(setupTranslation(t), "amh", "empty")
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if !report.OK() || report.Books != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestCollect_ManifestFailure(t *testing.T) {
	_, _, err := Collect(setupTranslation(t), "amh", "missing")
	if !errors.Is(err, errors.ErrFileRead) {
		t.Errorf("error = %v, want file read error", err)
	}
}

func sampleTranslation() *Translation {
	year := uint16(1962)
	return &Translation{
		LanguageCode: "amh",
		Folder:       "bible",
		Info:         &content.TranslationInfo{ID: "amh-1962", Name: "Amharic 1962", Year: &year, Folder: "bible"},
		Books: []Book{
			{Abbr: "Gen", Name: "Genesis", Chapters: []Chapter{
				{Number: 1, Verses: []content.Verse{
					{Verse: "1", Text: "In the beginning"},
					{Verse: "2-3", Text: "Void & dark"},
					{Verse: "title", Text: "<Heading>"},
				}},
			}},
			{Abbr: "Exod", Name: "Exodus", Chapters: []Chapter{
				{Number: 1, Verses: []content.Verse{{Verse: "1", Text: "These are the names"}}},
			}},
		},
	}
}

func TestWriteJSON(t *testing.T) {
	tr := sampleTranslation()

	var plain bytes.Buffer
	if err := WriteJSON(&plain, tr, false); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if !strings.Contains(plain.String(), `"text": "Void & dark"`) {
		t.Errorf("output should be indented and unescaped:\n%s", plain.String())
	}

	var compressed bytes.Buffer
	if err := WriteJSON(&compressed, tr, true); err != nil {
		t.Fatalf("WriteJSON(compressed) error = %v", err)
	}
	r, err := xz.NewReader(&compressed)
	if err != nil {
		t.Fatalf("output is not xz: %v", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, plain.Bytes()) {
		t.Error("decompressed output differs from plain output")
	}

	var back Translation
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if len(back.Books) != 2 || back.Books[0].Chapters[0].Verses[1].Verse != "2-3" {
		t.Errorf("decoded = %+v", back)
	}
}

func TestWriteOSIS(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteOSIS(&buf, sampleTranslation()); err != nil {
		t.Fatalf("WriteOSIS() error = %v", err)
	}

	doc, err := xml.Parse(buf.Bytes())
	if err != nil {
		t.Fatalf("output is not well-formed: %v\n%s", err, buf.String())
	}

	counts := []struct {
		expr string
		want int
	}{
		{"//div[@type='book']", 2},
		{"//chapter", 2},
		{"//verse", 4},
		{"//verse[@osisID='Gen.1.2 Gen.1.3']", 1},
		{"//verse[not(@osisID)]", 1},
	}
	for _, c := range counts {
		got, err := doc.Count(c.expr)
		if err != nil {
			t.Fatalf("Count(%s) error = %v", c.expr, err)
		}
		if got != c.want {
			t.Errorf("Count(%s) = %d, want %d", c.expr, got, c.want)
		}
	}

	text, err := doc.XPathFirst("//osisText")
	if err != nil || text == nil {
		t.Fatalf("osisText missing: %v", err)
	}
	if text.Attr("osisIDWork") != "amh-1962" {
		t.Errorf("osisIDWork = %q", text.Attr("osisIDWork"))
	}

	heading, err := doc.XPathFirst("//verse[@n='title']")
	if err != nil || heading == nil {
		t.Fatalf("title verse missing: %v", err)
	}
	if heading.Text() != "<Heading>" {
		t.Errorf("verse text = %q", heading.Text())
	}

	date, err := doc.XPathFirst("//work/date")
	if err != nil || date == nil || date.Text() != "1962" {
		t.Errorf("work date = %v, %v", date, err)
	}
}

func TestVerseAttrs(t *testing.T) {
	tests := []struct {
		label  string
		osisID string
	}{
		{label: "1", osisID: "Gen.1.1"},
		{label: "2-4", osisID: "Gen.1.2 Gen.1.3 Gen.1.4"},
		{label: "1-200", osisID: "Gen.1.1 Gen.1.200"},
		{label: "1-201"},
		{label: "1-2000000"},
		{label: "title"},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			attrs := verseAttrs("Gen.1", tt.label)
			var osisID, n string
			for _, a := range attrs {
				switch a.Name {
				case "osisID":
					osisID = a.Value
				case "n":
					n = a.Value
				}
			}
			if n != tt.label {
				t.Errorf("n = %q, want %q", n, tt.label)
			}
			if tt.osisID == "" {
				if osisID != "" {
					t.Errorf("osisID = %.40q..., want none", osisID)
				}
				return
			}
			ids := strings.Fields(osisID)
			want := strings.Fields(tt.osisID)
			if len(ids) == 0 || ids[0] != want[0] || ids[len(ids)-1] != want[len(want)-1] {
				t.Errorf("osisID = %.60q, want it to run from %s to %s", osisID, want[0], want[len(want)-1])
			}
		})
	}
}

func TestWriteOSIS_WideRange(t *testing.T) {
	tr := sampleTranslation()
	tr.Books[0].Chapters[0].Verses = []content.Verse{{Verse: "1-2000000", Text: "x"}}

	var buf bytes.Buffer
	if err := WriteOSIS(&buf, tr); err != nil {
		t.Fatalf("WriteOSIS() error = %v", err)
	}
	if buf.Len() > 4096 {
		t.Errorf("document size = %d bytes, want a single verse element", buf.Len())
	}
	if !strings.Contains(buf.String(), `<verse n="1-2000000">x</verse>`) {
		t.Errorf("wide range should keep only its label:\n%s", buf.String())
	}
}

func TestWriteSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "amh.sqlite")
	// An existing file is replaced.
	if err := os.WriteFile(path, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := WriteSQLite(context.Background(), path, sampleTranslation()); err != nil {
		t.Fatalf("WriteSQLite() error = %v", err)
	}

	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var books, verses int
	if err := db.QueryRow(`SELECT COUNT(*) FROM books`).Scan(&books); err != nil {
		t.Fatal(err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM verses`).Scan(&verses); err != nil {
		t.Fatal(err)
	}
	if books != 2 || verses != 4 {
		t.Errorf("books=%d verses=%d, want 2 and 4", books, verses)
	}

	var text string
	err = db.QueryRow(`SELECT v.text FROM verses v JOIN books b ON b.id = v.book_id
		WHERE b.abbr = ? AND v.chapter = ? AND v.verse = ?`, "Gen", 1, "2-3").Scan(&text)
	if err != nil {
		t.Fatal(err)
	}
	if text != "Void & dark" {
		t.Errorf("text = %q", text)
	}

	var name string
	if err := db.QueryRow(`SELECT value FROM meta WHERE key = 'translation_name'`).Scan(&name); err != nil {
		t.Fatal(err)
	}
	if name != "Amharic 1962" {
		t.Errorf("translation_name = %q", name)
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	tr := sampleTranslation()

	for _, f := range Formats {
		t.Run(string(f), func(t *testing.T) {
			path := filepath.Join(dir, "out."+string(f))
			if err := WriteFile(context.Background(), tr, f, path, f == FormatJSON); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			info, err := os.Stat(path)
			if err != nil || info.Size() == 0 {
				t.Errorf("output missing or empty: %v", err)
			}
		})
	}

	err := WriteFile(context.Background(), tr, FormatJSON, filepath.Join(dir, "missing", "out.json"), false)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want not-exist IO error", err)
	}
	if err := WriteFile(context.Background(), tr, Format("pdf"), filepath.Join(dir, "out.pdf"), false); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("error = %v, want validation error", err)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "json", want: FormatJSON},
		{in: "OSIS", want: FormatOSIS},
		{in: " sqlite ", want: FormatSQLite},
		{in: "usfm", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
