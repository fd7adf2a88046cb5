package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/FocuswithJustin/JuniperReader/core/ref"
)

// LanguageInfo is one entry of translations_manifest.json.
type LanguageInfo struct {
	Code         string            `json:"code"`
	Name         string            `json:"name"`
	Translations []TranslationInfo `json:"translations"`
}

// TranslationInfo describes a translation of a language. Folder locates the
// translation's content under the language directory and may differ from ID.
type TranslationInfo struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Year   *uint16 `json:"year"`
	Folder string  `json:"folder"`
}

// BookInfo is one entry of a translation's manifest.json. Chapters is
// advisory and is not checked against the book file.
type BookInfo struct {
	Name     string `json:"name"`
	Abbr     string `json:"abbr"`
	Chapters uint32 `json:"chapters"`
}

// Verse is a verse of a chapter. The label is "1" or a range such as "1-2".
type Verse struct {
	Verse string `json:"verse"`
	Text  string `json:"text"`
}

// Label parses the verse label.
func (v Verse) Label() ref.VerseLabel {
	return ref.ParseVerseLabel(v.Verse)
}

// Chapter is a chapter of a book file.
type Chapter struct {
	Chapter ChapterID `json:"chapter"`
	Verses  []Verse   `json:"verses"`
}

// BookFile is the content of json/<abbr>.json.
type BookFile struct {
	Book        string    `json:"book"`
	BookAmharic *string   `json:"book_amharic"`
	Chapters    []Chapter `json:"chapters"`
}

// ChapterIDKind identifies which representation a chapter identity was stored as.
type ChapterIDKind int

const (
	// ChapterIDNone means the chapter field was absent or null.
	ChapterIDNone ChapterIDKind = iota
	// ChapterIDNumber is a non-negative JSON integer.
	ChapterIDNumber
	// ChapterIDText is a JSON string.
	ChapterIDText
	// ChapterIDOther is any other JSON value (negative, fractional, bool, object).
	ChapterIDOther
)

// ChapterID is a chapter identity as stored in a book file: datasets store it
// either as a number or as a numeral string.
type ChapterID struct {
	kind ChapterIDKind
	num  uint64
	text string
	raw  json.RawMessage
}

// NumberID returns a numeric chapter identity.
func NumberID(n uint64) ChapterID {
	return ChapterID{kind: ChapterIDNumber, num: n}
}

// TextID returns a textual chapter identity.
func TextID(s string) ChapterID {
	return ChapterID{kind: ChapterIDText, text: s}
}

// Kind returns the stored representation.
func (c ChapterID) Kind() ChapterIDKind {
	return c.kind
}

// Matches reports whether the identity equals the requested chapter number:
// a number must be equal, a string must equal the decimal form of n.
func (c ChapterID) Matches(n uint32) bool {
	switch c.kind {
	case ChapterIDNumber:
		return c.num == uint64(n)
	case ChapterIDText:
		return c.text == strconv.FormatUint(uint64(n), 10)
	default:
		return false
	}
}

// Number returns the chapter number the identity denotes, if any.
// Text identities count when they are plain decimal numerals.
func (c ChapterID) Number() (uint32, bool) {
	switch c.kind {
	case ChapterIDNumber:
		if c.num > 0 && c.num <= 1<<32-1 {
			return uint32(c.num), true
		}
	case ChapterIDText:
		n, err := strconv.ParseUint(c.text, 10, 32)
		if err == nil && n > 0 && strconv.FormatUint(n, 10) == c.text {
			return uint32(n), true
		}
	}
	return 0, false
}

func (c ChapterID) String() string {
	switch c.kind {
	case ChapterIDNumber:
		return strconv.FormatUint(c.num, 10)
	case ChapterIDText:
		return c.text
	case ChapterIDOther:
		return string(c.raw)
	default:
		return ""
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *ChapterID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*c = ChapterID{}

	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = TextID(s)
		return nil
	}

	if n, err := strconv.ParseUint(string(data), 10, 64); err == nil {
		*c = NumberID(n)
		return nil
	}

	if !json.Valid(data) {
		return fmt.Errorf("invalid chapter value %q", data)
	}
	c.kind = ChapterIDOther
	c.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON implements json.Marshaler, keeping the stored representation.
func (c ChapterID) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case ChapterIDNumber:
		return []byte(strconv.FormatUint(c.num, 10)), nil
	case ChapterIDText:
		return json.Marshal(c.text)
	case ChapterIDOther:
		return c.raw, nil
	default:
		return []byte("null"), nil
	}
}

// Required fields mirror the shape the content was authored against: a
// record missing one of them, or holding null, fails to parse.

func (l *LanguageInfo) UnmarshalJSON(data []byte) error {
	type plain LanguageInfo
	if err := requireFields(data, "code", "name", "translations"); err != nil {
		return err
	}
	return json.Unmarshal(data, (*plain)(l))
}

func (t *TranslationInfo) UnmarshalJSON(data []byte) error {
	type plain TranslationInfo
	if err := requireFields(data, "id", "name", "folder"); err != nil {
		return err
	}
	return json.Unmarshal(data, (*plain)(t))
}

func (b *BookInfo) UnmarshalJSON(data []byte) error {
	type plain BookInfo
	if err := requireFields(data, "name", "abbr", "chapters"); err != nil {
		return err
	}
	return json.Unmarshal(data, (*plain)(b))
}

func (v *Verse) UnmarshalJSON(data []byte) error {
	type plain Verse
	if err := requireFields(data, "verse", "text"); err != nil {
		return err
	}
	return json.Unmarshal(data, (*plain)(v))
}

func (c *Chapter) UnmarshalJSON(data []byte) error {
	type plain Chapter
	if err := requireFields(data, "verses"); err != nil {
		return err
	}
	return json.Unmarshal(data, (*plain)(c))
}

func (b *BookFile) UnmarshalJSON(data []byte) error {
	type plain BookFile
	if err := requireFields(data, "book", "chapters"); err != nil {
		return err
	}
	return json.Unmarshal(data, (*plain)(b))
}

// requireFields checks that data is a JSON object holding every named field
// with a non-null value.
func requireFields(data []byte, names ...string) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("expected object, got null")
	}
	for _, name := range names {
		v, ok := fields[name]
		if !ok {
			return fmt.Errorf("missing field `%s`", name)
		}
		if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return fmt.Errorf("field `%s` must not be null", name)
		}
	}
	return nil
}
