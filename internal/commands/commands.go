// Package commands exposes the content queries as named commands with JSON
// arguments, the shape the desktop front end invokes them with.
package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/FocuswithJustin/JuniperReader/core/content"
	"github.com/FocuswithJustin/JuniperReader/core/errors"
	"github.com/FocuswithJustin/JuniperReader/internal/logging"
)

// Command names.
const (
	GetTranslationsManifest = "get_translations_manifest"
	GetBookManifest         = "get_book_manifest"
	GetChapterContent       = "get_chapter_content"
)

// Names lists the supported commands.
var Names = []string{GetTranslationsManifest, GetBookManifest, GetChapterContent}

// Request is a named command with its JSON arguments.
type Request struct {
	Cmd  string          `json:"cmd"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Response is the result of a command. Error holds the failure message.
type Response struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// BookManifestArgs are the arguments of get_book_manifest.
type BookManifestArgs struct {
	LanguageCode      *string `json:"languageCode"`
	TranslationFolder *string `json:"translationFolder"`
}

// ChapterContentArgs are the arguments of get_chapter_content.
type ChapterContentArgs struct {
	LanguageCode      *string `json:"languageCode"`
	TranslationFolder *string `json:"translationFolder"`
	BookAbbr          *string `json:"bookAbbr"`
	ChapterNumber     *uint32 `json:"chapterNumber"`
}

// Surface answers commands against a resolver. It adds no logic of its own.
type Surface struct {
	resolver *content.Resolver
}

// New creates a Surface over resolver.
func New(resolver *content.Resolver) *Surface {
	return &Surface{resolver: resolver}
}

// GetTranslationsManifest returns every language with its translations.
func (s *Surface) GetTranslationsManifest() ([]content.LanguageInfo, error) {
	return s.resolver.ListLanguages()
}

// GetBookManifest returns the books of a translation.
func (s *Surface) GetBookManifest(languageCode, translationFolder string) ([]content.BookInfo, error) {
	return s.resolver.ListBooks(languageCode, translationFolder)
}

// GetChapterContent returns the verses of one chapter.
func (s *Surface) GetChapterContent(languageCode, translationFolder, bookAbbr string, chapterNumber uint32) ([]content.Verse, error) {
	return s.resolver.ChapterVerses(languageCode, translationFolder, bookAbbr, chapterNumber)
}

// Invoke runs req and reports the outcome as a Response.
func (s *Surface) Invoke(ctx context.Context, req Request) Response {
	start := time.Now()
	data, err := s.Call(req)
	logging.CommandInvoked(ctx, req.Cmd, time.Since(start), err)

	if err != nil {
		return Response{OK: false, Error: err.Error()}
	}
	return Response{OK: true, Data: data}
}

// Call runs req and returns its typed result. Unknown commands are a
// NotFoundError and malformed arguments a ValidationError.
func (s *Surface) Call(req Request) (any, error) {
	switch req.Cmd {
	case GetTranslationsManifest:
		return s.GetTranslationsManifest()

	case GetBookManifest:
		var args BookManifestArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return nil, err
		}
		if err := require(
			arg{"languageCode", args.LanguageCode != nil},
			arg{"translationFolder", args.TranslationFolder != nil},
		); err != nil {
			return nil, err
		}
		return s.GetBookManifest(*args.LanguageCode, *args.TranslationFolder)

	case GetChapterContent:
		var args ChapterContentArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return nil, err
		}
		if err := require(
			arg{"languageCode", args.LanguageCode != nil},
			arg{"translationFolder", args.TranslationFolder != nil},
			arg{"bookAbbr", args.BookAbbr != nil},
			arg{"chapterNumber", args.ChapterNumber != nil},
		); err != nil {
			return nil, err
		}
		return s.GetChapterContent(*args.LanguageCode, *args.TranslationFolder, *args.BookAbbr, *args.ChapterNumber)

	default:
		return nil, errors.NewNotFound("command", req.Cmd)
	}
}

// decodeArgs decodes a JSON object of arguments into v. Absent or null
// arguments decode as an empty object.
func decodeArgs(raw json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return errors.NewValidation("args", fmt.Sprintf("invalid arguments: %v", err))
	}
	return nil
}

type arg struct {
	name    string
	present bool
}

// require fails on the first missing argument.
func require(args ...arg) error {
	for _, a := range args {
		if !a.present {
			return errors.NewValidation(a.name, "missing required argument")
		}
	}
	return nil
}
