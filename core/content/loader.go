package content

import (
	"encoding/json"
	"os"

	"github.com/FocuswithJustin/JuniperReader/core/errors"
)

// ReadJSON reads the whole file at path and decodes it into a T.
// A read failure is a FileReadError and a decode failure is a ParseError;
// nothing is returned on either.
func ReadJSON[T any](path string) (T, error) {
	var zero T

	data, err := os.ReadFile(path)
	if err != nil {
		return zero, errors.NewFileRead(path, err)
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		parseErr := errors.NewParse("JSON", path, err.Error())
		parseErr.Err = err
		return zero, parseErr
	}

	return v, nil
}
