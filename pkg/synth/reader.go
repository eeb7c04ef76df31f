package synth

import (
	"errors"
	"os"
	"unicode/utf8"
)

// ErrInvalidUTF8 is returned when an input file is not valid UTF-8 text.
var ErrInvalidUTF8 = errors.New("file is not valid UTF-8")

// FileReader reads request text from the local filesystem.
type FileReader struct{}

func (FileReader) ReadText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	return string(b), nil
}
