package ingest

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels matched by the typed parse errors through errors.Is.
var (
	ErrEmptyInput = errors.New("empty input")
	ErrSchema     = errors.New("schema error")
	ErrNoData     = errors.New("no valid data")
)

// EmptyInputError is returned for content with no characters other than whitespace.
type EmptyInputError struct {
	File string
}

func (e *EmptyInputError) Error() string {
	return withFile(e.File, "empty input")
}

func (e *EmptyInputError) Is(target error) bool { return target == ErrEmptyInput }

// SchemaError is returned when a header lacks required columns.
type SchemaError struct {
	File    string
	Missing []string
	Header  []string
}

func (e *SchemaError) Error() string {
	return withFile(e.File, fmt.Sprintf("header [%s] is missing column(s) %s",
		strings.Join(e.Header, ","), strings.Join(e.Missing, ", ")))
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// NoDataError is returned when every row was rejected.
type NoDataError struct {
	File    string
	Rows    int
	Skipped int
}

func (e *NoDataError) Error() string {
	return withFile(e.File, fmt.Sprintf("no valid points in %d row(s), %d skipped", e.Rows, e.Skipped))
}

func (e *NoDataError) Is(target error) bool { return target == ErrNoData }

func withFile(file, msg string) string {
	if file == "" {
		return msg
	}
	return file + ": " + msg
}
