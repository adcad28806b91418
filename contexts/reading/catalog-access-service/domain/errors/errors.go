package errors

import "errors"

var (
	ErrNovelNotFound   = errors.New("novel not found")
	ErrChapterNotFound = errors.New("chapter not found")
	ErrInvalidGrant    = errors.New("invalid unlock grant")
	ErrInvalidRequest  = errors.New("invalid request")
)
