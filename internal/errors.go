package internal

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rtzll/vidscope/internal/store"
)

var (
	// ErrExtraction covers metadata and transcript fetch failures.
	ErrExtraction = errors.New("extraction failed")
	// ErrInvalidURL is an extraction failure caused by an unusable URL.
	ErrInvalidURL = fmt.Errorf("%w: invalid YouTube URL", ErrExtraction)
	// ErrAnalysis covers LLM call failures and malformed analysis replies.
	ErrAnalysis = errors.New("analysis failed")
	// ErrDrafting covers report drafting failures.
	ErrDrafting = errors.New("report drafting failed")
	// ErrPersistence covers database write failures.
	ErrPersistence = errors.New("persistence failed")
	// ErrNotFound is returned when a referenced video, segment or report is missing.
	ErrNotFound = store.ErrNotFound
	// ErrDownloadFailed is returned when yt-dlp fails to fetch subtitles.
	ErrDownloadFailed = errors.New("download failed")
)

// HTTPStatus maps an operation error to the status code shown to API callers.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrExtraction),
		errors.Is(err, ErrAnalysis),
		errors.Is(err, ErrDrafting),
		errors.Is(err, ErrPersistence):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message API callers see for err. Errors outside
// the domain taxonomy are replaced by a generic message.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	if HTTPStatus(err) == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}
