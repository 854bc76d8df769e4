package generator

import (
	"errors"
	"strings"
)

// ErrEmptyResponse is returned when the assistant produced no text.
var ErrEmptyResponse = errors.New("assistant returned an empty response")

// PostProcess trims an assistant answer and rejects empty ones.
func PostProcess(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
