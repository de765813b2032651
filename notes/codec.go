// Package notes finds base64-encoded clinical notes inside FHIR-style
// documents and rewrites them through a generator.
package notes

import (
	"encoding/base64"
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrDecode marks an attachment whose payload is not strict base64 of UTF-8 text.
var ErrDecode = errors.New("attachment is not base64-encoded UTF-8 text")

var strictB64 = base64.StdEncoding.Strict()

// DecodeText decodes an attachment token. Malformed input is rejected, never truncated.
func DecodeText(token string) (string, error) {
	raw, err := strictB64.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: payload is not valid UTF-8", ErrDecode)
	}
	return string(raw), nil
}

// EncodeText is the inverse of DecodeText.
func EncodeText(text string) string {
	return strictB64.EncodeToString([]byte(text))
}
