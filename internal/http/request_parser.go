// Package http serves the finplan web client.
//
// This file implements utilities for reading HTMX form posts. Every form
// endpoint posts the whole form, so handlers read values through these
// helpers instead of touching r.Form directly.

package http

import (
	"net/http"
	"strconv"
	"strings"
)

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format")
	}
	return nil
}

// formValue returns the sanitized value of key and whether it was posted.
func formValue(r *http.Request, key string) (string, bool) {
	vs, ok := r.PostForm[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return sanitizeInput(vs[0]), true
}

// postedGeneration reads the hidden generation input. ok is false when it is
// missing or malformed.
func postedGeneration(r *http.Request) (uint64, bool) {
	v, ok := formValue(r, "generation")
	if !ok || v == "" {
		return 0, false
	}
	gen, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return gen, true
}

// triggerName is the name of the input that fired the request. htmx sends it
// as HX-Trigger-Name; plain posts name it in a "field" value.
func triggerName(r *http.Request) string {
	if name := strings.TrimSpace(r.Header.Get("HX-Trigger-Name")); name != "" {
		return name
	}
	v, _ := formValue(r, "field")
	return v
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// sanitizeInput removes control characters and trims whitespace. Tabs and
// newlines survive for descriptions.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
