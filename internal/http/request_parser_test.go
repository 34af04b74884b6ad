package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func postForm(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	_ = req.ParseForm()
	return req
}

func TestFormValue(t *testing.T) {
	req := postForm(url.Values{"amount": {"  12.5 "}, "description": {"rent\x00 paid"}})

	if v, ok := formValue(req, "amount"); !ok || v != "12.5" {
		t.Errorf("formValue(amount) = %q, %v", v, ok)
	}
	if v, _ := formValue(req, "description"); v != "rent paid" {
		t.Errorf("formValue(description) = %q, want control characters stripped", v)
	}
	if _, ok := formValue(req, "date"); ok {
		t.Error("formValue(date) reported a value that was never posted")
	}
}

func TestPostedGeneration(t *testing.T) {
	tests := []struct {
		name   string
		values url.Values
		want   uint64
		wantOK bool
	}{
		{"valid", url.Values{"generation": {"7"}}, 7, true},
		{"missing", url.Values{}, 0, false},
		{"empty", url.Values{"generation": {""}}, 0, false},
		{"negative", url.Values{"generation": {"-1"}}, 0, false},
		{"garbage", url.Values{"generation": {"abc"}}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := postedGeneration(postForm(tt.values))
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("postedGeneration() = %d, %v, want %d, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestTriggerName(t *testing.T) {
	req := postForm(url.Values{"field": {"date"}})
	if got := triggerName(req); got != "date" {
		t.Errorf("triggerName() = %q, want fallback to the field value", got)
	}

	req.Header.Set("HX-Trigger-Name", "amount")
	if got := triggerName(req); got != "amount" {
		t.Errorf("triggerName() = %q, want the HX-Trigger-Name header", got)
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  hello  ", "hello"},
		{"line\nbreak", "line\nbreak"},
		{"tab\there", "tab\there"},
		{"bell\x07", "bell"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := sanitizeInput(tt.input); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseFormOrFail(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("a=%zz"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp := ParseFormOrFail(req)
	if resp == nil {
		t.Fatal("ParseFormOrFail() = nil, want an error response for a malformed body")
	}
	w := httptest.NewRecorder()
	resp.Write(w)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
