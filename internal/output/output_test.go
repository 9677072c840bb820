package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/observability"
)

// =============================================================================
// Exit Codes Tests
// =============================================================================

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{CodeUsage, ExitUsage},
		{CodeNotFound, ExitNotFound},
		{CodeConfig, ExitConfig},
		{CodeUnhealthy, ExitUnhealthy},
		{CodeStore, ExitStore},
		{CodeInternal, ExitInternal},
		{"unknown_code", ExitInternal},
		{"", ExitInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := ExitCodeFor(tt.code); got != tt.expected {
				t.Errorf("ExitCodeFor(%q) = %d, want %d", tt.code, got, tt.expected)
			}
		})
	}
}

func TestExitCodeConstants(t *testing.T) {
	if ExitUnhealthy != 9 {
		t.Errorf("ExitUnhealthy = %d, want 9", ExitUnhealthy)
	}
	if ExitStore != 10 {
		t.Errorf("ExitStore = %d, want 10", ExitStore)
	}
}

func TestHTTPStatusFor(t *testing.T) {
	tests := map[string]int{
		CodeUsage:     400,
		CodeNotFound:  404,
		CodeUnhealthy: 503,
		CodeStore:     503,
		CodeInternal:  500,
		CodeConfig:    500,
	}
	for code, want := range tests {
		if got := HTTPStatusFor(code); got != want {
			t.Errorf("HTTPStatusFor(%q) = %d, want %d", code, got, want)
		}
	}
}

// =============================================================================
// Error Tests
// =============================================================================

func TestErrorInterface(t *testing.T) {
	err := &Error{Code: CodeUsage, Message: "bad flag"}
	if err.Error() != "bad flag" {
		t.Errorf("Error() = %q", err.Error())
	}

	err.Hint = "see --help"
	if err.Error() != "bad flag: see --help" {
		t.Errorf("Error() with hint = %q", err.Error())
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := ErrStore(cause)

	if !errors.Is(err, cause) {
		t.Error("expected ErrStore to wrap its cause")
	}
	if err.Hint != "disk full" {
		t.Errorf("Hint = %q, want cause text", err.Hint)
	}
	if err.ExitCode() != ExitStore {
		t.Errorf("ExitCode() = %d, want %d", err.ExitCode(), ExitStore)
	}
	if err.HTTPStatus() != 503 {
		t.Errorf("HTTPStatus() = %d, want 503", err.HTTPStatus())
	}
}

func TestErrNotFound(t *testing.T) {
	err := ErrNotFoundHint("record", "userz", "Run: storewatch registry")
	if err.Message != "record not found: userz" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.ExitCode() != ExitNotFound {
		t.Errorf("ExitCode() = %d", err.ExitCode())
	}
}

func TestErrConfig(t *testing.T) {
	cause := errors.New("invalid configuration: Store.Backend must be one of [file sqlite badger memory]")
	err := ErrConfig(cause)
	if err.Code != CodeConfig || !errors.Is(err, cause) {
		t.Errorf("unexpected config error: %+v", err)
	}
}

func TestErrUnhealthy(t *testing.T) {
	err := ErrUnhealthy(2)
	if !strings.Contains(err.Message, "2 error(s)") {
		t.Errorf("Message = %q", err.Message)
	}
	if err.ExitCode() != ExitUnhealthy {
		t.Errorf("ExitCode() = %d", err.ExitCode())
	}
}

func TestAsErrorWithOutputError(t *testing.T) {
	orig := ErrUsage("missing key")
	if got := AsError(orig); got != orig {
		t.Error("expected AsError to return the same *Error")
	}
}

func TestAsErrorWithWrappedOutputError(t *testing.T) {
	orig := ErrNotFound("record", "x")
	wrapped := fmt.Errorf("check: %w", orig)
	if got := AsError(wrapped); got != orig {
		t.Error("expected AsError to unwrap to the original *Error")
	}
}

func TestAsErrorWithStandardError(t *testing.T) {
	err := AsError(errors.New("boom"))
	if err.Code != CodeInternal || err.Message != "boom" {
		t.Errorf("unexpected conversion: %+v", err)
	}
}

// =============================================================================
// Writer Tests
// =============================================================================

func TestWriterOK(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatJSON, Writer: &buf})

	if err := w.OK(map[string]any{"key": "users"}, WithSummary("1 record")); err != nil {
		t.Fatalf("OK() failed: %v", err)
	}

	var resp Response
	if err := json.Unmarshal(buf.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !resp.OK || resp.Summary != "1 record" {
		t.Errorf("unexpected envelope: %+v", resp)
	}
}

func TestWriterErr(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatJSON, Writer: &buf})

	if err := w.Err(ErrUsageHint("bad", "try again")); err != nil {
		t.Fatalf("Err() failed: %v", err)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(buf.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.OK || resp.Code != CodeUsage || resp.Hint != "try again" {
		t.Errorf("unexpected error envelope: %+v", resp)
	}
}

func TestWriterQuietFormat(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatQuiet, Writer: &buf})

	if err := w.OK([]string{"users", "videos"}, WithSummary("ignored")); err != nil {
		t.Fatalf("OK() failed: %v", err)
	}

	var keys []string
	if err := json.Unmarshal(buf.Bytes(), &keys); err != nil {
		t.Fatalf("quiet output should be bare data: %v (%s)", err, buf.String())
	}
	if len(keys) != 2 {
		t.Errorf("keys = %v", keys)
	}
}

func TestWriterAutoNonTTYIsJSON(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatAuto, Writer: &buf})

	if err := w.OK("hello"); err != nil {
		t.Fatalf("OK() failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"ok": true`) {
		t.Errorf("expected JSON envelope, got: %s", buf.String())
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"json":     FormatJSON,
		"markdown": FormatMarkdown,
		"md":       FormatMarkdown,
		"styled":   FormatStyled,
		"quiet":    FormatQuiet,
		"auto":     FormatAuto,
		"":         FormatAuto,
		"xml":      FormatAuto,
	}
	for name, want := range tests {
		if got := ParseFormat(name); got != want {
			t.Errorf("ParseFormat(%q) = %d, want %d", name, got, want)
		}
	}
}

func TestNewWithNilWriter(t *testing.T) {
	w := New(Options{Format: FormatJSON})
	if w.opts.Writer == nil {
		t.Error("expected nil writer to default to stdout")
	}
}

func TestWithContextAndMeta(t *testing.T) {
	resp := &Response{}
	WithContext("backend", "file")(resp)
	WithMeta("origin", "abc")(resp)
	WithBreadcrumbs(Breadcrumb{Cmd: "a"})(resp)
	WithBreadcrumbs(Breadcrumb{Cmd: "b"})(resp)

	if resp.Context["backend"] != "file" || resp.Meta["origin"] != "abc" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if len(resp.Breadcrumbs) != 2 {
		t.Errorf("breadcrumbs should append, got %d", len(resp.Breadcrumbs))
	}
}

// =============================================================================
// Normalization Tests
// =============================================================================

type sampleRecord struct {
	Key      string `json:"key"`
	State    string `json:"state"`
	Repaired bool   `json:"repaired"`
}

type sampleResult struct {
	IsHealthy bool           `json:"is_healthy"`
	Records   []sampleRecord `json:"records"`
}

func TestNormalizeDataWithStruct(t *testing.T) {
	got := normalizeData(sampleResult{
		IsHealthy: true,
		Records:   []sampleRecord{{Key: "users", State: "valid"}},
	})

	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("expected map, got %T", got)
	}
	rows, ok := m["records"].([]map[string]any)
	if !ok {
		t.Fatalf("expected nested records to normalize, got %T", m["records"])
	}
	if rows[0]["key"] != "users" {
		t.Errorf("unexpected row: %v", rows[0])
	}
}

func TestNormalizeDataWithJSONRawMessage(t *testing.T) {
	got := normalizeData(json.RawMessage(`[{"key":"a"},{"key":"b"}]`))
	if rows, ok := got.([]map[string]any); !ok || len(rows) != 2 {
		t.Errorf("unexpected normalization: %#v", got)
	}
}

func TestNormalizeDataPassthrough(t *testing.T) {
	if normalizeData(nil) != nil {
		t.Error("nil should stay nil")
	}
	if normalizeData("x") != "x" {
		t.Error("strings should pass through")
	}
}

func TestFormatCell(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{true, "yes"},
		{false, "no"},
		{float64(3), "3"},
		{1.5, "1.50"},
		{[]any{"users", "videos"}, "users, videos"},
		{strings.Repeat("x", 50), strings.Repeat("x", 37) + "..."},
	}
	for _, tt := range tests {
		if got := formatCell(tt.in); got != tt.want {
			t.Errorf("formatCell(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatHeader(t *testing.T) {
	if got := formatHeader("repaired_keys"); got != "Repaired Keys" {
		t.Errorf("formatHeader = %q", got)
	}
	if got := formatHeader("started_at"); got != "Started" {
		t.Errorf("formatHeader = %q", got)
	}
}

func TestFormatDateValue(t *testing.T) {
	recent := time.Now().Add(-5 * time.Minute).Format(time.RFC3339Nano)
	if got := formatDateValue("started_at", recent); got != "5 minutes ago" {
		t.Errorf("formatDateValue(recent) = %q", got)
	}
	if got := formatDateValue("key", recent); got == "5 minutes ago" {
		t.Error("non-date columns should not be humanized")
	}
	if got := formatDateValue("timestamp", "garbage"); got != "garbage" {
		t.Errorf("unparseable timestamps pass through, got %q", got)
	}
}

// =============================================================================
// Markdown / Styled Tests
// =============================================================================

func TestWriterMarkdownFormatError(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatMarkdown, Writer: &buf})

	if err := w.Err(ErrNotFound("record", "userz")); err != nil {
		t.Fatalf("Err() failed: %v", err)
	}

	output := buf.String()
	if strings.Contains(output, `"ok":`) {
		t.Errorf("Markdown error output should not contain JSON, got: %s", output)
	}
	if !strings.Contains(output, "**Error:** record not found: userz") {
		t.Errorf("unexpected markdown error, got: %s", output)
	}
}

func TestWriterMarkdownFormatTable(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatMarkdown, Writer: &buf})

	data := []map[string]any{
		{"key": "users", "state": "valid", "required": true},
		{"key": "messages", "state": "missing_optional", "required": false, "description": "a|b"},
	}
	if err := w.OK(data, WithSummary("2 records")); err != nil {
		t.Fatalf("OK() failed: %v", err)
	}

	output := buf.String()
	if !strings.HasPrefix(output, "## 2 records") {
		t.Errorf("expected summary heading, got: %s", output)
	}
	if !strings.Contains(output, "| Key | State | Required | Description |") {
		t.Errorf("expected ordered header row, got: %s", output)
	}
	if !strings.Contains(output, `a\|b`) {
		t.Errorf("expected escaped pipe, got: %s", output)
	}
}

func TestWriterMarkdownFormatNestedRecords(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatMarkdown, Writer: &buf})

	res := sampleResult{
		IsHealthy: true,
		Records: []sampleRecord{
			{Key: "users", State: "corrupt", Repaired: true},
		},
	}
	if err := w.OK(res); err != nil {
		t.Fatalf("OK() failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "- **Is Healthy:** yes") {
		t.Errorf("expected object field, got: %s", output)
	}
	if !strings.Contains(output, "### Records") || !strings.Contains(output, "| users | corrupt | yes |") {
		t.Errorf("expected nested records table, got: %s", output)
	}
}

func TestWriterMarkdownFormatBreadcrumbsAndStats(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatMarkdown, Writer: &buf})

	start := time.Now()
	stats := &observability.SessionMetrics{StartTime: start, EndTime: start.Add(time.Millisecond), TotalChecks: 2}
	err := w.OK(map[string]any{"key": "users"},
		WithBreadcrumbs(Breadcrumb{Action: "repair", Cmd: "storewatch repair --all", Description: "Reset every record"}),
		WithStats(stats),
	)
	if err != nil {
		t.Fatalf("OK() failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "- `storewatch repair --all`: Reset every record") {
		t.Errorf("expected breadcrumb, got: %s", output)
	}
	if !strings.Contains(output, "*Stats: 1ms | 2 checks*") {
		t.Errorf("expected stats line, got: %s", output)
	}
}

func TestWriterMarkdownNoANSI(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatMarkdown, Writer: &buf})

	if err := w.Err(ErrNotFound("record", "x")); err != nil {
		t.Fatalf("Err() failed: %v", err)
	}
	if strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("Markdown output should not contain ANSI codes, got: %q", buf.String())
	}
}

func TestWriterStyledEmitsANSI(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	var buf bytes.Buffer
	w := New(Options{Format: FormatStyled, Writer: &buf})

	if err := w.Err(ErrNotFound("record", "x")); err != nil {
		t.Fatalf("Err() failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "\x1b[") {
		t.Errorf("Styled output should contain ANSI codes, got: %q", output)
	}
	if !strings.Contains(output, "Error:") {
		t.Errorf("Styled output should contain 'Error:', got: %s", output)
	}
}

func TestWriterStyledRespectsNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	w := New(Options{Format: FormatStyled, Writer: &buf})

	if err := w.OK([]map[string]any{{"key": "users", "state": "corrupt"}}); err != nil {
		t.Fatalf("OK() failed: %v", err)
	}

	output := buf.String()
	if strings.Contains(output, "\x1b[") {
		t.Errorf("NO_COLOR output should not contain ANSI codes, got: %q", output)
	}
	if !strings.Contains(output, "users") || !strings.Contains(output, "corrupt") {
		t.Errorf("expected table content, got: %s", output)
	}
}

func TestWriterStyledEmptyList(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	w := New(Options{Format: FormatStyled, Writer: &buf})

	if err := w.OK([]map[string]any{}); err != nil {
		t.Fatalf("OK() failed: %v", err)
	}
	if !strings.Contains(buf.String(), "(no results)") {
		t.Errorf("expected empty marker, got: %s", buf.String())
	}
}

func TestStateStyle(t *testing.T) {
	r := NewRendererWithPalette(&bytes.Buffer{}, true, DefaultPalette)
	if r.stateStyle("valid").GetForeground() != r.Success.GetForeground() {
		t.Error("valid should use the success color")
	}
	if r.stateStyle("missing_optional").GetForeground() != r.Warning.GetForeground() {
		t.Error("missing_optional should use the warning color")
	}
	if r.stateStyle("corrupt").GetForeground() != r.Error.GetForeground() {
		t.Error("corrupt should use the error color")
	}
}
