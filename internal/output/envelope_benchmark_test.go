package output

import (
	"bytes"
	"encoding/json"
	"testing"
)

// BenchmarkNormalizeData benchmarks the data normalization function
func BenchmarkNormalizeData(b *testing.B) {
	b.Run("json_raw_message_array", func(b *testing.B) {
		raw := json.RawMessage(`[{"key":"users","state":"valid"},{"key":"videos","state":"corrupt"}]`)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			normalizeData(raw)
		}
	})

	b.Run("struct_with_records", func(b *testing.B) {
		res := sampleResult{
			IsHealthy: true,
			Records:   []sampleRecord{{Key: "users", State: "valid"}, {Key: "videos", State: "valid"}},
		}
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			normalizeData(res)
		}
	})

	b.Run("already_normalized_slice", func(b *testing.B) {
		data := []map[string]any{{"key": "users"}, {"key": "videos"}}
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			normalizeData(data)
		}
	})
}

// BenchmarkWriterOK benchmarks full envelope rendering per format
func BenchmarkWriterOK(b *testing.B) {
	data := []map[string]any{
		{"key": "users", "state": "valid", "required": true},
		{"key": "appointments", "state": "corrupt", "required": true, "repaired": true},
	}

	for _, tc := range []struct {
		name   string
		format Format
	}{
		{"json", FormatJSON},
		{"quiet", FormatQuiet},
		{"markdown", FormatMarkdown},
	} {
		b.Run(tc.name, func(b *testing.B) {
			var buf bytes.Buffer
			w := New(Options{Format: tc.format, Writer: &buf})
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				buf.Reset()
				_ = w.OK(data, WithSummary("2 records"))
			}
		})
	}
}
