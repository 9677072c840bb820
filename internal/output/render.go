package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/term"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/observability"
)

// Palette holds the hex colors used by the styled renderer.
type Palette struct {
	Primary    string
	Foreground string
	Muted      string
	Error      string
	Warning    string
	Success    string
}

// DefaultPalette is tuned for dark terminals.
var DefaultPalette = Palette{
	Primary:    "#7aa2f7",
	Foreground: "#c0caf5",
	Muted:      "#737aa2",
	Error:      "#f7768e",
	Warning:    "#e0af68",
	Success:    "#9ece6a",
}

// Renderer handles styled terminal output.
type Renderer struct {
	width  int
	styled bool

	// Text styles
	Summary lipgloss.Style
	Muted   lipgloss.Style
	Data    lipgloss.Style
	Error   lipgloss.Style
	Hint    lipgloss.Style
	Warning lipgloss.Style
	Success lipgloss.Style

	// Table styles
	Header    lipgloss.Style
	Cell      lipgloss.Style
	CellMuted lipgloss.Style
}

// NewRenderer creates a renderer with the default palette.
// Styling is enabled when writing to a TTY, or when forceStyled is true,
// and always disabled when NO_COLOR is set.
func NewRenderer(w io.Writer, forceStyled bool) *Renderer {
	return NewRendererWithPalette(w, forceStyled, DefaultPalette)
}

// NewRendererWithPalette creates a renderer with a specific palette.
func NewRendererWithPalette(w io.Writer, forceStyled bool, p Palette) *Renderer {
	width, isTTY := terminalInfo(w)
	styled := (isTTY || forceStyled) && os.Getenv("NO_COLOR") == ""

	// lipgloss.NewRenderer does not pass the profile through to table cells,
	// so the global profile is set instead.
	if styled {
		lipgloss.SetColorProfile(2) // TrueColor
	} else {
		lipgloss.SetColorProfile(0) // Ascii
	}

	r := &Renderer{
		width:  width,
		styled: styled,
	}

	if styled {
		r.Summary = lipgloss.NewStyle().Foreground(lipgloss.Color(p.Primary)).Bold(true)
		r.Muted = lipgloss.NewStyle().Foreground(lipgloss.Color(p.Muted))
		r.Data = lipgloss.NewStyle().Foreground(lipgloss.Color(p.Foreground))
		r.Error = lipgloss.NewStyle().Foreground(lipgloss.Color(p.Error)).Bold(true)
		r.Hint = lipgloss.NewStyle().Foreground(lipgloss.Color(p.Muted)).Italic(true)
		r.Warning = lipgloss.NewStyle().Foreground(lipgloss.Color(p.Warning))
		r.Success = lipgloss.NewStyle().Foreground(lipgloss.Color(p.Success))
		r.Header = lipgloss.NewStyle().Foreground(lipgloss.Color(p.Foreground)).Bold(true)
		r.Cell = lipgloss.NewStyle().Foreground(lipgloss.Color(p.Foreground))
		r.CellMuted = lipgloss.NewStyle().Foreground(lipgloss.Color(p.Muted))
	} else {
		r.Summary = lipgloss.NewStyle()
		r.Muted = lipgloss.NewStyle()
		r.Data = lipgloss.NewStyle()
		r.Error = lipgloss.NewStyle()
		r.Hint = lipgloss.NewStyle()
		r.Warning = lipgloss.NewStyle()
		r.Success = lipgloss.NewStyle()
		r.Header = lipgloss.NewStyle()
		r.Cell = lipgloss.NewStyle()
		r.CellMuted = lipgloss.NewStyle()
	}

	return r
}

// terminalInfo returns the terminal width and whether the writer is a TTY.
func terminalInfo(w io.Writer) (width int, isTTY bool) {
	width = 80

	if f, ok := w.(*os.File); ok {
		if w, _, err := term.GetSize(f.Fd()); err == nil && w >= 40 {
			width = w
		}
		fi, err := f.Stat()
		if err == nil && (fi.Mode()&os.ModeCharDevice) != 0 {
			isTTY = true
		}
	}

	return width, isTTY
}

// RenderResponse renders a success response to the writer.
func (r *Renderer) RenderResponse(w io.Writer, resp *Response) error {
	var b strings.Builder

	if resp.Summary != "" {
		b.WriteString(r.Summary.Render(resp.Summary))
		b.WriteString("\n\n")
	}

	r.renderData(&b, normalizeData(resp.Data))

	if len(resp.Breadcrumbs) > 0 {
		b.WriteString("\n")
		r.renderBreadcrumbs(&b, resp.Breadcrumbs)
	}

	if stats := extractStats(resp.Meta); stats != nil {
		b.WriteString("\n")
		r.renderStats(&b, stats)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderError renders an error response to the writer.
func (r *Renderer) RenderError(w io.Writer, resp *ErrorResponse) error {
	var b strings.Builder

	b.WriteString(r.Error.Render("Error: " + resp.Error))
	b.WriteString("\n")

	if resp.Hint != "" {
		b.WriteString(r.Hint.Render("Hint: " + resp.Hint))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) renderData(b *strings.Builder, data any) {
	switch d := data.(type) {
	case []map[string]any:
		if len(d) == 0 {
			b.WriteString(r.Muted.Render("(no results)"))
			b.WriteString("\n")
			return
		}
		r.renderTable(b, d)

	case map[string]any:
		r.renderObject(b, d)

	case []any:
		if len(d) == 0 {
			b.WriteString(r.Muted.Render("(no results)"))
			b.WriteString("\n")
			return
		}
		r.renderList(b, d)

	case string:
		b.WriteString(r.Data.Render(d))
		b.WriteString("\n")

	case nil:
		b.WriteString(r.Muted.Render("(no data)"))
		b.WriteString("\n")

	default:
		b.WriteString(r.Data.Render(fmt.Sprintf("%v", data)))
		b.WriteString("\n")
	}
}

// Column priority for table rendering (lower = higher priority)
var columnPriority = map[string]int{
	"key":         1,
	"pid":         1,
	"state":       2,
	"origin":      2,
	"required":    3,
	"repaired":    3,
	"backend":     3,
	"reason":      4,
	"error":       5,
	"value":       5,
	"detail":      6,
	"description": 7,
	"started_at":  8,
	"timestamp":   8,
	"updated_at":  9,
}

// Columns to render in muted style
var mutedColumns = map[string]bool{
	"pid":        true,
	"origin":     true,
	"detail":     true,
	"started_at": true,
	"timestamp":  true,
	"updated_at": true,
}

// Columns to skip in tables
var skipColumns = map[string]bool{
	"default": true,
}

type column struct {
	key      string
	header   string
	priority int
	muted    bool
	width    int
}

func (r *Renderer) renderTable(b *strings.Builder, data []map[string]any) {
	columns := detectColumns(data)
	if len(columns) == 0 {
		return
	}

	columns = r.selectColumns(columns, data)

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return r.Header
			}
			if col >= len(columns) {
				return r.Cell
			}
			if columns[col].key == "state" && row >= 0 && row < len(data) {
				return r.stateStyle(data[row]["state"])
			}
			if columns[col].muted {
				return r.CellMuted
			}
			return r.Cell
		})

	headers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = col.header
	}
	t.Headers(headers...)

	for _, item := range data {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = formatDateValue(col.key, item[col.key])
		}
		t.Row(row...)
	}

	b.WriteString(t.String())
	b.WriteString("\n")
}

// stateStyle colors a record state: valid is green, a tolerated absence is
// amber, everything else is red.
func (r *Renderer) stateStyle(v any) lipgloss.Style {
	switch v {
	case "valid":
		return r.Success
	case "missing_optional":
		return r.Warning
	case nil, "":
		return r.Cell
	default:
		return r.Error
	}
}

func detectColumns(data []map[string]any) []column {
	if len(data) == 0 {
		return nil
	}

	// Union of keys across rows so sparse fields (error, reason) still show.
	seen := map[string]bool{}
	var cols []column
	for _, row := range data {
		for key, val := range row {
			if seen[key] || skipColumns[key] {
				continue
			}
			switch val.(type) {
			case map[string]any, []map[string]any, []any:
				continue
			}
			seen[key] = true

			priority := columnPriority[key]
			if priority == 0 {
				priority = 50
			}
			cols = append(cols, column{
				key:      key,
				header:   formatHeader(key),
				priority: priority,
				muted:    mutedColumns[key],
			})
		}
	}

	sort.Slice(cols, func(i, j int) bool {
		if cols[i].priority != cols[j].priority {
			return cols[i].priority < cols[j].priority
		}
		return cols[i].key < cols[j].key
	})

	return cols
}

func (r *Renderer) selectColumns(cols []column, data []map[string]any) []column {
	if len(cols) == 0 {
		return cols
	}

	for i := range cols {
		cols[i].width = lipgloss.Width(cols[i].header)
		for _, row := range data {
			cellWidth := lipgloss.Width(formatCell(row[cols[i].key]))
			if cellWidth > cols[i].width {
				cols[i].width = cellWidth
			}
		}
		if cols[i].width > 40 {
			cols[i].width = 40
		}
	}

	padding := 2
	selected := make([]column, len(cols))
	copy(selected, cols)

	for len(selected) > 1 {
		total := 0
		for _, col := range selected {
			total += col.width + padding
		}
		if total <= r.width {
			break
		}
		selected = selected[:len(selected)-1]
	}

	return selected
}

type renderField struct {
	key      string
	priority int
}

func objectFields(data map[string]any) []renderField {
	var fields []renderField
	for k, v := range data {
		switch v.(type) {
		case map[string]any, []map[string]any:
			continue
		}
		priority := columnPriority[k]
		if priority == 0 {
			priority = 50
		}
		fields = append(fields, renderField{key: k, priority: priority})
	}

	sort.Slice(fields, func(i, j int) bool {
		if fields[i].priority != fields[j].priority {
			return fields[i].priority < fields[j].priority
		}
		return fields[i].key < fields[j].key
	})
	return fields
}

func (r *Renderer) renderObject(b *strings.Builder, data map[string]any) {
	fields := objectFields(data)
	if len(fields) == 0 {
		b.WriteString(r.Muted.Render("(no data)"))
		b.WriteString("\n")
		return
	}

	maxLen := 0
	for _, f := range fields {
		if label := formatHeader(f.key); len(label) > maxLen {
			maxLen = len(label)
		}
	}

	for _, f := range fields {
		label := formatHeader(f.key)
		labelStyled := r.Muted.Render(fmt.Sprintf("%-*s: ", maxLen, label))

		value := formatDateValue(f.key, data[f.key])
		var valueStyled string
		switch {
		case f.key == "state":
			valueStyled = r.stateStyle(data[f.key]).Render(value)
		case mutedColumns[f.key]:
			valueStyled = r.CellMuted.Render(value)
		default:
			valueStyled = r.Data.Render(value)
		}
		b.WriteString(labelStyled + valueStyled + "\n")
	}

	// Nested record lists (a health result's records) render as a table below.
	for _, k := range nestedTableKeys(data) {
		rows := data[k].([]map[string]any)
		b.WriteString("\n")
		r.renderTable(b, rows)
	}
}

// nestedTableKeys returns keys whose value is a non-empty list of objects.
func nestedTableKeys(data map[string]any) []string {
	var keys []string
	for k, v := range data {
		if rows, ok := v.([]map[string]any); ok && len(rows) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (r *Renderer) renderList(b *strings.Builder, data []any) {
	for _, item := range data {
		b.WriteString(r.Data.Render("• " + formatCell(item)))
		b.WriteString("\n")
	}
}

func (r *Renderer) renderBreadcrumbs(b *strings.Builder, crumbs []Breadcrumb) {
	b.WriteString(r.Muted.Render("Next:"))
	b.WriteString("\n")
	for _, bc := range crumbs {
		cmd := r.Muted.Render("  " + bc.Cmd)
		if bc.Description != "" {
			cmd += r.Muted.Render("  # " + bc.Description)
		}
		b.WriteString(cmd + "\n")
	}
}

func (r *Renderer) renderStats(b *strings.Builder, stats *observability.SessionMetrics) {
	if parts := stats.FormatParts(); len(parts) > 0 {
		b.WriteString(r.Muted.Render("Stats: "+strings.Join(parts, " | ")) + "\n")
	}
}

func formatHeader(key string) string {
	key = strings.ReplaceAll(key, "_", " ")
	key = strings.TrimSuffix(key, " at")
	words := strings.Fields(key)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func formatCell(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		if len(v) > 40 {
			return v[:37] + "..."
		}
		return v
	case bool:
		if v {
			return "yes"
		}
		return "no"
	case float64:
		if v == float64(int(v)) {
			return fmt.Sprintf("%d", int(v))
		}
		return fmt.Sprintf("%.2f", v)
	case int, int64:
		return fmt.Sprintf("%d", v)
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			items = append(items, formatCell(item))
		}
		return strings.Join(items, ", ")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// formatDateValue renders *_at and timestamp columns relative to now for
// recent values.
func formatDateValue(key string, val any) string {
	if !strings.HasSuffix(key, "_at") && key != "timestamp" && key != "last_check" {
		return formatCell(val)
	}

	str, ok := val.(string)
	if !ok || str == "" {
		return formatCell(val)
	}

	t, err := time.Parse(time.RFC3339Nano, str)
	if err != nil {
		return formatCell(val)
	}

	diff := time.Since(t)
	if diff < 0 {
		return t.Format("Jan 2, 2006 15:04")
	}

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		if mins := int(diff.Minutes()); mins != 1 {
			return fmt.Sprintf("%d minutes ago", mins)
		}
		return "1 minute ago"
	case diff < 24*time.Hour:
		if hours := int(diff.Hours()); hours != 1 {
			return fmt.Sprintf("%d hours ago", hours)
		}
		return "1 hour ago"
	default:
		return t.Format("Jan 2, 2006 15:04")
	}
}

// MarkdownRenderer outputs literal Markdown syntax (portable, pipeable).
type MarkdownRenderer struct {
	width int
}

// NewMarkdownRenderer creates a renderer for literal Markdown output.
func NewMarkdownRenderer(w io.Writer) *MarkdownRenderer {
	width, _ := terminalInfo(w)
	return &MarkdownRenderer{width: width}
}

// RenderResponse renders a success response as literal Markdown.
func (r *MarkdownRenderer) RenderResponse(w io.Writer, resp *Response) error {
	var b strings.Builder

	if resp.Summary != "" {
		b.WriteString("## " + resp.Summary + "\n\n")
	}

	r.renderData(&b, normalizeData(resp.Data))

	if len(resp.Breadcrumbs) > 0 {
		b.WriteString("\n### Next\n\n")
		for _, bc := range resp.Breadcrumbs {
			line := "- `" + bc.Cmd + "`"
			if bc.Description != "" {
				line += ": " + bc.Description
			}
			b.WriteString(line + "\n")
		}
	}

	if stats := extractStats(resp.Meta); stats != nil {
		if parts := stats.FormatParts(); len(parts) > 0 {
			b.WriteString("\n*Stats: " + strings.Join(parts, " | ") + "*\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderError renders an error response as literal Markdown.
func (r *MarkdownRenderer) RenderError(w io.Writer, resp *ErrorResponse) error {
	var b strings.Builder

	b.WriteString("**Error:** " + resp.Error + "\n")
	if resp.Hint != "" {
		b.WriteString("\n*Hint: " + resp.Hint + "*\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *MarkdownRenderer) renderData(b *strings.Builder, data any) {
	switch d := data.(type) {
	case []map[string]any:
		if len(d) == 0 {
			b.WriteString("*No results*\n")
			return
		}
		r.renderTable(b, d)

	case map[string]any:
		r.renderObject(b, d)

	case []any:
		if len(d) == 0 {
			b.WriteString("*No results*\n")
			return
		}
		for _, item := range d {
			b.WriteString("- " + formatCell(item) + "\n")
		}

	case string:
		b.WriteString(d + "\n")

	case nil:
		b.WriteString("*No data*\n")

	default:
		fmt.Fprintf(b, "%v\n", data)
	}
}

func (r *MarkdownRenderer) renderTable(b *strings.Builder, data []map[string]any) {
	cols := detectColumns(data)
	if len(cols) == 0 {
		return
	}

	headers := make([]string, 0, len(cols))
	seps := make([]string, 0, len(cols))
	for _, col := range cols {
		headers = append(headers, col.header)
		seps = append(seps, "---")
	}
	b.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	b.WriteString("| " + strings.Join(seps, " | ") + " |\n")

	for _, item := range data {
		cells := make([]string, 0, len(cols))
		for _, col := range cols {
			cell := formatCell(item[col.key])
			cells = append(cells, strings.ReplaceAll(cell, "|", "\\|"))
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
}

func (r *MarkdownRenderer) renderObject(b *strings.Builder, data map[string]any) {
	fields := objectFields(data)
	if len(fields) == 0 {
		b.WriteString("*No data*\n")
		return
	}

	for _, f := range fields {
		b.WriteString("- **" + formatHeader(f.key) + ":** " + formatDateValue(f.key, data[f.key]) + "\n")
	}

	for _, k := range nestedTableKeys(data) {
		b.WriteString("\n### " + formatHeader(k) + "\n\n")
		r.renderTable(b, data[k].([]map[string]any))
	}
}

// extractStats pulls stats from response meta if present.
func extractStats(meta map[string]any) *observability.SessionMetrics {
	if meta == nil {
		return nil
	}
	stats, _ := meta["stats"].(*observability.SessionMetrics)
	return stats
}
