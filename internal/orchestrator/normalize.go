package orchestrator

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/ashureev/genie-gateway/internal/domain"
	"github.com/ashureev/genie-gateway/internal/genie"
)

// nullMarker is how SQL NULL cells are rendered. It must stay distinguishable
// from an empty string in the displayed table.
const nullMarker = "NULL"

// normalizeResult turns a terminal COMPLETED payload into a QueryOutcome plus
// the display fragments to append as assistant turns. All emitted text is
// HTML-escaped; the remote service is only partially trusted.
func normalizeResult(result *genie.MessageResult) (*domain.QueryOutcome, []string) {
	outcome := &domain.QueryOutcome{Status: domain.OutcomeCompletedEmpty}
	var fragments []string

	var attachment genie.Attachment
	if result != nil && result.Attachment != nil {
		attachment = *result.Attachment
	}

	if attachment.Table != nil && len(attachment.Table.Rows) > 0 {
		outcome.Status = domain.OutcomeCompletedWithData
		outcome.Columns = normalizeColumns(attachment.Table.Columns)
		outcome.Rows = normalizeRows(attachment.Table.Rows)
		outcome.Truncated = attachment.Table.Truncated
		fragments = append(fragments, renderTable(outcome.Columns, outcome.Rows, outcome.Truncated))
	}

	if narrative := strings.TrimSpace(attachment.Narrative); narrative != "" {
		if outcome.Status == domain.OutcomeCompletedEmpty {
			outcome.Status = domain.OutcomeCompletedNarrativeOnly
		}
		outcome.Narrative = html.EscapeString(narrative)
		fragments = append(fragments, "<p>"+outcome.Narrative+"</p>")
	}

	// Generated query text is a distinct display unit: never merged into the
	// narrative, never executed again.
	if query := strings.TrimSpace(attachment.GeneratedQuery); query != "" {
		outcome.GeneratedQueryText = html.EscapeString(query)
		fragments = append(fragments, "<pre><code>"+outcome.GeneratedQueryText+"</code></pre>")
	}

	if outcome.Status == domain.OutcomeCompletedEmpty && outcome.GeneratedQueryText == "" {
		fragments = append(fragments, "<p>No data found for that question.</p>")
	}

	return outcome, fragments
}

func normalizeColumns(columns []genie.ColumnSchema) []domain.Column {
	out := make([]domain.Column, len(columns))
	for i, col := range columns {
		out[i] = domain.Column{
			Name: html.EscapeString(col.Name),
			Type: html.EscapeString(col.Type),
		}
	}
	return out
}

func normalizeRows(rows [][]interface{}) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = html.EscapeString(stringifyCell(cell))
		}
		out[i] = cells
	}
	return out
}

// stringifyCell renders one cell value for display. JSON numbers arrive as
// float64; integers must not pick up a trailing ".0".
func stringifyCell(cell interface{}) string {
	switch v := cell.(type) {
	case nil:
		return nullMarker
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// renderTable builds the HTML table fragment. Column names and cells are
// already escaped by the normalization pass.
func renderTable(columns []domain.Column, rows [][]string, truncated bool) string {
	var b strings.Builder
	b.WriteString("<table><thead><tr>")
	for _, col := range columns {
		b.WriteString("<th>")
		b.WriteString(col.Name)
		b.WriteString("</th>")
	}
	b.WriteString("</tr></thead><tbody>")
	for _, row := range rows {
		b.WriteString("<tr>")
		for _, cell := range row {
			b.WriteString("<td>")
			b.WriteString(cell)
			b.WriteString("</td>")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")
	if truncated {
		b.WriteString("<p>Showing a partial result.</p>")
	}
	return b.String()
}
