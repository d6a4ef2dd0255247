package orchestrator

import (
	"strings"
	"testing"

	"github.com/ashureev/genie-gateway/internal/domain"
	"github.com/ashureev/genie-gateway/internal/genie"
)

func TestNormalizeTableWithRows(t *testing.T) {
	outcome, fragments := normalizeResult(tableResult())

	if outcome.Status != domain.OutcomeCompletedWithData {
		t.Fatalf("Expected completed-with-data, got %s", outcome.Status)
	}
	if len(outcome.Rows) != 3 || len(outcome.Columns) != 2 {
		t.Fatalf("Expected 3x2 table, got %dx%d", len(outcome.Rows), len(outcome.Columns))
	}
	if outcome.Rows[0][1] != "18" {
		t.Errorf("Numeric cell should stringify without a decimal point, got %q", outcome.Rows[0][1])
	}
	if len(fragments) != 2 {
		t.Fatalf("Expected table + query fragments, got %d", len(fragments))
	}
	if !strings.Contains(fragments[0], "<table>") || !strings.Contains(fragments[0], "<th>team</th>") {
		t.Errorf("Table fragment malformed: %q", fragments[0])
	}
	if !strings.Contains(fragments[1], "<pre><code>") {
		t.Errorf("Generated query must be a distinct code fragment: %q", fragments[1])
	}
}

func TestNormalizeNullCellRendersMarker(t *testing.T) {
	result := &genie.MessageResult{
		Attachment: &genie.Attachment{
			Table: &genie.TableBlock{
				Columns: []genie.ColumnSchema{{Name: "player", Type: "string"}, {Name: "mvps", Type: "long"}},
				Rows:    [][]interface{}{{"Bird", nil}},
			},
		},
	}

	outcome, _ := normalizeResult(result)
	if outcome.Rows[0][1] != "NULL" {
		t.Errorf("null cell must render the literal NULL marker, got %q", outcome.Rows[0][1])
	}
	if outcome.Rows[0][1] == "" {
		t.Error("null cell must not render as the empty string")
	}
}

func TestNormalizeEscapesInjectedMarkup(t *testing.T) {
	result := &genie.MessageResult{
		Attachment: &genie.Attachment{
			Table: &genie.TableBlock{
				Columns: []genie.ColumnSchema{{Name: `<img src=x>`, Type: "string"}},
				Rows:    [][]interface{}{{`<script>alert(1)</script>`}},
			},
			Narrative: `See <b>bold</b> claims`,
		},
	}

	outcome, fragments := normalizeResult(result)

	if strings.Contains(outcome.Rows[0][0], "<script>") {
		t.Errorf("Cell markup must be escaped, got %q", outcome.Rows[0][0])
	}
	if !strings.Contains(outcome.Rows[0][0], "&lt;script&gt;") {
		t.Errorf("Escaped script tag should remain visible as text, got %q", outcome.Rows[0][0])
	}
	if strings.Contains(outcome.Columns[0].Name, "<img") {
		t.Errorf("Column name markup must be escaped, got %q", outcome.Columns[0].Name)
	}
	if strings.Contains(outcome.Narrative, "<b>") {
		t.Errorf("Narrative markup must be escaped, got %q", outcome.Narrative)
	}
	for _, fragment := range fragments {
		if strings.Contains(fragment, "<script>") {
			t.Errorf("Fragment carries executable markup: %q", fragment)
		}
	}
}

func TestNormalizeNarrativeAlongsideTable(t *testing.T) {
	result := tableResult()
	result.Attachment.Narrative = "The Celtics lead."

	outcome, fragments := normalizeResult(result)
	if outcome.Status != domain.OutcomeCompletedWithData {
		t.Fatalf("Table takes priority for status, got %s", outcome.Status)
	}
	if outcome.Narrative == "" {
		t.Error("Narrative must attach even when a table is present")
	}
	if len(fragments) != 3 {
		t.Errorf("Expected table + narrative + query fragments, got %d", len(fragments))
	}
}

func TestNormalizeEmptyAttachment(t *testing.T) {
	tests := []struct {
		name   string
		result *genie.MessageResult
	}{
		{"nil result", nil},
		{"no attachment", &genie.MessageResult{Status: genie.StatusCompleted}},
		{"empty attachment", &genie.MessageResult{Status: genie.StatusCompleted, Attachment: &genie.Attachment{}}},
		{"table without rows", &genie.MessageResult{
			Status: genie.StatusCompleted,
			Attachment: &genie.Attachment{
				Table: &genie.TableBlock{Columns: []genie.ColumnSchema{{Name: "a", Type: "string"}}},
			},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, fragments := normalizeResult(tt.result)
			if outcome.Status != domain.OutcomeCompletedEmpty {
				t.Fatalf("Expected completed-empty, got %s", outcome.Status)
			}
			if len(fragments) != 1 || !strings.Contains(fragments[0], "No data") {
				t.Errorf("Expected a single no-data notice, got %v", fragments)
			}
		})
	}
}

func TestNormalizeTruncatedTable(t *testing.T) {
	result := tableResult()
	result.Attachment.Table.Truncated = true

	outcome, fragments := normalizeResult(result)
	if !outcome.Truncated {
		t.Error("Truncation flag must carry through")
	}
	if !strings.Contains(fragments[0], "partial result") {
		t.Errorf("Truncated table should note partial results: %q", fragments[0])
	}
}
