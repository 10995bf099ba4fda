package db

import "testing"

func TestSummarizeSQL(t *testing.T) {
	cases := []struct{ in, op, table string }{
		{"SELECT * FROM `operations` WHERE id = ?", "SELECT", "operations"},
		{"insert into log_entries (msg) values (?)", "INSERT", "log_entries"},
		{"UPDATE trace_rows SET status = ? WHERE id = ?", "UPDATE", "trace_rows"},
		{"DELETE FROM trace_event_rows WHERE trace_id = ?", "DELETE", "trace_event_rows"},
	}
	for _, c := range cases {
		op, table := summarizeSQL(c.in)
		if op != c.op || table != c.table {
			t.Fatalf("summarizeSQL(%q)=%q,%q want %q,%q", c.in, op, table, c.op, c.table)
		}
	}
}

func TestSummarizeSQLEmpty(t *testing.T) {
	if op, table := summarizeSQL(""); op != "" || table != "" {
		t.Fatalf("expected empty summary, got %q %q", op, table)
	}
}
