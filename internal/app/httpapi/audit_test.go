package httpapi

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogKeepsNewest(t *testing.T) {
	l := newAuditLog(3, nil)
	for _, p := range []string{"/a", "/b", "/c", "/d", "/e"} {
		l.add(auditEntry{Path: p})
	}

	paths := func(entries []auditEntry) []string {
		out := make([]string, 0, len(entries))
		for _, e := range entries {
			out = append(out, e.Path)
		}
		return out
	}

	cases := []struct {
		limit int
		want  []string
	}{
		{0, []string{"/c", "/d", "/e"}},
		{2, []string{"/d", "/e"}},
		{3, []string{"/c", "/d", "/e"}},
		{10, []string{"/c", "/d", "/e"}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, paths(l.listLimit(tc.limit)), "limit %d", tc.limit)
	}
}

func TestAuditLogWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	l := newAuditLog(1, &writerAuditSink{w: &buf})
	l.add(auditEntry{Path: "/api/admin/sweep", Method: "POST", Status: 200})
	l.add(auditEntry{Path: "/api/admin/invoices/1/pay", Method: "POST", Status: 409})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2, "the sink keeps entries evicted from memory")
	var got auditEntry
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &got))
	assert.Equal(t, 409, got.Status)
	assert.Len(t, l.listLimit(0), 1)
}
