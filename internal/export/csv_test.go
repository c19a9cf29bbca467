package export

import (
	"bytes"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSVQuotesEveryField(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []string{"이름", "메모"}, [][]string{
		{"홍길동", `그가 "안녕"이라 했다`},
		{"", "a,b\nc"},
	})
	require.NoError(t, err)
	want := "\ufeff\"이름\",\"메모\"\r\n" +
		"\"홍길동\",\"그가 \"\"안녕\"\"이라 했다\"\r\n" +
		"\"\",\"a,b\nc\"\r\n"
	assert.Equal(t, want, buf.String())
}

func TestServeSetsDownloadHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	now := time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC)
	require.NoError(t, Serve(rec, "inquiries", now, []string{"a"}, nil))
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="inquiries_2024-03-09.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "\ufeff\"a\"\r\n", rec.Body.String())
}
