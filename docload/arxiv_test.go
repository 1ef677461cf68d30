package docload

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseArxivID(t *testing.T) {
	tests := []struct {
		source string
		want   string
		ok     bool
	}{
		{"https://arxiv.org/abs/2310.00001", "2310.00001", true},
		{"https://arxiv.org/pdf/2310.00001.pdf", "2310.00001", true},
		{"https://arxiv.org/abs/2310.00001v2", "2310.00001v2", true},
		{"http://arxiv.org/abs/1706.03762", "1706.03762", true},
		{"arxiv:1706.03762", "1706.03762", true},
		{"1706.03762", "1706.03762", true},
		{"https://arxiv.org/abs/cs/0112017", "cs/0112017", true},
		{"/tmp/paper.pdf", "", false},
		{"paper.pdf", "", false},
		{"https://example.com/abs/2310.00001", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			got, ok := ParseArxivID(tt.source)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/1706.03762v7</id>
    <title>Attention Is All
 You Need</title>
    <summary>  The dominant sequence transduction models...  </summary>
    <published>2017-06-12T17:57:34Z</published>
    <updated>2023-08-02T00:41:18Z</updated>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
    <link href="http://arxiv.org/abs/1706.03762v7" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/1706.03762v7" rel="related" type="application/pdf"/>
  </entry>
</feed>`

func TestFetchMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1706.03762", r.URL.Query().Get("id_list"))
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	client := NewArxivClient(ArxivConfig{
		APIBaseURL: srv.URL,
		Timeout:    5 * time.Second,
		RetryCount: 1,
		RetryDelay: 10 * time.Millisecond,
	}, zap.NewNop())

	meta, err := client.FetchMetadata(context.Background(), "1706.03762")
	require.NoError(t, err)

	// 标题中的换行被规范化为单个空格
	assert.Equal(t, "Attention Is All You Need", meta.Title)
	assert.Equal(t, []string{"Ashish Vaswani", "Noam Shazeer"}, meta.Authors)
	assert.Equal(t, "The dominant sequence transduction models...", meta.Summary)
	assert.Equal(t, "http://arxiv.org/pdf/1706.03762v7", meta.PDFURL)
	assert.Equal(t, 2017, meta.Published.Year())
}

func TestFetchMetadata_NoEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<feed xmlns="http://www.w3.org/2005/Atom"></feed>`))
	}))
	defer srv.Close()

	client := NewArxivClient(ArxivConfig{
		APIBaseURL: srv.URL,
		Timeout:    5 * time.Second,
	}, zap.NewNop())

	_, err := client.FetchMetadata(context.Background(), "9999.99999")
	assert.ErrorContains(t, err, "no entry")
}

func TestDownloadPDF_Retry(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("%PDF-1.5 fake"))
	}))
	defer srv.Close()

	client := NewArxivClient(ArxivConfig{
		PDFBaseURL: srv.URL,
		Timeout:    5 * time.Second,
		RetryCount: 3,
		RetryDelay: 10 * time.Millisecond,
	}, zap.NewNop())

	data, err := client.DownloadPDF(context.Background(), "1706.03762")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.5 fake"), data)
	assert.Equal(t, 3, calls)
}

func TestDownloadPDF_GivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewArxivClient(ArxivConfig{
		PDFBaseURL: srv.URL,
		Timeout:    5 * time.Second,
		RetryCount: 1,
		RetryDelay: 10 * time.Millisecond,
	}, zap.NewNop())

	_, err := client.DownloadPDF(context.Background(), "1706.03762")
	assert.ErrorContains(t, err, "status 404")
}

func TestExtractPDFText_BadInput(t *testing.T) {
	_, err := ExtractPDFText(nil)
	assert.Error(t, err)

	_, err = ExtractPDFText([]byte("not a pdf"))
	assert.Error(t, err)
}
