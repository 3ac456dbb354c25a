package feed

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>IPMA - Comunicados</title>
    <link>https://www.ipma.pt</link>
    <description>Comunicados</description>
    <item>
      <title>Sismo no Continente</title>
      <description>O IPMA informa que no dia 14-10-2026 pelas 03:12 (hora local) foi registado um sismo de magnitude 3.5 (Richter) e cujo epicentro se localizou a cerca de 10 km a Sul de Lisboa.</description>
      <pubDate>Wed, 14 Oct 2026 02:30:00 GMT</pubDate>
    </item>
    <item>
      <title>Aviso meteorológico</title>
      <description><![CDATA[<p>Agitação marítima forte &amp; vento.</p>]]></description>
      <pubDate>Tue, 13 Oct 2026 18:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func testSource(url string) *Source {
	return NewSource(url, 5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(testFeed))
	}))
	defer srv.Close()

	items, err := testSource(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "Sismo no Continente", items[0].Title)
	assert.Contains(t, items[0].Description, "magnitude 3.5 (Richter)")
	assert.Equal(t, "Wed, 14 Oct 2026 02:30:00 GMT", items[0].PubDate)
	assert.Equal(t, "Agitação marítima forte & vento.", items[1].Description)
}

func TestSource_Fetch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testSource(srv.URL).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestSource_Fetch_MalformedDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("this is not a feed"))
	}))
	defer srv.Close()

	_, err := testSource(srv.URL).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse feed")
}

func TestSource_Fetch_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := testSource(url).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch feed")
}

func TestParseItems_EmptyChannel(t *testing.T) {
	doc := `<?xml version="1.0"?><rss version="2.0"><channel><title>x</title></channel></rss>`
	items, err := ParseItems(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Sismo no Continente ", "Sismo no Continente"},
		{"<p>Sismo   de magnitude <b>2.1</b></p>", "Sismo de magnitude 2.1"},
		{"Açores &amp; Madeira", "Açores & Madeira"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PlainText(tt.in), tt.in)
	}
}
