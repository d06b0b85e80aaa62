package news

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const quotePage = `<html><body>
<table class="fullview-title"><tr><td>MSFT</td></tr></table>
<table width="100%" class="fullview-news-outer news-table" id="news-table">
<tr><td align="right">Jun-30-25 09:15AM</td><td><div><a class="tab-link-news" href="https://example.com/1">Microsoft expands AI datacenters</a></div></td></tr>
<tr><td align="right">08:40AM</td><td><a href="https://example.com/2">Azure growth beats estimates</a></td></tr>
<tr><td align="right">Jun-29-25 06:00PM</td><td><a href="https://example.com/3">Weekend market wrap</a></td></tr>
<tr><td align="right">04:12PM</td><td><a href="https://example.com/4">Analysts raise price targets</a></td></tr>
<tr><td align="right">01:00PM</td><td><a href="https://example.com/5">Copilot adoption update</a></td></tr>
<tr><td align="right">11:00AM</td><td><a href="https://example.com/6">Sixth headline</a></td></tr>
</table>
</body></html>`

func TestParseNewsTable_CarriesDateForward(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(quotePage))
	require.NoError(t, err)

	items, err := ParseNewsTable(doc, "MSFT")
	require.NoError(t, err)
	require.Len(t, items, 5)

	assert.Equal(t, Item{Ticker: "MSFT", Date: "Jun-30-25", Time: "09:15AM", Headline: "Microsoft expands AI datacenters", Link: "https://example.com/1"}, items[0])
	assert.Equal(t, "Jun-30-25", items[1].Date)
	assert.Equal(t, "08:40AM", items[1].Time)
	assert.Equal(t, "Jun-29-25", items[3].Date)
	assert.Equal(t, "Copilot adoption update", items[4].Headline)
}

func TestParseNewsTable_Missing(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(`<html><body><table class="other"></table></body></html>`))
	require.NoError(t, err)

	_, err = ParseNewsTable(doc, "XYZ")
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestFetcher_Call(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "MSFT", r.URL.Query().Get("t"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(quotePage))
	}))
	defer srv.Close()

	f := NewFetcher(Config{BaseURL: srv.URL}, nil)
	raw, err := f.Call(context.Background(), json.RawMessage(`{"position":"MSFT"}`))
	require.NoError(t, err)

	var out result
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "success", out.Status)
	assert.Equal(t, 5, out.NewsCount)
	assert.Len(t, out.News, 5)
}

func TestFetcher_ErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>nothing here</body></html>`))
	}))
	defer srv.Close()

	f := NewFetcher(Config{BaseURL: srv.URL}, nil)
	raw, err := f.Call(context.Background(), json.RawMessage(`{"position":"ZZZZ"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"error","ticker":"ZZZZ","error":"News table not found","news":[]}`, string(raw))

	_, err = f.Call(context.Background(), json.RawMessage(`{}`))
	assert.Error(t, err)
}
