package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/BaSui01/moneta/internal/tlsutil"
	"github.com/BaSui01/moneta/llm"
	"github.com/BaSui01/moneta/llm/tools"
)

// FetchNews is the capability name.
const FetchNews = "fetch_news"

// DefaultBaseURL is the finviz quote page.
const DefaultBaseURL = "https://finviz.com/quote.ashx"

const (
	newsTableClass = "fullview-news-outer"
	maxItems       = 5
	userAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"
)

// ErrTableNotFound is returned when the page has no news table.
var ErrTableNotFound = errors.New("News table not found")

// Item is one news headline.
type Item struct {
	Ticker   string `json:"Ticker"`
	Date     string `json:"Date"`
	Time     string `json:"Time"`
	Headline string `json:"Headline"`
	Link     string `json:"Link"`
}

// Config configures the news fetcher.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Fetcher scrapes ticker news pages.
type Fetcher struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]Item]
	logger  *zap.Logger
}

// NewFetcher 创建新闻抓取器。
func NewFetcher(cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	logger = logger.With(zap.String("component", "news"))

	breaker := gobreaker.NewCircuitBreaker[[]Item](gobreaker.Settings{
		Name:    "news:finviz",
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// 页面结构缺失不代表站点故障
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrTableNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", zap.String("breaker", name),
				zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	return &Fetcher{
		baseURL: cfg.BaseURL,
		client:  tlsutil.SecureHTTPClient(cfg.Timeout),
		breaker: breaker,
		logger:  logger,
	}
}

// Fetch returns up to five recent headlines for ticker.
func (f *Fetcher) Fetch(ctx context.Context, ticker string) ([]Item, error) {
	return f.breaker.Execute(func() ([]Item, error) {
		return f.fetch(ctx, ticker)
	})
}

func (f *Fetcher) fetch(ctx context.Context, ticker string) ([]Item, error) {
	u, err := url.Parse(f.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	q := u.Query()
	q.Set("t", ticker)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	items, err := ParseNewsTable(doc, ticker)
	if err != nil {
		return nil, err
	}
	f.logger.Info("news retrieved", zap.String("ticker", ticker), zap.Int("items", len(items)))
	return items, nil
}

// ParseNewsTable extracts the first five rows of the news table. Rows that only
// carry a time inherit the date of the previous row.
func ParseNewsTable(doc *html.Node, ticker string) ([]Item, error) {
	table := findFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "table" && hasClass(n, newsTableClass)
	})
	if table == nil {
		return nil, ErrTableNotFound
	}

	rows := findAll(table, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "tr"
	})
	if len(rows) > maxItems {
		rows = rows[:maxItems]
	}

	items := make([]Item, 0, len(rows))
	lastDate := ""
	for _, row := range rows {
		cell := findFirst(row, func(n *html.Node) bool {
			return n.Type == html.ElementNode && n.Data == "td"
		})
		if cell == nil {
			continue
		}
		parts := strings.Fields(textOf(cell))
		var date, clock string
		switch {
		case len(parts) == 2:
			date, clock = parts[0], parts[1]
			lastDate = date
		case len(parts) > 0:
			date, clock = lastDate, parts[0]
		}

		link := findFirst(row, func(n *html.Node) bool {
			return n.Type == html.ElementNode && n.Data == "a"
		})
		if link == nil {
			continue
		}
		items = append(items, Item{
			Ticker:   ticker,
			Date:     date,
			Time:     clock,
			Headline: strings.TrimSpace(textOf(link)),
			Link:     attr(link, "href"),
		})
	}
	return items, nil
}

type result struct {
	Status    string `json:"status"`
	Ticker    string `json:"ticker"`
	NewsCount int    `json:"news_count,omitempty"`
	Error     string `json:"error,omitempty"`
	News      []Item `json:"news"`
}

// Call implements tools.ToolFunc. Fetch failures are reported in the payload.
func (f *Fetcher) Call(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Position string `json:"position"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %v", err)
	}
	position := strings.TrimSpace(args.Position)
	if position == "" {
		return nil, errors.New("position is required")
	}

	items, err := f.Fetch(ctx, position)
	if err != nil {
		f.logger.Warn("fetch news failed", zap.String("ticker", position), zap.Error(err))
		return json.Marshal(result{Status: "error", Ticker: position, Error: err.Error(), News: []Item{}})
	}
	return json.MarshalIndent(result{Status: "success", Ticker: position, NewsCount: len(items), News: items}, "", "  ")
}

// Register adds fetch_news to reg. A positive cacheTTL enables result caching.
func (f *Fetcher) Register(reg *tools.DefaultRegistry, cacheTTL time.Duration) error {
	return reg.Register(FetchNews, f.Call, tools.ToolMetadata{
		Schema: llm.ToolSchema{
			Name:        FetchNews,
			Description: "Search the web for investment news for the specific position (ticker) of the client's portfolio.",
			Parameters:  tools.ObjectSchema(map[string]string{"position": "The position (ticker) of the client's portfolio"}, "position"),
		},
		Timeout:   30 * time.Second,
		RateLimit: &tools.RateLimitConfig{Rate: 2, Burst: 4},
		CacheTTL:  cacheTTL,
	})
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return out
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
