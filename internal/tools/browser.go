package tools

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/marcosnunesmbs/smith/internal/guard"
)

func encodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

const searchEndpoint = "https://html.duckduckgo.com/html/"

// NewBrowserTools builds the browser category: navigate, get_dom, click,
// fill, search, fetch_content, screenshot. All of them but search share one
// browser.Manager singleton passed in through ctx.Sandbox's sibling field on
// Context — the manager itself lives in internal/browser and is wired in by
// the caller that builds Context per request.
func NewBrowserTools(sandbox *Sandbox) []Tool {
	return []Tool{
		{
			Name:        "navigate",
			Category:    CategoryBrowser,
			Description: "Navigate the shared browser page to a URL.",
			Args:        []ArgDescriptor{{Name: "url", Type: ArgString, Required: true}},
			Handler:     browserNavigateHandler,
		},
		{
			Name:        "get_dom",
			Category:    CategoryBrowser,
			Description: "Return the current page's HTML.",
			Handler:     browserGetDOMHandler,
		},
		{
			Name:        "click",
			Category:    CategoryBrowser,
			Description: "Click the first element matching a CSS selector.",
			Args:        []ArgDescriptor{{Name: "selector", Type: ArgString, Required: true}},
			Handler:     browserClickHandler,
		},
		{
			Name:        "fill",
			Category:    CategoryBrowser,
			Description: "Type text into the first element matching a CSS selector.",
			Args: []ArgDescriptor{
				{Name: "selector", Type: ArgString, Required: true},
				{Name: "text", Type: ArgString, Required: true},
			},
			Handler: browserFillHandler,
		},
		{
			Name:        "search",
			Category:    CategoryBrowser,
			Description: "Search the web and return ranked, deduplicated results.",
			Args: []ArgDescriptor{
				{Name: "query", Type: ArgString, Required: true},
				{Name: "num_results", Type: ArgInt, Default: 10},
			},
			Handler: browserSearchHandler,
		},
		{
			Name:        "fetch_content",
			Category:    CategoryBrowser,
			Description: "Navigate to a URL and return its visible text content.",
			Args:        []ArgDescriptor{{Name: "url", Type: ArgString, Required: true}},
			Handler:     browserFetchContentHandler,
		},
		{
			Name:        "screenshot",
			Category:    CategoryBrowser,
			Description: "Capture a PNG screenshot of the current page, base64-encoded.",
			Handler:     browserScreenshotHandler,
		},
	}
}

func browserNavigateHandler(ctx Context, args map[string]any) (Result, error) {
	url, err := extractString(args, "url", true)
	if err != nil {
		return resultFor(err), nil
	}
	page, release, err := acquirePage(ctx)
	if err != nil {
		return resultFor(err), nil
	}
	defer release()

	scoped := page.Context(ctx.Context)
	if err := scoped.Navigate(url); err != nil {
		return Result{Success: false, Error: fmt.Sprintf("navigate failed: %s", err)}, nil
	}
	if err := scoped.WaitLoad(); err != nil {
		return Result{Success: false, Error: fmt.Sprintf("page failed to load: %s", err)}, nil
	}
	return Result{Success: true, Data: map[string]any{"url": url}}, nil
}

func browserGetDOMHandler(ctx Context, args map[string]any) (Result, error) {
	page, release, err := acquirePage(ctx)
	if err != nil {
		return resultFor(err), nil
	}
	defer release()

	html, err := page.Context(ctx.Context).HTML()
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("failed to read dom: %s", err)}, nil
	}
	return Result{Success: true, Data: map[string]any{"html": guard.TruncateOutput(html, guard.DefaultOutputCap)}}, nil
}

func browserClickHandler(ctx Context, args map[string]any) (Result, error) {
	if err := guardDestructive(ctx); err != nil {
		return resultFor(err), nil
	}
	selector, err := extractString(args, "selector", true)
	if err != nil {
		return resultFor(err), nil
	}
	page, release, err := acquirePage(ctx)
	if err != nil {
		return resultFor(err), nil
	}
	defer release()

	el, err := page.Context(ctx.Context).Element(selector)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("selector not found: %s", err)}, nil
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return Result{Success: false, Error: fmt.Sprintf("click failed: %s", err)}, nil
	}
	return Result{Success: true, Data: map[string]any{"clicked": selector}}, nil
}

func browserFillHandler(ctx Context, args map[string]any) (Result, error) {
	if err := guardDestructive(ctx); err != nil {
		return resultFor(err), nil
	}
	selector, err := extractString(args, "selector", true)
	if err != nil {
		return resultFor(err), nil
	}
	text, err := extractString(args, "text", true)
	if err != nil {
		return resultFor(err), nil
	}
	page, release, err := acquirePage(ctx)
	if err != nil {
		return resultFor(err), nil
	}
	defer release()

	el, err := page.Context(ctx.Context).Element(selector)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("selector not found: %s", err)}, nil
	}
	if err := el.Input(text); err != nil {
		return Result{Success: false, Error: fmt.Sprintf("fill failed: %s", err)}, nil
	}
	return Result{Success: true, Data: map[string]any{"filled": selector}}, nil
}

func browserFetchContentHandler(ctx Context, args map[string]any) (Result, error) {
	url, err := extractString(args, "url", true)
	if err != nil {
		return resultFor(err), nil
	}
	page, release, err := acquirePage(ctx)
	if err != nil {
		return resultFor(err), nil
	}
	defer release()

	scoped := page.Context(ctx.Context)
	if err := scoped.Navigate(url); err != nil {
		return Result{Success: false, Error: fmt.Sprintf("navigate failed: %s", err)}, nil
	}
	if err := scoped.WaitLoad(); err != nil {
		return Result{Success: false, Error: fmt.Sprintf("page failed to load: %s", err)}, nil
	}

	body, err := scoped.Element("body")
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("failed to locate body: %s", err)}, nil
	}
	text, err := body.Text()
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("failed to read content: %s", err)}, nil
	}
	return Result{Success: true, Data: map[string]any{"url": url, "text": guard.TruncateOutput(text, guard.DefaultOutputCap)}}, nil
}

func browserScreenshotHandler(ctx Context, args map[string]any) (Result, error) {
	page, release, err := acquirePage(ctx)
	if err != nil {
		return resultFor(err), nil
	}
	defer release()

	buf, err := page.Context(ctx.Context).Screenshot(false, nil)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("screenshot failed: %s", err)}, nil
	}
	return Result{Success: true, Data: map[string]any{"png_base64": encodeBase64(buf)}}, nil
}

func acquirePage(ctx Context) (*rod.Page, func(), error) {
	if ctx.Browser == nil {
		return nil, nil, fmt.Errorf("%w: browser manager not configured", ErrNotAllowed)
	}
	page, release, err := ctx.Browser.Acquire()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to acquire browser page: %w", err)
	}
	return page, release, nil
}

// --- search ---

type searchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

type intent int

const (
	intentGeneral intent = iota
	intentNews
	intentOfficial
	intentDocumentation
	intentPrice
	intentAcademic
	intentHowTo
)

var intentPatterns = []struct {
	intent intent
	re     *regexp.Regexp
}{
	{intentNews, regexp.MustCompile(`(?i)\b(news|latest|breaking|today|headline)\b`)},
	{intentOfficial, regexp.MustCompile(`(?i)\b(official|government|gov)\b`)},
	{intentDocumentation, regexp.MustCompile(`(?i)\b(docs?|documentation|api reference|sdk)\b`)},
	{intentPrice, regexp.MustCompile(`(?i)\b(price|preço|cost|buy|valor)\b`)},
	{intentAcademic, regexp.MustCompile(`(?i)\b(paper|research|study|academic|journal)\b`)},
	{intentHowTo, regexp.MustCompile(`(?i)\b(how to|tutorial|guide)\b`)},
}

// trustedDomains is the fixed scoring table for known domain families.
var trustedDomains = map[string]float64{
	"wikipedia.org":         8,
	"github.com":            7,
	"stackoverflow.com":     7,
	"developer.mozilla.org": 7,
	"docs.python.org":       6,
	"golang.org":            6,
	"pkg.go.dev":            6,
	"arxiv.org":             6,
	"scholar.google.com":    6,
	"researchgate.net":      5,
	"reuters.com":           6,
	"apnews.com":            6,
	"bbc.com":               6,
	"medium.com":            3,
	"reddit.com":            3,
	"quora.com":             2,
}

var newsHosts = map[string]bool{
	"reuters.com": true, "apnews.com": true, "bbc.com": true, "nytimes.com": true,
	"cnn.com": true, "theguardian.com": true,
}

var penalizedPattern = regexp.MustCompile(`(?i)(login|signin|subscribe|paywall|buy|cart|pinterest|facebook|instagram)`)
var academicPattern = regexp.MustCompile(`(?i)(arxiv|scholar|research)`)
var howToPattern = regexp.MustCompile(`(?i)(tutorial|guide|how)`)
var govPattern = regexp.MustCompile(`(?i)gov(\.|$)`)

func detectIntent(query string) intent {
	lower := strings.ToLower(query)
	for _, p := range intentPatterns {
		if p.re.MatchString(lower) {
			return p.intent
		}
	}
	return intentGeneral
}

func refineQuery(query string, in intent, year string) string {
	switch in {
	case intentNews:
		if !strings.Contains(query, year) {
			return query + " " + year
		}
	case intentPrice:
		refined := query
		if !strings.Contains(refined, year) {
			refined += " " + year
		}
		if !strings.Contains(strings.ToLower(refined), "br") {
			refined += " preço brasil"
		}
		return refined
	case intentAcademic:
		return query + " site:scholar.google.com OR site:arxiv.org OR site:researchgate.net"
	case intentDocumentation:
		if !strings.Contains(strings.ToLower(query), "documentation") {
			return query + " documentation"
		}
	}
	return query
}

func hostOf(rawURL string) string {
	u := rawURL
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	if idx := strings.IndexAny(u, "/?#"); idx >= 0 {
		u = u[:idx]
	}
	return strings.ToLower(strings.TrimPrefix(u, "www."))
}

func trustedDomainScore(host string) float64 {
	var best float64
	for domain, score := range trustedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			if score > best {
				best = score
			}
		}
	}
	return best
}

func intentBonus(in intent, host, title, snippet, year string) float64 {
	switch in {
	case intentDocumentation:
		if strings.Contains(host, "github.com") || strings.Contains(host, "docs") {
			return 4
		}
	case intentNews:
		var bonus float64
		if newsHosts[host] {
			bonus += 4
		}
		if strings.Contains(snippet, year) {
			bonus += 2
		}
		return bonus
	case intentOfficial:
		if govPattern.MatchString(host) {
			return 5
		}
	case intentAcademic:
		if academicPattern.MatchString(host) {
			return 5
		}
	case intentHowTo:
		if howToPattern.MatchString(title) {
			return 3
		}
	}
	return 0
}

func queryWordBonus(query, title string) float64 {
	lowerTitle := strings.ToLower(title)
	var bonus float64
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len(w) > 2 && strings.Contains(lowerTitle, w) {
			bonus += 1.5
		}
	}
	if bonus > 5 {
		bonus = 5
	}
	return bonus
}

func snippetLengthBonus(snippet string) float64 {
	var bonus float64
	if len(snippet) >= 100 {
		bonus += 1
	}
	if len(snippet) >= 200 {
		bonus += 1
	}
	return bonus
}

func scoreResult(query string, in intent, year string, r searchResult) float64 {
	host := hostOf(r.URL)
	score := trustedDomainScore(host)
	score += intentBonus(in, host, r.Title, r.Snippet, year)
	score += queryWordBonus(query, r.Title)
	score += snippetLengthBonus(r.Snippet)
	if penalizedPattern.MatchString(r.URL) || penalizedPattern.MatchString(r.Snippet) {
		score -= 4
	}
	if score < 0 {
		score = 0
	}
	return score
}

var resultBlockPattern = regexp.MustCompile(`(?s)<a[^>]+class="result__a"[^>]+href="([^"]+)"[^>]*>(.*?)</a>.*?<a[^>]+class="result__snippet"[^>]*>(.*?)</a>`)
var tagStripPattern = regexp.MustCompile(`<[^>]+>`)

func parseSearchResults(html string) []searchResult {
	var out []searchResult
	for _, m := range resultBlockPattern.FindAllStringSubmatch(html, -1) {
		url := tagStripPattern.ReplaceAllString(m[1], "")
		title := strings.TrimSpace(tagStripPattern.ReplaceAllString(m[2], ""))
		snippet := strings.TrimSpace(tagStripPattern.ReplaceAllString(m[3], ""))
		if url == "" || title == "" {
			continue
		}
		out = append(out, searchResult{Title: title, URL: url, Snippet: snippet})
	}
	return out
}

func browserSearchHandler(ctx Context, args map[string]any) (Result, error) {
	query, err := extractString(args, "query", true)
	if err != nil {
		return resultFor(err), nil
	}
	numResults, err := extractInt(args, "num_results", false, 10)
	if err != nil {
		return resultFor(err), nil
	}
	if numResults <= 0 {
		numResults = 10
	}
	if numResults > 20 {
		numResults = 20
	}

	in := detectIntent(query)
	year := strconv.Itoa(time.Now().Year())
	refined := refineQuery(query, in, year)

	client := resty.New().SetTimeout(defaultHTTPTimeout)
	resp, err := client.R().SetContext(ctx.Context).
		SetHeader("User-Agent", "Mozilla/5.0 (compatible; smith-agent/1.0)").
		SetQueryParam("q", refined).
		Get(searchEndpoint)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("search request failed: %s", err)}, nil
	}

	candidates := parseSearchResults(string(resp.Body()))

	seenHosts := map[string]bool{}
	var scored []searchResult
	for _, c := range candidates {
		host := hostOf(c.URL)
		if host == "" || seenHosts[host] {
			continue
		}
		seenHosts[host] = true
		c.Score = scoreResult(query, in, year, c)
		scored = append(scored, c)
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > numResults {
		scored = scored[:numResults]
	}

	var total float64
	for _, r := range scored {
		total += r.Score
	}
	confidence := "low"
	if len(scored) > 0 {
		avg := total / float64(len(scored))
		switch {
		case avg >= 6:
			confidence = "high"
		case avg >= 3:
			confidence = "medium"
		}
	}

	return Result{Success: true, Data: map[string]any{
		"query":      refined,
		"intent":     intentName(in),
		"results":    scored,
		"confidence": confidence,
	}}, nil
}

func intentName(in intent) string {
	switch in {
	case intentNews:
		return "news"
	case intentOfficial:
		return "official"
	case intentDocumentation:
		return "documentation"
	case intentPrice:
		return "price"
	case intentAcademic:
		return "academic"
	case intentHowTo:
		return "how-to"
	default:
		return "general"
	}
}
