package tools

import (
	"context"
	"testing"
	"time"
)

func browserTestContext(t *testing.T) Context {
	t.Helper()
	sb := newTestSandbox(t)
	return Context{
		Context:    context.Background(),
		SandboxDir: sb.Root(),
		Timeout:    2 * time.Second,
		Sandbox:    sb,
	}
}

func TestAcquirePage_FailsWithoutBrowserManager(t *testing.T) {
	ctx := browserTestContext(t)
	_, _, err := acquirePage(ctx)
	if err == nil {
		t.Fatal("expected failure when ctx.Browser is nil")
	}
}

func TestBrowserNavigate_FailsWithoutBrowserManager(t *testing.T) {
	ctx := browserTestContext(t)
	res, err := browserNavigateHandler(ctx, map[string]any{"url": "https://example.com"})
	if err != nil {
		t.Fatalf("unexpected go error: %v", err)
	}
	if res.Success {
		t.Fatal("expected navigate to fail without a browser manager configured")
	}
}

func TestBrowserClick_RequiresSelector(t *testing.T) {
	ctx := browserTestContext(t)
	res, err := browserClickHandler(ctx, map[string]any{})
	if err != nil {
		t.Fatalf("unexpected go error: %v", err)
	}
	if res.Success {
		t.Fatal("expected missing selector to fail validation")
	}
}

func TestBrowserFill_RequiresSelectorAndText(t *testing.T) {
	ctx := browserTestContext(t)
	res, err := browserFillHandler(ctx, map[string]any{"selector": "#input"})
	if err != nil {
		t.Fatalf("unexpected go error: %v", err)
	}
	if res.Success {
		t.Fatal("expected missing text to fail validation")
	}
}

func TestDetectIntent(t *testing.T) {
	cases := map[string]intent{
		"latest breaking news on rust":   intentNews,
		"official government filing":    intentOfficial,
		"golang api reference docs":     intentDocumentation,
		"price of a gpu":                intentPrice,
		"research paper on transformers": intentAcademic,
		"how to install docker":         intentHowTo,
		"best pizza in the world":       intentGeneral,
	}
	for q, want := range cases {
		if got := detectIntent(q); got != want {
			t.Errorf("detectIntent(%q) = %v, want %v", q, got, want)
		}
	}
}

func TestRefineQuery_NewsAppendsYear(t *testing.T) {
	out := refineQuery("latest news on rust", intentNews, "2026")
	if out != "latest news on rust 2026" {
		t.Fatalf("got %q", out)
	}
}

func TestRefineQuery_NewsSkipsDuplicateYear(t *testing.T) {
	out := refineQuery("latest news on rust 2026", intentNews, "2026")
	if out != "latest news on rust 2026" {
		t.Fatalf("got %q", out)
	}
}

func TestRefineQuery_PriceAddsYearAndLocale(t *testing.T) {
	out := refineQuery("price of gpu", intentPrice, "2026")
	if out != "price of gpu 2026 preço brasil" {
		t.Fatalf("got %q", out)
	}
}

func TestRefineQuery_AcademicAddsSiteClause(t *testing.T) {
	out := refineQuery("transformers", intentAcademic, "2026")
	want := "transformers site:scholar.google.com OR site:arxiv.org OR site:researchgate.net"
	if out != want {
		t.Fatalf("got %q", out)
	}
}

func TestRefineQuery_DocumentationAppendsLiteral(t *testing.T) {
	out := refineQuery("golang channels", intentDocumentation, "2026")
	if out != "golang channels documentation" {
		t.Fatalf("got %q", out)
	}
}

func TestRefineQuery_DocumentationSkipsWhenAlreadyPresent(t *testing.T) {
	out := refineQuery("golang channels documentation", intentDocumentation, "2026")
	if out != "golang channels documentation" {
		t.Fatalf("got %q", out)
	}
}

func TestHostOf(t *testing.T) {
	cases := map[string]string{
		"https://www.github.com/foo/bar": "github.com",
		"http://docs.python.org/3/":      "docs.python.org",
		"https://example.com?q=1":        "example.com",
		"https://example.com#frag":       "example.com",
	}
	for url, want := range cases {
		if got := hostOf(url); got != want {
			t.Errorf("hostOf(%q) = %q, want %q", url, got, want)
		}
	}
}

func TestTrustedDomainScore_MatchesSubdomain(t *testing.T) {
	if got := trustedDomainScore("blog.github.com"); got != 7 {
		t.Fatalf("got %v", got)
	}
	if got := trustedDomainScore("en.wikipedia.org"); got != 8 {
		t.Fatalf("got %v", got)
	}
	if got := trustedDomainScore("totally-unknown.example"); got != 0 {
		t.Fatalf("got %v", got)
	}
}

func TestQueryWordBonus_CapsAtFive(t *testing.T) {
	bonus := queryWordBonus("alpha beta gamma delta epsilon zeta", "alpha beta gamma delta epsilon zeta")
	if bonus != 5 {
		t.Fatalf("got %v", bonus)
	}
}

func TestQueryWordBonus_IgnoresShortWords(t *testing.T) {
	bonus := queryWordBonus("to a go", "to a go")
	if bonus != 0 {
		t.Fatalf("expected 0 for words <=2 chars, got %v", bonus)
	}
}

func TestSnippetLengthBonus(t *testing.T) {
	short := snippetLengthBonus("short snippet")
	if short != 0 {
		t.Fatalf("got %v", short)
	}
	medium := snippetLengthBonus(string(make([]byte, 150)))
	if medium != 1 {
		t.Fatalf("got %v", medium)
	}
	long := snippetLengthBonus(string(make([]byte, 250)))
	if long != 2 {
		t.Fatalf("got %v", long)
	}
}

func TestScoreResult_PenalizesLoginPages(t *testing.T) {
	r := searchResult{Title: "Sign in", URL: "https://example.com/login", Snippet: "please login"}
	score := scoreResult("example", intentGeneral, "2026", r)
	if score != 0 {
		t.Fatalf("expected penalty to floor score at 0, got %v", score)
	}
}

func TestScoreResult_RewardsTrustedDomainAndQueryMatch(t *testing.T) {
	r := searchResult{Title: "Go Documentation", URL: "https://golang.org/doc", Snippet: "The Go programming language documentation and reference."}
	score := scoreResult("go documentation", intentDocumentation, "2026", r)
	if score <= trustedDomainScore("golang.org") {
		t.Fatalf("expected score to exceed base trusted-domain score, got %v", score)
	}
}

func TestParseSearchResults_ExtractsTitleURLSnippet(t *testing.T) {
	html := `<a class="result__a" href="https://example.com/page">Example <b>Title</b></a>` +
		`<a class="result__snippet">Some <i>snippet</i> text that is long enough.</a>`
	results := parseSearchResults(html)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].URL != "https://example.com/page" {
		t.Fatalf("got url %q", results[0].URL)
	}
	if results[0].Title != "Example Title" {
		t.Fatalf("got title %q", results[0].Title)
	}
	if results[0].Snippet != "Some snippet text that is long enough." {
		t.Fatalf("got snippet %q", results[0].Snippet)
	}
}

func TestParseSearchResults_SkipsBlocksMissingFields(t *testing.T) {
	html := `<a class="result__a" href="">Title</a><a class="result__snippet">snippet</a>`
	results := parseSearchResults(html)
	if len(results) != 0 {
		t.Fatalf("expected 0 results for empty url, got %d", len(results))
	}
}

func TestIntentName(t *testing.T) {
	cases := map[intent]string{
		intentGeneral:       "general",
		intentNews:          "news",
		intentOfficial:      "official",
		intentDocumentation: "documentation",
		intentPrice:         "price",
		intentAcademic:      "academic",
		intentHowTo:         "how-to",
	}
	for in, want := range cases {
		if got := intentName(in); got != want {
			t.Errorf("intentName(%v) = %q, want %q", in, got, want)
		}
	}
}
