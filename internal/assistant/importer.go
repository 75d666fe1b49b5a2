package assistant

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"chefitup/internal/llm"
	"chefitup/internal/logging"
	"chefitup/internal/recipe"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	agentImporter = "recipe_importer"

	importedIDPrefix = "imported-"

	fetchTimeout   = 15 * time.Second
	maxPageBytes   = 2 << 20
	maxPromptChars = 12000
)

var (
	// ErrInvalidURL is returned for anything that is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid recipe URL")
	// ErrPrivateAddress is returned when a recipe URL resolves to a loopback,
	// private or link-local address.
	ErrPrivateAddress = fmt.Errorf("%w: private network address", ErrInvalidURL)
)

//go:embed import_recipe_prompt.md
var importRecipePrompt string

// Importer extracts a recipe from a web page.
type Importer struct {
	httpClient *http.Client
	textGen    llm.TextGenerator
	recorder   MetricsRecorder
	logger     *zap.Logger

	// allowPrivate lets tests fetch from local servers.
	allowPrivate bool
}

// NewImporter creates an Importer. textGen may be nil; Import then fails
// with ErrProviderUnavailable before fetching anything.
func NewImporter(textGen llm.TextGenerator, recorder MetricsRecorder, logger *zap.Logger) *Importer {
	i := &Importer{
		textGen:  textGen,
		recorder: orNoRecorder(recorder),
		logger:   logging.OrNop(logger),
	}
	dialer := &net.Dialer{Timeout: fetchTimeout, Control: i.checkAddress}
	i.httpClient = &http.Client{
		Timeout:   fetchTimeout,
		Transport: &http.Transport{DialContext: dialer.DialContext},
	}
	return i
}

// checkAddress runs after DNS resolution, for every connection including
// redirects, and refuses addresses outside the public internet.
func (i *Importer) checkAddress(network, address string, _ syscall.RawConn) error {
	if i.allowPrivate {
		return nil
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	if !publicAddr(ip) {
		return fmt.Errorf("%w: %s", ErrPrivateAddress, ip)
	}
	return nil
}

func publicAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsGlobalUnicast() && !ip.IsPrivate() && !ip.IsLoopback() && !ip.IsLinkLocalUnicast()
}

type page struct {
	Title   string
	Image   string
	Content string
}

// Import fetches rawURL, strips the page down to text and asks the model to
// structure it as a recipe.
func (i *Importer) Import(ctx context.Context, rawURL string) (recipe.Recipe, error) {
	if i.textGen == nil {
		return recipe.Recipe{}, ErrProviderUnavailable
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return recipe.Recipe{}, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	p, err := i.fetchPage(ctx, u.String())
	if err != nil {
		return recipe.Recipe{}, fmt.Errorf("failed to fetch content: %w", err)
	}

	prompt, err := render("import_recipe", importRecipePrompt, struct {
		Title   string
		URL     string
		Content string
	}{p.Title, u.String(), p.Content})
	if err != nil {
		return recipe.Recipe{}, fmt.Errorf("failed to build prompt: %w", err)
	}

	raw, err := call(ctx, i.textGen, i.recorder, agentImporter, prompt)
	if err != nil {
		return recipe.Recipe{}, err
	}

	r, err := parseRecipeDraft(agentImporter, raw, importedIDPrefix)
	if err != nil {
		return recipe.Recipe{}, err
	}
	if p.Image != "" {
		r.Image = p.Image
	}

	i.logger.Info("recipe imported",
		zap.String("recipe_id", r.ID),
		zap.String("title", r.Title),
		zap.String("source", u.Host))
	return r, nil
}

func (i *Importer) fetchPage(ctx context.Context, pageURL string) (page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return page{}, err
	}
	req.Header.Set("User-Agent", "chefitup-importer/1.0")
	req.Header.Set("Accept", "text/html")

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return page{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return page{}, fmt.Errorf("failed to fetch URL: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return page{}, err
	}

	p := page{Title: strings.TrimSpace(doc.Find("title").First().Text())}
	if img, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok {
		if abs, err := resp.Request.URL.Parse(strings.TrimSpace(img)); err == nil && abs.Scheme != "" {
			p.Image = abs.String()
		}
	}

	// Remove noise to save LLM tokens
	doc.Find("script, style, noscript, nav, header, footer, aside, form, iframe, svg, .ads, #ads, .comments").Remove()

	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	if text == "" {
		return page{}, errors.New("page has no readable text")
	}
	if len(text) > maxPromptChars {
		text = strings.ToValidUTF8(text[:maxPromptChars], "")
	}
	p.Content = text
	return p, nil
}
