package intel

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"asset-forge/internal/domain"
)

var (
	_ domain.Provider = (*ProfileProvider)(nil)
	_ TimeoutProvider = (*ProfileProvider)(nil)
)

// Profile is the project information scraped from a web page.
type Profile struct {
	URL                string   `json:"url"`
	Title              string   `json:"title,omitempty"`
	Description        string   `json:"description,omitempty"`
	WebsiteCandidates  []string `json:"website_candidates,omitempty"`
	TwitterCandidates  []string `json:"twitter_candidates,omitempty"`
	TelegramCandidates []string `json:"telegram_candidates,omitempty"`
	DiscordCandidates  []string `json:"discord_candidates,omitempty"`
}

func (p *Profile) empty() bool {
	return p.Title == "" && p.Description == "" &&
		len(p.WebsiteCandidates) == 0 && len(p.TwitterCandidates) == 0 &&
		len(p.TelegramCandidates) == 0 && len(p.DiscordCandidates) == 0
}

// ProfileProvider scrapes a project page named by a URL template and
// extracts its title, description and social links.
type ProfileProvider struct {
	http *HTTPProvider
}

// NewProfileProvider creates a ProfileProvider.
func NewProfileProvider(opts HTTPProviderOptions) *ProfileProvider {
	return &ProfileProvider{http: NewHTTPProvider(opts)}
}

// Name implements domain.Provider.
func (p *ProfileProvider) Name() string { return p.http.Name() }

// Timeout implements TimeoutProvider.
func (p *ProfileProvider) Timeout() time.Duration { return p.http.Timeout() }

// Fetch implements domain.Provider.
func (p *ProfileProvider) Fetch(ctx context.Context, subject domain.Subject) (json.RawMessage, error) {
	body, status, err := p.http.get(ctx, subject, "text/html")
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound || status == http.StatusNoContent {
		return nil, nil
	}
	page := ExpandURL(p.http.template, subject)
	prof, err := ParseProfile(page, body)
	if err != nil {
		return nil, err
	}
	if prof.empty() {
		return nil, nil
	}
	return json.Marshal(prof)
}

// ParseProfile extracts a Profile from an HTML document served at pageURL.
// Relative links are resolved against pageURL.
func ParseProfile(pageURL string, body []byte) (*Profile, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	base, _ := url.Parse(pageURL)

	prof := &Profile{URL: pageURL}
	var ogDescription string
	seen := map[string]bool{}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if prof.Title == "" && n.FirstChild != nil {
					prof.Title = collapseSpace(n.FirstChild.Data)
				}
			case "meta":
				name := strings.ToLower(attr(n, "name") + attr(n, "property"))
				switch name {
				case "description":
					prof.Description = collapseSpace(attr(n, "content"))
				case "og:description":
					ogDescription = collapseSpace(attr(n, "content"))
				}
			case "a":
				href := resolveLink(base, attr(n, "href"))
				if href != "" && !seen[href] {
					seen[href] = true
					prof.classify(href, base)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if prof.Description == "" {
		prof.Description = ogDescription
	}
	return prof, nil
}

func (p *Profile) classify(href string, base *url.URL) {
	u, err := url.Parse(href)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch {
	case host == "twitter.com" || host == "x.com":
		p.TwitterCandidates = append(p.TwitterCandidates, href)
	case host == "t.me" || host == "telegram.me":
		p.TelegramCandidates = append(p.TelegramCandidates, href)
	case host == "discord.gg" || host == "discord.com":
		p.DiscordCandidates = append(p.DiscordCandidates, href)
	case base != nil && strings.EqualFold(u.Hostname(), base.Hostname()):
		// same-site navigation
	default:
		p.WebsiteCandidates = append(p.WebsiteCandidates, href)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	u.Fragment = ""
	return u.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
