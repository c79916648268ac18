package comick

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/brogergvhs/comickd/internal/providers"

	"github.com/PuerkitoBio/goquery"
)

var reChapterNumber = regexp.MustCompile(`(?i)Chapter\s*([\d.]+)`)

// ParseChapterRows extracts the chapters listed in html, in DOM order. rows
// is the number of listing rows seen, parsed or not. Rows without a link, a
// title or a chapter number are skipped.
func ParseChapterRows(html, baseURL string) (list []providers.Chapter, rows int, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, 0, err
	}

	sel := doc.Find(ChapterRowSelector)
	sel.Each(func(_ int, row *goquery.Selection) {
		link := row.Find(ChapterLinkSelector).First()
		if link.Length() == 0 {
			return
		}

		span := link.Find(TitleSelector).First()
		if span.Length() == 0 {
			return
		}

		href, _ := link.Attr("href")
		if href == "" {
			return
		}

		title := strings.TrimSpace(span.AttrOr("title", ""))
		if title == "" {
			title = strings.TrimSpace(span.Text())
		}

		var groups []string
		row.Find(GroupSelector).Each(func(_ int, g *goquery.Selection) {
			groups = append(groups, strings.TrimSpace(g.Text()))
		})
		if len(groups) > 0 {
			title += " (" + strings.Join(groups, ", ") + ")"
		}

		num, ok := ChapterNumber(title)
		if !ok {
			return
		}

		list = append(list, providers.Chapter{
			Number: num,
			Title:  title,
			URL:    absoluteURL(baseURL, href),
		})
	})

	return list, sel.Length(), nil
}

// ChapterNumber finds the first decimal number after the word "Chapter".
func ChapterNumber(title string) (float64, bool) {
	m := reChapterNumber.FindStringSubmatch(title)
	if m == nil {
		return 0, false
	}

	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseSearchResults returns the comic links of a search page that carry a
// title, in DOM order, without duplicates.
func ParseSearchResults(html, baseURL string) ([]providers.Comic, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var out []providers.Comic
	seen := map[string]bool{}

	doc.Find(SearchLinkSelector).Each(func(_ int, a *goquery.Selection) {
		title := strings.TrimSpace(a.Find(SearchTitleSelector).First().Text())
		href := a.AttrOr("href", "")
		if title == "" || href == "" {
			return
		}

		u := absoluteURL(baseURL, href)
		if seen[u] {
			return
		}
		seen[u] = true
		out = append(out, providers.Comic{Title: title, URL: u})
	})

	return out, nil
}

// PageURL rewrites the page query parameter of comicURL and drops any
// fragment.
func PageURL(comicURL string, page int) (string, error) {
	u, err := url.Parse(comicURL)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	u.Fragment = ""

	return u.String(), nil
}

func SearchURL(baseURL, query string) string {
	return strings.TrimRight(baseURL, "/") + "/search?q=" + url.QueryEscape(query)
}

func absoluteURL(baseURL, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return strings.TrimRight(baseURL, "/") + href
}
