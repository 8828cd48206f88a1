package linkedin

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"easyapply-engine/internal/domain"
	"easyapply-engine/internal/util"
)

const (
	cardSelector     = ".job-card-container"
	cardTitle        = "a.job-card-container__link span strong"
	cardTitleLink    = "a.job-card-container__link"
	cardCompany      = "div.artdeco-entity-lockup__subtitle span"
	cardLocation     = "ul.job-card-container__metadata-wrapper li"
	jobIDAttr        = "data-job-id"
	occludableIDAttr = "data-occludable-job-id"
)

// ParseJobCards extracts search results from a jobs search page. Cards that
// render more than once (LinkedIn re-renders on scroll) are merged by job
// ID; cards without an ID or title are dropped.
func ParseJobCards(htmlBody, baseURL string) ([]domain.JobCard, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return nil, err
	}
	base, _ := url.Parse(baseURL)

	var (
		out  []domain.JobCard
		byID = map[string]int{}
	)
	doc.Find(cardSelector).Each(func(_ int, card *goquery.Selection) {
		c := domain.JobCard{
			Title:    cardTitleText(card),
			Company:  util.CleanText(card.Find(cardCompany).First().Text()),
			Location: util.CleanText(card.Find(cardLocation).First().Text()),
		}

		href, _ := card.Find("a[href]").First().Attr("href")
		c.JobID = cardJobID(card, href)
		if c.JobID == "" || c.Title == "" {
			return
		}
		c.URL = jobURL(base, c.JobID, href)

		if i, ok := byID[c.JobID]; ok {
			prev := &out[i]
			if prev.Company == "" {
				prev.Company = c.Company
			}
			if prev.Location == "" {
				prev.Location = c.Location
			}
			return
		}
		byID[c.JobID] = len(out)
		out = append(out, c)
	})
	return out, nil
}

func cardTitleText(card *goquery.Selection) string {
	if t := stripBadTitleSuffixes(card.Find(cardTitle).First().Text()); t != "" {
		return t
	}
	link := card.Find(cardTitleLink).First()
	if t, ok := link.Attr("aria-label"); ok {
		if t = stripBadTitleSuffixes(t); t != "" {
			return t
		}
	}
	return stripBadTitleSuffixes(link.Text())
}

func cardJobID(card *goquery.Selection, href string) string {
	// the id sits on the card or on its list item wrapper
	for _, attr := range []string{jobIDAttr, occludableIDAttr} {
		if v, ok := card.Closest("[" + attr + "]").Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return util.LinkedInJobID(href)
}

func jobURL(base *url.URL, jobID, href string) string {
	if base == nil || base.Host == "" {
		return util.CanonicalURL(href)
	}
	return base.ResolveReference(&url.URL{Path: "/jobs/view/" + jobID + "/"}).String()
}

// stripBadTitleSuffixes removes the badges LinkedIn renders inside the title.
func stripBadTitleSuffixes(s string) string {
	s = util.CleanText(s)
	if s == "" {
		return ""
	}
	bads := []string{
		"with verification",
		"Actively recruiting",
		"Easy Apply",
		"Promoted",
	}
	for _, b := range bads {
		s = strings.TrimSpace(strings.ReplaceAll(s, b, ""))
	}
	return util.CleanText(s)
}
