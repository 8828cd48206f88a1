package util

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

var reJobID = regexp.MustCompile(`/jobs/view/(\d+)`)

// CanonicalURL drops fragments and tracking parameters. LinkedIn URLs keep
// only currentJobId.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") ||
			lk == "gclid" || lk == "fbclid" || lk == "msclkid" ||
			lk == "trackingid" || lk == "refid" || lk == "trk" {
			q.Del(k)
		}
	}

	if strings.Contains(u.Host, "linkedin.com") {
		keep := url.Values{}
		if v := q.Get("currentJobId"); v != "" {
			keep.Set("currentJobId", v)
		}
		q = keep
	}

	// deterministic query
	for k := range q {
		vals := q[k]
		sort.Strings(vals)
		q[k] = vals
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// LinkedInJobID extracts the numeric posting id from a /jobs/view/<id> URL or
// a currentJobId query parameter.
func LinkedInJobID(raw string) string {
	if m := reJobID.FindStringSubmatch(raw); len(m) == 2 {
		return m[1]
	}
	if u, err := url.Parse(strings.TrimSpace(raw)); err == nil {
		return u.Query().Get("currentJobId")
	}
	return ""
}
