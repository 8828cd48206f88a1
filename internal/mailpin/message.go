package mailpin

import (
	"bytes"
	"encoding/base64"
	"html"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"regexp"
	"strings"
)

var (
	rePIN    = regexp.MustCompile(`\b(\d{6})\b`)
	reBlocks = regexp.MustCompile(`(?is)<(style|script|head)[^>]*>.*?</(style|script|head)>`)
	reTags   = regexp.MustCompile(`(?is)<[^>]+>`)
)

// ExtractPIN finds the six digit verification code in a LinkedIn message.
// The subject wins over the body because LinkedIn puts the code there.
func ExtractPIN(subject string, raw []byte) (string, bool) {
	if m := rePIN.FindStringSubmatch(decodeHeader(subject)); m != nil {
		return m[1], true
	}
	plain, htmlPart := messageText(raw)
	for _, body := range []string{plain, htmlToText(htmlPart)} {
		if m := rePIN.FindStringSubmatch(body); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func fromLinkedIn(from string) bool {
	return strings.Contains(strings.ToLower(from), "linkedin")
}

// messageText returns the plain and html bodies of an RFC822 message.
func messageText(raw []byte) (plain, htmlPart string) {
	if len(raw) == 0 {
		return "", ""
	}
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return string(raw), ""
	}
	body, _ := io.ReadAll(io.LimitReader(msg.Body, 6<<20))
	plain, htmlPart = textParts(msg.Header, body)
	if plain == "" && htmlPart == "" {
		plain = string(body)
	}
	return plain, htmlPart
}

func textParts(h mail.Header, body []byte) (plain, htmlPart string) {
	cte := strings.ToLower(strings.TrimSpace(h.Get("Content-Transfer-Encoding")))
	mediaType, params, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil {
		return string(decode(body, cte)), ""
	}
	mediaType = strings.ToLower(mediaType)

	if !strings.HasPrefix(mediaType, "multipart/") {
		s := string(decode(body, cte))
		if strings.HasPrefix(mediaType, "text/html") {
			return "", s
		}
		return s, ""
	}

	boundary := params["boundary"]
	if boundary == "" {
		return string(decode(body, cte)), ""
	}
	mr := multipart.NewReader(bytes.NewReader(body), boundary)
	for {
		p, err := mr.NextPart()
		if err != nil {
			break
		}
		b, _ := io.ReadAll(io.LimitReader(p, 2<<20))
		pl, ht := textParts(mail.Header(p.Header), b)
		if plain == "" {
			plain = pl
		}
		if htmlPart == "" {
			htmlPart = ht
		}
	}
	return plain, htmlPart
}

func decode(b []byte, cte string) []byte {
	var r io.Reader
	switch cte {
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, bytes.NewReader(b))
	case "quoted-printable":
		r = quotedprintable.NewReader(bytes.NewReader(b))
	default:
		return b
	}
	out, err := io.ReadAll(io.LimitReader(r, 2<<20))
	if err != nil && len(out) == 0 {
		return b
	}
	return out
}

func decodeHeader(s string) string {
	out, err := new(mime.WordDecoder).DecodeHeader(strings.TrimSpace(s))
	if err != nil {
		return s
	}
	return out
}

func htmlToText(s string) string {
	s = reBlocks.ReplaceAllString(s, " ")
	s = reTags.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}
