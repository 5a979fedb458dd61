package gmail

import (
	"encoding/base64"
	"net/mail"
	"regexp"
	"strings"

	gmailapi "google.golang.org/api/gmail/v1"

	emaildomain "clustermail-backend/internal/email/domain"
)

// Fallback literals for missing headers and bodies.
const (
	noSubject       = "No Subject"
	unknownSender   = "Unknown Sender"
	unknownReceiver = "Unknown Receiver"
	noBody          = "No Body"
)

var (
	styleRe      = regexp.MustCompile(`(?is)<style.*?</style>`)
	scriptRe     = regexp.MustCompile(`(?is)<script.*?</script>`)
	blockCloseRe = regexp.MustCompile(`(?i)</div>|</li>|</p>|</h[1-6]>|<br\s*/?>`)
	listOpenRe   = regexp.MustCompile(`(?i)<li>`)
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	blankLineRe  = regexp.MustCompile(`\n\s*\n`)
	imageRe      = regexp.MustCompile(`\[image:[\s\S]*?\]`)
	linkRe       = regexp.MustCompile(`https?://\S+|www\.\S+`)
)

// Normalize turns one raw Gmail message into the canonical Email record.
// It is a pure transformation: same input, same output. UserEmail and
// Summary are not its concern.
func Normalize(msg *gmailapi.Message) *emaildomain.Email {
	email := &emaildomain.Email{
		ID:      msg.Id,
		Subject: noSubject,
		From:    unknownSender,
		To:      unknownReceiver,
	}

	if msg.Payload == nil {
		email.Body = noBody
		return email
	}

	if v := getHeader(msg.Payload.Headers, "Subject"); v != "" {
		email.Subject = v
	}
	if v := getHeader(msg.Payload.Headers, "From"); v != "" {
		email.From = v
	}
	if v := getHeader(msg.Payload.Headers, "To"); v != "" {
		email.To = v
	}
	if v := getHeader(msg.Payload.Headers, "Date"); v != "" {
		if t, err := mail.ParseDate(v); err == nil {
			email.DateSent = &t
		}
	}

	email.Body = scrubBody(extractBody(msg.Payload))
	return email
}

func getHeader(headers []*gmailapi.MessagePartHeader, name string) string {
	for _, header := range headers {
		if header.Name == name {
			return header.Value
		}
	}
	return ""
}

// extractBody resolves the raw body with a fixed precedence: the top-level
// payload wins, then the first text/plain part, then the first text/plain
// sub-part of a multipart/alternative part, else the "No Body" literal.
func extractBody(payload *gmailapi.MessagePart) string {
	if payload.Body != nil && payload.Body.Data != "" {
		if decoded, ok := decodeBody(payload.Body.Data); ok {
			return decoded
		}
	}

	for _, part := range payload.Parts {
		if part.MimeType != "text/plain" || part.Body == nil || part.Body.Data == "" {
			continue
		}
		if decoded, ok := decodeBody(part.Body.Data); ok {
			return decoded
		}
	}

	for _, part := range payload.Parts {
		if part.MimeType != "multipart/alternative" {
			continue
		}
		for _, sub := range part.Parts {
			if sub.MimeType != "text/plain" || sub.Body == nil || sub.Body.Data == "" {
				continue
			}
			if decoded, ok := decodeBody(sub.Body.Data); ok {
				return decoded
			}
		}
	}

	return noBody
}

func decodeBody(data string) (string, bool) {
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(decoded), true
	}
	if decoded, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(decoded), true
	}
	return "", false
}

// scrubBody strips HTML down to readable plain text, then removes image
// placeholders and bare URLs. The rewrite order matters: block-level closes
// become newlines before the remaining tags are dropped, and image/link
// removal runs on the already-stripped text.
func scrubBody(body string) string {
	s := styleRe.ReplaceAllString(body, "")
	s = scriptRe.ReplaceAllString(s, "")
	s = blockCloseRe.ReplaceAllString(s, "\n")
	s = listOpenRe.ReplaceAllString(s, "- ")
	s = tagRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = blankLineRe.ReplaceAllString(s, "\n")
	s = strings.TrimSpace(s)
	s = imageRe.ReplaceAllString(s, "")
	s = linkRe.ReplaceAllString(s, "")
	return s
}
