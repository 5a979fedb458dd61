package gmail

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailapi "google.golang.org/api/gmail/v1"
)

func enc(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func header(name, value string) *gmailapi.MessagePartHeader {
	return &gmailapi.MessagePartHeader{Name: name, Value: value}
}

func TestNormalizeTopLevelBodyWins(t *testing.T) {
	msg := &gmailapi.Message{
		Id: "m1",
		Payload: &gmailapi.MessagePart{
			Body: &gmailapi.MessagePartBody{Data: enc("top level")},
			Parts: []*gmailapi.MessagePart{
				{MimeType: "text/plain", Body: &gmailapi.MessagePartBody{Data: enc("part body")}},
			},
		},
	}

	email := Normalize(msg)
	assert.Equal(t, "top level", email.Body)
}

func TestNormalizeTextPlainPart(t *testing.T) {
	msg := &gmailapi.Message{
		Id: "m2",
		Payload: &gmailapi.MessagePart{
			Parts: []*gmailapi.MessagePart{
				{MimeType: "text/html", Body: &gmailapi.MessagePartBody{Data: enc("<p>html</p>")}},
				{MimeType: "text/plain", Body: &gmailapi.MessagePartBody{Data: enc("plain text")}},
			},
		},
	}

	email := Normalize(msg)
	assert.Equal(t, "plain text", email.Body)
}

func TestNormalizeMultipartAlternative(t *testing.T) {
	msg := &gmailapi.Message{
		Id: "m3",
		Payload: &gmailapi.MessagePart{
			Parts: []*gmailapi.MessagePart{
				{
					MimeType: "multipart/alternative",
					Parts: []*gmailapi.MessagePart{
						{MimeType: "text/html", Body: &gmailapi.MessagePartBody{Data: enc("<p>html</p>")}},
						{MimeType: "text/plain", Body: &gmailapi.MessagePartBody{Data: enc("nested plain")}},
					},
				},
			},
		},
	}

	email := Normalize(msg)
	assert.Equal(t, "nested plain", email.Body)
}

func TestNormalizeNoBody(t *testing.T) {
	msg := &gmailapi.Message{
		Id: "m4",
		Payload: &gmailapi.MessagePart{
			Parts: []*gmailapi.MessagePart{
				{MimeType: "text/html", Body: &gmailapi.MessagePartBody{Data: enc("<p>only html</p>")}},
			},
		},
	}

	email := Normalize(msg)
	assert.Equal(t, "No Body", email.Body)
}

func TestNormalizeHeaderFallbacks(t *testing.T) {
	msg := &gmailapi.Message{
		Id:      "m5",
		Payload: &gmailapi.MessagePart{},
	}

	email := Normalize(msg)
	assert.Equal(t, "No Subject", email.Subject)
	assert.Equal(t, "Unknown Sender", email.From)
	assert.Equal(t, "Unknown Receiver", email.To)
	assert.Nil(t, email.DateSent)
}

func TestNormalizeHeaders(t *testing.T) {
	msg := &gmailapi.Message{
		Id: "m6",
		Payload: &gmailapi.MessagePart{
			Headers: []*gmailapi.MessagePartHeader{
				header("Subject", "Weekly sync"),
				header("From", "Alice <alice@example.com>"),
				header("To", "bob@example.com"),
				header("Date", "Tue, 14 Jan 2025 10:30:00 +0200"),
			},
			Body: &gmailapi.MessagePartBody{Data: enc("hi")},
		},
	}

	email := Normalize(msg)
	assert.Equal(t, "Weekly sync", email.Subject)
	assert.Equal(t, "Alice <alice@example.com>", email.From)
	assert.Equal(t, "bob@example.com", email.To)
	require.NotNil(t, email.DateSent)
	assert.Equal(t, time.Date(2025, 1, 14, 10, 30, 0, 0, email.DateSent.Location()), *email.DateSent)
}

func TestNormalizeUnparseableDate(t *testing.T) {
	msg := &gmailapi.Message{
		Id: "m7",
		Payload: &gmailapi.MessagePart{
			Headers: []*gmailapi.MessagePartHeader{header("Date", "not a date")},
			Body:    &gmailapi.MessagePartBody{Data: enc("hi")},
		},
	}

	email := Normalize(msg)
	assert.Nil(t, email.DateSent)
}

func TestScrubBodyRemovesScriptAndLinks(t *testing.T) {
	got := scrubBody("<p>Hi <b>there</b></p><script>evil()</script> visit https://x.com")

	assert.Contains(t, got, "Hi there")
	assert.NotContains(t, got, "evil")
	assert.NotContains(t, got, "x.com")
	assert.NotContains(t, got, "https")
}

func TestScrubBodyListItems(t *testing.T) {
	got := scrubBody("<ul><li>first</li><li>second</li></ul>")
	assert.Equal(t, "- first\n- second", got)
}

func TestScrubBodyEntitiesAndBlankLines(t *testing.T) {
	got := scrubBody("a&nbsp;&amp;&nbsp;b\n\n\nc")
	assert.Equal(t, "a & b\nc", got)
}

func TestScrubBodyImagePlaceholders(t *testing.T) {
	got := scrubBody("before [image: logo\nspanning lines] after")
	assert.NotContains(t, got, "image:")
	assert.Contains(t, got, "before")
	assert.Contains(t, got, "after")
}

func TestScrubBodyStripsStyleBlocks(t *testing.T) {
	got := scrubBody("<style>body { color: red }</style>hello www.example.org world")
	assert.NotContains(t, got, "color")
	assert.NotContains(t, got, "example.org")
	assert.Contains(t, got, "hello")
	assert.Contains(t, got, "world")
}
