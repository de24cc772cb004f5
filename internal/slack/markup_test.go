package slack

import (
	"testing"

	goslack "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
)

func testLookup() nameLookup {
	users := map[string]string{"U1": "bob"}
	rooms := map[string]string{"C1": "general"}
	return nameLookup{
		userMention: func(id string) (string, bool) {
			name, ok := users[id]
			return name, ok
		},
		roomName: func(id string) (string, bool) {
			name, ok := rooms[id]
			return name, ok
		},
	}
}

func TestTranslateMarkup(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain", "hello world", "hello world"},
		{"labelled user", "hi <@U1|label>", "hi label"},
		{"known user", "hi <@U1>", "hi @bob"},
		{"unknown user", "hi <@U9>", "hi @U9"},
		{"labelled channel", "see <#C1|chan>", "see chan"},
		{"known channel", "see <#C1>", "see #general"},
		{"unknown channel", "see <#C9>", "see #C9"},
		{"broadcast channel", "<!channel> hi", "@channel hi"},
		{"broadcast group", "<!group> hi", "@group hi"},
		{"broadcast everyone", "<!everyone> hi", "@everyone hi"},
		{"other special", "<!here> hi", " hi"},
		{"bare link", "<http://x>", "http://x"},
		{"link with label", "<http://example.com|Example>", "Example (http://example.com)"},
		{"link label contained in link", "<http://example.com|example.com>", "example.com"},
		{"mailto", "<mailto:bob@example.com|bob@example.com>", "bob@example.com"},
		{"mailto without label", "<mailto:bob@example.com>", "bob@example.com"},
		{"entities", "a &lt;b&gt; &amp; c", "a <b> & c"},
		{"entities once", "&amp;lt;", "&lt;"},
		{"escaped markup stays text", "&lt;@U1&gt;", "<@U1>"},
		{"several", "<@U1> see <#C1> at <http://x|y>", "@bob see #general at y (http://x)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, translateMarkup(tt.text, testLookup()))
		})
	}
}

func TestMessageBody_RewritesLeadingSelfMention(t *testing.T) {
	body := messageBody("  <@U12345678> hello", "U12345678", "lita", nil, testLookup())
	assert.Equal(t, "@lita hello", body)

	body = messageBody("hey <@U12345678>", "U12345678", "lita", nil, testLookup())
	assert.Equal(t, "hey @U12345678", body)
}

func TestMessageBody_AppendsAttachments(t *testing.T) {
	attachments := []goslack.Attachment{
		{Text: "attached text", Fallback: "ignored"},
		{Fallback: "fallback only"},
		{},
	}

	body := messageBody("hi", "U12345678", "lita", attachments, testLookup())
	assert.Equal(t, "hi\nattached text\nfallback only", body)

	body = messageBody("", "U12345678", "lita", attachments[:1], testLookup())
	assert.Equal(t, "attached text", body)
}
