package slack

import (
	"regexp"
	"strings"

	goslack "github.com/slack-go/slack"
)

// markupPattern matches Slack's bracketed markup: <@U1>, <#C1|general>,
// <!channel>, <http://example.com|label>
var markupPattern = regexp.MustCompile(`<([@#!])?([^>|]+)(?:\|([^>]+))?>`)

var entityDecoder = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&")

var broadcastTokens = map[string]bool{
	"channel":  true,
	"group":    true,
	"everyone": true,
}

// nameLookup resolves ids found in markup; ok is false for unknown ids
type nameLookup struct {
	userMention func(id string) (string, bool)
	roomName    func(id string) (string, bool)
}

// translateMarkup rewrites Slack markup into plain text and decodes the
// escaped entities exactly once
func translateMarkup(text string, lookup nameLookup) string {
	text = markupPattern.ReplaceAllStringFunc(text, func(token string) string {
		groups := markupPattern.FindStringSubmatch(token)
		kind, link, label := groups[1], groups[2], groups[3]

		switch kind {
		case "@":
			if label != "" {
				return label
			}
			if name, ok := lookup.userMention(link); ok {
				return "@" + name
			}
			return "@" + link
		case "#":
			if label != "" {
				return label
			}
			if name, ok := lookup.roomName(link); ok {
				return "#" + name
			}
			return "#" + link
		case "!":
			if broadcastTokens[link] {
				return "@" + link
			}
			return ""
		default:
			link = strings.TrimPrefix(link, "mailto:")
			if label != "" && !strings.Contains(link, label) {
				return label + " (" + link + ")"
			}
			if label != "" {
				return label
			}
			return link
		}
	})
	return entityDecoder.Replace(text)
}

// selfMentionPattern builds the pattern of a leading mention of the bot
func selfMentionPattern(robotID string) *regexp.Regexp {
	return regexp.MustCompile(`^\s*<@` + regexp.QuoteMeta(robotID) + `>`)
}

// messageBody builds the framework body of a message: the translated text
// followed by each attachment's text (or fallback) on its own line
func messageBody(text, robotID, robotMention string, attachments []goslack.Attachment, lookup nameLookup) string {
	var lines []string

	if text != "" {
		if robotID != "" {
			text = selfMentionPattern(robotID).ReplaceAllLiteralString(text, "@"+robotMention)
		}
		lines = append(lines, translateMarkup(text, lookup))
	}

	for _, a := range attachments {
		switch {
		case a.Text != "":
			lines = append(lines, a.Text)
		case a.Fallback != "":
			lines = append(lines, a.Fallback)
		}
	}
	return strings.Join(lines, "\n")
}
