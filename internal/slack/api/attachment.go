package api

import "github.com/slack-go/slack"

// AttachmentOption customizes an attachment built by NewAttachment
type AttachmentOption func(*slack.Attachment)

// NewAttachment builds an attachment with text as its body. The fallback defaults to
// text, and text always wins over any text an option sets.
func NewAttachment(text string, opts ...AttachmentOption) slack.Attachment {
	var a slack.Attachment
	for _, opt := range opts {
		opt(&a)
	}
	a.Text = text
	if a.Fallback == "" {
		a.Fallback = text
	}
	return a
}

func WithFallback(fallback string) AttachmentOption {
	return func(a *slack.Attachment) { a.Fallback = fallback }
}

func WithColor(color string) AttachmentOption {
	return func(a *slack.Attachment) { a.Color = color }
}

func WithPretext(pretext string) AttachmentOption {
	return func(a *slack.Attachment) { a.Pretext = pretext }
}

func WithTitle(title, link string) AttachmentOption {
	return func(a *slack.Attachment) {
		a.Title = title
		a.TitleLink = link
	}
}

func WithAuthor(name, link, icon string) AttachmentOption {
	return func(a *slack.Attachment) {
		a.AuthorName = name
		a.AuthorLink = link
		a.AuthorIcon = icon
	}
}

func WithImage(imageURL, thumbURL string) AttachmentOption {
	return func(a *slack.Attachment) {
		a.ImageURL = imageURL
		a.ThumbURL = thumbURL
	}
}

// WithField appends a title/value field; short fields render side by side
func WithField(title, value string, short bool) AttachmentOption {
	return func(a *slack.Attachment) {
		a.Fields = append(a.Fields, slack.AttachmentField{Title: title, Value: value, Short: short})
	}
}
