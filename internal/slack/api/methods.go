package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/slack-go/slack"
)

// Formatting holds the optional chat.postMessage formatting flags
type Formatting struct {
	LinkNames   bool
	UnfurlLinks *bool
	UnfurlMedia *bool
	Parse       string
}

func (f Formatting) args() Args {
	args := Args{
		"unfurl_links": f.UnfurlLinks,
		"unfurl_media": f.UnfurlMedia,
	}
	if f.LinkNames {
		args["link_names"] = 1
	}
	if f.Parse != "" {
		args["parse"] = f.Parse
	}
	return args
}

// RTMStart fetches the bootstrap snapshot and the stream URL
func (c *Client) RTMStart(ctx context.Context) (*Snapshot, error) {
	var resp rtmStartResponse
	if err := c.callInto(ctx, "rtm.start", nil, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("%s: %w", describeConnectionError(apiErr.Code), err)
		}
		return nil, err
	}
	if resp.URL == "" {
		return nil, fmt.Errorf("slack API call to rtm.start returned no stream URL")
	}

	channels := make([]ChannelRecord, 0, len(resp.Channels)+len(resp.Groups))
	channels = append(channels, resp.Channels...)
	channels = append(channels, resp.Groups...)

	return &Snapshot{
		URL:      resp.URL,
		Self:     resp.Self,
		Users:    resp.Users,
		IMs:      resp.IMs,
		Channels: channels,
	}, nil
}

// IMOpen opens (or returns the existing) direct channel with userID
func (c *Client) IMOpen(ctx context.Context, userID string) (*IMOpenResponse, error) {
	var resp imOpenResponse
	if err := c.callInto(ctx, "im.open", Args{"user": userID}, &resp); err != nil {
		return nil, err
	}
	if resp.Channel.ID == "" {
		return nil, fmt.Errorf("slack API call to im.open returned no channel for user %s", userID)
	}
	return &IMOpenResponse{ID: resp.Channel.ID}, nil
}

// SendMessages posts texts as one newline-joined message
func (c *Client) SendMessages(ctx context.Context, channel string, texts []string, thread string) (json.RawMessage, error) {
	args := c.postArgs(channel, thread)
	args["text"] = strings.Join(texts, "\n")
	return c.Call(ctx, "chat.postMessage", args)
}

// SendAttachments posts a message made only of attachments
func (c *Client) SendAttachments(ctx context.Context, channel string, attachments []slack.Attachment, thread string) (json.RawMessage, error) {
	args := c.postArgs(channel, thread)
	args["attachments"] = attachments
	return c.Call(ctx, "chat.postMessage", args)
}

func (c *Client) postArgs(channel, thread string) Args {
	args := Args{}
	for k, v := range c.defaults {
		args[k] = v
	}
	for k, v := range c.formatting.args() {
		args[k] = v
	}
	args["as_user"] = true
	args["channel"] = channel
	if thread != "" {
		args["thread_ts"] = thread
	}
	return args
}

// SetTopic sets a channel's topic and returns the topic Slack stored
func (c *Client) SetTopic(ctx context.Context, channel, topic string) (string, error) {
	var resp topicResponse
	if err := c.callInto(ctx, "channels.setTopic", Args{"channel": channel, "topic": topic}, &resp); err != nil {
		return "", err
	}
	return resp.Topic, nil
}

// AddReaction adds an emoji reaction to the message at timestamp in channel
func (c *Client) AddReaction(ctx context.Context, channel, timestamp, name string) error {
	return c.callInto(ctx, "reactions.add", Args{
		"channel":   channel,
		"timestamp": timestamp,
		"name":      name,
	}, nil)
}

// ChannelMembers lists the members of a public channel
func (c *Client) ChannelMembers(ctx context.Context, channel string) ([]string, error) {
	var resp membersResponse
	if err := c.callInto(ctx, "channels.info", Args{"channel": channel}, &resp); err != nil {
		return nil, err
	}
	return resp.Channel.Members, nil
}

// GroupMembers lists the members of a private group
func (c *Client) GroupMembers(ctx context.Context, channel string) ([]string, error) {
	var resp membersResponse
	if err := c.callInto(ctx, "groups.info", Args{"channel": channel}, &resp); err != nil {
		return nil, err
	}
	return resp.Group.Members, nil
}

// MPIMMembers lists the members of a multi-party direct conversation
func (c *Client) MPIMMembers(ctx context.Context, channel string) ([]string, error) {
	var resp mpimListResponse
	if err := c.callInto(ctx, "mpim.list", nil, &resp); err != nil {
		return nil, err
	}
	for _, g := range resp.Groups {
		if g.ID == channel {
			return g.Members, nil
		}
	}
	return nil, fmt.Errorf("multi-party conversation %s not found", channel)
}

// IMUser returns the peer user of a direct channel
func (c *Client) IMUser(ctx context.Context, channel string) (string, error) {
	var resp imListResponse
	if err := c.callInto(ctx, "im.list", nil, &resp); err != nil {
		return "", err
	}
	for _, im := range resp.IMs {
		if im.ID == channel {
			return im.User, nil
		}
	}
	return "", fmt.Errorf("direct channel %s not found", channel)
}
