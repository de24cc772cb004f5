package api

// UserRecord is a Slack user (or bot) as it appears in the snapshot and in events
type UserRecord struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	RealName string         `json:"real_name"`
	IsBot    bool           `json:"is_bot"`
	Deleted  bool           `json:"deleted"`
	Profile  map[string]any `json:"profile"`
}

// DisplayName is the real name, or the handle when no real name is set
func (u UserRecord) DisplayName() string {
	if u.RealName != "" {
		return u.RealName
	}
	return u.Name
}

// ChannelRecord is a Slack channel or private group
type ChannelRecord struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Created int64  `json:"created"`
	Creator string `json:"creator"`
}

// IMRecord maps a direct channel to the peer user
type IMRecord struct {
	ID   string `json:"id"`
	User string `json:"user"`
}

// SelfRecord is the bot's own identity
type SelfRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Snapshot is the bootstrap payload of one stream lifecycle
type Snapshot struct {
	URL      string
	Self     SelfRecord
	Users    []UserRecord
	IMs      []IMRecord
	Channels []ChannelRecord
}

type rtmStartResponse struct {
	URL      string          `json:"url"`
	Self     SelfRecord      `json:"self"`
	Users    []UserRecord    `json:"users"`
	IMs      []IMRecord      `json:"ims"`
	Channels []ChannelRecord `json:"channels"`
	Groups   []ChannelRecord `json:"groups"`
}

// IMOpenResponse is the result of opening a direct channel
type IMOpenResponse struct {
	ID string
}

type imOpenResponse struct {
	Channel struct {
		ID string `json:"id"`
	} `json:"channel"`
}

type membersResponse struct {
	Channel struct {
		Members []string `json:"members"`
	} `json:"channel"`
	Group struct {
		Members []string `json:"members"`
	} `json:"group"`
}

type mpimListResponse struct {
	Groups []struct {
		ID      string   `json:"id"`
		Members []string `json:"members"`
	} `json:"groups"`
}

type imListResponse struct {
	IMs []IMRecord `json:"ims"`
}

type topicResponse struct {
	Topic string `json:"topic"`
}
