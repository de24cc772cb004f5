package slack

import (
	"context"
	"fmt"
	"sync"

	"github.com/keepmind9/slackline/internal/logger"
	"github.com/keepmind9/slackline/internal/slack/api"
	"github.com/keepmind9/slackline/pkg/constants"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// DirectChannelOpener opens a direct channel with a user
type DirectChannelOpener interface {
	IMOpen(ctx context.Context, userID string) (*api.IMOpenResponse, error)
}

// DirectChannelCache maps user ids to the direct channel used to message them.
// Misses are resolved through the Web API and memoized for the rest of the
// stream lifecycle; concurrent misses for one user share a single call.
type DirectChannelCache struct {
	opener DirectChannelOpener

	mu    sync.RWMutex
	ims   map[string]string
	group singleflight.Group
}

// NewDirectChannelCache creates an empty cache
func NewDirectChannelCache(opener DirectChannelOpener) *DirectChannelCache {
	return &DirectChannelCache{
		opener: opener,
		ims:    make(map[string]string),
	}
}

// AddMapping records the direct channel of userID
func (c *DirectChannelCache) AddMapping(userID, channelID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ims[userID] = channelID
}

// AddMappings records the direct channels of a snapshot
func (c *DirectChannelCache) AddMappings(ims []api.IMRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, im := range ims {
		if im.User == "" || im.ID == "" {
			continue
		}
		c.ims[im.User] = im.ID
	}
}

// Reset drops every mapping
func (c *DirectChannelCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ims = make(map[string]string)
}

// Len returns the number of cached mappings
func (c *DirectChannelCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ims)
}

func (c *DirectChannelCache) lookup(userID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.ims[userID]
	return id, ok
}

// ImFor returns the direct channel of userID, opening it on a miss
func (c *DirectChannelCache) ImFor(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("direct channel lookup requires a user id")
	}
	if id, ok := c.lookup(userID); ok {
		return id, nil
	}

	// The shared call outlives any one caller; each caller only stops waiting
	// on its own cancellation.
	ch := c.group.DoChan(userID, func() (any, error) {
		if id, ok := c.lookup(userID); ok {
			return id, nil
		}

		openCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DefaultHTTPTimeout)
		defer cancel()

		logger.WithField("user_id", userID).Debug("opening-direct-channel")
		resp, err := c.opener.IMOpen(openCtx, userID)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"user_id": userID,
				"error":   err,
			}).Warn("failed-to-open-direct-channel")
			return "", err
		}

		c.AddMapping(userID, resp.ID)
		return resp.ID, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return "", fmt.Errorf("failed to open direct channel for %s: %w", userID, ctx.Err())
	}
	if res.Err != nil {
		return "", fmt.Errorf("failed to open direct channel for %s: %w", userID, res.Err)
	}
	return res.Val.(string), nil
}
