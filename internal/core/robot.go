package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/keepmind9/slackline/internal/chat"
	"github.com/keepmind9/slackline/internal/logger"
	"github.com/keepmind9/slackline/pkg/constants"
)

// builtinCommands are answered by the robot itself when it is addressed
var builtinCommands = map[string]struct{}{
	"help":   {},
	"whoami": {},
	"roster": {},
	"topic":  {},
}

// parseBuiltin checks if input is a builtin command and splits off its argument
func parseBuiltin(input string) (string, bool, string) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return "", false, ""
	}
	cmd := fields[0]
	if _, exists := builtinCommands[cmd]; !exists {
		return "", false, ""
	}
	args := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(input), cmd))
	return cmd, true, args
}

// ErrNoAdapter is returned by Run when no adapter has been attached
var ErrNoAdapter = errors.New("robot has no adapter")

// Handler answers a message matched by a route
type Handler func(ctx context.Context, resp *Response)

// Listener is called with the payload of a triggered event
type Listener func(payload any)

// Route maps a pattern to a handler. Command routes only see messages
// addressed to the robot.
type Route struct {
	Pattern *regexp.Regexp
	Command bool
	Help    string
	Handler Handler
}

// Response is handed to a route handler
type Response struct {
	Message *chat.Message
	Matches []string
	robot   *Robot
}

// Reply sends strings back to where the message came from
func (r *Response) Reply(ctx context.Context, strings ...string) error {
	return r.robot.Send(ctx, r.Message.Source, strings...)
}

// Robot is the host the Slack adapter delivers to
type Robot struct {
	config  *Config
	adapter chat.Adapter

	identityMu  sync.RWMutex
	name        string
	mentionName string

	mu        sync.RWMutex
	routes    []Route
	listeners map[string][]Listener

	messageChan chan *chat.Message
	ctx         context.Context
	cancel      context.CancelFunc
}

var _ chat.Robot = (*Robot)(nil)

// NewRobot creates a robot named after the configuration
func NewRobot(config *Config) *Robot {
	ctx, cancel := context.WithCancel(context.Background())
	return &Robot{
		config:      config,
		name:        config.Robot.Name,
		mentionName: config.Robot.MentionName,
		listeners:   make(map[string][]Listener),
		messageChan: make(chan *chat.Message, constants.MessageChannelBufferSize),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetAdapter attaches the adapter the robot runs and replies through
func (r *Robot) SetAdapter(adapter chat.Adapter) {
	r.adapter = adapter
}

// Name returns the robot's display name
func (r *Robot) Name() string {
	r.identityMu.RLock()
	defer r.identityMu.RUnlock()
	return r.name
}

// MentionName returns the handle users address the robot with
func (r *Robot) MentionName() string {
	r.identityMu.RLock()
	defer r.identityMu.RUnlock()
	return r.mentionName
}

// SetIdentity records the name and handle Slack reports for the robot
func (r *Robot) SetIdentity(name, mentionName string) {
	r.identityMu.Lock()
	r.name = name
	r.mentionName = mentionName
	r.identityMu.Unlock()

	logger.WithFields(logrus.Fields{
		"name":         name,
		"mention_name": mentionName,
	}).Info("robot-identity-updated")
}

// Route registers a handler for messages matching pattern
func (r *Robot) Route(pattern string, command bool, help string, handler Handler) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid route pattern %q: %w", pattern, err)
	}
	r.mu.Lock()
	r.routes = append(r.routes, Route{Pattern: re, Command: command, Help: help, Handler: handler})
	r.mu.Unlock()
	return nil
}

// RegisterEcho adds the route that repeats every message back to its source
func (r *Robot) RegisterEcho() {
	_ = r.Route(`(?is)(.+)`, false, "", func(ctx context.Context, resp *Response) {
		if err := resp.Reply(ctx, resp.Matches[1]); err != nil {
			logger.WithField("error", err).Warn("failed-to-echo-message")
		}
	})
}

// On registers a listener for event
func (r *Robot) On(event string, listener Listener) {
	r.mu.Lock()
	r.listeners[event] = append(r.listeners[event], listener)
	r.mu.Unlock()
}

// Trigger runs every listener registered for event
func (r *Robot) Trigger(event string, payload any) {
	r.mu.RLock()
	listeners := append([]Listener(nil), r.listeners[event]...)
	r.mu.RUnlock()

	logger.WithFields(logrus.Fields{
		"event":     event,
		"listeners": len(listeners),
	}).Debug("event-triggered")

	for _, listener := range listeners {
		r.notify(event, listener, payload)
	}
}

func (r *Robot) notify(event string, listener Listener, payload any) {
	defer func() {
		if p := recover(); p != nil {
			logger.WithFields(logrus.Fields{
				"event": event,
				"panic": p,
			}).Error("event-listener-panic-recovered")
		}
	}()
	listener(payload)
}

// Receive queues an inbound message for the event loop
func (r *Robot) Receive(msg *chat.Message) {
	select {
	case r.messageChan <- msg:
	case <-r.ctx.Done():
		logger.Debug("robot-stopped-dropping-message")
	}
}

// Run connects the adapter and processes messages until ctx is cancelled,
// Stop is called or the adapter disconnects
func (r *Robot) Run(ctx context.Context) error {
	if r.adapter == nil {
		return ErrNoAdapter
	}
	logger.Info("starting-slackline-robot")

	if err := r.adapter.Run(ctx); err != nil {
		return fmt.Errorf("failed to connect adapter: %w", err)
	}

	r.runEventLoop(ctx)
	return nil
}

// runEventLoop runs the main event loop for processing messages
func (r *Robot) runEventLoop(ctx context.Context) {
	logger.Info("robot-event-loop-started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("event-loop-shutting-down")
			return
		case <-r.ctx.Done():
			logger.Info("event-loop-shutting-down")
			return
		case <-r.adapter.Done():
			r.drain(ctx)
			logger.Info("adapter-done-event-loop-exiting")
			return
		case msg := <-r.messageChan:
			r.HandleMessage(ctx, msg)
		}
	}
}

// drain handles messages the adapter queued before it went down
func (r *Robot) drain(ctx context.Context) {
	for {
		select {
		case msg := <-r.messageChan:
			r.HandleMessage(ctx, msg)
		default:
			return
		}
	}
}

// HandleMessage processes a message from a user
func (r *Robot) HandleMessage(ctx context.Context, msg *chat.Message) {
	if msg == nil || msg.Source.User == nil {
		return
	}
	user := msg.Source.User
	if r.isOwn(user) {
		logger.WithField("user", user.ID).Debug("ignoring-own-message")
		return
	}

	if body, ok := r.stripMention(msg.Body); ok {
		msg.Body = body
		msg.Command = true
	}

	logger.WithFields(logrus.Fields{
		"user":    user.ID,
		"room":    msg.Source.Room,
		"command": msg.Command,
	}).Info("processing-user-message")

	// Security check - verify user is in whitelist
	if !r.config.IsUserAuthorized(user.ID) {
		logger.WithField("user", user.ID).Warn("unauthorized-access-attempt")
		if msg.Command {
			r.reply(ctx, msg, "❌ Unauthorized: Please contact the administrator to add your user ID")
		}
		return
	}

	if msg.Command {
		if cmd, ok, args := parseBuiltin(msg.Body); ok {
			logger.WithFields(logrus.Fields{
				"command": cmd,
				"user":    user.ID,
			}).Info("builtin-command-received")
			r.handleBuiltin(ctx, cmd, args, msg)
			return
		}
	}

	r.dispatch(ctx, msg)
}

func (r *Robot) isOwn(user *chat.User) bool {
	mention := r.MentionName()
	return mention != "" && strings.EqualFold(user.MentionName, mention)
}

// stripMention removes a leading "@name", "name:" or "name," address
func (r *Robot) stripMention(body string) (string, bool) {
	mention := r.MentionName()
	if mention == "" {
		return body, false
	}
	re := regexp.MustCompile(`(?i)^\s*@?` + regexp.QuoteMeta(mention) + `[:,]?(\s+|$)`)
	loc := re.FindStringIndex(body)
	if loc == nil {
		return body, false
	}
	return body[loc[1]:], true
}

func (r *Robot) dispatch(ctx context.Context, msg *chat.Message) {
	r.mu.RLock()
	routes := append([]Route(nil), r.routes...)
	r.mu.RUnlock()

	for _, route := range routes {
		if route.Command && !msg.Command {
			continue
		}
		matches := route.Pattern.FindStringSubmatch(msg.Body)
		if matches == nil {
			continue
		}
		logger.WithField("pattern", route.Pattern.String()).Debug("route-matched")
		r.runHandler(ctx, route, &Response{Message: msg, Matches: matches, robot: r})
	}
}

func (r *Robot) runHandler(ctx context.Context, route Route, resp *Response) {
	defer func() {
		if p := recover(); p != nil {
			logger.WithFields(logrus.Fields{
				"pattern": route.Pattern.String(),
				"panic":   p,
			}).Error("route-handler-panic-recovered")
		}
	}()
	route.Handler(ctx, resp)
}

// Send delivers strings to target through the adapter
func (r *Robot) Send(ctx context.Context, target chat.Source, strings ...string) error {
	if r.adapter == nil {
		return ErrNoAdapter
	}
	return r.adapter.SendMessages(ctx, target, strings)
}

func (r *Robot) reply(ctx context.Context, msg *chat.Message, text string) {
	if err := r.Send(ctx, msg.Source, text); err != nil {
		logger.WithFields(logrus.Fields{
			"room":  msg.Source.Room,
			"error": err,
		}).Error("failed-to-send-reply")
	}
}

// handleBuiltin handles builtin commands with their argument string
func (r *Robot) handleBuiltin(ctx context.Context, command, args string, msg *chat.Message) {
	if r.adapter == nil {
		return
	}
	switch command {
	case "help":
		r.showHelp(ctx, msg)
	case "whoami":
		r.showWhoami(ctx, msg)
	case "roster":
		r.showRoster(ctx, msg)
	case "topic":
		r.setTopic(ctx, args, msg)
	}
}

// showHelp lists builtin commands and the help of registered routes
func (r *Robot) showHelp(ctx context.Context, msg *chat.Message) {
	var b strings.Builder
	b.WriteString("📖 *slackline Help*\n\n")
	b.WriteString("*Commands* (mention me or send a direct message):\n")
	b.WriteString("  help          - Show this help message\n")
	b.WriteString("  whoami        - Show your Slack user info (for whitelist config)\n")
	b.WriteString("  roster        - List the members of this room\n")
	b.WriteString("  topic <text>  - Set the topic of this room\n")

	r.mu.RLock()
	for _, route := range r.routes {
		if route.Help != "" {
			fmt.Fprintf(&b, "  %s\n", route.Help)
		}
	}
	r.mu.RUnlock()

	r.reply(ctx, msg, strings.TrimRight(b.String(), "\n"))
}

// showWhoami returns the user's Slack information to help with whitelist configuration
func (r *Robot) showWhoami(ctx context.Context, msg *chat.Message) {
	user := msg.Source.User
	room := "direct message"
	if msg.Source.Room != "" && !msg.Source.PrivateMessage {
		room = fmt.Sprintf("`%s`", msg.Source.Room)
	}
	response := fmt.Sprintf("🔍 *Your Slack Information*\n\n"+
		"*User ID:* `%s` (Use this for whitelist)\n"+
		"*Name:* %s\n"+
		"*Mention:* %s\n"+
		"*Room:* %s",
		user.ID, user.Name, r.adapter.MentionFormat(user.MentionName), room)
	r.reply(ctx, msg, response)
}

// showRoster lists the user ids in the message's room
func (r *Robot) showRoster(ctx context.Context, msg *chat.Message) {
	room := msg.Source.Room
	if room == "" {
		r.reply(ctx, msg, "❌ roster needs a room")
		return
	}
	members, err := r.adapter.Roster(ctx, room)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"room":  room,
			"error": err,
		}).Error("failed-to-load-roster")
		r.reply(ctx, msg, fmt.Sprintf("❌ Failed to load roster: %v", err))
		return
	}
	if len(members) == 0 {
		r.reply(ctx, msg, "No members found")
		return
	}
	r.reply(ctx, msg, fmt.Sprintf("👥 %d members: %s", len(members), strings.Join(members, ", ")))
}

// setTopic changes the topic of the message's room (admin only when admins are configured)
func (r *Robot) setTopic(ctx context.Context, topic string, msg *chat.Message) {
	if topic == "" {
		r.reply(ctx, msg, "❌ Usage: topic <text>")
		return
	}
	if len(r.config.Security.Admins) > 0 && !r.config.IsAdmin(msg.Source.User.ID) {
		r.reply(ctx, msg, "❌ Permission denied: admin only")
		return
	}
	if err := r.adapter.SetTopic(ctx, msg.Source, topic); err != nil {
		logger.WithFields(logrus.Fields{
			"room":  msg.Source.Room,
			"error": err,
		}).Error("failed-to-set-topic")
		r.reply(ctx, msg, fmt.Sprintf("❌ Failed to set topic: %v", err))
	}
}

// Stop gracefully stops the robot and closes the adapter
func (r *Robot) Stop() {
	logger.Info("stopping-slackline-robot")

	// Cancel context to stop event loop
	if r.cancel != nil {
		r.cancel()
	}
	if r.adapter != nil {
		r.adapter.ShutDown()
	}
}
