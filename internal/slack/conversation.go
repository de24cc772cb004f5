// Package slack bridges the Slack real-time stream and Web API to the chat framework.
//
// The Connection owns one stream lifecycle: it fetches the bootstrap snapshot,
// seeds the registries and the direct channel cache, dials the stream and feeds
// every frame, in wire order, to the MessageHandler. The Adapter is the
// framework-facing facade on top of it.
package slack

import (
	"fmt"
	"sort"
	"strings"
)

// ConversationKind is what a conversation id denotes
type ConversationKind int

const (
	KindUnknown ConversationKind = iota
	KindChannel
	KindGroup
	KindMultiParty
	KindDirect
)

func (k ConversationKind) String() string {
	switch k {
	case KindChannel:
		return "channel"
	case KindGroup:
		return "group"
	case KindMultiParty:
		return "mpim"
	case KindDirect:
		return "direct"
	default:
		return "unknown"
	}
}

// DefaultConversationPrefixes maps each kind to the id prefixes Slack uses for it.
// Multi-party conversations share the group prefix, so they have none by default.
var DefaultConversationPrefixes = map[string][]string{
	"channel": {"C"},
	"group":   {"G"},
	"direct":  {"D"},
}

type prefixRule struct {
	prefix string
	kind   ConversationKind
}

// Classifier tells conversation kinds apart by id prefix. The longest matching
// prefix wins and matching ignores case.
type Classifier struct {
	rules []prefixRule
}

// NewClassifier builds a classifier from kind name to prefixes. Kinds missing
// from prefixes keep their defaults; an empty list disables a kind.
func NewClassifier(prefixes map[string][]string) (*Classifier, error) {
	merged := make(map[string][]string, len(DefaultConversationPrefixes))
	for kind, list := range DefaultConversationPrefixes {
		merged[kind] = list
	}
	for kind, list := range prefixes {
		merged[kind] = list
	}

	c := &Classifier{}
	for name, list := range merged {
		kind, err := parseKind(name)
		if err != nil {
			return nil, err
		}
		for _, prefix := range list {
			if prefix == "" {
				return nil, fmt.Errorf("empty prefix for conversation kind %s", name)
			}
			c.rules = append(c.rules, prefixRule{prefix: strings.ToUpper(prefix), kind: kind})
		}
	}

	sort.SliceStable(c.rules, func(i, j int) bool {
		if len(c.rules[i].prefix) != len(c.rules[j].prefix) {
			return len(c.rules[i].prefix) > len(c.rules[j].prefix)
		}
		return c.rules[i].prefix < c.rules[j].prefix
	})
	return c, nil
}

// DefaultClassifier classifies with DefaultConversationPrefixes
func DefaultClassifier() *Classifier {
	c, _ := NewClassifier(nil)
	return c
}

func parseKind(name string) (ConversationKind, error) {
	switch strings.ToLower(name) {
	case "channel":
		return KindChannel, nil
	case "group":
		return KindGroup, nil
	case "mpim":
		return KindMultiParty, nil
	case "direct":
		return KindDirect, nil
	default:
		return KindUnknown, fmt.Errorf("unknown conversation kind: %s", name)
	}
}

// Classify returns the kind of the conversation id
func (c *Classifier) Classify(id string) ConversationKind {
	upper := strings.ToUpper(id)
	for _, rule := range c.rules {
		if strings.HasPrefix(upper, rule.prefix) {
			return rule.kind
		}
	}
	return KindUnknown
}

// IsDirect reports whether id is a 1:1 direct channel
func (c *Classifier) IsDirect(id string) bool {
	return c.Classify(id) == KindDirect
}
