package broker

import (
	"fmt"
	"strings"

	"github.com/DeBrosOfficial/subbridge/pkg/errors"
)

// MaxTopicLength bounds the byte length of a topic.
const MaxTopicLength = 256

// Topic is a validated topic filter. Levels are separated by '/', each level
// is made of [A-Za-z0-9_-]. '+' matches exactly one level and '#' matches
// the remaining levels; both must occupy a whole level and '#' must be last.
type Topic struct {
	name string
}

// Well-known ledger event topics.
var (
	TopicMilestonesLatest    = Topic{name: "milestones/latest"}
	TopicMilestonesConfirmed = Topic{name: "milestones/confirmed"}
	TopicMessages            = Topic{name: "messages"}
	TopicMessagesReferenced  = Topic{name: "messages/referenced"}
	TopicReceipts            = Topic{name: "receipts"}
)

// ParseTopic validates s against the topic grammar.
func ParseTopic(s string) (Topic, error) {
	if s == "" {
		return Topic{}, errors.NewValidationError("topic", "topic must not be empty", s)
	}
	if len(s) > MaxTopicLength {
		return Topic{}, errors.NewValidationError("topic",
			fmt.Sprintf("topic exceeds %d bytes", MaxTopicLength), s)
	}

	levels := strings.Split(s, "/")
	for i, level := range levels {
		switch {
		case level == "":
			return Topic{}, errors.NewValidationError("topic",
				fmt.Sprintf("invalid topic %q: empty level %d", s, i), s)
		case level == "+":
		case level == "#":
			if i != len(levels)-1 {
				return Topic{}, errors.NewValidationError("topic",
					fmt.Sprintf("invalid topic %q: '#' must be the last level", s), s)
			}
		default:
			for _, r := range level {
				if !isLevelRune(r) {
					return Topic{}, errors.NewValidationError("topic",
						fmt.Sprintf("invalid topic %q: illegal character %q", s, r), s)
				}
			}
		}
	}
	return Topic{name: s}, nil
}

// ParseTopics parses every entry or none: the first invalid entry aborts.
func ParseTopics(texts []string) ([]Topic, error) {
	out := make([]Topic, 0, len(texts))
	for i, s := range texts {
		t, err := ParseTopic(s)
		if err != nil {
			return nil, errors.Wrapf(err, "topics[%d]", i)
		}
		out = append(out, t)
	}
	return out, nil
}

func isLevelRune(r rune) bool {
	return r >= 'a' && r <= 'z' ||
		r >= 'A' && r <= 'Z' ||
		r >= '0' && r <= '9' ||
		r == '_' || r == '-'
}

// String returns the topic text.
func (t Topic) String() string {
	return t.name
}

// IsZero reports whether t is the zero Topic.
func (t Topic) IsZero() bool {
	return t.name == ""
}

// HasWildcard reports whether t contains a '+' or '#' level.
func (t Topic) HasWildcard() bool {
	for _, level := range strings.Split(t.name, "/") {
		if level == "+" || level == "#" {
			return true
		}
	}
	return false
}

// Matches reports whether a concrete topic name is selected by the filter t.
func (t Topic) Matches(name string) bool {
	filter := strings.Split(t.name, "/")
	levels := strings.Split(name, "/")
	for i, f := range filter {
		if f == "#" {
			return true
		}
		if i >= len(levels) {
			return false
		}
		if f != "+" && f != levels[i] {
			return false
		}
	}
	return len(levels) == len(filter)
}

// NATSSubject maps the topic onto NATS subject syntax.
func (t Topic) NATSSubject() string {
	levels := strings.Split(t.name, "/")
	for i, level := range levels {
		switch level {
		case "+":
			levels[i] = "*"
		case "#":
			levels[i] = ">"
		}
	}
	return strings.Join(levels, ".")
}

// topicFromNATSSubject reverses NATSSubject for concrete subjects.
func topicFromNATSSubject(subject string) string {
	return strings.ReplaceAll(subject, ".", "/")
}

// Strings converts topics to their text form.
func Strings(topics []Topic) []string {
	out := make([]string, len(topics))
	for i, t := range topics {
		out[i] = t.name
	}
	return out
}

func parameterised(format, param string) (Topic, error) {
	return ParseTopic(fmt.Sprintf(format, param))
}

// IndexationTopic selects indexation messages with the given hex index.
func IndexationTopic(index string) (Topic, error) {
	return parameterised("messages/indexation/%s", index)
}

// MessageMetadataTopic selects metadata updates for one message.
func MessageMetadataTopic(messageID string) (Topic, error) {
	return parameterised("messages/%s/metadata", messageID)
}

// OutputTopic selects updates of one output.
func OutputTopic(outputID string) (Topic, error) {
	return parameterised("outputs/%s", outputID)
}

// AddressOutputsTopic selects outputs created for an address.
func AddressOutputsTopic(address string) (Topic, error) {
	return parameterised("addresses/%s/outputs", address)
}

// TransactionIncludedMessageTopic selects the message that included a transaction.
func TransactionIncludedMessageTopic(transactionID string) (Topic, error) {
	return parameterised("transactions/%s/included-message", transactionID)
}
