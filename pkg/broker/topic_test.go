package broker

import (
	"testing"

	"github.com/DeBrosOfficial/subbridge/pkg/errors"
)

func TestParseTopic(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"single level", "x", false},
		{"ledger topic", "milestones/latest", false},
		{"parameterised", "messages/indexation/6869", false},
		{"single wildcard", "addresses/+/outputs", false},
		{"multi wildcard", "messages/#", false},
		{"dashes underscores", "a-b/c_d", false},
		{"empty", "", true},
		{"empty level", "a//b", true},
		{"leading slash", "/a", true},
		{"trailing slash", "a/", true},
		{"space", "a b", true},
		{"dot", "a.b", true},
		{"hash not last", "#/a", true},
		{"partial wildcard", "a+/b", true},
		{"unicode", "tópico", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topic, err := ParseTopic(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTopic(%q) err=%v wantErr=%v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.IsValidation(err) {
				t.Fatalf("expected validation error, got %T", err)
			}
			if err == nil && topic.String() != tt.in {
				t.Fatalf("round trip mismatch: %q", topic.String())
			}
		})
	}
}

func TestParseTopicTooLong(t *testing.T) {
	long := make([]byte, MaxTopicLength+1)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := ParseTopic(string(long)); err == nil {
		t.Fatalf("expected length error")
	}
}

func TestParseTopicsAllOrNothing(t *testing.T) {
	got, err := ParseTopics([]string{"x", "y", "x"})
	if err != nil {
		t.Fatalf("ParseTopics: %v", err)
	}
	if s := Strings(got); len(s) != 3 || s[0] != "x" || s[1] != "y" || s[2] != "x" {
		t.Fatalf("unexpected topics %v", s)
	}

	got, err = ParseTopics([]string{"x", "bad topic", "z"})
	if err == nil || got != nil {
		t.Fatalf("expected failure with no partial result, got %v %v", got, err)
	}
	if !errors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTopicMatches(t *testing.T) {
	tests := []struct {
		filter string
		name   string
		want   bool
	}{
		{"messages", "messages", true},
		{"messages", "messages/referenced", false},
		{"messages/#", "messages/referenced", true},
		{"messages/#", "messages", false},
		{"addresses/+/outputs", "addresses/abc/outputs", true},
		{"addresses/+/outputs", "addresses/abc/def/outputs", false},
		{"#", "anything/at/all", true},
	}
	for _, tt := range tests {
		topic, err := ParseTopic(tt.filter)
		if err != nil {
			t.Fatalf("ParseTopic(%q): %v", tt.filter, err)
		}
		if got := topic.Matches(tt.name); got != tt.want {
			t.Errorf("%q.Matches(%q)=%v want %v", tt.filter, tt.name, got, tt.want)
		}
	}
}

func TestNATSSubject(t *testing.T) {
	topic, _ := ParseTopic("addresses/+/outputs/#")
	if got := topic.NATSSubject(); got != "addresses.*.outputs.>" {
		t.Fatalf("unexpected subject %q", got)
	}
	if topicFromNATSSubject("milestones.latest") != "milestones/latest" {
		t.Fatalf("reverse mapping failed")
	}
}

func TestWellKnownTopics(t *testing.T) {
	for _, topic := range []Topic{TopicMilestonesLatest, TopicMilestonesConfirmed, TopicMessages, TopicMessagesReferenced, TopicReceipts} {
		if _, err := ParseTopic(topic.String()); err != nil {
			t.Errorf("well-known topic %q does not parse: %v", topic, err)
		}
	}
	topic, err := IndexationTopic("6869")
	if err != nil || topic.String() != "messages/indexation/6869" {
		t.Fatalf("IndexationTopic: %v %v", topic, err)
	}
	if _, err := AddressOutputsTopic(""); err == nil {
		t.Fatalf("empty address must fail")
	}
}
