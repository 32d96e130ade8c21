package cli

import (
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"

	"github.com/DeBrosOfficial/subbridge/pkg/broker"
	"github.com/DeBrosOfficial/subbridge/pkg/errors"
)

// TopicCheck is the validation outcome for one topic.
type TopicCheck struct {
	Topic    string `json:"topic"`
	Valid    bool   `json:"valid"`
	Wildcard bool   `json:"wildcard,omitempty"`
	Error    string `json:"error,omitempty"`
}

// CheckTopics validates each topic independently.
func CheckTopics(texts []string) []TopicCheck {
	out := make([]TopicCheck, len(texts))
	for i, s := range texts {
		t, err := broker.ParseTopic(s)
		if err != nil {
			out[i] = TopicCheck{Topic: s, Error: errors.GetErrorMessage(err)}
			continue
		}
		out[i] = TopicCheck{Topic: s, Valid: true, Wildcard: t.HasWildcard()}
	}
	return out
}

var topicBuilders = map[string]func(string) (broker.Topic, error){
	"indexation":  broker.IndexationTopic,
	"metadata":    broker.MessageMetadataTopic,
	"output":      broker.OutputTopic,
	"address":     broker.AddressOutputsTopic,
	"transaction": broker.TransactionIncludedMessageTopic,
}

// HandleTopicsCommand handles topic commands
func HandleTopicsCommand(args []string, format string) {
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "Usage: subbridge topics <validate|list|build> [args...]\n")
		os.Exit(1)
	}

	switch args[0] {
	case "validate":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "Usage: subbridge topics validate <topic>...\n")
			os.Exit(1)
		}
		checks := CheckTopics(args[1:])
		printTopicChecks(os.Stdout, checks, format)
		for _, c := range checks {
			if !c.Valid {
				os.Exit(1)
			}
		}

	case "list":
		for _, t := range []broker.Topic{
			broker.TopicMilestonesLatest,
			broker.TopicMilestonesConfirmed,
			broker.TopicMessages,
			broker.TopicMessagesReferenced,
			broker.TopicReceipts,
		} {
			fmt.Println(t)
		}

	case "build":
		if len(args) < 3 {
			fmt.Fprintf(os.Stderr, "Usage: subbridge topics build <indexation|metadata|output|address|transaction> <value>\n")
			os.Exit(1)
		}
		t, err := BuildTopic(args[1], args[2])
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
			os.Exit(1)
		}
		fmt.Println(t)

	default:
		fmt.Fprintf(os.Stderr, "Unknown topics command: %s\n", args[0])
		os.Exit(1)
	}
}

// BuildTopic renders a parameterised topic of the given kind.
func BuildTopic(kind, value string) (broker.Topic, error) {
	build, ok := topicBuilders[kind]
	if !ok {
		return broker.Topic{}, fmt.Errorf("unknown topic kind %q", kind)
	}
	return build(value)
}

func printTopicChecks(w io.Writer, checks []TopicCheck, format string) {
	if format == "json" {
		data, err := json.MarshalIndent(checks, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to marshal JSON: %v\n", err)
			return
		}
		fmt.Fprintln(w, string(data))
		return
	}
	for _, c := range checks {
		switch {
		case !c.Valid:
			fmt.Fprintf(w, "❌ %s: %s\n", c.Topic, c.Error)
		case c.Wildcard:
			fmt.Fprintf(w, "✅ %s (wildcard)\n", c.Topic)
		default:
			fmt.Fprintf(w, "✅ %s\n", c.Topic)
		}
	}
}
