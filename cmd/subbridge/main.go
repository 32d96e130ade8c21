package main

import (
	"fmt"
	"os"
	"time"

	"github.com/DeBrosOfficial/subbridge/pkg/cli"
)

var (
	timeout = 30 * time.Second
	format  = "table"
)

// version metadata populated via -ldflags at build time
var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	if len(os.Args) < 2 {
		showHelp()
		return
	}

	command := os.Args[1]
	args := parseGlobalFlags(os.Args[2:])

	switch command {
	case "version":
		fmt.Printf("subbridge %s", version)
		if commit != "" {
			fmt.Printf(" (commit %s)", commit)
		}
		if date != "" {
			fmt.Printf(" built %s", date)
		}
		fmt.Println()
		return

	case "topics":
		cli.HandleTopicsCommand(args, format)

	case "listen":
		cli.HandleListenCommand(args, format, timeout)

	case "watch":
		cli.HandleWatchCommand(args, timeout)

	// Help
	case "help", "--help", "-h":
		showHelp()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		showHelp()
		os.Exit(1)
	}
}

// parseGlobalFlags consumes the global flags and returns the remaining
// arguments for the command.
func parseGlobalFlags(args []string) []string {
	rest := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-f", "--format":
			if i+1 < len(args) {
				format = args[i+1]
				i++
			}
		case "-t", "--timeout":
			if i+1 < len(args) {
				if d, err := time.ParseDuration(args[i+1]); err == nil {
					timeout = d
				}
				i++
			}
		default:
			rest = append(rest, args[i])
		}
	}
	return rest
}

func showHelp() {
	fmt.Printf("subbridge - Topic subscription bridge for ledger event brokers\n\n")
	fmt.Printf("Usage: subbridge <command> [args...]\n\n")

	fmt.Printf("🏷️  Topics:\n")
	fmt.Printf("  topics validate <topic>...    - Check topics against the topic grammar\n")
	fmt.Printf("  topics list                   - List well-known event topics\n")
	fmt.Printf("  topics build <kind> <value>   - Render a parameterised topic\n")
	fmt.Printf("                                  (indexation, metadata, output, address, transaction)\n\n")

	fmt.Printf("📡 Subscriptions:\n")
	fmt.Printf("  listen [flags]                - Subscribe and print events\n")
	fmt.Printf("  watch [flags]                 - Subscribe and show events full-screen\n\n")

	fmt.Printf("Subscription Flags:\n")
	fmt.Printf("  --node <url>                  - Node URL (repeatable)\n")
	fmt.Printf("  --topic <topic>               - Topic to subscribe (repeatable)\n")
	fmt.Printf("  --broker-options <json>       - Broker options, e.g. {\"transport\":\"nats\"}\n")
	fmt.Printf("  --count <n>                   - Stop after n events (default: unlimited)\n\n")

	fmt.Printf("Global Flags:\n")
	fmt.Printf("  -f, --format <format>         - Output format: table, json (default: table)\n")
	fmt.Printf("  -t, --timeout <duration>      - Connect/subscribe timeout (default: 30s)\n\n")

	fmt.Printf("Examples:\n")
	fmt.Printf("  # Follow confirmed milestones over MQTT\n")
	fmt.Printf("  subbridge listen --node https://node.example:14265 --topic milestones/confirmed\n\n")

	fmt.Printf("  # Watch every output of an address over NATS\n")
	fmt.Printf("  subbridge watch --node nats://broker.example --topic \"$(subbridge topics build address abc123)\" \\\n")
	fmt.Printf("    --broker-options '{\"transport\":\"nats\"}'\n\n")

	fmt.Printf("  # Validate topics as JSON\n")
	fmt.Printf("  subbridge topics validate -f json messages \"outputs/+\"\n")
}
