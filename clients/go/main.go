// Command line client for the agentic trust dispatcher.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/clients/go/trust"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	baseURL := os.Getenv("TRUST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	client := trust.NewClient(baseURL)
	if key := os.Getenv("TRUST_KEY"); key != "" {
		wallet, err := trust.NewLocalWallet(key)
		exitOnError(err)
		client.Signer = wallet
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := os.Args[1]
	switch cmd {
	case "request":
		if len(os.Args) < 5 {
			fmt.Fprintln(os.Stderr, "Usage: trust request <client-address> <agent> <comment>")
			os.Exit(1)
		}
		call(ctx, client, "feedback/request", map[string]any{
			"clientAddress": os.Args[2],
			"agent":         os.Args[3],
			"comment":       os.Args[4],
		})

	case "approve":
		if len(os.Args) < 5 {
			fmt.Fprintln(os.Stderr, "Usage: trust approve <request-id> <agent> <days>")
			os.Exit(1)
		}
		days, err := strconv.ParseInt(os.Args[4], 10, 64)
		exitOnError(err)
		call(ctx, client, "feedback/approve", map[string]any{
			"id":              os.Args[2],
			"toAgent":         os.Args[3],
			"approvedForDays": days,
		})

	case "issue-auth":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: trust issue-auth <request-id>")
			os.Exit(1)
		}
		call(ctx, client, "feedback/issue-auth", map[string]any{"id": os.Args[2]})

	case "mark-given":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: trust mark-given <request-id> <tx-hash>")
			os.Exit(1)
		}
		call(ctx, client, "feedback/mark-given", map[string]any{
			"id":     os.Args[2],
			"txHash": os.Args[3],
		})

	case "list":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: trust list <client-address>")
			os.Exit(1)
		}
		call(ctx, client, "feedback/list-by-client", map[string]any{"clientAddress": os.Args[2]})

	case "inbox":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: trust inbox <agent>")
			os.Exit(1)
		}
		call(ctx, client, "thread/list-by-agent", map[string]any{"agent": os.Args[2]})

	case "send":
		if len(os.Args) < 5 {
			fmt.Fprintln(os.Stderr, "Usage: trust send <from> <to> <body>")
			os.Exit(1)
		}
		call(ctx, client, "thread/send", map[string]any{
			"from": os.Args[2],
			"to":   os.Args[3],
			"body": os.Args[4],
		})

	case "trends":
		call(ctx, client, "stats/trends", map[string]any{})

	case "ping":
		call(ctx, client, "agent/ping", map[string]any{})

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func call(ctx context.Context, client *trust.Client, skill string, payload map[string]any) {
	res, err := client.Call(ctx, skill, payload)
	exitOnError(err)
	exitOnError(res.Err())
	printJSON(res.Body)
}

func usage() {
	fmt.Println(`trust - agentic trust dispatcher client

Usage: trust <command> [options]

Commands:
  request <client> <agent> <comment>   Create a feedback request
  approve <id> <agent> <days>          Approve a feedback request
  issue-auth <id>                      Issue the feedback authorization
  mark-given <id> <tx-hash>            Mark feedback as submitted on-chain
  list <client-address>                List a client's feedback requests
  send <from> <to> <body>              Send a thread message
  inbox <agent>                        List an agent's thread messages
  trends                               Show aggregate statistics
  ping                                 Check dispatcher liveness

Environment:
  TRUST_URL   Dispatcher URL (default: http://localhost:8080)
  TRUST_KEY   Private key for signed challenges (optional)`)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printJSON(v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
