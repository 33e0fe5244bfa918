package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/matheus3301/wadesk/internal/config"
	"github.com/matheus3301/wadesk/internal/session"
)

func main() {
	dataDir := flag.String("data-dir", "", "data directory (default ~/.wadesk)")
	addrFlag := flag.String("addr", "", "daemon address (overrides config port)")
	jsonFlag := flag.Bool("json", false, "output raw JSON")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	addr := *addrFlag
	if addr == "" {
		paths := session.Resolve(*dataDir)
		cfg, err := config.Load(paths.ConfigFile())
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		addr = fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}

	c := &client{
		base: "http://" + addr,
		http: &http.Client{Timeout: 10 * time.Second},
		json: *jsonFlag,
	}

	switch args[0] {
	case "status":
		c.get("/session/status", printStatus)
	case "conversations":
		c.get("/conversations", printConversations)
	case "refresh":
		c.post("/conversations/refresh", nil, nil)
		fmt.Println("refresh requested")
	case "tags":
		c.get("/tags", printTags)
	case "archive":
		requireArg(args, 1, "wadeskctl archive <chat-id>")
		c.post("/conversations/"+args[1]+"/archive", nil, nil)
		fmt.Println("archived", args[1])
	case "unarchive":
		requireArg(args, 1, "wadeskctl unarchive <chat-id>")
		c.post("/conversations/"+args[1]+"/unarchive", nil, nil)
		fmt.Println("unarchived", args[1])
	case "send":
		requireArg(args, 2, "wadeskctl send <chat-id> <text>")
		c.post("/replies/send", map[string]string{"chat_id": args[1], "text": args[2]}, func(body []byte) {
			var resp struct {
				ClientMsgID string `json:"client_msg_id"`
			}
			_ = json.Unmarshal(body, &resp)
			fmt.Println("queued", resp.ClientMsgID)
		})
	case "export":
		requireArg(args, 1, "wadeskctl export <tags|notes|replies>")
		c.get("/"+args[1]+"/export", func(body []byte) { fmt.Println(string(body)) })
	case "import":
		requireArg(args, 2, "wadeskctl import <tags|notes|replies> <file>")
		cmdImport(c, args[1], args[2])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: wadeskctl [--data-dir <dir>] [--addr <host:port>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                       Show session status")
	fmt.Fprintln(os.Stderr, "  conversations                List the current conversation view")
	fmt.Fprintln(os.Stderr, "  refresh                      Trigger a snapshot rebuild")
	fmt.Fprintln(os.Stderr, "  tags                         List tags")
	fmt.Fprintln(os.Stderr, "  archive <chat-id>            Archive a conversation")
	fmt.Fprintln(os.Stderr, "  unarchive <chat-id>          Unarchive a conversation")
	fmt.Fprintln(os.Stderr, "  send <chat-id> <text>        Queue a text message")
	fmt.Fprintln(os.Stderr, "  export <tags|notes|replies>  Dump an entity kind as JSON")
	fmt.Fprintln(os.Stderr, "  import <kind> <file>         Import a JSON dump")
}

func requireArg(args []string, n int, usage string) {
	if len(args) <= n {
		fmt.Fprintln(os.Stderr, "usage:", usage)
		os.Exit(1)
	}
}

type client struct {
	base string
	http *http.Client
	json bool
}

func (c *client) get(path string, render func([]byte)) {
	resp, err := c.http.Get(c.base + path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot reach daemon: %v\n", err)
		os.Exit(1)
	}
	c.handle(resp, render)
}

func (c *client) post(path string, body any, render func([]byte)) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
	resp, err := c.http.Post(c.base+path, "application/json", &buf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot reach daemon: %v\n", err)
		os.Exit(1)
	}
	c.handle(resp, render)
}

func (c *client) handle(resp *http.Response, render func([]byte)) {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &apiErr)
		if apiErr.Error == "" {
			apiErr.Error = resp.Status
		}
		fmt.Fprintf(os.Stderr, "error: %s\n", apiErr.Error)
		os.Exit(1)
	}
	if c.json {
		fmt.Println(string(body))
		return
	}
	if render != nil {
		render(body)
	}
}

func printStatus(body []byte) {
	var resp struct {
		State string `json:"state"`
	}
	_ = json.Unmarshal(body, &resp)
	fmt.Printf("State: %s\n", resp.State)
}

func printConversations(body []byte) {
	var convs []struct {
		ChatID       string `json:"chat_id"`
		Name         string `json:"name"`
		UnreadCount  int    `json:"unread_count"`
		LastActivity int64  `json:"last_activity"`
		Archived     bool   `json:"archived"`
	}
	if err := json.Unmarshal(body, &convs); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	for _, conv := range convs {
		name := conv.Name
		if name == "" {
			name = "(no name)"
		}
		marker := " "
		if conv.UnreadCount > 0 {
			marker = "*"
		}
		suffix := ""
		if conv.Archived {
			suffix = " [archived]"
		}
		fmt.Printf("%s %-30s %s%s\n", marker, conv.ChatID, name, suffix)
	}
}

func printTags(body []byte) {
	var tags []struct {
		ID     int64  `json:"id"`
		Name   string `json:"name"`
		Color  string `json:"color"`
		System bool   `json:"is_system"`
	}
	if err := json.Unmarshal(body, &tags); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	for _, tag := range tags {
		suffix := ""
		if tag.System {
			suffix = " (system)"
		}
		fmt.Printf("%d\t%s\t%s%s\n", tag.ID, tag.Name, tag.Color, suffix)
	}
}

func cmdImport(c *client, kind, file string) {
	data, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid JSON in %s: %v\n", file, err)
		os.Exit(1)
	}
	c.post("/"+kind+"/import", payload, func(body []byte) {
		var report struct {
			Imported int `json:"imported"`
			Skipped  int `json:"skipped"`
			Failed   int `json:"failed"`
			Total    int `json:"total"`
		}
		_ = json.Unmarshal(body, &report)
		fmt.Printf("imported %d, skipped %d, failed %d (total %d)\n",
			report.Imported, report.Skipped, report.Failed, report.Total)
	})
}
