// Package main is the entrypoint for the mcp-server binary.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/Masterminds/semver/v3"

	"github.com/morezero/mcp-servers/internal/config"
	"github.com/morezero/mcp-servers/internal/server"
	"github.com/morezero/mcp-servers/pkg/heartbeat"
)

const usage = `Usage: mcp-server [command]
       mcp-server serve            Start the MCP service (HTTP, SSE, optional COMMS).
       mcp-server actions [kind]   List the actions of a service kind (default SERVICE_KIND).
       mcp-server version          Print the service version.

Commands:
  serve           (default) Start the service selected by SERVICE_KIND (xiaohongshu, template).
  actions [kind]  Print action name, mode, required fields and HTTP route.
  version         Print SERVICE_VERSION and its major version.

Environment: HOST, PORT, DEBUG, SERVICE_KIND, SERVICE_NAME, SERVICE_VERSION, HEARTBEAT_INTERVAL,
REQUEST_TIMEOUT, COMMS_URL, PROVIDER (mock, comms), PROVIDER_SUBJECT, RATE_LIMIT_RPS,
RATE_LIMIT_BURST, CORS_ALLOWED_ORIGINS, LOG_LEVEL.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "actions":
		kind := ""
		if len(args) > 1 {
			kind = args[1]
		}
		if err := runActions(os.Stdout, kind); err != nil {
			log.Fatalf("mcp-server actions: %v", err)
		}
		return
	case "version":
		if err := runVersion(os.Stdout); err != nil {
			log.Fatalf("mcp-server version: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
		// serve (explicit or default)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("mcp-server: %v", err)
	}
}

// runActions prints the capabilities of kind, or of SERVICE_KIND when kind is empty.
// Actions are always listed against the mock provider; no COMMS connection is made.
func runActions(w io.Writer, kind string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if kind != "" {
		cfg.ServiceKind = strings.ToLower(kind)
	}
	cfg.Provider = config.ProviderMock

	reg, routes, err := server.BuildRegistry(cfg, nil, heartbeat.NewClock())
	if err != nil {
		return err
	}
	paths := make(map[string]string, len(routes))
	for _, r := range routes {
		paths[r.Action] = r.Path
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ACTION\tMODE\tREQUIRED\tROUTE\tDESCRIPTION")
	for _, c := range reg.Capabilities() {
		required := strings.Join(c.Required, ",")
		if required == "" {
			required = "-"
		}
		route, ok := paths[c.Name]
		if !ok {
			route = "/actions/" + c.Name
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\tPOST %s\t%s\n", c.Name, c.Mode, required, route, c.Description)
	}
	return tw.Flush()
}

// runVersion prints the configured service version.
func runVersion(w io.Writer) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	v, err := semver.StrictNewVersion(cfg.ServiceVersion)
	if err != nil {
		return fmt.Errorf("SERVICE_VERSION %q: %w", cfg.ServiceVersion, err)
	}
	_, err = fmt.Fprintf(w, "%s %s (major %d)\n", cfg.ServiceName, v.String(), v.Major())
	return err
}
