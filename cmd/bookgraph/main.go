package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/rmax-ai/bookgraph/pkg/config"
	"github.com/rmax-ai/bookgraph/pkg/gateway"
)

var (
	Version   = "v0.1.0"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const usage = `Usage: bookgraph [flags] <command> [args]

Commands:
  health                          check the remote backend
  search <query>                  search the book catalogue
  add <code> <title> [author]     add a catalogue book to the graph
  graph                           list the graph's nodes
  describe <node-id> <text>       replace a node's description
  recommend                       request recommendations for the configured user
  version                         print version information
`

var errUsage = errors.New("invalid usage")

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		switch {
		case errors.Is(err, flag.ErrHelp):
			fmt.Print(usage)
			return
		case errors.Is(err, errUsage):
			fmt.Fprint(os.Stderr, usage)
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			if status, ok := gateway.StatusOf(err); ok && status == 0 {
				fmt.Fprintln(os.Stderr, "Is the bookgraph backend running?")
			}
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	cfg, rest, err := config.Parse("bookgraph", args)
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		return errUsage
	}

	gw := gateway.New(cfg.API.URL,
		gateway.WithTimeout(cfg.API.Timeout),
		gateway.WithBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.OpenTimeout),
	)

	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "health":
		status, err := gw.Health(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Backend %s: %s\n", gw.BaseURL(), status.Status)

	case "search":
		if len(cmdArgs) == 0 {
			return errUsage
		}
		items, err := gw.SearchBooks(ctx, strings.Join(cmdArgs, " "), 10)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Fprintln(out, "No books found.")
			return nil
		}
		rows := make([][]string, 0, len(items))
		for _, item := range items {
			rows = append(rows, []string{item.Code, item.Title, item.Author, item.Published})
		}
		printTable(out, []string{"CODE", "TITLE", "AUTHOR", "PUBLISHED"}, rows)

	case "add":
		if len(cmdArgs) < 2 {
			return errUsage
		}
		item := gateway.BookSearchItem{Code: cmdArgs[0], Title: cmdArgs[1], Subjects: []string{}}
		if len(cmdArgs) > 2 {
			item.Author = strings.Join(cmdArgs[2:], " ")
		}
		node, err := gw.AddBookToGraph(ctx, item)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Book Added: %s (node %s)\n", item.Title, node.ID)

	case "graph":
		g, err := gw.FetchGraph(ctx)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, g.Len())
		for _, n := range g.Nodes() {
			rows = append(rows, []string{n.ID, string(n.Kind()), n.DisplayLabel(), n.Properties.Code})
		}
		printTable(out, []string{"ID", "KIND", "LABEL", "CODE"}, rows)
		fmt.Fprintf(out, "%d nodes, %d edges\n", g.Len(), len(g.Edges()))
		for _, err := range g.Check() {
			fmt.Fprintf(out, "warning: %v\n", err)
		}

	case "describe":
		if len(cmdArgs) < 2 {
			return errUsage
		}
		nodeID := cmdArgs[0]
		g, err := gw.FetchGraph(ctx)
		if err != nil {
			return err
		}
		node, ok := g.Node(nodeID)
		if !ok {
			return fmt.Errorf("node %s not found", nodeID)
		}
		props := node.Properties.WithDescription(strings.Join(cmdArgs[1:], " "))
		if _, err := gw.UpdateNode(ctx, nodeID, node.Label, props); err != nil {
			return err
		}
		fmt.Fprintf(out, "Description Updated: %s\n", node.DisplayLabel())

	case "recommend":
		pipeline, err := cfg.Pipeline()
		if err != nil {
			return err
		}
		raw, err := gw.RequestRecommendations(ctx, cfg.User.ID, cfg.Recommendations.Limit)
		if err != nil {
			return err
		}
		recs := pipeline.Process(raw)
		if len(recs) == 0 {
			fmt.Fprintln(out, "No recommendations.")
			return nil
		}
		rows := make([][]string, 0, len(recs))
		for _, r := range recs {
			author := ""
			if r.Author != nil {
				author = *r.Author
			}
			rows = append(rows, []string{strconv.FormatFloat(r.MatchScore, 'f', 2, 64), r.Title, author, r.Reason})
		}
		printTable(out, []string{"SCORE", "TITLE", "AUTHOR", "REASON"}, rows)

	case "version":
		fmt.Fprintf(out, "bookgraph %s (commit %s, built %s)\n", Version, Commit, BuildTime)

	default:
		return errUsage
	}
	return nil
}

func printTable(out io.Writer, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(out, t.String())
}
