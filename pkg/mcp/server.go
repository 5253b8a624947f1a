package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rmax-ai/bookgraph/pkg/engine"
	"github.com/rmax-ai/bookgraph/pkg/gateway"
	"github.com/rmax-ai/bookgraph/pkg/graph"
)

// Resource URIs.
const (
	LibraryURI         = "bookgraph://library"
	GraphURI           = "bookgraph://graph"
	RecommendationsURI = "bookgraph://recommendations"
)

// Controller is the part of the engine exposed over MCP.
type Controller interface {
	Books() []graph.Book
	Graph() graph.Graph
	Recommendations() engine.RecommendationState
	RefreshGraph(ctx context.Context) (engine.LoadResult, error)
	SearchBooks(ctx context.Context, query string, maxResults int) ([]gateway.BookSearchItem, error)
	AddBook(ctx context.Context, item gateway.BookSearchItem) (graph.Node, error)
	EditNodeDescription(ctx context.Context, nodeID, text string) error
	FetchRecommendations(ctx context.Context) (engine.RecommendationState, error)
	ClearRecommendations(ctx context.Context) error
}

var _ Controller = (*engine.Controller)(nil)

// Server adapts the bookgraph controller to the Model Context Protocol.
type Server struct {
	mcpServer *server.MCPServer
	ctrl      Controller
}

// NewServer creates a new MCP server instance.
func NewServer(ctrl Controller, version string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer("bookgraph", version),
		ctrl:      ctrl,
	}
	s.registerResources()
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Resources ---

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(
		LibraryURI,
		"Library",
		mcp.WithResourceDescription("Books in the user's library with reading progress"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadLibrary)

	s.mcpServer.AddResource(mcp.NewResource(
		GraphURI,
		"Book Graph",
		mcp.WithResourceDescription("Books and themes with the links between them"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadGraph)

	s.mcpServer.AddResource(mcp.NewResource(
		RecommendationsURI,
		"Recommendations",
		mcp.WithResourceDescription("The current reading recommendations, best match first"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadRecommendations)
}

// --- Tools ---

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"search_books",
		mcp.WithDescription("Search the book catalogue. Results can be passed to add_book."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Title, author or keywords")),
		mcp.WithNumber("max_results", mcp.Description("Maximum results, 1 to 40 (default 10)")),
	), s.handleSearchBooks)

	s.mcpServer.AddTool(mcp.NewTool(
		"add_book",
		mcp.WithDescription("Add a book from search results to the graph."),
		mcp.WithString("code", mcp.Required(), mcp.Description("Catalogue code from search_books")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Book title")),
		mcp.WithString("author", mcp.Description("Author name")),
		mcp.WithString("published", mcp.Description("Publication date")),
	), s.handleAddBook)

	s.mcpServer.AddTool(mcp.NewTool(
		"edit_node_description",
		mcp.WithDescription("Replace the description of a graph node, keeping its other properties."),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node id from the graph resource")),
		mcp.WithString("description", mcp.Required(), mcp.Description("New description text")),
	), s.handleEditDescription)

	s.mcpServer.AddTool(mcp.NewTool(
		"refresh_graph",
		mcp.WithDescription("Reload the graph from the backend."),
	), s.handleRefreshGraph)

	s.mcpServer.AddTool(mcp.NewTool(
		"fetch_recommendations",
		mcp.WithDescription("Generate reading recommendations from the current graph."),
	), s.handleFetchRecommendations)

	s.mcpServer.AddTool(mcp.NewTool(
		"clear_recommendations",
		mcp.WithDescription("Discard the current and cached recommendations."),
	), s.handleClearRecommendations)
}

// --- Prompts ---

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		"bookgraph-aware",
		mcp.WithPromptDescription("Explains books, themes and recommendations in bookgraph"),
	), s.handleGetPrompt)
}

// --- Handlers ---

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleReadLibrary(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonContents(request.Params.URI, s.ctrl.Books())
}

func (s *Server) handleReadGraph(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonContents(request.Params.URI, s.ctrl.Graph().Render())
}

func (s *Server) handleReadRecommendations(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonContents(request.Params.URI, s.ctrl.Recommendations())
}

func (s *Server) handleSearchBooks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := mcp.ParseString(request, "query", "")
	maxResults := int(mcp.ParseFloat64(request, "max_results", 10))

	items, err := s.ctrl.SearchBooks(ctx, query, maxResults)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("No books found."), nil
	}

	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "- %s", item.Title)
		if item.Author != "" {
			fmt.Fprintf(&b, " by %s", item.Author)
		}
		if item.Published != "" {
			fmt.Fprintf(&b, " (%s)", item.Published)
		}
		fmt.Fprintf(&b, " [code: %s]\n", item.Code)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleAddBook(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	item := gateway.BookSearchItem{
		Code:      mcp.ParseString(request, "code", ""),
		Title:     mcp.ParseString(request, "title", ""),
		Author:    mcp.ParseString(request, "author", ""),
		Published: mcp.ParseString(request, "published", ""),
		Subjects:  []string{},
	}
	node, err := s.ctrl.AddBook(ctx, item)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("add book failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Added %q as node %s.", item.Title, node.ID)), nil
}

func (s *Server) handleEditDescription(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodeID := mcp.ParseString(request, "node_id", "")
	description := mcp.ParseString(request, "description", "")
	if err := s.ctrl.EditNodeDescription(ctx, nodeID, description); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("edit failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Updated description of node %s.", nodeID)), nil
}

func (s *Server) handleRefreshGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.ctrl.RefreshGraph(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("refresh failed: %v", err)), nil
	}
	msg := fmt.Sprintf("Graph loaded from %s: %d nodes.", res.Source, s.ctrl.Graph().Len())
	if res.Degraded {
		msg += " The backend is unreachable; this is the last cached graph."
	}
	return mcp.NewToolResultText(msg), nil
}

func (s *Server) handleFetchRecommendations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.ctrl.FetchRecommendations(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("recommendations failed: %v", err)), nil
	}
	if st.Empty {
		return mcp.NewToolResultText("No recommendations."), nil
	}
	var b strings.Builder
	for i, r := range st.Recommendations {
		fmt.Fprintf(&b, "%d. %s", i+1, r.Title)
		if r.Author != nil {
			fmt.Fprintf(&b, " by %s", *r.Author)
		}
		fmt.Fprintf(&b, " (%.0f%% match): %s\n", r.MatchScore*100, r.Reason)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleClearRecommendations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ctrl.ClearRecommendations(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("clear failed: %v", err)), nil
	}
	return mcp.NewToolResultText("Recommendations cleared."), nil
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	if name != "bookgraph-aware" {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}

	promptText := `You are helping a reader manage their book graph.

Concepts:
- Book: a node with a catalogue code. Its id in the library is that code.
- Theme: any other node, such as a mood or motif, linked to books.
- Library: the reader's books with local reading progress.
- Recommendations: suggested books with a match score between 0 and 1.

Use search_books before add_book; add_book needs the code from the search.
Read bookgraph://graph for node ids before calling edit_node_description.
`

	return mcp.NewGetPromptResult(
		"bookgraph-aware",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText)),
		},
	), nil
}
