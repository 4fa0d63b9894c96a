// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the learning graph to LLM clients over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/sowilo/internal/index"
	"github.com/starford/sowilo/internal/learnservice"
	"github.com/starford/sowilo/internal/models"
)

// NodeFormatURI is the resource URI of the node format contract.
const NodeFormatURI = "sowilo://node-format"

// Server wraps the MCP server with the learning-graph tools.
type Server struct {
	mcp *server.MCPServer
	svc *learnservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *learnservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Sowilo",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("next_node",
		mcp.WithDescription("Recommend the node to study now. Due reviews come first, then new "+
			"available nodes, then nodes already in progress. Newly satisfied prerequisites are "+
			"unlocked before selecting."),
	), s.nextNode)

	s.mcp.AddTool(mcp.NewTool("review_node",
		mcp.WithDescription("Record a study session on a node and schedule its next review."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Node id (e.g. go/channels)")),
		mcp.WithString("rating", mcp.Required(), mcp.Enum("again", "hard", "good", "easy"),
			mcp.Description("How well the node was recalled")),
	), s.reviewNode)

	s.mcp.AddTool(mcp.NewTool("start_node",
		mcp.WithDescription("Mark an available node as in progress."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Node id")),
	), s.lifecycle(s.svc.Start))

	s.mcp.AddTool(mcp.NewTool("pause_node",
		mcp.WithDescription("Pause a node so it is no longer recommended."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Node id")),
	), s.lifecycle(s.svc.Pause))

	s.mcp.AddTool(mcp.NewTool("resume_node",
		mcp.WithDescription("Resume a paused node."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Node id")),
	), s.lifecycle(s.svc.Resume))

	s.mcp.AddTool(mcp.NewTool("unlock_nodes",
		mcp.WithDescription("Unlock every locked node whose prerequisites are satisfied."),
		mcp.WithBoolean("all", mcp.Description("Repeat until nothing else unlocks")),
	), s.unlockNodes)

	s.mcp.AddTool(mcp.NewTool("read_node",
		mcp.WithDescription("Read a node with its scheduling state, dependents, and backlinks."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Node id")),
	), s.readNode)

	s.mcp.AddTool(mcp.NewTool("create_node",
		mcp.WithDescription("Create a new learning node. The id is derived from path and title. "+
			"Read the contract first via the get_node_contract tool or the "+NodeFormatURI+" resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Grouping the node belongs to (e.g. go)")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Human-readable title")),
		mcp.WithString("summary", mcp.Description("One-line summary")),
		mcp.WithString("type", mcp.Description("concept, practice, project, or checkpoint")),
		mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Free-form labels")),
		mcp.WithArray("prerequisites", mcp.WithStringItems(), mcp.Description("Ids of nodes to master first")),
		mcp.WithString("body", mcp.Description("Markdown body")),
	), s.createNode)

	s.mcp.AddTool(mcp.NewTool("search_nodes",
		mcp.WithDescription("Full-text search through node titles, bodies, and tags."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNodes)

	s.mcp.AddTool(mcp.NewTool("list_nodes",
		mcp.WithDescription("List nodes, optionally filtered by status, path, or tag."),
		mcp.WithString("status", mcp.Enum(statusNames()...), mcp.Description("Filter by status")),
		mcp.WithString("path", mcp.Description("Filter by path")),
		mcp.WithString("tag", mcp.Description("Filter by tag")),
	), s.listNodes)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all nodes whose body links to the specified node."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Node id")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("get_node_contract",
		mcp.WithDescription("Returns the node file format contract. "+
			"Call this before creating nodes or editing node files."),
	), s.getNodeContract)

	s.mcp.AddResource(
		mcp.NewResource(NodeFormatURI, "Node Format Contract",
			mcp.WithResourceDescription("Markdown + frontmatter format every node file follows."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNodeFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func statusNames() []string {
	out := make([]string, len(models.Statuses))
	for i, st := range models.Statuses {
		out[i] = st.String()
	}
	return out
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) nextNode(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rec, err := s.svc.Next(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if rec.Node == nil {
		return mcp.NewToolResultText("nothing to study: every node is locked, mastered, or paused"), nil
	}
	return jsonResult(rec)
}

func (s *Server) reviewNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("rating")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rating, err := models.ParseRating(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Review(ctx, id, rating)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) lifecycle(fn func(context.Context, string) (*models.LearnNode, error)) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		n, err := fn(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("%s: %s", n.ID, n.Status)), nil
	}
}

func (s *Server) unlockNodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	changed, err := s.svc.Unlock(ctx, req.GetBool("all", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(changed) == 0 {
		return mcp.NewToolResultText("no nodes unlocked"), nil
	}
	ids := make([]string, len(changed))
	for i, n := range changed {
		ids[i] = n.ID
	}
	return mcp.NewToolResultText("unlocked:\n" + strings.Join(ids, "\n")), nil
}

func (s *Server) readNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.Get(ctx, strings.TrimSuffix(id, ".md"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(n)
}

func (s *Server) createNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.Create(ctx, learnservice.CreateInput{
		Path:          path,
		Title:         title,
		Summary:       req.GetString("summary", ""),
		Type:          req.GetString("type", ""),
		Tags:          req.GetStringSlice("tags", nil),
		Prerequisites: req.GetStringSlice("prerequisites", nil),
		Body:          req.GetString("body", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (%s)", n.ID, n.Status)), nil
}

func (s *Server) searchNodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) listNodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rows, _, err := s.svc.List(ctx, index.ListFilter{
		Status: req.GetString("status", ""),
		Path:   req.GetString("path", ""),
		Tag:    req.GetString("tag", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = fmt.Sprintf("%s\t%s\t%s", r.ID, r.Status, r.Title)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(n.Backlinks) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(n.Backlinks, "\n")), nil
}

func (s *Server) getNodeContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NodeFormatContract), nil
}

func (s *Server) readNodeFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      NodeFormatURI,
			MIMEType: "text/markdown",
			Text:     NodeFormatContract,
		},
	}, nil
}
