package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/starford/sowilo/internal"
	"github.com/starford/sowilo/internal/index"
	"github.com/starford/sowilo/internal/learnservice"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/vcs"
)

var errUsage = errors.New("usage")

// withComponents opens the vault for a one-shot command and closes it afterwards.
func withComponents(fn func(ctx context.Context, cmd *cli.Command, c *internal.Components) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		c, err := internal.Open(internal.WithConfig(cfg), internal.WithLogger(cliLogger(cfg)))
		if err != nil {
			return err
		}
		defer c.Close()
		return fn(ctx, cmd, c)
	}
}

func args(cmd *cli.Command, names ...string) ([]string, error) {
	if cmd.Args().Len() != len(names) {
		return nil, fmt.Errorf("%w: %s %s", errUsage, cmd.Name, strings.Join(names, " "))
	}
	return cmd.Args().Slice(), nil
}

func commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:   "serve",
			Usage:  "Run the HTTP API, SSE stream, and vault watcher",
			Action: serve,
		},
		{
			Name:   "mcp",
			Usage:  "Serve MCP tools on stdin/stdout",
			Action: serveMCP,
		},
		{
			Name:   "next",
			Usage:  "Show the node to study now",
			Action: withComponents(next),
		},
		{
			Name:      "review",
			Usage:     "Record a review",
			ArgsUsage: "<id> <again|hard|good|easy>",
			Action:    withComponents(review),
		},
		{
			Name:      "start",
			Usage:     "Mark an available node as in progress",
			ArgsUsage: "<id>",
			Action:    withComponents(transition((*learnservice.Service).Start)),
		},
		{
			Name:      "pause",
			Usage:     "Pause a node",
			ArgsUsage: "<id>",
			Action:    withComponents(transition((*learnservice.Service).Pause)),
		},
		{
			Name:      "resume",
			Usage:     "Resume a paused node",
			ArgsUsage: "<id>",
			Action:    withComponents(transition((*learnservice.Service).Resume)),
		},
		{
			Name:  "unlock",
			Usage: "Unlock nodes whose prerequisites are satisfied",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "all", Usage: "Repeat until nothing else unlocks"},
			},
			Action: withComponents(unlock),
		},
		{
			Name:      "new",
			Usage:     "Create a node",
			ArgsUsage: "<path> <title>",
			Flags: []cli.Flag{
				&cli.StringSliceFlag{Name: "prereq", Aliases: []string{"p"}, Usage: "Prerequisite node id"},
				&cli.StringSliceFlag{Name: "tag", Aliases: []string{"t"}, Usage: "Tag"},
				&cli.StringFlag{Name: "type", Usage: "concept, practice, project, or checkpoint"},
				&cli.StringFlag{Name: "summary", Usage: "One-line summary"},
			},
			Action: withComponents(create),
		},
		{
			Name:      "show",
			Usage:     "Print a node as JSON",
			ArgsUsage: "<id>",
			Action:    withComponents(show),
		},
		{
			Name:  "list",
			Usage: "List nodes",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "status", Usage: "Filter by status"},
				&cli.StringFlag{Name: "path", Usage: "Filter by path"},
				&cli.StringFlag{Name: "tag", Usage: "Filter by tag"},
				&cli.IntFlag{Name: "limit", Usage: "Maximum rows"},
			},
			Action: withComponents(list),
		},
		{
			Name:      "search",
			Usage:     "Full-text search",
			ArgsUsage: "<query>",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "limit", Value: 20, Usage: "Maximum results"},
			},
			Action: withComponents(search),
		},
		{
			Name:   "stats",
			Usage:  "Count nodes by status",
			Action: withComponents(stats),
		},
		{
			Name:      "history",
			Usage:     "Show the review log of a node",
			ArgsUsage: "<id>",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "limit", Value: 20, Usage: "Maximum entries"},
			},
			Action: withComponents(history),
		},
		{
			Name:  "snapshot",
			Usage: "Commit the vault to its local git repository",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Usage: "Commit message"},
			},
			Action: withComponents(snapshot),
		},
	}
}

func next(ctx context.Context, _ *cli.Command, c *internal.Components) error {
	rec, err := c.Service.Next(ctx)
	if err != nil {
		return err
	}
	for _, id := range rec.Unlocked {
		fmt.Printf("unlocked\t%s\n", id)
	}
	if rec.Node == nil {
		fmt.Println("nothing to study")
		return nil
	}
	fmt.Printf("%s\t%s\t%s\n", rec.Reason, rec.Node.ID, rec.Node.Title)
	return nil
}

func review(ctx context.Context, cmd *cli.Command, c *internal.Components) error {
	a, err := args(cmd, "<id>", "<rating>")
	if err != nil {
		return err
	}
	rating, err := models.ParseRating(a[1])
	if err != nil {
		return err
	}
	res, err := c.Service.Review(ctx, a[0], rating)
	if err != nil {
		return err
	}
	n := res.Node
	fmt.Printf("%s\t%s\tfamiliarity=%d\tstage=%d\tnext=%s\n",
		n.ID, n.Status, n.Familiarity, n.SRSStage, formatTime(n.NextReview))
	for _, id := range res.Unlocked {
		fmt.Printf("unlocked\t%s\n", id)
	}
	return nil
}

func transition(fn func(*learnservice.Service, context.Context, string) (*models.LearnNode, error)) func(context.Context, *cli.Command, *internal.Components) error {
	return func(ctx context.Context, cmd *cli.Command, c *internal.Components) error {
		a, err := args(cmd, "<id>")
		if err != nil {
			return err
		}
		n, err := fn(c.Service, ctx, a[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\n", n.ID, n.Status)
		return nil
	}
}

func unlock(ctx context.Context, cmd *cli.Command, c *internal.Components) error {
	changed, err := c.Service.Unlock(ctx, cmd.Bool("all"))
	if err != nil {
		return err
	}
	for _, n := range changed {
		fmt.Printf("unlocked\t%s\n", n.ID)
	}
	return nil
}

func create(ctx context.Context, cmd *cli.Command, c *internal.Components) error {
	a, err := args(cmd, "<path>", "<title>")
	if err != nil {
		return err
	}
	n, err := c.Service.Create(ctx, learnservice.CreateInput{
		Path:          a[0],
		Title:         a[1],
		Summary:       cmd.String("summary"),
		Type:          cmd.String("type"),
		Tags:          cmd.StringSlice("tag"),
		Prerequisites: cmd.StringSlice("prereq"),
	})
	if err != nil {
		return err
	}
	fmt.Printf("%s\t%s\n", n.ID, n.Status)
	return nil
}

func show(ctx context.Context, cmd *cli.Command, c *internal.Components) error {
	a, err := args(cmd, "<id>")
	if err != nil {
		return err
	}
	n, err := c.Service.Get(ctx, strings.TrimSuffix(a[0], ".md"))
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, n)
}

func list(ctx context.Context, cmd *cli.Command, c *internal.Components) error {
	rows, total, err := c.Service.List(ctx, index.ListFilter{
		Status: cmd.String("status"),
		Path:   cmd.String("path"),
		Tag:    cmd.String("tag"),
		Limit:  int(cmd.Int("limit")),
	})
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tFAM\tNEXT REVIEW\tTITLE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", r.ID, r.Status, r.Familiarity, formatTime(r.NextReview), r.Title)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if total > len(rows) {
		fmt.Printf("(%d of %d)\n", len(rows), total)
	}
	return nil
}

func search(ctx context.Context, cmd *cli.Command, c *internal.Components) error {
	if cmd.Args().Len() == 0 {
		return fmt.Errorf("%w: search <query>", errUsage)
	}
	results, err := c.Service.Search(ctx, strings.Join(cmd.Args().Slice(), " "), int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Printf("%s\t%s\t%s\n", r.ID, r.Title, r.Snippet)
	}
	return nil
}

func stats(ctx context.Context, _ *cli.Command, c *internal.Components) error {
	st, err := c.Service.Stats(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, s := range models.Statuses {
		fmt.Fprintf(tw, "%s\t%d\n", s, st.ByStatus[s])
	}
	fmt.Fprintf(tw, "due\t%d\n", st.Due)
	fmt.Fprintf(tw, "total\t%d\n", st.Total)
	return tw.Flush()
}

func history(ctx context.Context, cmd *cli.Command, c *internal.Components) error {
	a, err := args(cmd, "<id>")
	if err != nil {
		return err
	}
	rows, err := c.Service.History(ctx, a[0], int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	for _, r := range rows {
		fmt.Printf("%s\t%s\t%s\tfamiliarity=%d\tstage=%d\n",
			r.ReviewedAt.Format(time.RFC3339), r.Rating, r.Status, r.Familiarity, r.SRSStage)
	}
	return nil
}

func snapshot(ctx context.Context, cmd *cli.Command, c *internal.Components) error {
	hash, err := c.Snapshots.Snapshot(ctx, cmd.String("message"))
	if errors.Is(err, vcs.ErrNothingToCommit) {
		fmt.Println("nothing to commit")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
