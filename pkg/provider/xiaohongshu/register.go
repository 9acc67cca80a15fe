package xiaohongshu

import (
	"context"

	"github.com/morezero/mcp-servers/pkg/provider"
	"github.com/morezero/mcp-servers/pkg/registry"
)

// Routes lists the service-specific POST endpoints.
var Routes = []provider.Route{
	{Path: "/search", Action: ActionSearchNotes},
	{Path: "/analyze", Action: ActionAnalyzeNote},
	{Path: "/comments", Action: ActionGetComments},
}

// Register binds the three capabilities of p into reg.
func Register(reg *registry.Registry, p Provider) error {
	caps := []registry.Capability{
		{
			Name:        ActionSearchNotes,
			Description: "Search notes by keyword",
			Mode:        registry.ModeSuspending,
			Required:    []string{"keyword"},
			Defaults:    map[string]interface{}{"limit": DefaultSearchLimit},
			Handler: func(ctx context.Context, args registry.Args) (interface{}, error) {
				keyword, err := args.String("keyword", "")
				if err != nil {
					return nil, err
				}
				limit, err := args.Int("limit", DefaultSearchLimit)
				if err != nil {
					return nil, err
				}
				return p.SearchNotes(ctx, keyword, limit)
			},
		},
		{
			Name:        ActionAnalyzeNote,
			Description: "Analyze a single note",
			Mode:        registry.ModeSuspending,
			Required:    []string{"url"},
			Handler: func(ctx context.Context, args registry.Args) (interface{}, error) {
				url, err := args.String("url", "")
				if err != nil {
					return nil, err
				}
				return p.AnalyzeNote(ctx, url)
			},
		},
		{
			Name:        ActionGetComments,
			Description: "Fetch comments of a note",
			Mode:        registry.ModeSuspending,
			Required:    []string{"url"},
			Defaults:    map[string]interface{}{"limit": DefaultCommentsLimit},
			Handler: func(ctx context.Context, args registry.Args) (interface{}, error) {
				url, err := args.String("url", "")
				if err != nil {
					return nil, err
				}
				limit, err := args.Int("limit", DefaultCommentsLimit)
				if err != nil {
					return nil, err
				}
				return p.GetComments(ctx, url, limit)
			},
		},
	}

	for _, c := range caps {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
