package xiaohongshu

import (
	"context"

	"github.com/morezero/mcp-servers/pkg/provider"
)

// CommsProvider forwards every call to an external backend over COMMS.
type CommsProvider struct {
	client *provider.CommsClient
}

// NewCommsProvider creates a CommsProvider on top of client.
func NewCommsProvider(client *provider.CommsClient) *CommsProvider {
	return &CommsProvider{client: client}
}

// SearchNotes forwards search_notes.
func (p *CommsProvider) SearchNotes(ctx context.Context, keyword string, limit int) ([]Note, error) {
	var notes []Note
	err := p.client.Call(ctx, ActionSearchNotes, map[string]interface{}{"keyword": keyword, "limit": limit}, &notes)
	if err != nil {
		return nil, err
	}
	if notes == nil {
		notes = []Note{}
	}
	return notes, nil
}

// AnalyzeNote forwards analyze_note.
func (p *CommsProvider) AnalyzeNote(ctx context.Context, url string) (*Analysis, error) {
	var analysis Analysis
	if err := p.client.Call(ctx, ActionAnalyzeNote, map[string]interface{}{"url": url}, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

// GetComments forwards get_comments.
func (p *CommsProvider) GetComments(ctx context.Context, url string, limit int) ([]Comment, error) {
	var comments []Comment
	err := p.client.Call(ctx, ActionGetComments, map[string]interface{}{"url": url, "limit": limit}, &comments)
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []Comment{}
	}
	return comments, nil
}
