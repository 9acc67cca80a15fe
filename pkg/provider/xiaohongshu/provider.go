// Package xiaohongshu exposes the Xiaohongshu (Redbook) content capabilities:
// note search, note analysis and comment retrieval.
package xiaohongshu

import "context"

// Service is the service identifier carried in every envelope.
const Service = "xiaohongshu"

// Action names.
const (
	ActionSearchNotes = "search_notes"
	ActionAnalyzeNote = "analyze_note"
	ActionGetComments = "get_comments"
)

// Default limits applied when a request omits them.
const (
	DefaultSearchLimit   = 10
	DefaultCommentsLimit = 50
)

// Note is a search hit.
type Note struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Author      string `json:"author"`
	Likes       int    `json:"likes"`
	Description string `json:"description"`
}

// Author describes the creator of an analyzed note.
type Author struct {
	Name      string `json:"name"`
	Followers int    `json:"followers"`
}

// Analysis is the detailed view of a single note.
type Analysis struct {
	URL      string   `json:"url"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Tags     []string `json:"tags"`
	Likes    int      `json:"likes"`
	Comments int      `json:"comments"`
	Shares   int      `json:"shares"`
	Author   Author   `json:"author"`
}

// Comment is a single comment on a note.
type Comment struct {
	Author  string `json:"author"`
	Content string `json:"content"`
	Likes   int    `json:"likes"`
	Time    string `json:"time"`
}

// Provider is the backend contract for the xiaohongshu service.
type Provider interface {
	SearchNotes(ctx context.Context, keyword string, limit int) ([]Note, error)
	AnalyzeNote(ctx context.Context, url string) (*Analysis, error)
	GetComments(ctx context.Context, url string, limit int) ([]Comment, error)
}
