package xiaohongshu

import (
	"context"
	"fmt"
)

const (
	mockMaxNotes    = 5
	mockMaxComments = 10
)

// MockProvider returns canned reference data. It is used for development and
// whenever no real backend is configured.
type MockProvider struct{}

// NewMockProvider creates a MockProvider.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// SearchNotes returns min(limit, 5) notes about keyword.
func (m *MockProvider) SearchNotes(ctx context.Context, keyword string, limit int) ([]Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := clamp(limit, mockMaxNotes)
	notes := make([]Note, 0, n)
	for i := 0; i < n; i++ {
		notes = append(notes, Note{
			Title:       fmt.Sprintf("关于%s的精彩内容 %d", keyword, i+1),
			URL:         fmt.Sprintf("https://xiaohongshu.com/note/mock%d", i+1),
			Author:      fmt.Sprintf("用户%d", i+1),
			Likes:       100 + i*10,
			Description: fmt.Sprintf("这是一个关于%s的优质内容分享...", keyword),
		})
	}
	return notes, nil
}

// AnalyzeNote returns a fixed analysis echoing url.
func (m *MockProvider) AnalyzeNote(ctx context.Context, url string) (*Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Analysis{
		URL:      url,
		Title:    "示例笔记标题",
		Content:  "这是笔记的详细内容...",
		Tags:     []string{"标签1", "标签2", "标签3"},
		Likes:    234,
		Comments: 56,
		Shares:   12,
		Author:   Author{Name: "示例作者", Followers: 1234},
	}, nil
}

// GetComments returns min(limit, 10) comments.
func (m *MockProvider) GetComments(ctx context.Context, url string, limit int) ([]Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := clamp(limit, mockMaxComments)
	comments := make([]Comment, 0, n)
	for i := 0; i < n; i++ {
		comments = append(comments, Comment{
			Author:  fmt.Sprintf("评论者%d", i+1),
			Content: fmt.Sprintf("这是第%d条评论，非常有用的内容！", i+1),
			Likes:   10 + i,
			Time:    fmt.Sprintf("2024-01-%02d", i+1),
		})
	}
	return comments, nil
}

func clamp(limit, max int) int {
	if limit < 0 {
		return 0
	}
	if limit > max {
		return max
	}
	return limit
}
