package community

import (
	"context"
	"net/url"
	"sort"
)

// Service covers the non-optimistic community reads and writes: post
// listing, post detail, answers. Writes follow the refetch-after-write
// discipline rather than optimistic patching.
type Service struct {
	api API
}

func NewService(api API) *Service {
	return &Service{api: api}
}

// Posts lists community posts, sorted "top" (votes desc, newest first
// on ties) or "new" (newest first).
func (s *Service) Posts(ctx context.Context, sortMode string) ([]Post, error) {
	var res struct {
		Posts []Post `json:"posts"`
	}
	if err := s.api.Get(ctx, "/posts", &res); err != nil {
		return nil, err
	}
	posts := res.Posts
	if sortMode == "top" {
		sort.SliceStable(posts, func(i, j int) bool {
			if posts[i].Votes != posts[j].Votes {
				return posts[i].Votes > posts[j].Votes
			}
			return posts[i].CreatedAt > posts[j].CreatedAt
		})
	} else {
		sort.SliceStable(posts, func(i, j int) bool {
			return posts[i].CreatedAt > posts[j].CreatedAt
		})
	}
	return posts, nil
}

// PostDetail is a post together with its answers.
type PostDetail struct {
	Post    Post     `json:"post"`
	Answers []Answer `json:"answers"`
}

// Get fetches one post with its answers.
func (s *Service) Get(ctx context.Context, postID string) (PostDetail, error) {
	var detail PostDetail
	if err := s.api.Get(ctx, "/posts/"+url.PathEscape(postID), &detail); err != nil {
		return PostDetail{}, err
	}
	return detail, nil
}

// AddAnswer submits an answer and returns the refreshed post detail.
func (s *Service) AddAnswer(ctx context.Context, postID, body string) (PostDetail, error) {
	err := s.api.Post(ctx, "/posts/"+url.PathEscape(postID)+"/answers",
		map[string]string{"body": body}, nil)
	if err != nil {
		return PostDetail{}, err
	}
	return s.Get(ctx, postID)
}
