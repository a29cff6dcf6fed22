package community

// Post is a community Q&A thread as the marketplace API returns it.
// MyVote is the calling user's current vote on it.
type Post struct {
	ID            string `json:"_id"`
	Title         string `json:"title"`
	Body          string `json:"body,omitempty"`
	Votes         int    `json:"votes"`
	MyVote        int    `json:"myVote,omitempty"`
	CommentsCount int    `json:"commentsCount,omitempty"`
	AuthorName    string `json:"authorName,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
}

// Answer is a full reply to a post, distinct from the lighter comments.
type Answer struct {
	ID         string `json:"_id"`
	Body       string `json:"body"`
	Votes      int    `json:"votes,omitempty"`
	AuthorID   string `json:"authorId,omitempty"`
	CreatedAt  string `json:"createdAt,omitempty"`
	AuthorName string `json:"authorName,omitempty"`
}

// Comment is one comment on a post. Pending marks a locally fabricated
// record that has not been confirmed by the server yet; its ID is a
// temporary one and will be replaced by the server's canonical record
// on the next revalidation.
type Comment struct {
	ID         string `json:"_id"`
	AuthorName string `json:"authorName"`
	Text       string `json:"text"`
	CreatedAt  string `json:"createdAt"`
	Pending    bool   `json:"pending,omitempty"`
}

// VoteState is the per-post vote view the reconciler maintains.
// VoteCount always equals the server-confirmed count plus any
// unconfirmed local delta currently in flight.
type VoteState struct {
	PostID      string `json:"postId"`
	CurrentVote int    `json:"currentVote"`
	VoteCount   int    `json:"voteCount"`
}
