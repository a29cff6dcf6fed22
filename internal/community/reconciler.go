package community

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrAlreadyVoted rejects a duplicate same-direction vote before
	// any network call.
	ErrAlreadyVoted = errors.New("you already voted this way")

	// ErrVoteInFlight means a vote for the same post has not resolved
	// yet. The guard is per post; other posts vote freely.
	ErrVoteInFlight = errors.New("a vote for this post is still in progress")

	// ErrCommentInFlight is the comment side of the same per-post guard.
	ErrCommentInFlight = errors.New("a comment on this post is still in progress")
)

// API is the slice of the backend client the reconciler uses.
type API interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
}

// Reconciler owns the optimistic view state for votes and comments:
// apply locally first, call the network, then reconcile back to server
// truth (revalidate on success, exact rollback on failure). State is
// owned by one view at a time; there is no cross-view sharing.
type Reconciler struct {
	api API

	mu       sync.Mutex
	votes    map[string]VoteState
	comments map[string][]Comment
	inFlight map[string]struct{}

	// onChange, when set, observes every local state transition in
	// order: optimistic apply, rollback, revalidation.
	onChange func(VoteState)
}

type ReconcilerOption func(*Reconciler)

// WithVoteListener registers an observer for vote state transitions.
// The UI layer uses it to re-render before network activity completes.
func WithVoteListener(fn func(VoteState)) ReconcilerOption {
	return func(r *Reconciler) { r.onChange = fn }
}

func NewReconciler(api API, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		api:      api,
		votes:    make(map[string]VoteState),
		comments: make(map[string][]Comment),
		inFlight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Seed installs the server-confirmed vote state for a post, normally
// right after a fetch. While a mutation for the post is in flight the
// seed is dropped: the optimistic state is newer than whatever fetch
// produced the seed, and the resolving mutation reconciles it anyway.
func (r *Reconciler) Seed(postID string, currentVote, voteCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inFlight[postID]; busy {
		return
	}
	r.votes[postID] = VoteState{PostID: postID, CurrentVote: currentVote, VoteCount: voteCount}
}

// SeedComments installs the server-confirmed comment list for a post.
// Dropped while a mutation for the post is in flight, as Seed is.
func (r *Reconciler) SeedComments(postID string, comments []Comment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inFlight[postID]; busy {
		return
	}
	r.comments[postID] = comments
}

// State returns the current (possibly optimistic) vote state.
func (r *Reconciler) State(postID string) (VoteState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.votes[postID]
	return state, ok
}

// Comments returns the current (possibly optimistic) comment list.
func (r *Reconciler) Comments(postID string) []Comment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Comment(nil), r.comments[postID]...)
}

// Upvote applies an upvote click to the post.
func (r *Reconciler) Upvote(ctx context.Context, postID string) (VoteState, error) {
	return r.vote(ctx, postID, 1)
}

// Downvote applies a downvote click to the post.
func (r *Reconciler) Downvote(ctx context.Context, postID string) (VoteState, error) {
	return r.vote(ctx, postID, -1)
}

// vote runs the single-step transition table:
//
//	 0 --up-->   +1 (count +1)      0 --down-->  -1 (count -1)
//	+1 --down-->  0 (count -1)     -1 --up-->     0 (count +1)
//	+1 --up-->   rejected          -1 --down-->  rejected
//
// A direct +1 <-> -1 jump is impossible in one click; the user passes
// through 0. Accepted transitions are applied locally before the
// network call and rolled back exactly on failure.
func (r *Reconciler) vote(ctx context.Context, postID string, delta int) (VoteState, error) {
	r.mu.Lock()
	if _, busy := r.inFlight[postID]; busy {
		r.mu.Unlock()
		return VoteState{}, ErrVoteInFlight
	}

	prev, ok := r.votes[postID]
	if !ok {
		prev = VoteState{PostID: postID}
	}

	if prev.CurrentVote == delta {
		// duplicate-direction click: no network call, no state change
		r.mu.Unlock()
		return prev, ErrAlreadyVoted
	}

	next := prev
	if prev.CurrentVote == 0 {
		next.CurrentVote = delta
	} else {
		next.CurrentVote = 0
	}
	next.VoteCount = prev.VoteCount + delta

	// optimistic apply, visible before any network activity
	r.votes[postID] = next
	r.inFlight[postID] = struct{}{}
	r.mu.Unlock()
	r.notify(next)

	err := r.api.Post(ctx, "/posts/"+url.PathEscape(postID)+"/vote",
		map[string]int{"delta": delta}, nil)

	r.mu.Lock()
	delete(r.inFlight, postID)
	if err != nil {
		// revert to the pre-transition state exactly
		r.votes[postID] = prev
		r.mu.Unlock()
		r.notify(prev)
		return prev, err
	}
	r.mu.Unlock()

	// the optimistic state is already correct; revalidate to pick up
	// concurrent votes by other users
	return r.Revalidate(ctx, postID)
}

// Revalidate refetches the post and adopts the server's vote figures.
// A failed revalidation keeps the optimistic state; the next fetch
// corrects it.
func (r *Reconciler) Revalidate(ctx context.Context, postID string) (VoteState, error) {
	var res struct {
		Post Post `json:"post"`
	}
	if err := r.api.Get(ctx, "/posts/"+url.PathEscape(postID), &res); err != nil {
		state, _ := r.State(postID)
		return state, nil
	}

	state := VoteState{PostID: postID, CurrentVote: res.Post.MyVote, VoteCount: res.Post.Votes}
	r.mu.Lock()
	r.votes[postID] = state
	r.mu.Unlock()
	r.notify(state)
	return state, nil
}

// AddComment optimistically prepends a locally fabricated comment, then
// submits it. On success the whole list is revalidated from the server,
// discarding the temporary record even though the call went through; a
// client-generated ID must never be trusted to match the server's. On
// failure the temporary record is removed and the error surfaced.
//
// The per-post in-flight guard applies here as it does to votes: a
// second submission while one is unresolved would snapshot a list that
// still contains the first one's unconfirmed record, poisoning its
// rollback.
func (r *Reconciler) AddComment(ctx context.Context, postID, authorName, text string) ([]Comment, error) {
	temp := Comment{
		ID:         "tmp-" + uuid.NewString(),
		AuthorName: authorName,
		Text:       text,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
		Pending:    true,
	}

	r.mu.Lock()
	if _, busy := r.inFlight[postID]; busy {
		r.mu.Unlock()
		return nil, ErrCommentInFlight
	}
	prev := append([]Comment(nil), r.comments[postID]...)
	r.comments[postID] = append([]Comment{temp}, prev...)
	r.inFlight[postID] = struct{}{}
	r.mu.Unlock()

	err := r.api.Post(ctx, "/posts/"+url.PathEscape(postID)+"/comments",
		map[string]string{"text": text}, nil)

	r.mu.Lock()
	delete(r.inFlight, postID)
	if err != nil {
		r.comments[postID] = prev
		r.mu.Unlock()
		return prev, err
	}
	r.mu.Unlock()

	return r.RevalidateComments(ctx, postID)
}

// RevalidateComments replaces the local list with the server's
// canonical one. When the refetch fails the optimistic list stays.
func (r *Reconciler) RevalidateComments(ctx context.Context, postID string) ([]Comment, error) {
	var res struct {
		Comments []Comment `json:"comments"`
	}
	if err := r.api.Get(ctx, "/posts/"+url.PathEscape(postID)+"/comments", &res); err != nil {
		return r.Comments(postID), nil
	}

	r.mu.Lock()
	r.comments[postID] = res.Comments
	r.mu.Unlock()
	return append([]Comment(nil), res.Comments...), nil
}

func (r *Reconciler) notify(state VoteState) {
	if r.onChange != nil {
		r.onChange(state)
	}
}
