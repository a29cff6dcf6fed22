package community

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeAPI records calls in order and answers GETs from canned JSON.
// Paths without a canned response fail, which doubles as the
// revalidation-failure case.
type fakeAPI struct {
	mu        sync.Mutex
	calls     []string
	failOn    map[string]error
	responses map[string]string

	// when set, the first POST signals started and blocks until release
	started chan struct{}
	release chan struct{}
}

func (f *fakeAPI) record(call string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	err := f.failOn[call]
	f.mu.Unlock()
	return err
}

func (f *fakeAPI) callList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) Get(ctx context.Context, path string, out any) error {
	if err := f.record("GET " + path); err != nil {
		return err
	}
	raw, ok := f.responses[path]
	if !ok {
		return fmt.Errorf("no canned response for %s", path)
	}
	return json.Unmarshal([]byte(raw), out)
}

func (f *fakeAPI) Post(ctx context.Context, path string, body, out any) error {
	if f.started != nil {
		f.mu.Lock()
		started := f.started
		f.started = nil
		f.mu.Unlock()
		if started != nil {
			close(started)
			<-f.release
		}
	}
	return f.record("POST " + path)
}

func TestVote_SingleStepTransitions(t *testing.T) {
	cases := []struct {
		name      string
		current   int
		delta     int
		wantVote  int
		wantCount int
	}{
		{"neutral upvote", 0, 1, 1, 11},
		{"neutral downvote", 0, -1, -1, 9},
		{"undo upvote via downvote", 1, -1, 0, 9},
		{"undo downvote via upvote", -1, 1, 0, 11},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := &fakeAPI{}
			r := NewReconciler(api)
			r.Seed("p1", tc.current, 10)

			var state VoteState
			var err error
			if tc.delta == 1 {
				state, err = r.Upvote(context.Background(), "p1")
			} else {
				state, err = r.Downvote(context.Background(), "p1")
			}
			if err != nil {
				t.Fatal(err)
			}
			if state.CurrentVote != tc.wantVote || state.VoteCount != tc.wantCount {
				t.Fatalf("expected {%d,%d}, got {%d,%d}",
					tc.wantVote, tc.wantCount, state.CurrentVote, state.VoteCount)
			}
		})
	}
}

func TestVote_DuplicateDirectionRejectedWithoutNetwork(t *testing.T) {
	api := &fakeAPI{}
	r := NewReconciler(api)
	r.Seed("p1", 1, 10)

	state, err := r.Upvote(context.Background(), "p1")
	if !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}
	if state.CurrentVote != 1 || state.VoteCount != 10 {
		t.Fatalf("state changed on rejected vote: %+v", state)
	}
	if len(api.callList()) != 0 {
		t.Fatalf("rejected vote reached the wire: %v", api.callList())
	}

	r.Seed("p2", -1, 4)
	if _, err := r.Downvote(context.Background(), "p2"); !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted for duplicate downvote, got %v", err)
	}
}

func TestVote_RollbackOnFailureIsExact(t *testing.T) {
	api := &fakeAPI{failOn: map[string]error{
		"POST /posts/p1/vote": errors.New("network down"),
	}}

	var snapshots []VoteState
	r := NewReconciler(api, WithVoteListener(func(s VoteState) {
		snapshots = append(snapshots, s)
	}))
	r.Seed("p1", 0, 10)

	state, err := r.Upvote(context.Background(), "p1")
	if err == nil {
		t.Fatal("expected the network failure to surface")
	}
	if state.CurrentVote != 0 || state.VoteCount != 10 {
		t.Fatalf("rollback not exact: %+v", state)
	}

	// the optimistic apply happened before the call, then the rollback
	if len(snapshots) != 2 {
		t.Fatalf("expected apply+rollback notifications, got %+v", snapshots)
	}
	if snapshots[0].CurrentVote != 1 || snapshots[0].VoteCount != 11 {
		t.Fatalf("optimistic snapshot wrong: %+v", snapshots[0])
	}
	if snapshots[1].CurrentVote != 0 || snapshots[1].VoteCount != 10 {
		t.Fatalf("rollback snapshot wrong: %+v", snapshots[1])
	}
}

func TestVote_RevalidationAdoptsServerFigures(t *testing.T) {
	api := &fakeAPI{responses: map[string]string{
		"/posts/p1": `{"post":{"_id":"p1","votes":25,"myVote":1}}`,
	}}
	r := NewReconciler(api)
	r.Seed("p1", 0, 10)

	// another user voted meanwhile; the revalidating refetch wins
	state, err := r.Upvote(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	if state.CurrentVote != 1 || state.VoteCount != 25 {
		t.Fatalf("server figures not adopted: %+v", state)
	}
}

func TestVote_FailedRevalidationKeepsOptimisticState(t *testing.T) {
	// no canned response: the refetch fails, the optimistic state stays
	api := &fakeAPI{}
	r := NewReconciler(api)
	r.Seed("p1", 0, 10)

	state, err := r.Upvote(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	if state.CurrentVote != 1 || state.VoteCount != 11 {
		t.Fatalf("optimistic state lost: %+v", state)
	}
}

func TestVote_PerPostInFlightGuard(t *testing.T) {
	api := &fakeAPI{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	r := NewReconciler(api)
	r.Seed("p1", 0, 10)
	r.Seed("p2", 0, 3)

	done := make(chan error, 1)
	go func() {
		_, err := r.Upvote(context.Background(), "p1")
		done <- err
	}()

	select {
	case <-api.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first vote never reached the transport")
	}

	if _, err := r.Upvote(context.Background(), "p1"); !errors.Is(err, ErrVoteInFlight) {
		t.Fatalf("expected ErrVoteInFlight, got %v", err)
	}

	// a different post votes freely while p1 is in flight
	if _, err := r.Upvote(context.Background(), "p2"); err != nil {
		t.Fatalf("unrelated post blocked: %v", err)
	}

	close(api.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestSeed_DroppedWhileMutationInFlight(t *testing.T) {
	api := &fakeAPI{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	r := NewReconciler(api)
	r.Seed("p1", 0, 10)

	done := make(chan error, 1)
	go func() {
		_, err := r.Upvote(context.Background(), "p1")
		done <- err
	}()

	select {
	case <-api.started:
	case <-time.After(2 * time.Second):
		t.Fatal("vote never reached the transport")
	}

	// a concurrent fetch carrying stale server figures must not clobber
	// the optimistic state of the unresolved vote
	r.Seed("p1", 0, 10)
	if state, _ := r.State("p1"); state.CurrentVote != 1 || state.VoteCount != 11 {
		t.Fatalf("optimistic state clobbered by seed: %+v", state)
	}

	close(api.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	// revalidation failed (no canned response), so the optimistic state
	// must have survived end to end
	if state, _ := r.State("p1"); state.CurrentVote != 1 || state.VoteCount != 11 {
		t.Fatalf("optimistic state lost after resolution: %+v", state)
	}
}

func TestAddComment_PerPostInFlightGuard(t *testing.T) {
	api := &fakeAPI{
		started: make(chan struct{}),
		release: make(chan struct{}),
		responses: map[string]string{
			"/posts/p1/comments": `{"comments":[{"_id":"srv-1","authorName":"ann","text":"first","createdAt":"2026-01-02T10:00:00Z"}]}`,
		},
	}
	r := NewReconciler(api)

	done := make(chan error, 1)
	go func() {
		_, err := r.AddComment(context.Background(), "p1", "ann", "first")
		done <- err
	}()

	select {
	case <-api.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first comment never reached the transport")
	}

	// a second submission on the same post is refused; accepting it
	// would snapshot a list containing the first one's pending record
	if _, err := r.AddComment(context.Background(), "p1", "ann", "second"); !errors.Is(err, ErrCommentInFlight) {
		t.Fatalf("expected ErrCommentInFlight, got %v", err)
	}
	if pending := r.Comments("p1"); len(pending) != 1 {
		t.Fatalf("rejected submission altered the list: %+v", pending)
	}

	// a different post comments freely while p1 is in flight
	if _, err := r.AddComment(context.Background(), "p2", "bob", "elsewhere"); err != nil {
		t.Fatalf("unrelated post blocked: %v", err)
	}

	close(api.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	// resolved: the guard is released and the list is the server's
	if _, err := r.AddComment(context.Background(), "p1", "ann", "third"); err != nil {
		t.Fatalf("guard not released: %v", err)
	}
}

func TestAddComment_ServerListReplacesTemporaryRecord(t *testing.T) {
	api := &fakeAPI{responses: map[string]string{
		"/posts/p1/comments": `{"comments":[{"_id":"srv-1","authorName":"ann","text":"nice part","createdAt":"2026-01-02T10:00:00Z"}]}`,
	}}
	r := NewReconciler(api)

	comments, err := r.AddComment(context.Background(), "p1", "ann", "nice part")
	if err != nil {
		t.Fatal(err)
	}
	if len(comments) != 1 || comments[0].ID != "srv-1" {
		t.Fatalf("expected the canonical server record, got %+v", comments)
	}
	for _, c := range comments {
		if strings.HasPrefix(c.ID, "tmp-") {
			t.Fatalf("temporary record survived revalidation: %+v", comments)
		}
	}
}

func TestAddComment_FailureRemovesTemporaryRecord(t *testing.T) {
	api := &fakeAPI{failOn: map[string]error{
		"POST /posts/p1/comments": errors.New("network down"),
	}}
	r := NewReconciler(api)
	existing := []Comment{{ID: "srv-0", Text: "first"}}
	r.SeedComments("p1", existing)

	comments, err := r.AddComment(context.Background(), "p1", "ann", "oops")
	if err == nil {
		t.Fatal("expected the failure to surface")
	}
	if len(comments) != 1 || comments[0].ID != "srv-0" {
		t.Fatalf("expected pre-mutation list restored, got %+v", comments)
	}
	if got := r.Comments("p1"); len(got) != 1 || got[0].ID != "srv-0" {
		t.Fatalf("reconciler state not rolled back: %+v", got)
	}
}

func TestAddComment_PendingRecordVisibleWhileInFlight(t *testing.T) {
	api := &fakeAPI{
		started:   make(chan struct{}),
		release:   make(chan struct{}),
		responses: map[string]string{"/posts/p1/comments": `{"comments":[]}`},
	}
	r := NewReconciler(api)

	done := make(chan struct{})
	go func() {
		r.AddComment(context.Background(), "p1", "ann", "hello")
		close(done)
	}()

	select {
	case <-api.started:
	case <-time.After(2 * time.Second):
		t.Fatal("comment submit never reached the transport")
	}

	pending := r.Comments("p1")
	if len(pending) != 1 || !pending[0].Pending || !strings.HasPrefix(pending[0].ID, "tmp-") {
		t.Fatalf("expected a pending temporary record, got %+v", pending)
	}

	close(api.release)
	<-done
}
