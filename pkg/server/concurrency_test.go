package server

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/crystal-mush/tinymud/pkg/gamedb"
)

// stallingStore holds the next FindAll, once armed, until release is
// closed. The query itself runs before the stall.
type stallingStore struct {
	gamedb.Store
	armed   atomic.Bool
	stalled chan struct{}
	release chan struct{}
}

func newStallingStore() *stallingStore {
	return &stallingStore{stalled: make(chan struct{}), release: make(chan struct{})}
}

func (s *stallingStore) FindAll(ctx context.Context, p gamedb.Predicate) ([]*gamedb.Object, error) {
	objs, err := s.Store.FindAll(ctx, p)
	if s.armed.CompareAndSwap(true, false) {
		close(s.stalled)
		<-s.release
	}
	return objs, err
}

// dispatchAsync runs line on c in the background and delivers its output.
func (e *testEnv) dispatchAsync(c *client, line string) <-chan string {
	c.output()
	out := make(chan string, 1)
	go func() {
		if err := e.game.DispatchCommand(context.Background(), c.d, line); err != nil {
			out <- "error: " + err.Error()
			return
		}
		out <- c.output()
	}()
	return out
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func receive(t *testing.T, ch <-chan string, what string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return ""
	}
}

func TestStalledStoreCallBlocksOnlyItsConnection(t *testing.T) {
	stall := newStallingStore()
	env := newTestEnv(t, withStore(func(s gamedb.Store) gamedb.Store {
		stall.Store = s
		return stall
	}))
	alice := env.login("alice")
	bob := env.login("bob")

	stall.armed.Store(true)
	inventory := env.dispatchAsync(alice, "inventory")
	waitFor(t, stall.stalled, "alice's inventory to reach the store")

	if out := receive(t, env.dispatchAsync(bob, "say hi"), "bob's say"); out != `You say "hi"` {
		t.Errorf("bob got %q", out)
	}

	close(stall.release)
	out := receive(t, inventory, "alice's inventory")
	if !strings.Contains(out, "You aren't carrying anything.") {
		t.Errorf("alice got %q", out)
	}
}

func TestGet_OnlyOneTakerWins(t *testing.T) {
	stall := newStallingStore()
	env := newTestEnv(t, withStore(func(s gamedb.Store) gamedb.Store {
		stall.Store = s
		return stall
	}))
	alice := env.login("alice")
	bob := env.login("bob")
	rock := gamedb.NewObject(gamedb.TypeThing, "rock")
	rock.Location = env.lobby
	rock = env.put(rock)

	// alice finds the rock, then stalls before taking it.
	stall.armed.Store(true)
	aliceGet := env.dispatchAsync(alice, "get rock")
	waitFor(t, stall.stalled, "alice's get to find the rock")

	if out := receive(t, env.dispatchAsync(bob, "get rock"), "bob's get"); out != "Taken." {
		t.Errorf("bob got %q", out)
	}
	close(stall.release)
	if out := receive(t, aliceGet, "alice's get"); out != "I don't see that here." {
		t.Errorf("alice got %q", out)
	}
	if got := env.get(rock.ID).Location; got != env.player(bob).ID {
		t.Errorf("rock is in #%d, want bob", got)
	}
}

func TestUpdateKeepsConcurrentFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	stale := env.get(env.lobby)

	fresh := env.get(env.lobby)
	fresh.Description = "Changed elsewhere."
	env.save(fresh)

	if err := env.game.update(ctx, stale, func(o *gamedb.Object) error {
		o.SetFlag(gamedb.FlagLinkOK)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	got := env.get(env.lobby)
	if got.Description != "Changed elsewhere." || !got.HasFlag(gamedb.FlagLinkOK) {
		t.Errorf("stored %q flags=%d", got.Description, got.Flags)
	}
	if stale.Description != "Changed elsewhere." {
		t.Error("update should refresh the caller's copy")
	}
	if n := env.game.objects.held(); n != 0 {
		t.Errorf("%d object locks left behind", n)
	}
}

func TestRefLocks(t *testing.T) {
	l := newRefLocks()
	unlock := l.lock(7)

	acquired := make(chan struct{})
	go func() {
		l.lock(7)()
		close(acquired)
	}()
	select {
	case <-acquired:
		t.Fatal("second lock on #7 did not wait")
	case <-time.After(50 * time.Millisecond):
	}

	other := make(chan struct{})
	go func() {
		l.lock(8)()
		close(other)
	}()
	waitFor(t, other, "a lock on #8")

	unlock()
	waitFor(t, acquired, "the second lock on #7")
	if n := l.held(); n != 0 {
		t.Errorf("held = %d after every unlock", n)
	}
}

func TestDescriptorSlowClientIsDropped(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	d := NewDescriptor(server)

	start := time.Now()
	for i := 0; i < outboundQueue+2; i++ {
		d.Send("spam")
	}
	if time.Since(start) > time.Second {
		t.Error("Send waited on a client that never reads")
	}
	if !d.IsClosed() {
		t.Error("a client that fell a full queue behind should be closed")
	}
}

func TestDescriptorFlushesOnClose(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	d := NewDescriptor(server)

	d.Send("one")
	d.Send("two")
	d.Close()
	d.Send("three")

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	r := bufio.NewReader(client)
	for _, want := range []string{"one\r\n", "two\r\n"} {
		line, err := r.ReadString('\n')
		if err != nil || line != want {
			t.Fatalf("read %q, %v; want %q", line, err, want)
		}
	}
	if line, err := r.ReadString('\n'); err == nil {
		t.Errorf("read %q after close", line)
	}
}
