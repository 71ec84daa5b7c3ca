package server

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/crystal-mush/tinymud/pkg/gamedb"
	"github.com/crystal-mush/tinymud/pkg/gameerr"
	"github.com/crystal-mush/tinymud/pkg/session"
)

// maxSuggestDistance bounds the "did you mean" search.
const maxSuggestDistance = 2

// DispatchCommand parses one input line from conn and runs it. The
// returned error is non-nil only for store failures; the connection has
// already been told and closed, and the transport should end its loop.
func (g *Game) DispatchCommand(ctx context.Context, conn session.Conn, input string) error {
	var token, rest string
	if i := strings.IndexByte(input, ' '); i >= 0 {
		token = strings.TrimSpace(input[:i])
		rest = input[i+1:]
	} else {
		token = strings.TrimSpace(input)
	}
	if token == "" {
		return nil
	}

	player, err := g.currentPlayer(ctx, conn)
	if err != nil {
		return g.fail(conn, token, err)
	}
	loggedIn := player != nil

	cmd, ok := g.Commands.Lookup(token)
	if !ok {
		if !loggedIn {
			g.Splash(conn)
			return nil
		}
		g.tell(conn, "unknownCommand")
		if s := g.suggest(token); s != "" {
			g.tell(conn, "didYouMean", "command", s)
		}
		return nil
	}

	args := splitArgs(rest, cmd.Nargs)
	if cmd.Nargs > 0 && len(args) != cmd.Nargs {
		g.tell(conn, "incorrectArgs", "command", token)
		return nil
	}

	switch {
	case !loggedIn && cmd.PostLogin && !cmd.PreLogin:
		g.Splash(conn)
		return nil
	case loggedIn && cmd.PreLogin && !cmd.PostLogin:
		g.tell(conn, "alreadyLoggedIn")
		return nil
	}

	g.Metrics.commandsTotal.WithLabelValues(cmd.Name).Inc()
	c := &Call{Token: token, Cmd: cmd, Conn: conn, Player: player, Args: args}
	if err := g.run(ctx, c); err != nil {
		return g.fail(conn, token, err)
	}
	return nil
}

// currentPlayer returns a fresh copy of the player logged in on conn, or
// nil when the connection is anonymous.
func (g *Game) currentPlayer(ctx context.Context, conn session.Conn) (*gamedb.Object, error) {
	cached := g.Sessions.ByConnection(conn)
	if cached == nil {
		return nil, nil
	}
	player, err := g.Store.FindOne(ctx, gamedb.ByID(cached.ID))
	if err != nil {
		return nil, gameerr.Store("load active player", err)
	}
	if player == nil {
		return cached.Clone(), nil
	}
	return player, nil
}

// run executes validate then perform behind a fault boundary. A panic is
// logged and the line is dropped.
func (g *Game) run(ctx context.Context, c *Call) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("server: panic in %q: %v\n%s", c.Token, r, debug.Stack())
			g.Metrics.panicsTotal.Inc()
			err = nil
		}
	}()
	if err := c.Cmd.Validate(ctx, g, c); err != nil {
		return err
	}
	return c.Cmd.Perform(ctx, g, c)
}

// fail reports err to conn. Feedback errors are rendered from the catalog;
// anything else ends the connection and is returned.
func (g *Game) fail(conn session.Conn, token string, err error) error {
	kind := gameerr.KindOf(err)
	g.Metrics.failuresTotal.WithLabelValues(kind.String()).Inc()

	if !gameerr.IsFatal(err) {
		ge, _ := gameerr.As(err)
		if !ge.Silent {
			conn.Send(g.Msgs.Render(ge.Key, ge.Values))
		}
		return nil
	}

	g.Metrics.storeFailures.Inc()
	log.Printf("server: store failure during %q: %v", token, err)
	g.tell(conn, "fatalError")
	conn.Close()
	return fmt.Errorf("server: %s: %w", token, err)
}

// splitArgs breaks rest into at most nargs arguments. Each of the first
// nargs-1 arguments ends at a space; the last one keeps the remainder.
func splitArgs(rest string, nargs int) []string {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return nil
	}
	if nargs <= 1 {
		return []string{rest}
	}
	var args []string
	for i := 0; i < nargs; i++ {
		j := strings.IndexByte(rest, ' ')
		if j < 0 {
			break
		}
		args = append(args, rest[:j])
		rest = strings.TrimSpace(rest[j+1:])
	}
	return append(args, rest)
}

// suggest returns the registered token closest to token, if any is near
// enough. Ties go to the alphabetically first token.
func (g *Game) suggest(token string) string {
	tokens := g.Commands.Tokens()
	sort.Strings(tokens)
	best, bestDist := "", maxSuggestDistance+1
	for _, t := range tokens {
		if d := levenshtein.ComputeDistance(token, t); d < bestDist {
			best, bestDist = t, d
		}
	}
	return best
}
