package server

import (
	"context"

	"github.com/crystal-mush/tinymud/pkg/gamedb"
	"github.com/crystal-mush/tinymud/pkg/gameerr"
	"github.com/crystal-mush/tinymud/pkg/session"
)

// Stage is one step of a command: Validate checks the arguments and
// resolves targets, Perform applies the effect. Failures are returned as
// *gameerr.Error so the dispatcher can report them.
type Stage func(ctx context.Context, g *Game, c *Call) error

// Command is a registered command definition. Definitions are built from
// baseCommand with per-command options and never change afterwards.
type Command struct {
	Name      string
	Nargs     int // exact argument count; 0 leaves it unconstrained
	PreLogin  bool
	PostLogin bool
	Validate  Stage
	Perform   Stage

	Desc  string
	Usage string
}

// Call is one invocation of a command.
type Call struct {
	Token  string // as typed, which may be an alias
	Cmd    *Command
	Conn   session.Conn
	Player *gamedb.Object // nil before login
	Args   []string

	// Filled in by Validate for Perform.
	Target  *gamedb.Object
	Targets []*gamedb.Object
	Params  []string
}

// Arg returns the i-th argument or "".
func (c *Call) Arg(i int) string {
	if i < len(c.Args) {
		return c.Args[i]
	}
	return ""
}

var baseCommand = Command{
	Nargs:     0,
	PreLogin:  false,
	PostLogin: true,
	Validate:  noArgs,
	Perform:   func(context.Context, *Game, *Call) error { return nil },
}

func noArgs(_ context.Context, _ *Game, c *Call) error {
	if len(c.Args) != 0 {
		return gameerr.Input("unknownCommand")
	}
	return nil
}

func anyArgs(context.Context, *Game, *Call) error { return nil }

type option func(*Command)

func nargs(n int) option { return func(c *Command) { c.Nargs = n } }

// preLoginOnly is for commands that make no sense once logged in.
func preLoginOnly() option {
	return func(c *Command) { c.PreLogin, c.PostLogin = true, false }
}

// always allows a command in both login states.
func always() option {
	return func(c *Command) { c.PreLogin, c.PostLogin = true, true }
}

func validate(s Stage) option { return func(c *Command) { c.Validate = s } }
func perform(s Stage) option  { return func(c *Command) { c.Perform = s } }

func help(desc, usage string) option {
	return func(c *Command) { c.Desc, c.Usage = desc, usage }
}

func define(name string, opts ...option) *Command {
	cmd := baseCommand
	cmd.Name = name
	for _, o := range opts {
		o(&cmd)
	}
	return &cmd
}

// CommandTable maps typed tokens to definitions. Aliases share the
// definition of their canonical command.
type CommandTable struct {
	byToken map[string]*Command
	order   []*Command
}

// Lookup finds a command by exact token.
func (t *CommandTable) Lookup(token string) (*Command, bool) {
	cmd, ok := t.byToken[token]
	return cmd, ok
}

// All returns the canonical commands in registration order.
func (t *CommandTable) All() []*Command { return t.order }

// Tokens returns every registered token, aliases included.
func (t *CommandTable) Tokens() []string {
	out := make([]string, 0, len(t.byToken))
	for tok := range t.byToken {
		out = append(out, tok)
	}
	return out
}

// InitCommands builds the command table.
func InitCommands() *CommandTable {
	t := &CommandTable{byToken: make(map[string]*Command)}

	register := func(cmd *Command, aliases ...string) {
		t.byToken[cmd.Name] = cmd
		t.order = append(t.order, cmd)
		for _, a := range aliases {
			t.byToken[a] = cmd
		}
	}

	// Login
	register(define("create", nargs(2), preLoginOnly(),
		validate(validateCreate), perform(cmdCreate),
		help("creates a new user", "[create|cr] <username> <password>")), "cr")
	register(define("connect", nargs(2), preLoginOnly(),
		validate(validateConnect), perform(cmdConnect),
		help("login as a user", "[connect|co|login] <username> <password>")), "co", "login")
	register(define("QUIT", always(), perform(cmdQuit),
		help("logout", "QUIT|quit")), "quit")
	register(define("WHO", always(), perform(cmdWho),
		help("see who is currently online", "WHO|who")), "who")
	register(define("HELP", always(), validate(validateHelp), perform(cmdHelp),
		help("shows a list of commands", "HELP|help [-p|-c|<command>]")), "help")

	// Communication
	register(define("say", nargs(1), validate(anyArgs), perform(cmdSay),
		help("speak to players in the room", "say <phrase>")))
	register(define("page", nargs(1), validate(validatePage), perform(cmdPage),
		help("tell friend you are looking for them", "page <username>")))
	register(define("whisper", nargs(1), validate(validateWhisper), perform(cmdWhisper),
		help("say something, but to one person, quietly...", "whisper <username>=<message>")))

	// Movement and looking
	register(define("go", nargs(1), validate(validateGo), perform(cmdGo),
		help("used to leave through an exit, or to go home!", "[go|goto|move] <exit name|home>")), "goto", "move")
	register(define("look", validate(validateLook), perform(cmdLook),
		help("used to look at game objects, yourself, or the room you're in", "[look|read] [object|me|here]")), "read")

	// Items
	register(define("drop", nargs(1), validate(validateDrop), perform(cmdDrop),
		help("drop an object in your inventory", "[drop|throw] <object name>")), "throw")
	register(define("examine", nargs(1), validate(validateExamine), perform(cmdExamine),
		help("examine an object, yourself, or the room you're in", "examine <object|me|here>")))
	register(define("get", nargs(1), validate(validateGet), perform(cmdGet),
		help("take an object in the room", "[get|take] <object name>")), "take")
	register(define("inventory", perform(cmdInventory),
		help("show contents of your inventory", "inventory")))

	// Building
	register(define("@create", nargs(1), validate(validName), perform(cmdCreateThing),
		help("create a new object", "@create <object name>")))
	register(define("@set", nargs(1), validate(validateSet), perform(cmdSet),
		help("set the flag of an object", "@set <object>=[!]<link_ok|anti_lock|temple>")))
	register(define("@password", nargs(1), validate(validatePassword), perform(cmdPassword),
		help("change your password", "@password <old>=<new>")))
	register(define("@dig", nargs(1), validate(validName), perform(cmdDig),
		help("create a new room", "@dig <room name>")))
	register(define("@open", nargs(1), validate(validName), perform(cmdOpen),
		help("open a new exit in a room", "@open <exit name>")))
	register(define("@link", nargs(1), validate(validateLink), perform(cmdLink),
		help("link an exit, thing or room to a room", "@link <object>=<room number|here|home>")))
	register(define("@unlink", nargs(1), validate(anyArgs), perform(cmdUnlink),
		help("unlink an exit or the room you're in", "@unlink <exit|here>")))
	register(define("@lock", nargs(1), validate(validateLock), perform(cmdLock),
		help("create lock for an object", "@lock <object>=<key>")))
	register(define("@unlock", nargs(1), validate(anyArgs), perform(cmdUnlock),
		help("removes lock from an object", "@unlock <object>")))
	register(define("@find", nargs(1), validate(validName), perform(cmdFind),
		help("find all the objects you own", "@find <partial name>")))
	register(define("@path", nargs(1), validate(validatePath), perform(cmdPath),
		help("find the path to a room", "@path <room name>")))

	// Properties
	for _, p := range propertySetters {
		register(define(p.command, nargs(1), validate(anyArgs), perform(p.perform()),
			help(p.desc, p.usage)), p.aliases...)
	}

	return t
}
