package server

import (
	"context"
	"strings"

	"github.com/crystal-mush/tinymud/pkg/gamedb"
	"github.com/crystal-mush/tinymud/pkg/gameerr"
	"github.com/crystal-mush/tinymud/pkg/messages"
	"github.com/crystal-mush/tinymud/pkg/resolve"
)

// propertySetter describes one "@prop target=value" command.
type propertySetter struct {
	command string
	aliases []string
	desc    string
	usage   string
	field   string // key into messages.Properties
	set     func(o *gamedb.Object, v string)
}

var propertySetters = []propertySetter{
	{
		command: "@describe", desc: "set the description of an object",
		usage: "@describe <object>[=<description>]", field: "description",
		set: func(o *gamedb.Object, v string) { o.Description = v },
	},
	{
		command: "@name", desc: "rename an object",
		usage: "@name <object>=<new name>", field: "name",
		set: func(o *gamedb.Object, v string) { o.Name = v },
	},
	{
		command: "@success", desc: "message shown when you succeed using an object",
		usage: "@success <object>[=<message>]", field: "successMessage",
		set: func(o *gamedb.Object, v string) { o.SuccessMessage = v },
	},
	{
		command: "@osuccess", desc: "message others see when you succeed using an object",
		usage: "@osuccess <object>[=<message>]", field: "othersSuccessMessage",
		set: func(o *gamedb.Object, v string) { o.OthersSuccessMessage = v },
	},
	{
		command: "@failure", aliases: []string{"@fail"}, desc: "message shown when you fail to use an object",
		usage: "[@failure|@fail] <object>[=<message>]", field: "failureMessage",
		set: func(o *gamedb.Object, v string) { o.FailureMessage = v },
	},
	{
		command: "@ofailure", aliases: []string{"@ofail"}, desc: "message others see when you fail to use an object",
		usage: "[@ofailure|@ofail] <object>[=<message>]", field: "othersFailureMessage",
		set: func(o *gamedb.Object, v string) { o.OthersFailureMessage = v },
	},
}

// perform builds the Stage that applies p. A bare target clears the field,
// except for names, which may not be blank.
func (p propertySetter) perform() Stage {
	return func(ctx context.Context, g *Game, c *Call) error {
		target, value, _ := strings.Cut(c.Arg(0), "=")
		target, value = strings.TrimSpace(target), strings.TrimSpace(value)
		if p.field == "name" && !isNameValid(value) {
			return gameerr.Input("invalidName")
		}

		found, err := g.Resolver.Many(ctx, c.Player, resolve.Query{Name: target, AllowMe: true, AllowHere: true})
		if err != nil {
			return err
		}
		var owned []*gamedb.Object
		for _, o := range found {
			if o.Owner == c.Player.ID {
				owned = append(owned, o)
			}
		}
		if len(owned) == 0 {
			return gameerr.Denied("permissionDenied")
		}
		if len(owned) > 1 && sameName(owned) {
			return gameerr.Ambig("ambigSet")
		}

		obj := owned[0]
		if err := g.update(ctx, obj, func(o *gamedb.Object) error {
			p.set(o, value)
			return nil
		}); err != nil {
			return err
		}
		g.tell(c.Conn, "set", "property", propertyLabel(p.field))
		return nil
	}
}

// propertyLabel returns the display label for a property or flag name.
func propertyLabel(field string) string {
	if label, ok := messages.Properties[field]; ok {
		return label
	}
	return field
}
