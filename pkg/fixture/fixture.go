// Package fixture seeds a store from a YAML world description.
package fixture

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"log"

	"github.com/crystal-mush/tinymud/pkg/gamedb"
	"github.com/crystal-mush/tinymud/pkg/perms"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultWorld []byte

// World is the file layout.
type World struct {
	Objects []Object `yaml:"objects"`
}

// Object is one entry. Refs that are omitted are unset.
type Object struct {
	ID          int      `yaml:"id"`
	Type        string   `yaml:"type"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Success     string   `yaml:"success"`
	Failure     string   `yaml:"failure"`
	OSuccess    string   `yaml:"osuccess"`
	OFailure    string   `yaml:"ofailure"`
	Flags       []string `yaml:"flags"`
	Password    string   `yaml:"password"`
	Location    int      `yaml:"location"`
	Target      int      `yaml:"target"`
	Owner       int      `yaml:"owner"`
	Key         int      `yaml:"key"`
}

// Parse decodes a world description.
func Parse(r io.Reader) (*World, error) {
	var w World
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("fixture: parse: %w", err)
	}
	return &w, nil
}

// Default returns the embedded starter world.
func Default() *World {
	w, err := Parse(bytes.NewReader(defaultWorld))
	if err != nil {
		panic(err)
	}
	return w
}

// Load creates every object of w in store, keeping the ids given in the
// file. It returns the number of objects created.
func Load(ctx context.Context, store gamedb.Store, w *World) (int, error) {
	n := 0
	for _, fo := range w.Objects {
		obj, err := fo.toObject()
		if err != nil {
			return n, err
		}
		if _, err := store.Create(ctx, obj); err != nil {
			return n, fmt.Errorf("fixture: create #%d: %w", fo.ID, err)
		}
		n++
	}
	log.Printf("fixture: loaded %d objects", n)
	return n, nil
}

func (fo Object) toObject() (*gamedb.Object, error) {
	typ, ok := gamedb.ParseObjectType(fo.Type)
	if !ok {
		return nil, fmt.Errorf("fixture: object #%d: unknown type %q", fo.ID, fo.Type)
	}
	if fo.ID <= 0 {
		return nil, fmt.Errorf("fixture: object %q: id must be positive", fo.Name)
	}
	obj := gamedb.NewObject(typ, fo.Name)
	obj.ID = gamedb.DBRef(fo.ID)
	obj.Description = fo.Description
	obj.SuccessMessage = fo.Success
	obj.FailureMessage = fo.Failure
	obj.OthersSuccessMessage = fo.OSuccess
	obj.OthersFailureMessage = fo.OFailure
	obj.Password = fo.Password
	obj.Location = ref(fo.Location)
	obj.Target = ref(fo.Target)
	obj.Owner = ref(fo.Owner)
	obj.Key = ref(fo.Key)
	for _, name := range fo.Flags {
		flag, ok := perms.FlagByName(name)
		if !ok {
			return nil, fmt.Errorf("fixture: object #%d: unknown flag %q", fo.ID, name)
		}
		obj.SetFlag(flag)
	}
	return obj, nil
}

func ref(n int) gamedb.DBRef {
	if n <= 0 {
		return gamedb.Nothing
	}
	return gamedb.DBRef(n)
}
