package gamedb

import (
	"context"
	"errors"
	"testing"
)

func TestDatabaseCreateAllocatesIDs(t *testing.T) {
	ctx := context.Background()
	db := NewDatabase()

	a, err := db.Create(ctx, NewObject(TypeRoom, "A"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	b, _ := db.Create(ctx, NewObject(TypeRoom, "B"))
	if a.ID != 1 || b.ID != 2 {
		t.Errorf("ids = %d, %d; want 1, 2", a.ID, b.ID)
	}

	fixed := NewObject(TypeRoom, "Fixed")
	fixed.ID = 10
	if _, err := db.Create(ctx, fixed); err != nil {
		t.Fatalf("Create fixed: %v", err)
	}
	next, _ := db.Create(ctx, NewObject(TypeThing, "after"))
	if next.ID != 11 {
		t.Errorf("next id = %d, want 11", next.ID)
	}
	if _, err := db.Create(ctx, fixed); err == nil {
		t.Error("expected duplicate id error")
	}
}

func TestDatabaseReturnsCopies(t *testing.T) {
	ctx := context.Background()
	db := NewDatabase()
	room, _ := db.Create(ctx, NewObject(TypeRoom, "Original"))

	room.Name = "Changed"
	got, _ := db.FindOne(ctx, ByID(room.ID))
	if got.Name != "Original" {
		t.Fatalf("unsaved mutation leaked into store: %q", got.Name)
	}

	if err := db.Save(ctx, room); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, _ = db.FindOne(ctx, ByID(room.ID))
	if got.Name != "Changed" {
		t.Errorf("after Save name = %q", got.Name)
	}
}

func TestDatabaseSaveUnknown(t *testing.T) {
	db := NewDatabase()
	o := NewObject(TypeThing, "ghost")
	o.ID = 42
	err := db.Save(context.Background(), o)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Save unknown = %v, want ErrNotFound", err)
	}
}

func TestDatabaseFindAllOrdered(t *testing.T) {
	ctx := context.Background()
	db := NewDatabase()
	for _, n := range []string{"c", "a", "b"} {
		db.Create(ctx, NewObject(TypeThing, n))
	}
	objs, err := db.FindAll(ctx, Where(Eq(FieldType, TypeThing)))
	if err != nil {
		t.Fatal(err)
	}
	if len(objs) != 3 {
		t.Fatalf("got %d objects", len(objs))
	}
	for i := 1; i < len(objs); i++ {
		if objs[i-1].ID >= objs[i].ID {
			t.Errorf("not in id order: %d before %d", objs[i-1].ID, objs[i].ID)
		}
	}
	none, err := db.FindOne(ctx, Where(Eq(FieldName, "zzz")))
	if err != nil || none != nil {
		t.Errorf("FindOne miss = %v, %v", none, err)
	}
}
