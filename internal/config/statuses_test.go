package config

import (
	"context"
	"testing"

	"github.com/tasklog/tasklog/internal/storage/memstore"
)

func TestDefaultStatuses(t *testing.T) {
	schema := NewStatusSchema(nil)
	all := schema.All()
	if len(all) != 3 {
		t.Fatalf("got %d statuses, want 3", len(all))
	}
	if schema.Starting().Name != "OPEN" {
		t.Errorf("starting status = %q", schema.Starting().Name)
	}
	if !schema.IsDone("CLOSED") {
		t.Error("CLOSED should be done")
	}
	if schema.IsDone("OPEN") {
		t.Error("OPEN should not be done")
	}
}

func TestParseStatusSchemaLenient(t *testing.T) {
	schema, err := ParseStatusSchema("")
	if err != nil {
		t.Fatal(err)
	}
	if schema.Starting().Name != "OPEN" {
		t.Error("empty input should yield defaults")
	}

	if _, err := ParseStatusSchema("{not json"); err == nil {
		t.Error("garbage should not parse")
	}

	schema, err = ParseStatusSchema(`[{"name":"TODO","shortcut":"t","color":"Blue"}]`)
	if err != nil {
		t.Fatal(err)
	}
	if schema.Starting().Name != "TODO" {
		t.Errorf("starting = %q", schema.Starting().Name)
	}
}

func TestStatusesFallBackOnDamage(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cfg := New(store, nil)

	if err := store.SetConfig(ctx, KeyStatuses, "{broken"); err != nil {
		t.Fatal(err)
	}
	schema := cfg.Statuses(ctx)
	if schema.Starting().Name != "OPEN" {
		t.Error("damaged schema should fall back to defaults")
	}
}

func TestStatusSchemaRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cfg := New(store, nil)

	schema := cfg.Statuses(ctx)
	if err := schema.Add(Status{Name: "BLOCKED", Shortcut: "b", Color: "Magenta"}); err != nil {
		t.Fatal(err)
	}
	if err := cfg.SaveStatuses(ctx, schema); err != nil {
		t.Fatal(err)
	}

	reloaded := cfg.Statuses(ctx)
	if _, ok := reloaded.Find("BLOCKED"); !ok {
		t.Error("BLOCKED missing after reload")
	}

	if err := cfg.ResetStatuses(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := cfg.Statuses(ctx).Find("BLOCKED"); ok {
		t.Error("BLOCKED survived reset")
	}
	// reset of pristine config is not an error
	if err := cfg.ResetStatuses(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestStatusAddRejectsDuplicates(t *testing.T) {
	schema := NewStatusSchema(nil)
	if err := schema.Add(Status{Name: "OPEN", Shortcut: "x"}); err == nil {
		t.Error("duplicate name accepted")
	}
	if err := schema.Add(Status{Name: "OTHER", Shortcut: "o"}); err == nil {
		t.Error("duplicate shortcut accepted")
	}
	if err := schema.Add(Status{Shortcut: "z"}); err == nil {
		t.Error("empty name accepted")
	}
}

func TestStatusDelete(t *testing.T) {
	schema := NewStatusSchema(nil)
	if err := schema.Delete("IN_PROGRESS"); err != nil {
		t.Fatal(err)
	}
	if schema.Valid("IN_PROGRESS") {
		t.Error("IN_PROGRESS still present")
	}
	if err := schema.Delete("MISSING"); err == nil {
		t.Error("deleting unknown status succeeded")
	}

	if err := schema.Delete("OPEN"); err != nil {
		t.Fatal(err)
	}
	if err := schema.Delete("CLOSED"); err == nil {
		t.Error("deleted the last status")
	}
}

func TestStatusSetReturnsPrevious(t *testing.T) {
	schema := NewStatusSchema(nil)

	prev, err := schema.Set("OPEN", "name", "TODO")
	if err != nil {
		t.Fatal(err)
	}
	if prev != "OPEN" {
		t.Errorf("prev = %q, want OPEN", prev)
	}
	if !schema.Valid("TODO") || schema.Valid("OPEN") {
		t.Error("rename not applied")
	}

	if _, err := schema.Set("TODO", "name", "CLOSED"); err == nil {
		t.Error("rename onto existing name accepted")
	}
	if _, err := schema.Set("TODO", "shortcut", "c"); err == nil {
		t.Error("shortcut collision accepted")
	}

	prev, err = schema.Set("TODO", "is_done", "true")
	if err != nil || prev != "false" {
		t.Errorf("is_done prev = %q, %v", prev, err)
	}
	if !schema.IsDone("TODO") {
		t.Error("is_done not applied")
	}
	if _, err := schema.Set("TODO", "is_done", "maybe"); err == nil {
		t.Error("invalid boolean accepted")
	}

	if _, err := schema.Set("TODO", "flavor", "x"); err == nil {
		t.Error("unknown parameter accepted")
	}
	if _, err := schema.Set("MISSING", "color", "Red"); err == nil {
		t.Error("unknown status accepted")
	}
}

func TestStatusFullName(t *testing.T) {
	schema := NewStatusSchema(nil)
	if got := schema.FullName("c"); got != "CLOSED" {
		t.Errorf("FullName(c) = %q", got)
	}
	if got := schema.FullName("CLOSED"); got != "CLOSED" {
		t.Errorf("FullName(CLOSED) = %q", got)
	}
	if got := schema.FullName("zz"); got != "zz" {
		t.Errorf("FullName(zz) = %q", got)
	}
}

func TestStatusGet(t *testing.T) {
	schema := NewStatusSchema(nil)
	got, err := schema.Get("CLOSED", "is_done")
	if err != nil || got != "true" {
		t.Errorf("Get(CLOSED, is_done) = %q, %v", got, err)
	}
	got, err = schema.Get("OPEN", "color")
	if err != nil || got != "Red" {
		t.Errorf("Get(OPEN, color) = %q, %v", got, err)
	}
	if _, err := schema.Get("OPEN", "bogus"); err == nil {
		t.Error("unknown parameter accepted")
	}
}

func TestLocalFileSeedsStatuses(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	local := &LocalFile{Statuses: []Status{
		{Name: "NEW", Shortcut: "n", Color: "Blue"},
		{Name: "DONE", Shortcut: "d", Color: "Green", IsDone: true},
	}}
	cfg := New(store, local)

	schema := cfg.Statuses(ctx)
	if schema.Starting().Name != "NEW" {
		t.Errorf("starting = %q, want NEW", schema.Starting().Name)
	}

	// Git config wins over the local file once set.
	if err := cfg.SaveStatuses(ctx, NewStatusSchema(nil)); err != nil {
		t.Fatal(err)
	}
	if cfg.Statuses(ctx).Starting().Name != "OPEN" {
		t.Error("git config schema should beat the local file")
	}
}
