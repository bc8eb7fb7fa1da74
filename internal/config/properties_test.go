package config

import (
	"context"
	"testing"

	"github.com/tasklog/tasklog/internal/storage/memstore"
)

func TestDefaultProperties(t *testing.T) {
	schema := NewPropertySchema(nil)
	for _, name := range []string{"id", "name", "status", "created", "author", "description"} {
		if _, ok := schema.Find(name); !ok {
			t.Errorf("default property %s missing", name)
		}
	}
	def, _ := schema.Find("created")
	if def.ValueType != TypeDatetime {
		t.Errorf("created type = %q", def.ValueType)
	}
}

func TestPropertiesFallBackOnDamage(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cfg := New(store, nil)

	if err := store.SetConfig(ctx, KeyProperties, "[broken"); err != nil {
		t.Fatal(err)
	}
	if _, ok := cfg.Properties(ctx).Find("id"); !ok {
		t.Error("damaged schema should fall back to defaults")
	}
}

func TestPropertySchemaRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cfg := New(store, nil)

	schema := cfg.Properties(ctx)
	if err := schema.Add(PropertyDef{Name: "priority", ValueType: TypeInteger}); err != nil {
		t.Fatal(err)
	}
	if err := cfg.SaveProperties(ctx, schema); err != nil {
		t.Fatal(err)
	}

	reloaded := cfg.Properties(ctx)
	def, ok := reloaded.Find("priority")
	if !ok {
		t.Fatal("priority missing after reload")
	}
	if def.Color != "Default" {
		t.Errorf("color defaulted to %q", def.Color)
	}

	if err := cfg.ResetProperties(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := cfg.Properties(ctx).Find("priority"); ok {
		t.Error("priority survived reset")
	}
}

func TestPropertyAddValidation(t *testing.T) {
	schema := NewPropertySchema(nil)
	if err := schema.Add(PropertyDef{Name: "id", ValueType: TypeString}); err == nil {
		t.Error("duplicate name accepted")
	}
	if err := schema.Add(PropertyDef{Name: "x", ValueType: "json"}); err == nil {
		t.Error("invalid value type accepted")
	}
	if err := schema.Add(PropertyDef{ValueType: TypeString}); err == nil {
		t.Error("empty name accepted")
	}
}

func TestPropertyDeleteProtectsCore(t *testing.T) {
	schema := NewPropertySchema(nil)
	for _, name := range []string{"id", "name", "created"} {
		if err := schema.Delete(name); err == nil {
			t.Errorf("core property %s deleted", name)
		}
	}
	if err := schema.Delete("author"); err != nil {
		t.Fatal(err)
	}
	if _, ok := schema.Find("author"); ok {
		t.Error("author still present")
	}
	if err := schema.Delete("nope"); err == nil {
		t.Error("deleting unknown property succeeded")
	}
}

func TestPropertySetRename(t *testing.T) {
	schema := NewPropertySchema(nil)
	if err := schema.Add(PropertyDef{Name: "assignee", ValueType: TypeString}); err != nil {
		t.Fatal(err)
	}

	prev, err := schema.Set("assignee", "name", "owner")
	if err != nil {
		t.Fatal(err)
	}
	if prev != "assignee" {
		t.Errorf("prev = %q", prev)
	}
	if _, ok := schema.Find("owner"); !ok {
		t.Error("rename not applied")
	}

	if _, err := schema.Set("owner", "name", "status"); err == nil {
		t.Error("rename onto existing property accepted")
	}
	if _, err := schema.Set("owner", "value_type", "blob"); err == nil {
		t.Error("invalid value type accepted")
	}
	prev, err = schema.Set("owner", "value_type", TypeText)
	if err != nil || prev != TypeString {
		t.Errorf("value_type prev = %q, %v", prev, err)
	}
}

func TestEnumLifecycle(t *testing.T) {
	schema := NewPropertySchema(nil)
	if err := schema.Add(PropertyDef{Name: "priority", ValueType: TypeString}); err != nil {
		t.Fatal(err)
	}

	if err := schema.AddEnum("priority", EnumValue{Name: "high", Color: "Red"}); err != nil {
		t.Fatal(err)
	}
	if err := schema.AddEnum("priority", EnumValue{Name: "low"}); err != nil {
		t.Fatal(err)
	}
	if err := schema.AddEnum("priority", EnumValue{Name: "high"}); err == nil {
		t.Error("duplicate enum value accepted")
	}
	if err := schema.AddEnum("missing", EnumValue{Name: "x"}); err == nil {
		t.Error("enum on unknown property accepted")
	}

	got, err := schema.GetEnum("priority", "low", "color")
	if err != nil || got != "Default" {
		t.Errorf("GetEnum(low, color) = %q, %v", got, err)
	}

	prev, err := schema.SetEnum("priority", "low", "color", "DarkGray")
	if err != nil || prev != "Default" {
		t.Errorf("SetEnum prev = %q, %v", prev, err)
	}
	if _, err := schema.SetEnum("priority", "low", "name", "high"); err == nil {
		t.Error("enum rename onto existing value accepted")
	}
	prev, err = schema.SetEnum("priority", "low", "name", "minor")
	if err != nil || prev != "low" {
		t.Errorf("SetEnum rename prev = %q, %v", prev, err)
	}

	if err := schema.DeleteEnum("priority", "minor"); err != nil {
		t.Fatal(err)
	}
	if _, err := schema.GetEnum("priority", "minor", "name"); err == nil {
		t.Error("deleted enum value still present")
	}
}

func TestCondFormatLifecycle(t *testing.T) {
	schema := NewPropertySchema(nil)
	if err := schema.AddCondFormat("status", CondFormat{Expr: "status == CLOSED", Color: "DarkGray"}); err != nil {
		t.Fatal(err)
	}
	if err := schema.AddCondFormat("status", CondFormat{Color: "Red"}); err == nil {
		t.Error("empty expression accepted")
	}
	if err := schema.DeleteCondFormat("status", "status == CLOSED"); err != nil {
		t.Fatal(err)
	}
	if err := schema.DeleteCondFormat("status", "status == CLOSED"); err == nil {
		t.Error("deleting missing rule succeeded")
	}
}

func TestColorForPrecedence(t *testing.T) {
	schema := NewPropertySchema([]PropertyDef{{
		Name:      "priority",
		ValueType: TypeString,
		Color:     "White",
		EnumValues: []EnumValue{
			{Name: "high", Color: "Red", Style: "bold"},
		},
		CondFormat: []CondFormat{
			{Expr: "priority == urgent", Color: "Magenta"},
		},
	}})

	color, style := schema.ColorFor("priority", "high", nil, CompareEvaluator{})
	if color != "Red" || style != "bold" {
		t.Errorf("enum color = %q/%q", color, style)
	}

	bindings := map[string]string{"priority": "urgent"}
	color, _ = schema.ColorFor("priority", "urgent", bindings, CompareEvaluator{})
	if color != "Magenta" {
		t.Errorf("cond format color = %q", color)
	}

	color, _ = schema.ColorFor("priority", "other", map[string]string{"priority": "other"}, CompareEvaluator{})
	if color != "White" {
		t.Errorf("base color = %q", color)
	}

	color, _ = schema.ColorFor("unknown", "x", nil, nil)
	if color != "Default" {
		t.Errorf("unknown property color = %q", color)
	}
}

func TestCompareEvaluator(t *testing.T) {
	eval := CompareEvaluator{}
	bindings := map[string]string{
		"id":     "10",
		"status": "OPEN",
		"name":   "fix the build",
	}

	tests := []struct {
		expr string
		want bool
	}{
		{"id > 9", true},
		{"id > 10", false},
		{"id >= 10", true},
		{"id == 10", true},
		{"id != 10", false},
		{"id < 2", false}, // numeric, not lexical
		{"status == OPEN", true},
		{"status != CLOSED", true},
		{"status < ZZZ", true},
		{"name == fix the build", true},
	}
	for _, tt := range tests {
		got, err := eval.Eval(tt.expr, bindings)
		if err != nil {
			t.Errorf("Eval(%q) error: %v", tt.expr, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Eval(%q) = %t, want %t", tt.expr, got, tt.want)
		}
	}

	if got, err := eval.Eval("missing == 1", bindings); err != nil || got {
		t.Errorf("unbound property should evaluate false, got %t, %v", got, err)
	}
	if _, err := eval.Eval("id >", bindings); err == nil {
		t.Error("short expression accepted")
	}
	if _, err := eval.Eval("id ~= 10", bindings); err == nil {
		t.Error("unknown operator accepted")
	}
}
