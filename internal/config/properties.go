package config

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tasklog/tasklog/internal/storage"
)

// Value types a property can declare.
const (
	TypeString   = "string"
	TypeInteger  = "integer"
	TypeDatetime = "datetime"
	TypeText     = "text"
)

// EnumValue is one allowed value of an enumerated property, with its own
// presentation.
type EnumValue struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Style string `json:"style,omitempty"`
}

// CondFormat colors a property's cell when its expression holds for the
// task being rendered.
type CondFormat struct {
	Expr  string `json:"expr"`
	Color string `json:"color"`
	Style string `json:"style,omitempty"`
}

// PropertyDef describes one task property: its type and how to render it.
type PropertyDef struct {
	Name       string       `json:"name"`
	ValueType  string       `json:"value_type"`
	Color      string       `json:"color"`
	Style      string       `json:"style,omitempty"`
	EnumValues []EnumValue  `json:"enum_values,omitempty"`
	CondFormat []CondFormat `json:"cond_format,omitempty"`
}

// DefaultProperties covers the fields every task carries.
func DefaultProperties() []PropertyDef {
	return []PropertyDef{
		{Name: "id", ValueType: TypeInteger, Color: "DarkGray"},
		{Name: "name", ValueType: TypeString, Color: "Default"},
		{Name: "status", ValueType: TypeString, Color: "Default"},
		{Name: "created", ValueType: TypeDatetime, Color: "239"},
		{Name: "author", ValueType: TypeString, Color: "Cyan"},
		{Name: "description", ValueType: TypeText, Color: "Default"},
	}
}

// ValidValueType reports whether t names a supported property type.
func ValidValueType(t string) bool {
	switch t {
	case TypeString, TypeInteger, TypeDatetime, TypeText:
		return true
	}
	return false
}

// PropertySchema is the ordered set of property definitions for one
// repository.
type PropertySchema struct {
	props []PropertyDef
}

// Properties loads the property schema from git config, falling back to
// the defaults when the stored value is missing or unreadable.
func (c *Config) Properties(ctx context.Context) *PropertySchema {
	raw, err := c.store.GetConfig(ctx, KeyProperties)
	if err != nil {
		return &PropertySchema{props: DefaultProperties()}
	}
	schema, err := ParsePropertySchema(raw)
	if err != nil {
		return &PropertySchema{props: DefaultProperties()}
	}
	return schema
}

// SaveProperties persists the schema to git config.
func (c *Config) SaveProperties(ctx context.Context, schema *PropertySchema) error {
	raw, err := json.Marshal(schema.props)
	if err != nil {
		return err
	}
	return c.store.SetConfig(ctx, KeyProperties, string(raw))
}

// ResetProperties drops any customized schema, reverting to the defaults.
func (c *Config) ResetProperties(ctx context.Context) error {
	err := c.store.UnsetConfig(ctx, KeyProperties)
	if err != nil && err != storage.ErrNotFound {
		return err
	}
	return nil
}

// ParsePropertySchema decodes a schema from its JSON form.
func ParsePropertySchema(raw string) (*PropertySchema, error) {
	if strings.TrimSpace(raw) == "" {
		return &PropertySchema{props: DefaultProperties()}, nil
	}
	var props []PropertyDef
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, fmt.Errorf("parse properties: %w", err)
	}
	if len(props) == 0 {
		return &PropertySchema{props: DefaultProperties()}, nil
	}
	return &PropertySchema{props: props}, nil
}

// NewPropertySchema builds a schema from an explicit definition list.
func NewPropertySchema(props []PropertyDef) *PropertySchema {
	if len(props) == 0 {
		return &PropertySchema{props: DefaultProperties()}
	}
	return &PropertySchema{props: append([]PropertyDef(nil), props...)}
}

// MarshalJSON renders the schema as the definition array it wraps.
func (p *PropertySchema) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.props)
}

// All returns the definitions in declaration order.
func (p *PropertySchema) All() []PropertyDef {
	return append([]PropertyDef(nil), p.props...)
}

// Find returns the definition for the named property, if any.
func (p *PropertySchema) Find(name string) (PropertyDef, bool) {
	for _, def := range p.props {
		if def.Name == name {
			return def, true
		}
	}
	return PropertyDef{}, false
}

// Add appends a property definition.
func (p *PropertySchema) Add(def PropertyDef) error {
	if def.Name == "" {
		return fmt.Errorf("property name cannot be empty")
	}
	if !ValidValueType(def.ValueType) {
		return fmt.Errorf("invalid value type: %s", def.ValueType)
	}
	for _, existing := range p.props {
		if existing.Name == def.Name {
			return fmt.Errorf("property %s already exists", def.Name)
		}
	}
	if def.Color == "" {
		def.Color = "Default"
	}
	p.props = append(p.props, def)
	return nil
}

// Delete removes the named property definition. The core fields cannot be
// removed.
func (p *PropertySchema) Delete(name string) error {
	switch name {
	case "id", "name", "created":
		return fmt.Errorf("property %s cannot be deleted", name)
	}
	for i, def := range p.props {
		if def.Name == name {
			p.props = append(p.props[:i], p.props[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("property %s not found", name)
}

// Get returns one field of the named property. param is one of name,
// value_type, color, style.
func (p *PropertySchema) Get(name, param string) (string, error) {
	def, ok := p.Find(name)
	if !ok {
		return "", fmt.Errorf("property %s not found", name)
	}
	switch param {
	case "name":
		return def.Name, nil
	case "value_type":
		return def.ValueType, nil
	case "color":
		return def.Color, nil
	case "style":
		return def.Style, nil
	default:
		return "", fmt.Errorf("unknown parameter: %s", param)
	}
}

// Set updates one field of the named property and returns the previous
// value. Renames return the old name so callers can rewrite tasks that
// still carry it.
func (p *PropertySchema) Set(name, param, value string) (string, error) {
	idx := -1
	for i, def := range p.props {
		if def.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", fmt.Errorf("property %s not found", name)
	}
	def := &p.props[idx]
	switch param {
	case "name":
		if value == "" {
			return "", fmt.Errorf("property name cannot be empty")
		}
		for i, other := range p.props {
			if i != idx && other.Name == value {
				return "", fmt.Errorf("Name already exists for another property")
			}
		}
		prev := def.Name
		def.Name = value
		return prev, nil
	case "value_type":
		if !ValidValueType(value) {
			return "", fmt.Errorf("invalid value type: %s", value)
		}
		prev := def.ValueType
		def.ValueType = value
		return prev, nil
	case "color":
		prev := def.Color
		def.Color = value
		return prev, nil
	case "style":
		prev := def.Style
		def.Style = value
		return prev, nil
	default:
		return "", fmt.Errorf("unknown parameter: %s", param)
	}
}

// AddEnum appends an allowed value to the named property.
func (p *PropertySchema) AddEnum(property string, value EnumValue) error {
	idx := p.index(property)
	if idx < 0 {
		return fmt.Errorf("property %s not found", property)
	}
	for _, existing := range p.props[idx].EnumValues {
		if existing.Name == value.Name {
			return fmt.Errorf("enum value %s already exists", value.Name)
		}
	}
	if value.Color == "" {
		value.Color = "Default"
	}
	p.props[idx].EnumValues = append(p.props[idx].EnumValues, value)
	return nil
}

// GetEnum returns one field of an enum value. param is one of name,
// color, style.
func (p *PropertySchema) GetEnum(property, name, param string) (string, error) {
	idx := p.index(property)
	if idx < 0 {
		return "", fmt.Errorf("property %s not found", property)
	}
	for _, value := range p.props[idx].EnumValues {
		if value.Name != name {
			continue
		}
		switch param {
		case "name":
			return value.Name, nil
		case "color":
			return value.Color, nil
		case "style":
			return value.Style, nil
		default:
			return "", fmt.Errorf("unknown parameter: %s", param)
		}
	}
	return "", fmt.Errorf("enum value %s not found", name)
}

// SetEnum updates one field of an enum value and returns the previous
// value.
func (p *PropertySchema) SetEnum(property, name, param, value string) (string, error) {
	idx := p.index(property)
	if idx < 0 {
		return "", fmt.Errorf("property %s not found", property)
	}
	values := p.props[idx].EnumValues
	for i := range values {
		if values[i].Name != name {
			continue
		}
		switch param {
		case "name":
			if value == "" {
				return "", fmt.Errorf("enum value name cannot be empty")
			}
			for j, other := range values {
				if j != i && other.Name == value {
					return "", fmt.Errorf("enum value %s already exists", value)
				}
			}
			prev := values[i].Name
			values[i].Name = value
			return prev, nil
		case "color":
			prev := values[i].Color
			values[i].Color = value
			return prev, nil
		case "style":
			prev := values[i].Style
			values[i].Style = value
			return prev, nil
		default:
			return "", fmt.Errorf("unknown parameter: %s", param)
		}
	}
	return "", fmt.Errorf("enum value %s not found", name)
}

// DeleteEnum removes an allowed value from the named property.
func (p *PropertySchema) DeleteEnum(property, name string) error {
	idx := p.index(property)
	if idx < 0 {
		return fmt.Errorf("property %s not found", property)
	}
	values := p.props[idx].EnumValues
	for i, value := range values {
		if value.Name == name {
			p.props[idx].EnumValues = append(values[:i], values[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("enum value %s not found", name)
}

// AddCondFormat appends a conditional format rule to the named property.
func (p *PropertySchema) AddCondFormat(property string, rule CondFormat) error {
	idx := p.index(property)
	if idx < 0 {
		return fmt.Errorf("property %s not found", property)
	}
	if rule.Expr == "" {
		return fmt.Errorf("expression cannot be empty")
	}
	if rule.Color == "" {
		rule.Color = "Default"
	}
	p.props[idx].CondFormat = append(p.props[idx].CondFormat, rule)
	return nil
}

// ClearCondFormat removes every conditional format rule from the named
// property.
func (p *PropertySchema) ClearCondFormat(property string) error {
	idx := p.index(property)
	if idx < 0 {
		return fmt.Errorf("property %s not found", property)
	}
	p.props[idx].CondFormat = nil
	return nil
}

// DeleteCondFormat removes the rule with the given expression.
func (p *PropertySchema) DeleteCondFormat(property, expr string) error {
	idx := p.index(property)
	if idx < 0 {
		return fmt.Errorf("property %s not found", property)
	}
	rules := p.props[idx].CondFormat
	for i, rule := range rules {
		if rule.Expr == expr {
			p.props[idx].CondFormat = append(rules[:i], rules[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("conditional format %q not found", expr)
}

func (p *PropertySchema) index(name string) int {
	for i, def := range p.props {
		if def.Name == name {
			return i
		}
	}
	return -1
}

// Evaluator decides whether a conditional format expression holds for a
// task, given its property values.
type Evaluator interface {
	Eval(expr string, bindings map[string]string) (bool, error)
}

// ColorFor picks the color and style for rendering one property value:
// an enum value's own colors win, then the first matching conditional
// format, then the property's base colors. eval may be nil to skip
// conditional formats.
func (p *PropertySchema) ColorFor(name, value string, bindings map[string]string, eval Evaluator) (string, string) {
	def, ok := p.Find(name)
	if !ok {
		return "Default", ""
	}
	for _, ev := range def.EnumValues {
		if ev.Name == value {
			return ev.Color, ev.Style
		}
	}
	if eval != nil {
		for _, rule := range def.CondFormat {
			if ok, err := eval.Eval(rule.Expr, bindings); err == nil && ok {
				return rule.Color, rule.Style
			}
		}
	}
	return def.Color, def.Style
}

// CompareEvaluator evaluates expressions of the form "<property> <op>
// <value>" with ops ==, !=, >, >=, <, <=. Operands that both parse as
// numbers compare numerically, otherwise lexically.
type CompareEvaluator struct{}

// Eval implements Evaluator.
func (CompareEvaluator) Eval(expr string, bindings map[string]string) (bool, error) {
	fields := strings.Fields(expr)
	if len(fields) < 3 {
		return false, fmt.Errorf("invalid expression: %s", expr)
	}
	prop, op := fields[0], fields[1]
	want := strings.Join(fields[2:], " ")
	have, ok := bindings[prop]
	if !ok {
		return false, nil
	}
	cmp, err := compareValues(have, want)
	if err != nil {
		return false, err
	}
	switch op {
	case "==":
		return cmp == 0, nil
	case "!=":
		return cmp != 0, nil
	case ">":
		return cmp > 0, nil
	case ">=":
		return cmp >= 0, nil
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	default:
		return false, fmt.Errorf("unknown operator: %s", op)
	}
}

func compareValues(a, b string) (int, error) {
	na, errA := strconv.ParseFloat(a, 64)
	nb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case na < nb:
			return -1, nil
		case na > nb:
			return 1, nil
		default:
			return 0, nil
		}
	}
	return strings.Compare(a, b), nil
}
