package ui

import (
	"strconv"
	"strings"
	"time"

	"github.com/tasklog/tasklog/internal/config"
	"github.com/tasklog/tasklog/internal/types"
)

// Renderer formats task fields for terminal output according to the
// configured status and property schemas.
type Renderer struct {
	Statuses   *config.StatusSchema
	Properties *config.PropertySchema
	Eval       config.Evaluator
}

// NewRenderer builds a renderer over the given schemas with the default
// comparison evaluator for conditional formats.
func NewRenderer(statuses *config.StatusSchema, props *config.PropertySchema) *Renderer {
	return &Renderer{Statuses: statuses, Properties: props, Eval: config.CompareEvaluator{}}
}

// TaskLine renders one list row: the requested columns space-separated,
// each styled according to its definition. Columns the task does not
// carry render empty.
func (r *Renderer) TaskLine(task *types.Task, columns []string) string {
	bindings := TaskBindings(task)
	parts := make([]string, 0, len(columns))
	for _, column := range columns {
		var value string
		if column == "id" {
			value = strconv.Itoa(task.ID)
		} else {
			value = task.Properties.GetDefault(column, "")
		}
		if column == types.PropStatus {
			parts = append(parts, r.FormatStatus(value))
		} else {
			parts = append(parts, r.FormatValue(column, value, bindings))
		}
	}
	return strings.Join(parts, " ")
}

// FormatStatus styles a status value with its configured color. Values
// outside the schema render unstyled.
func (r *Renderer) FormatStatus(value string) string {
	status, ok := r.Statuses.Find(value)
	if !ok {
		return value
	}
	return Stylize(value, status.Color, status.Style)
}

// FormatValue formats and styles one property value. Datetime properties
// are converted from unix seconds to local time; enum values and
// conditional format rules pick the color when they match.
func (r *Renderer) FormatValue(name, value string, bindings map[string]string) string {
	def, ok := r.Properties.Find(name)
	if !ok {
		return value
	}
	if def.ValueType == config.TypeDatetime {
		value = FormatTimestamp(value)
	}
	color, style := r.Properties.ColorFor(name, value, bindings, r.Eval)
	return Stylize(value, color, style)
}

// FormatTimestamp renders unix seconds as local "2006-01-02 15:04".
// Zero and unparsable values render empty.
func FormatTimestamp(value string) string {
	secs, err := strconv.ParseInt(value, 10, 64)
	if err != nil || secs == 0 {
		return ""
	}
	return time.Unix(secs, 0).Local().Format("2006-01-02 15:04")
}

// TaskBindings collects a task's properties plus its ID into the value
// map conditional format expressions evaluate against.
func TaskBindings(task *types.Task) map[string]string {
	bindings := make(map[string]string, task.Properties.Len()+1)
	for _, key := range task.Properties.Keys() {
		bindings[key], _ = task.Properties.Get(key)
	}
	bindings["id"] = strconv.Itoa(task.ID)
	return bindings
}
