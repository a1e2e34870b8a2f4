package output

import (
	"fmt"
	"io"
	"reflect"
	"strings"
	"text/tabwriter"
)

// Table is tabular data. Values implementing Tabular are rendered through
// their table form.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Tabular is implemented by results with a table rendering.
type Tabular interface {
	Table() *Table
}

// AddRow appends a row.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Render writes t aligned on tab stops.
func (t *Table) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(t.Headers) > 0 {
		fmt.Fprintln(tw, strings.Join(t.Headers, "\t"))
	}
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// TableFormatter renders Tables, Tabular values and structs.
type TableFormatter struct{}

// Format writes data as a table. A struct becomes a FIELD/VALUE table.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	switch d := data.(type) {
	case nil:
		return nil
	case *Table:
		return d.Render(w)
	case Tabular:
		return d.Table().Render(w)
	}

	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	switch {
	case v.Kind() == reflect.Struct:
		return structTable(v).Render(w)
	case v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Struct:
		return sliceTable(v).Render(w)
	default:
		_, err := fmt.Fprintln(w, formatValue(v))
		return err
	}
}

// sliceTable renders one row per element with upper-cased field names as
// headers.
func sliceTable(v reflect.Value) *Table {
	fields := tableFields(v.Type().Elem())
	t := &Table{}
	for _, f := range fields {
		t.Headers = append(t.Headers, strings.ToUpper(f.name))
	}
	for i := 0; i < v.Len(); i++ {
		row := make([]string, len(fields))
		for j, f := range fields {
			row[j] = formatValue(v.Index(i).Field(f.index))
		}
		t.AddRow(row...)
	}
	return t
}

func structTable(v reflect.Value) *Table {
	t := &Table{Headers: []string{"FIELD", "VALUE"}}
	for _, f := range tableFields(v.Type()) {
		t.AddRow(f.name, formatValue(v.Field(f.index)))
	}
	return t
}

type tableField struct {
	name  string
	index int
}

// tableFields lists the exported fields of typ named by their json tags.
func tableFields(typ reflect.Type) []tableField {
	var out []tableField
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if tag := field.Tag.Get("json"); tag != "" {
			if n := strings.Split(tag, ",")[0]; n == "-" {
				continue
			} else if n != "" {
				name = n
			}
		}
		out = append(out, tableField{name: name, index: i})
	}
	return out
}

func formatValue(v reflect.Value) string {
	if !v.IsValid() {
		return "-"
	}
	if v.Kind() == reflect.Interface || v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return "-"
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.String:
		if v.String() == "" {
			return "-"
		}
		return v.String()
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "-"
		}
		parts := make([]string, v.Len())
		for i := range parts {
			parts[i] = formatValue(v.Index(i))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(v.Interface())
	}
}
