package openapi

import (
	"reflect"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
)

var timeType = reflect.TypeOf(time.Time{})

// schemaFor registers named structs under components and returns a reference
// to them. Field names follow json tags; omitempty marks a field optional and
// the doc and example tags fill in description and example.
func (d *Document) schemaFor(example any) *openapi3.SchemaRef {
	d.mu.Lock()
	defer d.mu.Unlock()

	if example == nil {
		return openapi3.NewObjectSchema().NewRef()
	}
	return d.schemaFromType(reflect.TypeOf(example), map[reflect.Type]bool{})
}

func (d *Document) schemaFromType(t reflect.Type, visiting map[reflect.Type]bool) *openapi3.SchemaRef {
	if t.Kind() == reflect.Pointer {
		ref := d.schemaFromType(t.Elem(), visiting)
		if ref.Ref != "" {
			return &openapi3.SchemaRef{Value: &openapi3.Schema{AllOf: openapi3.SchemaRefs{ref}, Nullable: true}}
		}
		ref.Value.Nullable = true
		return ref
	}

	switch t.Kind() {
	case reflect.String:
		return openapi3.NewStringSchema().NewRef()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return openapi3.NewIntegerSchema().NewRef()
	case reflect.Float32, reflect.Float64:
		return openapi3.NewFloat64Schema().NewRef()
	case reflect.Bool:
		return openapi3.NewBoolSchema().NewRef()
	case reflect.Slice, reflect.Array:
		s := openapi3.NewArraySchema()
		s.Items = d.schemaFromType(t.Elem(), visiting)
		return s.NewRef()
	case reflect.Map:
		s := openapi3.NewObjectSchema()
		s.AdditionalProperties = openapi3.AdditionalProperties{Schema: d.schemaFromType(t.Elem(), visiting)}
		return s.NewRef()
	case reflect.Struct:
		return d.structSchema(t, visiting)
	default:
		return openapi3.NewObjectSchema().NewRef()
	}
}

func (d *Document) structSchema(t reflect.Type, visiting map[reflect.Type]bool) *openapi3.SchemaRef {
	if t == timeType {
		return openapi3.NewDateTimeSchema().NewRef()
	}
	if t.Name() == "" {
		return d.buildStruct(t, visiting).NewRef()
	}

	name := t.Name()
	ref := "#/components/schemas/" + name
	if _, ok := d.spec.Components.Schemas[name]; ok || visiting[t] {
		return openapi3.NewSchemaRef(ref, nil)
	}

	visiting[t] = true
	d.spec.Components.Schemas[name] = d.buildStruct(t, visiting).NewRef()
	delete(visiting, t)

	return openapi3.NewSchemaRef(ref, nil)
}

func (d *Document) buildStruct(t reflect.Type, visiting map[reflect.Type]bool) *openapi3.Schema {
	schema := openapi3.NewObjectSchema()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get("json")
		if tag == "-" {
			continue
		}
		parts := strings.Split(tag, ",")
		name := field.Name
		if parts[0] != "" {
			name = parts[0]
		}

		prop := d.schemaFromType(field.Type, visiting)
		if prop.Value != nil {
			if doc := field.Tag.Get("doc"); doc != "" {
				prop.Value.Description = doc
			}
			if ex := field.Tag.Get("example"); ex != "" {
				prop.Value.Example = ex
			}
		}
		schema.WithPropertyRef(name, prop)

		optional := false
		for _, opt := range parts[1:] {
			if opt == "omitempty" {
				optional = true
			}
		}
		if !optional {
			schema.Required = append(schema.Required, name)
		}
	}

	return schema
}
