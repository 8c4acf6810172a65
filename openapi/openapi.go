package openapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/labstack/echo/v4"
	"gopkg.in/yaml.v3"
)

// Document is a thread-safe builder for the service's OpenAPI 3 description.
type Document struct {
	mu   sync.RWMutex
	spec *openapi3.T
}

func New(title, version string) *Document {
	return &Document{
		spec: &openapi3.T{
			OpenAPI: "3.0.3",
			Info: &openapi3.Info{
				Title:   title,
				Version: version,
			},
			Paths:      openapi3.NewPaths(),
			Components: &openapi3.Components{Schemas: make(openapi3.Schemas)},
		},
	}
}

func (d *Document) Description(desc string) *Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.spec.Info.Description = desc
	return d
}

func (d *Document) Server(url, description string) *Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.spec.Servers = append(d.spec.Servers, &openapi3.Server{URL: url, Description: description})
	return d
}

func (d *Document) Tag(name, description string) *Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.spec.Tags = append(d.spec.Tags, &openapi3.Tag{Name: name, Description: description})
	return d
}

func (d *Document) BearerAuth(name, description string) *Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.spec.Components.SecuritySchemes == nil {
		d.spec.Components.SecuritySchemes = make(openapi3.SecuritySchemes)
	}
	d.spec.Components.SecuritySchemes[name] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
			Description:  description,
		},
	}
	return d
}

func (d *Document) Spec() *openapi3.T {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.spec
}

// Validate checks the assembled document against the OpenAPI 3 schema rules.
func (d *Document) Validate(ctx context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.spec.Validate(ctx)
}

func (d *Document) JSON() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return json.MarshalIndent(d.spec, "", "  ")
}

func (d *Document) YAML() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	intermediate, err := d.spec.MarshalYAML()
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(intermediate)
}

func (d *Document) JSONHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := d.JSON()
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to render document")
		}
		return c.JSONBlob(http.StatusOK, data)
	}
}

func (d *Document) YAMLHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := d.YAML()
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to render document")
		}
		return c.Blob(http.StatusOK, "application/yaml", data)
	}
}

func (d *Document) DocsHandler(specPath string) echo.HandlerFunc {
	page := `<!DOCTYPE html>
<html>
<head>
    <title>API Documentation</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        SwaggerUIBundle({url: "` + specPath + `", dom_id: '#swagger-ui'});
    </script>
</body>
</html>`
	return func(c echo.Context) error {
		return c.HTML(http.StatusOK, page)
	}
}

// Operation starts documenting method on an echo-style path. Nothing is
// recorded until Register is called.
func (d *Document) Operation(method, path string) *Operation {
	op := &Operation{
		doc:       d,
		method:    strings.ToUpper(method),
		path:      toOpenAPIPath(path),
		operation: &openapi3.Operation{Responses: openapi3.NewResponses()},
	}
	for _, name := range pathParams(path) {
		op.operation.Parameters = append(op.operation.Parameters, &openapi3.ParameterRef{
			Value: &openapi3.Parameter{
				Name:     name,
				In:       openapi3.ParameterInPath,
				Required: true,
				Schema:   openapi3.NewStringSchema().NewRef(),
			},
		})
	}
	return op
}

type Operation struct {
	doc       *Document
	method    string
	path      string
	operation *openapi3.Operation
}

func (o *Operation) Summary(summary string) *Operation {
	o.operation.Summary = summary
	return o
}

func (o *Operation) Description(description string) *Operation {
	o.operation.Description = description
	return o
}

func (o *Operation) ID(id string) *Operation {
	o.operation.OperationID = id
	return o
}

func (o *Operation) Tags(tags ...string) *Operation {
	o.operation.Tags = append(o.operation.Tags, tags...)
	return o
}

func (o *Operation) Body(example any, description string) *Operation {
	o.operation.RequestBody = &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().
			WithDescription(description).
			WithRequired(true).
			WithJSONSchemaRef(o.doc.schemaFor(example)),
	}
	return o
}

func (o *Operation) Response(status int, example any, description string) *Operation {
	resp := openapi3.NewResponse().WithDescription(description)
	if example != nil {
		resp = resp.WithJSONSchemaRef(o.doc.schemaFor(example))
	}
	o.operation.Responses.Set(strconv.Itoa(status), &openapi3.ResponseRef{Value: resp})
	return o
}

func (o *Operation) Security(schemes ...string) *Operation {
	if o.operation.Security == nil {
		o.operation.Security = openapi3.NewSecurityRequirements()
	}
	for _, scheme := range schemes {
		o.operation.Security.With(openapi3.NewSecurityRequirement().Authenticate(scheme))
	}
	return o
}

func (o *Operation) Register() {
	o.doc.mu.Lock()
	defer o.doc.mu.Unlock()
	o.doc.spec.AddOperation(o.path, o.method, o.operation)
}

func toOpenAPIPath(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if strings.HasPrefix(part, ":") {
			parts[i] = "{" + strings.TrimPrefix(part, ":") + "}"
		}
	}
	return strings.Join(parts, "/")
}

func pathParams(path string) []string {
	var names []string
	for _, part := range strings.Split(path, "/") {
		if strings.HasPrefix(part, ":") {
			names = append(names, strings.TrimPrefix(part, ":"))
		}
	}
	return names
}
