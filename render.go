package composer

import (
	"context"
	"html"
	"io"

	"github.com/a-h/templ"
)

// RenderOptions carries the per-request state a renderer may use.
// IgnoreData is the only render option a request may set through its query
// string; everything else comes from the request context.
type RenderOptions struct {
	IgnoreData bool
	EditMode   bool
	RequestURL string
	Site       string
}

// Renderer turns a component instance key into HTML, writing directly to
// the supplied sink.
type Renderer interface {
	RenderComponent(ctx context.Context, key string, w io.Writer, opts RenderOptions) error
}

// templRenderer is the built-in Renderer. It wraps a component's stored
// data in a minimal HTML document; real deployments replace it through
// WithRenderer with a template set of their own.
type templRenderer struct {
	resolver Resolver
}

// NewTemplRenderer creates the default renderer backed by a Resolver.
func NewTemplRenderer(resolver Resolver) Renderer {
	return &templRenderer{resolver: resolver}
}

func (r *templRenderer) RenderComponent(ctx context.Context, key string, w io.Writer, opts RenderOptions) error {
	data, err := r.resolver.GetComponentData(ctx, key)
	if err != nil {
		return err
	}
	name := r.resolver.GetComponentName(key)
	return componentPage(name, key, data, opts).Render(ctx, w)
}

// componentPage renders one component as a standalone HTML document. The
// data payload is embedded as a JSON script tag unless IgnoreData is set.
func componentPage(name, key string, data []byte, opts RenderOptions) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		attrs := ` data-component="` + html.EscapeString(name) + `" data-ref="` + html.EscapeString(key) + `"`
		if opts.EditMode {
			attrs += ` data-editable="true"`
		}
		if _, err := io.WriteString(w, "<!doctype html><html><head><title>"+html.EscapeString(name)+"</title></head><body><div"+attrs+">"); err != nil {
			return err
		}
		if !opts.IgnoreData {
			if _, err := io.WriteString(w, `<script type="application/json">`); err != nil {
				return err
			}
			if _, err := w.Write(data); err != nil {
				return err
			}
			if _, err := io.WriteString(w, `</script>`); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</div></body></html>")
		return err
	})
}
