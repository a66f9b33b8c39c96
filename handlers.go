package composer

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/composer/storage"
)

// registerResourceRoutes mounts the resource dispatcher for one site.
// Component and instance names may carry a format extension; echo captures
// the whole segment and the handler strips it.
func (a *App) registerResourceRoutes(g *echo.Group, site Site) {
	g.GET("/sandbox/:name", a.handleSandbox)

	g.GET("/components", handleUnimplemented)
	g.GET("/components/:name", a.handleComponentGet)
	g.PUT("/components/:name", a.handleComponentPut, a.requireEditor)
	g.GET("/components/:name/instances", a.handleList)
	g.GET("/components/:name/instances/:id", a.handleComponentGet)
	g.PUT("/components/:name/instances/:id", a.handleComponentPut, a.requireEditor)
	g.GET("/components/:name/schema", a.handleSchema)

	g.GET("/pages", a.handleList)
	g.POST("/pages", a.handlePageCreate, a.requireEditor)
	g.GET("/pages/:name", a.handleResourceGet)
	g.PUT("/pages/:name", a.handleResourcePut, a.requireEditor)

	g.GET("/uris", a.handleList)
	g.GET("/uris/:name", a.handleResourceGet)
	g.PUT("/uris/:name", a.handleResourcePut, a.requireEditor)
}

// handleComponentGet serves component and instance reads, dispatching on
// the URL extension: .html renders the full component, .yaml is not
// implemented, .json or no extension returns the raw JSON data.
func (a *App) handleComponentGet(c echo.Context) error {
	req := c.Request()
	key := Normalize(req.URL.Path)

	switch extension(req.URL.Path) {
	case "html":
		req.Header.Set(echo.HeaderAccept, echo.MIMETextHTML)
		return respondHTML(c, func() ([]byte, error) {
			return a.renderToBuffer(c, key)
		})
	case "yaml":
		return echo.NewHTTPError(http.StatusNotImplemented)
	default:
		req.Header.Set(echo.HeaderAccept, echo.MIMEApplicationJSON)
		return respondJSON(c, func() (any, error) {
			return a.resolver.GetComponentData(req.Context(), key)
		})
	}
}

// handleComponentPut persists component or instance JSON data and echoes
// the stored document back.
func (a *App) handleComponentPut(c echo.Context) error {
	req := c.Request()
	req.Header.Set(echo.HeaderAccept, echo.MIMEApplicationJSON)
	key := Normalize(req.URL.Path)
	return respondJSON(c, func() (any, error) {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, serverError("read request body", err)
		}
		if err := a.resolver.PutComponentData(req.Context(), key, body); err != nil {
			return nil, err
		}
		return json.RawMessage(body), nil
	})
}

// handleSchema returns the schema of the named component.
func (a *App) handleSchema(c echo.Context) error {
	req := c.Request()
	req.Header.Set(echo.HeaderAccept, echo.MIMEApplicationJSON)
	// The component key is the schema route minus its /schema suffix.
	key := Normalize(req.URL.Path)
	key = key[:len(key)-len("/schema")]
	return respondJSON(c, func() (any, error) {
		return a.resolver.GetSchema(req.Context(), key)
	})
}

// handleResourceGet serves raw JSON reads for pages and uris.
func (a *App) handleResourceGet(c echo.Context) error {
	req := c.Request()
	req.Header.Set(echo.HeaderAccept, echo.MIMEApplicationJSON)
	key := Normalize(req.URL.Path)
	return respondJSON(c, func() (any, error) {
		return a.store.Get(req.Context(), key)
	})
}

// handleResourcePut persists raw JSON for pages and uris.
func (a *App) handleResourcePut(c echo.Context) error {
	req := c.Request()
	req.Header.Set(echo.HeaderAccept, echo.MIMEApplicationJSON)
	key := Normalize(req.URL.Path)
	return respondJSON(c, func() (any, error) {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, serverError("read request body", err)
		}
		if !json.Valid(body) {
			return nil, serverError("request body is not valid JSON", nil)
		}
		if err := a.store.Put(req.Context(), key, body); err != nil {
			return nil, err
		}
		return json.RawMessage(body), nil
	})
}

// handleList lists every key under the request's normalized path. The
// storage collaborator answers with either a buffered collection or a live
// byte stream; anything else is a programming error and fails loudly.
func (a *App) handleList(c echo.Context) error {
	req := c.Request()
	req.Header.Set(echo.HeaderAccept, echo.MIMEApplicationJSON)
	prefix := Normalize(req.URL.Path) + "/"
	opts := storage.ListOptions{
		Prefix: prefix,
		Values: truthy(c.QueryParam("values")),
		Stream: truthy(c.QueryParam("stream")),
	}

	res, err := a.store.List(req.Context(), opts)
	if err != nil {
		return renderError(c, err)
	}

	if entries, ok := res.Buffered(); ok {
		if opts.Values {
			return c.JSON(http.StatusOK, entries)
		}
		keys := make([]string, len(entries))
		for i, e := range entries {
			keys[i] = e.Key
		}
		return c.JSON(http.StatusOK, keys)
	}

	if rc, ok := res.Streamed(); ok {
		defer rc.Close()
		c.Response().Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		c.Response().WriteHeader(http.StatusOK)
		// Stream errors are logged, but whatever the stream produced is
		// forwarded to the client regardless.
		if _, err := io.Copy(c.Response(), rc); err != nil {
			c.Logger().Errorf("streaming list %s: %v", prefix, err)
		}
		return nil
	}

	panic("storage: list returned a result with no variant for prefix " + prefix)
}

// handleSandbox renders the zeroth sandbox instance of the named component.
// HTML only.
func (a *App) handleSandbox(c echo.Context) error {
	c.Request().Header.Set(echo.HeaderAccept, echo.MIMETextHTML)
	site, _ := resolvedSite(c)
	key := joinKey(site.Path, "/components/"+c.Param("name")+"/instances/0")
	return respondHTML(c, func() ([]byte, error) {
		return a.renderToBuffer(c, key)
	})
}

// renderToBuffer runs the rendering engine against a buffered sink so a
// render failure can still change the response status.
func (a *App) renderToBuffer(c echo.Context, key string) ([]byte, error) {
	opts := RenderOptions{
		// ignore-data is the only query option passed through to rendering.
		IgnoreData: truthy(c.QueryParam("ignore-data")),
		EditMode:   EditMode(c),
		RequestURL: RequestURL(c),
		Site:       SiteSlug(c),
	}
	var buf bytes.Buffer
	if err := a.renderer.RenderComponent(c.Request().Context(), key, &buf, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func handleUnimplemented(c echo.Context) error {
	return echo.NewHTTPError(http.StatusNotImplemented)
}
