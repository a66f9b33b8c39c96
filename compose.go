package composer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/buger/jsonparser"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/composer/storage"
)

// handlePageCreate runs the page-creation transaction for POST /pages.
// Any failure, in slot resolution or at commit, surfaces as a Server Error;
// a hanging or partially persisted page is never possible.
func (a *App) handlePageCreate(c echo.Context) error {
	req := c.Request()
	req.Header.Set(echo.HeaderAccept, echo.MIMEApplicationJSON)
	site, ok := resolvedSite(c)
	if !ok {
		return respondJSON(c, func() (any, error) {
			return nil, serverError("no site resolved for page creation", nil)
		})
	}
	return respondJSON(c, func() (any, error) {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, serverError("read request body", err)
		}
		return a.composePage(req.Context(), site, body)
	})
}

// pageDraft is the in-progress state of one page creation: the original
// layout reference and the slot-to-ref mapping parsed from the request.
type pageDraft struct {
	layout string
	slots  map[string]string
}

// composePage materializes a new page from component references:
//
//  1. generate a fresh page identifier
//  2. concurrently resolve every slot's component defaults, generating a
//     fresh instance identifier and staging a put per slot
//  3. join; any resolution failure fails the whole transaction
//  4. stage the page document itself
//  5. submit everything as one atomic batch
//
// On success the returned page object carries a _ref self-reference
// pointing at the new page key.
func (a *App) composePage(ctx context.Context, site Site, body []byte) (map[string]any, error) {
	draft, err := parseDraft(body)
	if err != nil {
		return nil, serverError("compose page: parse request", err)
	}
	if draft.layout == "" {
		draft.layout = a.layouts[site.Slug]
	}

	pageID := a.ids()
	pageKey := joinKey(site.Path, "/pages/"+pageID)

	var (
		mu       sync.Mutex
		ops      []storage.Op
		resolved = make(map[string]string, len(draft.slots))
	)

	g, gctx := errgroup.WithContext(ctx)
	for slot, ref := range draft.slots {
		slot, ref := slot, ref
		g.Go(func() error {
			componentKey, err := a.componentKeyFor(site, ref)
			if err != nil {
				return fmt.Errorf("slot %q: %w", slot, err)
			}
			data, err := a.resolver.GetComponentData(gctx, componentKey)
			if err != nil {
				return fmt.Errorf("slot %q: resolve %s: %w", slot, ref, err)
			}
			instanceKey := componentKey + "/instances/" + a.ids()
			// Copy the resolved defaults; the new instance owns its data.
			value := make(json.RawMessage, len(data))
			copy(value, data)

			mu.Lock()
			ops = append(ops, storage.Op{Type: storage.OpPut, Key: instanceKey, Value: value})
			resolved[slot] = instanceKey
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, serverError("compose page", err)
	}

	page := make(map[string]any, len(resolved)+2)
	for slot, key := range resolved {
		page[slot] = key
	}
	if draft.layout != "" {
		page["layout"] = draft.layout
	}
	pageValue, err := json.Marshal(page)
	if err != nil {
		return nil, serverError("compose page: encode page", err)
	}
	ops = append(ops, storage.Op{Type: storage.OpPut, Key: pageKey, Value: pageValue})

	if err := a.store.Batch(ctx, ops); err != nil {
		return nil, serverError("compose page: commit", err)
	}

	page["_ref"] = pageKey
	return page, nil
}

// parseDraft reads the layout reference and slot references from a
// page-creation body. An empty body composes an empty page.
func parseDraft(body []byte) (pageDraft, error) {
	draft := pageDraft{slots: make(map[string]string)}
	if len(body) == 0 {
		return draft, nil
	}
	err := jsonparser.ObjectEach(body, func(key, value []byte, dataType jsonparser.ValueType, _ int) error {
		ref, err := refValue(value, dataType)
		if err != nil {
			return err
		}
		if string(key) == "layout" {
			draft.layout = ref
			return nil
		}
		draft.slots[string(key)] = ref
		return nil
	})
	if err != nil {
		return pageDraft{}, err
	}
	return draft, nil
}

// componentKeyFor canonicalizes a slot reference into the component's
// default-data key within the site's keyspace.
func (a *App) componentKeyFor(site Site, ref string) (string, error) {
	name := a.resolver.GetComponentName(ref)
	if name == "" {
		return "", fmt.Errorf("reference %q names no component", ref)
	}
	return joinKey(site.Path, "/components/"+name), nil
}
