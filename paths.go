package composer

import "strings"

// Normalize derives the canonical resource key for a request path by
// stripping the query string and any extension on the final segment.
// Extensions select the response format, never the resource, so two
// requests differing only by extension address the same key. The result
// contains no '?' and no '.' in its final segment, which makes Normalize
// idempotent.
func Normalize(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	slash := strings.LastIndexByte(p, '/')
	if dot := strings.IndexByte(p[slash+1:], '.'); dot >= 0 {
		p = p[:slash+1+dot]
	}
	return p
}

// extension returns the format extension of the final path segment,
// without the dot, or "" when the segment has none.
func extension(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	slash := strings.LastIndexByte(p, '/')
	if dot := strings.LastIndexByte(p[slash+1:], '.'); dot >= 0 {
		return p[slash+1+dot+1:]
	}
	return ""
}

// joinKey joins a site mount path and a site-relative resource path into
// one storage key. A root mount contributes no prefix.
func joinKey(mount, rel string) string {
	mount = strings.TrimSuffix(mount, "/")
	return mount + rel
}
