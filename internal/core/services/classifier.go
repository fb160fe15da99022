package services

import (
	"net/url"
	"path"
	"strings"

	"github.com/Xean001/tubedrop/internal/core/domain"
)

// CollectionMarker is the substring that identifies playlist references.
const CollectionMarker = "list"

// Classify decides whether a link points at a single item or a collection.
// Well-formedness is not checked here; the provider rejects bad links.
func Classify(link string) domain.MediaLink {
	kind := domain.LinkSingle
	if strings.Contains(link, CollectionMarker) {
		kind = domain.LinkCollection
	}
	return domain.MediaLink{Raw: link, Kind: kind}
}

// itemIDFromLink guesses the item identifier of a single link so that a
// failed fetch can still be reported against an ID. Supported forms:
//   - https://host/watch?v=ID
//   - https://youtu.be/ID
//   - https://host/shorts/ID, /embed/ID, /live/ID
//
// Anything else is returned unchanged.
func itemIDFromLink(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Host == "" {
		return link
	}
	if v := u.Query().Get("v"); v != "" {
		return v
	}
	p := strings.Trim(u.Path, "/")
	if p == "" {
		return link
	}
	dir, base := path.Split(p)
	switch strings.Trim(dir, "/") {
	case "", "shorts", "embed", "live", "v":
		return base
	}
	return link
}
