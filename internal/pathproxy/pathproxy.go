// Package pathproxy implements the dotted-name sugar used to name and
// traverse resources: "Bio.seq.Swissprot" for a resource ID lookup,
// "Bio.seq.Swissprot.partner" for a shadow-attribute traversal one level
// past a resolved object.
package pathproxy

import (
	"context"
	"fmt"
	"strings"

	"github.com/basepair/resourcereg/internal/resolver"
)

// Proxy resolves dotted names against a Resolver, the way a client would
// write `pygr.Resolve("Bio.seq.Swissprot").Attr("organism")` in one call.
type Proxy struct {
	r *resolver.Resolver
}

// New wraps r in a dotted-name Proxy.
func New(r *resolver.Resolver) *Proxy {
	return &Proxy{r: r}
}

// Get resolves dotted, walking from the longest registered resource ID
// prefix and then applying any trailing dotted components as shadow
// attribute accesses in turn. For "Bio.seq.Swissprot.organism.taxonomy":
// it first tries the whole string as an ID, then backs off one component
// at a time until a Resolve succeeds, then applies the remaining
// components as successive Attr calls.
func (p *Proxy) Get(ctx context.Context, dotted string) (any, error) {
	parts := strings.Split(dotted, ".")
	if len(parts) == 0 {
		return nil, fmt.Errorf("pathproxy: empty name")
	}

	for split := len(parts); split >= 1; split-- {
		id := strings.Join(parts[:split], ".")
		obj, err := p.r.Resolve(ctx, id)
		if err != nil {
			continue
		}
		return p.walkAttrs(ctx, obj, parts[split:])
	}
	return nil, fmt.Errorf("pathproxy: no resolvable resource ID prefix in %q", dotted)
}

func (p *Proxy) walkAttrs(ctx context.Context, obj any, attrs []string) (any, error) {
	cur := obj
	for _, name := range attrs {
		next, err := p.r.Attr(ctx, cur, name)
		if err != nil {
			return nil, fmt.Errorf("pathproxy: .%s: %w", name, err)
		}
		cur = next
	}
	return cur, nil
}
