package tool

import (
	"context"
	"slices"
)

// Policy limits which tools the model may call during one request. A nil
// policy allows everything.
type Policy struct {
	// AllowList, when not empty, names the only callable tools.
	AllowList []string
	// BlockList names tools that are never callable; it wins over AllowList.
	BlockList []string
}

// NewPolicy returns a policy for the lists, or nil when both are empty.
func NewPolicy(allow, block []string) *Policy {
	if len(allow) == 0 && len(block) == 0 {
		return nil
	}
	return &Policy{AllowList: allow, BlockList: block}
}

// IsAllowed reports whether name may be called.
func (p *Policy) IsAllowed(name string) bool {
	if p == nil {
		return true
	}
	if slices.Contains(p.BlockList, name) {
		return false
	}
	return len(p.AllowList) == 0 || slices.Contains(p.AllowList, name)
}

type policyKey struct{}

// WithPolicy attaches policy to ctx; a nil policy leaves ctx unchanged.
func WithPolicy(ctx context.Context, p *Policy) context.Context {
	if p == nil {
		return ctx
	}
	return context.WithValue(ctx, policyKey{}, p)
}

// FromContext returns the policy attached to ctx, or nil.
func FromContext(ctx context.Context) *Policy {
	p, _ := ctx.Value(policyKey{}).(*Policy)
	return p
}
