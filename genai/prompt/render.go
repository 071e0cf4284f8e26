package prompt

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"github.com/viant/velty"
)

type compiled func(vars map[string]string) (string, error)

// renderer expands velty templates; compiled plans are cached by content hash
// and variable set.
type renderer struct {
	mux   sync.Mutex
	plans map[string]compiled
}

func (r *renderer) expand(tmpl string, vars map[string]string) (string, error) {
	plan, err := r.plan(tmpl, vars)
	if err != nil {
		return "", err
	}
	return plan(vars)
}

func (r *renderer) plan(tmpl string, vars map[string]string) (compiled, error) {
	key := planKey(tmpl, vars)
	r.mux.Lock()
	defer r.mux.Unlock()
	if ret, ok := r.plans[key]; ok {
		return ret, nil
	}
	planner := velty.New()
	for k, v := range vars {
		if err := planner.DefineVariable(k, v); err != nil {
			return nil, err
		}
	}
	exec, newState, err := planner.Compile([]byte(tmpl))
	if err != nil {
		return nil, fmt.Errorf("failed to compile template: %w", err)
	}
	ret := func(vars map[string]string) (string, error) {
		state := newState()
		for k, v := range vars {
			if err := state.SetValue(k, v); err != nil {
				return "", fmt.Errorf("failed to set %s: %w", k, err)
			}
		}
		if err := exec.Exec(state); err != nil {
			return "", err
		}
		return string(state.Buffer.Bytes()), nil
	}
	r.plans[key] = ret
	return ret, nil
}

func planKey(tmpl string, vars map[string]string) string {
	names := make([]string, 0, len(vars))
	for k := range vars {
		names = append(names, k)
	}
	sort.Strings(names)
	h := sha1.New()
	h.Write([]byte(tmpl))
	for _, name := range names {
		h.Write([]byte{0})
		h.Write([]byte(name))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func newRenderer() *renderer {
	return &renderer{plans: map[string]compiled{}}
}
