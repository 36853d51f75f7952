package catalysttest

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/dokzlo13/sdactl/internal/catalyst"
)

// Collection is an in-memory list resource wired to its list/add/update/delete
// functions on a Fake.
type Collection struct {
	mu     sync.Mutex
	prefix string
	key    string
	filter map[string]string
	items  []map[string]any
	seq    int
}

// CollectionSpec names the API functions served by a Collection. Empty
// functions are not registered.
type CollectionSpec struct {
	Get    string
	Add    string
	Update string
	// Delete is a delete-by-id function taking the "id" path param, or a
	// delete-by-query function when DeleteByQuery is set.
	Delete        string
	DeleteByQuery bool

	// Key is the identity field matched by updates; default "id".
	Key string
	// Filters maps query param names onto item fields.
	Filters map[string]string
}

// Collection registers an in-memory collection on the fake.
func (f *Fake) Collection(prefix string, spec CollectionSpec) *Collection {
	c := &Collection{prefix: prefix, key: spec.Key, filter: spec.Filters}
	if c.key == "" {
		c.key = "id"
	}
	if spec.Get != "" {
		f.Handle(spec.Get, c.list)
	}
	if spec.Add != "" {
		f.Handle(spec.Add, c.add)
	}
	if spec.Update != "" {
		f.Handle(spec.Update, c.update)
	}
	if spec.Delete != "" {
		if spec.DeleteByQuery {
			f.Handle(spec.Delete, c.deleteByQuery)
		} else {
			f.Handle(spec.Delete, c.deleteByID)
		}
	}
	return c
}

// Seed inserts items as-is, assigning ids where missing.
func (c *Collection) Seed(items ...map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range items {
		c.insert(it)
	}
}

// Items returns a snapshot of the stored objects.
func (c *Collection) Items() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of stored objects.
func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Collection) insert(it map[string]any) {
	if _, ok := it["id"]; !ok {
		c.seq++
		it["id"] = fmt.Sprintf("%s-%d", c.prefix, c.seq)
	}
	c.items = append(c.items, it)
}

func (c *Collection) matches(it map[string]any, params catalyst.Params) bool {
	for param, field := range c.filter {
		want, ok := params[param]
		if !ok || want == nil {
			continue
		}
		if fmt.Sprint(it[field]) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func (c *Collection) list(params catalyst.Params) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []map[string]any
	for _, it := range c.items {
		if c.matches(it, params) {
			out = append(out, it)
		}
	}

	offset, limit := intParam(params, "offset", 1), intParam(params, "limit", 0)
	if offset > 1 {
		if offset-1 >= len(out) {
			out = nil
		} else {
			out = out[offset-1:]
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []map[string]any{}
	}
	return map[string]any{"response": out}, nil
}

func (c *Collection) add(params catalyst.Params) (any, error) {
	items, err := toMaps(params[catalyst.PayloadParam])
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range items {
		c.insert(it)
	}
	return nil, nil
}

func (c *Collection) update(params catalyst.Params) (any, error) {
	items, err := toMaps(params[catalyst.PayloadParam])
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, upd := range items {
		found := false
		for i, it := range c.items {
			if fmt.Sprint(it[c.key]) == fmt.Sprint(upd[c.key]) {
				if _, ok := upd["id"]; !ok {
					upd["id"] = it["id"]
				}
				c.items[i] = upd
				found = true
				break
			}
		}
		if !found {
			return nil, &catalyst.APIError{StatusCode: 404, Body: fmt.Sprintf("%s %v not found", c.key, upd[c.key])}
		}
	}
	return nil, nil
}

func (c *Collection) deleteByID(params catalyst.Params) (any, error) {
	id := fmt.Sprint(params["id"])
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, it := range c.items {
		if fmt.Sprint(it["id"]) == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return nil, nil
		}
	}
	return nil, &catalyst.APIError{StatusCode: 404, Body: "id " + id + " not found"}
}

func (c *Collection) deleteByQuery(params catalyst.Params) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.items[:0]
	for _, it := range c.items {
		if !c.matches(it, params) {
			kept = append(kept, it)
		}
	}
	c.items = kept
	return nil, nil
}

func intParam(params catalyst.Params, name string, def int) int {
	v, ok := params[name]
	if !ok || v == nil {
		return def
	}
	n, err := strconv.Atoi(fmt.Sprint(v))
	if err != nil {
		return def
	}
	return n
}
