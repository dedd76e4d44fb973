// pkg/topics/registry.go
package topics

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Topic binds a platform webhook topic to the route it is delivered on.
type Topic struct {
	Name      string `yaml:"name" json:"name"`
	Path      string `yaml:"path,omitempty" json:"path"`
	Mandatory bool   `yaml:"-" json:"mandatory"`
}

// Topic names dispatched on elsewhere.
const (
	DataRequest     = "customers/data_request"
	CustomersRedact = "customers/redact"
	ShopRedact      = "shop/redact"
	AppUninstalled  = "app/uninstalled"
	ProductsCreate  = "products/create"
	ProductsUpdate  = "products/update"
	ProductsDelete  = "products/delete"
	OrdersCreate    = "orders/create"
	OrdersUpdated   = "orders/updated"
	InventoryUpdate = "inventory_levels/update"
)

// The compliance trio must be subscribed for every install and cannot be
// removed by a registry file.
var mandatory = []string{DataRequest, CustomersRedact, ShopRedact}

var defaultCatalog = []string{
	AppUninstalled,
	ProductsCreate,
	ProductsUpdate,
	ProductsDelete,
	OrdersCreate,
	OrdersUpdated,
	InventoryUpdate,
}

// Registry is the closed set of webhook topics this app subscribes to.
type Registry struct {
	byName map[string]Topic
	names  []string
}

func Defaults() *Registry {
	r := &Registry{byName: map[string]Topic{}}
	for _, name := range mandatory {
		r.add(Topic{Name: name, Mandatory: true})
	}
	for _, name := range defaultCatalog {
		r.add(Topic{Name: name})
	}
	return r
}

// Load reads a YAML topic file; its entries replace the default catalog
// while the mandatory topics stay. Empty path means built-in defaults.
func Load(file string) (*Registry, error) {
	if file == "" {
		return Defaults(), nil
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Topics []Topic `yaml:"topics"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("yaml parse: %w", err)
	}
	r := &Registry{byName: map[string]Topic{}}
	for _, name := range mandatory {
		r.add(Topic{Name: name, Mandatory: true})
	}
	for _, t := range doc.Topics {
		if !strings.Contains(t.Name, "/") {
			return nil, fmt.Errorf("bad topic name %q", t.Name)
		}
		r.add(t)
	}
	return r, nil
}

func (r *Registry) add(t Topic) {
	if t.Path == "" {
		t.Path = "/webhooks/" + t.Name
	}
	if _, ok := r.byName[t.Name]; ok {
		return
	}
	r.byName[t.Name] = t
	r.names = append(r.names, t.Name)
}

// All returns every subscribed topic, mandatory first, then by name.
func (r *Registry) All() []Topic {
	out := make([]Topic, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.byName[n])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Mandatory != out[j].Mandatory {
			return out[i].Mandatory
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (r *Registry) Contains(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Get returns the topic binding for name.
func (r *Registry) Get(name string) (Topic, bool) {
	t, ok := r.byName[name]
	return t, ok
}
