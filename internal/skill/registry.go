package skill

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"robotbrain/internal/state"
)

// ErrNotFound is returned by Get when a skill name is not registered.
var ErrNotFound = errors.New("skill not found")

// Registry is the read-mostly catalog of callable skills keyed by name.
type Registry struct {
	mu     sync.RWMutex
	skills map[string]state.SkillDef
}

// NewRegistry returns a registry pre-populated with the builtin skills.
func NewRegistry() *Registry {
	r := &Registry{skills: make(map[string]state.SkillDef)}
	for _, def := range Builtins() {
		// Builtins are complete by construction.
		r.skills[def.Name] = def
	}
	return r
}

// Register adds a skill definition. Definitions missing any of the eight
// canonical metadata fields are rejected.
func (r *Registry) Register(def state.SkillDef) error {
	if err := validateDef(def); err != nil {
		return fmt.Errorf("register %q: %w", def.Name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skills[def.Name] = def
	return nil
}

// Get returns the definition for name.
func (r *Registry) Get(name string) (state.SkillDef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.skills[name]
	if !ok {
		return state.SkillDef{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return def, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.skills[name]
	return ok
}

// ByResource returns every skill that claims the given resource, sorted
// by name.
func (r *Registry) ByResource(resource string) []state.SkillDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []state.SkillDef
	for _, def := range r.skills {
		for _, res := range def.ResourcesRequired {
			if res == resource {
				out = append(out, def)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Snapshot copies the catalog for embedding into BrainState.
func (r *Registry) Snapshot() map[string]state.SkillDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]state.SkillDef, len(r.skills))
	for name, def := range r.skills {
		out[name] = def
	}
	return out
}

// Summary renders a compact catalog description for the oracle prompt.
func (r *Registry) Summary() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.skills))
	for name := range r.skills {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Available skills:\n")
	for _, name := range names {
		def := r.skills[name]
		fmt.Fprintf(&b, "- %s: %s", name, def.Description)
		if len(def.ArgsSchema.Required) > 0 {
			fmt.Fprintf(&b, " (required params: %s)", strings.Join(def.ArgsSchema.Required, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// ValidateParams checks params against the definition's args schema.
// Returns a description of the first violation, or "" when valid.
func ValidateParams(schema state.ArgsSchema, params map[string]any) string {
	for _, field := range schema.Required {
		if _, ok := params[field]; !ok {
			return fmt.Sprintf("missing required field: %s", field)
		}
	}
	for field, want := range schema.Properties {
		val, ok := params[field]
		if !ok {
			continue
		}
		if !typeMatches(want, val) {
			return fmt.Sprintf("field %s: expected %s", field, want)
		}
	}
	return ""
}

func typeMatches(want string, val any) bool {
	switch want {
	case "number":
		switch val.(type) {
		case float64, float32, int, int64:
			return true
		}
		return false
	case "string":
		_, ok := val.(string)
		return ok
	case "boolean":
		_, ok := val.(bool)
		return ok
	}
	// Unknown type hints are not enforced.
	return true
}

func validateDef(def state.SkillDef) error {
	switch {
	case def.Name == "":
		return errors.New("missing name")
	case def.Interface == "":
		return errors.New("missing interface_kind")
	case def.ArgsSchema.Required == nil && def.ArgsSchema.Properties == nil:
		return errors.New("missing args_schema")
	case def.ResourcesRequired == nil:
		return errors.New("missing resources_required")
	case def.TimeoutS <= 0:
		return errors.New("missing timeout_s")
	case def.ErrorMap == nil:
		return errors.New("missing error_map")
	}
	for _, res := range def.ResourcesRequired {
		switch res {
		case state.ResourceBase, state.ResourceArm, state.ResourceGripper:
		default:
			return fmt.Errorf("unknown resource %q", res)
		}
	}
	return nil
}
