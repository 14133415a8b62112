package skill

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"robotbrain/internal/state"
)

// catalogFile is the on-disk shape of a skill catalog.
type catalogFile struct {
	Skills []catalogEntry `yaml:"skills"`
}

type catalogEntry struct {
	Name              string            `yaml:"name"`
	Interface         string            `yaml:"interface_kind"`
	Required          []string          `yaml:"required_params"`
	Properties        map[string]string `yaml:"param_types"`
	ResourcesRequired []string          `yaml:"resources_required"`
	Preemptible       bool              `yaml:"preemptible"`
	CancelSupported   bool              `yaml:"cancel_supported"`
	TimeoutS          float64           `yaml:"timeout_s"`
	ErrorMap          map[string]string `yaml:"error_map"`
	Description       string            `yaml:"description"`
}

// LoadCatalog registers additional skill definitions from a YAML file.
func (r *Registry) LoadCatalog(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read skill catalog: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse skill catalog %s: %w", path, err)
	}
	for _, entry := range file.Skills {
		def := state.SkillDef{
			Name:      entry.Name,
			Interface: state.InterfaceKind(entry.Interface),
			ArgsSchema: state.ArgsSchema{
				Required:   entry.Required,
				Properties: entry.Properties,
			},
			ResourcesRequired: entry.ResourcesRequired,
			Preemptible:       entry.Preemptible,
			CancelSupported:   entry.CancelSupported,
			TimeoutS:          entry.TimeoutS,
			ErrorMap:          entry.ErrorMap,
			Description:       entry.Description,
		}
		if def.ArgsSchema.Required == nil {
			def.ArgsSchema.Required = []string{}
		}
		if def.ArgsSchema.Properties == nil {
			def.ArgsSchema.Properties = map[string]string{}
		}
		if def.ResourcesRequired == nil {
			def.ResourcesRequired = []string{}
		}
		if def.ErrorMap == nil {
			def.ErrorMap = map[string]string{}
		}
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}
