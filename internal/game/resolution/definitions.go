package resolution

import (
	_ "embed"

	"github.com/cory-johannsen/rollflow/internal/workflow"
)

//go:embed workflows.yaml
var defaultDefinitions []byte

// DefaultDefinitions returns the built-in workflow definitions.
func DefaultDefinitions() ([]workflow.Definition, error) {
	return workflow.ParseDefinitions(defaultDefinitions)
}

// Register binds defs (DefaultDefinitions when empty) to the union of a's
// catalog and extra, which take precedence.
func Register(reg *workflow.Registry, a *Actions, defs []workflow.Definition, extra map[string]workflow.ActionFunc) error {
	if len(defs) == 0 {
		var err error
		if defs, err = DefaultDefinitions(); err != nil {
			return err
		}
	}
	catalog := a.Catalog()
	for name, fn := range extra {
		catalog[name] = fn
	}
	return reg.Bind(defs, catalog)
}
