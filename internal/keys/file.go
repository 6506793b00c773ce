package keys

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/hellopassport/internal/util/atomicwrite"
)

// ErrDuplicateKeyID: el kid ya existe en el archivo destino.
var ErrDuplicateKeyID = errors.New("keys: duplicate key id")

// SaveFile escribe defs como YAML (0600, reemplazo atómico).
func SaveFile(path string, defs map[string]Definition) error {
	b, err := yaml.Marshal(defs)
	if err != nil {
		return err
	}
	return atomicwrite.WriteFile(path, b, 0o600)
}

// AppendToFile agrega kid al archivo de claves en path, creándolo si no
// existe. El archivo resultante se valida antes de escribirse.
func AppendToFile(path, kid string, def Definition) error {
	defs := map[string]Definition{}
	if b, err := os.ReadFile(path); err == nil {
		if defs, err = ParseDefinitions(b); err != nil {
			return fmt.Errorf("keys: %s: %w", path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if _, ok := defs[kid]; ok {
		return fmt.Errorf("%w: %q in %s", ErrDuplicateKeyID, kid, path)
	}
	defs[kid] = def
	if _, err := NewRegistry(defs); err != nil {
		return err
	}
	return SaveFile(path, defs)
}
