package keys

import (
	_ "embed"
)

//go:embed demo_keys.yaml
var demoKeysYAML []byte

// DemoDefinitions devuelve las claves de prueba de los RFC (8032 y 7517).
func DemoDefinitions() map[string]Definition {
	defs, err := ParseDefinitions(demoKeysYAML)
	if err != nil {
		panic("keys: embedded demo keys: " + err.Error())
	}
	return defs
}

// DemoRegistry construye el registry de demo.
func DemoRegistry() (*Registry, error) {
	return NewRegistry(DemoDefinitions())
}
