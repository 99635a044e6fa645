package gdy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and decodes a declarative description from a YAML file. It
// performs no compilation; pair it with Compile to obtain runnable kernel
// structures.
func Load(path string) (Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Description{}, fmt.Errorf("gdy: reading %s: %w", path, err)
	}
	var desc Description
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return Description{}, fmt.Errorf("%w: %s: %v", ErrBadDescription, path, err)
	}
	return desc, nil
}

// LoadAndCompile is the common case: read a YAML file and compile it in one
// call.
func LoadAndCompile(path string) (*Compiled, error) {
	desc, err := Load(path)
	if err != nil {
		return nil, err
	}
	return Compile(desc)
}
