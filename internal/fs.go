package internal

import (
	"os"

	"github.com/davidmdm/x/xerr"
	"gopkg.in/yaml.v3"
)

func WriteYAML(path string, value any) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)

	return xerr.MultiErrFrom("", encoder.Encode(value), file.Close())
}
