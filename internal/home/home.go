// Package home resolves user scoped default paths.
package home

import (
	"os"
	"path/filepath"
)

var Kubeconfig string

func init() {
	dir, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}
	Kubeconfig = filepath.Join(dir, ".kube", "config")
}
