package main

import (
	"cmp"
	"flag"

	"github.com/davidmdm/conf"

	"github.com/skiff-dev/skiff/internal/home"
)

type GlobalSettings struct {
	KubeConfigPath string
	Namespace      string
	Debug          bool
}

// DefaultGlobalSettings resolves defaults from the environment so that
// SKIFF_KUBECONFIG and SKIFF_NAMESPACE work without repeating flags.
func DefaultGlobalSettings() (settings GlobalSettings) {
	conf.Var(conf.Environ, &settings.KubeConfigPath, "SKIFF_KUBECONFIG")
	conf.Var(conf.Environ, &settings.Namespace, "SKIFF_NAMESPACE")
	conf.Var(conf.Environ, &settings.Debug, "SKIFF_DEBUG")
	conf.Environ.Parse()

	settings.KubeConfigPath = cmp.Or(settings.KubeConfigPath, home.Kubeconfig)
	settings.Namespace = cmp.Or(settings.Namespace, "default")
	return
}

func RegisterGlobalFlags(flagset *flag.FlagSet, settings *GlobalSettings) {
	flagset.StringVar(&settings.KubeConfigPath, "kubeconfig", settings.KubeConfigPath, "path to kube config")
	flagset.BoolVar(&settings.Debug, "debug", settings.Debug, "print debug timings to stderr")
}
