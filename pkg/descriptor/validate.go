package descriptor

import (
	"fmt"
	"slices"
	"strings"

	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/davidmdm/x/xerr"

	"github.com/skiff-dev/skiff/internal"
)

// Validate checks the descriptor set structurally and referentially.
// Violations are aggregated so a single pass reports every problem in the
// document. Warnings are conditions the cluster may still resolve at
// reconcile time, such as a selector that matches no workload declared in
// this document.
func (set Set) Validate() (warnings []string, err error) {
	var errs []error

	errs = append(errs, set.validateEnvelopes()...)

	for _, svc := range set.Services {
		errs = append(errs, validateService(svc)...)
	}
	for _, workload := range set.Workloads {
		errs = append(errs, validateWorkload(workload)...)
	}
	for _, route := range set.Routes {
		errs = append(errs, validateRoute(route)...)
	}

	crossErrs, crossWarnings := set.validateReferences()
	errs = append(errs, crossErrs...)
	warnings = append(warnings, crossWarnings...)

	return warnings, xerr.MultiErrOrderedFrom("validation", errs...)
}

// validateEnvelopes checks the fields every document must carry: apiVersion,
// kind, and a name. Recognized kinds must declare the apiVersion skiff
// understands them at, and no two documents may declare the same object.
func (set Set) validateEnvelopes() []error {
	var errs []error

	seen := make(map[string]struct{}, len(set.Resources))
	for i, resource := range set.Resources {
		kind := resource.GetKind()
		apiVersion := resource.GetAPIVersion()

		if kind == "" {
			errs = append(errs, fmt.Errorf("document %d: kind is required", i))
			continue
		}
		if apiVersion == "" {
			errs = append(errs, fmt.Errorf("document %d (%s): apiVersion is required", i, kind))
			continue
		}
		if resource.GetName() == "" {
			errs = append(errs, fmt.Errorf("document %d (%s): metadata.name is required", i, kind))
			continue
		}

		if expected, ok := recognizedVersions[kind]; ok && apiVersion != expected {
			errs = append(errs, fmt.Errorf("%s %s: unsupported apiVersion %q: expected %q", kind, resource.GetName(), apiVersion, expected))
		}

		id := internal.Canonical(resource)
		if _, ok := seen[id]; ok {
			errs = append(errs, fmt.Errorf("duplicate resource declaration: %s", id))
		}
		seen[id] = struct{}{}
	}

	return errs
}

func validateService(svc Service) []error {
	var errs []error

	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("service %s: %s", svc.Metadata.Name, fmt.Sprintf(format, args...)))
	}

	if len(svc.Spec.Ports) == 0 {
		fail("at least one port is required")
	}

	names := make(map[string]struct{}, len(svc.Spec.Ports))
	for _, port := range svc.Spec.Ports {
		if !validPort(port.Port) {
			fail("port %q: port %d out of range 1-65535", port.Name, port.Port)
		}
		if port.Name == "" {
			if len(svc.Spec.Ports) > 1 {
				fail("port names are required when more than one port is declared")
			}
			continue
		}
		if _, ok := names[port.Name]; ok {
			fail("duplicate port name %q", port.Name)
		}
		names[port.Name] = struct{}{}
	}

	if len(svc.Spec.Selector) == 0 {
		fail("selector is required")
	}

	return errs
}

func validateWorkload(workload Deployment) []error {
	var errs []error

	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("deployment %s: %s", workload.Metadata.Name, fmt.Sprintf(format, args...)))
	}

	if workload.Spec.Replicas != nil && *workload.Spec.Replicas < 0 {
		fail("replicas must not be negative: got %d", *workload.Spec.Replicas)
	}

	if strategy := workload.Spec.Strategy.Type; strategy != "" && strategy != StrategyRecreate && strategy != StrategyRollingUpdate {
		fail("unknown update strategy %q: expected %s or %s", strategy, StrategyRecreate, StrategyRollingUpdate)
	}

	if len(workload.Spec.Selector.MatchLabels) == 0 {
		fail("selector.matchLabels is required")
	} else if !labelsMatch(workload.Spec.Selector.MatchLabels, workload.Spec.Template.Metadata.Labels) {
		fail("selector %s does not match template labels %s",
			formatLabels(workload.Spec.Selector.MatchLabels),
			formatLabels(workload.Spec.Template.Metadata.Labels),
		)
	}

	if len(workload.Spec.Template.Spec.Containers) == 0 {
		fail("at least one container is required")
	}

	containerNames := make(map[string]struct{}, len(workload.Spec.Template.Spec.Containers))
	for _, container := range workload.Spec.Template.Spec.Containers {
		if container.Name == "" {
			fail("container name is required")
			continue
		}
		if _, ok := containerNames[container.Name]; ok {
			fail("duplicate container name %q", container.Name)
		}
		containerNames[container.Name] = struct{}{}

		if container.Image == "" {
			fail("container %s: image is required", container.Name)
		}

		envNames := make(map[string]struct{}, len(container.Env))
		for _, env := range container.Env {
			if env.Name == "" {
				fail("container %s: env name is required", container.Name)
				continue
			}
			if _, ok := envNames[env.Name]; ok {
				fail("container %s: duplicate env name %q", container.Name, env.Name)
			}
			envNames[env.Name] = struct{}{}
		}

		for _, port := range container.Ports {
			if !validPort(port.ContainerPort) {
				fail("container %s: containerPort %d out of range 1-65535", container.Name, port.ContainerPort)
			}
		}
	}

	return errs
}

func validateRoute(route Ingress) []error {
	var errs []error

	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("ingress %s: %s", route.Metadata.Name, fmt.Sprintf(format, args...)))
	}

	if len(route.Spec.Rules) == 0 {
		fail("at least one rule is required")
	}

	for i, rule := range route.Spec.Rules {
		if rule.HTTP == nil || len(rule.HTTP.Paths) == 0 {
			fail("rule %d: at least one http path is required", i)
			continue
		}

		for _, path := range rule.HTTP.Paths {
			switch path.PathType {
			case PathTypePrefix, PathTypeExact:
				if !strings.HasPrefix(path.Path, "/") {
					fail("rule %d: path %q must be absolute", i, path.Path)
				}
			case PathTypeImplementationSpecific:
			case "":
				fail("rule %d: pathType is required", i)
			default:
				fail("rule %d: unknown pathType %q", i, path.PathType)
			}

			backend := path.Backend.Service
			if backend == nil {
				fail("rule %d: path %q: a service backend is required", i, path.Path)
				continue
			}
			if backend.Name == "" {
				fail("rule %d: path %q: backend service name is required", i, path.Path)
			}
			if backend.Port.Name == "" && backend.Port.Number == 0 {
				fail("rule %d: path %q: backend port name or number is required", i, path.Path)
			}
			if backend.Port.Number != 0 && !validPort(backend.Port.Number) {
				fail("rule %d: path %q: backend port %d out of range 1-65535", i, path.Path, backend.Port.Number)
			}
		}
	}

	return errs
}

// validateReferences checks the relationships that tie the document set
// together: every route backend must resolve to a declared service and one
// of its ports, and every service selector should select a declared
// workload whose containers expose the service's target port.
func (set Set) validateReferences() (errs []error, warnings []string) {
	for _, route := range set.Routes {
		for i, rule := range route.Spec.Rules {
			if rule.HTTP == nil {
				continue
			}
			for _, path := range rule.HTTP.Paths {
				backend := path.Backend.Service
				if backend == nil || backend.Name == "" {
					continue
				}

				svc, ok := internal.Find(set.Services, func(svc Service) bool {
					return svc.Metadata.Name == backend.Name && svc.Metadata.Namespace == route.Metadata.Namespace
				})
				if !ok {
					errs = append(errs, fmt.Errorf(
						"ingress %s: rule %d: backend references unknown service %q",
						route.Metadata.Name, i, backend.Name,
					))
					continue
				}

				if !backendPortDeclared(svc, backend.Port) {
					errs = append(errs, fmt.Errorf(
						"ingress %s: rule %d: backend references port %s not declared by service %q",
						route.Metadata.Name, i, formatBackendPort(backend.Port), backend.Name,
					))
				}
			}
		}
	}

	for _, svc := range set.Services {
		if len(svc.Spec.Selector) == 0 {
			continue
		}

		matched := matchWorkloads(set.Workloads, svc)
		if len(matched) == 0 {
			if len(set.Workloads) > 0 {
				errs = append(errs, fmt.Errorf(
					"service %s: selector %s matches no declared workload",
					svc.Metadata.Name, formatLabels(svc.Spec.Selector),
				))
			} else {
				warnings = append(warnings, fmt.Sprintf(
					"service %s: selector %s cannot be checked: no workloads declared in this document",
					svc.Metadata.Name, formatLabels(svc.Spec.Selector),
				))
			}
			continue
		}

		for _, port := range svc.Spec.Ports {
			if !targetPortExposed(matched, port) {
				errs = append(errs, fmt.Errorf(
					"service %s: port %q: target port %s is not exposed by any selected workload",
					svc.Metadata.Name, port.Name, port.TargetPort.String(),
				))
			}
		}
	}

	return errs, warnings
}

func matchWorkloads(workloads []Deployment, svc Service) []Deployment {
	var matched []Deployment
	for _, workload := range workloads {
		if workload.Metadata.Namespace != svc.Metadata.Namespace {
			continue
		}
		if labelsMatch(svc.Spec.Selector, workload.Spec.Template.Metadata.Labels) {
			matched = append(matched, workload)
		}
	}
	return matched
}

func backendPortDeclared(svc Service, port IngressBackendPort) bool {
	return slices.ContainsFunc(svc.Spec.Ports, func(declared ServicePort) bool {
		if port.Name != "" {
			return declared.Name == port.Name
		}
		return declared.Port == port.Number
	})
}

func targetPortExposed(workloads []Deployment, port ServicePort) bool {
	target := port.TargetPort
	// An omitted target port defaults to the service port itself.
	if target.StrVal == "" && target.IntVal == 0 {
		target = intstr.FromInt32(port.Port)
	}

	for _, workload := range workloads {
		for _, container := range workload.Spec.Template.Spec.Containers {
			for _, containerPort := range container.Ports {
				if target.StrVal != "" {
					if containerPort.Name == target.StrVal {
						return true
					}
					continue
				}
				if containerPort.ContainerPort == target.IntVal {
					return true
				}
			}
		}
	}

	return false
}

// labelsMatch reports whether every selector pair is present in labels.
func labelsMatch(selector, labels map[string]string) bool {
	for key, value := range selector {
		if labels[key] != value {
			return false
		}
	}
	return true
}

func validPort(port int32) bool { return port >= 1 && port <= 65535 }

func formatLabels(labels map[string]string) string {
	pairs := make([]string, 0, len(labels))
	for key, value := range labels {
		pairs = append(pairs, key+"="+value)
	}
	slices.Sort(pairs)
	return "{" + strings.Join(pairs, ",") + "}"
}

func formatBackendPort(port IngressBackendPort) string {
	if port.Name != "" {
		return fmt.Sprintf("%q", port.Name)
	}
	return fmt.Sprint(port.Number)
}
