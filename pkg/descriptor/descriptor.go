// Package descriptor models the declarative deployment documents understood
// by skiff: Services, Deployments (workloads), and Ingresses (routes), plus
// the Namespaces they live in. Documents decode from multi-document YAML or
// JSON, validate structurally and referentially as a set, and sort into
// dependency order for apply and teardown.
package descriptor

import (
	"k8s.io/apimachinery/pkg/util/intstr"
)

type Metadata struct {
	Name        string            `json:"name"`
	Namespace   string            `json:"namespace,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

type Resource[T any] struct {
	APIVersion string   `json:"apiVersion"`
	Kind       string   `json:"kind"`
	Metadata   Metadata `json:"metadata"`
	Spec       T        `json:"spec"`
}

type Selector struct {
	MatchLabels map[string]string `json:"matchLabels"`
}

type Service Resource[ServiceSpec]

type ServiceSpec struct {
	Selector map[string]string `json:"selector"`
	Ports    []ServicePort     `json:"ports"`
}

type ServicePort struct {
	Name       string             `json:"name,omitempty"`
	Protocol   string             `json:"protocol,omitempty"`
	Port       int32              `json:"port"`
	TargetPort intstr.IntOrString `json:"targetPort,omitempty"`
}

type Deployment Resource[DeploymentSpec]

type DeploymentSpec struct {
	Replicas *int32             `json:"replicas,omitempty"`
	Strategy DeploymentStrategy `json:"strategy,omitempty"`
	Selector Selector           `json:"selector"`
	Template PodTemplateSpec    `json:"template"`
}

const (
	StrategyRecreate      = "Recreate"
	StrategyRollingUpdate = "RollingUpdate"
)

type DeploymentStrategy struct {
	Type string `json:"type,omitempty"`
}

// ReplicaCount resolves the declared replica count, defaulting to one when
// the field is omitted.
func (spec DeploymentSpec) ReplicaCount() int32 {
	if spec.Replicas == nil {
		return 1
	}
	return *spec.Replicas
}

// StrategyType resolves the update strategy, defaulting to RollingUpdate.
func (spec DeploymentSpec) StrategyType() string {
	if spec.Strategy.Type == "" {
		return StrategyRollingUpdate
	}
	return spec.Strategy.Type
}

type PodTemplateSpec struct {
	Metadata TemplateMetadata `json:"metadata"`
	Spec     PodSpec          `json:"spec"`
}

type TemplateMetadata struct {
	Labels map[string]string `json:"labels"`
}

type PodSpec struct {
	Containers []Container `json:"containers"`
}

type Container struct {
	Name    string          `json:"name"`
	Image   string          `json:"image"`
	Command []string        `json:"command,omitempty"`
	Env     []EnvVar        `json:"env,omitempty"`
	Ports   []ContainerPort `json:"ports,omitempty"`
}

type EnvVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type ContainerPort struct {
	Name          string `json:"name,omitempty"`
	ContainerPort int32  `json:"containerPort"`
}

type Ingress Resource[IngressSpec]

type IngressSpec struct {
	IngressClassName *string       `json:"ingressClassName,omitempty"`
	Rules            []IngressRule `json:"rules"`
}

type IngressRule struct {
	Host string                `json:"host,omitempty"`
	HTTP *HTTPIngressRuleValue `json:"http,omitempty"`
}

type HTTPIngressRuleValue struct {
	Paths []HTTPIngressPath `json:"paths"`
}

const (
	PathTypePrefix                 = "Prefix"
	PathTypeExact                  = "Exact"
	PathTypeImplementationSpecific = "ImplementationSpecific"
)

type HTTPIngressPath struct {
	Path     string         `json:"path,omitempty"`
	PathType string         `json:"pathType"`
	Backend  IngressBackend `json:"backend"`
}

type IngressBackend struct {
	Service *IngressServiceBackend `json:"service,omitempty"`
}

type IngressServiceBackend struct {
	Name string             `json:"name"`
	Port IngressBackendPort `json:"port"`
}

type IngressBackendPort struct {
	Name   string `json:"name,omitempty"`
	Number int32  `json:"number,omitempty"`
}

const (
	KindService    = "Service"
	KindDeployment = "Deployment"
	KindIngress    = "Ingress"
	KindNamespace  = "Namespace"
)

// recognizedVersions maps the kinds skiff validates to the apiVersion each
// must declare. Any other kind passes through untouched.
var recognizedVersions = map[string]string{
	KindService:    "v1",
	KindDeployment: "apps/v1",
	KindIngress:    "networking.k8s.io/v1",
	KindNamespace:  "v1",
}

func Recognized(kind string) bool {
	_, ok := recognizedVersions[kind]
	return ok
}
