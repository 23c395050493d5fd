package kubernetes

import (
	"context"
	"fmt"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/informers"
	"k8s.io/client-go/kubernetes"
	corelisters "k8s.io/client-go/listers/core/v1"
)

// K8sResolver resolves the upstream from a single Service watched through a
// shared informer, so lookups never hit the API server.
type K8sResolver struct {
	lister    corelisters.ServiceLister
	name      string
	namespace string
	port      int32
}

// DefaultSyncTimeout bounds the initial Service list when no timeout is given.
const DefaultSyncTimeout = 30 * time.Second

// NewK8sResolver watches Services in the target namespace until ctx is done.
// target is "name", "name.namespace" or the cluster DNS form
// "name.namespace.svc[.cluster.local]"; a bare name uses defaultNamespace.
// The first cache sync must finish within syncTimeout.
func NewK8sResolver(ctx context.Context, clientset kubernetes.Interface, target, defaultNamespace string, port int, syncTimeout time.Duration) (*K8sResolver, error) {
	name, namespace := parseTarget(target, defaultNamespace)
	if name == "" {
		return nil, fmt.Errorf("empty service name in %q", target)
	}

	factory := informers.NewSharedInformerFactoryWithOptions(clientset, 10*time.Minute,
		informers.WithNamespace(namespace))
	lister := factory.Core().V1().Services().Lister()

	if syncTimeout <= 0 {
		syncTimeout = DefaultSyncTimeout
	}
	syncCtx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()

	factory.Start(ctx.Done())
	for typ, ok := range factory.WaitForCacheSync(syncCtx.Done()) {
		if !ok {
			return nil, fmt.Errorf("services in namespace %s not listed within %s (%v): %w",
				namespace, syncTimeout, typ, syncCtx.Err())
		}
	}

	return &K8sResolver{
		lister:    lister,
		name:      name,
		namespace: namespace,
		port:      int32(port),
	}, nil
}

func (r *K8sResolver) Resolve(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	svc, err := r.lister.Services(r.namespace).Get(r.name)
	if err != nil {
		return "", fmt.Errorf("service %s/%s: %w", r.namespace, r.name, err)
	}

	port := r.targetPort(svc)
	if port == 0 {
		return "", fmt.Errorf("service %s/%s exposes no port %d", r.namespace, r.name, r.port)
	}

	return fmt.Sprintf("%s.%s.svc.cluster.local:%d", svc.Name, svc.Namespace, port), nil
}

// targetPort prefers the configured port and falls back to the only port of
// a single-port Service.
func (r *K8sResolver) targetPort(svc *corev1.Service) int32 {
	for _, p := range svc.Spec.Ports {
		if p.Port == r.port {
			return p.Port
		}
	}
	if len(svc.Spec.Ports) == 1 {
		return svc.Spec.Ports[0].Port
	}
	return 0
}

// parseTarget takes the first label as the Service name and the second, if
// any, as its namespace. Trailing labels such as "svc.cluster.local" are
// ignored.
func parseTarget(target, defaultNamespace string) (string, string) {
	labels := strings.Split(strings.Trim(strings.TrimSpace(target), "."), ".")
	if len(labels) > 1 && labels[1] != "" {
		return labels[0], labels[1]
	}
	if defaultNamespace == "" {
		defaultNamespace = "default"
	}
	return labels[0], defaultNamespace
}
