package factory

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hasirciogluhq/xgateway/cmd/gateway/internal/config"
	"github.com/hasirciogluhq/xgateway/cmd/gateway/internal/core"
	"github.com/hasirciogluhq/xgateway/cmd/gateway/internal/discovery/kubernetes"
	"github.com/hasirciogluhq/xgateway/cmd/gateway/internal/discovery/static"
	"github.com/hasirciogluhq/xgateway/cmd/gateway/internal/logger"

	k8s "k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// cacheSyncTimeout is how long startup waits for the first Service list
// before giving up.
func cacheSyncTimeout(connTimeout time.Duration) time.Duration {
	return 6 * connTimeout
}

// ResolverFactory creates upstream resolvers based on configuration
type ResolverFactory struct {
	cfg *config.Config

	// newClientset is swapped in tests.
	newClientset func() (k8s.Interface, error)
}

// NewResolverFactory creates a new resolver factory
func NewResolverFactory(cfg *config.Config) *ResolverFactory {
	f := &ResolverFactory{cfg: cfg}
	f.newClientset = f.buildClientset
	return f
}

// Create creates an upstream resolver based on configuration.
// A kubernetes resolver keeps watching until ctx is done.
func (f *ResolverFactory) Create(ctx context.Context) (core.UpstreamResolver, error) {
	switch f.cfg.DiscoveryMode {
	case config.DiscoveryStatic:
		return f.createStaticResolver()
	case config.DiscoveryKubernetes:
		return f.createKubernetesResolver(ctx)
	default:
		return nil, fmt.Errorf("unknown discovery mode: %s", f.cfg.DiscoveryMode)
	}
}

func (f *ResolverFactory) createStaticResolver() (core.UpstreamResolver, error) {
	logger.Info("Creating Static Upstream Resolver",
		"host", f.cfg.UpstreamHost,
		"port", f.cfg.UpstreamPort)

	resolver, err := static.NewResolver(f.cfg.UpstreamHost, f.cfg.UpstreamPort)
	if err != nil {
		return nil, fmt.Errorf("failed to create static resolver: %w", err)
	}
	return resolver, nil
}

func (f *ResolverFactory) createKubernetesResolver(ctx context.Context) (core.UpstreamResolver, error) {
	logger.Info("Creating Kubernetes Upstream Resolver",
		"service", f.cfg.UpstreamHost,
		"namespace", f.cfg.Namespace,
		"port", f.cfg.UpstreamPort)

	clientset, err := f.newClientset()
	if err != nil {
		return nil, err
	}

	resolver, err := kubernetes.NewK8sResolver(ctx, clientset, f.cfg.UpstreamHost, f.cfg.Namespace,
		f.cfg.UpstreamPort, cacheSyncTimeout(f.cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes resolver: %w", err)
	}
	logger.Info("Kubernetes resolver created successfully")
	return resolver, nil
}

func (f *ResolverFactory) buildClientset() (k8s.Interface, error) {
	restConfig, err := f.restConfig()
	if err != nil {
		return nil, err
	}

	clientset, err := k8s.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	return clientset, nil
}

// restConfig uses the pod's service account inside a cluster unless an
// explicit kubeconfig is configured. Elsewhere it follows the usual kubeconfig
// lookup (KUBECONFIG, then ~/.kube/config) and honors KUBE_CONTEXT.
func (f *ResolverFactory) restConfig() (*rest.Config, error) {
	if f.cfg.KubeConfigPath == "" && os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		logger.Info("Using in-cluster Kubernetes configuration")
		restConfig, err := rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load in-cluster config: %w", err)
		}
		return restConfig, nil
	}

	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	rules.ExplicitPath = f.cfg.KubeConfigPath
	overrides := &clientcmd.ConfigOverrides{CurrentContext: f.cfg.KubeContext}

	restConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}
	logger.Info("Using kubeconfig", "path", f.cfg.KubeConfigPath, "context", f.cfg.KubeContext, "host", restConfig.Host)
	return restConfig, nil
}
