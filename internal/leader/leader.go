// Package leader uses a Kubernetes Lease so that exactly one replica owns
// the auction state at a time.
package leader

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/jensholdgaard/cricket-auction/internal/config"
)

// Callbacks are invoked as this replica gains and loses the lease.
// OnStartedLeading should block until its ctx is done; the auction must
// be flushed and released before it returns.
type Callbacks struct {
	OnStartedLeading func(ctx context.Context)
	OnStoppedLeading func()
}

// Elector campaigns for the auction lease.
type Elector struct {
	client kubernetes.Interface
	cfg    config.LeaderElectionConfig
	id     string
	logger *slog.Logger
}

// New returns an Elector using the in-cluster API server.
func New(cfg config.LeaderElectionConfig, logger *slog.Logger) (*Elector, error) {
	restCfg, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("building in-cluster config: %w", err)
	}
	client, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("creating kubernetes client: %w", err)
	}
	return NewWithClient(client, cfg, Identity(), logger), nil
}

// NewWithClient returns an Elector campaigning as id through client.
func NewWithClient(client kubernetes.Interface, cfg config.LeaderElectionConfig, id string, logger *slog.Logger) *Elector {
	return &Elector{
		client: client,
		cfg:    cfg,
		id:     id,
		logger: logger.With(slog.String("identity", id), slog.String("lease", cfg.LeaseName)),
	}
}

// Identity names this replica: POD_NAME, else the hostname.
func Identity() string {
	if name := os.Getenv("POD_NAME"); name != "" {
		return name
	}
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "unknown"
}

// Run campaigns until ctx is cancelled. It returns an error only when the
// election cannot be set up.
func (e *Elector) Run(ctx context.Context, cb Callbacks) error {
	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      e.cfg.LeaseName,
			Namespace: e.cfg.LeaseNamespace,
		},
		Client:     e.client.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{Identity: e.id},
	}

	elector, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
		Lock:            lock,
		Name:            e.cfg.LeaseName,
		LeaseDuration:   e.cfg.LeaseDuration,
		RenewDeadline:   e.cfg.RenewDeadline,
		RetryPeriod:     e.cfg.RetryPeriod,
		ReleaseOnCancel: true,
		Callbacks:       e.callbacks(cb),
	})
	if err != nil {
		return fmt.Errorf("configuring leader election: %w", err)
	}

	e.logger.InfoContext(ctx, "campaigning for the auction lease", slog.String("namespace", e.cfg.LeaseNamespace))
	elector.Run(ctx)
	return nil
}

func (e *Elector) callbacks(cb Callbacks) leaderelection.LeaderCallbacks {
	return leaderelection.LeaderCallbacks{
		OnStartedLeading: func(ctx context.Context) {
			e.logger.InfoContext(ctx, "acquired auction lease")
			cb.OnStartedLeading(ctx)
		},
		OnStoppedLeading: func() {
			e.logger.Info("released auction lease")
			if cb.OnStoppedLeading != nil {
				cb.OnStoppedLeading()
			}
		},
		OnNewLeader: func(holder string) {
			if holder != e.id {
				e.logger.Info("auction owned by another replica", slog.String("leader", holder))
			}
		},
	}
}
