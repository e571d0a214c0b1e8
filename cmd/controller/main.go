/*
Copyright 2026 The Scale-to-Zero Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
	appsv1 "k8s.io/api/apps/v1"
	autoscalingv2 "k8s.io/api/autoscaling/v2"
	corev1 "k8s.io/api/core/v1"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	crzap "sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/controller-runtime/pkg/manager"

	"github.com/scale-to-zero/scaler/pkg/autoscaler"
	"github.com/scale-to-zero/scaler/pkg/classifier"
	"github.com/scale-to-zero/scaler/pkg/config"
	"github.com/scale-to-zero/scaler/pkg/coordination"
	"github.com/scale-to-zero/scaler/pkg/metrics"
	"github.com/scale-to-zero/scaler/pkg/reconciler"
	"github.com/scale-to-zero/scaler/pkg/registry"
	"github.com/scale-to-zero/scaler/pkg/scaling"
	"github.com/scale-to-zero/scaler/pkg/workload"
)

var (
	scheme   = clientgoscheme.Scheme
	setupLog = ctrl.Log.WithName("setup")
)

func init() {
	utilruntime.Must(corev1.AddToScheme(scheme))
	utilruntime.Must(appsv1.AddToScheme(scheme))
	utilruntime.Must(autoscalingv2.AddToScheme(scheme))
}

func main() {
	var (
		metricsAddr          string
		probeAddr            string
		enableLeaderElection bool
		zapOpts              = crzap.Options{Development: false}
	)

	pflag.StringVar(&metricsAddr, "metrics-bind-address", ":8080", "The address the metrics endpoint binds to.")
	pflag.StringVar(&probeAddr, "health-probe-bind-address", ":8081", "The address the probe endpoint binds to.")
	pflag.BoolVar(&enableLeaderElection, "leader-elect", false,
		"Enable leader election for the controller-runtime manager. This is independent of "+
			"USE_ETCD_COORDINATION, which governs this controller's own multi-node scale-decision arbitration.")

	goFlagSet := flag.NewFlagSet("", flag.ExitOnError)
	zapOpts.BindFlags(goFlagSet)
	pflag.CommandLine.AddGoFlagSet(goFlagSet)
	pflag.Parse()

	ctrl.SetLogger(crzap.New(crzap.UseFlagOptions(&zapOpts), func(o *crzap.Options) {
		o.TimeEncoder = zapcore.RFC3339TimeEncoder
	}))

	if err := run(metricsAddr, probeAddr, enableLeaderElection); err != nil {
		setupLog.Error(err, "controller exited with error")
		os.Exit(1)
	}
}

func run(metricsAddr, probeAddr string, enableLeaderElection bool) error {
	restConfig := ctrl.GetConfigOrDie()

	mgr, err := ctrl.NewManager(restConfig, ctrl.Options{
		Scheme:                 scheme,
		Metrics:                metricsserver.Options{BindAddress: metricsAddr},
		HealthProbeBindAddress: probeAddr,
		LeaderElection:         enableLeaderElection,
		LeaderElectionID:       "scale-to-zero-controller-lock",
	})
	if err != nil {
		return fmt.Errorf("starting manager: %w", err)
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		return fmt.Errorf("setting up healthz check: %w", err)
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		return fmt.Errorf("setting up readyz check: %w", err)
	}

	metrics.MustRegister()

	coordinator, err := setupCoordinator()
	if err != nil {
		return fmt.Errorf("setting up coordinator: %w", err)
	}
	defer coordinator.Close()

	loader, err := classifier.Load(ctrl.Log.WithName("classifier"))
	if err != nil {
		return fmt.Errorf("loading kernel classifier: %w", err)
	}
	if err := loader.AttachAll(); err != nil {
		return fmt.Errorf("attaching kernel classifier: %w", err)
	}

	reg := registry.New()
	workloadIndex := reconciler.NewWorkloadIndex()

	clusterClient, err := workload.NewScaleClusterClient(restConfig, ctrl.Log.WithName("workload"))
	if err != nil {
		return fmt.Errorf("building cluster scale client: %w", err)
	}

	autoscalerController := autoscaler.NewController(mgr.GetClient(), ctrl.Log.WithName("autoscaler"), reg)
	engine := scaling.New(ctrl.Log.WithName("engine"), reg, clusterClient, autoscalerController)
	scaleDownPump := scaling.NewScaleDownPump(ctrl.Log.WithName("scaledown"), reg, clusterClient, autoscalerController)
	kernelSync := scaling.NewKernelMapSync(ctrl.Log.WithName("kernelsync"), reg, loader.ServiceList())

	if err := (&reconciler.ServiceReconciler{
		Client:        mgr.GetClient(),
		Log:           ctrl.Log.WithName("service-reconciler"),
		Registry:      reg,
		WorkloadIndex: workloadIndex,
		ClusterClient: clusterClient,
		Autoscaler:    autoscalerController,
	}).SetupWithManager(mgr); err != nil {
		return fmt.Errorf("setting up service reconciler: %w", err)
	}

	for _, kind := range []registry.WorkloadKind{registry.KindDeployment, registry.KindStatefulSet} {
		if err := (&reconciler.WorkloadReconciler{
			Client:        mgr.GetClient(),
			Log:           ctrl.Log.WithName("workload-reconciler").WithValues("kind", kind),
			Kind:          kind,
			Registry:      reg,
			WorkloadIndex: workloadIndex,
		}).SetupWithManager(mgr); err != nil {
			return fmt.Errorf("setting up %s reconciler: %w", kind, err)
		}
	}

	if err := mgr.Add(manager.RunnableFunc(func(ctx context.Context) error {
		return classifier.RunEventReaders(ctx, ctrl.Log.WithName("events"), loader.PerfReader(), engine.ProcessPacket)
	})); err != nil {
		return fmt.Errorf("registering packet event readers: %w", err)
	}
	if err := mgr.Add(scaleDownPump); err != nil {
		return fmt.Errorf("registering scale-down pump: %w", err)
	}
	if err := mgr.Add(kernelSync); err != nil {
		return fmt.Errorf("registering kernel map sync: %w", err)
	}

	setupLog.Info("starting manager", "etcdCoordination", config.UseEtcdCoordination())
	return mgr.Start(ctrl.SetupSignalHandler())
}

// setupCoordinator selects single-node or etcd-backed coordination per
// spec.md §6's USE_ETCD_COORDINATION / ETCD_ENDPOINTS environment
// contract.
func setupCoordinator() (closer interface{ Close() error }, err error) {
	if !config.UseEtcdCoordination() {
		return coordination.NewNoopCoordinator(), nil
	}
	endpoints := config.EtcdEndpoints()
	setupLog.Info("coordinated mode requested, connecting to etcd", "endpoints", endpoints)
	return coordination.NewEtcdCoordinator(endpoints)
}
