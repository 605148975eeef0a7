package main

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/models"
	"bitbucket.org/mmdatafocus/recon_backend/recon"
	"github.com/sirupsen/logrus"
)

// runReconciliation wires and starts the correlation engine: persistence via
// the connected DB, the shared notifier, an optional redis lock client, then
// recovery of interrupted transactions, topic consumption and the deadline
// sweep. An error here means the service cannot consume and the caller must
// not report healthy.
func runReconciliation(ctx context.Context, logger *logrus.Logger, notifier *recon.Notifier) error {
	client, err := config.GetClient(ctx)
	if err != nil {
		return fmt.Errorf("connect pubsub: %w", err)
	}

	var required []models.TransactionSource
	for _, s := range config.ReconRequiredSources() {
		source, ok := models.ParseTransactionSource(s)
		if !ok {
			return fmt.Errorf("unrecognized required source %q", s)
		}
		required = append(required, source)
	}

	correlator := recon.NewCorrelator(
		recon.NewGormStore(config.GetDB()),
		notifier,
		logger,
		config.GetRedisLock(),
		required,
		config.ReconWindow(),
		config.ReconSweepInterval(),
	)

	// Rehydrate INCOMPLETE transactions before consuming so their deadlines
	// are armed again (or fire immediately when already expired).
	if err := correlator.RecoverPending(ctx); err != nil {
		config.LogError(logger, "reconWorkflow.go", "runReconciliation", "RecoverPending", nil, err)
		// Recovery failure is not fatal: live consumption still works and the
		// orphaned states remain queryable.
	}

	consumer := recon.NewConsumer(correlator, logger, config.ReconConsumerGroup())
	if err := consumer.Start(ctx, client); err != nil {
		return fmt.Errorf("start consumers: %w", err)
	}

	go correlator.RunSweep(ctx)
	return nil
}
