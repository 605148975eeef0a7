package recon

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/models"
	"cloud.google.com/go/pubsub"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// rawSourceEvent is the strict wire schema for a source report. Anything that
// fails decoding or validation is dropped at this boundary with an error
// notification; it never reaches the correlator.
type rawSourceEvent struct {
	TransactionId string           `json:"transaction_id" validate:"required"`
	Source        string           `json:"source"`
	Amount        *decimal.Decimal `json:"amount" validate:"required"`
	Status        string           `json:"status" validate:"required"`
	Timestamp     time.Time        `json:"timestamp"`
}

// Consumer subscribes to one topic per required source and feeds decoded
// events into the correlator. The topic a message arrived on is authoritative
// for its source.
type Consumer struct {
	Correlator *Correlator
	Logger     *logrus.Logger
	GroupId    string

	validate *validator.Validate
}

func NewConsumer(correlator *Correlator, logger *logrus.Logger, groupId string) *Consumer {
	return &Consumer{
		Correlator: correlator,
		Logger:     logger,
		GroupId:    groupId,
		validate:   validator.New(),
	}
}

// Start provisions topics/subscriptions and begins receiving. Provisioning
// failure is returned to the caller: a service that cannot establish
// consumption must not report healthy.
func (co *Consumer) Start(ctx context.Context, client *pubsub.Client) error {
	for _, source := range co.Correlator.Required {
		topic, err := config.CreateTopicIfNotExists(client, string(source))
		if err != nil {
			return fmt.Errorf("provision topic %s: %w", source, err)
		}
		sub, err := config.CreateSubscriptionIfNotExists(client, co.subscriptionName(source), topic)
		if err != nil {
			return fmt.Errorf("provision subscription for %s: %w", source, err)
		}
		sub.ReceiveSettings.MaxOutstandingMessages = 10

		src := source
		go func() {
			err := sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
				co.handleMessage(ctx, src, msg.Data)
				// Always ack: malformed input is dropped by contract, and the
				// in-memory state is authoritative, so redelivery would not
				// change the outcome.
				msg.Ack()
			})
			if err != nil && ctx.Err() == nil {
				config.LogError(co.Logger, "consumer.go", "Start", "Receive on "+string(src), nil, err)
			}
		}()
	}
	return nil
}

func (co *Consumer) subscriptionName(source models.TransactionSource) string {
	return co.GroupId + "-" + strings.ToLower(string(source))
}

func (co *Consumer) handleMessage(ctx context.Context, source models.TransactionSource, data []byte) {
	var ev rawSourceEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		config.LogError(co.Logger, "consumer.go", "handleMessage", "unmarshal "+string(source), string(data), err)
		co.Correlator.Notifier.EmitError(probeTransactionId(data), "Error processing message: "+err.Error())
		return
	}
	if err := co.validate.Struct(&ev); err != nil {
		config.LogError(co.Logger, "consumer.go", "handleMessage", "validate "+string(source), string(data), err)
		txnId := ev.TransactionId
		if txnId == "" {
			txnId = "unknown"
		}
		co.Correlator.Notifier.EmitError(txnId, "Error processing message: "+err.Error())
		return
	}

	eventTimestamp := ev.Timestamp
	if eventTimestamp.IsZero() {
		eventTimestamp = time.Now().UTC()
	}

	report := SourceReport{
		TransactionId:  ev.TransactionId,
		Source:         source,
		Amount:         *ev.Amount,
		Status:         models.NormalizeTransactionStatus(ev.Status),
		EventTimestamp: eventTimestamp,
	}
	if err := co.Correlator.Ingest(ctx, report); err != nil {
		config.LogError(co.Logger, "consumer.go", "handleMessage", "ingest "+string(source), ev.TransactionId, err)
	}
}

// probeTransactionId best-effort extracts the transaction id from an
// undecodable payload so the error notification can still be attributed.
func probeTransactionId(data []byte) string {
	var probe struct {
		TransactionId string `json:"transaction_id"`
	}
	if err := json.Unmarshal(data, &probe); err == nil && probe.TransactionId != "" {
		return probe.TransactionId
	}
	return "unknown"
}
