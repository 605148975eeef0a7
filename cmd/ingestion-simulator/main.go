package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/models"
	"github.com/shopspring/decimal"
)

// sourceEvent matches the wire schema the reconciliation consumer expects.
type sourceEvent struct {
	TransactionId string          `json:"transaction_id"`
	Source        string          `json:"source"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Synthetic event generator: every interval it manufactures one transaction
// and reports it on all three topics, staggered a second apart like the real
// feeds. Flags inject the failure modes the engine exists to catch.
func main() {
	interval := flag.Duration("interval", 30*time.Second, "time between synthetic transactions")
	prefix := flag.String("prefix", "TX", "transaction id prefix")
	amountMismatchPct := flag.Int("amount-mismatch-pct", 10, "percent of transactions with a bank amount discrepancy")
	statusMismatchPct := flag.Int("status-mismatch-pct", 10, "percent of transactions with a bank status discrepancy")
	missingSourcePct := flag.Int("missing-source-pct", 5, "percent of transactions where the bank never reports")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := config.GetClient(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pubsub client: %v\n", err)
		os.Exit(1)
	}
	for _, topic := range []string{"APP", "BANK", "GATEWAY"} {
		if _, err := config.CreateTopicIfNotExists(client, topic); err != nil {
			fmt.Fprintf(os.Stderr, "provision topic %s: %v\n", topic, err)
			os.Exit(1)
		}
	}

	count := 0
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("publishing a synthetic transaction every %s\n", *interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		txnId := fmt.Sprintf("%s%d", *prefix, count)
		count++

		amount := decimal.NewFromInt(int64(100 + rand.Intn(9900)))
		status := "PENDING"

		publish(ctx, txnId, string(models.SourceApp), amount, status)
		time.Sleep(time.Second)
		publish(ctx, txnId, string(models.SourceGateway), amount, status)
		time.Sleep(time.Second)

		roll := rand.Intn(100)
		switch {
		case roll < *missingSourcePct:
			fmt.Printf("%s: bank report withheld\n", txnId)
		case roll < *missingSourcePct+*amountMismatchPct:
			publish(ctx, txnId, string(models.SourceBank), amount.Add(decimal.NewFromInt(int64(1+rand.Intn(50)))), status)
		case roll < *missingSourcePct+*amountMismatchPct+*statusMismatchPct:
			publish(ctx, txnId, string(models.SourceBank), amount, "SUCCESS")
		default:
			publish(ctx, txnId, string(models.SourceBank), amount, status)
		}
	}
}

func publish(ctx context.Context, txnId string, source string, amount decimal.Decimal, status string) {
	event := sourceEvent{
		TransactionId: txnId,
		Source:        source,
		Amount:        amount,
		Status:        status,
		Timestamp:     time.Now().UTC(),
	}
	if _, err := config.PublishSourceEvent(ctx, source, txnId, event); err != nil {
		fmt.Fprintf(os.Stderr, "publish %s %s: %v\n", txnId, source, err)
	}
}
