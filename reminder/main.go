// The reminder service is the escalation scheduler's entry point: a
// one-shot batch job triggered by an external daily timer. All idempotency
// lives in the timeline store's conditional writes, so running it more
// often, or again after a crash, is safe.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"

	"cashbus/claims"
	"cashbus/common"
	"cashbus/config"
	"cashbus/email"
	"cashbus/escalation"
	"cashbus/lawsuit"
	"cashbus/metrics"
	"cashbus/timeline"
)

var (
	runTimeout = flag.Duration("run_timeout", 10*time.Minute, "Upper bound for one escalation pass")
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load env file: %v", err)
	}
	flag.Parse()

	metrics.Register()
	cfg := config.Load()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("Invalid timezone %q: %v", cfg.Timezone, err)
	}

	db, err := common.DBConnect(cfg.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := timeline.InitializeSchema(db); err != nil {
		log.Fatal("Failed to initialize timeline schema:", err)
	}

	var publisher lawsuit.DocumentPublisher
	if cfg.AMQPURL != "" {
		p, err := lawsuit.NewPublisher(cfg.AMQPURL, cfg.LawsuitExchange, cfg.LawsuitRoutingKey)
		if err != nil {
			log.Fatal("Failed to connect lawsuit publisher:", err)
		}
		defer p.Close()
		publisher = p
	} else {
		log.Println("AMQP_URL not set; lawsuit documents will not be handed off")
	}

	scheduler := escalation.NewScheduler(
		timeline.NewStore(db),
		claims.NewService(db),
		email.NewSendGridSender(cfg),
		publisher,
		loc,
	)

	ctx, cancel := context.WithTimeout(context.Background(), *runTimeout)
	defer cancel()

	log.Println("Starting escalation pass...")
	stats, err := scheduler.Run(ctx)
	if err != nil {
		log.Fatalf("Escalation pass failed: %v", err)
	}
	log.Printf("Escalation pass complete: scanned=%d sent=%d skipped=%d failed=%d completed=%d",
		stats.Scanned, stats.Sent, stats.Skipped, stats.Failed, stats.Completed)
}
