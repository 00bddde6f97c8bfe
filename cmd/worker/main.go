package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"libtrack/internal/config"
	"libtrack/internal/queue"
	"libtrack/internal/store"
	"libtrack/internal/student"
	"libtrack/internal/visionclient"
)

// Worker consumes card-verification jobs, asks the vision service whether
// the stored reference photo actually shows an ID card, and advances the
// student's card status.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "")
	}

	students := student.NewService(student.NewRepository(db.Client))
	vision := visionclient.New(cfg.VisionServiceURL, cfg.VisionSkip)

	if !cfg.VisionSkip {
		if err := vision.Health(ctx); err != nil {
			log.Printf("WARNING: vision service not available: %v", err)
			log.Println("worker will retry verification when jobs arrive")
		} else {
			log.Println("vision service connected")
		}
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for card verification jobs...")
	for msg := range messages {
		if msg.Type != queue.TypeVerifyCard {
			continue
		}

		id := msg.Body
		log.Printf("verifying card for student %s", id)

		st, err := students.Resolve(ctx, id)
		if err != nil {
			log.Printf("fetch student %s failed: %v", id, err)
			continue
		}
		if st.IDCardImageURL == "" {
			log.Printf("student %s has no card image, skipping", id)
			continue
		}

		detected, err := vision.DetectURL(ctx, st.IDCardImageURL)
		if err != nil {
			log.Printf("card detection failed for %s: %v", id, err)
			_ = students.SetCardStatus(ctx, st.ID, student.CardFailed)
			continue
		}

		status := student.CardFailed
		if detected.IsIDCard {
			status = student.CardVerified
		}
		_ = students.SetCardStatus(ctx, st.ID, status)
		log.Printf("student %s card %s (confidence %.2f)", id, status, detected.Confidence)

		time.Sleep(10 * time.Millisecond) // small delay between jobs
	}

	log.Println("worker stopped")
}
