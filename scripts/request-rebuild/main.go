package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/kafka"
	"github.com/CDeX-Labs/CDeX-Typing-Service/pkg/events"
)

// Usage: request-rebuild [duration] [reason]. Duration 0 rebuilds every
// partition.
func main() {
	godotenv.Load()

	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		brokers = "localhost:9092"
	}

	duration := 0
	if len(os.Args) > 1 {
		d, err := strconv.Atoi(os.Args[1])
		if err != nil || d < 0 {
			fmt.Printf("Invalid duration %q\n", os.Args[1])
			os.Exit(1)
		}
		duration = d
	}
	reason := "manual"
	if len(os.Args) > 2 {
		reason = os.Args[2]
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	producer := kafka.NewProducer(strings.Split(brokers, ","), nil, logger)
	defer producer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	event := events.LeaderboardRebuildRequestedEvent{
		Duration:    duration,
		RequestedBy: "cli",
		Reason:      reason,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	if err := producer.PublishRebuildRequest(ctx, event); err != nil {
		fmt.Printf("Error publishing event: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== Rebuild Requested ===")
	fmt.Printf("Topic: %s\n", events.TopicLeaderboardRebuild)
	fmt.Printf("Duration: %d\n", duration)
	fmt.Printf("Reason: %s\n", reason)
}
