package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"

	"github.com/fitcomp/internal/domain"
	"github.com/fitcomp/internal/kafka"
)

// Simulated device load for a competition: each tick publishes one user's
// sync batch of daily samples, the way a phone would after a workout.

var userPool = []string{
	"morning-runner", "lunch-lifter", "stairmaster", "deskbound", "trail-hiker",
	"spin-class", "lap-swimmer", "dog-walker", "park-jogger", "night-owl",
	"row-machine", "yoga-first", "hill-sprints", "commute-bike", "step-chaser",
}

func userID(idx int) string {
	base := userPool[idx%len(userPool)]
	return fmt.Sprintf("%s-%d", base, idx/len(userPool)+1)
}

// randomDay produces plausible ring metrics. Roughly 40% of days close all
// three rings so standings show real spread.
func randomDay(date time.Time, goals domain.RingGoals) domain.DaySample {
	closeAll := rand.Intn(100) < 40
	scale := func(goal float64) float64 {
		if closeAll {
			return goal * (1.0 + rand.Float64()*0.5)
		}
		return goal * (0.3 + rand.Float64()*0.6)
	}
	return domain.DaySample{
		Date: date,
		Metrics: domain.DayMetrics{
			MoveCalories:      scale(goals.MoveCalories),
			ExerciseMinutes:   scale(goals.ExerciseMinutes),
			StandHours:        scale(goals.StandHours),
			StepCount:         float64(rand.Intn(12000) + 2000),
			DistanceMeters:    float64(rand.Intn(8000) + 1000),
			WorkoutsCompleted: rand.Intn(3),
		},
	}
}

func main() {
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "activity-samples", "Kafka topic")
	competitionID := flag.String("competition", "", "Competition ID to publish samples for (required)")
	totalUsers := flag.Int("users", 25, "Number of distinct users to simulate")
	days := flag.Int("days", 7, "Days of history per sync batch")
	rate := flag.Int("rate", 5, "Sync batches per second")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	flag.Parse()

	if *competitionID == "" {
		log.Fatal("-competition is required")
	}

	brokerList := strings.Split(*brokers, ",")

	fmt.Printf("activity producer: brokers=%s topic=%s competition=%s users=%d days=%d rate=%d/s\n",
		*brokers, *topic, *competitionID, *totalUsers, *days, *rate)

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}
	defer producer.Close()

	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	sendBatch := func(msg kafka.ActivityMessage) {
		data, err := json.Marshal(msg)
		if err != nil {
			log.Printf("Failed to marshal message: %v", err)
			return
		}

		// Key by user so one user's syncs stay ordered on a partition
		pm := &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(msg.UserID),
			Value: sarama.ByteEncoder(data),
		}

		select {
		case producer.Input() <- pm:
		case <-done:
		}
	}

	interval := time.Second / time.Duration(*rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var endTime time.Time
	if *duration > 0 {
		endTime = time.Now().Add(*duration)
	}

	var batchCount int64

	shutdown := func() {
		close(done)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("done. batches=%d sent=%d errors=%d\n",
			atomic.LoadInt64(&batchCount),
			atomic.LoadInt64(&successCount),
			atomic.LoadInt64(&errorCount))
	}

	fmt.Println("publishing sync batches, press Ctrl+C to stop")

	for {
		select {
		case <-sigChan:
			fmt.Println("\nshutting down...")
			shutdown()
			return

		case <-ticker.C:
			if *duration > 0 && time.Now().After(endTime) {
				fmt.Println("\nduration reached, shutting down...")
				shutdown()
				return
			}

			goals := domain.RingGoals{
				MoveCalories:    float64(rand.Intn(400) + 400),
				ExerciseMinutes: 30,
				StandHours:      12,
			}

			today := time.Now().UTC().Truncate(24 * time.Hour)
			samples := make([]domain.DaySample, 0, *days)
			for d := *days - 1; d >= 0; d-- {
				samples = append(samples, randomDay(today.AddDate(0, 0, -d), goals))
			}

			sendBatch(kafka.ActivityMessage{
				CompetitionID: *competitionID,
				UserID:        userID(rand.Intn(*totalUsers)),
				Goals:         goals,
				Samples:       samples,
			})
			atomic.AddInt64(&batchCount, 1)

		case <-statsTicker.C:
			fmt.Printf("[%s] batches=%d sent=%d errors=%d\n",
				time.Now().Format("15:04:05"),
				atomic.LoadInt64(&batchCount),
				atomic.LoadInt64(&successCount),
				atomic.LoadInt64(&errorCount))
		}
	}
}
