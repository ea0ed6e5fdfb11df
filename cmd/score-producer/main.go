// Command score-producer publishes simulated game results to the score
// topic, standing in for trusted game servers.
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

	"github.com/arcade-social/internal/domain"
)

var playerPrefixes = []string{
	"Phoenix", "Shadow", "Thunder", "Storm", "Blaze", "Ninja", "Dragon", "Wolf", "Hawk", "Viper",
	"Ghost", "Titan", "Frost", "Cyber", "Nova", "Raven", "Omega", "Alpha", "Delta", "Sigma",
}

func playerName(idx int) string {
	return fmt.Sprintf("%s%d", playerPrefixes[idx%len(playerPrefixes)], idx/len(playerPrefixes)+1)
}

// scoreFor draws a plausible score for a game. Guess counts attempts and
// memory counts moves, so both stay small.
func scoreFor(game string) int64 {
	switch game {
	case "guess":
		return int64(rand.Intn(10) + 1)
	case "memory":
		return int64(rand.Intn(40) + 8)
	default:
		return int64(rand.Intn(9) + 1)
	}
}

func main() {
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "arcade-scores", "Kafka topic")
	games := flag.String("games", "guess,memory,tictactoe", "Games to report (comma-separated)")
	players := flag.Int("players", 50, "Number of simulated players")
	rate := flag.Int("rate", 10, "Results per second")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	flag.Parse()

	if *players < 1 || *rate < 1 {
		log.Fatal("players and rate must be positive")
	}
	gameList := strings.Split(*games, ",")

	fmt.Printf("Publishing %d results/sec for %d players to %s on %s\n", *rate, *players, *topic, *brokers)

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(strings.Split(*brokers, ","), config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}

	var sent, failed int64
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&sent, 1)
		}
	}()
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&failed, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	shutdown := func() {
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("\nDone. Sent: %d, Errors: %d\n", atomic.LoadInt64(&sent), atomic.LoadInt64(&failed))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second / time.Duration(*rate))
	defer ticker.Stop()
	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var deadline <-chan time.Time
	if *duration > 0 {
		deadline = time.After(*duration)
	}

	for {
		select {
		case <-sigChan:
			shutdown()
			return

		case <-deadline:
			shutdown()
			return

		case <-ticker.C:
			idx := rand.Intn(*players)
			sub := domain.ScoreSubmission{
				UserID:   fmt.Sprintf("bot-%04d", idx),
				Username: playerName(idx),
				Game:     gameList[rand.Intn(len(gameList))],
			}
			sub.Score = scoreFor(sub.Game)

			data, err := json.Marshal(sub)
			if err != nil {
				log.Printf("Failed to marshal message: %v", err)
				continue
			}
			producer.Input() <- &sarama.ProducerMessage{
				Topic: *topic,
				Key:   sarama.StringEncoder(sub.UserID),
				Value: sarama.ByteEncoder(data),
			}

		case <-statsTicker.C:
			fmt.Printf("[%s] Sent: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				atomic.LoadInt64(&sent),
				atomic.LoadInt64(&failed),
			)
		}
	}
}
