package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/example/snipsync/internal/client"
	"github.com/example/snipsync/internal/types"
)

type latencySample struct {
	dur time.Duration
}

func main() {
	apiAddr := flag.String("api", "http://localhost:8080", "snippet store base URL")
	wsAddr := flag.String("ws", "ws://localhost:8080/ws", "websocket address to target")
	clients := flag.Int("clients", 1000, "number of concurrent websocket subscribers")
	mutations := flag.Int("mutations", 20, "number of snippet updates to drive")
	interval := flag.Duration("interval", 200*time.Millisecond, "delay between mutations")
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339Nano
	logger := log.With().Str("target", *wsAddr).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	latencyCh := make(chan latencySample, *clients**mutations)
	var wg sync.WaitGroup

	u, err := url.Parse(*wsAddr)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid websocket address")
	}

	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			clientID := fmt.Sprintf("loadtest-%d", id)
			target := *u
			q := target.Query()
			q.Set("client_id", clientID)
			target.RawQuery = q.Encode()

			conn, _, err := dialer.DialContext(ctx, target.String(), nil)
			if err != nil {
				logger.Error().Err(err).Str("client", clientID).Msg("dial failed")
				return
			}
			defer conn.Close()

			readerLoop(ctx, conn, latencyCh, logger)
		}(i)
	}

	// Give the subscribers a moment to attach before driving mutations.
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
	}

	if err := driveMutations(ctx, *apiAddr, *mutations, *interval, logger); err != nil {
		logger.Error().Err(err).Msg("mutation driver failed")
	}

	// Let the tail of the event stream arrive, then disconnect everyone.
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
	}
	stop()

	go func() {
		wg.Wait()
		close(latencyCh)
	}()

	report(latencyCh, logger)
}

// driveMutations creates one snippet and rewrites it repeatedly through the
// REST surface, so every update fans out to all subscribers.
func driveMutations(ctx context.Context, apiAddr string, mutations int, interval time.Duration, logger zerolog.Logger) error {
	api, err := client.NewAPI(apiAddr, "loadtest-driver")
	if err != nil {
		return err
	}

	snippet, err := api.Create(ctx, types.SnippetFields{
		Name:     "loadtest probe",
		Language: "go",
		Code:     "package main\n",
	})
	if err != nil {
		return fmt.Errorf("create probe snippet: %w", err)
	}
	defer func() {
		cleanup, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := api.Delete(cleanup, snippet.ID); err != nil {
			logger.Warn().Err(err).Msg("failed to clean up probe snippet")
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; i < mutations; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fields := types.SnippetFields{
				Name:     "loadtest probe",
				Language: "go",
				Code:     fmt.Sprintf("package main\n// revision %d\n", i),
			}
			if _, err := api.Update(ctx, snippet.ID, fields); err != nil {
				return fmt.Errorf("update probe snippet: %w", err)
			}
		}
	}
	return nil
}

func readerLoop(ctx context.Context, conn *websocket.Conn, latencies chan<- latencySample, logger zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && ctx.Err() == nil {
				logger.Warn().Err(err).Msg("read error")
			}
			return
		}

		evt, err := types.DecodeEvent(data)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to decode event")
			continue
		}
		if evt.Type != types.EventUpdated || evt.SentAt.IsZero() {
			continue
		}
		latencies <- latencySample{dur: time.Since(evt.SentAt)}
	}
}

func report(samples <-chan latencySample, logger zerolog.Logger) {
	var count int
	var total time.Duration
	var max time.Duration
	var under50ms int

	for s := range samples {
		count++
		total += s.dur
		if s.dur > max {
			max = s.dur
		}
		if s.dur < 50*time.Millisecond {
			under50ms++
		}
	}

	if count == 0 {
		fmt.Fprintln(os.Stdout, "no samples collected")
		return
	}

	avg := time.Duration(int64(math.Round(float64(total) / float64(count))))
	pct := (float64(under50ms) / float64(count)) * 100

	fmt.Fprintf(os.Stdout, "Samples: %d\nAvg latency: %s\nMax latency: %s\n<50ms: %.2f%%\n", count, avg, max, pct)
	if pct < 95 {
		logger.Warn().Msg("less than 95% of broadcasts met the 50ms target")
	}
}
