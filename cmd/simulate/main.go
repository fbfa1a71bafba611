package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/turf-booking/internal/catalog"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	FailRatio    float64
	ReadRatio    float64
	Days         int
}

// DataPool is the set of (date, sport, slot) targets the workers fight over.
type DataPool struct {
	Dates  []string
	Sports []catalog.Sport
	Slots  []string
	mu     sync.Mutex
	booked map[string]int
}

func (dp *DataPool) AddBooking(key string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.booked[key]++
}

// Oversold counts slots confirmed more than once; anything above zero is a bug.
func (dp *DataPool) Oversold() int {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	n := 0
	for _, c := range dp.booked {
		if c > 1 {
			n++
		}
	}
	return n
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[min2(len(latencies)*50/100, len(latencies)-1)]
	p95 = latencies[min2(len(latencies)*95/100, len(latencies)-1)]

	return avg, min, max, p50, p95
}

func min2(a, b int) int {
	if a < b {
		return a
	}
	return b
}

type Metrics struct {
	Checkout     OperationMetrics
	Payment      OperationMetrics
	FailedPay    OperationMetrics
	Availability OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d booking=%.2f fail=%.2f read=%.2f days=%d",
		cfg.Duration, cfg.Workers, cfg.BookingRatio, cfg.FailRatio, cfg.ReadRatio, cfg.Days)

	dataPool := newDataPool(cfg.Days)
	log.Printf("targets: %d dates, %d sports, %d slots", len(dataPool.Dates), len(dataPool.Sports), len(dataPool.Slots))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.6),
		FailRatio:    getFloat("SIM_FAIL_RATIO", 0.1),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		Days:         getInt("SIM_DAYS", 3),
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.FailRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.FailRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Days <= 0 {
		return fmt.Errorf("SIM_DAYS must be > 0")
	}
	return nil
}

// newDataPool targets dates far in the future so runs don't collide with real bookings.
func newDataPool(days int) *DataPool {
	dp := &DataPool{booked: map[string]int{}}
	start := time.Now().AddDate(1, 0, 0)
	for i := 0; i < days; i++ {
		dp.Dates = append(dp.Dates, start.AddDate(0, 0, i).Format(time.DateOnly))
	}
	for _, s := range catalog.Sports() {
		dp.Sports = append(dp.Sports, s.ID)
	}
	for _, s := range catalog.Slots() {
		dp.Slots = append(dp.Slots, s.ID)
	}
	return dp
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng, true)
			case r < s.config.BookingRatio+s.config.FailRatio:
				s.doBooking(ctx, rng, false)
			default:
				s.doAvailability(ctx, rng)
			}
		}
	}
}

func (s *Simulator) target(rng *rand.Rand) (date string, sport catalog.Sport, slot string) {
	return s.pool.Dates[rng.Intn(len(s.pool.Dates))],
		s.pool.Sports[rng.Intn(len(s.pool.Sports))],
		s.pool.Slots[rng.Intn(len(s.pool.Slots))]
}

func (s *Simulator) post(ctx context.Context, path string, body any, out any) (int, error) {
	b, _ := json.Marshal(body)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode, nil
}

// doBooking runs a checkout and then reports the payment as paid or failed.
func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand, pay bool) {
	date, sport, slot := s.target(rng)

	start := time.Now()
	var co struct {
		BookingID string `json:"booking_id"`
		Order     struct {
			ID string `json:"id"`
		} `json:"order"`
	}
	status, err := s.post(ctx, "/bookings/checkout", map[string]string{
		"full_name":  gofakeit.Name(),
		"mobile":     gofakeit.Numerify("9#########"),
		"sport_type": string(sport),
		"date":       date,
		"time_slot":  slot,
	}, &co)
	s.metrics.Checkout.Record(time.Since(start), err == nil && status == http.StatusCreated,
		status == http.StatusConflict)
	if err != nil || status != http.StatusCreated {
		return
	}

	outcome := map[string]string{"status": "success", "order_id": co.Order.ID}
	metrics := &s.metrics.Payment
	if !pay {
		outcome = map[string]string{"status": "failed", "reason": "simulated decline"}
		metrics = &s.metrics.FailedPay
	}

	start = time.Now()
	status, err = s.post(ctx, "/bookings/"+co.BookingID+"/payment", outcome, nil)
	latency := time.Since(start)

	if !pay {
		metrics.Record(latency, err == nil && status == http.StatusPaymentRequired, false)
		return
	}

	success := err == nil && status == http.StatusOK
	if success {
		s.pool.AddBooking(date + "|" + string(sport) + "|" + slot)
	}
	metrics.Record(latency, success, status == http.StatusConflict)
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	date, sport, _ := s.target(rng)

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/availability?date=%s&sport=%s", s.config.APIBaseURL, date, sport), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.Availability.Record(latency, success, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Checkout", &s.metrics.Checkout)
	printOperationReport("Payment (success)", &s.metrics.Payment)
	printOperationReport("Payment (failed)", &s.metrics.FailedPay)
	printOperationReport("Availability", &s.metrics.Availability)

	if n := s.pool.Oversold(); n > 0 {
		fmt.Printf("DOUBLE BOOKINGS: %d slots confirmed more than once\n", n)
	} else {
		fmt.Println("No double bookings observed")
	}
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	errs := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if errs > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errs, float64(errs)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
