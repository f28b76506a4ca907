package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/optician-booking/internal/api"
)

// SimConfig drives one race: Workers customers try to book the same slot at
// once, Rounds times on consecutive slots.
type SimConfig struct {
	APIBaseURL    string
	Workers       int
	Rounds        int
	Date          string
	FirstSlot     int
	StaffUsername string
	StaffPassword string
}

type OperationMetrics struct {
	Total       int64
	Success     int64
	Conflict    int64
	RateLimited int64
	Error       int64
	Latencies   []time.Duration
	mu          sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch status {
	case http.StatusCreated:
		atomic.AddInt64(&om.Success, 1)
	case http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	case http.StatusTooManyRequests:
		atomic.AddInt64(&om.RateLimited, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0
	}

	latencies := append([]time.Duration(nil), om.Latencies...)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	max = latencies[len(latencies)-1]
	return avg, p50, p95, max
}

type Simulator struct {
	config  SimConfig
	client  *http.Client
	token   string
	metrics OperationMetrics
	// winners per slot; more than one means double booking
	winners map[int]*int64
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	log.Printf("config: api=%s workers=%d rounds=%d date=%s first_slot=%d",
		cfg.APIBaseURL, cfg.Workers, cfg.Rounds, cfg.Date, cfg.FirstSlot)

	sim := &Simulator{
		config:  cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		winners: map[int]*int64{},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := sim.login(ctx); err != nil {
		log.Fatalf("staff login: %v", err)
	}
	if err := sim.openSlots(ctx); err != nil {
		log.Fatalf("open slots: %v", err)
	}

	sim.Run(ctx)
	if !sim.PrintReport() {
		os.Exit(1)
	}
}

func loadConfig() SimConfig {
	return SimConfig{
		APIBaseURL:    strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Workers:       getInt("SIM_WORKERS", 50),
		Rounds:        getInt("SIM_ROUNDS", 5),
		Date:          getEnv("SIM_DATE", time.Now().AddDate(0, 0, 1).Format("2006-01-02")),
		FirstSlot:     getInt("SIM_FIRST_SLOT", 1),
		StaffUsername: getEnv("SIM_STAFF_USERNAME", "reception"),
		StaffPassword: getEnv("SIM_STAFF_PASSWORD", "change-me-please"),
	}
}

func (s *Simulator) login(ctx context.Context) error {
	var resp api.LoginResponse
	status, err := s.call(ctx, http.MethodPost, "/admin/login", "",
		api.LoginRequest{Username: s.config.StaffUsername, Password: s.config.StaffPassword}, &resp)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("unexpected status %d", status)
	}
	s.token = resp.Token
	return nil
}

func (s *Simulator) slotIDs() []int {
	ids := make([]int, s.config.Rounds)
	for i := range ids {
		ids[i] = s.config.FirstSlot + i
	}
	return ids
}

func (s *Simulator) openSlots(ctx context.Context) error {
	req := api.UpdateAvailabilityRequest{Date: s.config.Date, SlotIDs: s.slotIDs()}
	var resp api.UpdateAvailabilityResponse
	status, err := s.call(ctx, http.MethodPut, "/admin/availability", "", req, &resp)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("unexpected status %d", status)
	}
	log.Printf("opened slots %v on %s (added=%v removed=%v)", resp.SlotIDs, resp.Date, resp.Added, resp.Removed)
	return nil
}

// Run races every worker against each slot in turn.
func (s *Simulator) Run(ctx context.Context) {
	for _, slotID := range s.slotIDs() {
		var won int64
		s.winners[slotID] = &won

		customers := make([]customer, s.config.Workers)
		for i := range customers {
			customers[i] = s.newCustomer(slotID)
		}

		start := make(chan struct{})
		var wg sync.WaitGroup
		for _, c := range customers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				s.book(ctx, c, &won)
			}()
		}
		close(start)
		wg.Wait()
		log.Printf("slot %d: %d winner(s)", slotID, won)
	}
}

type customer struct {
	ip  string
	req api.CreateAppointmentRequest
}

// newCustomer builds a fake booking. Each customer gets its own address so
// the rate limiter treats them separately.
func (s *Simulator) newCustomer(slotID int) customer {
	return customer{ip: gofakeit.IPv4Address(), req: api.CreateAppointmentRequest{
		FullName:    gofakeit.Name(),
		DateOfBirth: gofakeit.DateRange(time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)).Format("2006-01-02"),
		Phone:       gofakeit.Phone(),
		Email:       gofakeit.Email(),
		Date:        s.config.Date,
		SlotID:      slotID,
		Services:    []string{"Eye Test"},
		IsNewUser:   gofakeit.Bool(),
	}}
}

func (s *Simulator) book(ctx context.Context, c customer, won *int64) {
	started := time.Now()
	status, err := s.call(ctx, http.MethodPost, "/appointments", c.ip, c.req, nil)
	if err != nil {
		log.Printf("booking request failed: %v", err)
		status = 0
	}
	s.metrics.Record(time.Since(started), status)
	if status == http.StatusCreated {
		atomic.AddInt64(won, 1)
	}
}

func (s *Simulator) call(ctx context.Context, method, path, clientIP string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	if clientIP != "" {
		req.Header.Set("X-Real-IP", clientIP)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, nil
}

// PrintReport prints the outcome and reports whether every slot had at most
// one winner.
func (s *Simulator) PrintReport() bool {
	om := &s.metrics
	total := atomic.LoadInt64(&om.Total)

	fmt.Println()
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("BOOKING RACE REPORT")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("  Requests:     %d\n", total)
	fmt.Printf("  Booked:       %d\n", atomic.LoadInt64(&om.Success))
	fmt.Printf("  Conflicts:    %d\n", atomic.LoadInt64(&om.Conflict))
	fmt.Printf("  Rate limited: %d\n", atomic.LoadInt64(&om.RateLimited))
	fmt.Printf("  Errors:       %d\n", atomic.LoadInt64(&om.Error))

	avg, p50, p95, max := om.Stats()
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond),
		p95.Round(time.Millisecond), max.Round(time.Millisecond))

	ok := true
	for _, id := range s.slotIDs() {
		if n := atomic.LoadInt64(s.winners[id]); n > 1 {
			fmt.Printf("  DOUBLE BOOKING on slot %d: %d winners\n", id, n)
			ok = false
		}
	}
	if ok {
		fmt.Println("  At most one booking per slot: OK")
	}
	return ok
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
