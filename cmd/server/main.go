package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mzansipos/terminal/internal/authgate"
	"mzansipos/terminal/internal/cardpay"
	"mzansipos/terminal/internal/config"
	"mzansipos/terminal/internal/connectivity"
	"mzansipos/terminal/internal/flash"
	"mzansipos/terminal/internal/httpapi"
	"mzansipos/terminal/internal/persist"
	"mzansipos/terminal/internal/service"
	"mzansipos/terminal/internal/store/memory"
	"mzansipos/terminal/internal/terminal"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)

	// Snapshot persistence backend: postgres when DATABASE_URL is set, redis
	// when REDIS_ADDR is set, otherwise a local JSON state file.
	var persister persist.Persister
	switch {
	case cfg.DatabaseURL != "":
		pg, err := persist.NewPostgres(ctx, cfg.DatabaseURL, cfg.TerminalID)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start without persistence", err)
		}
		persister = pg
		closers = append(closers, pg.Close)
		log.Println("persistence: postgres")
	case cfg.RedisAddr != "":
		rd := persist.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := rd.Ping(ctx); err != nil {
			log.Fatalf("redis unavailable (%v) and REDIS_ADDR is set; refusing to start without persistence", err)
		}
		persister = rd
		closers = append(closers, rd.Close)
		log.Println("persistence: redis")
	default:
		persister = persist.NewFile(cfg.StateFile)
		log.Printf("persistence: file %s", cfg.StateFile)
	}

	repo := memory.NewSeeded()
	if state, ok, err := persister.Load(ctx); err != nil {
		log.Fatalf("failed to load persisted state: %v", err)
	} else if ok {
		if err := repo.Restore(ctx, *state); err != nil {
			log.Fatalf("failed to restore persisted state: %v", err)
		}
		log.Printf("restored state: %d products, %d sales, %d queued receipts", len(state.Products), len(state.Sales), len(state.QueuedReceipts))
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	autosaver := persist.NewAutosaver(persister)
	repo.OnMutate(autosaver.Enqueue)
	autosaverDone := make(chan struct{})
	go func() {
		defer close(autosaverDone)
		autosaver.Run(runCtx)
	}()

	monitor := connectivity.NewMonitor(true)
	monitor.Subscribe(func(online bool) {
		if online {
			log.Println("[connectivity] back online, queued receipts can sync")
		} else {
			log.Println("[connectivity] offline, receipts will queue")
		}
	})
	go monitor.Run(runCtx, connectivity.DialProbe(cfg.ProbeAddr, 3*time.Second), time.Duration(cfg.ProbeIntervalSeconds)*time.Second)

	gate, err := authgate.New(cfg.SupervisorPIN)
	if err != nil {
		log.Fatalf("failed to initialize supervisor gate: %v", err)
	}

	provider := flash.NewSimulator()
	log.Printf("flash merchant: %s", cfg.FlashMerchantID)

	svc := service.New(repo, gate, provider, monitor, cfg.Currency)
	sessions := terminal.NewManager(terminal.Config{
		Repo:       repo,
		Gate:       gate,
		Classifier: monitor,
		Card:       cardpay.Simulator{Delay: time.Duration(cfg.CardDelayMS) * time.Millisecond},
		Flash:      provider,
		TaxRate:    cfg.TaxRate,
		Currency:   cfg.Currency,
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, sessions, auth, monitor, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("POS terminal %s listening on %s", cfg.TerminalID, cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-runCtx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	// Let the autosaver flush its pending snapshot before closing backends.
	<-autosaverDone

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("terminal stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.SupervisorPIN) < 6 {
		return fmt.Errorf("SUPERVISOR_PIN must be set and at least 6 digits")
	}
	if err := validatePINStrength(cfg.SupervisorPIN); err != nil {
		return fmt.Errorf("SUPERVISOR_PIN is too weak: %w", err)
	}
	return nil
}

// validatePINStrength rejects PINs that are all the same digit,
// sequential (ascending or descending), or from a known-weak list.
func validatePINStrength(pin string) error {
	known := map[string]bool{
		"123456": true, "654321": true, "000000": true, "111111": true,
		"222222": true, "333333": true, "444444": true, "555555": true,
		"666666": true, "777777": true, "888888": true, "999999": true,
		"121212": true, "112233": true, "123123": true,
	}
	if known[pin] {
		return fmt.Errorf("common PIN not allowed")
	}

	allSame := true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("all-same-digit PIN not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(pin); i++ {
		diff := int(pin[i]) - int(pin[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential PIN not allowed")
	}

	return nil
}
