package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"followups/internal/api"
	"followups/internal/cache"
	"followups/internal/config"
	"followups/internal/db"
	"followups/pkg/activity"
	"followups/pkg/task"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	stores, err := db.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("open %s store: %v", cfg.Store, err)
	}
	if err := stores.EnsureTables(ctx); err != nil {
		log.Fatalf("%v", err)
	}

	events := activity.NewBus(stores.Activity)
	opts := []task.Option{
		task.WithCalendar(cfg.Calendar),
		task.WithActivity(events),
	}

	var closeCache func() error
	if cfg.RedisURL != "" {
		client, err := cache.Dial(ctx, cfg.RedisURL)
		if err != nil {
			// Open dates are still served from the store.
			log.Printf("cache disabled: %v", err)
		} else {
			opts = append(opts, task.WithDateCache(cache.NewRedisDates(client, "", cfg.CacheTTL)))
			closeCache = client.Close
		}
	}

	engine := task.NewService(stores.Tasks, stores.Apps, opts...)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.New(engine, events),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Shutdown never interrupts hijacked or streaming responses, so end
	// the activity streams ourselves.
	srv.RegisterOnShutdown(events.Close)

	go func() {
		log.Printf("followups listening on :%s (store=%s, zone=%s)", cfg.Port, cfg.Store, cfg.Calendar.Zone())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	wait := gfshutdown.GracefulShutdown(ctx, cfg.ShutdownTimeout, map[string]gfshutdown.Operation{
		"http": func(ctx context.Context) error {
			log.Println("Graceful shutdown initiated...")
			err := srv.Shutdown(ctx)
			if closeCache != nil {
				if cerr := closeCache(); cerr != nil {
					log.Printf("close redis: %v", cerr)
				}
			}
			stores.Close()
			return err
		},
	})

	exitCode := <-wait
	log.Printf("followups exited with code: %d", exitCode)
	os.Exit(exitCode)
}
