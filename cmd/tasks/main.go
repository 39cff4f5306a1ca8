package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"followups/internal/cache"
	"followups/internal/config"
	"followups/internal/dashboard"
	"followups/internal/db"
	"followups/pkg/activity"
	"followups/pkg/application"
	"followups/pkg/calendar"
	"followups/pkg/task"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		fatal("config: %v", err)
	}
	stores, err := db.Open(ctx, cfg)
	if err != nil {
		fatal("open %s store: %v", cfg.Store, err)
	}
	defer stores.Close()

	opts := []task.Option{
		task.WithCalendar(cfg.Calendar),
		task.WithActivity(stores.Activity),
	}
	if cfg.RedisURL != "" {
		// Writes from the CLI must drop the server's cached open dates.
		client, err := cache.Dial(ctx, cfg.RedisURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "tasks: cache disabled: %v\n", err)
		} else {
			defer client.Close()
			opts = append(opts, task.WithDateCache(cache.NewRedisDates(client, "", cfg.CacheTTL)))
		}
	}
	engine := task.NewService(stores.Tasks, stores.Apps, opts...)

	switch os.Args[1] {
	case "init":
		if err := stores.EnsureTables(ctx); err != nil {
			fatal("%v", err)
		}
		fmt.Println(`{"status":"ok","message":"all tables initialized"}`)
	case "app":
		handleApp(ctx, stores.Apps, os.Args[2:])
	case "task":
		handleTask(ctx, engine, os.Args[2:])
	case "day":
		handleDay(ctx, engine, os.Args[2:])
	case "dates":
		handleDates(ctx, engine, os.Args[2:])
	case "board":
		handleBoard(ctx, engine, os.Args[2:])
	case "activity":
		handleActivity(ctx, stores.Activity, os.Args[2:])
	case "status":
		handleStatus(ctx, engine, stores.Activity)
	default:
		usage()
		os.Exit(1)
	}
}

func handleApp(ctx context.Context, store application.Store, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: tasks app <register|get|list>")
		os.Exit(1)
	}

	switch args[0] {
	case "register":
		flags := parseFlags(args[1:])
		tenant := flags["tenant"]
		if tenant == "" {
			fatal("--tenant is required")
		}
		a, err := store.Register(ctx, &application.Application{
			ID:       flags["id"],
			TenantID: tenant,
			Name:     flags["name"],
		})
		if err != nil {
			fatal("register application: %v", err)
		}
		printJSON(a)

	case "get":
		if len(args) < 2 {
			fatal("Usage: tasks app get <id>")
		}
		a, err := store.Get(ctx, args[1])
		if err != nil {
			fatal("get application: %v", err)
		}
		printJSON(a)

	case "list":
		flags := parseFlags(args[1:])
		apps, err := store.List(ctx, flags["tenant"])
		if err != nil {
			fatal("list applications: %v", err)
		}
		printJSON(apps)

	default:
		fatal("unknown app command: %s", args[0])
	}
}

func handleTask(ctx context.Context, engine *task.Service, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: tasks task <create|get|complete>")
		os.Exit(1)
	}

	switch args[0] {
	case "create":
		flags := parseFlags(args[1:])
		t, err := engine.Create(ctx, task.Request{
			ApplicationID: flags["app"],
			TaskType:      flags["type"],
			DueAt:         flags["due"],
			Title:         flags["title"],
		})
		if err != nil {
			fatal("create task: %v", err)
		}
		printJSON(t)

	case "get":
		if len(args) < 2 {
			fatal("Usage: tasks task get <id>")
		}
		t, err := engine.Get(ctx, args[1])
		if err != nil {
			fatal("get task: %v", err)
		}
		printJSON(t)

	case "complete":
		if len(args) < 2 {
			fatal("Usage: tasks task complete <id>")
		}
		t, err := engine.Complete(ctx, args[1])
		if err != nil {
			fatal("complete task: %v", err)
		}
		printJSON(t)

	default:
		fatal("unknown task command: %s", args[0])
	}
}

func handleDay(ctx context.Context, engine *task.Service, args []string) {
	date, flags := splitArgs(args)
	engine = inZone(engine, flags)
	day := dayArg(engine, date)

	var exclude []task.Status
	if raw := flags["exclude"]; raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st := task.Status(strings.TrimSpace(part))
			if !st.Valid() {
				fatal("--exclude: unknown status %q", part)
			}
			exclude = append(exclude, st)
		}
	}

	tasks, err := engine.ListForDay(ctx, day, exclude...)
	if err != nil {
		fatal("list %s: %v", day, err)
	}
	if flags["format"] == "short" {
		printShortTasks(engine.Calendar(), tasks)
		return
	}
	printJSON(tasks)
}

func handleDates(ctx context.Context, engine *task.Service, args []string) {
	engine = inZone(engine, parseFlags(args))
	dates, err := engine.OpenDates(ctx)
	if err != nil {
		fatal("open dates: %v", err)
	}
	printJSON(dates.Strings())
}

func handleBoard(ctx context.Context, engine *task.Service, args []string) {
	date, flags := splitArgs(args)
	engine = inZone(engine, flags)

	board := dashboard.New(engine)
	if date != "" {
		if err := board.Select(ctx, dayArg(engine, date)); err != nil {
			fatal("%v", err)
		}
	}
	if err := board.Load(ctx); err != nil {
		fatal("%v", err)
	}
	if id := flags["complete"]; id != "" {
		if err := board.Complete(ctx, id); err != nil {
			fatal("%v", err)
		}
	}
	printJSON(board.Snapshot())
}

func handleActivity(ctx context.Context, log activity.Log, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: tasks activity <list|verify> [--format=short for list]")
		os.Exit(1)
	}

	switch args[0] {
	case "list":
		flags := parseFlags(args[1:])
		limit := intFlag(flags, "limit", 20)
		var events []activity.Event
		var err error
		if after := flags["after"]; after != "" {
			events, err = log.Since(ctx, after, limit)
		} else {
			events, err = log.Recent(ctx, limit)
		}
		if err != nil {
			fatal("list activity: %v", err)
		}
		if flags["format"] == "short" {
			printShortEvents(events)
		} else {
			printJSON(events)
		}

	case "verify":
		if err := log.VerifyChain(ctx); err != nil {
			fatal("chain verification failed: %v", err)
		}
		fmt.Println(`{"status":"ok","message":"hash chain verified"}`)

	default:
		fatal("unknown activity command: %s", args[0])
	}
}

func handleStatus(ctx context.Context, engine *task.Service, log activity.Log) {
	total, open, err := engine.Stats(ctx)
	if err != nil {
		fatal("status: %v", err)
	}
	eventCount, _ := log.Count(ctx)
	printJSON(map[string]any{
		"tasks":     total,
		"open":      open,
		"completed": total - open,
		"activity":  eventCount,
		"time_zone": engine.Calendar().Zone(),
		"today":     engine.Today().String(),
	})
}

func inZone(engine *task.Service, flags map[string]string) *task.Service {
	tz := flags["tz"]
	if tz == "" {
		return engine
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		fatal("--tz: %v", err)
	}
	return engine.In(loc)
}

func dayArg(engine *task.Service, date string) calendar.Day {
	if date == "" || date == "today" {
		return engine.Today()
	}
	d, err := calendar.ParseDay(date)
	if err != nil {
		fatal("%v", err)
	}
	return d
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatal("encode JSON: %v", err)
	}
}

func printShortEvents(events []activity.Event) {
	for _, e := range events {
		content := ""
		if b, err := json.Marshal(e.Content); err == nil {
			content = string(b)
		}
		fmt.Printf("%-8s  %-16s  %s\n", e.Timestamp.Format("15:04:05"), truncStr(e.Type, 16), truncStr(content, 80))
	}
}

func printShortTasks(cal calendar.Calendar, tasks []task.Task) {
	for _, t := range tasks {
		due := t.DueAt.In(cal.Location()).Format("15:04")
		fmt.Printf("%-8s  %-5s  %-6s  %-11s  %s\n", truncStr(t.ID, 8), due, t.Type, t.Status, truncStr(t.Title, 60))
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "tasks: "+format+"\n", args...)
	os.Exit(1)
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: tasks <command>

Commands:
  init       Initialize database tables
  app        Application operations (register --tenant= [--name=] [--id=], get, list [--tenant=])
  task       Task operations (create --app= --type= --due= [--title=], get, complete)
  day        Tasks due on a day: day [YYYY-MM-DD|today] [--tz=] [--exclude=] [--format=short]
  dates      Days with open tasks [--tz=]
  board      Dashboard snapshot: board [YYYY-MM-DD] [--tz=] [--complete=<id>]
  activity   Activity log operations (list, verify)
  status     Show task summary`)
}
