package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	persistlog "emotionbank.games/internal/persistence/log"
	"emotionbank.games/internal/persistence/snapshot"
	"emotionbank.games/internal/sim/catalogs"
	"emotionbank.games/internal/sim/tuning"
	"emotionbank.games/internal/sim/world"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable indexing (tick/audit + catalogs + snapshot metadata)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	table, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	_ = os.MkdirAll(*dataDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(*dataDir)
	}

	w, restored, err := buildWorld(tp, snapshotToLoad, table, logger)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	// Optional: read-model index (does not affect sim determinism).
	idx, err := openRuntimeIndex(*dataDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, table, w.Tuning(), w.TuningDigest()); err != nil {
			logger.Printf("index: upsert catalogs: %v", err)
		}
	}

	tickLog := persistlog.NewTickLogger(*dataDir)
	auditLog := persistlog.NewAuditLogger(*dataDir)
	defer tickLog.Close()
	defer auditLog.Close()
	w.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
	w.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx})

	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)

	ctx, cancel := signalContext()
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := w.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return writeSnapshots(ctx, *dataDir, snapCh, idx, logger)
	})
	if len(restored) > 0 {
		// Restored players have no connection; their leave goes through the
		// tick log like any other so replays see it.
		g.Go(func() error {
			for _, id := range restored {
				select {
				case w.Leave() <- id:
				case <-ctx.Done():
					return nil
				}
			}
			logger.Printf("evicted %d restored players", len(restored))
			return nil
		})
	}

	srv := &http.Server{
		Addr: *addr,
		Handler: newRouter(routerDeps{
			world:       w,
			index:       idx,
			logger:      logger,
			enableAdmin: envBool("EB_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		return srv.Shutdown(ctx2)
	})
	g.Go(func() error {
		logger.Printf("listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Printf("server stopped: %v", err)
	}
}

// buildWorld creates a fresh world from tuning, or resumes one from a
// snapshot using the tuning stored in it. It returns the ids of restored
// players.
func buildWorld(tuningPath, snapPath string, table *catalogs.Table, logger *log.Logger) (*world.World, []string, error) {
	if snapPath == "" {
		tune, err := tuning.Load(tuningPath)
		if err != nil {
			return nil, nil, err
		}
		w, err := world.New(tune, table, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Printf("fresh world seed=%d tick_rate=%d", tune.Seed, tune.TickRateHz)
		return w, nil, nil
	}

	snap, err := snapshot.ReadSnapshot(snapPath)
	if err != nil {
		return nil, nil, err
	}
	w, err := world.New(snap.Tuning, table, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := w.ImportSnapshot(snap); err != nil {
		return nil, nil, err
	}
	logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapPath), w.CurrentTick())
	return w, w.PlayerIDs(), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
