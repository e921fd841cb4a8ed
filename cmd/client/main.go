// Package main runs the gigmarket client shell: it restores the session,
// starts the deep link listener and hands the terminal to the shell.
package main

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gigmarket/gigmarket/internal/app"
	"github.com/gigmarket/gigmarket/internal/backend"
	"github.com/gigmarket/gigmarket/internal/callback"
	"github.com/gigmarket/gigmarket/internal/config"
	"github.com/gigmarket/gigmarket/internal/logger"
	"github.com/gigmarket/gigmarket/internal/navigation"
	"github.com/gigmarket/gigmarket/internal/session"
	"github.com/gigmarket/gigmarket/internal/shell"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	options := config.Parse()

	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Session persistence, sealed with a per-installation key.
	key, err := backend.LoadOrCreateKey(filepath.Join(options.StateDir, "key"))
	if err != nil {
		zapLogger.Fatal("cannot load state key", zap.Error(err))
	}
	aead, err := backend.NewAEAD(key)
	if err != nil {
		zapLogger.Fatal("cannot create cipher", zap.Error(err))
	}

	client, err := backend.New(backend.Config{
		URL:      options.SupabaseURL,
		APIKey:   options.AnonKey,
		Sessions: backend.NewFileSessionStore(filepath.Join(options.StateDir, "session"), aead),
		Logger:   zapLogger,
	})
	if err != nil {
		zapLogger.Fatal("cannot create backend client", zap.Error(err))
	}
	defer client.Close()
	client.StartAutoRefresh(ctx, time.Minute, 5*time.Minute)

	// The history file makes a restart behave like a reload.
	historyPath := filepath.Join(options.StateDir, "history.json")
	history, err := navigation.NewFileHistory(historyPath, zapLogger)
	if err != nil {
		zapLogger.Warn("discarding unreadable history", zap.Error(err))
		_ = os.Remove(historyPath)
		if history, err = navigation.NewFileHistory(historyPath, zapLogger); err != nil {
			zapLogger.Fatal("cannot create history", zap.Error(err))
		}
	}
	router := navigation.NewRouter(history, navigation.WithLogger(zapLogger))
	defer router.Close()

	store := session.New(client, router,
		session.WithLogger(zapLogger),
		session.WithRetries(options.ProfileRetries),
		session.WithRetryDelay(options.ProfileRetryDelay()),
		session.WithSignOutExemptViews(options.SignOutExemptViews...),
	)

	appOpts := []app.Option{app.WithLogger(zapLogger), app.WithToastTTL(options.ToastTTL())}
	if options.Realtime {
		appOpts = append(appOpts, app.WithProfileFeed(client))
	}
	root := app.New(client, router, store, appOpts...)

	// Deep links arrive on the loopback listener.
	handler := &callback.Handler{Auth: client, Screens: root, Log: zapLogger}
	listener, err := callback.Listen(options.CallbackAddr, callback.NewRouter(handler, zapLogger), zapLogger)
	if err != nil {
		zapLogger.Fatal("cannot start deep link listener", zap.Error(err))
	}
	go func() {
		if err := listener.Serve(ctx); err != nil {
			zapLogger.Error("deep link listener stopped", zap.Error(err))
		}
	}()

	root.Start(ctx)
	defer root.Stop()

	sh := &shell.Shell{
		App:         root,
		Auth:        client,
		In:          os.Stdin,
		Out:         os.Stdout,
		RecoveryURL: listener.URL() + "/auth/callback",
	}
	if err := sh.Run(ctx); err != nil {
		zapLogger.Error("shell stopped", zap.Error(err))
	}
}
