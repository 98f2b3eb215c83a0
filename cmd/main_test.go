package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/fivemin/harmony/internal/adapters/http/api"
	"github.com/fivemin/harmony/internal/adapters/storage"
	app "github.com/fivemin/harmony/internal/app"
	"github.com/fivemin/harmony/internal/auth"
	"github.com/fivemin/harmony/internal/config"
	"github.com/fivemin/harmony/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			_ = os.Setenv("HARMONY_ADDR", ":8181")
			_ = os.Setenv("HARMONY_ACTION_TICK_SECONDS", "60")
			defer func() {
				_ = os.Unsetenv("HARMONY_ADDR")
				_ = os.Unsetenv("HARMONY_ACTION_TICK_SECONDS")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				ctx := context.Background()
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8181")
				convey.So(cfg.ActionTick(), convey.ShouldEqual, time.Minute)
			})
		})

		convey.Convey("When testing service creation", func() {
			convey.Convey("Then service should be creatable with default options", func() {
				svc := app.New()
				convey.So(svc, convey.ShouldNotBeNil)
			})

			convey.Convey("And service should be creatable with custom options", func() {
				svc := app.New(
					app.WithTick(time.Minute),
					app.WithTotalMeasures(8),
					app.WithWritebackWriters(4),
				)
				convey.So(svc, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When wiring the full server against SQLite", func() {
			ctx := context.Background()
			store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "harmony.db"))
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = store.Close() }()

			svc := app.New(app.WithStorage(store), app.WithTotalMeasures(2))
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer svc.Stop()

			accounts := auth.NewService(store, []byte("test-secret"), time.Hour)

			mux := http.NewServeMux()
			api.NewServer(svc, accounts, svc).Register(ctx, mux)

			convey.Convey("Then the mux should be usable by an http.Server", func() {
				srv := &http.Server{
					Addr:              ":0",
					Handler:           mux,
					ReadHeaderTimeout: readHeaderTimeout,
				}
				convey.So(srv, convey.ShouldNotBeNil)
				convey.So(srv.Handler, convey.ShouldEqual, mux)
			})
		})
	})
}
