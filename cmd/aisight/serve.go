package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/aisight/internal/app"
	"github.com/ayusman/aisight/internal/log"
	"github.com/ayusman/aisight/internal/mode"
	"github.com/ayusman/aisight/internal/server"
	"github.com/ayusman/aisight/internal/tray"
)

var (
	serveAddr   string
	serveStatic string
	serveTray   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP and websocket control surface",
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}
		if serveStatic != "" {
			cfg.Server.StaticDir = serveStatic
		}
		return serve(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default :8080)")
	serveCmd.Flags().StringVar(&serveStatic, "static", "", "directory of static web files")
	serveCmd.Flags().BoolVar(&serveTray, "tray", false, "show a system tray menu")
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hub := server.NewHub()
	defer hub.Close()

	f := &sessionFactory{cfg: cfg, store: db, presenter: hub}
	if e := connectHaptics(ctx, cfg.Haptics); e != nil {
		defer e.Disconnect()
		f.withHaptics(e)
	}

	controller := app.NewController(f.build)
	defer controller.Close()

	srv := server.New(server.Config{
		StaticDir:  cfg.Server.StaticDir,
		Store:      db,
		Controller: controller,
		Hub:        hub,
	})
	httpSrv := srv.HTTPServer(cfg.Server.Addr)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if serveTray {
		runTray(ctx, cancel, controller)
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			serveErr = fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown", "error", err)
	}
	return serveErr
}

// runTray shows the tray menu and blocks until it quits or ctx ends.
func runTray(ctx context.Context, cancel context.CancelFunc, controller *app.Controller) {
	tr := tray.New()
	tr.OnMode(func(m mode.Mode) {
		s, err := controller.Open(ctx, m)
		if err != nil {
			log.Warn("failed to open session from tray", "mode", m, "error", err)
			tr.SetStatus(fmt.Sprintf("%s: %v", m, err))
			return
		}
		tr.SetStatus(trayStatus(m))
		go func() {
			<-s.Done()
			if controller.Current() == nil {
				tr.SetStatus("")
			}
		}()
	})
	tr.OnPause(func() {
		if _, err := controller.Suspend(); err != nil {
			log.Warn("failed to pause session from tray", "error", err)
			return
		}
		tr.SetStatus("Paused")
	})
	tr.OnResume(func() {
		s, err := controller.Resume(ctx)
		if err != nil {
			log.Warn("failed to resume session from tray", "error", err)
			return
		}
		tr.SetStatus(trayStatus(s.Mode()))
	})
	tr.OnStop(func() {
		controller.Stop(app.ReasonStopped)
	})
	tr.OnQuit(cancel)

	go func() {
		<-ctx.Done()
		tr.Quit()
	}()
	tr.Run()
	cancel()
}

func trayStatus(m mode.Mode) string {
	if m.Directional() {
		return "Finding door"
	}
	return "Counting money"
}
