package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ivlev/eventframe/internal/api"
	"github.com/ivlev/eventframe/internal/compositor"
	"github.com/ivlev/eventframe/internal/export"
	"github.com/ivlev/eventframe/internal/source"
	"github.com/ivlev/eventframe/internal/system"
	"github.com/ivlev/eventframe/internal/template"
)

func runServe(args []string) error {
	fs, configPath := flagSet("serve")
	addrPtr := fs.String("addr", "", "Адрес для прослушивания (по умолчанию :8080)")
	templatesPtr := fs.String("templates", "", "Папка с шаблонами (по умолчанию templates)")
	originPtr := fs.String("origin", "", "Origin приложения для запросов удалённых макетов")
	clampPtr := fs.Bool("clamp-pan", false, "Не давать фото открывать края рамки")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	set := setFlags(fs)
	if set["addr"] {
		cfg.Addr = *addrPtr
	}
	if set["templates"] {
		cfg.TemplatesDir = *templatesPtr
	}
	if set["origin"] {
		cfg.AppOrigin = *originPtr
	}
	if set["clamp-pan"] {
		cfg.ClampPan = *clampPtr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := cfg.NewLogger(os.Stderr)

	system.InitResourceLimits(logger, cfg.OpenFiles)
	gin.SetMode(gin.ReleaseMode)

	exportInterp, _ := compositor.ParseInterpolator(cfg.ExportInterpolation)
	enc, _ := export.ParseEncoding(cfg.Encoding)
	srv := api.NewServer(
		template.NewStore(),
		source.NewLoader(logger, cfg.DPI),
		export.New(compositor.New(exportInterp, logger), export.Options{Encoding: enc, JPEGQuality: cfg.JPEGQuality}, logger),
		api.Options{
			TemplatesDir:   cfg.TemplatesDir,
			AppOrigin:      cfg.AppOrigin,
			FetchTimeout:   cfg.FetchTimeout,
			MaxUploadBytes: cfg.MaxUploadBytes,
			MaxZoom:        cfg.MaxZoom,
			ClampPan:       cfg.ClampPan,
		},
		logger,
	)
	n, err := srv.Reload()
	if err != nil {
		return err
	}
	fmt.Printf("[*] Загружено шаблонов: %d из %s\n", n, cfg.TemplatesDir)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("[*] Слушаю %s\n", cfg.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		fmt.Println("[*] Остановка сервера")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	fmt.Println("[+++] Сервер остановлен")
	return nil
}
