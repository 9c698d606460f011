package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ivlev/eventframe/internal/compositor"
	"github.com/ivlev/eventframe/internal/editor"
	"github.com/ivlev/eventframe/internal/export"
	"github.com/ivlev/eventframe/internal/geometry"
	"github.com/ivlev/eventframe/internal/share"
	"github.com/ivlev/eventframe/internal/source"
	"github.com/ivlev/eventframe/internal/surface"
	"github.com/ivlev/eventframe/internal/template"
)

// previewWidth is the logical width of the preview the render command edits
// on. Only the export is written.
const previewWidth = 360

func runRender(args []string) error {
	fs, configPath := flagSet("render")
	templatePtr := fs.String("template", "", "YAML шаблона (по умолчанию: самый свежий файл в папке шаблонов)")
	templatesPtr := fs.String("templates", "", "Папка с шаблонами")
	photoPtr := fs.String("photo", "", "Фото участника: путь к файлу или http(s) URL")
	offsetXPtr := fs.Float64("offset-x", 0, "Сдвиг по горизонтали от центра рамки, пиксели холста")
	offsetYPtr := fs.Float64("offset-y", 0, "Сдвиг по вертикали от центра рамки, пиксели холста")
	zoomPtr := fs.Float64("zoom", 1, "Зум относительно заполнения рамки (1 = рамка заполнена)")
	encodingPtr := fs.String("encoding", "", "Формат результата: png, jpeg")
	outputPtr := fs.String("output", "", "Файл результата (по умолчанию: output/<имя шаблона>.<ext>)")
	qrPtr := fs.String("qr", "", "Дополнительно сохранить QR-код мероприятия по этому пути")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	set := setFlags(fs)
	if set["templates"] {
		cfg.TemplatesDir = *templatesPtr
	}
	if set["encoding"] {
		cfg.Encoding = *encodingPtr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := cfg.NewLogger(os.Stderr)

	if *photoPtr == "" {
		return fmt.Errorf("нужен флаг -photo")
	}

	def, err := pickTemplate(*templatePtr, cfg.TemplatesDir)
	if err != nil {
		return err
	}
	fmt.Printf("[*] Шаблон: %s (%s, %s)\n", def.Name, def.Format, def.Canvas())

	previewInterp, _ := compositor.ParseInterpolator(cfg.PreviewInterpolation)
	exportInterp, _ := compositor.ParseInterpolator(cfg.ExportInterpolation)
	enc, _ := export.ParseEncoding(cfg.Encoding)

	canvas := def.Canvas()
	preview, err := surface.NewPreview(previewWidth, previewWidth*canvas.Height/canvas.Width, 1)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.FetchTimeout)
	defer cancel()

	loader := source.NewLoader(logger, cfg.DPI)
	resolver := template.Resolver{Origin: cfg.AppOrigin}
	start := time.Now()

	session, err := editor.Open(ctx, def, resolver, editor.Config{
		Preview:    preview,
		Loader:     loader,
		Compositor: compositor.New(previewInterp, logger),
		Logger:     logger,
		MaxZoom:    cfg.MaxZoom,
		ClampPan:   cfg.ClampPan,
	})
	if err != nil {
		return fmt.Errorf("template artwork: %w", err)
	}
	defer session.Close()

	if _, err := session.LoadPhoto(ctx, photoSource(*photoPtr, cfg.AppOrigin)); err != nil {
		return err
	}
	fit, _ := session.ZoomBounds()
	if err := session.SetPosition(geometry.Position{
		OffsetX: *offsetXPtr,
		OffsetY: *offsetYPtr,
		Scale:   fit * *zoomPtr,
	}); err != nil {
		return err
	}
	pos := session.Position()
	fmt.Printf("[*] Позиция: сдвиг (%.1f, %.1f), масштаб %.3f (заполнение %.3f)\n", pos.OffsetX, pos.OffsetY, pos.Scale, fit)

	scene, _ := session.Scene()
	exporter := export.New(compositor.New(exportInterp, logger), export.Options{Encoding: enc, JPEGQuality: cfg.JPEGQuality}, logger)
	bundle, err := share.Prepare(exporter, scene, def)
	if err != nil {
		return err
	}

	out := *outputPtr
	if out == "" {
		out = filepath.Join("output", bundle.FileName)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(out, bundle.File, 0644); err != nil {
		return err
	}
	fmt.Printf("[*] Отрисовано %s за %v\n", bundle.Bitmap.Bounds().Size(), time.Since(start).Round(time.Millisecond))
	if bundle.Caption != "" {
		fmt.Printf("[*] Подпись: %s\n", bundle.Caption)
	}

	if *qrPtr != "" {
		if def.ShareURL == "" {
			fmt.Printf("[!] У шаблона %s нет share_url, QR пропущен\n", def.ID)
		} else {
			qr, err := share.EventQR(def.ShareURL, share.DefaultQRSize)
			if err != nil {
				return err
			}
			if err := os.WriteFile(*qrPtr, qr, 0644); err != nil {
				return err
			}
			fmt.Printf("[*] QR-код: %s\n", *qrPtr)
		}
	}

	fmt.Printf("[+++] Успех! Результат: %s\n", out)
	return nil
}

func pickTemplate(path, dir string) (*template.Definition, error) {
	if path != "" {
		return template.Read(path)
	}
	store := template.NewStore()
	if _, err := store.LoadDir(dir); err != nil {
		return nil, fmt.Errorf("%w. Укажите -template или положите шаблоны в %s", err, dir)
	}
	def, err := store.Latest()
	if err != nil {
		return nil, fmt.Errorf("нет шаблонов в %s", dir)
	}
	fmt.Printf("[*] Выбран шаблон: %s\n", def.ID)
	return def, nil
}

func photoSource(ref, origin string) source.Source {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return source.URL{Address: ref, Origin: origin}
	}
	return source.File{Path: ref}
}
