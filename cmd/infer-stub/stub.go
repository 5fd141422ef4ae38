package main

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

type stubConfig struct {
	Path   string
	Delay  time.Duration
	Status int // when non-zero every request fails with this status
	Logger *slog.Logger
}

// newApp builds a stand-in inference service speaking the multipart contract.
func newApp(cfg stubConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "infer-stub",
		DisableStartupMessage: true,
		BodyLimit:             32 * 1024 * 1024,
	})
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Post(cfg.Path, func(c *fiber.Ctx) error {
		if cfg.Delay > 0 {
			time.Sleep(cfg.Delay)
		}
		if cfg.Status != 0 {
			return c.Status(cfg.Status).JSON(fiber.Map{"Message": "forced failure"})
		}

		fh, err := c.FormFile("image")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing image part"})
		}

		rawScale := c.FormValue("scale")
		scale, err := strconv.ParseFloat(rawScale, 64)
		if err != nil || scale <= 0 || math.IsInf(scale, 0) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": fmt.Sprintf("invalid scale %q", rawScale)})
		}

		f, err := fh.Open()
		if err != nil {
			return err
		}
		defer f.Close()

		img, err := imaging.Decode(f)
		if err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
		}
		size := img.Bounds().Size()

		cfg.Logger.Info("inference request",
			"filename", fh.Filename,
			"content_type", fh.Header.Get("Content-Type"),
			"width", size.X,
			"height", size.Y,
			"scale", rawScale,
		)

		return c.JSON(fiber.Map{
			"Message":  fmt.Sprintf("Processed %dx%d image at scale %s", size.X, size.Y, rawScale),
			"width":    size.X,
			"height":   size.Y,
			"scale":    scale,
			"filename": fh.Filename,
		})
	})

	return app
}
