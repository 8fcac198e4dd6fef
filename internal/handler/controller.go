package handler

import (
	"bytes"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"keyword-harvester/internal/service"
	"keyword-harvester/pkg/aggregator"
	"keyword-harvester/pkg/logger"
	"keyword-harvester/pkg/storage"
)

const csvContentType = "text/csv; charset=utf-8"

type Controller struct {
	suggestions service.SuggestionService
	exports     service.ExportService
	locales     service.LocaleService
	config      ControllerConfig
	log         *logger.Logger
	now         func() time.Time
}

type ControllerConfig struct {
	// MetricsPath is left unrouted when empty
	MetricsPath string
	// Gatherer defaults to the global Prometheus registry
	Gatherer prometheus.Gatherer
	// RateLimit caps aggregation requests per client IP and minute; 0 disables it
	RateLimit    int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// StatusResponse is the health check body
type StatusResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func NewController(
	suggestions service.SuggestionService,
	exports service.ExportService,
	locales service.LocaleService,
	config ControllerConfig,
) *Controller {
	return &Controller{
		suggestions: suggestions,
		exports:     exports,
		locales:     locales,
		config:      config,
		log:         logger.GetLogger().WithField("component", "http"),
		now:         time.Now,
	}
}

// NewApp builds the fiber application with middleware and routes
func (ctl *Controller) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "keyword-harvester",
		DisableStartupMessage: true,
		ReadTimeout:           ctl.config.ReadTimeout,
		WriteTimeout:          ctl.config.WriteTimeout,
		ErrorHandler:          ctl.errorHandler,
	})

	app.Use(recover.New())
	app.Use(ctl.requestLogger)

	ctl.Register(app)
	return app
}

// Register mounts every route on app
func (ctl *Controller) Register(app *fiber.App) {
	app.Get("/healthz", ctl.Health)

	api := app.Group("/api")
	api.Get("/locales", ctl.Locales)
	api.Get("/export", ctl.ExportLogs)

	suggestions := api.Group("/suggestions")
	if ctl.config.RateLimit > 0 {
		suggestions.Use(limiter.New(limiter.Config{
			Max:        ctl.config.RateLimit,
			Expiration: time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded, try again later")
			},
		}))
	}
	suggestions.Post("/", ctl.Suggestions)
	suggestions.Post("/csv", ctl.SuggestionsCSV)

	if ctl.config.MetricsPath != "" {
		gatherer := ctl.config.Gatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		app.Get(ctl.config.MetricsPath, adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}

// Health reports liveness
func (ctl *Controller) Health(c *fiber.Ctx) error {
	return c.JSON(StatusResponse{
		Status:    "ok",
		Timestamp: ctl.now().UTC().Format(time.RFC3339),
	})
}

// Locales lists the selectable languages and countries
func (ctl *Controller) Locales(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"languages": ctl.locales.Languages(),
		"countries": ctl.locales.Countries(),
	})
}

// Suggestions runs one aggregation and returns it as JSON
func (ctl *Controller) Suggestions(c *fiber.Ctx) error {
	resp, err := ctl.aggregate(c)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// SuggestionsCSV runs one aggregation and returns the results as a CSV download
func (ctl *Controller) SuggestionsCSV(c *fiber.Ctx) error {
	var req aggregator.Request
	resp, err := ctl.aggregateInto(c, &req)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := storage.WriteResultsCSV(&buf, resp.Rows()); err != nil {
		return err
	}

	c.Attachment(storage.ResultsFilename(req.Keyword, ctl.now()))
	c.Set(fiber.HeaderContentType, csvContentType)
	return c.Send(buf.Bytes())
}

// ExportLogs streams every stored search log as CSV once the shared secret
// in the pass query parameter checks out
func (ctl *Controller) ExportLogs(c *fiber.Ctx) error {
	if err := ctl.exports.Authorize(c.Query("pass")); err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var buf bytes.Buffer
	n, err := ctl.exports.ExportLogs(c.UserContext(), &buf)
	if err != nil {
		ctl.log.WithError(err).Error("Failed to export search logs")
		return fiber.NewError(fiber.StatusInternalServerError, "failed to export logs")
	}
	if n == 0 {
		return c.JSON(fiber.Map{"message": "no logs to export"})
	}

	c.Attachment(storage.LogsFilename(ctl.now()))
	c.Set(fiber.HeaderContentType, csvContentType)
	return c.Send(buf.Bytes())
}

func (ctl *Controller) aggregate(c *fiber.Ctx) (*aggregator.Response, error) {
	var req aggregator.Request
	return ctl.aggregateInto(c, &req)
}

func (ctl *Controller) aggregateInto(c *fiber.Ctx, req *aggregator.Request) (*aggregator.Response, error) {
	if err := c.BodyParser(req); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	*req = req.Normalize()

	resp, err := ctl.suggestions.Aggregate(c.UserContext(), *req)
	if err != nil {
		if errors.Is(err, aggregator.ErrValidation) {
			return nil, fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return nil, err
	}
	return resp, nil
}

// errorHandler renders every error as {"error": message}
func (ctl *Controller) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	} else {
		ctl.log.WithError(err).WithField("path", c.Path()).Error("Unhandled request error")
	}

	return c.Status(code).JSON(fiber.Map{"error": message})
}

func (ctl *Controller) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else {
			status = fiber.StatusInternalServerError
		}
	}

	entry := ctl.log.WithFields(map[string]interface{}{
		"method":   c.Method(),
		"path":     c.Path(),
		"status":   status,
		"ip":       c.IP(),
		"duration": time.Since(start).String(),
	})
	if status >= fiber.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Debug("Request handled")
	}
	return err
}
