package httpapi

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/snow-report/internal/chatlog"
	"github.com/i474232898/snow-report/internal/logger"
	"github.com/i474232898/snow-report/internal/logminer"
	"github.com/i474232898/snow-report/internal/report"
	"github.com/i474232898/snow-report/internal/resort"
	"github.com/i474232898/snow-report/internal/weather"
)

var validate = validator.New()

const (
	AuthorHeader  = "X-Chat-Author"
	ChannelHeader = "X-Chat-Channel"

	defaultAuthor  = "api#0000"
	defaultChannel = "api"

	welcomeReply   = "Welcome to the server!"
	dmOnlyReply    = "Private command only - for DM use"
	helloReply     = "Hello World!"
	byeReply       = "See you!"
	memberGreeting = "Welcome! Please read the rules and reply !accept in this DM to join."
	serviceName    = "snow-report"
)

// Forecaster is the part of weather.Service the handlers use.
type Forecaster interface {
	Current(ctx context.Context, loc weather.Location) (weather.CurrentConditions, error)
	Tomorrow(ctx context.Context, loc weather.Location) (weather.TomorrowSummary, error)
	SnowOutlook(ctx context.Context, loc weather.Location) (weather.SnowOutlook, error)
}

// LogReader returns the full activity log.
type LogReader interface {
	ReadAll() (string, error)
}

// Handler serves the command API. Every command writes the same event line a
// chat command would, so the log miner counts API traffic too.
type Handler struct {
	registry  *resort.Registry
	forecast  Forecaster
	miner     *logminer.Miner
	logs      LogReader
	events    logger.Logger
	botHandle string

	checks map[string]func(context.Context) error
}

// NewHandler wires the handler. events must log at debug level under the name
// the miner expects.
func NewHandler(registry *resort.Registry, forecast Forecaster, miner *logminer.Miner, logs LogReader, events logger.Logger, botHandle string) *Handler {
	return &Handler{
		registry:  registry,
		forecast:  forecast,
		miner:     miner,
		logs:      logs,
		events:    events,
		botHandle: botHandle,
	}
}

// AddHealthCheck registers a dependency probe reported by /health.
func (h *Handler) AddHealthCheck(name string, check func(context.Context) error) {
	if h.checks == nil {
		h.checks = make(map[string]func(context.Context) error)
	}
	h.checks[name] = check
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, h *Handler) {
	app.Get("/health", h.health)

	v1 := app.Group("/api/v1")

	v1.Get("/resorts", h.listResorts)
	v1.Post("/resorts", h.addResort)
	v1.Get("/resorts/:key", h.showResort)
	v1.Get("/resorts/:key/now", h.now)
	v1.Get("/resorts/:key/now/temperature", h.nowTemperature)
	v1.Get("/resorts/:key/now/feelslike", h.nowFeelsLike)
	v1.Get("/resorts/:key/tomorrow", h.tomorrow(chatlog.CmdCheckTomorrow, report.Tomorrow))
	v1.Get("/resorts/:key/tomorrow/temperature", h.tomorrow(chatlog.CmdCheckTomorrowTemp, one(report.TomorrowTemperature)))
	v1.Get("/resorts/:key/tomorrow/feelslike", h.tomorrow(chatlog.CmdCheckTomorrowFeelsLike, one(report.TomorrowFeelsLike)))
	v1.Get("/resorts/:key/tomorrow/precipitation", h.tomorrow(chatlog.CmdCheckTomorrowPrecipitation, precipitationLines))
	v1.Get("/resorts/:key/snow", h.snow)
	v1.Get("/snow-report", h.snowReport)

	v1.Post("/messages", h.message)
	v1.Post("/members", h.memberJoin)
	v1.Post("/accept", h.accept)
	v1.Get("/server", h.server)
	v1.Get("/help", h.help)

	v1.Get("/logs/stats", h.logStats)
}

func (h *Handler) health(c *fiber.Ctx) error {
	status, code := "ok", fiber.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(c.UserContext()); err != nil {
			h.events.Warnf("health check %s failed: %v", name, err)
			deps[name] = err.Error()
			status, code = "degraded", fiber.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	return c.Status(code).JSON(fiber.Map{
		"status":       status,
		"service":      serviceName,
		"dependencies": deps,
	})
}

type chatContext struct {
	author  string
	channel string
}

func chatFrom(c *fiber.Ctx) chatContext {
	cc := chatContext{
		author:  strings.TrimSpace(c.Get(AuthorHeader)),
		channel: strings.TrimSpace(c.Get(ChannelHeader)),
	}
	if cc.author == "" {
		cc.author = defaultAuthor
	}
	if cc.channel == "" {
		cc.channel = defaultChannel
	}
	return cc
}

func (h *Handler) logCommand(c *fiber.Ctx, command string, args ...string) chatContext {
	cc := chatFrom(c)
	h.events.Debug(chatlog.Command(command, args, cc.author, cc.channel))
	return cc
}

func (h *Handler) lookup(key string) (resort.Resort, error) {
	res, err := h.registry.Lookup(key)
	if err != nil {
		h.events.Debugf("Error, cannot find %s", key)
		return resort.Resort{}, statusError(err, key)
	}
	return res, nil
}

func (h *Handler) listResorts(c *fiber.Ctx) error {
	h.logCommand(c, chatlog.CmdResorts)

	all := h.registry.All()
	if country := c.Query("country"); country != "" {
		filtered := all[:0]
		for _, r := range all {
			if r.Country == country {
				filtered = append(filtered, r)
			}
		}
		all = filtered
	}

	lines := make([]string, 0, len(all)+2)
	lines = append(lines, report.ListingHint)
	for _, r := range all {
		lines = append(lines, report.Listing(r.Name, r.Key))
	}
	lines = append(lines, report.Complete)

	return c.JSON(fiber.Map{
		"resorts": resortViews(all),
		"lines":   lines,
	})
}

type resortView struct {
	Key     string  `json:"key"`
	Name    string  `json:"name"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

func toView(r resort.Resort) resortView {
	return resortView{Key: r.Key, Name: r.Name, Country: r.Country, Lat: r.Lat, Lon: r.Lon}
}

func resortViews(rs []resort.Resort) []resortView {
	out := make([]resortView, len(rs))
	for i, r := range rs {
		out[i] = toView(r)
	}
	return out
}

func (h *Handler) showResort(c *fiber.Ctx) error {
	res, err := h.lookup(c.Params("key"))
	if err != nil {
		return err
	}
	return c.JSON(toView(res))
}

// addResortRequest is the body of POST /resorts. Pointers tell a missing
// coordinate from zero.
type addResortRequest struct {
	Key     string   `json:"key" validate:"required,alphanum"`
	Name    string   `json:"name" validate:"required"`
	Country string   `json:"country" validate:"required"`
	Lat     *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon     *float64 `json:"lon" validate:"required,gte=-180,lte=180"`
}

func (h *Handler) addResort(c *fiber.Ctx) error {
	var req addResortRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	res := resort.Resort{Key: req.Key, Name: req.Name, Country: req.Country, Lat: *req.Lat, Lon: *req.Lon}
	if err := h.registry.Add(res); err != nil {
		if errors.Is(err, resort.ErrDuplicateResort) {
			return statusError(err, req.Key)
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to save resort")
	}

	h.events.Infof("resort %s added", res.Key)
	return c.Status(fiber.StatusCreated).JSON(toView(res))
}

func (h *Handler) now(c *fiber.Ctx) error {
	res, err := h.lookup(c.Params("key"))
	if err != nil {
		return err
	}
	cur, err := h.forecast.Current(c.UserContext(), res.Location())
	if err != nil {
		return statusError(err, res.Key)
	}
	return c.JSON(cur)
}

func (h *Handler) currentLine(c *fiber.Ctx, command string, render func(string, weather.CurrentConditions) string) error {
	key := c.Params("key")
	h.logCommand(c, command, key)

	res, err := h.lookup(key)
	if err != nil {
		return err
	}
	cur, err := h.forecast.Current(c.UserContext(), res.Location())
	if err != nil {
		return statusError(err, key)
	}

	h.events.Debugf("%s: Sending requested information", chatlog.Handler(command))
	return c.JSON(fiber.Map{
		"resort":     toView(res),
		"conditions": cur,
		"lines":      []string{render(res.Name, cur)},
	})
}

func (h *Handler) nowTemperature(c *fiber.Ctx) error {
	return h.currentLine(c, chatlog.CmdCheckTemp, report.CurrentTemperature)
}

func (h *Handler) nowFeelsLike(c *fiber.Ctx) error {
	return h.currentLine(c, chatlog.CmdCheckFeelsLike, report.CurrentFeelsLike)
}

func one(render func(string, weather.TomorrowSummary) string) func(string, weather.TomorrowSummary) []string {
	return func(name string, t weather.TomorrowSummary) []string {
		return []string{render(name, t)}
	}
}

func precipitationLines(name string, t weather.TomorrowSummary) []string {
	return []string{
		report.TomorrowPrecipitation(name, t),
		report.TomorrowPrecipitationTypes(name, t),
	}
}

func (h *Handler) tomorrow(command string, render func(string, weather.TomorrowSummary) []string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Params("key")
		h.logCommand(c, command, key)

		res, err := h.lookup(key)
		if err != nil {
			return err
		}
		sum, err := h.forecast.Tomorrow(c.UserContext(), res.Location())
		if err != nil {
			return statusError(err, key)
		}

		h.events.Debugf("%s: Sending requested information", chatlog.Handler(command))
		return c.JSON(fiber.Map{
			"resort":   toView(res),
			"tomorrow": sum,
			"lines":    render(res.Name, sum),
		})
	}
}

func (h *Handler) snow(c *fiber.Ctx) error {
	key := c.Params("key")
	h.logCommand(c, chatlog.CmdCheckSnow, key)

	res, err := h.lookup(key)
	if err != nil {
		return err
	}
	out, err := h.forecast.SnowOutlook(c.UserContext(), res.Location())
	if err != nil {
		return statusError(err, key)
	}

	return c.JSON(fiber.Map{
		"resort":  toView(res),
		"outlook": out,
		"lines":   []string{report.Snow(res.Name, out)},
	})
}

// countryCommands maps a registry country onto its report command and the
// adjective used in the opening notice.
var countryCommands = map[string]struct {
	command   string
	adjective string
}{
	"Canada": {chatlog.CmdCanadaSnow, "Canadian"},
	"USA":    {chatlog.CmdUSASnow, "American"},
}

type snowReportEntry struct {
	Resort  resortView           `json:"resort"`
	Outlook *weather.SnowOutlook `json:"outlook,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// snowReport runs the 4-day outlook for every resort in a country. A failing
// resort is reported in place and does not abort the others.
func (h *Handler) snowReport(c *fiber.Ctx) error {
	country := c.Query("country")
	if country == "" {
		return fiber.NewError(fiber.StatusBadRequest, "country query parameter is required")
	}
	cmd, ok := countryCommands[country]
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "snow reports are available for: Canada, USA")
	}
	h.logCommand(c, cmd.command)

	keys := h.registry.FilterByCountry(country)
	entries := make([]snowReportEntry, 0, len(keys))
	lines := []string{report.CountryNotice(cmd.adjective)}

	for _, key := range keys {
		res, err := h.registry.Lookup(key)
		if err != nil {
			continue
		}
		h.events.Debug(chatlog.SendingResort(cmd.command, key))

		entry := snowReportEntry{Resort: toView(res)}
		out, err := h.forecast.SnowOutlook(c.UserContext(), res.Location())
		if err != nil {
			h.events.Warnf("snow report for %s failed: %v", key, err)
			entry.Error = statusError(err, key).Error()
		} else {
			entry.Outlook = &out
			lines = append(lines, report.Snow(res.Name, out))
		}
		entries = append(entries, entry)
	}
	lines = append(lines, report.Complete)

	return c.JSON(fiber.Map{
		"country": country,
		"reports": entries,
		"lines":   lines,
	})
}

type messageRequest struct {
	Content string `json:"content" validate:"required"`
}

// message records an inbound chat message and answers the canned greetings.
func (h *Handler) message(c *fiber.Ctx) error {
	var req messageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	cc := chatFrom(c)
	h.events.Debug(chatlog.Message(cc.author, req.Content))

	var reply string
	if cc.author != h.botHandle {
		switch req.Content {
		case chatlog.HelloContent:
			reply = helloReply
		case chatlog.ByeContent:
			reply = byeReply
		}
	}
	if reply != "" {
		h.events.Debug(chatlog.MessageContent(req.Content))
		h.events.Debugf("%s: Replied to user %s with message %q", chatlog.OnMessage, cc.author, reply)
		h.echo(reply)
	}

	return c.JSON(fiber.Map{"reply": reply})
}

type memberRequest struct {
	Name string `json:"name" validate:"required"`
}

func (h *Handler) memberJoin(c *fiber.Ctx) error {
	var req memberRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	h.events.Debug(chatlog.MemberJoined(req.Name))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"reply": memberGreeting})
}

// accept only works from a direct message channel with a well-formed handle.
func (h *Handler) accept(c *fiber.Ctx) error {
	cc := h.logCommand(c, chatlog.CmdAccept)

	if !isDirectChannel(cc.channel) {
		h.events.Debugf("%s: Message was sent from guild channel %s... sending message to let command author know that this command is \"DM only\"",
			chatlog.Handler(chatlog.CmdAccept), cc.channel)
		h.echo(dmOnlyReply)
		return fiber.NewError(fiber.StatusForbidden, dmOnlyReply)
	}
	h.echo(welcomeReply)
	return c.JSON(fiber.Map{"reply": welcomeReply})
}

func isDirectChannel(channel string) bool {
	user := strings.TrimPrefix(channel, chatlog.DirectMessagePrefix)
	return user != channel && logminer.ValidHandle(user)
}

// echo logs a reply the way the chat gateway sees the bot's own messages.
func (h *Handler) echo(reply string) {
	h.events.Debug(chatlog.Message(h.botHandle, reply))
}

func (h *Handler) server(c *fiber.Ctx) error {
	h.logCommand(c, chatlog.CmdServer)
	return c.JSON(fiber.Map{
		"name":    serviceName,
		"resorts": h.registry.Len(),
	})
}

func (h *Handler) help(c *fiber.Ctx) error {
	lines := make([]string, 0, len(chatlog.Commands)+2)
	lines = append(lines, "Commands:")
	for _, cmd := range chatlog.Commands {
		lines = append(lines, "  "+cmd)
	}
	lines = append(lines, chatlog.HelpFooter)

	h.events.Debug(strings.Join(lines, "\n"))
	return c.JSON(fiber.Map{"lines": lines})
}

// logStats mines the live activity log. ?resorts=a,b limits the per-resort
// counts; by default every registered resort is counted.
func (h *Handler) logStats(c *fiber.Ctx) error {
	text, err := h.logs.ReadAll()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to read activity log")
	}

	keys := h.registry.Keys()
	if raw := c.Query("resorts"); raw != "" {
		keys = keys[:0:0]
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
	}
	return c.JSON(h.miner.Report(text, keys...))
}
