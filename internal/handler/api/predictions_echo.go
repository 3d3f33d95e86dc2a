package api

import (
	"strings"
	"time"

	"Volatile/internal/domain/models"
	xhttp "Volatile/pkg/http"
	xlogger "Volatile/pkg/logger"

	"github.com/labstack/echo/v4"
)

// EstimationReader exposes the latest completed estimation.
type EstimationReader interface {
	Get() (*models.Estimation, bool)
}

// RunSummary describes the estimation currently served.
type RunSummary struct {
	RunID           string    `json:"run_id"`
	RunAt           time.Time `json:"run_at"`
	FirstDay        time.Time `json:"first_day"`
	LastDay         time.Time `json:"last_day"`
	Days            int       `json:"days"`
	Stocks          int       `json:"stocks"`
	DefaultCurrency string    `json:"default_currency"`
	Order           int       `json:"order"`
	Horizon         int       `json:"horizon"`
	RankMode        string    `json:"rank_mode"`
}

// PredictionsEchoHandler serves the ranked predictions of the last run.
type PredictionsEchoHandler struct {
	logger *xlogger.Logger
	source EstimationReader
}

func NewPredictionsEchoHandler(logger *xlogger.Logger, source EstimationReader) *PredictionsEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &PredictionsEchoHandler{logger: logger, source: source}
}

func (h *PredictionsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/run", h.Run)
	g.GET("/predictions", h.Predictions)
	g.GET("/predictions/:symbol", h.Prediction)
	g.GET("/levels/:level", h.Levels)
	g.GET("/losses", h.Losses)
}

func unavailable(c echo.Context) error {
	return xhttp.AppErrorResponse(c, xhttp.UnavailableError("no estimation has completed yet"))
}

func (h *PredictionsEchoHandler) Run(c echo.Context) error {
	est, ok := h.source.Get()
	if !ok {
		return unavailable(c)
	}
	sum := RunSummary{
		RunID:           est.RunID,
		RunAt:           est.RunAt,
		Days:            len(est.Dates),
		Stocks:          len(est.Stocks),
		DefaultCurrency: est.DefaultCurrency,
		Order:           est.Order,
		Horizon:         est.Horizon,
		RankMode:        est.RankMode,
	}
	if n := len(est.Dates); n > 0 {
		sum.FirstDay, sum.LastDay = est.Dates[0], est.Dates[n-1]
	}
	return xhttp.SuccessResponse(c, sum)
}

// Predictions lists ranked stocks, optionally keeping one rating.
func (h *PredictionsEchoHandler) Predictions(c echo.Context) error {
	req := &models.PredictionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	want, ok := ratingFromQuery(req.Rate)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("rate", "unknown rating %q", req.Rate))
	}
	est, ok := h.source.Get()
	if !ok {
		return unavailable(c)
	}

	rows := make([]models.StockPrediction, 0, len(est.Stocks))
	total := 0
	for _, s := range est.Stocks {
		if want != "" && s.Rate != want {
			continue
		}
		total++
		if len(rows) < req.Limit {
			rows = append(rows, withoutSeries(s))
		}
	}
	return xhttp.ListResponse(c, rows, total)
}

func (h *PredictionsEchoHandler) Prediction(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	est, ok := h.source.Get()
	if !ok {
		return unavailable(c)
	}

	s, ok := est.Find(strings.ToUpper(req.Symbol))
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("symbol %s is not part of run %s", req.Symbol, est.RunID))
	}
	if !req.Series {
		s = withoutSeries(s)
	}
	return xhttp.SuccessResponse(c, s)
}

// Levels returns the fitted trends of one aggregate level, or of one
// named entity of it.
func (h *PredictionsEchoHandler) Levels(c echo.Context) error {
	req := &models.LevelRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	est, ok := h.source.Get()
	if !ok {
		return unavailable(c)
	}

	level := strings.ToLower(req.Level)
	levels, ok := est.Levels[level]
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("level", "unknown level %q, want market, sector or industry", req.Level))
	}
	if req.Name == "" {
		return xhttp.ListResponse(c, levels, len(levels))
	}
	for _, le := range levels {
		if strings.EqualFold(le.Name, req.Name) {
			return xhttp.SuccessResponse(c, le)
		}
	}
	h.logger.Debug("Level entity not found", xlogger.String("level", level), xlogger.String("name", req.Name))
	return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("%s %q not found", level, req.Name))
}

func (h *PredictionsEchoHandler) Losses(c echo.Context) error {
	est, ok := h.source.Get()
	if !ok {
		return unavailable(c)
	}
	return xhttp.SuccessResponse(c, est.Losses)
}

var ratings = []models.Rating{
	models.RatingHighlyBelow, models.RatingBelow, models.RatingAlong, models.RatingAbove, models.RatingHighlyAbove,
}

// ratingFromQuery maps "highly_below", "HIGHLY BELOW" or "highly below
// trend" to a rating. An empty value is no filter.
func ratingFromQuery(v string) (models.Rating, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", true
	}
	v = strings.ToUpper(strings.ReplaceAll(v, "_", " "))
	v = strings.TrimSuffix(v, " TREND")
	for _, r := range ratings {
		if string(r) == v+" TREND" {
			return r, true
		}
	}
	return "", false
}

func withoutSeries(s models.StockPrediction) models.StockPrediction {
	s.Price, s.Volume = nil, nil
	s.Trend = models.Band{}
	return s
}
