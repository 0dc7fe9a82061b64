package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-payments/internal/cache"
	"github.com/ignatzorin/freelance-payments/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-payments/internal/logger"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
)

// xofPerEUR фиксированный курс франка КФА к евро.
var xofPerEUR = decimal.RequireFromString("655.957")

var errUnsupportedCurrency = apperror.New(apperror.ErrCodeInvalidInput, "конвертация для этой валюты недоступна")

// RateSource источник курсов валют, кроме привязки XOF/EUR.
type RateSource interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// CurrencyService конвертирует суммы между валютами с кэшированием курсов.
type CurrencyService struct {
	cache  *cache.TTLCache
	source RateSource
	ttl    time.Duration
}

// NewCurrencyService source может быть nil: тогда доступна только пара XOF/EUR.
func NewCurrencyService(c *cache.TTLCache, source RateSource, ttl time.Duration) *CurrencyService {
	return &CurrencyService{cache: c, source: source, ttl: ttl}
}

// Convert переводит сумму и округляет её по правилам целевой валюты.
func (s *CurrencyService) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)
	if from == to {
		return amount, nil
	}

	var (
		result decimal.Decimal
		err    error
	)
	switch {
	case from == "XOF" && to == "EUR":
		result = amount.Div(xofPerEUR)
	case from == "EUR" && to == "XOF":
		result = amount.Mul(xofPerEUR)
	case from == "XOF":
		// через евро: XOF → EUR по привязке, дальше по рыночному курсу
		result, err = s.convertByRate(ctx, amount.Div(xofPerEUR), "EUR", to)
	case to == "XOF":
		result, err = s.convertByRate(ctx, amount, from, "EUR")
		result = result.Mul(xofPerEUR)
	default:
		result, err = s.convertByRate(ctx, amount, from, to)
	}
	if err != nil {
		return decimal.Zero, err
	}

	if valueobject.IsZeroDecimal(to) {
		return result.Round(0), nil
	}
	return result.Round(2), nil
}

func (s *CurrencyService) convertByRate(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	rate, err := s.rate(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate), nil
}

func (s *CurrencyService) rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if s.source == nil {
		return decimal.Zero, errUnsupportedCurrency
	}

	key := "rate:" + from + ":" + to
	value, err := s.cache.GetOrSet(ctx, key, s.ttl, func(ctx context.Context) (interface{}, error) {
		return s.source.Rate(ctx, from, to)
	})
	if err != nil {
		logger.Log.WithFields(logrus.Fields{
			"from":  from,
			"to":    to,
			"error": err,
		}).Warn("currency: не удалось получить курс")
		return decimal.Zero, apperror.Wrap(err, apperror.ErrCodeProvider, "сервис курсов валют недоступен")
	}
	return value.(decimal.Decimal), nil
}

// HTTPRateSource читает курсы из JSON эндпоинта вида {"base":"EUR","rates":{"USD":1.08}}.
type HTTPRateSource struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPRateSource(baseURL string) *HTTPRateSource {
	return &HTTPRateSource{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

type ratesResponse struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

func (s *HTTPRateSource) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	endpoint, err := url.Parse(s.baseURL)
	if err != nil {
		return decimal.Zero, fmt.Errorf("currency: invalid rates url %w", err)
	}
	q := endpoint.Query()
	q.Set("base", from)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("currency: build request %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("currency: fetch rates %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("currency: rates endpoint returned %d", resp.StatusCode)
	}

	var body ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("currency: decode rates %w", err)
	}
	rate, ok := body.Rates[to]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("currency: no rate %s/%s", from, to)
	}
	return rate, nil
}
