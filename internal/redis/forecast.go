package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
)

// Keys written by the external model job.
const elasticityKey = "model:elasticity"

func forecastKey(productID string, horizonDays int) string {
	return "model:forecast:" + productID + ":" + strconv.Itoa(horizonDays)
}

// ForecastSource reads model outputs from Redis. A product the model has not
// scored yields SignalUnavailableError.
type ForecastSource struct {
	client *redis.Client
}

func NewForecastSource(client *redis.Client) *ForecastSource {
	return &ForecastSource{client: client}
}

func (f *ForecastSource) Elasticity(ctx context.Context, productID string) (float64, error) {
	v, err := f.client.HGet(ctx, elasticityKey, productID).Float64()
	if errors.Is(err, redis.Nil) {
		return 0, &domain.SignalUnavailableError{Source: "elasticity", ProductID: productID}
	}
	if err != nil {
		return 0, fmt.Errorf("redis elasticity for %s: %w", productID, err)
	}
	return v, nil
}

func (f *ForecastSource) DemandForecast(ctx context.Context, productID string, horizonDays int) (domain.Forecast, error) {
	vals, err := f.client.HGetAll(ctx, forecastKey(productID, horizonDays)).Result()
	if err != nil {
		return domain.Forecast{}, fmt.Errorf("redis forecast for %s: %w", productID, err)
	}
	if len(vals) == 0 {
		return domain.Forecast{}, &domain.SignalUnavailableError{Source: "forecast", ProductID: productID}
	}

	fc := domain.Forecast{ProductID: productID, HorizonDays: horizonDays}
	for field, dst := range map[string]*float64{
		"units":       &fc.Units,
		"seasonality": &fc.Seasonality,
		"confidence":  &fc.Confidence,
	} {
		raw, ok := vals[field]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.Forecast{}, fmt.Errorf("parse forecast %s.%s: %w", productID, field, err)
		}
		*dst = v
	}
	return fc, nil
}

// SetElasticity stores a model elasticity.
func (f *ForecastSource) SetElasticity(ctx context.Context, productID string, v float64) error {
	if err := f.client.HSet(ctx, elasticityKey, productID, v).Err(); err != nil {
		return fmt.Errorf("redis set elasticity for %s: %w", productID, err)
	}
	return nil
}

// SetForecast stores a model forecast.
func (f *ForecastSource) SetForecast(ctx context.Context, fc domain.Forecast) error {
	err := f.client.HSet(ctx, forecastKey(fc.ProductID, fc.HorizonDays),
		"units", fc.Units,
		"seasonality", fc.Seasonality,
		"confidence", fc.Confidence,
	).Err()
	if err != nil {
		return fmt.Errorf("redis set forecast for %s: %w", fc.ProductID, err)
	}
	return nil
}
