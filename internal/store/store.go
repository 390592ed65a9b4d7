// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package store persists saved routes and recorded trips in a local SQLite database.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wneessen/ridegrid/internal/geomath"
	"github.com/wneessen/ridegrid/internal/logger"
	"github.com/wneessen/ridegrid/internal/metrics"
	"github.com/wneessen/ridegrid/internal/recorder"
)

var (
	ErrInvalidMeta = errors.New("invalid save metadata")
	ErrEmptyPath   = errors.New("path needs at least two points")
)

// Meta is the user-entered metadata of a saved route or trip.
type Meta struct {
	Name    string   `json:"name" validate:"required,max=120"`
	Vibe    string   `json:"vibe" validate:"required,oneof=scenic twisty straight"`
	Surface string   `json:"surface" validate:"required,oneof=tarmac gravel mixed"`
	Tags    []string `json:"tags" validate:"max=10,dive,required,max=32"`
}

// RouteStats are the computed stats of a saved route.
type RouteStats struct {
	LengthKm    float64
	DurationMin int
	Sinuosity   float64
}

// Route is a saved route.
type Route struct {
	ID          string `gorm:"primaryKey;size:36"`
	Name        string `gorm:"not null"`
	Vibe        string `gorm:"size:16"`
	Surface     string `gorm:"size:16"`
	Tags        datatypes.JSON
	Geometry    datatypes.JSON
	LengthKm    float64
	DurationMin int
	Sinuosity   float64
	CreatedAt   time.Time
}

// Trip is a recorded trip.
type Trip struct {
	ID          string `gorm:"primaryKey;size:36"`
	Name        string `gorm:"not null"`
	Vibe        string `gorm:"size:16"`
	Surface     string `gorm:"size:16"`
	Tags        datatypes.JSON
	Geometry    datatypes.JSON
	Points      datatypes.JSON
	LengthKm    float64
	DurationMin int
	Sinuosity   float64
	MaxSpeedKmh float64
	AvgSpeedKmh float64
	Night       bool
	StartedAt   time.Time
	EndedAt     time.Time
	CreatedAt   time.Time
}

// Path decodes the stored GeoJSON geometry.
func (t Trip) Path() (orb.LineString, error) {
	return decodePath(t.Geometry)
}

// TripPoints decodes the stored trace.
func (t Trip) TripPoints() ([]recorder.TripPoint, error) {
	var stored []storedPoint
	if err := json.Unmarshal(t.Points, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode trip points: %w", err)
	}
	points := make([]recorder.TripPoint, len(stored))
	for i, p := range stored {
		points[i] = recorder.TripPoint{
			Coordinates: geomath.NewPoint(p.Lat, p.Lon),
			SpeedKmh:    p.SpeedKmh,
			TimestampMs: p.TimestampMs,
		}
	}
	return points, nil
}

// Path decodes the stored GeoJSON geometry.
func (r Route) Path() (orb.LineString, error) {
	return decodePath(r.Geometry)
}

type storedPoint struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	SpeedKmh    float64 `json:"speed_kmh"`
	TimestampMs int64   `json:"ts"`
}

// Store is the persistence collaborator.
type Store struct {
	db       *gorm.DB
	validate *validator.Validate
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

// Option configures a Store.
type Option func(*Store)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// Open opens or creates the database at path and migrates the schema.
func Open(path string, log *logger.Logger, opts ...Option) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	if err = db.AutoMigrate(&Route{}, &Trip{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database schema: %w", err)
	}

	s := &Store{
		db:       db,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Validate checks the metadata against the allowed values.
func (s *Store) Validate(meta Meta) error {
	if err := s.validate.Struct(meta); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMeta, err)
	}
	return nil
}

// SaveRoute stores a planned route.
func (s *Store) SaveRoute(ctx context.Context, meta Meta, path orb.LineString, stats RouteStats) error {
	if err := s.Validate(meta); err != nil {
		return err
	}
	geometry, err := encodePath(path)
	if err != nil {
		return err
	}
	tags, err := json.Marshal(tagsOrEmpty(meta.Tags))
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	route := Route{
		ID:          uuid.NewString(),
		Name:        meta.Name,
		Vibe:        meta.Vibe,
		Surface:     meta.Surface,
		Tags:        tags,
		Geometry:    geometry,
		LengthKm:    stats.LengthKm,
		DurationMin: stats.DurationMin,
		Sinuosity:   stats.Sinuosity,
	}
	if err = s.db.WithContext(ctx).Create(&route).Error; err != nil {
		return fmt.Errorf("failed to save route: %w", err)
	}
	s.logger.Info("route saved", slog.String("id", route.ID), slog.String("name", route.Name))
	return nil
}

// SaveTrip stores a recorded trip. An empty vibe in meta is derived from the trip's sinuosity.
func (s *Store) SaveTrip(ctx context.Context, meta Meta, summary recorder.Summary) error {
	if meta.Vibe == "" {
		meta.Vibe = VibeOf(summary.Vibe)
	}
	if err := s.Validate(meta); err != nil {
		return err
	}
	geometry, err := encodePath(summary.Path())
	if err != nil {
		return err
	}
	tags, err := json.Marshal(tagsOrEmpty(meta.Tags))
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}
	stored := make([]storedPoint, len(summary.Points))
	for i, p := range summary.Points {
		stored[i] = storedPoint{
			Lat:         p.Coordinates.Lat(),
			Lon:         p.Coordinates.Lon(),
			SpeedKmh:    p.SpeedKmh,
			TimestampMs: p.TimestampMs,
		}
	}
	points, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode trip points: %w", err)
	}

	trip := Trip{
		ID:          uuid.NewString(),
		Name:        meta.Name,
		Vibe:        meta.Vibe,
		Surface:     meta.Surface,
		Tags:        tags,
		Geometry:    geometry,
		Points:      points,
		LengthKm:    summary.LengthKm,
		DurationMin: summary.DurationMin,
		Sinuosity:   summary.Sinuosity,
		MaxSpeedKmh: summary.MaxSpeedKmh,
		AvgSpeedKmh: summary.AvgSpeedKmh,
		Night:       summary.Night,
		StartedAt:   summary.StartedAt,
		EndedAt:     summary.EndedAt,
	}
	if err = s.db.WithContext(ctx).Create(&trip).Error; err != nil {
		return fmt.Errorf("failed to save trip: %w", err)
	}
	s.metrics.TripSaved()
	s.logger.Info("trip saved", slog.String("id", trip.ID), slog.String("name", trip.Name),
		slog.Float64("length_km", trip.LengthKm))
	return nil
}

// Routes returns all saved routes, newest first.
func (s *Store) Routes(ctx context.Context) ([]Route, error) {
	var routes []Route
	if err := s.db.WithContext(ctx).Order("created_at desc").Find(&routes).Error; err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}
	return routes, nil
}

// Trips returns all recorded trips, newest first.
func (s *Store) Trips(ctx context.Context) ([]Trip, error) {
	var trips []Trip
	if err := s.db.WithContext(ctx).Order("created_at desc").Find(&trips).Error; err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	return trips, nil
}

// VibeOf maps a computed vibe to the stored vibe vocabulary.
func VibeOf(v geomath.Vibe) string {
	switch v {
	case geomath.Twisty:
		return "twisty"
	case geomath.Curvy:
		return "scenic"
	default:
		return "straight"
	}
}

func encodePath(path orb.LineString) (datatypes.JSON, error) {
	if len(path) < 2 {
		return nil, ErrEmptyPath
	}
	data, err := geojson.NewGeometry(path).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode geometry: %w", err)
	}
	return data, nil
}

func decodePath(data datatypes.JSON) (orb.LineString, error) {
	geometry, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode geometry: %w", err)
	}
	line, ok := geometry.Geometry().(orb.LineString)
	if !ok {
		return nil, fmt.Errorf("unexpected geometry type %s", geometry.Type)
	}
	return line, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
