// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package mapbox

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/wneessen/ridegrid/internal/directions"
	"github.com/wneessen/ridegrid/internal/geomath"
	"github.com/wneessen/ridegrid/internal/http"
)

const (
	APIEndpoint    = "https://api.mapbox.com/directions/v5/mapbox"
	APITimeout     = time.Second * 10
	DefaultProfile = "driving"
	name           = "mapbox"
)

var ErrMissingToken = errors.New("mapbox access token is required")

type Mapbox struct {
	endpoint string
	profile  string
	token    string
	http     *http.Client
}

func New(client *http.Client, token, profile string) (*Mapbox, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	if profile == "" {
		profile = DefaultProfile
	}
	return &Mapbox{
		endpoint: APIEndpoint,
		profile:  profile,
		token:    token,
		http:     client,
	}, nil
}

func (m *Mapbox) Name() string {
	return name
}

// Route requests alternatives with full GeoJSON geometry and step instructions.
func (m *Mapbox) Route(ctx context.Context, coords []geomath.Point) ([]directions.Path, error) {
	var response directions.Response

	query := url.Values{}
	query.Set("geometries", "geojson")
	query.Set("overview", "full")
	query.Set("steps", "true")
	query.Set("alternatives", "true")
	query.Set("access_token", m.token)

	endpoint := fmt.Sprintf("%s/%s/%s", m.endpoint, m.profile, directions.CoordinateString(coords))
	if _, err := m.http.GetWithTimeout(ctx, endpoint, &response, query, APITimeout); err != nil {
		return nil, fmt.Errorf("failed to retrieve directions from Mapbox API: %w", err)
	}
	if response.Code != "" && response.Code != "Ok" && response.Code != "NoRoute" {
		return nil, fmt.Errorf("mapbox API returned %s: %s", response.Code, response.Message)
	}

	return response.Paths(), nil
}
