// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package osrm

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/wneessen/ridegrid/internal/directions"
	"github.com/wneessen/ridegrid/internal/geomath"
	"github.com/wneessen/ridegrid/internal/http"
)

const (
	DefaultEndpoint = "https://router.project-osrm.org"
	APITimeout      = time.Second * 10
	DefaultProfile  = "driving"
	name            = "osrm"
)

type OSRM struct {
	baseURL string
	profile string
	http    *http.Client
}

// New returns an OSRM provider for the given server. An empty baseURL uses the public demo server.
func New(client *http.Client, baseURL, profile string) *OSRM {
	if baseURL == "" {
		baseURL = DefaultEndpoint
	}
	if profile == "" {
		profile = DefaultProfile
	}
	return &OSRM{
		baseURL: strings.TrimRight(baseURL, "/"),
		profile: profile,
		http:    client,
	}
}

func (o *OSRM) Name() string {
	return name
}

func (o *OSRM) Route(ctx context.Context, coords []geomath.Point) ([]directions.Path, error) {
	var response directions.Response

	query := url.Values{}
	query.Set("geometries", "geojson")
	query.Set("overview", "full")
	query.Set("steps", "true")
	query.Set("alternatives", "true")

	endpoint := fmt.Sprintf("%s/route/v1/%s/%s", o.baseURL, o.profile, directions.CoordinateString(coords))
	if _, err := o.http.GetWithTimeout(ctx, endpoint, &response, query, APITimeout); err != nil {
		return nil, fmt.Errorf("failed to retrieve route from OSRM: %w", err)
	}
	switch response.Code {
	case "Ok", "":
	case "NoRoute":
		return nil, nil
	default:
		return nil, fmt.Errorf("OSRM returned %s: %s", response.Code, response.Message)
	}

	return response.Paths(), nil
}
