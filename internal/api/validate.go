package api

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/skylark-dev/weather-alerts/internal/aggregator"
	"github.com/skylark-dev/weather-alerts/internal/alerts"
)

// Validation is the only place a request is rejected before any provider
// call. Errors are collected per field so the caller sees everything wrong
// with the query at once.

const (
	defaultLimit = 120
	maxLimit     = 500
)

var allowedLangs = map[string]bool{
	"en": true,
	"de": true,
	"fr": true,
	"es": true,
	"it": true,
}

type fieldErrors map[string]string

func (e fieldErrors) add(field, msg string) {
	e[field] = msg
}

type coordsQuery struct {
	Lat  float64
	Lon  float64
	Lang string
}

type queryGetter interface {
	Query(key string) string
}

func parseCoordsQuery(q queryGetter) (coordsQuery, fieldErrors) {
	errs := fieldErrors{}
	out := coordsQuery{Lang: normalizeLang(q.Query("lang"))}

	lat, err := strconv.ParseFloat(strings.TrimSpace(q.Query("lat")), 64)
	switch {
	case err != nil:
		errs.add("lat", "must be a number")
	case lat < -90 || lat > 90:
		errs.add("lat", "must be between -90 and 90")
	default:
		out.Lat = lat
	}

	lon, err := strconv.ParseFloat(strings.TrimSpace(q.Query("lon")), 64)
	switch {
	case err != nil:
		errs.add("lon", "must be a number")
	case lon < -180 || lon > 180:
		errs.add("lon", "must be between -180 and 180")
	default:
		out.Lon = lon
	}

	if len(errs) > 0 {
		return coordsQuery{}, errs
	}
	return out, nil
}

func parseCountryQuery(q queryGetter) (aggregator.CountryQuery, fieldErrors) {
	errs := fieldErrors{}
	out := aggregator.CountryQuery{
		Lang:  normalizeLang(q.Query("lang")),
		Limit: defaultLimit,
	}

	code := strings.TrimSpace(q.Query("code"))
	if len(code) < 2 || len(code) > 3 {
		errs.add("code", "must be a 2-letter country code")
	} else {
		out.Code = strings.ToUpper(code[:2])
	}

	if raw := strings.TrimSpace(q.Query("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			errs.add("limit", "must be an integer")
		case limit < 1 || limit > maxLimit:
			errs.add("limit", fmt.Sprintf("must be between 1 and %d", maxLimit))
		default:
			out.Limit = limit
		}
	}

	if area := strings.TrimSpace(q.Query("area")); area != "" {
		out.Area = area
	}

	if raw := strings.TrimSpace(q.Query("minSeverity")); raw != "" {
		sev, ok := alerts.ParseSeverity(raw)
		if !ok {
			errs.add("minSeverity", "must be one of minor, moderate, severe, extreme")
		} else {
			out.MinSeverity = sev
		}
	}

	if len(errs) > 0 {
		return aggregator.CountryQuery{}, errs
	}
	return out, nil
}

// normalizeLang silently falls back to "en" for anything outside the
// allow-list; a bad language is never a validation error.
func normalizeLang(raw string) string {
	lang := strings.ToLower(strings.TrimSpace(raw))
	if allowedLangs[lang] {
		return lang
	}
	return "en"
}
