// Package geoip resolves client IP addresses to ISO country codes using a
// local MaxMind database. Lookups feed locale detection for prompt
// enhancement; the resolver is optional and the server runs without it.
package geoip

import (
	"errors"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// ErrUnavailable indicates no country could be resolved for the address.
var ErrUnavailable = errors.New("geoip: country unavailable")

// CountryResolver maps an IP address to an ISO 3166-1 alpha-2 country code.
type CountryResolver interface {
	CountryCode(ip string) (string, error)
	Close() error
}

// Resolver implements CountryResolver over a GeoLite2 database file.
type Resolver struct {
	reader *geoip2.Reader
}

var _ CountryResolver = (*Resolver)(nil)

// NewResolver opens the database at path. An empty path returns (nil, nil)
// so callers can treat the resolver as absent.
func NewResolver(path string) (*Resolver, error) {
	if path == "" {
		return nil, nil
	}

	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database: %w", err)
	}

	return &Resolver{reader: reader}, nil
}

// CountryCode resolves ip to a country code, or ErrUnavailable when the
// address is unparseable or absent from the database.
func (r *Resolver) CountryCode(ip string) (string, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", ErrUnavailable
	}

	record, err := r.reader.Country(parsed)
	if err != nil {
		return "", fmt.Errorf("geoip: lookup %s: %w", ip, err)
	}

	if record == nil || record.Country.IsoCode == "" {
		return "", ErrUnavailable
	}

	return record.Country.IsoCode, nil
}

// Close releases the underlying database handle.
func (r *Resolver) Close() error {
	if r == nil || r.reader == nil {
		return nil
	}
	return r.reader.Close()
}
