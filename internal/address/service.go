package address

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/fulfillment-backend/internal/delivery"
	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/geocode"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
)

// Where a location's coordinates came from.
const (
	SourceAddress  = "address"
	SourceGeocode  = "geocode"
	SourceProfile  = "profile"
	SourceFallback = "fallback"
	SourceNone     = "none"
)

// Geocoder resolves a postal address to coordinates.
type Geocoder interface {
	Lookup(ctx context.Context, q geocode.Query) (*geocode.Location, error)
}

// Location is where a buyer receives deliveries.
type Location struct {
	CountryCode string
	Coords      *delivery.Coordinates
	AddressID   *uuid.UUID
	Source      string
}

// Destination converts the location into pricing input.
func (l Location) Destination() delivery.Destination {
	return delivery.Destination{CountryCode: l.CountryCode, Coords: l.Coords}
}

// Service resolves buyer locations.
type Service interface {
	Locate(ctx context.Context, ownerID uuid.UUID) (Location, error)
	LocateAddress(ctx context.Context, ownerID, addressID uuid.UUID) (Location, error)
}

type service struct {
	repo     *Repository
	geocoder Geocoder
	cfg      config.PricingConfig
	logg     *logger.Logger
}

// NewService builds the location service. geocoder may be nil.
func NewService(repo *Repository, geocoder Geocoder, cfg config.PricingConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, geocoder: geocoder, cfg: cfg, logg: logg}, nil
}

// Locate picks the country from the default address, then the profile, then
// the configured default. A saved address supplies coordinates only through
// its own lat/lng or a geocode lookup; when both fail the location has none.
// Profile and fallback coordinates apply only when there is no address.
func (s *service) Locate(ctx context.Context, ownerID uuid.UUID) (Location, error) {
	if ownerID == uuid.Nil {
		return Location{}, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	addr, err := s.repo.DefaultAddress(ctx, ownerID)
	if err != nil {
		return Location{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load default address")
	}
	return s.resolve(ctx, ownerID, addr)
}

// LocateAddress resolves a specific address the owner holds.
func (s *service) LocateAddress(ctx context.Context, ownerID, addressID uuid.UUID) (Location, error) {
	addr, err := s.repo.ByID(ctx, ownerID, addressID)
	if err != nil {
		return Location{}, err
	}
	return s.resolve(ctx, ownerID, addr)
}

func (s *service) resolve(ctx context.Context, ownerID uuid.UUID, addr *models.Address) (Location, error) {
	profile, err := s.repo.Profile(ctx, ownerID)
	if err != nil {
		return Location{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load profile")
	}

	loc := Location{Source: SourceNone}
	switch {
	case addr != nil && strings.TrimSpace(addr.CountryCode) != "":
		loc.CountryCode = addr.CountryCode
	case profile != nil && profile.CountryCode != nil && strings.TrimSpace(*profile.CountryCode) != "":
		loc.CountryCode = *profile.CountryCode
	default:
		loc.CountryCode = s.cfg.DefaultCountry
	}
	loc.CountryCode = strings.ToUpper(strings.TrimSpace(loc.CountryCode))

	if addr != nil {
		id := addr.ID
		loc.AddressID = &id
		if coords := delivery.CoordinatesFrom(addr.Latitude, addr.Longitude); coords != nil {
			loc.Coords, loc.Source = coords, SourceAddress
			return loc, nil
		}
		if coords := s.geocode(ctx, addr, loc.CountryCode); coords != nil {
			loc.Coords, loc.Source = coords, SourceGeocode
		}
		return loc, nil
	}
	if profile != nil {
		if coords := delivery.CoordinatesFrom(profile.Latitude, profile.Longitude); coords != nil {
			loc.Coords, loc.Source = coords, SourceProfile
			return loc, nil
		}
	}
	if s.cfg.FallbackLatitude != 0 || s.cfg.FallbackLongitude != 0 {
		loc.Coords = &delivery.Coordinates{Latitude: s.cfg.FallbackLatitude, Longitude: s.cfg.FallbackLongitude}
		loc.Source = SourceFallback
	}
	return loc, nil
}

// geocode looks up an address without coordinates. Any failure counts as not found.
func (s *service) geocode(ctx context.Context, addr *models.Address, country string) *delivery.Coordinates {
	if s.geocoder == nil {
		return nil
	}
	query := strings.Join(nonEmpty(addr.Line1, addr.City, addr.Region), ", ")
	if query == "" {
		return nil
	}

	logCtx := s.logg.WithField(ctx, "address_id", addr.ID.String())
	found, err := s.geocoder.Lookup(ctx, geocode.Query{Address: query, CountryCode: country})
	if err != nil || found == nil {
		if err != nil {
			logCtx = s.logg.WithField(logCtx, "error", err.Error())
		}
		s.logg.Warn(logCtx, "geocode lookup failed; treating address as not found")
		return nil
	}
	return &delivery.Coordinates{Latitude: found.Latitude, Longitude: found.Longitude}
}

func nonEmpty(parts ...string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
