package geo

import (
	"context"
	"net"

	"github.com/oschwald/geoip2-golang"

	"tourprism/internal/models"
)

// Network locates by client IP using a GeoIP2 city database. It never offers high
// accuracy; the reported accuracy is the database radius.
type Network struct {
	reader *geoip2.Reader
	ip     string
}

func NewNetwork(reader *geoip2.Reader, ip string) *Network {
	return &Network{reader: reader, ip: ip}
}

func (n *Network) Locate(_ context.Context, req Request) (Position, error) {
	if req.HighAccuracy {
		return Position{}, &GeoError{Code: CodeTimeout, Message: "network location has no high accuracy mode"}
	}
	if n.reader == nil {
		return Position{}, &GeoError{Code: CodePositionUnavailable, Message: "no geoip database"}
	}
	ip := net.ParseIP(n.ip)
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() {
		return Position{}, &GeoError{Code: CodePositionUnavailable, Message: "address not routable"}
	}
	rec, err := n.reader.City(ip)
	if err != nil {
		return Position{}, &GeoError{Code: CodePositionUnavailable, Message: err.Error()}
	}
	if rec.Location.Latitude == 0 && rec.Location.Longitude == 0 {
		return Position{}, &GeoError{Code: CodePositionUnavailable, Message: "address has no location"}
	}
	return Position{
		Coords:   coords(rec.Location.Latitude, rec.Location.Longitude),
		Accuracy: float64(rec.Location.AccuracyRadius) * 1000,
	}, nil
}

func coords(lat, lon float64) models.Coords {
	return models.Coords{Latitude: lat, Longitude: lon}
}
