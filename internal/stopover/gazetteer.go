package stopover

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/pkordes/ridepost/internal/domain"
)

//go:embed gazetteer.csv
var defaultGazetteer []byte

// Place is one known location a stopover can be suggested at.
type Place struct {
	Name string  `csv:"name"`
	Lat  float64 `csv:"lat"`
	Lng  float64 `csv:"lng"`
}

func (p Place) coordinates() domain.LatLng {
	return domain.LatLng{Lat: p.Lat, Lng: p.Lng}
}

// LoadGazetteer decodes a name,lat,lng CSV with a header row.
// Rows with a blank name or out-of-range coordinates are rejected.
func LoadGazetteer(r io.Reader) ([]Place, error) {
	var places []Place
	if err := gocsv.Unmarshal(r, &places); err != nil {
		return nil, fmt.Errorf("stopover.LoadGazetteer: %w", err)
	}
	for i, p := range places {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("stopover.LoadGazetteer: row %d: name is required", i+1)
		}
		if !p.coordinates().Valid() {
			return nil, fmt.Errorf("stopover.LoadGazetteer: row %d (%s): coordinates out of range", i+1, p.Name)
		}
	}
	return places, nil
}

// LoadGazetteerFile reads the gazetteer at path, or the built-in list when
// path is empty.
func LoadGazetteerFile(path string) ([]Place, error) {
	if path == "" {
		return LoadGazetteer(bytes.NewReader(defaultGazetteer))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("stopover.LoadGazetteerFile: %w", err)
	}
	defer f.Close()
	return LoadGazetteer(f)
}
