package repository

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mramzani/barghalarm/internal/entities"
)

// SeedFile is the reference data of cities, their portal areas and known
// addresses, as kept in a YAML file
type SeedFile struct {
	Cities []SeedCity `yaml:"cities"`
}

// SeedCity is one city entry of a seed file
type SeedCity struct {
	Code      string     `yaml:"code"`
	NameFa    string     `yaml:"name_fa"`
	NameEn    string     `yaml:"name_en"`
	Areas     []SeedArea `yaml:"areas"`
	Addresses []string   `yaml:"addresses"`
}

// SeedArea is one portal area of a city
type SeedArea struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// SeedStats counts what a seed run wrote
type SeedStats struct {
	Cities    int
	Areas     int
	Addresses int // newly created only
}

// LoadSeedFile reads and validates a YAML seed file
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes and validates YAML seed data
func ParseSeed(data []byte) (*SeedFile, error) {
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	for i, c := range seed.Cities {
		if strings.TrimSpace(c.Code) == "" || strings.TrimSpace(c.NameFa) == "" {
			return nil, fmt.Errorf("city #%d: code and name_fa are required", i+1)
		}
		for j, a := range c.Areas {
			if strings.TrimSpace(a.Code) == "" {
				return nil, fmt.Errorf("city %s area #%d: code is required", c.Code, j+1)
			}
		}
	}
	return &seed, nil
}

// Seed upserts the reference data in one transaction. Cities and areas are
// matched by code, addresses by (city, label); running it twice is harmless.
func (r *SQLRepository) Seed(ctx context.Context, seed *SeedFile) (SeedStats, error) {
	var stats SeedStats

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range seed.Cities {
		cityID, err := r.upsertCity(ctx, tx, entities.City{
			Code:   strings.TrimSpace(c.Code),
			NameFa: strings.TrimSpace(c.NameFa),
			NameEn: strings.TrimSpace(c.NameEn),
		})
		if err != nil {
			return stats, err
		}
		stats.Cities++

		for _, a := range c.Areas {
			if _, err := r.upsertArea(ctx, tx, entities.Area{
				CityID: cityID,
				Code:   strings.TrimSpace(a.Code),
				Name:   strings.TrimSpace(a.Name),
			}); err != nil {
				return stats, err
			}
			stats.Areas++
		}

		for _, label := range c.Addresses {
			label = strings.TrimSpace(label)
			if label == "" {
				continue
			}
			_, created, err := r.createAddress(ctx, tx, cityID, label, "")
			if err != nil {
				return stats, err
			}
			if created {
				stats.Addresses++
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Info("seeded reference data",
		zap.Int("cities", stats.Cities),
		zap.Int("areas", stats.Areas),
		zap.Int("new_addresses", stats.Addresses),
	)
	return stats, nil
}
