package config

import (
	"fmt"
	"os"

	"github.com/BatmanBruc/inkpay/types"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type planFile struct {
	Plans []planEntry `yaml:"plans"`
}

type planEntry struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
	Duration    int    `yaml:"duration_days"`
	Active      *bool  `yaml:"active"`
}

// LoadPlans reads a membership catalog seed file.
//
//	plans:
//	  - id: monthly
//	    name: Monthly
//	    price: "19.90"
//	    duration_days: 30
func LoadPlans(path string) ([]types.MembershipType, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f planFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	out := make([]types.MembershipType, 0, len(f.Plans))
	for i, p := range f.Plans {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return nil, fmt.Errorf("plan %d (%s): price: %w", i, p.ID, err)
		}
		active := true
		if p.Active != nil {
			active = *p.Active
		}
		out = append(out, types.MembershipType{
			ID:           p.ID,
			Name:         p.Name,
			Description:  p.Description,
			Price:        price,
			DurationDays: p.Duration,
			IsActive:     active,
		})
	}
	return out, nil
}
