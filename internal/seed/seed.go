// Package seed loads initial shelter records from a YAML file.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/model"
	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/shelter"
)

// File is the seed file layout:
//
//	shelters:
//	  - id: S1
//	    name: Harbor House
//	    total_beds: 20
//	    available_beds: 5
type File struct {
	Shelters []model.Shelter `yaml:"shelters"`
}

// Load parses the seed file at path.
func Load(path string) ([]model.Shelter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	seen := make(map[string]bool, len(f.Shelters))
	for i, s := range f.Shelters {
		if s.ID == "" {
			continue
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("seed file %s: duplicate id %q at entry %d", path, s.ID, i)
		}
		seen[s.ID] = true
	}
	return f.Shelters, nil
}

// Apply creates each record whose id is not already in the store, so a
// restart never resets live availability.  Records without an id are
// created only when the store is empty, since they cannot be matched
// against existing ones.  It returns the number created.
func Apply(ctx context.Context, st *shelter.Store, recs []model.Shelter, log *zap.Logger) (int, error) {
	if log == nil {
		log = zap.NewNop()
	}
	empty := st.Len() == 0
	created := 0
	for _, r := range recs {
		if r.ID == "" && !empty {
			continue
		}
		if r.ID != "" {
			if _, err := st.Get(r.ID); err == nil {
				continue
			} else if !errors.Is(err, shelter.ErrNotFound) {
				return created, err
			}
		}
		if r.UpdatedBy == "" {
			r.UpdatedBy = "seed"
		}
		rec, err := st.Create(ctx, r)
		if err != nil {
			return created, fmt.Errorf("seed %q: %w", r.Name, err)
		}
		created++
		log.Debug("seeded shelter", zap.String("id", rec.ID), zap.String("name", rec.Name))
	}
	return created, nil
}
