package report

import "github.com/nao1215/antmaps/internal/model"

// Comparison is the difference between two runs of one location.
type Comparison struct {
	Location string `json:"location"`

	// Previous is the older run; Current the newer one.
	Previous *model.RunReport `json:"previous"`
	Current  *model.RunReport `json:"current"`

	// Added lists species present only in Current, Removed those present
	// only in Previous. Both keep the order of the run they come from.
	Added   []model.Species `json:"added"`
	Removed []model.Species `json:"removed"`

	// ImageChanged lists species present in both runs whose image URL differs.
	ImageChanged []model.Species `json:"imageChanged"`
}

// NewComparison compares two runs by species name.
func NewComparison(previous, current *model.RunReport) *Comparison {
	cmp := &Comparison{
		Previous:     previous,
		Current:      current,
		Added:        []model.Species{},
		Removed:      []model.Species{},
		ImageChanged: []model.Species{},
	}
	if current != nil {
		cmp.Location = current.Location
	} else if previous != nil {
		cmp.Location = previous.Location
	}

	prev := speciesByName(previous)
	cur := speciesByName(current)

	if current != nil {
		for _, s := range current.Species {
			old, ok := prev[s.Name]
			switch {
			case !ok:
				cmp.Added = append(cmp.Added, s)
			case old.ImageURL != s.ImageURL:
				cmp.ImageChanged = append(cmp.ImageChanged, s)
			}
		}
	}
	if previous != nil {
		for _, s := range previous.Species {
			if _, ok := cur[s.Name]; !ok {
				cmp.Removed = append(cmp.Removed, s)
			}
		}
	}

	return cmp
}

// Unchanged reports whether both runs delivered the same species.
func (c *Comparison) Unchanged() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.ImageChanged) == 0
}

func speciesByName(r *model.RunReport) map[string]model.Species {
	m := make(map[string]model.Species)
	if r == nil {
		return m
	}
	for _, s := range r.Species {
		m[s.Name] = s
	}
	return m
}
