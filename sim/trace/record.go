// Package trace provides per-year and per-sub-step result recording for simulation runs.
// This package has no dependencies on sim/; it stores pure data types.
package trace

// TechRecord captures one technology's state in one region.
type TechRecord struct {
	Tech       string  `json:"tech"`
	Share      float64 `json:"share"`
	Capacity   float64 `json:"capacity"`
	Generation float64 `json:"generation"`
	Sales      float64 `json:"sales"` // year to date
	Emissions  float64 `json:"emissions"`
	Cost       float64 `json:"cost"` // generalised cost
	CostStd    float64 `json:"cost_std"`
}

// RegionRecord captures one region's solved state.
type RegionRecord struct {
	Region string       `json:"region"`
	Demand []float64    `json:"demand"` // per segment
	Techs  []TechRecord `json:"techs"`
}

// YearRecord captures the solved state of one sector year.
type YearRecord struct {
	Sector     string             `json:"sector"`
	Year       int                `json:"year"`
	Phase      string             `json:"phase"`
	Regions    []RegionRecord     `json:"regions"`
	Experience map[string]float64 `json:"experience"` // tech → cumulative global experience
}

// SubStepRecord captures shares after one endogenous sub-step.
type SubStepRecord struct {
	Sector  string               `json:"sector"`
	Year    int                  `json:"year"`
	SubStep int                  `json:"sub_step"`
	Shares  map[string][]float64 `json:"shares"` // region → shares in technology order
}
