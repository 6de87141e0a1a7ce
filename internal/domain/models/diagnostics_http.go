package models

// Requests for diagnostics HTTP endpoints. Defined in domain for consistency and reuse.

type DiagnosticRequest struct {
	Ticker string `query:"ticker" json:"ticker" validate:"required,alpha,uppercase,max=6"`
	Date   string `query:"date" json:"date" validate:"required,datetime=2006-01-02"`
	Format string `query:"format" json:"format" default:"json" validate:"oneof=json text"`
}

type UniverseRequest struct {
	Date string `query:"date" json:"date" validate:"required,datetime=2006-01-02"`
}

type RunRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
	// AdHoc restricts the run to a single ticker without touching FOCUS.
	Ticker string `json:"ticker" validate:"omitempty,alpha,uppercase,max=6"`
	// Async enqueues the run instead of blocking the request.
	Async bool `json:"async"`
}
