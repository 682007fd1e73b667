package handler

// ConvertParams holds the multipart scalar fields shared by /convert and
// /batch. Numeric fields that are missing or unparseable stay nil.
type ConvertParams struct {
	Format   string   `validate:"required,imageformat"`
	TargetKB *float64 `validate:"omitempty,gt=0"`
	Percent  *int // clamped to 1..100 by the engine
	Width    int  // resize applies only when both are positive
	Height   int
}
