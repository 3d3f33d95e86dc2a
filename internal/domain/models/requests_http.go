package models

// Requests for prediction HTTP endpoints.

type PredictionsRequest struct {
	Rate  string `query:"rate" json:"rate"`
	Limit int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=5000"`
}

type SymbolRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required"`
	Series bool   `query:"series" json:"series"`
}

type LevelRequest struct {
	Level string `param:"level" json:"level" validate:"required"`
	Name  string `query:"name" json:"name"`
}
