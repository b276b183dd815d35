package models

// Requests for the audit HTTP endpoints. Defined in domain for consistency and reuse.

type DecisionsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	Limit  int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=10000"`
	Final  string `query:"final" json:"final" validate:"omitempty,oneof=LONG SHORT NO_SIGNAL NO_TRADE"`
}

type OutcomesRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	Limit  int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=10000"`
	State  string `query:"state" json:"state" validate:"omitempty,oneof=CONFIRMED REJECTED UNKNOWN"`
}
