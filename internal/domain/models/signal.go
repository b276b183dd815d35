package models

import (
	"math"
	"time"
)

// Direction is a per-timeframe trade direction derived from model output.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
	DirectionNone  Direction = "NONE"
)

// TimeframeSignal carries one model inference for one timeframe. PLong and
// PShort are independent probabilities in [0,1]; they need not sum to 1.
type TimeframeSignal struct {
	Timeframe string
	Timestamp time.Time
	PLong     float64
	PShort    float64
}

// Direction applies the threshold rule: LONG if PLong clears the tier
// threshold, SHORT if PShort does, otherwise NONE. If both clear the
// threshold the stronger side wins.
func (s TimeframeSignal) Direction(threshold float64) Direction {
	long := s.PLong > threshold
	short := s.PShort > threshold
	switch {
	case long && short:
		if s.PLong >= s.PShort {
			return DirectionLong
		}
		return DirectionShort
	case long:
		return DirectionLong
	case short:
		return DirectionShort
	default:
		return DirectionNone
	}
}

// Strength is the absolute probability spread between the two directions.
func (s TimeframeSignal) Strength() float64 {
	return math.Abs(s.PLong - s.PShort)
}

// FinalSignal is the fused decision for one evaluation cycle.
type FinalSignal string

const (
	SignalLong     FinalSignal = "LONG"
	SignalShort    FinalSignal = "SHORT"
	SignalNoSignal FinalSignal = "NO_SIGNAL"
	SignalNoTrade  FinalSignal = "NO_TRADE"
)

// FusionResult is the immutable product of one fusion cycle, appended to the
// audit history with the signals that produced it.
type FusionResult struct {
	Symbol       string
	Timestamp    time.Time
	Final        FinalSignal
	Confidence   float64
	Contributing []TimeframeSignal
	Reasoning    string
}
