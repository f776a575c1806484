package syncer

import (
	"fmt"
)

// Per-finding score penalties. The score is for display only; nothing
// branches on it.
const (
	errorPenalty   = 15
	warningPenalty = 5
)

// Report is the result of a structural validation pass over a projection.
type Report struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Score    int      `json:"score"`
}

// Validate structurally checks a projection: every target edge must
// reference swaps present in the same projection, incoming counts must
// match the incoming list, and an outgoing edge must be reflected on its
// source swap.
func Validate(p *Projection) Report {
	var report Report

	for id, swap := range p.Swaps {
		if swap.OutgoingTarget != nil {
			t := swap.OutgoingTarget
			if t.SourceSwapID != id {
				report.Errors = append(report.Errors,
					fmt.Sprintf("swap %s outgoing target %s has source %s", id, t.ID, t.SourceSwapID))
			}
			if _, ok := p.Swaps[t.TargetSwapID]; !ok {
				report.Errors = append(report.Errors,
					fmt.Sprintf("swap %s outgoing target %s references missing swap %s", id, t.ID, t.TargetSwapID))
			}
		}

		for _, t := range swap.IncomingTargets {
			if t.TargetSwapID != id {
				report.Errors = append(report.Errors,
					fmt.Sprintf("swap %s incoming target %s has target %s", id, t.ID, t.TargetSwapID))
			}
			source, ok := p.Swaps[t.SourceSwapID]
			if !ok {
				report.Errors = append(report.Errors,
					fmt.Sprintf("swap %s incoming target %s references missing swap %s", id, t.ID, t.SourceSwapID))
				continue
			}
			// The source swap of an active edge must itself show that edge
			// outgoing; showing none is the divergence the validator exists
			// to catch.
			if t.Status == "active" && source.OutgoingTarget == nil {
				report.Errors = append(report.Errors,
					fmt.Sprintf("swap %s shows no outgoing target but %s holds its active edge %s", t.SourceSwapID, id, t.ID))
			}
		}

		if swap.IncomingTargetCount != len(swap.IncomingTargets) {
			report.Errors = append(report.Errors,
				fmt.Sprintf("swap %s incoming count %d does not match %d targets", id, swap.IncomingTargetCount, len(swap.IncomingTargets)))
		}

		// Resolved swaps still carrying active edges are suspicious but can
		// be a benign event-ordering artifact; flag without failing.
		if swap.Status != "pending" {
			for _, t := range swap.IncomingTargets {
				if t.Status == "active" {
					report.Warnings = append(report.Warnings,
						fmt.Sprintf("swap %s is %s but incoming target %s is still active", id, swap.Status, t.ID))
				}
			}
		}
	}

	report.IsValid = len(report.Errors) == 0

	score := 100 - errorPenalty*len(report.Errors) - warningPenalty*len(report.Warnings)
	if score < 0 {
		score = 0
	}
	report.Score = score

	return report
}
