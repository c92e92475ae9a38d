package biz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lk2023060901/linkedin-discovery/internal/discovery/linkedin"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/types"
)

var (
	// ErrInvalidAction 未知的用户操作
	ErrInvalidAction = errors.New("user action must be one of selected, manual_entry, skipped")

	// ErrSelectionRequired 选择操作必须提供链接
	ErrSelectionRequired = errors.New("selected and manual_entry outcomes need a linkedin url")
)

// Outcome is the caller's terminal decision about one discovery
type Outcome struct {
	SearchTerm     string
	Action         types.UserAction
	SelectedURL    string
	Confidence     *float64
	ResultCount    int
	ResponseTimeMs int64
}

// Validate checks the outcome and canonicalizes the selected URL
func (o *Outcome) Validate() error {
	if types.NormalizeTerm(o.SearchTerm) == "" {
		return types.ErrInvalidInput
	}
	if !o.Action.Valid() {
		return ErrInvalidAction
	}
	if o.ResultCount < 0 || o.ResponseTimeMs < 0 {
		return fmt.Errorf("%w: negative counters", types.ErrInvalidInput)
	}

	switch o.Action {
	case types.ActionSelected, types.ActionManualEntry:
		if o.SelectedURL == "" {
			return ErrSelectionRequired
		}
		canonical, err := linkedin.Canonicalize(o.SelectedURL)
		if err != nil {
			return fmt.Errorf("%w: %v", types.ErrInvalidInput, err)
		}
		o.SelectedURL = canonical
	case types.ActionSkipped:
		o.SelectedURL = ""
		o.Confidence = nil
	}
	return nil
}

// RecordOutcome records the caller's decision. Recording is best effort: a dropped
// metric is logged by the recorder and never reported here.
func (uc *DiscoveryUseCase) RecordOutcome(ctx context.Context, o Outcome) (*types.SearchMetric, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}

	m := types.SearchMetric{
		SearchTerm:     types.NormalizeTerm(o.SearchTerm),
		UserAction:     o.Action,
		ResultCount:    o.ResultCount,
		ResponseTimeMs: o.ResponseTimeMs,
		CreatedAt:      uc.now().UTC(),
	}
	if o.SelectedURL != "" {
		url := o.SelectedURL
		m.SelectedURL = &url
	}
	if o.Confidence != nil {
		c := *o.Confidence
		m.SelectionConfidence = &c
	}

	if uc.metrics != nil {
		uc.metrics.Record(m)
	}
	return &m, nil
}

// MetricsSummary aggregates recorded outcomes since the given time
func (uc *DiscoveryUseCase) MetricsSummary(ctx context.Context, since time.Time) (*types.MetricSummary, error) {
	if uc.metrics == nil {
		return &types.MetricSummary{Since: since, ByAction: map[types.UserAction]int64{}}, nil
	}
	return uc.metrics.Summary(ctx, since)
}

// BuildCompanyRecord produces the value handed to the company persistence layer.
// A nil selection yields a "none" record.
func (uc *DiscoveryUseCase) BuildCompanyRecord(selection *types.CandidateResult, method types.DiscoveryMethod) (*types.CompanyLinkedInRecord, error) {
	rec := &types.CompanyLinkedInRecord{
		DiscoveryMethod: types.MethodNone,
		LastVerifiedAt:  uc.now().UTC(),
	}
	if selection == nil || method == types.MethodNone {
		return rec, nil
	}

	canonical, err := linkedin.Canonicalize(selection.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidInput, err)
	}

	rec.LinkedInURL = canonical
	switch method {
	case types.MethodAuto:
		rec.DiscoveryMethod = types.MethodAuto
		rec.Confidence = selection.Confidence
	case types.MethodManual:
		// manual entries are trusted as-is
		rec.DiscoveryMethod = types.MethodManual
		rec.Confidence = 1
	default:
		return nil, fmt.Errorf("%w: unknown discovery method %q", types.ErrInvalidInput, method)
	}
	return rec, nil
}
