package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Snapshot is a JSON-friendly summary of the workflow and API counters.
type Snapshot struct {
	Transitions       map[string]float64 `json:"transitions"`
	FinishAndBill     map[string]float64 `json:"finish_and_bill"`
	Payments          map[string]float64 `json:"payments"`
	BilledAmountCents float64            `json:"billed_amount_cents"`
	APIRequests       float64            `json:"api_requests"`
	APIUnauthorized   float64            `json:"api_unauthorized"`
}

// TakeSnapshot reads the clinicdesk families from gatherer. Transitions are
// keyed by outcome and payments by "channel/status".
func TakeSnapshot(gatherer prometheus.Gatherer) (Snapshot, error) {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	snap := Snapshot{
		Transitions:   map[string]float64{},
		FinishAndBill: map[string]float64{},
		Payments:      map[string]float64{},
	}
	mfs, err := gatherer.Gather()
	if err != nil {
		return snap, fmt.Errorf("metrics: gather: %w", err)
	}
	for _, mf := range mfs {
		if mf == nil {
			continue
		}
		for _, metric := range mf.Metric {
			if metric == nil || metric.GetCounter() == nil {
				continue
			}
			v := metric.GetCounter().GetValue()
			switch mf.GetName() {
			case "clinicdesk_workflow_transitions_total":
				snap.Transitions[labelValue(metric, "outcome")] += v
			case "clinicdesk_workflow_finish_and_bill_total":
				snap.FinishAndBill[labelValue(metric, "outcome")] += v
			case "clinicdesk_workflow_payment_confirmations_total":
				snap.Payments[labelValue(metric, "channel")+"/"+labelValue(metric, "status")] += v
			case "clinicdesk_workflow_billed_amount_cents_total":
				snap.BilledAmountCents += v
			case "clinicdesk_api_requests_total":
				snap.APIRequests += v
			case "clinicdesk_api_unauthorized_total":
				snap.APIUnauthorized += v
			}
		}
	}
	return snap, nil
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.Label {
		if lp != nil && lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
