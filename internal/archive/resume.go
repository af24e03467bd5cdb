package archive

import (
	"encoding/json"
	"fmt"

	"aclo/internal/acloerr"
)

// DriftPolicy is the subset of governance-session knobs a resume refuses
// to silently diverge on unless allow-drift is set.
type DriftPolicy struct {
	MaxRounds         int
	TargetRisk        string
	ExecuteAdvisory   bool
	AdvisoryPolicy    string
}

// DetectDrift compares a prior governance session's policy against the
// requested one, returning a human-readable reason per divergent field.
func DetectDrift(prior, requested DriftPolicy) []string {
	var drifts []string
	if prior.MaxRounds != requested.MaxRounds {
		drifts = append(drifts, fmt.Sprintf("max_rounds changed %d -> %d", prior.MaxRounds, requested.MaxRounds))
	}
	if prior.TargetRisk != requested.TargetRisk {
		drifts = append(drifts, fmt.Sprintf("target_risk changed %q -> %q", prior.TargetRisk, requested.TargetRisk))
	}
	if prior.ExecuteAdvisory != requested.ExecuteAdvisory {
		drifts = append(drifts, fmt.Sprintf("execute_advisory changed %v -> %v", prior.ExecuteAdvisory, requested.ExecuteAdvisory))
	}
	if prior.AdvisoryPolicy != requested.AdvisoryPolicy {
		drifts = append(drifts, fmt.Sprintf("advisory policy changed %q -> %q", prior.AdvisoryPolicy, requested.AdvisoryPolicy))
	}
	return drifts
}

// ResumeGovernance loads a prior governance session and validates it can be
// resumed: drifts in policy knobs are refused unless allowDrift is set.
func (s *Store) ResumeGovernance(id string, requested DriftPolicy, allowDrift bool) (Envelope, []string, error) {
	prior, err := s.Load(id)
	if err != nil {
		return Envelope{}, nil, err
	}

	var priorPolicy DriftPolicy
	_ = decodePayload(prior, &priorPolicy)

	drifts := DetectDrift(priorPolicy, requested)
	if len(drifts) > 0 && !allowDrift {
		return Envelope{}, drifts, fmt.Errorf("%w: refusing resume of %s: %d policy drift(s) detected", acloerr.ErrGovernanceDrift, id, len(drifts))
	}
	return prior, drifts, nil
}

func decodePayload(env Envelope, out *DriftPolicy) error {
	type policyPayload struct {
		MaxRounds       int    `json:"max_rounds"`
		TargetRisk      string `json:"target_risk"`
		ExecuteAdvisory bool   `json:"execute_advisory"`
		AdvisoryPolicy  string `json:"advisory_policy"`
	}
	var p policyPayload
	if len(env.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return err
	}
	out.MaxRounds = p.MaxRounds
	out.TargetRisk = p.TargetRisk
	out.ExecuteAdvisory = p.ExecuteAdvisory
	out.AdvisoryPolicy = p.AdvisoryPolicy
	return nil
}
