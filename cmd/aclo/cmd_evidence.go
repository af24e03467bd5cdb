package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"aclo/internal/archive"
	"aclo/internal/evidence"
)

var (
	evidenceModeFlag   string
	evidencePeriodFlag string
	evidenceWeeksFlag  int
)

var evidenceCmd = &cobra.Command{
	Use:   "evidence",
	Short: "KPI trend, anomaly, and gate-history reporting (C10)",
}

var evidenceTrendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Aggregate archived run outcomes into a windowed KPI trend",
	RunE:  runEvidenceTrend,
}

var evidenceAnomaliesCmd = &cobra.Command{
	Use:   "anomalies",
	Short: "Report KPI anomalies detected in the current trend window",
	RunE:  runEvidenceAnomalies,
}

var evidenceGateHistoryCmd = &cobra.Command{
	Use:   "gate-history",
	Short: "Show the aggregated convergence-gate pass rate and risk counts",
	RunE:  runEvidenceGateHistory,
}

func init() {
	evidenceCmd.PersistentFlags().StringVar(&evidenceModeFlag, "mode", "all", "Run mode filter: all, batch, program, recover, controller")
	evidenceCmd.PersistentFlags().StringVar(&evidencePeriodFlag, "period", "week", "Bucket period: week or day")
	evidenceCmd.PersistentFlags().IntVar(&evidenceWeeksFlag, "weeks", 12, "Trend window size, in weeks")

	evidenceCmd.AddCommand(evidenceTrendCmd, evidenceAnomaliesCmd, evidenceGateHistoryCmd)
}

// loadEvidenceRecords scans every archive kind's directory and extracts one
// evidence.Record per envelope. Evidence itself never parses archive
// payloads (internal/evidence/trend.go's package doc); this extraction is
// the program/CLI glue layer's job, mirroring how GovernanceRunner builds
// its own in-memory records from program.Outcome rather than the archive.
func loadEvidenceRecords() ([]evidence.Record, error) {
	var records []evidence.Record
	for _, kind := range []archive.Kind{archive.KindBatch, archive.KindController, archive.KindGovernance, archive.KindCloseLoop} {
		store := archive.NewStore(ws.AutoDir(), kind)
		entries, err := store.ListEntries()
		if err != nil {
			return nil, fmt.Errorf("evidence: list %s archive: %w", kind, err)
		}
		for _, e := range entries {
			if !e.Valid {
				continue
			}
			records = append(records, recordFromEnvelope(e.Env))
		}
	}
	return records, nil
}

// envelopePayload captures the optional per-goal detail the controller
// (acontroller.archiveGoal) and governance (archiveGovernanceResult)
// archivers embed in Envelope.Payload; fields absent from a given kind's
// payload simply stay at their zero value.
type envelopePayload struct {
	Gate *bool `json:"gate_passed"`
}

func recordFromEnvelope(env archive.Envelope) evidence.Record {
	mode := evidence.ModeAll
	switch env.Kind {
	case archive.KindBatch:
		mode = evidence.ModeBatch
	case archive.KindController:
		mode = evidence.ModeController
	case archive.KindGovernance:
		mode = evidence.ModeProgram
	case archive.KindCloseLoop:
		mode = evidence.ModeRecover
	}

	completed := env.Status == "completed" || env.Status == "stable"
	gatePassed := completed
	var payload envelopePayload
	if json.Unmarshal(env.Payload, &payload) == nil && payload.Gate != nil {
		gatePassed = *payload.Gate
	}

	failedGoals := 0
	if !completed {
		failedGoals = env.Goals
	}

	return evidence.Record{
		Mode:            mode,
		OccurredAt:      env.CreatedAt,
		Completed:       completed,
		GatePassed:      gatePassed,
		TotalGoals:      env.Goals,
		ProcessedGoals:  env.Goals,
		FailedGoals:     failedGoals,
		TotalSubSpecs:   env.SubSpecs,
	}
}

func evidencePeriodKind() evidence.PeriodKind {
	if evidencePeriodFlag == "day" {
		return evidence.PeriodDay
	}
	return evidence.PeriodWeek
}

func evidenceMode() evidence.Mode {
	switch evidenceModeFlag {
	case "batch":
		return evidence.ModeBatch
	case "program":
		return evidence.ModeProgram
	case "recover":
		return evidence.ModeRecover
	case "controller":
		return evidence.ModeController
	default:
		return evidence.ModeAll
	}
}

func runEvidenceTrend(cmd *cobra.Command, args []string) error {
	records, err := loadEvidenceRecords()
	if err != nil {
		return err
	}
	trend := evidence.Aggregate(records, evidenceMode(), evidencePeriodKind(), evidenceWeeksFlag, ws.Now())
	return printJSON(trend)
}

func runEvidenceAnomalies(cmd *cobra.Command, args []string) error {
	records, err := loadEvidenceRecords()
	if err != nil {
		return err
	}
	trend := evidence.Aggregate(records, evidenceMode(), evidencePeriodKind(), evidenceWeeksFlag, ws.Now())
	anomalies := evidence.DetectAnomalies(trend)
	return printJSON(anomalies)
}

func runEvidenceGateHistory(cmd *cobra.Command, args []string) error {
	dir := ws.Path("auto")
	entries, err := evidence.ScanGateHistory(dir, nil, 200)
	if err != nil {
		return err
	}
	aggregate := evidence.AggregateGateHistory(entries)
	return printJSON(aggregate)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
