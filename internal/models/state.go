package models

// StockAnalysisState is the working object threaded through the pipeline.
// Sections are written once by the stage that owns them and only read afterwards.
type StockAnalysisState struct {
	Run             RunConfig
	Raw             *RawBatch
	Processed       *ProcessedData
	Patterns        *PatternAnalysis
	Segments        *Segmentation
	Forecasts       *ForecastSet
	Optimization    *OptimizationSet
	Alerts          *AlertSet
	Recommendations *RecommendationSet
	KPIs            *StockManagementKPIs
}

// NewState seeds a state with the run input.
func NewState(batch *RawBatch, run RunConfig) StockAnalysisState {
	return StockAnalysisState{Run: run, Raw: batch}
}

// StageOutput is the closed set of partial states an agent can return.
type StageOutput interface {
	stageOutput()
}

// IngestionOutput carries normalized input.
type IngestionOutput struct{ Processed *ProcessedData }

// PatternOutput carries demand patterns.
type PatternOutput struct{ Analysis *PatternAnalysis }

// SegmentationOutput carries product segments.
type SegmentationOutput struct{ Segmentation *Segmentation }

// ForecastOutput carries forecasts.
type ForecastOutput struct{ Forecasts *ForecastSet }

// OptimizationOutput carries inventory parameters.
type OptimizationOutput struct{ Optimization *OptimizationSet }

// AlertOutput carries risk alerts.
type AlertOutput struct{ Alerts *AlertSet }

// RecommendationOutput carries recommendations.
type RecommendationOutput struct{ Recommendations *RecommendationSet }

// KPIOutput carries portfolio KPIs.
type KPIOutput struct{ KPIs *StockManagementKPIs }

func (IngestionOutput) stageOutput()      {}
func (PatternOutput) stageOutput()        {}
func (SegmentationOutput) stageOutput()   {}
func (ForecastOutput) stageOutput()       {}
func (OptimizationOutput) stageOutput()   {}
func (AlertOutput) stageOutput()          {}
func (RecommendationOutput) stageOutput() {}
func (KPIOutput) stageOutput()            {}

// Apply returns a copy of s with the section carried by out replaced.
// Nil outputs and nil sections leave the state unchanged.
func (s StockAnalysisState) Apply(out StageOutput) StockAnalysisState {
	next := s
	switch o := out.(type) {
	case IngestionOutput:
		if o.Processed != nil {
			next.Processed = o.Processed
		}
	case PatternOutput:
		if o.Analysis != nil {
			next.Patterns = o.Analysis
		}
	case SegmentationOutput:
		if o.Segmentation != nil {
			next.Segments = o.Segmentation
		}
	case ForecastOutput:
		if o.Forecasts != nil {
			next.Forecasts = o.Forecasts
		}
	case OptimizationOutput:
		if o.Optimization != nil {
			next.Optimization = o.Optimization
		}
	case AlertOutput:
		if o.Alerts != nil {
			next.Alerts = o.Alerts
		}
	case RecommendationOutput:
		if o.Recommendations != nil {
			next.Recommendations = o.Recommendations
		}
	case KPIOutput:
		if o.KPIs != nil {
			next.KPIs = o.KPIs
		}
	}
	return next
}
