package cli

import (
	"fmt"
	"sort"
	"strings"

	"stock-agents/internal/config"
	"stock-agents/internal/models"
)

// Report sections accepted by --show.
const (
	SectionSummary         = "summary"
	SectionAgents          = "agents"
	SectionAlerts          = "alerts"
	SectionRecommendations = "recommendations"
	SectionOptimization    = "optimization"
	SectionPatterns        = "patterns"
	SectionSegments        = "segments"
	SectionForecasts       = "forecasts"
	SectionKPIs            = "kpis"
)

var allSections = []string{
	SectionSummary, SectionAgents, SectionAlerts, SectionRecommendations,
	SectionOptimization, SectionPatterns, SectionSegments, SectionForecasts, SectionKPIs,
}

var defaultSections = []string{
	SectionSummary, SectionAgents, SectionAlerts, SectionRecommendations, SectionOptimization,
}

func isSection(s string) bool {
	for _, name := range allSections {
		if s == name {
			return true
		}
	}
	return false
}

func wants(sections []string, name string) bool {
	for _, s := range sections {
		if s == name {
			return true
		}
	}
	return false
}

// renderResult prints the requested sections of a run in text form.
func renderResult(output *Output, r *models.WorkflowResult, sections []string, dateFormat string) {
	if dateFormat == "" {
		dateFormat = "2006-01-02"
	}

	if wants(sections, SectionSummary) {
		renderSummary(output, r, dateFormat)
	}
	if !r.Success {
		output.Error("✗ %s", r.Error)
		if wants(sections, SectionAgents) {
			renderAgents(output, r)
		}
		return
	}

	type section struct {
		name   string
		render func()
	}
	for _, s := range []section{
		{SectionAgents, func() { renderAgents(output, r) }},
		{SectionPatterns, func() { renderPatterns(output, r) }},
		{SectionSegments, func() { renderSegments(output, r) }},
		{SectionForecasts, func() { renderForecasts(output, r) }},
		{SectionOptimization, func() { renderOptimization(output, r) }},
		{SectionAlerts, func() { renderAlerts(output, r) }},
		{SectionRecommendations, func() { renderRecommendations(output, r, dateFormat) }},
		{SectionKPIs, func() { renderKPIs(output, r) }},
	} {
		if wants(sections, s.name) {
			s.render()
		}
	}
}

func renderSummary(output *Output, r *models.WorkflowResult, dateFormat string) {
	lines := []string{
		fmt.Sprintf("Outcome:    %s   State: %s", output.Outcome(r.Success), r.State),
		fmt.Sprintf("Workflow:   %s / %s", r.WorkflowPattern, r.AnalysisType),
	}
	if !r.ReferenceDate.IsZero() {
		lines = append(lines, fmt.Sprintf("As of:      %s", r.ReferenceDate.Format(dateFormat)))
	}
	lines = append(lines,
		fmt.Sprintf("Confidence: %s   Data quality: %s",
			FormatConfidence(r.ConfidenceScore), FormatConfidence(r.DataQualityScore)),
		fmt.Sprintf("Elapsed:    %s", FormatElapsed(r.ExecutionTimeMs)),
	)
	if r.FeedbackIterations > 0 {
		lines = append(lines, fmt.Sprintf("Feedback:   %d iteration(s)", r.FeedbackIterations))
	}
	output.Box("Run "+r.RunID, lines)
	if r.ExecutionSummary != "" {
		output.Dim("%s", r.ExecutionSummary)
	}
	output.Println()
}

func renderAgents(output *Output, r *models.WorkflowResult) {
	output.Bold("Agents")
	table := NewTable(output, "AGENT", "PHASE", "STATUS", "ATTEMPTS", "TIME", "CONF", "ERROR")
	for _, name := range config.AgentNames() {
		a, ok := r.AgentsPerformance[name]
		if !ok {
			continue
		}
		table.AddRow(
			name,
			string(a.Phase),
			output.Status(a.Status),
			fmt.Sprintf("%d", a.Attempts),
			FormatElapsed(a.ExecutionTimeMs),
			FormatConfidence(a.Confidence),
			TruncateString(a.Error, 50),
		)
	}
	table.Render()
	output.Println()
}

func renderPatterns(output *Output, r *models.WorkflowResult) {
	output.Bold("Demand Patterns")
	if len(r.DemandPatterns) == 0 {
		output.Dim("  none")
		output.Println()
		return
	}
	table := NewTable(output, "PRODUCT", "PATTERN", "TREND", "SEASONALITY", "CV", "POINTS", "CONF")
	for _, p := range r.DemandPatterns {
		seasonality := fmt.Sprintf("%.2f", p.SeasonalityStrength)
		if p.SeasonalPeriod > 0 {
			seasonality += fmt.Sprintf(" (%dd)", p.SeasonalPeriod)
		}
		table.AddRow(
			p.ProductID,
			string(p.PatternType),
			fmt.Sprintf("%s %.2f", p.TrendDirection, p.TrendStrength),
			seasonality,
			fmt.Sprintf("%.2f", p.CoefficientOfVariation),
			fmt.Sprintf("%d", p.DataPoints),
			FormatConfidence(p.Confidence),
		)
	}
	table.Render()
	output.Println()
}

func renderSegments(output *Output, r *models.WorkflowResult) {
	output.Bold("Segments")
	if len(r.ProductSegments) == 0 {
		output.Dim("  none")
		output.Println()
		return
	}
	table := NewTable(output, "PRODUCT", "ABC", "XYZ", "VELOCITY", "MARGIN", "IMPORTANCE", "REVENUE", "SHARE")
	for _, s := range r.ProductSegments {
		table.AddRow(
			s.ProductID,
			string(s.ABCClassification),
			string(s.XYZClassification),
			string(s.Velocity),
			string(s.MarginCategory),
			string(s.StrategicImportance),
			FormatMoney(s.TotalRevenue),
			FormatPercent(s.RevenueShare),
		)
	}
	table.Render()
	output.Println()
}

func renderForecasts(output *Output, r *models.WorkflowResult) {
	sum := r.Forecasts.Summary
	output.Bold("Forecasts (%d days)", sum.HorizonDays)
	output.Printf("  Products:        %d forecasted, %d failed\n", sum.ProductsForecasted, sum.ProductsFailed)
	output.Printf("  Total demand:    %s units\n", FormatQuantity(sum.TotalDemand))
	output.Printf("  Avg accuracy:    %s\n", FormatConfidence(sum.AverageAccuracy))
	if len(sum.ModelUsage) > 0 {
		usage := make([]string, 0, len(sum.ModelUsage))
		for m, n := range sum.ModelUsage {
			usage = append(usage, fmt.Sprintf("%s=%d", m, n))
		}
		sort.Strings(usage)
		output.Printf("  Models:          %s\n", strings.Join(usage, ", "))
	}

	table := NewTable(output, "BUCKET", "POINTS", "DEMAND")
	for _, b := range []struct {
		name    string
		results []models.ForecastResult
	}{
		{"short term", r.Forecasts.ShortTerm},
		{"medium term", r.Forecasts.MediumTerm},
		{"long term", r.Forecasts.LongTerm},
	} {
		var demand float64
		for _, f := range b.results {
			demand += f.PredictedDemand
		}
		table.AddRow(b.name, fmt.Sprintf("%d", len(b.results)), FormatQuantity(demand))
	}
	table.Render()

	for _, f := range sum.Failures {
		output.Warning("  %s: %s", f.ProductID, f.Reason)
	}
	output.Println()
}

func renderOptimization(output *Output, r *models.WorkflowResult) {
	output.Bold("Inventory Policy")
	if len(r.Optimization) == 0 {
		output.Dim("  none")
		output.Println()
		return
	}
	table := NewTable(output, "PRODUCT", "ON HAND", "REORDER AT", "SAFETY", "EOQ", "COVER", "")
	for _, o := range r.Optimization {
		onHand := FormatQuantity(o.AvailableQuantity)
		if o.AvailableQuantity <= o.ReorderPoint.ReorderPointQuantity {
			onHand = output.Red(onHand)
		}
		note := ""
		if o.UsedDefaults {
			note = output.DimText("defaults")
		}
		table.AddRow(
			o.ProductID,
			onHand,
			FormatQuantity(o.ReorderPoint.ReorderPointQuantity),
			FormatQuantity(o.SafetyStock.SafetyStockQuantity),
			FormatQuantity(o.OrderQuantity.EconomicOrderQuantity),
			FormatDays(o.DaysOfCover),
			note,
		)
	}
	table.Render()
	output.Println()
}

func renderAlerts(output *Output, r *models.WorkflowResult) {
	output.Bold("Alerts (%d)", len(r.Alerts))
	if len(r.Alerts) == 0 {
		output.Success("  ✓ No alerts")
		output.Println()
		return
	}
	table := NewTable(output, "SEVERITY", "TYPE", "PRODUCT", "IMPACT", "MESSAGE")
	for _, a := range r.Alerts {
		table.AddRow(
			output.Severity(a.Severity),
			string(a.Type),
			a.ProductID,
			FormatMoney(a.EstimatedImpact),
			TruncateString(a.Message, 70),
		)
	}
	table.Render()
	output.Println()
}

func renderRecommendations(output *Output, r *models.WorkflowResult, dateFormat string) {
	output.Bold("Recommendations (%d)", len(r.Recommendations))
	if len(r.Recommendations) == 0 {
		output.Dim("  none")
		output.Println()
		return
	}
	table := NewTable(output, "PRIORITY", "TYPE", "PRODUCT", "QTY", "BY", "CONF", "ACTION")
	for _, rec := range r.Recommendations {
		qty := "-"
		if rec.SuggestedQuantity > 0 {
			qty = FormatQuantity(rec.SuggestedQuantity)
		}
		deadline := "-"
		if !rec.Deadline.IsZero() {
			deadline = rec.Deadline.Format(dateFormat)
		}
		table.AddRow(
			output.Severity(rec.Priority),
			string(rec.Type),
			rec.ProductID,
			qty,
			deadline,
			FormatConfidence(rec.ConfidenceScore),
			TruncateString(rec.Action, 60),
		)
	}
	table.Render()
	output.Println()
}

func renderKPIs(output *Output, r *models.WorkflowResult) {
	k := r.KPIs
	output.Bold("KPIs")
	output.Printf("  Forecast accuracy:     %s (MAPE %s, WMAPE %s, bias %.2f)\n",
		FormatConfidence(k.ForecastAccuracy.WeightedAccuracy),
		FormatPercent(k.ForecastAccuracy.AverageMAPE),
		FormatPercent(k.ForecastAccuracy.AverageWMAPE),
		k.ForecastAccuracy.AverageBias)
	if n := k.ForecastAccuracy.ProductsOutOfControl; n > 0 {
		output.Warning("  %d product(s) with tracking signal out of control", n)
	}
	output.Printf("  Below reorder point:   %d of %d (stockout risk %s)\n",
		k.Service.ProductsBelowReorderPoint, k.Service.ProductsOptimized, FormatPercent(k.Service.StockoutRiskRatio))
	output.Printf("  Average days of cover: %s\n", FormatDays(k.Service.AverageDaysOfCover))
	output.Printf("  Inventory value:       %s (safety stock %s, excess %s)\n",
		FormatMoney(k.Financial.InventoryValue), FormatMoney(k.Financial.SafetyStockValue), FormatMoney(k.Financial.ExcessInventoryValue))
	output.Printf("  Annual cost:           %s holding, %s ordering\n",
		FormatMoney(k.Financial.AnnualHoldingCost), FormatMoney(k.Financial.AnnualOrderingCost))
	output.Printf("  Revenue at risk:       %s\n", FormatMoney(k.Financial.RevenueAtRisk))
	output.Printf("  Confidence:            patterns %s, forecasts %s, recommendations %s\n",
		FormatConfidence(k.AIPerformance.AveragePatternConfidence),
		FormatConfidence(k.AIPerformance.AverageForecastConfidence),
		FormatConfidence(k.AIPerformance.AverageRecommendationConfidence))
	output.Println()
}
