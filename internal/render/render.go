// Package render formats analysis results for the terminal.
package render

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kozaktomas/emotion-check/internal/api"
	"github.com/kozaktomas/emotion-check/internal/emotion"
)

// Label title-cases an emotion label.
func Label(label string) string {
	if label == "" {
		return ""
	}
	return cases.Title(language.English).String(label)
}

func newTable(headers ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row(headers))
	return tw
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

// FrameResults lists every analyzed frame with its dominant emotion.
func FrameResults(results []api.FrameResult) string {
	tw := newTable("Frame", "Timestamp", "Dominant", "Score", "Status")
	for _, r := range results {
		status := "ok"
		score := ""
		if r.Success {
			score = percent(r.Emotions[r.DominantEmotion])
		} else {
			status = r.Error
			if status == "" {
				status = "failed"
			}
		}
		tw.AppendRow(table.Row{r.Frame, r.Timestamp, Label(r.DominantEmotion), score, status})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	return tw.Render()
}

// Distribution shows percentages highest first with their total. A total that
// is off from 100 is flagged rather than rescaled.
func Distribution(values map[string]float64) string {
	d := make(emotion.Distribution, len(values))
	for label, v := range values {
		if e, ok := emotion.Parse(label); ok {
			d[e] = v
		}
	}
	rows, total := d.Percentages()

	tw := newTable("Emotion", "Percent")
	for _, r := range rows {
		tw.AppendRow(table.Row{Label(string(r.Emotion)), percent(r.Percent)})
	}
	tw.AppendFooter(table.Row{"Total", percent(total)})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})

	out := tw.Render()
	if d.Inconsistent() {
		out += fmt.Sprintf("\nNote: percentages add up to %.2f%%, not 100%%.", total)
	}
	return out
}

// Recommendations prints the mind-age analysis and the suggestions.
func Recommendations(resp *api.RecommendationsResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dominant emotion: %s\n", Label(resp.DominantEmotion))

	if m := resp.MindAgeAnalysis; m != nil {
		tw := newTable("Mind age", "Range", "Personality", "Emotional intelligence")
		tw.AppendRow(table.Row{m.EstimatedMindAge, m.AgeRange, m.PersonalityType, m.EmotionalIntelligence})
		b.WriteString(tw.Render())
		b.WriteString("\n")
		if m.Interpretation != "" {
			fmt.Fprintf(&b, "%s\n", m.Interpretation)
		}
	}

	if len(resp.Recommendations) > 0 {
		b.WriteString("\nRecommendations:\n")
		for i, r := range resp.Recommendations {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, r)
		}
	}
	if resp.GeneralTip != "" {
		fmt.Fprintf(&b, "\nTip: %s\n", resp.GeneralTip)
	}
	return b.String()
}

// Analysis combines the per-frame table, the average and the success count.
func Analysis(a *api.AnalyzeResponse) string {
	var b strings.Builder
	b.WriteString(FrameResults(a.Results))
	b.WriteString("\n\n")
	b.WriteString(Distribution(a.AverageEmotions))
	fmt.Fprintf(&b, "\n\nAnalyzed %d of %d frames", a.SuccessfulAnalyses, a.TotalFrames)
	if a.Classifier != "" {
		fmt.Fprintf(&b, " with the %s classifier", a.Classifier)
	}
	if !a.ClassifierUsed {
		b.WriteString(" (simulated scores)")
	}
	b.WriteString("\n")
	return b.String()
}
