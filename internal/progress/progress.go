// Package progress turns scheduler statistics and review history into
// exam readiness signals and study recommendations.
package progress

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/conorfennell/barprep/internal/domain"
	"github.com/conorfennell/barprep/internal/scheduler"
)

// DefaultMaxFocusSubjects is the number of weak subjects named in a focus
// suggestion when the analyzer does not set a positive limit.
const DefaultMaxFocusSubjects = 3

// Analyzer holds the thresholds used by the recommendation rules.
type Analyzer struct {
	WeakThreshold    float64 // subject accuracy (%) below which a subject is weak
	HighWorkload     int     // due count above which a workload warning fires
	LowRetention     float64 // retention (%) below which a retention warning fires
	LowEasiness      float64 // mean easiness below which a difficulty warning fires
	MaxFocusSubjects int     // weak subjects named in a focus suggestion
}

// NewAnalyzer returns an analyzer with the default thresholds.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		WeakThreshold:    60,
		HighWorkload:     50,
		LowRetention:     70,
		LowEasiness:      2.0,
		MaxFocusSubjects: DefaultMaxFocusSubjects,
	}
}

// SubjectStats aggregates review outcomes for one subject.
type SubjectStats struct {
	Subject  string
	Reviews  int
	Correct  int
	Accuracy float64 // percent of reviews that were successful
}

// SubjectAccuracy groups review logs by subject. The result is sorted by
// subject name. Logs without a subject are grouped under "Uncategorized".
func SubjectAccuracy(logs []domain.ReviewLog) []SubjectStats {
	bySubject := make(map[string]*SubjectStats)
	for _, l := range logs {
		name := l.Subject
		if name == "" {
			name = "Uncategorized"
		}
		st, ok := bySubject[name]
		if !ok {
			st = &SubjectStats{Subject: name}
			bySubject[name] = st
		}
		st.Reviews++
		if l.Quality.Successful() {
			st.Correct++
		}
	}

	out := make([]SubjectStats, 0, len(bySubject))
	for _, st := range bySubject {
		st.Accuracy = float64(st.Correct) / float64(st.Reviews) * 100
		out = append(out, *st)
	}
	slices.SortFunc(out, func(a, b SubjectStats) int {
		return cmp.Compare(a.Subject, b.Subject)
	})
	return out
}

// WeakSubject is a subject whose accuracy is below the threshold.
type WeakSubject struct {
	Subject  string
	Accuracy float64
	Gap      float64 // threshold minus accuracy
}

// IdentifyWeakSubjects returns the subjects below threshold, worst first.
func IdentifyWeakSubjects(stats []SubjectStats, threshold float64) []WeakSubject {
	var weak []WeakSubject
	for _, s := range stats {
		if s.Accuracy < threshold {
			weak = append(weak, WeakSubject{
				Subject:  s.Subject,
				Accuracy: s.Accuracy,
				Gap:      threshold - s.Accuracy,
			})
		}
	}
	slices.SortStableFunc(weak, func(a, b WeakSubject) int {
		return cmp.Compare(a.Accuracy, b.Accuracy)
	})
	return weak
}

// WeakSubjects applies IdentifyWeakSubjects with the analyzer's threshold.
func (a *Analyzer) WeakSubjects(stats []SubjectStats) []WeakSubject {
	return IdentifyWeakSubjects(stats, a.WeakThreshold)
}

// Readiness levels, most to least prepared.
const (
	LevelExcellent        = "Excellent"
	LevelGood             = "Good"
	LevelFair             = "Fair"
	LevelNeedsImprovement = "Needs Improvement"
)

// Readiness is a rule-based estimate of exam preparedness.
type Readiness struct {
	Level                 string
	Confidence            int
	MaturityRate          float64
	RetentionRate         float64
	RecommendedDailyCards int
}

type band struct {
	minMaturity  float64
	minRetention float64
	level        string
	confidence   int
}

// bands are evaluated in order; the first match wins.
var bands = []band{
	{70, 80, LevelExcellent, 95},
	{50, 70, LevelGood, 75},
	{30, 60, LevelFair, 55},
}

// PredictReadiness classifies stats into a readiness band and estimates how
// many cards a day must mature before the exam. daysUntilExam below 1 is
// treated as 1.
func PredictReadiness(stats scheduler.Statistics, daysUntilExam int) Readiness {
	var maturity float64
	if stats.Total > 0 {
		maturity = float64(stats.Mature) / float64(stats.Total) * 100
	}

	r := Readiness{
		Level:         LevelNeedsImprovement,
		Confidence:    30,
		MaturityRate:  maturity,
		RetentionRate: stats.RetentionRate,
	}
	for _, b := range bands {
		if maturity >= b.minMaturity && stats.RetentionRate >= b.minRetention {
			r.Level = b.level
			r.Confidence = b.confidence
			break
		}
	}

	remaining := stats.Total - stats.Mature
	r.RecommendedDailyCards = int(math.Ceil(float64(remaining) / float64(max(daysUntilExam, 1))))
	return r
}

// Priority of a recommendation.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Recommendation is a single study suggestion.
type Recommendation struct {
	Priority Priority
	Category string
	Message  string
}

// Recommendations evaluates every rule independently and returns all that
// apply, highest priority first.
func (a *Analyzer) Recommendations(stats scheduler.Statistics, weak []WeakSubject) []Recommendation {
	var recs []Recommendation

	if stats.Due > a.HighWorkload {
		recs = append(recs, Recommendation{
			Priority: PriorityHigh,
			Category: "workload",
			Message:  fmt.Sprintf("You have %d cards due. Clear the backlog before adding new cards.", stats.Due),
		})
	}
	if stats.RetentionRate < a.LowRetention {
		recs = append(recs, Recommendation{
			Priority: PriorityHigh,
			Category: "retention",
			Message:  fmt.Sprintf("Retention is %.0f%%. Slow down and review failed cards more carefully.", stats.RetentionRate),
		})
	}
	if len(weak) > 0 {
		limit := a.MaxFocusSubjects
		if limit <= 0 {
			limit = DefaultMaxFocusSubjects
		}
		names := make([]string, 0, min(len(weak), limit))
		for _, w := range weak[:min(len(weak), limit)] {
			names = append(names, w.Subject)
		}
		recs = append(recs, Recommendation{
			Priority: PriorityMedium,
			Category: "subjects",
			Message:  "Focus on weak subjects: " + strings.Join(names, ", "),
		})
	}
	if stats.AverageEasiness < a.LowEasiness {
		recs = append(recs, Recommendation{
			Priority: PriorityMedium,
			Category: "difficulty",
			Message:  fmt.Sprintf("Average easiness is %.2f. Break hard cards into smaller facts.", stats.AverageEasiness),
		})
	}
	if stats.New > stats.Young+stats.Mature {
		recs = append(recs, Recommendation{
			Priority: PriorityLow,
			Category: "balance",
			Message:  fmt.Sprintf("%d cards have never been studied. Introduce new cards steadily each day.", stats.New),
		})
	}
	return recs
}
