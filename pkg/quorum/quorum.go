// Package quorum grades ensemble sizes. Grading is advisory and only shapes
// reported status text.
package quorum

type Grade string

const (
    GradeHealthy    Grade = "healthy"
    GradeEven       Grade = "even"
    GradeUndersized Grade = "undersized"
)

const (
    AdvisoryUndersized = "less than 3 is suboptimal"
    AdvisoryEven       = "even number is suboptimal"
)

// Classify returns the grade and advisory text for an ensemble of n nodes.
// Odd ensembles of at least three tolerate one failure without split votes.
func Classify(n int) (Grade, string) {
    switch {
    case n < 3:
        return GradeUndersized, AdvisoryUndersized
    case n%2 == 0:
        return GradeEven, AdvisoryEven
    default:
        return GradeHealthy, ""
    }
}

// Tolerated is the number of voter failures an ensemble of n survives.
func Tolerated(n int) int {
    if n <= 0 { return 0 }
    return (n - 1) / 2
}
