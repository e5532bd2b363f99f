package quorum

import (
    "testing"

    "github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
    tests := []struct {
        n        int
        grade    Grade
        advisory string
    }{
        {0, GradeUndersized, "less than 3 is suboptimal"},
        {1, GradeUndersized, "less than 3 is suboptimal"},
        {2, GradeUndersized, "less than 3 is suboptimal"},
        {3, GradeHealthy, ""},
        {4, GradeEven, "even number is suboptimal"},
        {5, GradeHealthy, ""},
        {6, GradeEven, "even number is suboptimal"},
    }
    for _, tt := range tests {
        g, adv := Classify(tt.n)
        assert.Equal(t, tt.grade, g, "grade for %d", tt.n)
        assert.Equal(t, tt.advisory, adv, "advisory for %d", tt.n)
    }
}

func TestTolerated(t *testing.T) {
    assert.Equal(t, 0, Tolerated(0))
    assert.Equal(t, 0, Tolerated(2))
    assert.Equal(t, 1, Tolerated(3))
    assert.Equal(t, 1, Tolerated(4))
    assert.Equal(t, 2, Tolerated(5))
}
