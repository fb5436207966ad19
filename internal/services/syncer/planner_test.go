package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type fixedRand struct {
	n     int
	calls int
}

func (r *fixedRand) Intn(n int) int {
	r.calls++
	if r.n >= n {
		return n - 1
	}
	return r.n
}

type PlannerSuite struct {
	suite.Suite
}

func (s *PlannerSuite) TestNextDelay_Defaults() {
	p := NewPlanner(PlannerConfig{}, &fixedRand{})
	s.Equal(30*time.Second, p.NextDelay(0))
	s.Equal(5*time.Second, p.NextDelay(1))
	s.Equal(15*time.Second, p.NextDelay(2))
	s.Equal(30*time.Second, p.NextDelay(3))
	s.Equal(60*time.Second, p.NextDelay(4))
	s.Equal(60*time.Second, p.NextDelay(100))
}

func (s *PlannerSuite) TestNextDelay_Overrides() {
	p := NewPlanner(PlannerConfig{Interval: time.Second, Backoff1: 2 * time.Second}, nil)
	s.Equal(time.Second, p.NextDelay(0))
	s.Equal(2*time.Second, p.NextDelay(1))
	s.Equal(15*time.Second, p.NextDelay(2))
}

func (s *PlannerSuite) TestNextDelay_Jitter() {
	r := &fixedRand{n: 250}
	p := NewPlanner(PlannerConfig{Interval: time.Second, Jitter: time.Second}, r)
	s.Equal(1250*time.Millisecond, p.NextDelay(0))
	s.Equal(1, r.calls)

	r = &fixedRand{}
	p = NewPlanner(PlannerConfig{Interval: time.Second, Jitter: -time.Second}, r)
	s.Equal(time.Second, p.NextDelay(0))
	s.Zero(r.calls)
}

func TestPlannerSuite(t *testing.T) {
	suite.Run(t, new(PlannerSuite))
}
