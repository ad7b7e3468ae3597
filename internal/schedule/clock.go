package schedule

import "time"

// Clock yields the current moment in the shop's timezone. All temporal
// comparisons in the booking flow go through it so tests can substitute
// a fixed moment.
type Clock interface {
	Now() time.Time
}

type shopClock struct {
	loc *time.Location
}

func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return &shopClock{loc: loc}
}

func (c *shopClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// FixedClock always returns the same moment. Test helper.
type FixedClock struct {
	Moment time.Time
}

func (c FixedClock) Now() time.Time { return c.Moment }
