package session

import (
	"github.com/sirupsen/logrus"

	"github.com/danpilch/kpstk/pkg/query"
	"github.com/danpilch/kpstk/pkg/trace"
)

// run executes fn against the active query and logs informational notices
// about the result.
func (s *Session) run(fn func(*query.Query) (*query.Result, error)) (*query.Result, error) {
	q, err := s.Query()
	if err != nil {
		return nil, err
	}
	res, err := fn(q)
	if err != nil {
		s.logger.WithError(err).Debug("Query failed")
		return nil, err
	}
	if res.Recursive {
		s.logger.WithFields(logrus.Fields{
			"function": res.Function,
			"kind":     res.Kind,
		}).Warn("Function is recursive; weights are multiplied by recursion depth")
	}
	if res.Note != "" {
		s.logger.WithField("kind", res.Kind).Info(res.Note)
	}
	return res, nil
}

// Inclusive ranks functions by inclusive weight, or by its change in diff
// mode.
func (s *Session) Inclusive(limit int) (*query.Result, error) {
	return s.run(func(q *query.Query) (*query.Result, error) {
		return q.Inclusive(limit)
	})
}

// Exclusive ranks functions by exclusive weight, or by its change in diff
// mode.
func (s *Session) Exclusive(limit int) (*query.Result, error) {
	return s.run(func(q *query.Query) (*query.Result, error) {
		return q.Exclusive(limit)
	})
}

// Combined lists inclusive and exclusive weight of the first active trace.
func (s *Session) Combined(order query.Order, limit int) (*query.Result, error) {
	return s.run(func(q *query.Query) (*query.Result, error) {
		return q.Combined(order, limit)
	})
}

// Instructions ranks the hottest instruction sites inside fn.
func (s *Session) Instructions(fn string, limit int) (*query.Result, error) {
	return s.run(func(q *query.Query) (*query.Result, error) {
		return q.Instructions(trace.FunctionID(fn), limit)
	})
}

// Callers ranks the call paths leading to fn.
func (s *Session) Callers(fn string, depth, limit int) (*query.Result, error) {
	return s.run(func(q *query.Query) (*query.Result, error) {
		return q.Callers(trace.FunctionID(fn), depth, limit)
	})
}

// Callees ranks the functions fn calls.
func (s *Session) Callees(fn string, limit int) (*query.Result, error) {
	return s.run(func(q *query.Query) (*query.Result, error) {
		return q.Callees(trace.FunctionID(fn), limit)
	})
}
