package engine

import (
	"fmt"

	"cameleer/internal/queue"
)

// selectQueue filters to appropriate queues, prefers the default when the
// task names none explicitly, otherwise restricts to the named set, then
// ranks by load (ascending for parallel queues, capabilities/load
// descending for cost queues), with configuration order breaking ties.
func selectQueue(cost *float64, explicitNames []string, queues []queue.Queue) (queue.Queue, error) {
	appropriate := make([]queue.Queue, 0, len(queues))
	for _, q := range queues {
		if q.IsAppropriate(cost) {
			appropriate = append(appropriate, q)
		}
	}
	if len(appropriate) == 0 {
		return nil, fmt.Errorf("%w: no appropriate queue for this task", ErrQueueSelection)
	}

	if len(explicitNames) == 0 {
		for _, q := range appropriate {
			if q.IsDefault() {
				return q, nil
			}
		}
		return nil, fmt.Errorf("%w: none of the demanded queues is available", ErrQueueSelection)
	}

	allowed := make(map[string]bool, len(explicitNames))
	for _, n := range explicitNames {
		allowed[n] = true
	}
	restricted := make([]queue.Queue, 0, len(appropriate))
	for _, q := range appropriate {
		if allowed[q.Name()] {
			restricted = append(restricted, q)
		}
	}
	if len(restricted) == 0 {
		return nil, fmt.Errorf("%w: none of the demanded queues is available", ErrQueueSelection)
	}
	appropriate = restricted

	if cost != nil {
		best := appropriate[0]
		bestScore := costScore(best)
		for _, q := range appropriate[1:] {
			if s := costScore(q); s > bestScore {
				best, bestScore = q, s
			}
		}
		return best, nil
	}

	best := appropriate[0]
	for _, q := range appropriate[1:] {
		if q.Load() < best.Load() {
			best = q
		}
	}
	return best, nil
}

func costScore(q queue.Queue) float64 {
	load := q.Load()
	if load < 1 {
		load = 1
	}
	return q.Capabilities() / load
}
