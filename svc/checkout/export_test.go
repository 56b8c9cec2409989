package checkout

import "time"

// RunTimersImmediately makes scheduled simulations run synchronously.
func (s *Service) RunTimersImmediately(delays *[]time.Duration) {
	s.afterFunc = func(d time.Duration, f func()) {
		*delays = append(*delays, d)
		f()
	}
}
