package expirecache

import "time"

func newJanitor(interval time.Duration) *janitor {
	return &janitor{
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// run sweeps target every interval until stopJanitor is called.
func (j *janitor) run(target cleanupTarget) {
	ticker := time.NewTicker(j.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				target.cleanup()
			case <-j.stop:
				return
			}
		}
	}()
}

// stopJanitor is idempotent.
func (j *janitor) stopJanitor() {
	j.once.Do(func() { close(j.stop) })
}
