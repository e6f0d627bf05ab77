package booking

import (
	"sync"
	"time"
)

const (
	// AppointmentsPath is where a confirmed booking navigates to.
	AppointmentsPath    = "/appointments"
	defaultConfirmDelay = 2500 * time.Millisecond
)

// ConfirmationState is the view of a running confirmation.
type ConfirmationState struct {
	Active    bool    `json:"active"`
	Progress  float64 `json:"progress"`
	Target    string  `json:"target"`
	Navigated bool    `json:"navigated"`
}

// Confirmation waits a fixed delay after a successful booking and then
// navigates once. Progress is measured on the monotonic clock.
type Confirmation struct {
	delay    time.Duration
	target   string
	navigate func(path string)
	started  time.Time

	mu        sync.Mutex
	timer     *time.Timer
	done      bool
	navigated bool
	firing    sync.WaitGroup
}

// StartConfirmation begins the sequence. navigate runs at most once, from
// the timer goroutine or from NavigateNow, and must not call Stop.
func StartConfirmation(delay time.Duration, navigate func(path string)) *Confirmation {
	if delay <= 0 {
		delay = defaultConfirmDelay
	}
	c := &Confirmation{
		delay:    delay,
		target:   AppointmentsPath,
		navigate: navigate,
		started:  time.Now(),
	}
	c.mu.Lock()
	c.timer = time.AfterFunc(delay, c.fire)
	c.mu.Unlock()
	return c
}

func (c *Confirmation) fire() {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return
	}
	c.done = true
	c.navigated = true
	c.firing.Add(1)
	c.mu.Unlock()

	defer c.firing.Done()
	if c.navigate != nil {
		c.navigate(c.target)
	}
}

// NavigateNow skips the rest of the delay. It reports whether this call
// performed the navigation.
func (c *Confirmation) NavigateNow() bool {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return false
	}
	c.done = true
	c.navigated = true
	c.timer.Stop()
	c.firing.Add(1)
	c.mu.Unlock()

	defer c.firing.Done()
	if c.navigate != nil {
		c.navigate(c.target)
	}
	return true
}

// Stop cancels the sequence without navigating. After Stop returns no
// navigate callback is running or will run.
func (c *Confirmation) Stop() {
	c.mu.Lock()
	c.done = true
	if c.timer != nil {
		c.timer.Stop()
	}
	c.mu.Unlock()
	c.firing.Wait()
}

// Progress is the elapsed fraction of the delay, in [0, 1].
func (c *Confirmation) Progress() float64 {
	c.mu.Lock()
	navigated := c.navigated
	c.mu.Unlock()
	if navigated {
		return 1
	}
	p := float64(time.Since(c.started)) / float64(c.delay)
	if p > 1 {
		p = 1
	}
	return p
}

func (c *Confirmation) State() ConfirmationState {
	c.mu.Lock()
	active := !c.done
	navigated := c.navigated
	c.mu.Unlock()
	return ConfirmationState{
		Active:    active,
		Progress:  c.Progress(),
		Target:    c.target,
		Navigated: navigated,
	}
}
