package fetch

import "time"

// Status is the lifecycle state of one request key.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// MarshalText renders the status by name in JSON and logs.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// State is what the client knows about a key.
type State struct {
	Status    Status
	Err       error
	UpdatedAt time.Time
}

func (c *Client) setState(key string, status Status, err error) {
	c.mu.Lock()
	c.states[key] = State{Status: status, Err: err, UpdatedAt: time.Now()}
	c.mu.Unlock()
}

// setStateIf records the state only if no invalidation happened since gen.
func (c *Client) setStateIf(gen uint64, key string, status Status, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.states[key] = State{Status: status, Err: err, UpdatedAt: time.Now()}
	return true
}

func (c *Client) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *Client) state(key string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[key]
}
