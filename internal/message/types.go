package message

// System identifiers of the official runtime systems.
const (
	SystemMovement   = "Movement"
	SystemActionGate = "ActionGate"
	SystemStatus     = "Status"
)

// Command names.
const (
	CommandStartAction    = "StartAction"
	CommandStopAction     = "StopAction"
	CommandSetSprinting   = "SetSprinting"
	CommandConsumeStamina = "ConsumeStamina"
	CommandAddStamina     = "AddStamina"
)

// Query names.
const (
	QueryCanStartAction  = "CanStartAction"
	QueryIsActionActive  = "IsActionActive"
	QueryIsExhausted     = "IsExhausted"
	QueryGetStateTagsCsv = "GetStateTagsCsv"
	QueryGetStamina      = "GetStamina"
)

// Event names.
const (
	EventExhausted        = "Exhausted"
	EventExhaustedCleared = "ExhaustedCleared"
	EventActionAllowed    = "ActionAllowed"
	EventActionDenied     = "ActionDenied"
)

// Well-known argument, output and payload keys.
const (
	KeyActionID   = "ActionId"
	KeyReason     = "Reason"
	KeySprinting  = "bSprinting"
	KeyAmount     = "Amount"
	KeyState      = "State"
	KeyCurrent    = "Current"
	KeyMax        = "Max"
	KeyNormalized = "Normalized"
)

// Command is a fire-and-forget request routed to exactly one target.
type Command struct {
	Source    string            `json:"source" yaml:"source"`
	Target    string            `json:"target" yaml:"target"`
	Name      string            `json:"name" yaml:"name"`
	Arguments map[string]string `json:"arguments,omitempty" yaml:"arguments,omitempty"`
}

// Arg returns an argument value and whether it is present.
func (c Command) Arg(key string) (string, bool) {
	v, ok := c.Arguments[key]
	return v, ok
}

// SetArg sets an argument, allocating the map on first use.
func (c *Command) SetArg(key, value string) {
	if c.Arguments == nil {
		c.Arguments = make(map[string]string)
	}
	c.Arguments[key] = value
}

// Query is a request with a structured response, routed to one target.
// The response fields are reset by the bus before every dispatch.
type Query struct {
	Source    string            `json:"source" yaml:"source"`
	Target    string            `json:"target" yaml:"target"`
	Name      string            `json:"name" yaml:"name"`
	Arguments map[string]string `json:"arguments,omitempty" yaml:"arguments,omitempty"`

	Handled bool              `json:"handled"`
	Success bool              `json:"success"`
	Result  string            `json:"result"`
	Output  map[string]string `json:"output,omitempty"`
}

// ResetResponse clears every response field so no state leaks across calls.
func (q *Query) ResetResponse() {
	q.Handled = false
	q.Success = false
	q.Result = ""
	q.Output = nil
}

// Arg returns an argument value and whether it is present.
func (q *Query) Arg(key string) (string, bool) {
	v, ok := q.Arguments[key]
	return v, ok
}

// SetArg sets an argument, allocating the map on first use.
func (q *Query) SetArg(key, value string) {
	if q.Arguments == nil {
		q.Arguments = make(map[string]string)
	}
	q.Arguments[key] = value
}

// OutputValue returns a response output value and whether it is present.
func (q *Query) OutputValue(key string) (string, bool) {
	v, ok := q.Output[key]
	return v, ok
}

// SetOutput sets a response output value.
func (q *Query) SetOutput(key, value string) {
	if q.Output == nil {
		q.Output = make(map[string]string)
	}
	q.Output[key] = value
}

// Event is broadcast to every live system. It carries no response.
type Event struct {
	Source  string            `json:"source" yaml:"source"`
	Name    string            `json:"name" yaml:"name"`
	Payload map[string]string `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// PayloadValue returns a payload value and whether it is present.
func (e Event) PayloadValue(key string) (string, bool) {
	v, ok := e.Payload[key]
	return v, ok
}

// SetPayload sets a payload value.
func (e *Event) SetPayload(key, value string) {
	if e.Payload == nil {
		e.Payload = make(map[string]string)
	}
	e.Payload[key] = value
}
