package message

// Exhausted is broadcast by Status when stamina is depleted.
type Exhausted struct {
	Source string
}

// ToMessage builds the bus event.
func (s Exhausted) ToMessage() Event {
	e := Event{Source: s.Source, Name: EventExhausted}
	e.SetPayload(KeyState, FormatBool(true))
	return e
}

// ValidateExhausted checks an Exhausted event.
func ValidateExhausted(e Event) error {
	return validateStateEvent(e, EventExhausted, true)
}

// ExhaustedCleared is broadcast by Status when stamina recovers past the
// exhaust threshold.
type ExhaustedCleared struct {
	Source string
}

// ToMessage builds the bus event.
func (s ExhaustedCleared) ToMessage() Event {
	e := Event{Source: s.Source, Name: EventExhaustedCleared}
	e.SetPayload(KeyState, FormatBool(false))
	return e
}

// ValidateExhaustedCleared checks an ExhaustedCleared event.
func ValidateExhaustedCleared(e Event) error {
	return validateStateEvent(e, EventExhaustedCleared, false)
}

func validateStateEvent(e Event, name string, want bool) error {
	if e.Source != SystemStatus || e.Name != name {
		return mismatch("Event", name)
	}
	raw, ok := e.PayloadValue(KeyState)
	if !ok {
		return schemaErrorf(name, "Missing payload key 'State' for %s event.", name)
	}
	state, err := ParseBool(raw)
	if err != nil || state != want {
		return schemaErrorf(name, "Invalid payload value 'State' for %s event.", name)
	}
	return nil
}

// ActionDecision is the payload of ActionAllowed and ActionDenied.
type ActionDecision struct {
	Source   string
	ActionID string
	Allowed  bool
	Reason   string
}

// ToMessage builds the bus event.
func (s ActionDecision) ToMessage() Event {
	name := EventActionDenied
	if s.Allowed {
		name = EventActionAllowed
	}
	e := Event{Source: s.Source, Name: name}
	e.SetPayload(KeyActionID, s.ActionID)
	e.SetPayload(KeyReason, s.Reason)
	return e
}

// ValidateActionDecision checks an ActionAllowed or ActionDenied event.
func ValidateActionDecision(e Event) error {
	if e.Source != SystemActionGate || (e.Name != EventActionAllowed && e.Name != EventActionDenied) {
		return mismatch("Event", "ActionDecision")
	}
	_, err := requiredActionID(e.Name, e.Payload)
	return err
}

// ActionDecisionFromMessage parses a validated decision event.
func ActionDecisionFromMessage(e Event) (ActionDecision, error) {
	if err := ValidateActionDecision(e); err != nil {
		return ActionDecision{}, err
	}
	return ActionDecision{
		Source:   e.Source,
		ActionID: e.Payload[KeyActionID],
		Allowed:  e.Name == EventActionAllowed,
		Reason:   e.Payload[KeyReason],
	}, nil
}
