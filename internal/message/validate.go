package message

// ValidateCommand picks the command schema by (target, name).
// Unmatched combinations pass.
func ValidateCommand(c Command) error {
	switch {
	case c.Target == SystemActionGate && c.Name == CommandStartAction:
		return ValidateStartAction(c)
	case c.Target == SystemActionGate && c.Name == CommandStopAction:
		return ValidateStopAction(c)
	case c.Target == SystemStatus && c.Name == CommandSetSprinting:
		return ValidateSetSprinting(c)
	case c.Target == SystemStatus && (c.Name == CommandConsumeStamina || c.Name == CommandAddStamina):
		return ValidateStaminaChange(c)
	}
	return nil
}

// ValidateQuery picks the query schema by (target, name).
// Unmatched combinations pass.
func ValidateQuery(q *Query) error {
	switch {
	case q.Target == SystemActionGate && q.Name == QueryCanStartAction:
		return ValidateCanStartAction(q)
	case q.Target == SystemActionGate && q.Name == QueryIsActionActive:
		return ValidateIsActionActive(q)
	case q.Target == SystemStatus && q.Name == QueryIsExhausted:
		return ValidateIsExhausted(q)
	case q.Target == SystemStatus && q.Name == QueryGetStateTagsCsv:
		return ValidateGetStateTagsCsv(q)
	case q.Target == SystemStatus && q.Name == QueryGetStamina:
		return ValidateGetStamina(q)
	}
	return nil
}

// ValidateEvent picks the event schema by (source, name).
// Unmatched combinations pass.
func ValidateEvent(e Event) error {
	switch {
	case e.Source == SystemStatus && e.Name == EventExhausted:
		return ValidateExhausted(e)
	case e.Source == SystemStatus && e.Name == EventExhaustedCleared:
		return ValidateExhaustedCleared(e)
	case e.Source == SystemActionGate && (e.Name == EventActionAllowed || e.Name == EventActionDenied):
		return ValidateActionDecision(e)
	}
	return nil
}
