package message

// StartAction asks ActionGate to start an action.
type StartAction struct {
	Source   string
	ActionID string
}

// ToMessage builds the bus command.
func (s StartAction) ToMessage() Command {
	c := Command{Source: s.Source, Target: SystemActionGate, Name: CommandStartAction}
	c.SetArg(KeyActionID, s.ActionID)
	return c
}

// ValidateStartAction checks a StartAction command.
func ValidateStartAction(c Command) error {
	if c.Target != SystemActionGate || c.Name != CommandStartAction {
		return mismatch("Command", CommandStartAction)
	}
	_, err := requiredActionID(CommandStartAction, c.Arguments)
	return err
}

// StartActionFromMessage parses a validated StartAction command.
func StartActionFromMessage(c Command) (StartAction, error) {
	if err := ValidateStartAction(c); err != nil {
		return StartAction{}, err
	}
	return StartAction{Source: c.Source, ActionID: c.Arguments[KeyActionID]}, nil
}

// StopAction asks ActionGate to stop an action. Reason is optional.
type StopAction struct {
	Source   string
	ActionID string
	Reason   string
}

// ToMessage builds the bus command.
func (s StopAction) ToMessage() Command {
	c := Command{Source: s.Source, Target: SystemActionGate, Name: CommandStopAction}
	c.SetArg(KeyActionID, s.ActionID)
	if s.Reason != "" {
		c.SetArg(KeyReason, s.Reason)
	}
	return c
}

// ValidateStopAction checks a StopAction command.
func ValidateStopAction(c Command) error {
	if c.Target != SystemActionGate || c.Name != CommandStopAction {
		return mismatch("Command", CommandStopAction)
	}
	_, err := requiredActionID(CommandStopAction, c.Arguments)
	return err
}

// StopActionFromMessage parses a validated StopAction command.
func StopActionFromMessage(c Command) (StopAction, error) {
	if err := ValidateStopAction(c); err != nil {
		return StopAction{}, err
	}
	return StopAction{
		Source:   c.Source,
		ActionID: c.Arguments[KeyActionID],
		Reason:   c.Arguments[KeyReason],
	}, nil
}

// SetSprinting tells Status whether the owner is sprinting.
type SetSprinting struct {
	Source    string
	Sprinting bool
}

// ToMessage builds the bus command.
func (s SetSprinting) ToMessage() Command {
	c := Command{Source: s.Source, Target: SystemStatus, Name: CommandSetSprinting}
	c.SetArg(KeySprinting, FormatBool(s.Sprinting))
	return c
}

// ValidateSetSprinting checks a SetSprinting command.
func ValidateSetSprinting(c Command) error {
	if c.Target != SystemStatus || c.Name != CommandSetSprinting {
		return mismatch("Command", CommandSetSprinting)
	}
	_, err := requiredBool(CommandSetSprinting, c.Arguments, KeySprinting)
	return err
}

// SetSprintingFromMessage parses a validated SetSprinting command.
func SetSprintingFromMessage(c Command) (SetSprinting, error) {
	if err := ValidateSetSprinting(c); err != nil {
		return SetSprinting{}, err
	}
	b, _ := ParseBool(c.Arguments[KeySprinting])
	return SetSprinting{Source: c.Source, Sprinting: b}, nil
}

// StaminaChange is the payload of ConsumeStamina and AddStamina.
type StaminaChange struct {
	Source string
	Name   string // CommandConsumeStamina or CommandAddStamina
	Amount float64
}

// ToMessage builds the bus command.
func (s StaminaChange) ToMessage() Command {
	c := Command{Source: s.Source, Target: SystemStatus, Name: s.Name}
	c.SetArg(KeyAmount, FormatAmount(s.Amount))
	return c
}

// ValidateStaminaChange checks a ConsumeStamina or AddStamina command.
func ValidateStaminaChange(c Command) error {
	if c.Target != SystemStatus || (c.Name != CommandConsumeStamina && c.Name != CommandAddStamina) {
		return mismatch("Command", "StaminaChange")
	}
	_, err := requiredAmount(c.Name, c.Arguments)
	return err
}

// StaminaChangeFromMessage parses a validated stamina command.
func StaminaChangeFromMessage(c Command) (StaminaChange, error) {
	if err := ValidateStaminaChange(c); err != nil {
		return StaminaChange{}, err
	}
	amount, _ := requiredAmount(c.Name, c.Arguments)
	return StaminaChange{Source: c.Source, Name: c.Name, Amount: amount}, nil
}
