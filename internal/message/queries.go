package message

import (
	"strconv"
	"strings"
)

// CanStartAction asks ActionGate whether an action would be allowed,
// without applying any change.
type CanStartAction struct {
	Source   string
	ActionID string

	// Response
	Allowed bool
	Reason  string
}

// ToMessage builds the bus query.
func (s CanStartAction) ToMessage() *Query {
	q := &Query{Source: s.Source, Target: SystemActionGate, Name: QueryCanStartAction}
	q.SetArg(KeyActionID, s.ActionID)
	return q
}

// ValidateCanStartAction checks a CanStartAction query.
func ValidateCanStartAction(q *Query) error {
	if q.Target != SystemActionGate || q.Name != QueryCanStartAction {
		return mismatch("Query", QueryCanStartAction)
	}
	_, err := requiredActionID(QueryCanStartAction, q.Arguments)
	return err
}

// CanStartActionFromMessage parses a dispatched CanStartAction query.
// Reason prefers Output["Reason"] and falls back to Result.
func CanStartActionFromMessage(q *Query) (CanStartAction, error) {
	if err := ValidateCanStartAction(q); err != nil {
		return CanStartAction{}, err
	}
	reason, ok := q.OutputValue(KeyReason)
	if !ok {
		reason = q.Result
	}
	return CanStartAction{
		Source:   q.Source,
		ActionID: q.Arguments[KeyActionID],
		Allowed:  q.Success,
		Reason:   reason,
	}, nil
}

// IsActionActive asks ActionGate whether an action is currently active.
type IsActionActive struct {
	Source   string
	ActionID string

	// Response
	Active bool
}

// ToMessage builds the bus query.
func (s IsActionActive) ToMessage() *Query {
	q := &Query{Source: s.Source, Target: SystemActionGate, Name: QueryIsActionActive}
	q.SetArg(KeyActionID, s.ActionID)
	return q
}

// ValidateIsActionActive checks an IsActionActive query.
func ValidateIsActionActive(q *Query) error {
	if q.Target != SystemActionGate || q.Name != QueryIsActionActive {
		return mismatch("Query", QueryIsActionActive)
	}
	_, err := requiredActionID(QueryIsActionActive, q.Arguments)
	return err
}

// IsActionActiveFromMessage parses a dispatched IsActionActive query.
func IsActionActiveFromMessage(q *Query) (IsActionActive, error) {
	if err := ValidateIsActionActive(q); err != nil {
		return IsActionActive{}, err
	}
	active, err := ParseBool(q.Result)
	if err != nil {
		return IsActionActive{}, schemaErrorf(QueryIsActionActive, "Invalid query result for IsActionActive.")
	}
	return IsActionActive{Source: q.Source, ActionID: q.Arguments[KeyActionID], Active: active}, nil
}

// IsExhausted asks Status whether the owner is exhausted.
type IsExhausted struct {
	Source string

	// Response
	Exhausted bool
}

// ToMessage builds the bus query.
func (s IsExhausted) ToMessage() *Query {
	return &Query{Source: s.Source, Target: SystemStatus, Name: QueryIsExhausted}
}

// ValidateIsExhausted checks an IsExhausted query.
func ValidateIsExhausted(q *Query) error {
	if q.Target != SystemStatus || q.Name != QueryIsExhausted {
		return mismatch("Query", QueryIsExhausted)
	}
	return nil
}

// IsExhaustedFromMessage parses a dispatched IsExhausted query.
func IsExhaustedFromMessage(q *Query) (IsExhausted, error) {
	if err := ValidateIsExhausted(q); err != nil {
		return IsExhausted{}, err
	}
	exhausted, err := ParseBool(q.Result)
	if err != nil {
		return IsExhausted{}, schemaErrorf(QueryIsExhausted, "Invalid query result for IsExhausted.")
	}
	return IsExhausted{Source: q.Source, Exhausted: exhausted}, nil
}

// GetStateTagsCsv asks Status for its asserted state tags.
type GetStateTagsCsv struct {
	Source string

	// Response
	TagsCsv string
}

// ToMessage builds the bus query.
func (s GetStateTagsCsv) ToMessage() *Query {
	return &Query{Source: s.Source, Target: SystemStatus, Name: QueryGetStateTagsCsv}
}

// ValidateGetStateTagsCsv checks a GetStateTagsCsv query.
func ValidateGetStateTagsCsv(q *Query) error {
	if q.Target != SystemStatus || q.Name != QueryGetStateTagsCsv {
		return mismatch("Query", QueryGetStateTagsCsv)
	}
	return nil
}

// GetStateTagsCsvFromMessage parses a dispatched GetStateTagsCsv query.
func GetStateTagsCsvFromMessage(q *Query) (GetStateTagsCsv, error) {
	if err := ValidateGetStateTagsCsv(q); err != nil {
		return GetStateTagsCsv{}, err
	}
	return GetStateTagsCsv{Source: q.Source, TagsCsv: q.Result}, nil
}

// Tags splits the CSV response into trimmed, non-empty tags.
func (s GetStateTagsCsv) Tags() []string {
	return SplitTags(s.TagsCsv)
}

// SplitTags splits a comma separated tag list, trimming blanks.
func SplitTags(csv string) []string {
	var tags []string
	for _, part := range strings.Split(csv, ",") {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// GetStamina asks Status for its stamina values.
type GetStamina struct {
	Source string

	// Response
	Current    float64
	Max        float64
	Normalized float64
}

// ToMessage builds the bus query.
func (s GetStamina) ToMessage() *Query {
	return &Query{Source: s.Source, Target: SystemStatus, Name: QueryGetStamina}
}

// ValidateGetStamina checks a GetStamina query.
func ValidateGetStamina(q *Query) error {
	if q.Target != SystemStatus || q.Name != QueryGetStamina {
		return mismatch("Query", QueryGetStamina)
	}
	return nil
}

// GetStaminaFromMessage parses a dispatched GetStamina query.
func GetStaminaFromMessage(q *Query) (GetStamina, error) {
	if err := ValidateGetStamina(q); err != nil {
		return GetStamina{}, err
	}
	out := GetStamina{Source: q.Source}
	fields := []struct {
		key string
		dst *float64
	}{
		{KeyCurrent, &out.Current},
		{KeyMax, &out.Max},
		{KeyNormalized, &out.Normalized},
	}
	for _, f := range fields {
		key, dst := f.key, f.dst
		raw, err := requiredValue(QueryGetStamina, q.Output, key)
		if err != nil {
			return GetStamina{}, err
		}
		v, perr := strconv.ParseFloat(raw, 64)
		if perr != nil {
			return GetStamina{}, schemaErrorf(QueryGetStamina, "Invalid output value '%s' for %s.", raw, key)
		}
		*dst = v
	}
	return out, nil
}
