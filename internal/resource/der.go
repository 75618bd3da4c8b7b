package resource

import (
	"fmt"
	"sort"
)

// DER is one distributed energy resource attached to a device.
type DER struct {
	Meta
	DERSettingsLink       *Link `json:"DERSettingsLink,omitempty"`
	DERStatusLink         *Link `json:"DERStatusLink,omitempty"`
	DERCapabilityLink     *Link `json:"DERCapabilityLink,omitempty"`
	DERAvailabilityLink   *Link `json:"DERAvailabilityLink,omitempty"`
	CurrentDERProgramLink *Link `json:"CurrentDERProgramLink,omitempty"`
}

// Kind implements Resource.
func (*DER) Kind() Kind { return KindDER }

// DERSettings are the limits a DER is currently configured with.
type DERSettings struct {
	Meta
	ModesEnabled string  `json:"modesEnabled,omitempty"`
	SetGradW     int     `json:"setGradW"`
	SetMaxW      float64 `json:"setMaxW"`
	SetMaxVA     float64 `json:"setMaxVA,omitempty"`
	SetMaxVar    float64 `json:"setMaxVar,omitempty"`
	UpdatedTime  int64   `json:"updatedTime"`
}

// Kind implements Resource.
func (*DERSettings) Kind() Kind { return KindDERSettings }

// DERStatus is the state a DER last reported.
type DERStatus struct {
	Meta
	GenConnectStatus      int     `json:"genConnectStatus,omitempty"`
	InverterStatus        int     `json:"inverterStatus,omitempty"`
	OperationalModeStatus int     `json:"operationalModeStatus,omitempty"`
	StateOfChargeStatus   float64 `json:"stateOfChargeStatus,omitempty"`
	ReadingTime           int64   `json:"readingTime"`
}

// Kind implements Resource.
func (*DERStatus) Kind() Kind { return KindDERStatus }

// DERCapability is the nameplate rating of a DER.
type DERCapability struct {
	Meta
	ModesSupported string  `json:"modesSupported,omitempty"`
	RtgMaxW        float64 `json:"rtgMaxW"`
	RtgMaxVA       float64 `json:"rtgMaxVA,omitempty"`
	RtgMaxVar      float64 `json:"rtgMaxVar,omitempty"`
	Type           int     `json:"type"`
}

// Kind implements Resource.
func (*DERCapability) Kind() Kind { return KindDERCapability }

// DERAvailability is the energy a DER can currently deliver.
type DERAvailability struct {
	Meta
	AvailabilityDuration int     `json:"availabilityDuration,omitempty"`
	MaxChargeDuration    int     `json:"maxChargeDuration,omitempty"`
	ReadingTime          int64   `json:"readingTime"`
	ReserveChargePercent float64 `json:"reserveChargePercent,omitempty"`
	StatWAvail           float64 `json:"statWAvail,omitempty"`
	StatVarAvail         float64 `json:"statVarAvail,omitempty"`
}

// Kind implements Resource.
func (*DERAvailability) Kind() Kind { return KindDERAvailability }

// DERProgram groups the controls issued to DERs under one primacy.
type DERProgram struct {
	IdentifiedObject
	Primacy int `json:"primacy"`

	ActiveDERControlListLink *ListLink `json:"ActiveDERControlListLink,omitempty"`
	DERControlListLink       *ListLink `json:"DERControlListLink,omitempty"`
	DERCurveListLink         *ListLink `json:"DERCurveListLink,omitempty"`
	DefaultDERControlLink    *Link     `json:"DefaultDERControlLink,omitempty"`
}

// Kind implements Resource.
func (*DERProgram) Kind() Kind { return KindDERProgram }

// EventState is the currentStatus of a control event.
type EventState int

// Event states. Values 0 to 4 follow the wire encoding; Completed marks an
// event whose window has elapsed.
const (
	EventScheduled           EventState = 0
	EventActive              EventState = 1
	EventCancelled           EventState = 2
	EventCancelledRandomized EventState = 3
	EventSuperseded          EventState = 4
	EventCompleted           EventState = 5
)

// Terminal reports whether the event can never become active again.
func (s EventState) Terminal() bool {
	switch s {
	case EventCancelled, EventCancelledRandomized, EventSuperseded, EventCompleted:
		return true
	default:
		return false
	}
}

func (s EventState) String() string {
	switch s {
	case EventScheduled:
		return "scheduled"
	case EventActive:
		return "active"
	case EventCancelled:
		return "cancelled"
	case EventCancelledRandomized:
		return "cancelled_randomized"
	case EventSuperseded:
		return "superseded"
	case EventCompleted:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ParseEventState maps a state name back to its value.
func ParseEventState(name string) (EventState, error) {
	for s := EventScheduled; s <= EventCompleted; s++ {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown event state %q", name)
}

// EventStatus is the status block carried by every control event.
type EventStatus struct {
	CurrentStatus             EventState `json:"currentStatus"`
	DateTime                  int64      `json:"dateTime"`
	PotentiallySuperseded     bool       `json:"potentiallySuperseded"`
	PotentiallySupersededTime int64      `json:"potentiallySupersededTime,omitempty"`
	Reason                    string     `json:"reason,omitempty"`
}

// DERControlBase holds the operating modes a control asks a DER to apply.
// Nil fields are not part of the control.
type DERControlBase struct {
	OpModConnect        *bool    `json:"opModConnect,omitempty"`
	OpModEnergize       *bool    `json:"opModEnergize,omitempty"`
	OpModFixedPFAbsorbW *float64 `json:"opModFixedPFAbsorbW,omitempty"`
	OpModFixedPFInjectW *float64 `json:"opModFixedPFInjectW,omitempty"`
	OpModFixedVar       *float64 `json:"opModFixedVar,omitempty"`
	OpModFixedW         *float64 `json:"opModFixedW,omitempty"`
	OpModMaxLimW        *float64 `json:"opModMaxLimW,omitempty"`
	OpModTargetVar      *float64 `json:"opModTargetVar,omitempty"`
	OpModTargetW        *float64 `json:"opModTargetW,omitempty"`
	RampTms             *int     `json:"rampTms,omitempty"`

	OpModFreqWatt *Link `json:"opModFreqWatt,omitempty"`
	OpModVoltVar  *Link `json:"opModVoltVar,omitempty"`
	OpModVoltWatt *Link `json:"opModVoltWatt,omitempty"`
	OpModWattPF   *Link `json:"opModWattPF,omitempty"`
}

// ParseControlBase builds a control base from a flat mode → value map as
// found in configuration files. Boolean modes treat any non-zero value as
// true.
func ParseControlBase(modes map[string]float64) (DERControlBase, error) {
	var base DERControlBase

	names := make([]string, 0, len(modes))
	for name := range modes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v := modes[name]
		switch name {
		case "opModConnect":
			base.OpModConnect = ptr(v != 0)
		case "opModEnergize":
			base.OpModEnergize = ptr(v != 0)
		case "opModFixedPFAbsorbW":
			base.OpModFixedPFAbsorbW = ptr(v)
		case "opModFixedPFInjectW":
			base.OpModFixedPFInjectW = ptr(v)
		case "opModFixedVar":
			base.OpModFixedVar = ptr(v)
		case "opModFixedW":
			base.OpModFixedW = ptr(v)
		case "opModMaxLimW":
			base.OpModMaxLimW = ptr(v)
		case "opModTargetVar":
			base.OpModTargetVar = ptr(v)
		case "opModTargetW":
			base.OpModTargetW = ptr(v)
		case "rampTms":
			base.RampTms = ptr(int(v))
		default:
			return DERControlBase{}, fmt.Errorf("%w: unknown mode %q", ErrInvalidControlBase, name)
		}
	}
	return base, nil
}

func ptr[T any](v T) *T { return &v }

// DERControl is a time-bounded directive issued under a DERProgram.
type DERControl struct {
	IdentifiedObject
	CreationTime      int64             `json:"creationTime"`
	EventStatus       *EventStatus      `json:"EventStatus,omitempty"`
	Interval          *DateTimeInterval `json:"interval,omitempty"`
	RandomizeStart    int               `json:"randomizeStart,omitempty"`
	RandomizeDuration int               `json:"randomizeDuration,omitempty"`
	DERControlBase    DERControlBase    `json:"DERControlBase"`
}

// Kind implements Resource.
func (*DERControl) Kind() Kind { return KindDERControl }

// Status returns the current event state, Scheduled when none is recorded.
func (c *DERControl) Status() EventState {
	if c.EventStatus == nil {
		return EventScheduled
	}
	return c.EventStatus.CurrentStatus
}

// SetStatus records state at time at.
func (c *DERControl) SetStatus(state EventState, at int64, reason string) {
	if c.EventStatus == nil {
		c.EventStatus = &EventStatus{}
	}
	c.EventStatus.CurrentStatus = state
	c.EventStatus.DateTime = at
	c.EventStatus.Reason = reason
}

// DefaultDERControl applies whenever no control of its program is active.
type DefaultDERControl struct {
	IdentifiedObject
	SetESDelay     int            `json:"setESDelay,omitempty"`
	SetGradW       int            `json:"setGradW,omitempty"`
	SetSoftGradW   int            `json:"setSoftGradW,omitempty"`
	DERControlBase DERControlBase `json:"DERControlBase"`
}

// Kind implements Resource.
func (*DefaultDERControl) Kind() Kind { return KindDefaultDERControl }

// CurvePoint is one (x, y) pair of a DERCurve.
type CurvePoint struct {
	X float64 `json:"xvalue"`
	Y float64 `json:"yvalue"`
}

// DERCurve is a piecewise-linear curve referenced by curve-based modes.
type DERCurve struct {
	IdentifiedObject
	CreationTime int64        `json:"creationTime"`
	CurveType    int          `json:"curveType"`
	CurveData    []CurvePoint `json:"CurveData"`
	XMultiplier  int          `json:"xMultiplier,omitempty"`
	YMultiplier  int          `json:"yMultiplier,omitempty"`
	YRefType     int          `json:"yRefType,omitempty"`
}

// Kind implements Resource.
func (*DERCurve) Kind() Kind { return KindDERCurve }
