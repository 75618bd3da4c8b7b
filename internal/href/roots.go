package href

import (
	"fmt"
	"strings"
)

// Well-known collection roots.
const (
	DeviceCapabilityRoot = "/dcap"
	EndDeviceRoot        = "/edev"
	DERRoot              = "/der"
	DERProgramRoot       = "/derp"
	CurveRoot            = "/dc"
	FSARoot              = "/fsa"
	MirrorRoot           = "/mup"
	UsagePointRoot       = "/upt"
	TimeRoot             = "/tm"
	ResponseSetRoot      = "/rsps"
	LogEventRoot         = "/lel"
)

// Collection names used below a root.
const (
	Configuration     = "cfg"
	DeviceInformation = "di"
	DeviceStatus      = "ds"
	PowerStatus       = "ps"
	Registration      = "rg"
	DERList           = "der"
	FSAList           = "fsa"
	LogEventList      = "lel"

	DERSettings     = "ders"
	DERStatus       = "derg"
	DERCapability   = "dercap"
	DERAvailability = "dera"
	CurrentProgram  = "cdp"

	ControlList       = "derc"
	ActiveControlList = "actderc"
	DefaultControl    = "dderc"
	CurveList         = "dc"

	ProgramList = "derp"
)

// EndDeviceHrefs holds the addresses linked from one EndDevice.
type EndDeviceHrefs struct {
	Href              string
	Configuration     string
	DeviceInformation string
	DeviceStatus      string
	PowerStatus       string
	Registration      string
	DERList           string
	FSAList           string
	LogEventList      string
}

// EndDevice returns the addresses for the end device at index.
func EndDevice(index int) EndDeviceHrefs {
	base := Build(EndDeviceRoot, index)
	return EndDeviceHrefs{
		Href:              base,
		Configuration:     Join(base, Configuration),
		DeviceInformation: Join(base, DeviceInformation),
		DeviceStatus:      Join(base, DeviceStatus),
		PowerStatus:       Join(base, PowerStatus),
		Registration:      Join(base, Registration),
		DERList:           Join(base, DERList),
		FSAList:           Join(base, FSAList),
		LogEventList:      Join(base, LogEventList),
	}
}

// DERHrefs holds the addresses of a DER's subordinate resources.
type DERHrefs struct {
	Href           string
	Settings       string
	Status         string
	Capability     string
	Availability   string
	CurrentProgram string
}

// DER returns the subordinate addresses for the DER at base, which may be
// a global "/der_N" or a device-scoped "/edev_N_der_M".
func DER(base string) DERHrefs {
	return DERHrefs{
		Href:           base,
		Settings:       Join(base, DERSettings),
		Status:         Join(base, DERStatus),
		Capability:     Join(base, DERCapability),
		Availability:   Join(base, DERAvailability),
		CurrentProgram: Join(base, CurrentProgram),
	}
}

// ProgramHrefs holds the addresses linked from one DERProgram.
type ProgramHrefs struct {
	Href              string
	ControlList       string
	ActiveControlList string
	DefaultControl    string
	CurveList         string
}

// Program returns the addresses for the DER program at index.
func Program(index int) ProgramHrefs {
	base := Build(DERProgramRoot, index)
	return ProgramHrefs{
		Href:              base,
		ControlList:       Join(base, ControlList),
		ActiveControlList: Join(base, ActiveControlList),
		DefaultControl:    Join(base, DefaultControl),
		CurveList:         Join(base, CurveList),
	}
}

// Control returns "/derp_{program}_derc_{control}".
func Control(program, control int) string {
	return Build(Program(program).ControlList, control)
}

// ParseControl extracts the program and control indices from a control
// address built by Control.
func ParseControl(path string) (program, control int, err error) {
	h, err := Parse(path)
	if err != nil {
		return 0, 0, err
	}
	if h.Count() != 4 || h.Root() != DERProgramRoot || h.At(2) != ControlList {
		return 0, 0, fmt.Errorf("%w: %q is not a DER control address", ErrInvalidHref, path)
	}
	program, _ = h.Index(1)
	control, _ = h.Index(3)
	return program, control, nil
}

// ParseProgram extracts the program index from "/derp_N" or any address below it.
func ParseProgram(path string) (int, error) {
	h, err := Parse(path)
	if err != nil {
		return 0, err
	}
	if h.Root() != DERProgramRoot || h.Count() < 2 {
		return 0, fmt.Errorf("%w: %q is not below a DER program", ErrInvalidHref, path)
	}
	return h.Index(1)
}

// FSA returns the address of the function set assignment at index.
func FSA(index int) string {
	return Build(FSARoot, index)
}

// FSAProgramList returns the DER program list linked from an FSA.
func FSAProgramList(fsa string) string {
	return Join(fsa, ProgramList)
}

// MirrorUsagePoint returns "/mup_{key}".
func MirrorUsagePoint(key int) string {
	return Build(MirrorRoot, key)
}

// MirrorMeterReading returns "/mup_{mup}_{key}". The reading is stored in
// the list at MirrorUsagePoint(mup) under key.
func MirrorMeterReading(mup, key int) string {
	return Build(MirrorUsagePoint(mup), key)
}

// IsMirrorList reports whether uri belongs to the mirror family, whose
// elements are keyed by the trailing segment of their own href rather than
// by insertion order.
func IsMirrorList(uri string) bool {
	return uri == MirrorRoot || strings.HasPrefix(uri, MirrorRoot+Separator)
}

// MirrorKey returns the literal key carried by the last segment of a mirror
// family element href, e.g. 7 for "/mup_7" and 3 for "/mup_7_3".
func MirrorKey(path string) (int, error) {
	h, err := Parse(path)
	if err != nil {
		return 0, err
	}
	if h.Root() != MirrorRoot {
		return 0, fmt.Errorf("%w: %q is not a mirror address", ErrInvalidHref, path)
	}
	key, ok := h.LastIndex()
	if !ok {
		return 0, fmt.Errorf("%w: %q has no trailing key", ErrInvalidHref, path)
	}
	return key, nil
}
