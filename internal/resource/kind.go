package resource

import "fmt"

// Kind names a resource type. The value is the wire element name.
type Kind string

// Kind constants.
const (
	KindDeviceCapability       Kind = "DeviceCapability"
	KindEndDevice              Kind = "EndDevice"
	KindRegistration           Kind = "Registration"
	KindConfiguration          Kind = "Configuration"
	KindDeviceInformation      Kind = "DeviceInformation"
	KindDeviceStatus           Kind = "DeviceStatus"
	KindPowerStatus            Kind = "PowerStatus"
	KindFunctionSetAssignments Kind = "FunctionSetAssignments"
	KindDER                    Kind = "DER"
	KindDERSettings            Kind = "DERSettings"
	KindDERStatus              Kind = "DERStatus"
	KindDERCapability          Kind = "DERCapability"
	KindDERAvailability        Kind = "DERAvailability"
	KindDERProgram             Kind = "DERProgram"
	KindDERControl             Kind = "DERControl"
	KindDefaultDERControl      Kind = "DefaultDERControl"
	KindDERCurve               Kind = "DERCurve"
	KindMirrorUsagePoint       Kind = "MirrorUsagePoint"
	KindMirrorMeterReading     Kind = "MirrorMeterReading"
	KindUsagePoint             Kind = "UsagePoint"
	KindMeterReading           Kind = "MeterReading"
	KindReading                Kind = "Reading"
	KindReadingSet             Kind = "ReadingSet"
	KindTime                   Kind = "Time"
)

// registry maps each kind to its constructor. It is populated once at
// init and never modified afterwards.
var registry map[Kind]func() Resource

func init() {
	registry = map[Kind]func() Resource{
		KindDeviceCapability:       func() Resource { return new(DeviceCapability) },
		KindEndDevice:              func() Resource { return new(EndDevice) },
		KindRegistration:           func() Resource { return new(Registration) },
		KindConfiguration:          func() Resource { return new(Configuration) },
		KindDeviceInformation:      func() Resource { return new(DeviceInformation) },
		KindDeviceStatus:           func() Resource { return new(DeviceStatus) },
		KindPowerStatus:            func() Resource { return new(PowerStatus) },
		KindFunctionSetAssignments: func() Resource { return new(FunctionSetAssignments) },
		KindDER:                    func() Resource { return new(DER) },
		KindDERSettings:            func() Resource { return new(DERSettings) },
		KindDERStatus:              func() Resource { return new(DERStatus) },
		KindDERCapability:          func() Resource { return new(DERCapability) },
		KindDERAvailability:        func() Resource { return new(DERAvailability) },
		KindDERProgram:             func() Resource { return new(DERProgram) },
		KindDERControl:             func() Resource { return new(DERControl) },
		KindDefaultDERControl:      func() Resource { return new(DefaultDERControl) },
		KindDERCurve:               func() Resource { return new(DERCurve) },
		KindMirrorUsagePoint:       func() Resource { return new(MirrorUsagePoint) },
		KindMirrorMeterReading:     func() Resource { return new(MirrorMeterReading) },
		KindUsagePoint:             func() Resource { return new(UsagePoint) },
		KindMeterReading:           func() Resource { return new(MeterReading) },
		KindReading:                func() Resource { return new(Reading) },
		KindReadingSet:             func() Resource { return new(ReadingSet) },
		KindTime:                   func() Resource { return new(Time) },
	}
}

// AllKinds returns every registered kind.
func AllKinds() []Kind {
	return []Kind{
		KindDeviceCapability, KindEndDevice, KindRegistration, KindConfiguration,
		KindDeviceInformation, KindDeviceStatus, KindPowerStatus,
		KindFunctionSetAssignments, KindDER, KindDERSettings, KindDERStatus,
		KindDERCapability, KindDERAvailability, KindDERProgram, KindDERControl,
		KindDefaultDERControl, KindDERCurve, KindMirrorUsagePoint,
		KindMirrorMeterReading, KindUsagePoint, KindMeterReading, KindReading,
		KindReadingSet, KindTime,
	}
}

// New returns a zero-valued resource of kind k.
func New(k Kind) (Resource, error) {
	ctor, ok := registry[k]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, string(k))
	}
	return ctor(), nil
}

// Valid reports whether k is registered.
func (k Kind) Valid() bool {
	_, ok := registry[k]
	return ok
}

// ListName returns the wire name of a list of k, e.g. "EndDeviceList".
func (k Kind) ListName() string {
	return string(k) + "List"
}

func (k Kind) String() string {
	return string(k)
}
