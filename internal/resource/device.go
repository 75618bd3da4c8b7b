package resource

// DeviceCapability is the entry point a client reads first; it links to
// every top-level function set.
type DeviceCapability struct {
	Meta
	PollRate int `json:"pollRate,omitempty"`

	EndDeviceListLink        *ListLink `json:"EndDeviceListLink,omitempty"`
	DERProgramListLink       *ListLink `json:"DERProgramListLink,omitempty"`
	MirrorUsagePointListLink *ListLink `json:"MirrorUsagePointListLink,omitempty"`
	UsagePointListLink       *ListLink `json:"UsagePointListLink,omitempty"`
	TimeLink                 *Link     `json:"TimeLink,omitempty"`
}

// Kind implements Resource.
func (*DeviceCapability) Kind() Kind { return KindDeviceCapability }

// EndDevice is one client device known to the server.
type EndDevice struct {
	Meta
	LFDI        string `json:"lFDI,omitempty"`
	SFDI        int64  `json:"sFDI"`
	PostRate    int    `json:"postRate,omitempty"`
	Enabled     bool   `json:"enabled"`
	ChangedTime int64  `json:"changedTime"`

	ConfigurationLink     *Link `json:"ConfigurationLink,omitempty"`
	DeviceInformationLink *Link `json:"DeviceInformationLink,omitempty"`
	DeviceStatusLink      *Link `json:"DeviceStatusLink,omitempty"`
	PowerStatusLink       *Link `json:"PowerStatusLink,omitempty"`
	RegistrationLink      *Link `json:"RegistrationLink,omitempty"`

	DERListLink                    *ListLink `json:"DERListLink,omitempty"`
	FunctionSetAssignmentsListLink *ListLink `json:"FunctionSetAssignmentsListLink,omitempty"`
	LogEventListLink               *ListLink `json:"LogEventListLink,omitempty"`
	MirrorUsagePointListLink       *ListLink `json:"MirrorUsagePointListLink,omitempty"`
	UsagePointListLink             *ListLink `json:"UsagePointListLink,omitempty"`
}

// Kind implements Resource.
func (*EndDevice) Kind() Kind { return KindEndDevice }

// Registration records the PIN a device registered with.
type Registration struct {
	Meta
	PIN                int   `json:"pIN"`
	PollRate           int   `json:"pollRate,omitempty"`
	DateTimeRegistered int64 `json:"dateTimeRegistered"`
}

// Kind implements Resource.
func (*Registration) Kind() Kind { return KindRegistration }

// Configuration is the client-writable device configuration.
type Configuration struct {
	Meta
	CurrentLocale  string `json:"currentLocale,omitempty"`
	UserDeviceName string `json:"userDeviceName,omitempty"`
}

// Kind implements Resource.
func (*Configuration) Kind() Kind { return KindConfiguration }

// DeviceInformation describes the device hardware and firmware.
type DeviceInformation struct {
	Meta
	LFDI      string `json:"lFDI,omitempty"`
	MfModel   string `json:"mfModel,omitempty"`
	MfSerNum  string `json:"mfSerNum,omitempty"`
	MfHwVer   string `json:"mfHwVer,omitempty"`
	SwVer     string `json:"swVer,omitempty"`
	PrimaryPS int    `json:"primaryPower,omitempty"`
}

// Kind implements Resource.
func (*DeviceInformation) Kind() Kind { return KindDeviceInformation }

// DeviceStatus is the last operational status a device reported.
type DeviceStatus struct {
	Meta
	ChangedTime int64 `json:"changedTime"`
	OnCount     int   `json:"onCount,omitempty"`
	OpState     int   `json:"opState,omitempty"`
	OpTime      int64 `json:"opTime,omitempty"`
}

// Kind implements Resource.
func (*DeviceStatus) Kind() Kind { return KindDeviceStatus }

// PowerStatus is the last power source report from a device.
type PowerStatus struct {
	Meta
	BatteryStatus      int   `json:"batteryStatus"`
	ChangedTime        int64 `json:"changedTime"`
	CurrentPowerSource int   `json:"currentPowerSource"`
	EstimatedChargeRem int   `json:"estimatedChargeRemaining,omitempty"`
}

// Kind implements Resource.
func (*PowerStatus) Kind() Kind { return KindPowerStatus }

// FunctionSetAssignments groups the programs a device should follow.
type FunctionSetAssignments struct {
	IdentifiedObject
	DERProgramListLink *ListLink `json:"DERProgramListLink,omitempty"`
	TimeLink           *Link     `json:"TimeLink,omitempty"`
}

// Kind implements Resource.
func (*FunctionSetAssignments) Kind() Kind { return KindFunctionSetAssignments }

// Time is the server clock as published at /tm.
type Time struct {
	Meta
	CurrentTime  int64 `json:"currentTime"`
	DstEndTime   int64 `json:"dstEndTime"`
	DstOffset    int64 `json:"dstOffset"`
	DstStartTime int64 `json:"dstStartTime"`
	LocalTime    int64 `json:"localTime,omitempty"`
	Quality      int   `json:"quality"`
	TzOffset     int64 `json:"tzOffset"`
}

// Kind implements Resource.
func (*Time) Kind() Kind { return KindTime }
