package resource

import "math"

// ReadingType describes the unit and scale of a meter reading.
type ReadingType struct {
	Accumulation         int `json:"accumulationBehaviour,omitempty"`
	Commodity            int `json:"commodity,omitempty"`
	DataQualifier        int `json:"dataQualifier,omitempty"`
	FlowDirection        int `json:"flowDirection,omitempty"`
	IntervalLength       int `json:"intervalLength,omitempty"`
	Kind                 int `json:"kind,omitempty"`
	PowerOfTenMultiplier int `json:"powerOfTenMultiplier"`
	UOM                  int `json:"uom"`
}

// MirrorUsagePoint is a usage point a client mirrors its metering onto.
type MirrorUsagePoint struct {
	IdentifiedObject
	DeviceLFDI          string `json:"deviceLFDI,omitempty"`
	RoleFlags           int    `json:"roleFlags"`
	ServiceCategoryKind int    `json:"serviceCategoryKind"`
	Status              int    `json:"status"`
	PostRate            int    `json:"postRate,omitempty"`

	MirrorMeterReadingListLink *ListLink `json:"MirrorMeterReadingListLink,omitempty"`
	UsagePointLink             *Link     `json:"UsagePointLink,omitempty"`
}

// Kind implements Resource.
func (*MirrorUsagePoint) Kind() Kind { return KindMirrorUsagePoint }

// MirrorMeterReading is one reading series posted to a mirror usage point.
//
// ReadingSets is only read from a post. The sets are moved into the usage
// point view ("/upt_N_mr_K_rs") and never stored on the mirror reading.
type MirrorMeterReading struct {
	IdentifiedObject
	LastUpdateTime int64               `json:"lastUpdateTime,omitempty"`
	NextUpdateTime int64               `json:"nextUpdateTime,omitempty"`
	Reading        *Reading            `json:"Reading,omitempty"`
	ReadingSets    []*MirrorReadingSet `json:"MirrorReadingSet,omitempty"`
	ReadingType    *ReadingType        `json:"ReadingType,omitempty"`
}

// Kind implements Resource.
func (*MirrorMeterReading) Kind() Kind { return KindMirrorMeterReading }

// MirrorMeterReadingList is the body of a batch post to "/mup_N".
type MirrorMeterReadingList struct {
	Items []*MirrorMeterReading `json:"MirrorMeterReading"`
}

// MirrorReadingSet is a block of readings covering one time period, posted
// inside a MirrorMeterReading or on its own to "/mup_N_K".
type MirrorReadingSet struct {
	IdentifiedObject
	TimePeriod *DateTimeInterval `json:"timePeriod,omitempty"`
	Readings   []*Reading        `json:"Reading,omitempty"`
}

// Copy returns a deep copy of s.
func (s *MirrorReadingSet) Copy() *MirrorReadingSet {
	out := *s
	if s.TimePeriod != nil {
		tp := *s.TimePeriod
		out.TimePeriod = &tp
	}
	out.Readings = make([]*Reading, len(s.Readings))
	for i, r := range s.Readings {
		if r == nil {
			continue
		}
		c := *r
		if r.TimePeriod != nil {
			tp := *r.TimePeriod
			c.TimePeriod = &tp
		}
		out.Readings[i] = &c
	}
	return &out
}

// UsagePoint is the server-side view of a mirrored usage point.
type UsagePoint struct {
	IdentifiedObject
	DeviceLFDI          string `json:"deviceLFDI,omitempty"`
	RoleFlags           int    `json:"roleFlags"`
	ServiceCategoryKind int    `json:"serviceCategoryKind"`
	Status              int    `json:"status"`

	MeterReadingListLink *ListLink `json:"MeterReadingListLink,omitempty"`
}

// Kind implements Resource.
func (*UsagePoint) Kind() Kind { return KindUsagePoint }

// MeterReading is the server-side view of one mirrored reading series.
type MeterReading struct {
	IdentifiedObject
	ReadingLink        *Link     `json:"ReadingLink,omitempty"`
	ReadingSetListLink *ListLink `json:"ReadingSetListLink,omitempty"`
	ReadingTypeLink    *Link     `json:"ReadingTypeLink,omitempty"`
}

// Kind implements Resource.
func (*MeterReading) Kind() Kind { return KindMeterReading }

// ReadingSet is a stored MirrorReadingSet. Its readings live in the list
// at ReadingListLink.
type ReadingSet struct {
	IdentifiedObject
	TimePeriod      *DateTimeInterval `json:"timePeriod,omitempty"`
	ReadingListLink *ListLink         `json:"ReadingListLink,omitempty"`
}

// Kind implements Resource.
func (*ReadingSet) Kind() Kind { return KindReadingSet }

// Reading is a single measured value.
type Reading struct {
	Meta
	LocalID      int               `json:"localID,omitempty"`
	QualityFlags string            `json:"qualityFlags,omitempty"`
	TimePeriod   *DateTimeInterval `json:"timePeriod,omitempty"`
	Value        int64             `json:"value"`
}

// Kind implements Resource.
func (*Reading) Kind() Kind { return KindReading }

// Scaled applies a power-of-ten multiplier to the raw value.
func (r *Reading) Scaled(powerOfTen int) float64 {
	return float64(r.Value) * math.Pow10(powerOfTen)
}
