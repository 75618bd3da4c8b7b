package directory

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gridlink-core/internal/href"
	"github.com/nerrad567/gridlink-core/internal/infrastructure/config"
	"github.com/nerrad567/gridlink-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/gridlink-core/internal/lifecycle"
	"github.com/nerrad567/gridlink-core/internal/persist"
	"github.com/nerrad567/gridlink-core/internal/resource"
	"github.com/nerrad567/gridlink-core/internal/store"
	"github.com/nerrad567/gridlink-core/internal/telemetry"
)

type fixedClock int64

func (c fixedClock) Now() int64 { return int64(c) }

type recordingSink struct {
	mu  sync.Mutex
	got []telemetry.Reading
}

func (s *recordingSink) Record(_ context.Context, r telemetry.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, r)
	return nil
}

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()
	return New(nil, Options{Clock: fixedClock(1_700_000_000), MirrorPostRate: 300})
}

func testConfig() *config.Config {
	return &config.Config{
		Programs: []config.ProgramConfig{
			{
				Description: "export limit",
				MRID:        "P0",
				Primacy:     10,
				DefaultControl: &config.ControlConfig{
					Description: "default",
					Base:        map[string]float64{"opModConnect": 1},
				},
				Controls: []config.ControlConfig{
					{Description: "evening cap", MRID: "C0", Start: 1_700_000_100, Duration: 600,
						Base: map[string]float64{"opModMaxLimW": 5000}},
				},
			},
			{Description: "backup", MRID: "P1", Primacy: 20},
		},
		Curves: []config.CurveConfig{
			{Description: "volt-var", MRID: "VV", CurveType: 11, Points: [][2]float64{{94, 44}, {106, -44}}},
		},
		FSAs: []config.FSAConfig{
			{Description: "site", Programs: []string{"backup", "P0"}},
		},
		Devices: []config.DeviceConfig{
			{ID: "inverter", LFDI: "AAAA", SFDI: 111, PIN: 111115, PostRate: 60, PollRate: 900,
				FSAs: []string{"site"}, DERs: []string{"inv-a"}},
			{ID: "meter", LFDI: "BBBB", SFDI: 222, PIN: 222225},
		},
	}
}

func resolveAs[T resource.Resource](t *testing.T, d *Directory, path string) T {
	t.Helper()
	got, err := d.Resolve(path, store.Query{})
	if err != nil {
		t.Fatalf("Resolve(%s) error = %v", path, err)
	}
	r, ok := got.(T)
	if !ok {
		t.Fatalf("Resolve(%s) = %T", path, got)
	}
	return r
}

func resolveList(t *testing.T, d *Directory, path string, q store.Query) *resource.ListResponse {
	t.Helper()
	got, err := d.Resolve(path, q)
	if err != nil {
		t.Fatalf("Resolve(%s) error = %v", path, err)
	}
	list, ok := got.(*resource.ListResponse)
	if !ok {
		t.Fatalf("Resolve(%s) = %T, want list", path, got)
	}
	return list
}

func TestSeed(t *testing.T) {
	d := newTestDirectory(t)
	if err := d.Seed(testConfig()); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	if d.EndDevices.Count() != 2 || d.Capabilities.Count() != 2 {
		t.Fatalf("devices = %d, capabilities = %d", d.EndDevices.Count(), d.Capabilities.Count())
	}

	dev := resolveAs[*resource.EndDevice](t, d, "/edev_0")
	if dev.LFDI != "AAAA" || dev.SFDI != 111 || dev.PostRate != 60 || !dev.Enabled {
		t.Errorf("device = %+v", dev)
	}
	if dev.ConfigurationLink.Href != "/edev_0_cfg" || dev.DERListLink.Href != "/edev_0_der" {
		t.Errorf("device links = %+v, %+v", dev.ConfigurationLink, dev.DERListLink)
	}
	if dev.DERListLink.All != 1 || dev.FunctionSetAssignmentsListLink.All != 1 {
		t.Errorf("list link counts = %d, %d", dev.DERListLink.All, dev.FunctionSetAssignmentsListLink.All)
	}

	resolveAs[*resource.Configuration](t, d, "/edev_0_cfg")
	resolveAs[*resource.DeviceInformation](t, d, "/edev_1_di")
	if reg := resolveAs[*resource.Registration](t, d, "/edev_0_rg"); reg.PIN != 111115 || reg.PollRate != 900 {
		t.Errorf("registration = %+v", reg)
	}

	ders := resolveList(t, d, "/edev_0_der", store.Query{})
	if ders.All != 1 || ders.Items[0].GetHref() != "/der_0" {
		t.Fatalf("device 0 DERs = %+v", ders)
	}
	// The FSA carries P1 (primacy 20) and P0 (primacy 10); P0 wins.
	der := resolveAs[*resource.DER](t, d, "/der_0")
	if der.CurrentDERProgramLink == nil || der.CurrentDERProgramLink.Href != "/derp_0" {
		t.Errorf("current program = %+v", der.CurrentDERProgramLink)
	}
	if der := resolveAs[*resource.DER](t, d, "/edev_1_der_0"); der.DERSettingsLink.Href != "/edev_1_der_0_ders" {
		t.Errorf("default DER = %+v", der)
	}

	if prog := resolveAs[*resource.DERProgram](t, d, "/derp_0"); prog.MRID != "P0" || prog.DefaultDERControlLink == nil {
		t.Errorf("program = %+v", prog)
	}
	if prog := resolveAs[*resource.DERProgram](t, d, "/derp_1"); prog.DefaultDERControlLink != nil {
		t.Errorf("program without default control links %+v", prog.DefaultDERControlLink)
	}
	dflt := resolveAs[*resource.DefaultDERControl](t, d, "/derp_0_dderc")
	if dflt.DERControlBase.OpModConnect == nil || !*dflt.DERControlBase.OpModConnect {
		t.Errorf("default control base = %+v", dflt.DERControlBase)
	}

	ctl := resolveAs[*resource.DERControl](t, d, "/derp_0_derc_0")
	if ctl.MRID != "C0" || ctl.Status() != resource.EventScheduled || ctl.Interval.Duration != 600 {
		t.Errorf("control = %+v", ctl)
	}
	if active := resolveList(t, d, "/derp_0_actderc", store.Query{}); active.All != 0 {
		t.Errorf("active list = %d entries", active.All)
	}

	if curve := resolveAs[*resource.DERCurve](t, d, "/dc_0"); len(curve.CurveData) != 2 || curve.CurveData[1].Y != -44 {
		t.Errorf("curve = %+v", curve)
	}
	if progs := resolveList(t, d, "/fsa_0_derp", store.Query{}); progs.All != 2 {
		t.Errorf("fsa programs = %d", progs.All)
	}
	if dcap := resolveAs[*resource.DeviceCapability](t, d, "/dcap_0"); dcap.PollRate != 900 || dcap.TimeLink.Href != "/tm" {
		t.Errorf("capability = %+v", dcap)
	}
}

func TestSeed_RerunRefreshesInPlace(t *testing.T) {
	d := newTestDirectory(t)
	cfg := testConfig()
	if err := d.Seed(cfg); err != nil {
		t.Fatal(err)
	}

	cfg.Devices[0].LFDI = "CCCC"
	cfg.Devices[0].PostRate = 30
	if err := d.Seed(cfg); err != nil {
		t.Fatalf("second Seed() error = %v", err)
	}

	if d.EndDevices.Count() != 2 {
		t.Errorf("devices = %d, want 2", d.EndDevices.Count())
	}
	dev := resolveAs[*resource.EndDevice](t, d, "/edev_0")
	if dev.LFDI != "CCCC" || dev.PostRate != 30 {
		t.Errorf("device = %+v", dev)
	}
	if dev.ConfigurationLink == nil {
		t.Error("refresh dropped the device links")
	}
	if n := d.Lists.Size("/derp_0_derc"); n != 1 {
		t.Errorf("controls = %d, want 1", n)
	}
	if n := d.Lists.Size("/edev_0_der"); n != 1 {
		t.Errorf("DERs = %d, want 1", n)
	}
}

func TestSeed_Cleanse(t *testing.T) {
	d := newTestDirectory(t)
	if _, err := d.AddEndDevice(&resource.EndDevice{LFDI: "EXTRA"}); err != nil {
		t.Fatal(err)
	}
	if _, err := d.AddEndDevice(&resource.EndDevice{LFDI: "EXTRA2"}); err != nil {
		t.Fatal(err)
	}
	if _, err := d.AddEndDevice(&resource.EndDevice{LFDI: "EXTRA3"}); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig()
	cfg.Storage.Cleanse = true
	if err := d.Seed(cfg); err != nil {
		t.Fatal(err)
	}
	if d.EndDevices.Count() != 2 {
		t.Errorf("devices after cleanse = %d, want 2", d.EndDevices.Count())
	}
}

func TestSeed_RepeatedNamesUsedOnce(t *testing.T) {
	cfg := testConfig()
	cfg.Devices[0].DERs = []string{"inv-a", "inv-b", "inv-a"}
	cfg.Devices[0].FSAs = []string{"site", "site"}
	cfg.FSAs[0].Programs = []string{"backup", "P0", "export limit"}

	d := newTestDirectory(t)
	if err := d.Seed(cfg); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	seen := make(map[string]bool)
	for _, r := range d.Lists.Values("/edev_0_der") {
		if seen[r.GetHref()] {
			t.Errorf("DER %s listed twice", r.GetHref())
		}
		seen[r.GetHref()] = true
	}
	if len(seen) != 2 || !seen["/der_0"] || !seen["/der_1"] {
		t.Errorf("device DERs = %v, want /der_0 and /der_1", seen)
	}

	dev := resolveAs[*resource.EndDevice](t, d, "/edev_0")
	if dev.DERListLink.All != 2 || dev.FunctionSetAssignmentsListLink.All != 1 {
		t.Errorf("list link counts = %d, %d, want 2, 1", dev.DERListLink.All, dev.FunctionSetAssignmentsListLink.All)
	}
	if n := d.Lists.Size("/edev_0_fsa"); n != 1 {
		t.Errorf("device FSAs = %d, want 1", n)
	}
	if n := d.Lists.Size(href.FSAProgramList("/fsa_0")); n != 2 {
		t.Errorf("FSA programs = %d, want 2", n)
	}
}

func TestSeed_UnknownReferences(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"fsa names a missing program", func(c *config.Config) { c.FSAs[0].Programs = []string{"nope"} }},
		{"device names a missing fsa", func(c *config.Config) { c.Devices[0].FSAs = []string{"nope"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			if err := newTestDirectory(t).Seed(cfg); !errors.Is(err, ErrUnknownReference) {
				t.Errorf("Seed() error = %v, want ErrUnknownReference", err)
			}
		})
	}
}

func TestAddEndDevice(t *testing.T) {
	d := newTestDirectory(t)

	first, err := d.AddEndDevice(&resource.EndDevice{LFDI: "AA", SFDI: 1})
	if err != nil {
		t.Fatalf("AddEndDevice() error = %v", err)
	}
	second, err := d.AddEndDevice(&resource.EndDevice{LFDI: "BB", SFDI: 2})
	if err != nil {
		t.Fatal(err)
	}

	if first.Href != "/edev_0" || second.Href != "/edev_1" {
		t.Errorf("hrefs = %s, %s", first.Href, second.Href)
	}
	if second.DeviceStatusLink.Href != "/edev_1_ds" || second.FunctionSetAssignmentsListLink.Href != "/edev_1_fsa" {
		t.Errorf("links = %+v, %+v", second.DeviceStatusLink, second.FunctionSetAssignmentsListLink)
	}
	if second.ChangedTime != 1_700_000_000 {
		t.Errorf("changedTime = %d", second.ChangedTime)
	}

	resolveAs[*resource.DeviceStatus](t, d, "/edev_1_ds")
	resolveAs[*resource.PowerStatus](t, d, "/edev_1_ps")
	if list := resolveList(t, d, "/edev_1_der", store.Query{}); list.All != 0 {
		t.Errorf("DER list = %+v", list)
	}

	if _, err := d.AddEndDevice(nil); !errors.Is(err, store.ErrNilResource) {
		t.Errorf("AddEndDevice(nil) error = %v", err)
	}
}

func TestAddEndDevice_OneWriteCallerUntouched(t *testing.T) {
	mem := persist.NewMemoryPersister()
	hub := persist.NewHub()
	hub.Register(mem)
	d := New(hub, Options{Clock: fixedClock(1_700_000_000)})

	in := &resource.EndDevice{LFDI: "AA", SFDI: 1}
	got, err := d.AddEndDevice(in)
	if err != nil {
		t.Fatalf("AddEndDevice() error = %v", err)
	}
	if n := mem.Writes(StoreEndDevices); n != 1 {
		t.Errorf("end device writes = %d, want 1", n)
	}
	if in.Href != "" || in.ChangedTime != 0 || in.ConfigurationLink != nil || in.DERListLink != nil {
		t.Errorf("caller's device modified: %+v", in)
	}

	// The one persisted snapshot already holds the linked device.
	snapshot, ok, err := mem.Load(context.Background(), StoreEndDevices)
	if err != nil || !ok {
		t.Fatalf("Load() = %v, %v", ok, err)
	}
	restored := store.New[*resource.EndDevice](StoreEndDevices, "/edev", nil)
	if err := restored.Restore(snapshot); err != nil {
		t.Fatal(err)
	}
	dev, err := restored.Fetch(0)
	if err != nil {
		t.Fatal(err)
	}
	if dev.ConfigurationLink == nil || dev.ConfigurationLink.Href != "/edev_0_cfg" || dev.DERListLink == nil {
		t.Errorf("persisted device = %+v", dev)
	}

	// The returned device is a copy.
	got.LFDI = "changed"
	if stored := resolveAs[*resource.EndDevice](t, d, "/edev_0"); stored.LFDI != "AA" {
		t.Errorf("stored LFDI = %s after editing the returned device", stored.LFDI)
	}
}

func TestPut(t *testing.T) {
	d := newTestDirectory(t)
	if err := d.Seed(testConfig()); err != nil {
		t.Fatal(err)
	}

	if err := d.Put("/edev_0_ds", &resource.DeviceStatus{}); err != nil {
		t.Errorf("Put(device status) error = %v", err)
	}
	if err := d.Put("/der_0_ders", &resource.DERSettings{}); err != nil {
		t.Errorf("Put(DER settings) error = %v", err)
	}
	if err := d.Put("/edev_1_der_0_derg", &resource.DERStatus{}); err != nil {
		t.Errorf("Put(device DER status) error = %v", err)
	}

	tests := []struct {
		name string
		path string
		r    resource.Resource
		want error
	}{
		{"server owned", "/edev_0_rg", &resource.Registration{}, ErrNotWritable},
		{"list element", "/edev_0_der_0", &resource.DER{}, ErrNotWritable},
		{"wrong kind", "/edev_0_ds", &resource.PowerStatus{}, store.ErrTypeMismatch},
		{"missing owner", "/edev_9_ds", &resource.DeviceStatus{}, store.ErrNotFound},
		{"missing DER", "/der_7_ders", &resource.DERSettings{}, store.ErrNotFound},
		{"bad href", "/edev_x", &resource.DeviceStatus{}, store.ErrInvalidHref},
		{"nil", "/edev_0_ds", nil, store.ErrNilResource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := d.Put(tt.path, tt.r); !errors.Is(err, tt.want) {
				t.Errorf("Put(%s) error = %v, want %v", tt.path, err, tt.want)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	d := New(nil, Options{
		Clock:          fixedClock(1_700_000_000),
		MirrorPostRate: 300,
		Location:       time.FixedZone("test", 3600),
	})
	if err := d.Seed(testConfig()); err != nil {
		t.Fatal(err)
	}

	tm := resolveAs[*resource.Time](t, d, "/tm")
	if tm.CurrentTime != 1_700_000_000 || tm.TzOffset != 3600 || tm.LocalTime != 1_700_003_600 {
		t.Errorf("time = %+v", tm)
	}

	page := resolveList(t, d, "/edev", store.Query{Limit: 1})
	if page.All != 2 || page.Results != 1 || page.Items[0].GetHref() != "/edev_0" {
		t.Errorf("/edev page = %+v", page)
	}
	page = resolveList(t, d, "/edev", store.Query{Start: 1, Limit: 5})
	if page.Results != 1 || page.Items[0].GetHref() != "/edev_1" {
		t.Errorf("/edev second page = %+v", page)
	}
	if page := resolveList(t, d, "/derp", store.Query{}); page.All != 2 {
		t.Errorf("/derp = %+v", page)
	}
	if page := resolveList(t, d, "/mup", store.Query{}); page.PollRate != 300 || page.All != 0 {
		t.Errorf("/mup = %+v", page)
	}

	// DER subresources read as empty until written.
	status := resolveAs[*resource.DERStatus](t, d, "/der_0_derg")
	if status.Href != "/der_0_derg" {
		t.Errorf("empty status href = %s", status.Href)
	}

	for _, path := range []string{"/edev_5", "/derp_0_derc_9", "/der_4_ders", "/nothing", "/mup_3"} {
		if _, err := d.Resolve(path, store.Query{}); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Resolve(%s) error = %v, want ErrNotFound", path, err)
		}
	}
	if _, err := d.Resolve("/edev_x", store.Query{}); !errors.Is(err, store.ErrInvalidHref) {
		t.Errorf("Resolve(bad href) error = %v", err)
	}
}

func TestControls(t *testing.T) {
	d := newTestDirectory(t)
	if err := d.Seed(testConfig()); err != nil {
		t.Fatal(err)
	}

	if _, err := d.CreateControl(0, &resource.DERControl{}); !errors.Is(err, ErrInvalidControl) {
		t.Errorf("CreateControl(no interval) error = %v", err)
	}
	if _, err := d.CreateControl(9, &resource.DERControl{
		Interval: &resource.DateTimeInterval{Start: 1, Duration: 1},
	}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("CreateControl(missing program) error = %v", err)
	}

	if _, err := d.CreateControl(0, &resource.DERControl{
		Interval: &resource.DateTimeInterval{Start: 100, Duration: math.MaxInt64},
	}); !errors.Is(err, ErrInvalidControl) {
		t.Errorf("CreateControl(window past the largest time) error = %v", err)
	}

	in := &resource.DERControl{
		Interval: &resource.DateTimeInterval{Start: 1_700_000_500, Duration: 60},
	}
	ctl, err := d.CreateControl(0, in)
	if err != nil {
		t.Fatalf("CreateControl() error = %v", err)
	}
	if in.Href != "" || in.MRID != "" || in.CreationTime != 0 || in.EventStatus != nil {
		t.Errorf("caller's control modified: %+v", in)
	}
	ctl.Description = "edited after return"
	if stored := resolveAs[*resource.DERControl](t, d, "/derp_0_derc_1"); stored.Description != "" {
		t.Errorf("stored control shares the returned value: %+v", stored)
	}
	if ctl.Href != "/derp_0_derc_1" || ctl.MRID == "" || ctl.CreationTime != 1_700_000_000 {
		t.Errorf("control = %+v", ctl)
	}
	if ctl.Status() != resource.EventScheduled {
		t.Errorf("status = %s", ctl.Status())
	}

	if _, err := d.CreateControl(0, &resource.DERControl{
		IdentifiedObject: resource.IdentifiedObject{MRID: ctl.MRID},
		Interval:         &resource.DateTimeInterval{Start: 1, Duration: 1},
	}); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("CreateControl(duplicate mRID) error = %v", err)
	}

	cancelled, err := d.SetControlStatus(0, 1, resource.EventCancelled, "operator")
	if err != nil {
		t.Fatalf("SetControlStatus() error = %v", err)
	}
	if cancelled.Status() != resource.EventCancelled || cancelled.EventStatus.Reason != "operator" {
		t.Errorf("cancelled = %+v", cancelled.EventStatus)
	}
	// The previously returned value is not changed behind the caller's back.
	if ctl.Status() != resource.EventScheduled {
		t.Errorf("original control status = %s", ctl.Status())
	}

	if _, err := d.SetControlStatus(0, 1, resource.EventCancelled, ""); err != nil {
		t.Errorf("repeated SetControlStatus() error = %v", err)
	}
	if _, err := d.SetControlStatus(0, 1, resource.EventCompleted, ""); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("SetControlStatus(other terminal) error = %v", err)
	}
	if _, err := d.SetControlStatus(0, 0, resource.EventActive, ""); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("SetControlStatus(active) error = %v", err)
	}
	if _, err := d.SetControlStatus(0, 7, resource.EventCancelled, ""); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("SetControlStatus(missing) error = %v", err)
	}
}

func TestMirrorMetering(t *testing.T) {
	sink := &recordingSink{}
	d := New(nil, Options{Clock: fixedClock(1_700_000_000), Sink: sink, MirrorPostRate: 300})
	ctx := context.Background()

	posted := &resource.MirrorUsagePoint{
		IdentifiedObject: resource.IdentifiedObject{MRID: "MUP1", Description: "site meter"},
		DeviceLFDI:       "AAAA",
	}
	res, err := d.CreateMirrorUsagePoint(posted)
	if err != nil {
		t.Fatalf("CreateMirrorUsagePoint() error = %v", err)
	}
	if posted.Href != "" || posted.PostRate != 0 || posted.UsagePointLink != nil {
		t.Errorf("caller's usage point modified: %+v", posted)
	}
	if !res.Created || res.Location != "/mup_0" {
		t.Errorf("first post = %+v", res)
	}

	res, err = d.CreateMirrorUsagePoint(&resource.MirrorUsagePoint{
		IdentifiedObject: resource.IdentifiedObject{MRID: "MUP1", Description: "renamed"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Created || res.Location != "/mup_0" {
		t.Errorf("repeat post = %+v", res)
	}
	mup := resolveAs[*resource.MirrorUsagePoint](t, d, "/mup_0")
	if mup.Description != "renamed" || mup.PostRate != 300 || mup.UsagePointLink.Href != "/upt_0" {
		t.Errorf("mirror usage point = %+v", mup)
	}
	if upt := resolveAs[*resource.UsagePoint](t, d, "/upt_0"); upt.MeterReadingListLink.Href != "/upt_0_mr" {
		t.Errorf("usage point = %+v", upt)
	}

	mmr := &resource.MirrorMeterReading{
		IdentifiedObject: resource.IdentifiedObject{MRID: "RD1", Description: "real power"},
		Reading:          &resource.Reading{Value: 4200, TimePeriod: &resource.DateTimeInterval{Start: 1_699_999_700, Duration: 300}},
		ReadingType:      &resource.ReadingType{PowerOfTenMultiplier: 0, UOM: 38},
	}
	res, err = d.CreateMirrorMeterReading(ctx, "/mup_0", mmr)
	if err != nil {
		t.Fatalf("CreateMirrorMeterReading() error = %v", err)
	}
	if mmr.Href != "" || mmr.LastUpdateTime != 0 {
		t.Errorf("caller's reading modified: %+v", mmr)
	}
	if !res.Created || res.Location != "/mup_0_0" {
		t.Errorf("reading post = %+v", res)
	}

	mmr2 := &resource.MirrorMeterReading{
		IdentifiedObject: resource.IdentifiedObject{MRID: "RD1"},
		Reading:          &resource.Reading{Value: 4300},
	}
	if res, err = d.CreateMirrorMeterReading(ctx, "/mup_0", mmr2); err != nil || res.Created {
		t.Errorf("repeat reading post = %+v, %v", res, err)
	}

	mup = resolveAs[*resource.MirrorUsagePoint](t, d, "/mup_0")
	if mup.MirrorMeterReadingListLink.All != 1 || d.Lists.Size("/mup_0") != 1 {
		t.Errorf("reading list link = %+v", mup.MirrorMeterReadingListLink)
	}
	resolveAs[*resource.MirrorMeterReading](t, d, "/mup_0_0")
	if mr := resolveAs[*resource.MeterReading](t, d, "/upt_0_mr_0"); mr.ReadingLink.Href != "/upt_0_mr_0_r" {
		t.Errorf("meter reading = %+v", mr)
	}
	if r := resolveAs[*resource.Reading](t, d, "/upt_0_mr_0_r"); r.Value != 4300 {
		t.Errorf("latest reading = %+v", r)
	}
	got, err := d.Resolve("/upt_0_mr_0_rt", store.Query{})
	if err != nil {
		t.Fatalf("Resolve(reading type) error = %v", err)
	}
	if rt, ok := got.(*resource.ReadingType); !ok || rt.UOM != 38 {
		t.Errorf("reading type = %#v", got)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.got) != 2 {
		t.Fatalf("sink readings = %d, want 2", len(sink.got))
	}
	first := sink.got[0]
	if first.MirrorUsagePoint != "/mup_0" || first.Value != 4200 || first.UOM != 38 || first.TimePeriod != 1_699_999_700 {
		t.Errorf("first reading = %+v", first)
	}
	if sink.got[1].TimePeriod != 1_700_000_000 {
		t.Errorf("second reading time = %d, want lastUpdateTime", sink.got[1].TimePeriod)
	}
}

func TestMirrorMetering_Errors(t *testing.T) {
	d := newTestDirectory(t)
	ctx := context.Background()

	if _, err := d.CreateMirrorMeterReading(ctx, "/edev_0", &resource.MirrorMeterReading{}); !errors.Is(err, ErrInvalidMirror) {
		t.Errorf("post to /edev_0 error = %v", err)
	}
	if _, err := d.CreateMirrorMeterReading(ctx, "/mup_4", &resource.MirrorMeterReading{}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("post to missing usage point error = %v", err)
	}

	if _, err := d.CreateMirrorUsagePoint(&resource.MirrorUsagePoint{
		IdentifiedObject: resource.IdentifiedObject{Meta: resource.Meta{Href: "/mup_3"}, MRID: "A"},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := d.CreateMirrorUsagePoint(&resource.MirrorUsagePoint{
		IdentifiedObject: resource.IdentifiedObject{Meta: resource.Meta{Href: "/mup_3"}, MRID: "B"},
	}); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("post to occupied key error = %v, want ErrAlreadyExists", err)
	}

	// The next generated key follows the highest one in use.
	res, err := d.CreateMirrorUsagePoint(&resource.MirrorUsagePoint{IdentifiedObject: resource.IdentifiedObject{MRID: "C"}})
	if err != nil || res.Location != "/mup_4" {
		t.Errorf("generated location = %+v, %v", res, err)
	}
}

func newMirror(t *testing.T, sink telemetry.Sink) *Directory {
	t.Helper()
	d := New(nil, Options{Clock: fixedClock(1_700_000_000), Sink: sink, MirrorPostRate: 300})
	if _, err := d.CreateMirrorUsagePoint(&resource.MirrorUsagePoint{
		IdentifiedObject: resource.IdentifiedObject{MRID: "MUP1"},
	}); err != nil {
		t.Fatal(err)
	}
	return d
}

func setStarts(t *testing.T, list *resource.ListResponse) []int64 {
	t.Helper()
	out := make([]int64, 0, len(list.Items))
	for _, r := range list.Items {
		rs, ok := r.(*resource.ReadingSet)
		if !ok {
			t.Fatalf("list item = %T, want *resource.ReadingSet", r)
		}
		out = append(out, rs.TimePeriod.Start)
	}
	return out
}

func TestMirrorMetering_ReadingSets(t *testing.T) {
	sink := &recordingSink{}
	d := newMirror(t, sink)
	ctx := context.Background()

	mmr := &resource.MirrorMeterReading{
		IdentifiedObject: resource.IdentifiedObject{MRID: "RD1", Description: "interval energy"},
		ReadingType:      &resource.ReadingType{UOM: 72},
		ReadingSets: []*resource.MirrorReadingSet{
			{
				IdentifiedObject: resource.IdentifiedObject{MRID: "RS-A"},
				TimePeriod:       &resource.DateTimeInterval{Start: 1000, Duration: 300},
				Readings: []*resource.Reading{
					{Value: 1},
					{Value: 2, TimePeriod: &resource.DateTimeInterval{Start: 1100, Duration: 100}},
				},
			},
			{
				IdentifiedObject: resource.IdentifiedObject{MRID: "RS-B"},
				TimePeriod:       &resource.DateTimeInterval{Start: 2000, Duration: 300},
				Readings:         []*resource.Reading{{Value: 3}},
			},
		},
	}
	res, err := d.CreateMirrorMeterReading(ctx, "/mup_0", mmr)
	if err != nil {
		t.Fatalf("CreateMirrorMeterReading() error = %v", err)
	}
	if !res.Created || res.Location != "/mup_0_0" {
		t.Errorf("reading post = %+v", res)
	}

	if stored := resolveAs[*resource.MirrorMeterReading](t, d, "/mup_0_0"); stored.ReadingSets != nil {
		t.Errorf("mirror reading kept its sets: %+v", stored.ReadingSets)
	}
	if len(mmr.ReadingSets[0].Readings) != 2 || mmr.ReadingSets[0].Readings[0].Href != "" {
		t.Errorf("caller's reading sets modified: %+v", mmr.ReadingSets[0])
	}

	list := resolveList(t, d, "/upt_0_mr_0_rs", store.Query{})
	if got := setStarts(t, list); list.All != 2 || len(got) != 2 || got[0] != 2000 || got[1] != 1000 {
		t.Errorf("reading sets = %v (all %d), want newest first [2000 1000]", got, list.All)
	}
	first := list.Items[1].(*resource.ReadingSet)
	if first.Href != "/upt_0_mr_0_rs_0" || first.ReadingListLink.Href != "/upt_0_mr_0_rs_0_r" || first.ReadingListLink.All != 2 {
		t.Errorf("first set = %+v, link %+v", first, first.ReadingListLink)
	}
	readings := resolveList(t, d, "/upt_0_mr_0_rs_0_r", store.Query{})
	if readings.All != 2 {
		t.Errorf("set readings = %d, want 2", readings.All)
	}
	if r := resolveAs[*resource.Reading](t, d, "/upt_0_mr_0_rs_0_r_1"); r.Value != 2 {
		t.Errorf("second reading = %+v", r)
	}
	if mr := resolveAs[*resource.MeterReading](t, d, "/upt_0_mr_0"); mr.ReadingSetListLink == nil || mr.ReadingSetListLink.All != 2 {
		t.Errorf("meter reading set link = %+v", mr.ReadingSetListLink)
	}

	added, err := d.AddMirrorReadingSet(ctx, "/mup_0_0", &resource.MirrorReadingSet{
		TimePeriod: &resource.DateTimeInterval{Start: 1500, Duration: 300},
		Readings:   []*resource.Reading{{Value: 4}},
	})
	if err != nil {
		t.Fatalf("AddMirrorReadingSet() error = %v", err)
	}
	if !added.Created || added.Location != "/upt_0_mr_0_rs_2" {
		t.Errorf("set post = %+v", added)
	}

	tests := []struct {
		name string
		q    store.Query
		want []int64
	}{
		{"newest first by default", store.Query{}, []int64{2000, 1500, 1000}},
		{"explicit order wins", store.Query{SortBy: []string{"timePeriod.start"}}, []int64{1000, 1500, 2000}},
		{"paged", store.Query{Start: 1, Limit: 1}, []int64{1500}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := setStarts(t, resolveList(t, d, "/upt_0_mr_0_rs", tt.q))
			if len(got) != len(tt.want) {
				t.Fatalf("starts = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("starts = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
	if mr := resolveAs[*resource.MeterReading](t, d, "/upt_0_mr_0"); mr.ReadingSetListLink.All != 3 {
		t.Errorf("meter reading set count = %d, want 3", mr.ReadingSetListLink.All)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	wantTimes := []int64{1000, 1100, 2000, 1500}
	if len(sink.got) != len(wantTimes) {
		t.Fatalf("sink readings = %d, want %d", len(sink.got), len(wantTimes))
	}
	for i, r := range sink.got {
		if r.TimePeriod != wantTimes[i] || r.UOM != 72 || r.MeterReading != "/mup_0_0" {
			t.Errorf("sink reading %d = %+v, want time %d", i, r, wantTimes[i])
		}
	}
}

func TestAddMirrorReadingSet_Errors(t *testing.T) {
	d := newMirror(t, nil)
	ctx := context.Background()
	set := &resource.MirrorReadingSet{TimePeriod: &resource.DateTimeInterval{Start: 1}}

	tests := []struct {
		name string
		path string
		set  *resource.MirrorReadingSet
		want error
	}{
		{"usage point address", "/mup_0", set, ErrInvalidMirror},
		{"other root", "/edev_0_0", set, ErrInvalidMirror},
		{"missing reading", "/mup_0_4", set, store.ErrNotFound},
		{"missing usage point", "/mup_3_0", set, store.ErrNotFound},
		{"nil set", "/mup_0_0", nil, store.ErrNilResource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.AddMirrorReadingSet(ctx, tt.path, tt.set); !errors.Is(err, tt.want) {
				t.Errorf("AddMirrorReadingSet(%s) error = %v, want %v", tt.path, err, tt.want)
			}
		})
	}
}

func TestCreateMirrorMeterReadings(t *testing.T) {
	sink := &recordingSink{}
	d := newMirror(t, sink)
	ctx := context.Background()

	list := &resource.MirrorMeterReadingList{Items: []*resource.MirrorMeterReading{
		{IdentifiedObject: resource.IdentifiedObject{MRID: "W"}, Reading: &resource.Reading{Value: 10}},
		{IdentifiedObject: resource.IdentifiedObject{MRID: "VAR"}, Reading: &resource.Reading{Value: 20}},
	}}
	res, err := d.CreateMirrorMeterReadings(ctx, "/mup_0", list)
	if err != nil {
		t.Fatalf("CreateMirrorMeterReadings() error = %v", err)
	}
	if !res.Created || res.Location != "/mup_0" {
		t.Errorf("list post = %+v", res)
	}
	if mup := resolveAs[*resource.MirrorUsagePoint](t, d, "/mup_0"); mup.MirrorMeterReadingListLink.All != 2 {
		t.Errorf("reading list link = %+v", mup.MirrorMeterReadingListLink)
	}
	if r := resolveAs[*resource.Reading](t, d, "/upt_0_mr_1_r"); r.Value != 20 {
		t.Errorf("second latest reading = %+v", r)
	}
	if list.Items[0].Href != "" {
		t.Errorf("caller's list modified: %+v", list.Items[0])
	}

	// The same readings again are updates.
	list.Items[0].Reading.Value = 11
	if res, err = d.CreateMirrorMeterReadings(ctx, "/mup_0", list); err != nil || res.Created {
		t.Errorf("repeat list post = %+v, %v", res, err)
	}
	if r := resolveAs[*resource.Reading](t, d, "/upt_0_mr_0_r"); r.Value != 11 {
		t.Errorf("updated latest reading = %+v", r)
	}
	if n := d.Lists.Size("/mup_0"); n != 2 {
		t.Errorf("mirror readings = %d, want 2", n)
	}

	sink.mu.Lock()
	got := len(sink.got)
	sink.mu.Unlock()
	if got != 4 {
		t.Errorf("sink readings = %d, want 4", got)
	}

	errTests := []struct {
		name string
		path string
		list *resource.MirrorMeterReadingList
		want error
	}{
		{"nil list", "/mup_0", nil, ErrInvalidMirror},
		{"empty list", "/mup_0", &resource.MirrorMeterReadingList{}, ErrInvalidMirror},
		{"nil item", "/mup_0", &resource.MirrorMeterReadingList{Items: []*resource.MirrorMeterReading{nil}}, store.ErrNilResource},
		{"reading address", "/mup_0_0", list, ErrInvalidMirror},
		{"missing usage point", "/mup_6", list, store.ErrNotFound},
	}
	for _, tt := range errTests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.CreateMirrorMeterReadings(ctx, tt.path, tt.list); !errors.Is(err, tt.want) {
				t.Errorf("CreateMirrorMeterReadings() error = %v, want %v", err, tt.want)
			}
		})
	}
}

// Run with -race: the lifecycle engine, list readers and operator status
// changes share the list store.
func TestConcurrentTickReadsAndStatusChanges(t *testing.T) {
	d := newTestDirectory(t)
	if err := d.Seed(testConfig()); err != nil {
		t.Fatal(err)
	}
	const controls = 12
	for i := range controls {
		if _, err := d.CreateControl(0, &resource.DERControl{
			Interval: &resource.DateTimeInterval{Start: 1_700_000_000 + int64(i*20), Duration: 120},
		}); err != nil {
			t.Fatal(err)
		}
	}

	engine := lifecycle.NewEngine(d.Lists, nil, nil)
	links := href.Program(0)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for tick := int64(1_700_000_000); tick <= 1_700_000_800; tick += 10 {
			if _, err := engine.Tick(ctx, tick); err != nil {
				t.Errorf("Tick(%d) error = %v", tick, err)
				return
			}
		}
	}()

	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				for _, uri := range []string{links.ActiveControlList, links.ControlList} {
					list, err := d.Lists.GetResourceList(uri, store.Query{Limit: 50})
					if err != nil {
						t.Errorf("GetResourceList(%s) error = %v", uri, err)
						return
					}
					if list.Results != len(list.Items) || list.Results > list.All {
						t.Errorf("%s: results %d, items %d, all %d", uri, list.Results, len(list.Items), list.All)
					}
				}

				seen := make(map[string]bool)
				for _, r := range d.Lists.Values(links.ActiveControlList) {
					if seen[r.GetMRID()] {
						t.Errorf("mRID %s projected twice", r.GetMRID())
					}
					seen[r.GetMRID()] = true
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for key := 1; key <= controls; key += 2 {
			_, err := d.SetControlStatus(0, key, resource.EventCancelled, "operator")
			if err != nil && !errors.Is(err, ErrInvalidStatus) {
				t.Errorf("SetControlStatus(%d) error = %v", key, err)
			}
		}
	}()

	wg.Wait()

	// Once the engine has passed every window nothing is left active.
	if _, err := engine.Tick(ctx, 1_700_001_000); err != nil {
		t.Fatal(err)
	}
	if n := d.Lists.Size(links.ActiveControlList); n != 0 {
		t.Errorf("active controls after the last window = %d, want 0", n)
	}
}

type fakeSubscriber struct {
	topic   string
	handler mqtt.MessageHandler
}

func (f *fakeSubscriber) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.topic = topic
	f.handler = handler
	return nil
}

func TestSubscribeCommands(t *testing.T) {
	d := newTestDirectory(t)
	if err := d.Seed(testConfig()); err != nil {
		t.Fatal(err)
	}

	sub := &fakeSubscriber{}
	if err := d.SubscribeCommands(sub, 1); err != nil {
		t.Fatal(err)
	}
	if sub.topic != "gridlink/command/derp/+/derc/+/status" {
		t.Errorf("topic = %s", sub.topic)
	}

	topic := mqtt.Topics{}.ControlStatusCommand(0, 0)
	if err := sub.handler(topic, []byte(`{"status":"cancelled","reason":"storm"}`)); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	ctl := resolveAs[*resource.DERControl](t, d, "/derp_0_derc_0")
	if ctl.Status() != resource.EventCancelled || ctl.EventStatus.Reason != "storm" {
		t.Errorf("control status = %+v", ctl.EventStatus)
	}

	tests := []struct {
		name    string
		topic   string
		payload string
	}{
		{"bad json", topic, `{`},
		{"unknown status", topic, `{"status":"paused"}`},
		{"bad topic", "gridlink/command/derp/x", `{"status":"cancelled"}`},
		{"missing control", mqtt.Topics{}.ControlStatusCommand(0, 5), `{"status":"cancelled"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := sub.handler(tt.topic, []byte(tt.payload)); err == nil {
				t.Error("handler error = nil")
			}
		})
	}
}

func TestOpenClose_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mem := persist.NewMemoryPersister()

	hub := persist.NewHub()
	hub.Register(mem)
	d := New(hub, Options{Clock: fixedClock(1_700_000_000)})
	if err := d.Seed(testConfig()); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	next := persist.NewHub()
	next.Register(mem)
	restored := New(next, Options{Clock: fixedClock(1_700_000_000)})
	if err := restored.Open(ctx); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if restored.EndDevices.Count() != 2 {
		t.Errorf("restored devices = %d", restored.EndDevices.Count())
	}
	if reg := resolveAs[*resource.Registration](t, restored, "/edev_0_rg"); reg.PIN != 111115 {
		t.Errorf("restored registration = %+v", reg)
	}
	resolveAs[*resource.DERControl](t, restored, "/derp_0_derc_0")

	// Seeding hydrated state adds nothing.
	if err := restored.Seed(testConfig()); err != nil {
		t.Fatal(err)
	}
	if restored.EndDevices.Count() != 2 || restored.Lists.Size("/derp_0_derc") != 1 {
		t.Errorf("re-seed duplicated state")
	}
}
