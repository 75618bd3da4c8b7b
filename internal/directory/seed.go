package directory

import (
	"errors"
	"fmt"

	"github.com/nerrad567/gridlink-core/internal/href"
	"github.com/nerrad567/gridlink-core/internal/infrastructure/config"
	"github.com/nerrad567/gridlink-core/internal/resource"
	"github.com/nerrad567/gridlink-core/internal/store"
)

// Seed loads the configured programs, curves, function set assignments and
// devices into the directory. Elements already present after hydration are
// kept; an already known device only has its identity fields refreshed.
// With storage.cleanse set every store is emptied first.
func (d *Directory) Seed(cfg *config.Config) error {
	if cfg.Storage.Cleanse {
		d.Clear()
		d.logger.Info("directory cleansed before seeding")
	}

	if err := d.ensureLists(); err != nil {
		return err
	}

	programs := make(map[string]int, len(cfg.Programs))
	for i, pc := range cfg.Programs {
		if err := d.seedProgram(i, pc); err != nil {
			return fmt.Errorf("seeding program %d: %w", i, err)
		}
		if pc.MRID != "" {
			programs[pc.MRID] = i
		}
		if pc.Description != "" {
			programs[pc.Description] = i
		}
	}

	for i, cc := range cfg.Curves {
		if err := d.seedCurve(i, cc); err != nil {
			return fmt.Errorf("seeding curve %d: %w", i, err)
		}
	}

	fsas := make(map[string]int, len(cfg.FSAs))
	for i, fc := range cfg.FSAs {
		if err := d.seedFSA(i, fc, programs); err != nil {
			return fmt.Errorf("seeding fsa %d: %w", i, err)
		}
		fsas[fc.Description] = i
	}

	ders := make(map[string]string)
	for i, dc := range cfg.Devices {
		if err := d.seedDevice(i, dc, fsas, ders); err != nil {
			return fmt.Errorf("seeding device %q: %w", dc.ID, err)
		}
	}

	d.logger.Info("directory seeded",
		"devices", d.EndDevices.Count(),
		"programs", d.Lists.Size(href.DERProgramRoot),
		"curves", d.Lists.Size(href.CurveRoot),
		"fsas", d.FSAs.Count(),
	)
	return nil
}

// ensureLists binds the top-level collections so they resolve even when
// empty.
func (d *Directory) ensureLists() error {
	return d.Lists.Update(func(tx *store.ListTx) error {
		for _, b := range []struct {
			uri  string
			kind resource.Kind
		}{
			{href.DERProgramRoot, resource.KindDERProgram},
			{href.CurveRoot, resource.KindDERCurve},
			{href.MirrorRoot, resource.KindMirrorUsagePoint},
			{href.UsagePointRoot, resource.KindUsagePoint},
		} {
			if tx.HasList(b.uri) {
				continue
			}
			if err := tx.InitializeURI(b.uri, b.kind); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *Directory) seedProgram(i int, pc config.ProgramConfig) error {
	if _, err := d.Lists.Get(href.DERProgramRoot, i); err == nil {
		d.logger.Debug("program already present", "href", href.Program(i).Href)
		return nil
	}

	h := href.Program(i)
	mrid := pc.MRID
	if mrid == "" {
		mrid = resource.NewMRID()
	}
	prog := &resource.DERProgram{
		IdentifiedObject: resource.IdentifiedObject{
			Meta:        resource.Meta{Href: h.Href},
			MRID:        mrid,
			Description: pc.Description,
		},
		Primacy:                  pc.Primacy,
		DERControlListLink:       resource.NewListLink(h.ControlList, len(pc.Controls)),
		ActiveDERControlListLink: resource.NewListLink(h.ActiveControlList, 0),
		DERCurveListLink:         resource.NewListLink(h.CurveList, 0),
	}
	if pc.DefaultControl != nil {
		prog.DefaultDERControlLink = resource.NewLink(h.DefaultControl)
	}

	err := d.Lists.Update(func(tx *store.ListTx) error {
		if err := tx.Set(href.DERProgramRoot, i, prog, false); err != nil {
			return err
		}
		for _, b := range []struct {
			uri  string
			kind resource.Kind
		}{
			{h.ControlList, resource.KindDERControl},
			{h.ActiveControlList, resource.KindDERControl},
			{h.CurveList, resource.KindDERCurve},
		} {
			if err := tx.InitializeURI(b.uri, b.kind); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if dc := pc.DefaultControl; dc != nil {
		base, err := resource.ParseControlBase(dc.Base)
		if err != nil {
			return fmt.Errorf("default control: %w", err)
		}
		dflt := &resource.DefaultDERControl{
			IdentifiedObject: resource.IdentifiedObject{MRID: dc.MRID, Description: dc.Description},
			DERControlBase:   base,
		}
		if dflt.MRID == "" {
			dflt.MRID = resource.NewMRID()
		}
		if err := d.Hrefs.Put(h.DefaultControl, dflt); err != nil {
			return err
		}
	}

	for _, cc := range pc.Controls {
		base, err := resource.ParseControlBase(cc.Base)
		if err != nil {
			return fmt.Errorf("control %q: %w", cc.Description, err)
		}
		ctl := &resource.DERControl{
			IdentifiedObject: resource.IdentifiedObject{MRID: cc.MRID, Description: cc.Description},
			Interval:         &resource.DateTimeInterval{Start: cc.Start, Duration: cc.Duration},
			DERControlBase:   base,
		}
		if _, err := d.CreateControl(i, ctl); err != nil {
			return err
		}
	}

	d.logger.Info("program seeded", "href", h.Href, "mrid", mrid, "controls", len(pc.Controls))
	return nil
}

func (d *Directory) seedCurve(i int, cc config.CurveConfig) error {
	if _, err := d.Lists.Get(href.CurveRoot, i); err == nil {
		return nil
	}

	curve := &resource.DERCurve{
		IdentifiedObject: resource.IdentifiedObject{MRID: cc.MRID, Description: cc.Description},
		CreationTime:     d.clock.Now(),
		CurveType:        cc.CurveType,
		CurveData:        make([]resource.CurvePoint, 0, len(cc.Points)),
	}
	if curve.MRID == "" {
		curve.MRID = resource.NewMRID()
	}
	for _, p := range cc.Points {
		curve.CurveData = append(curve.CurveData, resource.CurvePoint{X: p[0], Y: p[1]})
	}
	return d.Lists.Set(href.CurveRoot, i, curve, false)
}

func (d *Directory) seedFSA(i int, fc config.FSAConfig, programs map[string]int) error {
	path := href.FSA(i)
	if _, err := d.FSAs.Fetch(i); err == nil {
		return nil
	}

	// A program may be named by mRID and by description; it is listed once.
	items := make([]resource.Resource, 0, len(fc.Programs))
	listed := make(map[int]bool, len(fc.Programs))
	for _, name := range fc.Programs {
		p, ok := programs[name]
		if !ok {
			return fmt.Errorf("%w: program %q", ErrUnknownReference, name)
		}
		if listed[p] {
			continue
		}
		listed[p] = true
		prog, err := d.Program(p)
		if err != nil {
			return err
		}
		items = append(items, prog)
	}

	list := href.FSAProgramList(path)
	fsa := &resource.FunctionSetAssignments{
		IdentifiedObject: resource.IdentifiedObject{
			Meta:        resource.Meta{Href: path},
			MRID:        resource.NewMRID(),
			Description: fc.Description,
		},
		DERProgramListLink: resource.NewListLink(list, len(items)),
		TimeLink:           resource.NewLink(href.TimeRoot),
	}
	if err := d.FSAs.Put(i, fsa); err != nil {
		return err
	}

	return d.Lists.Update(func(tx *store.ListTx) error {
		if err := tx.InitializeURI(list, resource.KindDERProgram); err != nil {
			return err
		}
		for _, prog := range items {
			key, err := href.ParseProgram(prog.GetHref())
			if err != nil {
				return err
			}
			if err := tx.Set(list, key, prog, true); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *Directory) seedDevice(i int, dc config.DeviceConfig, fsas map[string]int, ders map[string]string) error {
	h := href.EndDevice(i)

	dcap := &resource.DeviceCapability{
		Meta:                     resource.Meta{Href: href.Build(href.DeviceCapabilityRoot, i)},
		PollRate:                 dc.PollRate,
		EndDeviceListLink:        resource.NewListLink(href.EndDeviceRoot, len(d.EndDevices.Keys())),
		DERProgramListLink:       resource.NewListLink(href.DERProgramRoot, d.Lists.Size(href.DERProgramRoot)),
		MirrorUsagePointListLink: resource.NewListLink(href.MirrorRoot, d.Lists.Size(href.MirrorRoot)),
		UsagePointListLink:       resource.NewListLink(href.UsagePointRoot, d.Lists.Size(href.UsagePointRoot)),
		TimeLink:                 resource.NewLink(href.TimeRoot),
	}

	existing, err := d.EndDevices.Fetch(i)
	switch {
	case err == nil:
		updated, err := store.Clone(existing)
		if err != nil {
			return err
		}
		updated.LFDI = dc.LFDI
		updated.SFDI = dc.SFDI
		updated.PostRate = dc.PostRate
		updated.ChangedTime = d.clock.Now()
		if err := d.EndDevices.Put(i, updated); err != nil {
			return err
		}
		d.logger.Warn("device already present, identity refreshed", "href", h.Href, "lfdi", dc.LFDI)
		dcap.EndDeviceListLink.All = d.EndDevices.Count()
		return d.Capabilities.Put(i, dcap)
	case !errors.Is(err, store.ErrNotFound):
		return err
	}

	assigned, current, err := d.assignFSAs(dc, fsas)
	if err != nil {
		return err
	}
	derItems, err := d.deviceDERs(i, dc, current, ders)
	if err != nil {
		return err
	}
	err = d.Lists.Update(func(tx *store.ListTx) error {
		if len(assigned) > 0 {
			if _, err := tx.Append(h.FSAList, store.Batch(resource.KindFunctionSetAssignments, assigned...)); err != nil {
				return err
			}
		}
		_, err := tx.Append(h.DERList, store.Batch(resource.KindDER, derItems...))
		return err
	})
	if err != nil {
		return err
	}

	// The device is stored once, after its lists, carrying their counts.
	dev := &resource.EndDevice{
		LFDI:        dc.LFDI,
		SFDI:        dc.SFDI,
		PostRate:    dc.PostRate,
		Enabled:     true,
		ChangedTime: d.clock.Now(),
	}
	applyDeviceLinks(i, dev)
	dev.DERListLink.All = len(derItems)
	dev.FunctionSetAssignmentsListLink.All = len(assigned)
	if err := d.EndDevices.Put(i, dev); err != nil {
		return err
	}
	if err := d.ensureDeviceResources(i); err != nil {
		return err
	}
	dcap.EndDeviceListLink.All = d.EndDevices.Count()
	if err := d.Capabilities.Put(i, dcap); err != nil {
		return err
	}

	reg := &resource.Registration{
		PIN:                dc.PIN,
		PollRate:           dc.PollRate,
		DateTimeRegistered: d.clock.Now(),
	}
	if err := d.Hrefs.Put(h.Registration, reg); err != nil {
		return err
	}

	d.logger.Info("device seeded", "id", dc.ID, "href", h.Href, "lfdi", dc.LFDI,
		"fsas", len(assigned), "ders", len(derItems))
	return nil
}

// assignFSAs returns the FSAs named by dc, each once, and the program with the lowest
// primacy among them, which becomes the device's current program.
func (d *Directory) assignFSAs(dc config.DeviceConfig, fsas map[string]int) ([]resource.Resource, string, error) {
	var (
		assigned []resource.Resource
		current  string
		primacy  int
	)
	seen := make(map[int]bool, len(dc.FSAs))
	for _, name := range dc.FSAs {
		idx, ok := fsas[name]
		if !ok {
			return nil, "", fmt.Errorf("%w: fsa %q", ErrUnknownReference, name)
		}
		if seen[idx] {
			continue
		}
		seen[idx] = true
		fsa, err := d.FSAs.Fetch(idx)
		if err != nil {
			return nil, "", err
		}
		assigned = append(assigned, fsa)

		for _, r := range d.Lists.Values(href.FSAProgramList(fsa.Href)) {
			prog, err := resource.As[*resource.DERProgram](r)
			if err != nil {
				return nil, "", err
			}
			if current == "" || prog.Primacy < primacy {
				current, primacy = prog.Href, prog.Primacy
			}
		}
	}
	return assigned, current, nil
}

// deviceDERs returns the DERs of a new device. Each configured name maps to
// a global "/der_N", shared between devices naming the same DER; a device
// naming none gets "/edev_N_der_0". A name listed twice is used once.
func (d *Directory) deviceDERs(i int, dc config.DeviceConfig, current string, ders map[string]string) ([]resource.Resource, error) {
	names := uniqueNames(dc.DERs)
	if len(names) == 0 {
		der := newDER(href.Build(href.EndDevice(i).DERList, 0))
		if current != "" {
			der.CurrentDERProgramLink = resource.NewLink(current)
		}
		return []resource.Resource{der}, nil
	}

	out := make([]resource.Resource, 0, len(names))
	for _, name := range names {
		path, ok := ders[name]
		if !ok {
			path = href.Build(href.DERRoot, d.globalDERCount())
			ders[name] = path
		}
		der := newDER(path)
		if current != "" {
			der.CurrentDERProgramLink = resource.NewLink(current)
		}
		if err := d.Hrefs.Put(path, der); err != nil {
			return nil, err
		}
		out = append(out, der)
	}
	return out, nil
}

// globalDERCount returns how many "/der_N" resources exist.
func (d *Directory) globalDERCount() int {
	n := 0
	for _, p := range d.Hrefs.Hrefs(href.DERRoot + href.Separator) {
		if h, err := href.Parse(p); err == nil && h.Count() == 2 && h.Root() == href.DERRoot {
			n++
		}
	}
	return n
}

// uniqueNames returns names without repeats, keeping first occurrences in
// order.
func uniqueNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
