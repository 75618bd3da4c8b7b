package directory

import (
	"context"
	"fmt"
	"slices"

	"github.com/nerrad567/gridlink-core/internal/href"
	"github.com/nerrad567/gridlink-core/internal/observability"
	"github.com/nerrad567/gridlink-core/internal/resource"
	"github.com/nerrad567/gridlink-core/internal/store"
	"github.com/nerrad567/gridlink-core/internal/telemetry"
)

// Segments below a usage point.
const (
	meterReadingList = "mr"
	readingSetList   = "rs"
	readingLeaf      = "r"
	readingTypeLeaf  = "rt"
)

// MirrorResult reports where a posted mirror resource was stored and
// whether it was new (201) or an update of an existing one (204).
type MirrorResult struct {
	Location string
	Created  bool
}

// nextKey returns one past the highest key in keys.
func nextKey(keys []int) int {
	if len(keys) == 0 {
		return 0
	}
	return slices.Max(keys) + 1
}

// CreateMirrorUsagePoint stores mup in "/mup". A usage point whose mRID is
// already known replaces the stored one in place; otherwise it is stored
// at "/mup_N", where N is taken from its href if it carries one and is the
// next free key if not. A matching UsagePoint is kept at "/upt_N". The
// caller's value is not modified.
func (d *Directory) CreateMirrorUsagePoint(in *resource.MirrorUsagePoint) (MirrorResult, error) {
	if in == nil {
		return MirrorResult{}, store.ErrNilResource
	}
	mup, err := store.Clone(in)
	if err != nil {
		return MirrorResult{}, err
	}
	if mup.MRID == "" {
		mup.MRID = resource.NewMRID()
	}
	if mup.PostRate == 0 {
		mup.PostRate = d.mirrorPostRate
	}

	var result MirrorResult
	err = d.Lists.Update(func(tx *store.ListTx) error {
		key, existing, err := tx.GetByMRID(href.MirrorRoot, mup.MRID)
		switch {
		case err == nil:
			prev, asErr := resource.As[*resource.MirrorUsagePoint](existing)
			if asErr != nil {
				return asErr
			}
			mup.Href = prev.Href
			mup.MirrorMeterReadingListLink = prev.MirrorMeterReadingListLink
			mup.UsagePointLink = prev.UsagePointLink
		case mup.Href != "":
			if key, err = href.MirrorKey(mup.Href); err != nil {
				return err
			}
			mup.Href = href.MirrorUsagePoint(key)
			result.Created = true
		default:
			key = nextKey(tx.Keys(href.MirrorRoot))
			mup.Href = href.MirrorUsagePoint(key)
			result.Created = true
		}

		if result.Created {
			mup.MirrorMeterReadingListLink = resource.NewListLink(mup.Href, 0)
			mup.UsagePointLink = resource.NewLink(href.Build(href.UsagePointRoot, key))
			if err := tx.Set(href.MirrorRoot, key, mup, false); err != nil {
				return err
			}
			if err := tx.InitializeURI(mup.Href, resource.KindMirrorMeterReading); err != nil {
				return err
			}
		} else if err := tx.Set(href.MirrorRoot, key, mup, true); err != nil {
			return err
		}

		result.Location = mup.Href
		return upsertUsagePoint(tx, key, mup)
	})
	if err != nil {
		return MirrorResult{}, err
	}

	d.logger.Info("mirror usage point stored", "href", result.Location, "mrid", mup.MRID, "created", result.Created)
	return result, nil
}

// upsertUsagePoint keeps "/upt_N" in step with the mirror usage point at N.
func upsertUsagePoint(tx *store.ListTx, key int, mup *resource.MirrorUsagePoint) error {
	uptHref := href.Build(href.UsagePointRoot, key)
	upt := &resource.UsagePoint{
		IdentifiedObject: resource.IdentifiedObject{
			Meta:        resource.Meta{Href: uptHref},
			MRID:        mup.MRID,
			Description: mup.Description,
		},
		DeviceLFDI:           mup.DeviceLFDI,
		RoleFlags:            mup.RoleFlags,
		ServiceCategoryKind:  mup.ServiceCategoryKind,
		Status:               mup.Status,
		MeterReadingListLink: resource.NewListLink(href.Join(uptHref, meterReadingList), 0),
	}
	if err := tx.Set(href.UsagePointRoot, key, upt, true); err != nil {
		return err
	}
	if mrList := upt.MeterReadingListLink.Href; !tx.HasList(mrList) {
		return tx.InitializeURI(mrList, resource.KindMeterReading)
	}
	return nil
}

// CreateMirrorMeterReading stores mmr in the reading list of the mirror
// usage point at mupHref, keyed by the trailing segment of its href. A
// reading whose mRID is already known there is replaced in place, keeping
// its reading type when the update carries none. Reading sets it carries
// are appended under "/upt_N_mr_K_rs". Every posted value is forwarded to
// the telemetry sink. The caller's value is not modified.
func (d *Directory) CreateMirrorMeterReading(ctx context.Context, mupHref string, mmr *resource.MirrorMeterReading) (MirrorResult, error) {
	if mmr == nil {
		return MirrorResult{}, store.ErrNilResource
	}
	results, err := d.storeMirrorReadings(ctx, mupHref, []*resource.MirrorMeterReading{mmr})
	if err != nil {
		return MirrorResult{}, err
	}
	return results[0], nil
}

// CreateMirrorMeterReadings stores every reading of list under the mirror
// usage point at mupHref in one transaction, each as CreateMirrorMeterReading
// would. The result points at mupHref and is Created when any reading was
// new. Readings ahead of one that fails stay stored.
func (d *Directory) CreateMirrorMeterReadings(ctx context.Context, mupHref string, list *resource.MirrorMeterReadingList) (MirrorResult, error) {
	if list == nil || len(list.Items) == 0 {
		return MirrorResult{}, fmt.Errorf("%w: empty MirrorMeterReadingList", ErrInvalidMirror)
	}
	results, err := d.storeMirrorReadings(ctx, mupHref, list.Items)
	if err != nil {
		return MirrorResult{}, err
	}
	out := MirrorResult{Location: mupHref}
	for _, r := range results {
		out.Created = out.Created || r.Created
	}
	return out, nil
}

// AddMirrorReadingSet appends set to the mirror meter reading at mmrHref
// ("/mup_N_K"). The set is stored at "/upt_N_mr_K_rs_J" with its readings
// in "/upt_N_mr_K_rs_J_r"; the result's Location is the set's href.
func (d *Directory) AddMirrorReadingSet(ctx context.Context, mmrHref string, set *resource.MirrorReadingSet) (MirrorResult, error) {
	if set == nil {
		return MirrorResult{}, store.ErrNilResource
	}
	h, err := href.Parse(mmrHref)
	if err != nil {
		return MirrorResult{}, err
	}
	if h.Root() != href.MirrorRoot || h.Count() != 3 {
		return MirrorResult{}, fmt.Errorf("%w: reading sets are posted to /mup_N_K, not %s", ErrInvalidMirror, mmrHref)
	}
	mupKey, _ := h.Index(1) //nolint:errcheck // Count and Parse guarantee an index
	key, err := href.MirrorKey(mmrHref)
	if err != nil {
		return MirrorResult{}, err
	}
	posted := set.Copy()

	var (
		mup    *resource.MirrorUsagePoint
		mmr    *resource.MirrorMeterReading
		stored []*resource.ReadingSet
	)
	err = d.Lists.Update(func(tx *store.ListTx) error {
		r, err := tx.Get(href.MirrorRoot, mupKey)
		if err != nil {
			return err
		}
		if mup, err = resource.As[*resource.MirrorUsagePoint](r); err != nil {
			return err
		}
		if r, err = tx.Get(h.Join(2), key); err != nil {
			return err
		}
		if mmr, err = resource.As[*resource.MirrorMeterReading](r); err != nil {
			return err
		}
		if stored, err = appendReadingSets(tx, meterReadingHref(mupKey, key), []*resource.MirrorReadingSet{posted}); err != nil {
			return err
		}
		return upsertMeterReading(tx, mupKey, key, mmr)
	})
	if err != nil {
		return MirrorResult{}, err
	}

	d.recordSets(ctx, mup, mmr, []*resource.MirrorReadingSet{posted})
	return MirrorResult{Location: stored[0].Href, Created: true}, nil
}

func mirrorUsagePointKey(mupHref string) (int, error) {
	h, err := href.Parse(mupHref)
	if err != nil {
		return 0, err
	}
	if h.Root() != href.MirrorRoot || h.Count() != 2 {
		return 0, fmt.Errorf("%w: readings are posted to /mup_N, not %s", ErrInvalidMirror, mupHref)
	}
	key, _ := h.Index(1) //nolint:errcheck // Count and Parse guarantee an index
	return key, nil
}

// storeMirrorReadings stores copies of items under the usage point at
// mupHref in one transaction and then hands their values to the sink.
func (d *Directory) storeMirrorReadings(ctx context.Context, mupHref string, items []*resource.MirrorMeterReading) ([]MirrorResult, error) {
	mupKey, err := mirrorUsagePointKey(mupHref)
	if err != nil {
		return nil, err
	}

	now := d.clock.Now()
	posted := make([]*resource.MirrorMeterReading, len(items))
	for i, in := range items {
		if in == nil {
			return nil, store.ErrNilResource
		}
		mmr, err := store.Clone(in)
		if err != nil {
			return nil, err
		}
		if mmr.MRID == "" {
			mmr.MRID = resource.NewMRID()
		}
		if mmr.LastUpdateTime == 0 {
			mmr.LastUpdateTime = now
		}
		posted[i] = mmr
	}

	var (
		results = make([]MirrorResult, len(posted))
		mup     *resource.MirrorUsagePoint
	)
	err = d.Lists.Update(func(tx *store.ListTx) error {
		r, err := tx.Get(href.MirrorRoot, mupKey)
		if err != nil {
			return err
		}
		if mup, err = resource.As[*resource.MirrorUsagePoint](r); err != nil {
			return err
		}

		created := false
		for i, mmr := range posted {
			if results[i], err = storeMirrorReading(tx, mupKey, mmr); err != nil {
				return err
			}
			created = created || results[i].Created
		}
		if !created {
			return nil
		}

		next, err := store.Clone(mup)
		if err != nil {
			return err
		}
		next.MirrorMeterReadingListLink = resource.NewListLink(mupHref, len(tx.Keys(mupHref)))
		return tx.Set(href.MirrorRoot, mupKey, next, true)
	})
	if err != nil {
		return nil, err
	}

	for i, mmr := range posted {
		observability.RecordMirrorReading(results[i].Created)
		if mmr.Reading != nil {
			d.recordLatest(ctx, mup, mmr)
		}
		d.recordSets(ctx, mup, mmr, mmr.ReadingSets)
	}
	return results, nil
}

// storeMirrorReading stores mmr without its reading sets and appends the
// sets to the usage point view.
func storeMirrorReading(tx *store.ListTx, mupKey int, mmr *resource.MirrorMeterReading) (MirrorResult, error) {
	mupHref := href.MirrorUsagePoint(mupKey)

	var result MirrorResult
	key, existing, err := tx.GetByMRID(mupHref, mmr.MRID)
	switch {
	case err == nil:
		prev, asErr := resource.As[*resource.MirrorMeterReading](existing)
		if asErr != nil {
			return result, asErr
		}
		mmr.Href = prev.Href
		if mmr.ReadingType == nil {
			mmr.ReadingType = prev.ReadingType
		}
	case mmr.Href != "" && href.IsMirrorList(mmr.Href):
		if key, err = href.MirrorKey(mmr.Href); err != nil {
			return result, err
		}
		mmr.Href = href.MirrorMeterReading(mupKey, key)
		result.Created = true
	default:
		key = nextKey(tx.Keys(mupHref))
		mmr.Href = href.MirrorMeterReading(mupKey, key)
		result.Created = true
	}

	kept := *mmr
	kept.ReadingSets = nil
	if err := tx.Set(mupHref, key, &kept, !result.Created); err != nil {
		return result, err
	}
	result.Location = mmr.Href

	if _, err := appendReadingSets(tx, meterReadingHref(mupKey, key), mmr.ReadingSets); err != nil {
		return result, err
	}
	return result, upsertMeterReading(tx, mupKey, key, &kept)
}

// meterReadingHref returns "/upt_{mup}_mr_{key}".
func meterReadingHref(mupKey, key int) string {
	return href.Build(href.Join(href.Build(href.UsagePointRoot, mupKey), meterReadingList), key)
}

// appendReadingSets stores each set at the end of "{mrHref}_rs" and its
// readings in "{set}_r".
func appendReadingSets(tx *store.ListTx, mrHref string, sets []*resource.MirrorReadingSet) ([]*resource.ReadingSet, error) {
	rsList := href.Join(mrHref, readingSetList)
	out := make([]*resource.ReadingSet, 0, len(sets))
	for _, set := range sets {
		if set == nil {
			return out, store.ErrNilResource
		}
		rs := &resource.ReadingSet{
			IdentifiedObject: resource.IdentifiedObject{
				MRID:        set.MRID,
				Description: set.Description,
				Version:     set.Version,
			},
			TimePeriod: set.TimePeriod,
		}
		if rs.MRID == "" {
			rs.MRID = resource.NewMRID()
		}
		if _, err := tx.Append(rsList, store.Single(rs)); err != nil {
			return out, err
		}

		readings := make([]resource.Resource, 0, len(set.Readings))
		for _, r := range set.Readings {
			if r == nil {
				return out, store.ErrNilResource
			}
			c := *r
			c.Href = ""
			readings = append(readings, &c)
		}
		rList := href.Join(rs.Href, readingLeaf)
		if _, err := tx.Append(rList, store.Batch(resource.KindReading, readings...)); err != nil {
			return out, err
		}
		rs.ReadingListLink = resource.NewListLink(rList, len(readings))
		out = append(out, rs)
	}
	return out, nil
}

// upsertMeterReading mirrors mmr into the usage point view: a MeterReading
// at "/upt_N_mr_K" linking its latest Reading, ReadingType and reading sets.
func upsertMeterReading(tx *store.ListTx, mupKey, key int, mmr *resource.MirrorMeterReading) error {
	mrHref := meterReadingHref(mupKey, key)
	mr := &resource.MeterReading{
		IdentifiedObject: resource.IdentifiedObject{
			Meta:        resource.Meta{Href: mrHref},
			MRID:        mmr.MRID,
			Description: mmr.Description,
		},
		ReadingLink:     resource.NewLink(href.Join(mrHref, readingLeaf)),
		ReadingTypeLink: resource.NewLink(href.Join(mrHref, readingTypeLeaf)),
	}
	if rsList := href.Join(mrHref, readingSetList); tx.HasList(rsList) {
		mr.ReadingSetListLink = resource.NewListLink(rsList, len(tx.Keys(rsList)))
	}
	return tx.Set(href.Join(href.Build(href.UsagePointRoot, mupKey), meterReadingList), key, mr, true)
}

// recordLatest keeps the latest Reading addressable under the usage point
// and hands it to the telemetry sink.
func (d *Directory) recordLatest(ctx context.Context, mup *resource.MirrorUsagePoint, mmr *resource.MirrorMeterReading) {
	mupKey, _ := mirrorUsagePointKey(mup.Href) //nolint:errcheck // stored usage points carry a valid href
	key, _ := href.MirrorKey(mmr.Href)        //nolint:errcheck // built by MirrorMeterReading
	latest := href.Join(meterReadingHref(mupKey, key), readingLeaf)

	reading, err := store.Clone(mmr.Reading)
	if err == nil {
		err = d.Hrefs.Put(latest, reading)
	}
	if err != nil {
		d.logger.Warn("latest reading not stored", "href", mmr.Href, "error", err)
	}
	d.emit(ctx, mup, mmr, mmr.Reading, mmr.LastUpdateTime)
}

// recordSets hands every reading of sets to the telemetry sink. A reading
// without its own time period is stamped with its set's start.
func (d *Directory) recordSets(ctx context.Context, mup *resource.MirrorUsagePoint, mmr *resource.MirrorMeterReading, sets []*resource.MirrorReadingSet) {
	for _, set := range sets {
		at := mmr.LastUpdateTime
		if set.TimePeriod != nil {
			at = set.TimePeriod.Start
		}
		for _, r := range set.Readings {
			d.emit(ctx, mup, mmr, r, at)
		}
	}
}

func (d *Directory) emit(ctx context.Context, mup *resource.MirrorUsagePoint, mmr *resource.MirrorMeterReading, reading *resource.Reading, fallback int64) {
	r := telemetry.Reading{
		MirrorUsagePoint: mup.Href,
		MeterReading:     mmr.Href,
		ReadingMRID:      mmr.MRID,
		Description:      mmr.Description,
		Value:            reading.Value,
		TimePeriod:       fallback,
	}
	if mmr.ReadingType != nil {
		r.PowerOfTenMult = mmr.ReadingType.PowerOfTenMultiplier
		r.UOM = mmr.ReadingType.UOM
	}
	if tp := reading.TimePeriod; tp != nil {
		r.TimePeriod = tp.Start
	}
	if err := d.sink.Record(ctx, r); err != nil {
		d.logger.Warn("reading not recorded", "href", mmr.Href, "error", err)
	}
}

// readingType returns the mirror meter reading behind a
// "/upt_N_mr_K_rt" address.
func (d *Directory) readingType(mupKey, key int) (*resource.ReadingType, error) {
	r, err := d.Lists.Get(href.MirrorUsagePoint(mupKey), key)
	if err != nil {
		return nil, err
	}
	mmr, err := resource.As[*resource.MirrorMeterReading](r)
	if err != nil {
		return nil, err
	}
	if mmr.ReadingType == nil {
		return nil, fmt.Errorf("%w: %s has no reading type", store.ErrNotFound, mmr.Href)
	}
	return mmr.ReadingType, nil
}
