package directory

import (
	"fmt"

	"github.com/nerrad567/gridlink-core/internal/href"
	"github.com/nerrad567/gridlink-core/internal/resource"
	"github.com/nerrad567/gridlink-core/internal/store"
)

// Program returns the DER program at index.
func (d *Directory) Program(index int) (*resource.DERProgram, error) {
	r, err := d.Lists.Get(href.DERProgramRoot, index)
	if err != nil {
		return nil, err
	}
	return resource.As[*resource.DERProgram](r)
}

// controlListOf returns the control list address of p.
func controlListOf(index int, p *resource.DERProgram) string {
	if p.DERControlListLink != nil && p.DERControlListLink.Href != "" {
		return p.DERControlListLink.Href
	}
	return href.Program(index).ControlList
}

// CreateControl schedules ctl under the program at index. The control gets
// the next "/derp_P_derc_C" href, an mRID if it has none, the current time
// as its creation time if unset, and status Scheduled. The lifecycle
// engine activates it when its window opens. in is not modified; a copy
// of the stored control is returned.
func (d *Directory) CreateControl(program int, in *resource.DERControl) (*resource.DERControl, error) {
	if in == nil {
		return nil, store.ErrNilResource
	}
	ctl, err := store.Clone(in)
	if err != nil {
		return nil, err
	}
	if ctl.Interval == nil || ctl.Interval.Duration <= 0 {
		return nil, fmt.Errorf("%w: a positive duration is required", ErrInvalidControl)
	}
	if ctl.Interval.Overflows() {
		return nil, fmt.Errorf("%w: window starting %d for %ds ends past the largest time", ErrInvalidControl, ctl.Interval.Start, ctl.Interval.Duration)
	}

	prog, err := d.Program(program)
	if err != nil {
		return nil, err
	}
	uri := controlListOf(program, prog)

	now := d.clock.Now()
	if ctl.MRID == "" {
		ctl.MRID = resource.NewMRID()
	}
	if ctl.CreationTime == 0 {
		ctl.CreationTime = now
	}
	ctl.Href = ""
	ctl.SetStatus(resource.EventScheduled, now, "")

	err = d.Lists.Update(func(tx *store.ListTx) error {
		if _, _, err := tx.GetByMRID(uri, ctl.MRID); err == nil {
			return fmt.Errorf("%w: control mRID %s in %s", store.ErrAlreadyExists, ctl.MRID, uri)
		}
		_, err := tx.Append(uri, store.Single(ctl))
		return err
	})
	if err != nil {
		return nil, err
	}

	d.logger.Info("control scheduled", "href", ctl.Href, "mrid", ctl.MRID,
		"start", ctl.Interval.Start, "duration", ctl.Interval.Duration)
	return store.Clone(ctl)
}

// SetControlStatus moves a control to a terminal status on behalf of an
// operator, e.g. to cancel it. An Active control leaves its program's
// active list on the next lifecycle tick.
func (d *Directory) SetControlStatus(program, control int, state resource.EventState, reason string) (*resource.DERControl, error) {
	if !state.Terminal() {
		return nil, fmt.Errorf("%w: %s is not an operator status", ErrInvalidStatus, state)
	}

	prog, err := d.Program(program)
	if err != nil {
		return nil, err
	}
	uri := controlListOf(program, prog)

	var updated *resource.DERControl
	err = d.Lists.Update(func(tx *store.ListTx) error {
		r, err := tx.Get(uri, control)
		if err != nil {
			return err
		}
		ctl, err := resource.As[*resource.DERControl](r)
		if err != nil {
			return err
		}
		if current := ctl.Status(); current.Terminal() {
			if current == state {
				updated = ctl
				return nil
			}
			return fmt.Errorf("%w: %s is already %s", ErrInvalidStatus, ctl.Href, current)
		}

		next, err := store.Clone(ctl)
		if err != nil {
			return err
		}
		next.SetStatus(state, d.clock.Now(), reason)
		if err := tx.Set(uri, control, next, true); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.logger.Info("control status set", "href", updated.Href, "status", state.String(), "reason", reason)
	return store.Clone(updated)
}
