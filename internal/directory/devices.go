package directory

import (
	"errors"
	"fmt"

	"github.com/nerrad567/gridlink-core/internal/href"
	"github.com/nerrad567/gridlink-core/internal/resource"
	"github.com/nerrad567/gridlink-core/internal/store"
)

// writable maps the trailing segment of a client-writable singleton href
// to the kind it must hold.
var writable = map[string]resource.Kind{
	href.Configuration:     resource.KindConfiguration,
	href.DeviceInformation: resource.KindDeviceInformation,
	href.DeviceStatus:      resource.KindDeviceStatus,
	href.PowerStatus:       resource.KindPowerStatus,
	href.DERSettings:       resource.KindDERSettings,
	href.DERStatus:         resource.KindDERStatus,
	href.DERCapability:     resource.KindDERCapability,
	href.DERAvailability:   resource.KindDERAvailability,
}

// derSubresources are the writable singletons below a DER. Reading one
// that was never written yields an empty resource.
var derSubresources = map[string]bool{
	href.DERSettings:     true,
	href.DERStatus:       true,
	href.DERCapability:   true,
	href.DERAvailability: true,
}

// AddEndDevice stores a copy of dev under the next end device key, with
// every link filled in, and then creates the resources those links point
// at: configuration, device information, device status, power status and
// empty DER and FSA lists. dev is not modified.
func (d *Directory) AddEndDevice(dev *resource.EndDevice) (*resource.EndDevice, error) {
	if dev == nil {
		return nil, store.ErrNilResource
	}
	linked, err := store.Clone(dev)
	if err != nil {
		return nil, err
	}
	if linked.ChangedTime == 0 {
		linked.ChangedTime = d.clock.Now()
	}

	key, err := d.EndDevices.AddFunc(linked, applyDeviceLinks)
	if err != nil {
		return nil, err
	}
	if err := d.ensureDeviceResources(key); err != nil {
		return nil, err
	}

	d.logger.Info("end device added", "href", linked.Href, "lfdi", linked.LFDI)
	return store.Clone(linked)
}

// applyDeviceLinks fills every link of dev for the device at key. dev must
// not be shared yet.
func applyDeviceLinks(key int, dev *resource.EndDevice) {
	h := href.EndDevice(key)
	dev.Href = h.Href
	dev.ConfigurationLink = resource.NewLink(h.Configuration)
	dev.DeviceInformationLink = resource.NewLink(h.DeviceInformation)
	dev.DeviceStatusLink = resource.NewLink(h.DeviceStatus)
	dev.PowerStatusLink = resource.NewLink(h.PowerStatus)
	dev.RegistrationLink = resource.NewLink(h.Registration)
	dev.LogEventListLink = resource.NewListLink(h.LogEventList, 0)
	dev.MirrorUsagePointListLink = resource.NewListLink(href.MirrorRoot, 0)
	dev.UsagePointListLink = resource.NewListLink(href.UsagePointRoot, 0)
	if dev.DERListLink == nil {
		dev.DERListLink = resource.NewListLink(h.DERList, 0)
	}
	if dev.FunctionSetAssignmentsListLink == nil {
		dev.FunctionSetAssignmentsListLink = resource.NewListLink(h.FSAList, 0)
	}
}

// ensureDeviceResources creates the linked singletons and lists of the
// device at key that do not exist yet.
func (d *Directory) ensureDeviceResources(key int) error {
	h := href.EndDevice(key)

	singletons := []struct {
		path string
		r    resource.Resource
	}{
		{h.Configuration, &resource.Configuration{}},
		{h.DeviceInformation, &resource.DeviceInformation{}},
		{h.DeviceStatus, &resource.DeviceStatus{}},
		{h.PowerStatus, &resource.PowerStatus{}},
	}
	for _, s := range singletons {
		if _, err := d.Hrefs.Get(s.path); err == nil {
			continue
		}
		if err := d.Hrefs.Put(s.path, s.r); err != nil {
			return fmt.Errorf("creating %s: %w", s.path, err)
		}
	}

	return d.Lists.Update(func(tx *store.ListTx) error {
		for _, b := range []struct {
			uri  string
			kind resource.Kind
		}{
			{h.DERList, resource.KindDER},
			{h.FSAList, resource.KindFunctionSetAssignments},
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

// newDER returns a DER at path linked to its subordinate resources.
func newDER(path string) *resource.DER {
	h := href.DER(path)
	return &resource.DER{
		Meta:                resource.Meta{Href: h.Href},
		DERSettingsLink:     resource.NewLink(h.Settings),
		DERStatusLink:       resource.NewLink(h.Status),
		DERCapabilityLink:   resource.NewLink(h.Capability),
		DERAvailabilityLink: resource.NewLink(h.Availability),
	}
}

// Put stores a client-written singleton such as "/edev_0_ds" or
// "/der_3_ders". Only device status style resources are writable; the
// owning device or DER must exist.
func (d *Directory) Put(path string, r resource.Resource) error {
	if r == nil {
		return store.ErrNilResource
	}
	h, err := href.Parse(path)
	if err != nil {
		return err
	}
	if h.HasIndex() {
		return fmt.Errorf("%w: %s", ErrNotWritable, path)
	}
	kind, ok := writable[h.At(h.Count()-1)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotWritable, path)
	}
	if r.Kind() != kind {
		return fmt.Errorf("%w: %s holds %s, got %s", store.ErrTypeMismatch, path, kind, r.Kind())
	}

	owner := h.Join(h.Count() - 1)
	if _, err := d.Resolve(owner, store.Query{Limit: 1}); err != nil {
		return fmt.Errorf("owner of %s: %w", path, err)
	}
	return d.Hrefs.Put(path, r)
}

// singleton returns the resource at path from the href index. DER
// subresources that were never written read as empty resources.
func (d *Directory) singleton(h href.Href) (resource.Resource, error) {
	path := h.String()
	r, err := d.Hrefs.Get(path)
	if err == nil {
		return r, nil
	}
	leaf := h.At(h.Count() - 1)
	if !errors.Is(err, store.ErrNotFound) || !derSubresources[leaf] {
		return nil, err
	}

	// Only for a DER that exists.
	if _, ownerErr := d.Resolve(h.Join(h.Count()-1), store.Query{Limit: 1}); ownerErr != nil {
		return nil, err
	}
	empty, kindErr := resource.New(writable[leaf])
	if kindErr != nil {
		return nil, kindErr
	}
	empty.SetHref(path)
	return empty, nil
}
