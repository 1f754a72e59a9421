package backend

import (
	"context"
	"encoding/json"
	"net/http"

	"codeberg.org/mutker/fleetinv/internal/inventory"
	"codeberg.org/mutker/fleetinv/internal/logger"
)

// ome speaks the Dell OpenManage Enterprise dialect: token in the session
// response header, opaque @odata.nextLink listing, enveloped detail payloads.
// Several wire names carry the console's own misspellings; they are matched
// verbatim.
type ome struct {
	cfg    Config
	client *http.Client
}

func NewOME(cfg Config) Strategy {
	cfg = cfg.withDefaults()

	return &ome{
		cfg:    cfg,
		client: newHTTPClient(cfg),
	}
}

func (o *ome) Kind() Kind {
	return KindOME
}

func (o *ome) Authenticate(ctx context.Context, target inventory.Target, creds Credentials) (*Session, error) {
	base := baseURLFor(target.Address)

	body := map[string]string{
		"UserName":    creds.Username,
		"Password":    creds.Password,
		"SessionType": "API",
	}

	resp, err := doRequest(ctx, o.client, http.MethodPost, base+"/api/SessionService/Sessions", nil, body)
	if err != nil {
		return nil, errFactory.Wrap(ErrAuthFailed, err)
	}

	token := resp.Header.Get("X-Auth-Token")
	drainClose(resp)

	if token == "" {
		return nil, errFactory.WithMessage(ErrAuthFailed, "session response carried no X-Auth-Token header")
	}

	sessHeader := http.Header{}
	sessHeader.Set("X-Auth-Token", token)

	return &Session{
		kind:    KindOME,
		baseURL: base,
		client:  o.client,
		header:  sessHeader,
		target:  target,
	}, nil
}

type omeDevice struct {
	ID               json.Number `json:"Id"`
	DeviceName       string      `json:"DeviceName"`
	DeviceServiceTag string      `json:"DeviceServiceTag"`
}

func (o *ome) ListEntities(ctx context.Context, sess *Session) ([]inventory.Entity, error) {
	var entities []inventory.Entity

	next := "/api/DeviceService/Devices"
	first := true

	for next != "" {
		var page struct {
			Value    []omeDevice `json:"value"`
			NextLink string      `json:"@odata.nextLink"`
		}

		if err := sess.getJSON(ctx, next, &page); err != nil {
			err = errFactory.Wrap(ErrPageFetch, err)
			if first {
				return nil, err
			}

			return entities, err
		}

		if len(page.Value) == 0 {
			break
		}

		for _, d := range page.Value {
			entities = append(entities, inventory.Entity{
				ID:     d.ID.String(),
				Name:   d.DeviceName,
				Serial: d.DeviceServiceTag,
				Target: sess.target,
			})
		}

		// A console echoing the current link back would loop forever.
		if page.NextLink == next {
			logger.Warn().
				Str("target", sess.target.Address).
				Str("link", next).
				Msg("listing next-link repeats itself; stopping")

			break
		}

		next = page.NextLink
		first = false
	}

	return entities, nil
}

func (o *ome) DetailSpec(category string) (DetailSpec, bool) {
	spec, ok := omeDetails[category]

	return spec, ok
}

func (o *ome) FetchDetail(ctx context.Context, sess *Session, entity inventory.Entity, spec DetailSpec) (any, error) {
	return fetchDetail(ctx, sess, entity, spec)
}

// omeDetails maps categories to their endpoints and extraction paths. Scalar
// categories arrive wrapped in a *_data envelope; inventory categories arrive
// as InventoryInfo collections that fan out to one row per item.
var omeDetails = map[string]DetailSpec{
	inventory.CategoryUptime: {
		PathTemplate: "/api/DeviceService/Devices(%s)/SystemUptime",
		Mapping: inventory.MappingSet{
			Fields: []inventory.FieldMapping{
				{Field: "UptimeSeconds", Path: inventory.PathOf("Uptime_data.systemUpTime")},
			},
		},
	},
	inventory.CategoryPower: {
		PathTemplate: "/api/DeviceService/Devices(%s)/Power",
		Mapping: inventory.MappingSet{
			Fields: []inventory.FieldMapping{
				{Field: "AvgPowerWatts", Path: inventory.PathOf("Power_data.avgPower")},
				{Field: "PeakPowerWatts", Path: inventory.PathOf("Power_data.peakPower")},
				{Field: "InstantPowerWatts", Path: inventory.PathOf("Power_data.instantaneousPower")},
				{Field: "PowerState", Path: inventory.PathOf("Power_data.powerState")},
			},
		},
	},
	inventory.CategoryTemperature: {
		PathTemplate: "/api/DeviceService/Devices(%s)/Temperature",
		Mapping: inventory.MappingSet{
			Fields: []inventory.FieldMapping{
				{Field: "InstantTempCelsius", Path: inventory.PathOf("Temperature_data.instantaneousTemperature")},
				{Field: "AvgTempCelsius", Path: inventory.PathOf("Temperature_data.avgTemperature")},
				{Field: "PeakTempCelsius", Path: inventory.PathOf("Temperature_data.peakTemperature")},
				{Field: "AvgTempTimeEpoch", Path: inventory.PathOf("Temperature_data.avgTemperatureTimeStamp")},
			},
		},
	},
	inventory.CategoryProcessors: {
		PathTemplate: "/api/DeviceService/Devices(%s)/InventoryDetails('serverProcessors')",
		Mapping: inventory.MappingSet{
			FanOut: []inventory.FanOutLevel{
				{
					Path: inventory.PathOf("InventoryInfo"),
					Fields: []inventory.FieldMapping{
						{Field: "CpuBrand", Path: inventory.PathOf("BrandName")},
						{Field: "CpuModel", Path: inventory.PathOf("ModelName")},
						{Field: "MaxSpeedMhz", Path: inventory.PathOf("MaxSpeed")},
						{Field: "CoreCount", Path: inventory.PathOf("NumberOfCores")},
						{Field: "Status", Path: inventory.PathOf("Status")},
					},
				},
			},
		},
	},
	inventory.CategoryNICs: {
		PathTemplate: "/api/DeviceService/Devices(%s)/InventoryDetails('serverNetworkInterfaces')",
		Mapping: inventory.MappingSet{
			FanOut: []inventory.FanOutLevel{
				{
					Path: inventory.PathOf("InventoryInfo"),
					Fields: []inventory.FieldMapping{
						{Field: "NicId", Path: inventory.PathOf("NicId")},
						{Field: "NicVendor", Path: inventory.PathOf("VendorName")},
					},
				},
				{
					Path: inventory.PathOf("Ports"),
					Fields: []inventory.FieldMapping{
						{Field: "PortId", Path: inventory.PathOf("PortsId")},
						{Field: "IpAddress", Path: inventory.PathOf("InitiatorIpAdress")},
						{Field: "SubnetMask", Path: inventory.PathOf("InitiatorSubMask")},
						{Field: "LinkStatus", Path: inventory.PathOf("LinkStatus")},
						{Field: "LinkSpeedMbps", Path: inventory.PathOf("LinkSpeed")},
					},
				},
				{
					Path: inventory.PathOf("Partitions"),
					Fields: []inventory.FieldMapping{
						{Field: "Fqdn", Path: inventory.PathOf("Fqdn")},
						{Field: "MacAddress", Path: inventory.PathOf("CurrentMacAdress")},
						{Field: "VirtualMacAddress", Path: inventory.PathOf("VirtualMacAdress")},
						{Field: "NicMode", Path: inventory.PathOf("NicMode")},
						{Field: "MinBandwidthPct", Path: inventory.PathOf("MinBandwidth")},
						{Field: "MaxBandwidthPct", Path: inventory.PathOf("MaxBandwidth")},
					},
				},
			},
		},
	},
	inventory.CategoryDisks: {
		PathTemplate: "/api/DeviceService/Devices(%s)/InventoryDetails('serverArrayDisks')",
		Mapping: inventory.MappingSet{
			FanOut: []inventory.FanOutLevel{
				{
					Path: inventory.PathOf("InventoryInfo"),
					Fields: []inventory.FieldMapping{
						{Field: "DiskNumber", Path: inventory.PathOf("DiskNumber")},
						{Field: "DiskVendor", Path: inventory.PathOf("VendorName")},
						{Field: "DiskModel", Path: inventory.PathOf("ModelNumber")},
						{Field: "DiskSerialNumber", Path: inventory.PathOf("SerialNumber")},
						{Field: "SizeBytes", Path: inventory.PathOf("Size")},
						{Field: "MediaType", Path: inventory.PathOf("MediaType")},
						{Field: "Status", Path: inventory.PathOf("Status")},
					},
				},
			},
		},
	},
}
