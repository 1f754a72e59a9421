package backend

import (
	"context"
	"fmt"
	"net/http"

	"codeberg.org/mutker/fleetinv/internal/inventory"
	"codeberg.org/mutker/fleetinv/internal/logger"
)

const oneViewAPIVersion = "800"

// oneView speaks the HP OneView REST dialect: token in the login response
// body, offset+count listing, utilization metrics addressed by sample index.
type oneView struct {
	cfg    Config
	client *http.Client
}

func NewOneView(cfg Config) Strategy {
	cfg = cfg.withDefaults()

	return &oneView{
		cfg:    cfg,
		client: newHTTPClient(cfg),
	}
}

func (o *oneView) Kind() Kind {
	return KindOneView
}

func (o *oneView) Authenticate(ctx context.Context, target inventory.Target, creds Credentials) (*Session, error) {
	base := baseURLFor(target.Address)
	header := http.Header{}
	header.Set("X-API-Version", oneViewAPIVersion)

	body := map[string]string{
		"userName": creds.Username,
		"password": creds.Password,
	}

	resp, err := doRequest(ctx, o.client, http.MethodPost, base+"/rest/login-sessions", header, body)
	if err != nil {
		return nil, errFactory.Wrap(ErrAuthFailed, err)
	}

	var login struct {
		SessionID string `json:"sessionID"`
	}

	if err := decodeJSON(resp, &login); err != nil {
		return nil, errFactory.Wrap(ErrAuthFailed, err)
	}

	if login.SessionID == "" {
		return nil, errFactory.WithMessage(ErrAuthFailed, "login response carried no sessionID")
	}

	sessHeader := http.Header{}
	sessHeader.Set("Auth", login.SessionID)
	sessHeader.Set("X-API-Version", oneViewAPIVersion)

	return &Session{
		kind:    KindOneView,
		baseURL: base,
		client:  o.client,
		header:  sessHeader,
		target:  target,
	}, nil
}

type oneViewMember struct {
	UUID         string `json:"uuid"`
	Name         string `json:"name"`
	SerialNumber string `json:"serialNumber"`
}

func (o *oneView) ListEntities(ctx context.Context, sess *Session) ([]inventory.Entity, error) {
	var entities []inventory.Entity

	start := 0

	for {
		var page struct {
			Total   int             `json:"total"`
			Members []oneViewMember `json:"members"`
		}

		path := fmt.Sprintf("/rest/server-hardware?start=%d&count=%d", start, o.cfg.PageSize)
		if err := sess.getJSON(ctx, path, &page); err != nil {
			err = errFactory.Wrap(ErrPageFetch, err)
			if start == 0 {
				return nil, err
			}

			// Later pages: keep what we have, the caller records the
			// truncation.
			return entities, err
		}

		if len(page.Members) == 0 {
			break
		}

		for _, m := range page.Members {
			entities = append(entities, inventory.Entity{
				ID:     m.UUID,
				Name:   m.Name,
				Serial: m.SerialNumber,
				Target: sess.target,
			})
		}

		start += len(page.Members)
		if start >= page.Total {
			break
		}

		logger.Debug().
			Str("target", sess.target.Address).
			Int("start", start).
			Int("total", page.Total).
			Msg("fetching next listing page")
	}

	return entities, nil
}

func (o *oneView) DetailSpec(category string) (DetailSpec, bool) {
	spec, ok := oneViewDetails[category]

	return spec, ok
}

func (o *oneView) FetchDetail(ctx context.Context, sess *Session, entity inventory.Entity, spec DetailSpec) (any, error) {
	return fetchDetail(ctx, sess, entity, spec)
}

// oneViewDetails maps categories to their endpoints and extraction paths.
// Utilization metrics come back in the order the fields parameter requests
// them, each as [epochMillis, value] sample pairs, hence the index tokens.
// Uptime and disk inventory are not exposed by this console.
var oneViewDetails = map[string]DetailSpec{
	inventory.CategoryProcessors: {
		PathTemplate: "/rest/server-hardware/%s",
		Mapping: inventory.MappingSet{
			Fields: []inventory.FieldMapping{
				{Field: "CpuModel", Path: inventory.PathOf("processorType")},
				{Field: "MaxSpeedMhz", Path: inventory.PathOf("processorSpeedMhz")},
				{Field: "CoreCount", Path: inventory.PathOf("processorCoreCount")},
				{Field: "Status", Path: inventory.PathOf("status")},
			},
		},
	},
	inventory.CategoryPower: {
		PathTemplate: "/rest/server-hardware/%s/utilization?fields=AveragePower,PeakPower",
		Mapping: inventory.MappingSet{
			Fields: []inventory.FieldMapping{
				{Field: "AvgPowerWatts", Path: inventory.PathOf("metricList.0.metricSamples.0.1")},
				{Field: "PeakPowerWatts", Path: inventory.PathOf("metricList.1.metricSamples.0.1")},
			},
		},
	},
	inventory.CategoryTemperature: {
		PathTemplate: "/rest/server-hardware/%s/utilization?fields=AmbientTemperature",
		Mapping: inventory.MappingSet{
			Fields: []inventory.FieldMapping{
				{Field: "InstantTempCelsius", Path: inventory.PathOf("metricList.0.metricSamples.0.1")},
			},
		},
	},
	inventory.CategoryNICs: {
		PathTemplate: "/rest/server-hardware/%s",
		Mapping: inventory.MappingSet{
			FanOut: []inventory.FanOutLevel{
				{
					Path: inventory.PathOf("portMap.deviceSlots"),
					Fields: []inventory.FieldMapping{
						{Field: "NicId", Path: inventory.PathOf("deviceNumber")},
						{Field: "NicVendor", Path: inventory.PathOf("deviceName")},
					},
				},
				{
					Path: inventory.PathOf("physicalPorts"),
					Fields: []inventory.FieldMapping{
						{Field: "PortId", Path: inventory.PathOf("portNumber")},
						{Field: "MacAddress", Path: inventory.PathOf("mac")},
					},
				},
			},
		},
	},
}
