// Package catalog discovers collection targets from the central hardware
// catalog, a GraphQL endpoint that maps application IDs to the servers
// registered under them. Paging is fixed rather than cursor driven: pages
// 1..MaxPages are requested and pages that fail or come back empty are
// skipped, so a flaky catalog still yields a partial target list.
package catalog

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"

	"codeberg.org/mutker/fleetinv/internal/errors"
	"codeberg.org/mutker/fleetinv/internal/inventory"
	"codeberg.org/mutker/fleetinv/internal/logger"
)

const resolveWorkers = 16

var errFactory = errors.New()

// hardwareQuery selects the per-application hardware registrations. The
// schema's field names are kept exactly as the catalog publishes them,
// including the truncated applicationXGenericHardwar collection.
const hardwareQuery = `query GetGenericHardware($page: Int!, $size: Int!, $applicationId: String!) {
  applicationXGenericHardwar(
    page: $page
    size: $size
    filter: { applicationId: { equals: $applicationId } }
  ) {
    applicationId
    driftId
    HardwareInfo {
      Idresource
      serverName
      serial
    }
  }
}`

// Server is one catalog registration. IP is filled in by name resolution
// when enabled and left empty when the name does not resolve; an entry
// without an IP is still a valid collection target.
type Server struct {
	ResourceID string
	Name       string
	Serial     string
	AppID      string
	IP         string
}

// AppName returns the display name derived from the application ID.
func (s Server) AppName() string {
	return "App-" + s.AppID
}

type graphqlSource struct {
	cfg    Config
	client *http.Client
	log    logger.Logger
}

func NewSource(cfg Config, log logger.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	client := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.InsecureTLS, //nolint:gosec // opt-in for self-signed consoles
				MinVersion:         tls.VersionTLS12,
			},
		},
	}

	return &graphqlSource{cfg: cfg, client: client, log: log}, nil
}

func (s *graphqlSource) Servers(ctx context.Context) ([]Server, error) {
	var all []Server
	failedPages := 0

	for page := 1; page <= s.cfg.MaxPages; page++ {
		servers, err := s.fetchPage(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errFactory.Wrap(ErrQueryFailed, ctx.Err())
			}
			failedPages++
			s.log.Warn().Err(err).Int("page", page).Msg("catalog page failed")

			continue
		}
		if len(servers) == 0 {
			s.log.Debug().Int("page", page).Msg("catalog page empty")

			continue
		}
		all = append(all, servers...)
	}

	if len(all) == 0 {
		return nil, errFactory.WithData(ErrNoServers, map[string]any{
			"application_id": s.cfg.ApplicationID,
			"failed_pages":   failedPages,
		})
	}

	unique := inventory.Dedupe(all, func(srv Server) string { return srv.Name })
	if dropped := len(all) - len(unique); dropped > 0 {
		s.log.Info().Int("dropped", dropped).Msg("dropped duplicate catalog entries")
	}

	if s.cfg.ResolveNames {
		s.resolveAddresses(ctx, unique)
	}

	s.log.Info().
		Int("servers", len(unique)).
		Str("application_id", s.cfg.ApplicationID).
		Msg("catalog discovery complete")

	return unique, nil
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type gqlResponse struct {
	Data struct {
		Registrations []gqlRegistration `json:"applicationXGenericHardwar"`
	} `json:"data"`
	Errors []gqlError `json:"errors"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlRegistration struct {
	ApplicationID string `json:"applicationId"`
	HardwareInfo  *struct {
		ResourceID json.Number `json:"Idresource"`
		ServerName string      `json:"serverName"`
		Serial     string      `json:"serial"`
	} `json:"HardwareInfo"`
}

func (s *graphqlSource) fetchPage(ctx context.Context, page int) ([]Server, error) {
	body, err := json.Marshal(gqlRequest{
		Query: hardwareQuery,
		Variables: map[string]any{
			"page":          page,
			"size":          s.cfg.PageSize,
			"applicationId": s.cfg.ApplicationID,
		},
	})
	if err != nil {
		return nil, errFactory.Wrap(ErrQueryFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, errFactory.Wrap(ErrQueryFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errFactory.Wrap(ErrQueryFailed, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, errFactory.WithMessage(ErrQueryFailed,
			fmt.Sprintf("unexpected status %s from catalog", resp.Status))
	}

	var decoded gqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errFactory.Wrap(ErrQueryFailed, err)
	}
	if len(decoded.Errors) > 0 {
		return nil, errFactory.WithMessage(ErrQueryFailed, decoded.Errors[0].Message)
	}

	servers := make([]Server, 0, len(decoded.Data.Registrations))
	for _, reg := range decoded.Data.Registrations {
		srv := Server{AppID: reg.ApplicationID}
		if reg.HardwareInfo != nil {
			srv.ResourceID = reg.HardwareInfo.ResourceID.String()
			srv.Name = reg.HardwareInfo.ServerName
			srv.Serial = reg.HardwareInfo.Serial
		}
		servers = append(servers, srv)
	}

	return servers, nil
}

// resolveAddresses looks up each server name concurrently. Resolution is
// informational: a name that does not resolve leaves IP empty and the
// entry stays in the target list.
func (s *graphqlSource) resolveAddresses(ctx context.Context, servers []Server) {
	workers := resolveWorkers
	if workers > len(servers) {
		workers = len(servers)
	}
	if workers < 1 {
		return
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)

	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range indexes {
				name := servers[i].Name
				if name == "" {
					continue
				}
				addrs, err := net.DefaultResolver.LookupHost(ctx, name)
				if err != nil || len(addrs) == 0 {
					s.log.Debug().Str("server", name).Msg("catalog name did not resolve")

					continue
				}
				servers[i].IP = addrs[0]
			}
		}()
	}

	for i := range servers {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	resolved := 0
	for i := range servers {
		if servers[i].IP != "" {
			resolved++
		}
	}
	s.log.Debug().
		Int("resolved", resolved).
		Int("total", len(servers)).
		Msg("catalog name resolution finished")
}
