package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/netpulse/netpulse/internal/util"
)

// Decision is the per-cycle gate verdict. Reason is log-only.
type Decision struct {
	Suppressed bool
	Reason     string
}

// Oracle decides whether a measurement cycle should be suppressed.
type Oracle interface {
	ShouldSuppress(ctx context.Context) Decision
}

// Options configures the Riot-backed oracle. BaseURL fields override the
// derived https hosts; tests point them at local servers.
type Options struct {
	APIKey   string
	GameName string
	TagLine  string
	Platform string

	RoutingBaseURL  string
	PlatformBaseURL string
	Client          *http.Client
}

// RiotOracle suppresses measurement while the configured player is in an
// active game. The resolved player identifier is cached in memory for
// the process lifetime; resolution is attempted at most once. All oracle
// failures fail open: measurement is never blocked by oracle outages.
//
// The oracle is only touched from the single measurement loop, so no
// locking is needed.
type RiotOracle struct {
	apiKey   string
	gameName string
	tagLine  string

	routingBase  string
	platformBase string
	client       *http.Client
	logger       util.Logger

	puuid         string
	resolveFailed bool
}

func NewRiotOracle(opts Options, logger util.Logger) (*RiotOracle, error) {
	o := &RiotOracle{
		apiKey:       opts.APIKey,
		gameName:     opts.GameName,
		tagLine:      opts.TagLine,
		routingBase:  opts.RoutingBaseURL,
		platformBase: opts.PlatformBaseURL,
		client:       opts.Client,
		logger:       logger,
	}
	if o.client == nil {
		o.client = http.DefaultClient
	}
	if o.configured() {
		if o.routingBase == "" {
			route, err := RouteForPlatform(opts.Platform)
			if err != nil {
				return nil, err
			}
			o.routingBase = "https://" + route
		}
		if o.platformBase == "" {
			if _, err := RouteForPlatform(opts.Platform); err != nil {
				return nil, err
			}
			o.platformBase = "https://" + PlatformDomain(opts.Platform)
		}
	}
	return o, nil
}

func (o *RiotOracle) configured() bool {
	return o.gameName != "" && o.tagLine != ""
}

// ShouldSuppress never returns an error; every failure path degrades to
// "not suppressed".
func (o *RiotOracle) ShouldSuppress(ctx context.Context) Decision {
	if !o.configured() {
		return Decision{Suppressed: false, Reason: "gate not configured"}
	}
	if o.puuid == "" {
		if o.resolveFailed {
			return Decision{Suppressed: false, Reason: "player identifier unavailable"}
		}
		o.resolve(ctx)
		if o.puuid == "" {
			return Decision{Suppressed: false, Reason: "player identifier unavailable"}
		}
	}
	return o.queryStatus(ctx)
}

func (o *RiotOracle) resolve(ctx context.Context) {
	endpoint := fmt.Sprintf("%s/riot/account/v1/accounts/by-riot-id/%s/%s",
		o.routingBase, url.PathEscape(o.gameName), url.PathEscape(o.tagLine))
	status, body, err := o.get(ctx, endpoint)
	if err != nil {
		o.logger.Warn("account resolution failed", "error", err)
		o.resolveFailed = true
		return
	}
	if status != http.StatusOK {
		o.logger.Warn("account resolution rejected", "status", status)
		o.resolveFailed = true
		return
	}
	var account struct {
		PUUID string `json:"puuid"`
	}
	if err := json.Unmarshal(body, &account); err != nil || account.PUUID == "" {
		o.logger.Warn("account resolution returned unusable body", "error", err)
		o.resolveFailed = true
		return
	}
	o.puuid = account.PUUID
	o.logger.Info("player identifier resolved", "game_name", o.gameName)
}

func (o *RiotOracle) queryStatus(ctx context.Context) Decision {
	endpoint := fmt.Sprintf("%s/lol/spectator/v5/active-games/by-summoner/%s",
		o.platformBase, url.PathEscape(o.puuid))
	status, _, err := o.get(ctx, endpoint)
	if err != nil {
		o.logger.Warn("gate status query failed, not suppressing", "error", err)
		return Decision{Suppressed: false, Reason: "oracle unreachable"}
	}
	switch status {
	case http.StatusOK:
		return Decision{Suppressed: true, Reason: "currently in a match"}
	case http.StatusNotFound:
		return Decision{Suppressed: false, Reason: "not in a match"}
	default:
		o.logger.Warn("gate status query returned unexpected status, not suppressing", "status", status)
		return Decision{Suppressed: false, Reason: fmt.Sprintf("unexpected status %d", status)}
	}
}

func (o *RiotOracle) get(ctx context.Context, endpoint string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("X-Riot-Token", o.apiKey)
	resp, err := o.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}
