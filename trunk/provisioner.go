// Package trunk provisions carrier SIP trunks so the media platform can place
// and receive PSTN calls: trunk creation, origination URIs pointing at the
// platform SIP endpoint, and phone number association.
package trunk

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Trunk is a carrier-side elastic SIP trunk.
type Trunk struct {
	SID          string `json:"sid"`
	FriendlyName string `json:"friendly_name"`
	DomainName   string `json:"domain_name"`
}

// OriginationURL routes calls arriving on a trunk to a SIP endpoint.
type OriginationURL struct {
	SID    string `json:"sid"`
	SipURL string `json:"sip_url"`
}

type trunkList struct {
	Trunks []Trunk `json:"trunks"`
}

type originationList struct {
	OriginationURLs []OriginationURL `json:"origination_urls"`
}

type phoneNumber struct {
	SID         string `json:"sid"`
	PhoneNumber string `json:"phone_number"`
}

type phoneNumberList struct {
	PhoneNumbers []phoneNumber `json:"phone_numbers"`
}

// Provisioner drives the carrier's trunking REST API. All write calls are
// form-encoded with basic auth, per the carrier's convention.
type Provisioner struct {
	http *resty.Client
	log  *zap.Logger

	// numbersURL is the account API root for phone number lookup; it lives on
	// a different host than the trunking API.
	numbersURL string
}

// NewProvisioner builds a client for the carrier account.
func NewProvisioner(log *zap.Logger, trunkingURL, numbersURL, accountSID, authToken string) *Provisioner {
	httpc := resty.New().
		SetBaseURL(strings.TrimRight(trunkingURL, "/")).
		SetBasicAuth(accountSID, authToken).
		SetTimeout(30 * time.Second)

	return &Provisioner{
		http:       httpc,
		log:        log,
		numbersURL: strings.TrimRight(numbersURL, "/"),
	}
}

// ListTrunks returns all trunks on the account.
func (p *Provisioner) ListTrunks(ctx context.Context) ([]Trunk, error) {
	var out trunkList
	resp, err := p.http.R().SetContext(ctx).SetResult(&out).Get("/Trunks")
	if err != nil {
		return nil, fmt.Errorf("listing trunks: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("listing trunks: %s: %s", resp.Status(), resp.String())
	}
	return out.Trunks, nil
}

// CreateTrunk creates a trunk with a generated unique domain name.
func (p *Provisioner) CreateTrunk(ctx context.Context, friendlyName string) (Trunk, error) {
	domain := fmt.Sprintf("platform-trunk-%s.pstn.twilio.com", uuid.NewString()[:8])

	var out Trunk
	resp, err := p.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"FriendlyName": friendlyName,
			"DomainName":   domain,
		}).
		SetResult(&out).
		Post("/Trunks")
	if err != nil {
		return Trunk{}, fmt.Errorf("creating trunk: %w", err)
	}
	if resp.IsError() {
		return Trunk{}, fmt.Errorf("creating trunk: %s: %s", resp.Status(), resp.String())
	}

	p.log.Info("trunk created", zap.String("sid", out.SID), zap.String("domain", out.DomainName))
	return out, nil
}

// AddOriginationURI points the trunk at the platform's SIP endpoint.
func (p *Provisioner) AddOriginationURI(ctx context.Context, trunkSID, sipURI string) error {
	resp, err := p.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"SipUrl":       sipURI,
			"Weight":       "1",
			"Priority":     "1",
			"Enabled":      "true",
			"FriendlyName": "Platform SIP URI",
		}).
		Post("/Trunks/" + trunkSID + "/OriginationUrls")
	if err != nil {
		return fmt.Errorf("adding origination URI: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("adding origination URI: %s: %s", resp.Status(), resp.String())
	}
	return nil
}

// ListOriginationURIs returns the trunk's origination URLs.
func (p *Provisioner) ListOriginationURIs(ctx context.Context, trunkSID string) ([]OriginationURL, error) {
	var out originationList
	resp, err := p.http.R().SetContext(ctx).SetResult(&out).Get("/Trunks/" + trunkSID + "/OriginationUrls")
	if err != nil {
		return nil, fmt.Errorf("listing origination URIs: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("listing origination URIs: %s: %s", resp.Status(), resp.String())
	}
	return out.OriginationURLs, nil
}

// EnsureTrunk finds a trunk by friendly name or creates it with an
// origination URI pointing at sipURI. Idempotent.
func (p *Provisioner) EnsureTrunk(ctx context.Context, friendlyName, sipURI string) (Trunk, error) {
	trunks, err := p.ListTrunks(ctx)
	if err != nil {
		return Trunk{}, err
	}
	for _, t := range trunks {
		if strings.EqualFold(t.FriendlyName, friendlyName) {
			p.log.Info("reusing existing trunk", zap.String("sid", t.SID))
			return t, p.EnsureOrigination(ctx, t.SID, sipURI)
		}
	}

	t, err := p.CreateTrunk(ctx, friendlyName)
	if err != nil {
		return Trunk{}, err
	}
	return t, p.AddOriginationURI(ctx, t.SID, sipURI)
}

// EnsureOrigination adds sipURI to the trunk unless already present.
func (p *Provisioner) EnsureOrigination(ctx context.Context, trunkSID, sipURI string) error {
	urls, err := p.ListOriginationURIs(ctx, trunkSID)
	if err != nil {
		return err
	}
	for _, u := range urls {
		if u.SipURL == sipURI {
			return nil
		}
	}
	return p.AddOriginationURI(ctx, trunkSID, sipURI)
}

// AssociatePhoneNumber attaches the E.164 number to the trunk, looking up the
// number's resource SID on the account first. Already-associated numbers are
// a no-op.
func (p *Provisioner) AssociatePhoneNumber(ctx context.Context, trunkSID, number string) error {
	var current phoneNumberList
	resp, err := p.http.R().SetContext(ctx).SetResult(&current).Get("/Trunks/" + trunkSID + "/PhoneNumbers")
	if err != nil {
		return fmt.Errorf("listing trunk numbers: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("listing trunk numbers: %s: %s", resp.Status(), resp.String())
	}
	for _, pn := range current.PhoneNumbers {
		if pn.PhoneNumber == number {
			return nil
		}
	}

	var owned phoneNumberList
	resp, err = p.http.R().
		SetContext(ctx).
		SetQueryParam("PhoneNumber", number).
		SetResult(&owned).
		Get(p.numbersURL + "/IncomingPhoneNumbers.json")
	if err != nil {
		return fmt.Errorf("looking up phone number: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("looking up phone number: %s: %s", resp.Status(), resp.String())
	}
	if len(owned.PhoneNumbers) == 0 {
		return fmt.Errorf("phone number %s not found on account", number)
	}

	resp, err = p.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{"PhoneNumberSid": owned.PhoneNumbers[0].SID}).
		Post("/Trunks/" + trunkSID + "/PhoneNumbers")
	if err != nil {
		return fmt.Errorf("associating phone number: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("associating phone number: %s: %s", resp.Status(), resp.String())
	}

	p.log.Info("phone number associated",
		zap.String("trunk", trunkSID),
		zap.String("number", number))
	return nil
}
