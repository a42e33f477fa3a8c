package telephony

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/emiago/diago"
	"github.com/emiago/sipgo"
	"github.com/emiago/sipgo/sip"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DiagoDriver is the SIP implementation of Driver, built on diago/sipgo.
type DiagoDriver struct {
	dg  *diago.Diago
	log *zap.Logger

	mu       sync.Mutex
	sessions map[string]*outboundSession
}

type outboundSession struct {
	dialog *diago.DialogClientSession
	trunk  TrunkConfig
	number string
}

// DiagoOptions configure the local SIP endpoint.
type DiagoOptions struct {
	Transport  string // "udp", "tcp" or "tls"
	ListenAddr string
	Port       int
}

// NewDiagoDriver builds the SIP user agent and media stack.
func NewDiagoDriver(log *zap.Logger, opts DiagoOptions) (*DiagoDriver, error) {
	ua, err := sipgo.NewUA()
	if err != nil {
		return nil, fmt.Errorf("creating SIP user agent: %w", err)
	}

	transport := diago.Transport{
		Transport: opts.Transport,
		BindHost:  opts.ListenAddr,
		BindPort:  opts.Port,
	}

	return &DiagoDriver{
		dg:       diago.NewDiago(ua, diago.WithTransport(transport)),
		log:      log,
		sessions: make(map[string]*outboundSession),
	}, nil
}

// PlaceCall dials out through the trunk and blocks until answered or failed.
func (d *DiagoDriver) PlaceCall(ctx context.Context, phoneNumber string, trunk TrunkConfig) (string, error) {
	port := trunk.Port
	if port == 0 {
		port = 5060
	}
	recipient := sip.Uri{
		User: strings.TrimPrefix(phoneNumber, "tel:"),
		Host: trunk.Host,
		Port: port,
	}

	opts := diago.InviteOptions{}
	if trunk.CallerNumber != "" {
		opts.Headers = append(opts.Headers, sip.NewHeader("X-Trunk-Caller-Id", trunk.CallerNumber))
	}
	if trunk.TrunkID != "" {
		opts.Headers = append(opts.Headers, sip.NewHeader("X-Trunk-Id", trunk.TrunkID))
	}

	dialog, err := d.dg.Invite(ctx, recipient, opts)
	if err != nil {
		return "", fmt.Errorf("dialing %s via %s: %w", phoneNumber, trunk.Host, err)
	}

	handle := uuid.NewString()
	d.mu.Lock()
	d.sessions[handle] = &outboundSession{dialog: dialog, trunk: trunk, number: phoneNumber}
	d.mu.Unlock()

	d.log.Info("call answered",
		zap.String("session", handle),
		zap.String("trunk_host", trunk.Host))
	return handle, nil
}

// TransferParticipant sends a REFER for the dialed participant.
func (d *DiagoDriver) TransferParticipant(ctx context.Context, session, participantID, destination string) error {
	sess, err := d.lookup(session)
	if err != nil {
		return err
	}

	referTo := sip.Uri{
		User: strings.TrimPrefix(strings.TrimPrefix(destination, "tel:"), "sip:"),
		Host: sess.trunk.Host,
	}
	if err := sess.dialog.Refer(ctx, referTo); err != nil {
		return fmt.Errorf("transferring %s to %s: %w", participantID, destination, err)
	}

	d.log.Info("participant transferred",
		zap.String("session", session),
		zap.String("destination", destination))
	return nil
}

// TeardownSession hangs up and releases the dialog.
func (d *DiagoDriver) TeardownSession(ctx context.Context, session string) error {
	sess, err := d.lookup(session)
	if err != nil {
		return err
	}

	if err := sess.dialog.Hangup(ctx); err != nil {
		return fmt.Errorf("hanging up session %s: %w", session, err)
	}

	d.mu.Lock()
	delete(d.sessions, session)
	d.mu.Unlock()

	d.log.Info("session torn down", zap.String("session", session))
	return nil
}

func (d *DiagoDriver) lookup(session string) (*outboundSession, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sess, ok := d.sessions[session]
	if !ok {
		return nil, fmt.Errorf("unknown session %s", session)
	}
	return sess, nil
}
