// Command dial dispatches a one-off outbound call job to the agent, without
// going through the dashboard.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dialwatch/dialwatch/config"
	"github.com/dialwatch/dialwatch/dispatch"
	"github.com/dialwatch/dialwatch/telephony"
	"github.com/dialwatch/dialwatch/utils"
)

func main() {
	to := flag.String("to", "", "phone number to call (E.164)")
	transfer := flag.String("transfer", "", "human agent number for transfers (optional)")
	direct := flag.Bool("direct", false, "dial through the SIP trunk directly instead of dispatching the agent")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	if *to == "" {
		*to = os.Getenv("DIAL_TO_NUMBER")
	}
	if !utils.ValidPhoneNumber(*to) {
		log.Fatalf("invalid -to number %q, expected E.164", *to)
	}
	if *transfer == "" {
		*transfer = cfg.CarrierPhoneNumber
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	defer logger.Sync()

	if *direct {
		directDial(logger, cfg, *to)
		return
	}

	callID := uuid.NewString()
	room := utils.RoomName(callID)
	metadata := map[string]string{
		"phone_number": *to,
		"transfer_to":  *transfer,
		"call_id":      callID,
	}

	bold := color.New(color.Bold)
	bold.Printf("Dispatching outbound call to %s...\n", *to)
	color.White("Transfer number: %s", *transfer)

	client := dispatch.NewClient(logger, cfg.DispatchURL, cfg.DispatchAPIKey, cfg.DispatchAPISecret)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dispatchID, err := client.DispatchAgentJob(ctx, cfg.AgentName, room, metadata)
	if err != nil {
		color.Red("dispatch failed: %v", err)
		os.Exit(1)
	}

	color.Green("Call dispatched")
	color.White("  Dispatch ID: %s", dispatchID)
	color.White("  Room:        %s", room)
	color.White("  Agent:       %s", cfg.AgentName)
}

// directDial places the call over the SIP trunk itself, no agent involved.
// Useful for verifying trunk credentials and caller id.
func directDial(logger *zap.Logger, cfg *config.Config, to string) {
	driver, err := telephony.NewDiagoDriver(logger.Named("telephony"), telephony.DiagoOptions{
		Transport:  cfg.SIPTransport,
		ListenAddr: cfg.SIPListenAddr,
		Port:       cfg.SIPPort,
	})
	if err != nil {
		color.Red("SIP driver setup failed: %v", err)
		os.Exit(1)
	}

	bold := color.New(color.Bold)
	bold.Printf("Dialing %s through trunk %s...\n", to, cfg.TrunkHost)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	session, err := driver.PlaceCall(ctx, to, cfg.Trunk())
	if err != nil {
		color.Red("dial failed: %v", err)
		os.Exit(1)
	}
	color.Green("Call answered, session %s", session)
	color.White("Press Ctrl-C to hang up")

	waitCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	<-waitCtx.Done()

	hangupCtx, hangupCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer hangupCancel()
	if err := driver.TeardownSession(hangupCtx, session); err != nil {
		color.Red("hangup failed: %v", err)
		os.Exit(1)
	}
	color.Green("Hung up")
}
