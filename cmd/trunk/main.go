// Command trunk provisions the carrier SIP trunk that connects the phone
// number to the media platform: creates the trunk if missing, points its
// origination at the platform SIP endpoint and associates the number.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/dialwatch/dialwatch/config"
	"github.com/dialwatch/dialwatch/trunk"
)

func main() {
	name := flag.String("name", "Platform Trunk", "trunk friendly name")
	sipURI := flag.String("sip-uri", "", "platform SIP URI (defaults to PLATFORM_SIP_URI)")
	number := flag.String("number", "", "phone number to associate (defaults to CARRIER_PHONE_NUMBER)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *sipURI == "" {
		*sipURI = cfg.PlatformSIPURI
	}
	if *number == "" {
		*number = cfg.CarrierPhoneNumber
	}
	if cfg.CarrierAccountSID == "" || cfg.CarrierAuthToken == "" {
		log.Fatal("CARRIER_ACCOUNT_SID and CARRIER_AUTH_TOKEN must be set")
	}
	if *sipURI == "" {
		log.Fatal("no platform SIP URI configured")
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	defer logger.Sync()

	p := trunk.NewProvisioner(logger, cfg.CarrierTrunkingURL, cfg.CarrierNumbersURL,
		cfg.CarrierAccountSID, cfg.CarrierAuthToken)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	bold := color.New(color.Bold)
	bold.Println("Configuring carrier trunk...")

	t, err := p.EnsureTrunk(ctx, *name, *sipURI)
	if err != nil {
		color.Red("trunk setup failed: %v", err)
		os.Exit(1)
	}
	color.Green("Trunk ready: %s (%s)", t.SID, t.DomainName)

	if *number != "" {
		if err := p.AssociatePhoneNumber(ctx, t.SID, *number); err != nil {
			color.Red("number association failed: %v", err)
			os.Exit(1)
		}
		color.Green("Number %s associated", *number)
	}

	color.White("Origination: %s", *sipURI)
}
