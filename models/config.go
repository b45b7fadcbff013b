package models

import (
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/SherClockHolmes/webpush-go"
)

// Config holds all the application config values.
// Not really a classical model since not saved into DB.
type Config struct {
	AdminEmail          string        // ADMINEMAIL
	AppName             string        // APPNAME
	Debug               bool          // DEBUG
	Port                int           // PORT
	Host                string        // HOST
	DbType              string        // DBTYPE
	DbDSN               string        // DBDSN
	RedirectDomain      *url.URL      // REDIRECTDOMAIN
	MaxBodySize         int64         // not documented
	MaxPayloadSize      int           // MAXPAYLOADSIZE, encrypted push message ceiling
	PushTTL             int           // PUSHTTL, seconds the push service keeps undelivered messages
	DispatchConcurrency int           // DISPATCHCONCURRENCY
	DispatchTimeout     time.Duration // DISPATCHTIMEOUT
	OriginalIPHeader    string        // ORIGINALIPHEADER
	OriginalProtoHeader string        // ORIGINALPROTOHEADER
	SSLMode             string        // SSLMODE
	SSLAutoCertsDir     string        // SSLAUTOCERTSDIR
	SSLCustomCertPath   string        // SSLCUSTOMCERTPATH
	SSLCustomKeyPath    string        // SSLCUSTOMKEYPATH
	VapidPublicKey      string        // VAPIDPUBLICKEY
	VapidPrivateKey     string        // VAPIDPRIVATEKEY
}

func (config *Config) New() Config {
	var defaultConfig = Config{
		AppName:             "PWA Push Demo",
		DbType:              "sqlite",
		DbDSN:               "/tmp/pwapush.db",
		Debug:               false,
		Port:                8080,
		Host:                "127.0.0.1",
		MaxBodySize:         4096, // 4KB
		MaxPayloadSize:      4096,
		PushTTL:             60,
		DispatchConcurrency: 16,
		DispatchTimeout:     30 * time.Second,
		SSLMode:             "off",
		SSLAutoCertsDir:     "/tmp",
		SSLCustomCertPath:   "/ssl/cert.pem",
		SSLCustomKeyPath:    "/ssl/key.pem",
		OriginalProtoHeader: "X-Forwarded-Proto",
	}
	redirDomain, _ := url.Parse(fmt.Sprintf("http://%s:%v", defaultConfig.Host, defaultConfig.Port))
	defaultConfig.RedirectDomain = redirDomain

	return defaultConfig
}

func (config *Config) Verify() {
	log.Printf("Dispatch concurrency set to %v", config.DispatchConcurrency)
	log.Printf("Dispatch timeout set to %v", config.DispatchTimeout)
	if config.AdminEmail == "" {
		log.Fatal("ADMINEMAIL must be set to a valid email address, it identifies the sender to the push services.")
	}
	if config.VapidPrivateKey == "" || config.VapidPublicKey == "" {
		log.Printf("FATAL: VAPIDPRIVATEKEY and VAPIDPUBLICKEY must be defined and valid")
		log.Printf("If you have never defined them, here are some fresh values generated just for you.")
		if privateKey, publicKey, err := webpush.GenerateVAPIDKeys(); err == nil {
			log.Printf("VAPIDPUBLICKEY=\"%s\"", publicKey)
			log.Printf("VAPIDPRIVATEKEY=\"%s\"", privateKey)
		}
		log.Fatal("Add them to the environment variables. VAPIDPRIVATEKEY is sensitive, keep it secret.")
	}
	if config.DispatchConcurrency < 1 {
		log.Fatal("DISPATCHCONCURRENCY must be at least 1")
	}
	config.SSLMode = strings.ToLower(config.SSLMode)
	if config.SSLMode != "off" && config.SSLMode != "auto" && config.SSLMode != "custom" && config.SSLMode != "proxy" {
		log.Fatal("SSLMODE must be one of off, auto, custom, proxy")
	}
}
